package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadEnv sync.Once

// Config returns the value of the given key from .env or the process environment.
func Config(key string) string {
	loadEnv.Do(func() {
		// Missing .env is fine, the environment may be set by the container.
		_ = godotenv.Load(".env")
	})
	return os.Getenv(key)
}

func configOr(key, fallback string) string {
	if v := Config(key); v != "" {
		return v
	}
	return fallback
}

func configInt(key string, fallback int) int {
	v, err := strconv.Atoi(Config(key))
	if err != nil {
		return fallback
	}
	return v
}

func configDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(Config(key))
	if err != nil {
		return fallback
	}
	return v
}

func configBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(Config(key))
	if err != nil {
		return fallback
	}
	return v
}

type Settings struct {
	Service  ServiceSettings
	Postgres PostgresSettings
	Redis    RedisSettings
	RabbitMQ RabbitMQSettings
	JWT      JWTSettings
	Socket   SocketSettings
	Uploads  UploadSettings
	Logger   LoggerSettings
	Tracer   TracerSettings
	Casbin   CasbinSettings
	Otp      OtpSettings
}

type ServiceSettings struct {
	Name       string
	Env        string
	Port       string
	CorsOrigin string
}

type PostgresSettings struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
}

type RedisSettings struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RabbitMQSettings struct {
	URL       string
	Queue     string
	EventMode string
	OutLog    string
}

type JWTSettings struct {
	AccessKey     string
	AccessExpire  time.Duration
	RefreshKey    string
	RefreshExpire time.Duration
}

type SocketSettings struct {
	PingTimeout  time.Duration
	PingInterval time.Duration
	Debug        bool
}

type UploadSettings struct {
	Dir        string
	PublicPath string
	MaxFiles   int
	BodyLimit  int
}

type LoggerSettings struct {
	Level  string
	Format string
}

type TracerSettings struct {
	Address string
}

type CasbinSettings struct {
	ModelPath string
}

type OtpSettings struct {
	Issuer string
}

// Load builds Settings from the environment, falling back to development defaults.
func Load() *Settings {
	return &Settings{
		Service: ServiceSettings{
			Name:       configOr("SERVICE_NAME", "chat-service"),
			Env:        configOr("SERVICE_ENV", "development"),
			Port:       configOr("SERVER_PORT", "8080"),
			CorsOrigin: configOr("CORS_ORIGIN", "http://localhost:5173"),
		},
		Postgres: PostgresSettings{
			Host:     configOr("POSTGRES_HOST", "localhost"),
			Port:     configOr("POSTGRES_PORT", "5432"),
			User:     configOr("POSTGRES_USER", "postgres"),
			Password: Config("POSTGRES_PASSWORD"),
			DB:       configOr("POSTGRES_DB", "chat"),
		},
		Redis: RedisSettings{
			Host:     configOr("REDIS_HOST", "localhost"),
			Port:     configOr("REDIS_PORT", "6379"),
			Password: Config("REDIS_PASSWORD"),
			DB:       configInt("REDIS_DB", 0),
		},
		RabbitMQ: RabbitMQSettings{
			URL:       Config("RABBITMQ_URL"),
			Queue:     configOr("RABBITMQ_QUEUE", "chat-events"),
			EventMode: configOr("EVENT_MODE", "DISABLE"),
			OutLog:    configOr("EVENT_OUT_LOG", "log/out.log"),
		},
		JWT: JWTSettings{
			AccessKey:     Config("JWT_ACCESS_KEY"),
			AccessExpire:  time.Duration(configInt("JWT_ACCESS_EXPIRE", 60*24)) * time.Minute,
			RefreshKey:    Config("JWT_REFRESH_KEY"),
			RefreshExpire: time.Duration(configInt("JWT_REFRESH_EXPIRE", 60*24*10)) * time.Minute,
		},
		Socket: SocketSettings{
			PingTimeout:  configDuration("SOCKET_PING_TIMEOUT", 60*time.Second),
			PingInterval: configDuration("SOCKET_PING_INTERVAL", 25*time.Second),
			Debug:        configBool("SOCKET_DEBUG", false),
		},
		Uploads: UploadSettings{
			Dir:        configOr("UPLOAD_DIR", "./public/uploads"),
			PublicPath: configOr("UPLOAD_PUBLIC_PATH", "/uploads"),
			MaxFiles:   configInt("UPLOAD_MAX_FILES", 5),
			BodyLimit:  configInt("UPLOAD_BODY_LIMIT", 100*1024*1024),
		},
		Logger: LoggerSettings{
			Level:  configOr("LOG_LEVEL", "info"),
			Format: configOr("LOG_FORMAT", "JSON"),
		},
		Tracer: TracerSettings{
			Address: Config("OTEL_EXPORTER_ADDR"),
		},
		Casbin: CasbinSettings{
			ModelPath: configOr("CASBIN_MODEL", "config/restful_rbac_model.conf"),
		},
		Otp: OtpSettings{
			Issuer: configOr("OTP_ISSUER", "chat-service"),
		},
	}
}
