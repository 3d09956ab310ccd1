package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-service/config"
	"chat-service/controller"
	"chat-service/database"
	"chat-service/event"
	"chat-service/logger"
	"chat-service/router"
	"chat-service/service"
	"chat-service/socketio"
	"chat-service/telemetry"
	"chat-service/uploads"
	"chat-service/utils"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	log := logger.New(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
		otelShutdown = func(context.Context) error { return nil }
	}

	db, err := database.PostgresConnect(log, cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "err", err)
		os.Exit(1)
	}

	rdb, err := database.RedisConnect(ctx, log, cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "err", err)
		os.Exit(1)
	}

	enforcer, err := database.Casbin(db, cfg.Casbin.ModelPath)
	if err != nil {
		log.Error("casbin init failed", "err", err)
		os.Exit(1)
	}

	files, err := uploads.NewLocal(log, cfg.Uploads.Dir, cfg.Uploads.PublicPath)
	if err != nil {
		log.Error("upload dir init failed", "err", err)
		os.Exit(1)
	}

	bus, err := event.RabbitMQConnect(log, cfg.RabbitMQ)
	if err != nil {
		log.Error("rabbitmq connection failed", "err", err)
		os.Exit(1)
	}

	hub := socketio.Init(log, cfg.Socket, cfg.Service.CorsOrigin)
	emitter := event.Fanout{hub, bus}

	store := database.NewStore(db)
	jwt := utils.NewTokenManager(cfg.JWT.AccessKey, cfg.JWT.AccessExpire, cfg.JWT.RefreshKey, cfg.JWT.RefreshExpire)
	tokens := database.NewRedisTokenStore(rdb, cfg.JWT.RefreshExpire)

	auth := service.NewAuthService(log, store, tokens, jwt, files, cfg.Otp.Issuer)
	chats := service.NewChatService(log, store, store, emitter, files)
	messages := service.NewMessageService(log, store, store, emitter, files)

	rest := router.New(router.AppConfig{
		Name:       cfg.Service.Name,
		CorsOrigin: cfg.Service.CorsOrigin,
		BodyLimit:  cfg.Uploads.BodyLimit,
	}, log)

	hub.Mount(rest)
	router.Rest(rest, router.RestDeps{
		Controller: controller.New(auth, chats, messages, files, controller.Options{
			MaxAttachments: cfg.Uploads.MaxFiles,
			SecureCookies:  cfg.Service.Env == "production",
			AccessExpire:   cfg.JWT.AccessExpire,
			RefreshExpire:  cfg.JWT.RefreshExpire,
		}),
		Users:      auth,
		AccessKey:  jwt.AccessKey(),
		Enforcer:   enforcer,
		UploadDir:  cfg.Uploads.Dir,
		UploadPath: cfg.Uploads.PublicPath,
		AccessLog:  true,
	})
	router.Socket(hub, auth, log)

	go func() {
		if err := rest.Listen(fmt.Sprintf(":%s", cfg.Service.Port)); err != nil {
			log.Error("server stopped", "err", err)
		}
	}()
	log.Info("server listening", "port", cfg.Service.Port)

	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.Close()
	if err := rest.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "err", err)
	}
	bus.Close()
	if err := rdb.Close(); err != nil {
		log.Error("redis close failed", "err", err)
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		log.Error("telemetry shutdown failed", "err", err)
	}
}
