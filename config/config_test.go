package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("UPLOAD_MAX_FILES", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Service.Port)
	assert.Equal(t, 5, cfg.Uploads.MaxFiles)
	assert.Equal(t, 24*time.Hour, cfg.JWT.AccessExpire)
	assert.Equal(t, "/uploads", cfg.Uploads.PublicPath)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("JWT_ACCESS_EXPIRE", "15")
	t.Setenv("SOCKET_PING_TIMEOUT", "10s")
	t.Setenv("SOCKET_DEBUG", "true")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Service.Port)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpire)
	assert.Equal(t, 10*time.Second, cfg.Socket.PingTimeout)
	assert.True(t, cfg.Socket.Debug)
	assert.Equal(t, 0, cfg.Redis.DB)
}
