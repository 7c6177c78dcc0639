package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	req := require.New(t)

	cfg, err := Load()
	req.NoError(err)
	req.Equal("dev", cfg.Env)
	req.Equal(3000, cfg.Port)
	req.NotEmpty(cfg.DatabaseURL)
	req.Equal(5*time.Second, cfg.PersistTimeout)
	req.Equal(30*time.Second, cfg.WS.PingInterval)
	req.Equal(int64(4096), cfg.WS.MaxMessageSize)
}

func TestLoadFromEnv(t *testing.T) {
	req := require.New(t)

	t.Setenv("APP_ENV", "prod")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("PERSIST_TIMEOUT", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	req.NoError(err)
	req.Equal("prod", cfg.Env)
	req.Equal(9000, cfg.Port)
	req.Equal(250*time.Millisecond, cfg.PersistTimeout)
	req.Equal([]string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}
