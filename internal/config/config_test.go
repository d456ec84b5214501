package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"baken/pkg/ticket"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "baken.db", cfg.Store.DatabaseURL)
	assert.True(t, cfg.Store.AutoMigrate)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1440, cfg.Server.TokenTTLMins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "tickets", cfg.Redis.StreamPrefix)
	assert.Equal(t, 2, cfg.Scan.Workers)
	assert.InDelta(t, 4.0, cfg.Scan.FramesPerSec, 0.001)
	assert.Equal(t, []string{"qr"}, cfg.Scan.Engines)
	assert.Equal(t, ticket.FirstSlotNoise, cfg.Decoder.FirstNoise)
	assert.Equal(t, ticket.SecondSlotNoise, cfg.Decoder.SecondNoise)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/baken
log:
  level: debug
  format: console
scan:
  engines: [qr, tesseract]
decoder:
  first_noise:
    seq_ratio: 0.7
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/baken", cfg.Store.DatabaseURL)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []string{"qr", "tesseract"}, cfg.Scan.Engines)
	assert.InDelta(t, 0.7, cfg.Decoder.FirstNoise.SeqRatio, 0.001)
	// unset keys keep their defaults
	assert.Equal(t, ticket.FirstSlotNoise.TailRun, cfg.Decoder.FirstNoise.TailRun)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 9000\n"), 0644))
	t.Setenv("BAKEN_SERVER_PORT", "9191")
	t.Setenv("BAKEN_SERVER_JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Server.JWTSecret)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [\n"), 0644))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Store:   StoreConfig{Driver: "sqlite", DatabaseURL: ":memory:"},
		Server:  ServerConfig{Port: 8080},
		Scan:    ScanConfig{Workers: 1, FramesPerSec: 2},
		Decoder: DecoderConfig{FirstNoise: ticket.FirstSlotNoise, SecondNoise: ticket.SecondSlotNoise},
	}
	assert.NoError(t, cfg.Validate("store"))
	assert.NoError(t, cfg.Validate("scan"))
	assert.NoError(t, cfg.Validate("decoder"))

	err := cfg.Validate("server")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.jwt_secret")

	cfg.Store.Driver = "mysql"
	assert.Error(t, cfg.Validate("store"))

	cfg.Decoder.SecondNoise.SeqRatio = 0
	err = cfg.Validate("decoder")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoder.second_noise")

	assert.Error(t, cfg.Validate("nope"))
}

func TestInitLogger(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
}
