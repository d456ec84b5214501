package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"baken/pkg/ticket"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Redis   RedisConfig   `yaml:"redis" mapstructure:"redis"`
	Scan    ScanConfig    `yaml:"scan" mapstructure:"scan"`
	Decoder DecoderConfig `yaml:"decoder" mapstructure:"decoder"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	AutoMigrate bool   `yaml:"auto_migrate" mapstructure:"auto_migrate"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port         int    `yaml:"port" mapstructure:"port"`
	JWTSecret    string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	TokenTTLMins int    `yaml:"token_ttl_mins" mapstructure:"token_ttl_mins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RedisConfig configures the decoded-ticket stream. An empty Addr disables
// publishing.
type RedisConfig struct {
	Addr         string `yaml:"addr" mapstructure:"addr"`
	Password     string `yaml:"password" mapstructure:"password"`
	DB           int    `yaml:"db" mapstructure:"db"`
	StreamPrefix string `yaml:"stream_prefix" mapstructure:"stream_prefix"`
}

// ScanConfig configures image capture and the drop-folder watcher.
type ScanConfig struct {
	WatchDir      string   `yaml:"watch_dir" mapstructure:"watch_dir"`
	Workers       int      `yaml:"workers" mapstructure:"workers"`
	FramesPerSec  float64  `yaml:"frames_per_sec" mapstructure:"frames_per_sec"`
	Engines       []string `yaml:"engines" mapstructure:"engines"`
	TesseractLang string   `yaml:"tesseract_lang" mapstructure:"tesseract_lang"`
}

// DecoderConfig exposes the hand-tuned noise thresholds so they can be
// recalibrated without a rebuild.
type DecoderConfig struct {
	FirstNoise  ticket.NoiseThresholds `yaml:"first_noise" mapstructure:"first_noise"`
	SecondNoise ticket.NoiseThresholds `yaml:"second_noise" mapstructure:"second_noise"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BAKEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "baken.db")
	v.SetDefault("store.auto_migrate", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.token_ttl_mins", 60*24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream_prefix", "tickets")
	v.SetDefault("scan.watch_dir", "inbox")
	v.SetDefault("scan.workers", 2)
	v.SetDefault("scan.frames_per_sec", 4.0)
	v.SetDefault("scan.engines", []string{"qr"})
	v.SetDefault("scan.tesseract_lang", "eng")
	setNoiseDefaults(v, "decoder.first_noise", ticket.FirstSlotNoise)
	setNoiseDefaults(v, "decoder.second_noise", ticket.SecondSlotNoise)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

func setNoiseDefaults(v *viper.Viper, key string, th ticket.NoiseThresholds) {
	v.SetDefault(key+".seq_ratio", th.SeqRatio)
	v.SetDefault(key+".tail_run", th.TailRun)
	v.SetDefault(key+".leading_zeros", th.LeadingZeros)
	v.SetDefault(key+".leading_zeros_seq_ratio", th.LeadingZerosSeqRatio)
}

// Validate checks the keys a command needs before it runs.
func (c *Config) Validate(section string) error {
	var missing []string
	switch section {
	case "store":
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			return eris.Errorf("config: store.driver must be postgres or sqlite, got %q", c.Store.Driver)
		}
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url")
		}
	case "server":
		if c.Server.JWTSecret == "" {
			missing = append(missing, "server.jwt_secret")
		}
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port")
		}
	case "scan":
		if c.Scan.Workers < 1 {
			missing = append(missing, "scan.workers")
		}
		if c.Scan.FramesPerSec <= 0 {
			missing = append(missing, "scan.frames_per_sec")
		}
	case "decoder":
		if !validNoise(c.Decoder.FirstNoise) {
			missing = append(missing, "decoder.first_noise")
		}
		if !validNoise(c.Decoder.SecondNoise) {
			missing = append(missing, "decoder.second_noise")
		}
	default:
		return eris.Errorf("config: unknown section %q", section)
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing or invalid %s", strings.Join(missing, ", "))
	}
	return nil
}

func validNoise(th ticket.NoiseThresholds) bool {
	return th.SeqRatio > 0 && th.SeqRatio <= 1 && th.TailRun > 0
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
