package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/podcall/internal/app/guard"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	PublicURL  string        `mapstructure:"public_url"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	Call    CallConfig    `mapstructure:"call"`
	Media   MediaConfig   `mapstructure:"media"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Guard   GuardConfig   `mapstructure:"guard"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Log     LogConfig     `mapstructure:"log"`
}

type CallConfig struct {
	RemountGrace    time.Duration `mapstructure:"remount_grace"`
	HostIdleTimeout time.Duration `mapstructure:"host_idle_timeout"`
	SweepSchedule   string        `mapstructure:"sweep_schedule"`
	ChatMaxLen      int           `mapstructure:"chat_max_len"`
}

type MediaConfig struct {
	// BaseURL is the media service's control API; empty disables media.
	BaseURL        string             `mapstructure:"base_url"`
	PublicURL      string             `mapstructure:"public_url"`
	CallbackSecret string             `mapstructure:"callback_secret"`
	RecordingsDir  string             `mapstructure:"recordings_dir"`
	StorageDir     string             `mapstructure:"storage_dir"`
	Timeout        time.Duration      `mapstructure:"timeout"`
	ICEServers     []webrtc.ICEServer `mapstructure:"ice_servers"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type GuardConfig struct {
	Ban          guard.BanConfig `mapstructure:"ban"`
	RateLimit    int             `mapstructure:"rate_limit"`
	RateInterval time.Duration   `mapstructure:"rate_interval"`
	RateMaxKeys  int             `mapstructure:"rate_max_keys"`
}

type CatalogConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("public_url", "http://localhost:8080")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")

	v.SetDefault("call.remount_grace", "500ms")
	v.SetDefault("call.host_idle_timeout", "30m")
	v.SetDefault("call.sweep_schedule", "@every 1m")
	v.SetDefault("call.chat_max_len", 2000)

	v.SetDefault("media.base_url", "")
	v.SetDefault("media.public_url", "")
	v.SetDefault("media.callback_secret", "")
	v.SetDefault("media.recordings_dir", "./data/recordings")
	v.SetDefault("media.storage_dir", "./data/segments")
	v.SetDefault("media.timeout", "10s")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("guard.ban.max_failures", 10)
	v.SetDefault("guard.ban.failure_window", "15m")
	v.SetDefault("guard.ban.ban_duration", "1h")
	v.SetDefault("guard.rate_limit", 30)
	v.SetDefault("guard.rate_interval", "1m")
	v.SetDefault("guard.rate_max_keys", 10000)

	v.SetDefault("catalog.dsn", "./data/catalog.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
}

// Load reads config/config.<CONFIG_ENV>.yaml, then PODCALL_* environment
// overrides. A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg(".env not loaded")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("PODCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Media.PublicURL == "" {
		cfg.Media.PublicURL = cfg.Media.BaseURL
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Bool("media", cfg.Media.BaseURL != "").
		Msg("config ready")
	return &cfg, nil
}
