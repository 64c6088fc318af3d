package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Directory string `mapstructure:"directory"`
}

type RecordingConfig struct {
	Timeslice time.Duration `mapstructure:"timeslice"`
	Dir       string        `mapstructure:"dir"`
	Codec     string        `mapstructure:"codec"`
	Mic       bool          `mapstructure:"mic"`
	S3        S3Config      `mapstructure:"s3"`
}

type SignalConfig struct {
	URL       string  `mapstructure:"url"`
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LeavePath  string        `mapstructure:"leave_path"`

	RaiseHandCooldown time.Duration `mapstructure:"raise_hand_cooldown"`

	Recording RecordingConfig `mapstructure:"recording"`
	Signal    SignalConfig    `mapstructure:"signal"`
}

// Load reads .env (if any), then config/config.<CONFIG_ENV>.yaml over the
// defaults. WEBINAR_* environment variables override both.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
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
	v.SetEnvPrefix("webinar")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("static", cfg.StaticPath).Str("signal", cfg.Signal.URL).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("leave_path", "/")
	v.SetDefault("raise_hand_cooldown", "15s")

	v.SetDefault("recording.timeslice", "1s")
	v.SetDefault("recording.dir", "./recordings")
	v.SetDefault("recording.codec", "vp8")
	v.SetDefault("recording.mic", true)

	v.SetDefault("signal.url", "")
	v.SetDefault("signal.rate_limit", 20)
	v.SetDefault("signal.rate_burst", 40)
}
