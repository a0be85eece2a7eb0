package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "FLIP"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	Secret   string `mapstructure:"secret"`
	LogLevel string `mapstructure:"log_level"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`

	Sharding        string        `mapstructure:"sharding"`
	HibernateAfter  time.Duration `mapstructure:"hibernate_after"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`

	RateLimit      float64  `mapstructure:"rate_limit"`
	RateBurst      int      `mapstructure:"rate_burst"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type ClientConfig struct {
	URL            string        `mapstructure:"url"`
	Room           string        `mapstructure:"room"`
	UserID         string        `mapstructure:"user_id"`
	Avatar         string        `mapstructure:"avatar"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	LogLevel       string        `mapstructure:"log_level"`
}

func newViper() *viper.Viper {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readFile(v *viper.Viper, name string) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/%s.%s.yaml", name, env)
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not loaded, using defaults")
		return
	}
	log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
}

func Load() (*Config, error) {
	v := newViper()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "flip-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("sharding", "room")
	v.SetDefault("hibernate_after", "5m")
	v.SetDefault("janitor_interval", "30s")
	v.SetDefault("rate_limit", 20)
	v.SetDefault("rate_burst", 40)
	v.SetDefault("allowed_origins", []string{})

	readFile(v, "config")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("sharding", cfg.Sharding).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Sharding {
	case "room", "single":
	default:
		return fmt.Errorf("%w: sharding %q", ErrInvalidConfig, c.Sharding)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Port)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("%w: send_buffer must be positive", ErrInvalidConfig)
	}
	if c.PingPeriod >= c.PongWait {
		return fmt.Errorf("%w: ping_period must be shorter than pong_wait", ErrInvalidConfig)
	}
	return nil
}

// LoadClient reads the CLI client's settings; flags override env and file.
func LoadClient(args []string) (*ClientConfig, error) {
	v := newViper()

	fs := pflag.NewFlagSet("flipper", pflag.ContinueOnError)
	fs.String("url", "ws://localhost:8080/ws", "room server websocket URL")
	fs.String("room", "", "room id to join")
	fs.String("user_id", "", "user id announced on join")
	fs.String("avatar", "", "avatar announced on join")
	fs.Duration("initial_backoff", time.Second, "first reconnect delay")
	fs.Duration("max_backoff", 30*time.Second, "reconnect delay cap")
	fs.String("log_level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	readFile(v, "client")

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if cfg.Room == "" {
		return nil, fmt.Errorf("%w: room is required", ErrInvalidConfig)
	}
	if cfg.InitialBackoff <= 0 || cfg.MaxBackoff < cfg.InitialBackoff {
		return nil, fmt.Errorf("%w: backoff %s..%s", ErrInvalidConfig, cfg.InitialBackoff, cfg.MaxBackoff)
	}
	return &cfg, nil
}
