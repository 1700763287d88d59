package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	"github.com/astromechza/pizza-relay/pkg/pizza"
)

const (
	DefaultPort       = 8081
	DefaultSendBuffer = 64
	EnvPrefix         = "PIZZA"
)

type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	MaxRequests int  `mapstructure:"max_requests"`
	MaxSlices   int  `mapstructure:"max_slices"`
	ClampSlices bool `mapstructure:"clamp_slices"`

	SendBuffer     int      `mapstructure:"send_buffer"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	JournalPath  string   `mapstructure:"journal_path"`
	JournalQueue int      `mapstructure:"journal_queue"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) Limits() pizza.Limits {
	return pizza.Limits{
		MaxRequests: c.MaxRequests,
		MaxSlices:   c.MaxSlices,
		ClampSlices: c.ClampSlices,
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return xerrors.Errorf("port %d out of range", c.Port)
	}
	if c.MaxRequests <= 0 {
		return xerrors.Errorf("max_requests must be positive, got %d", c.MaxRequests)
	}
	if c.ClampSlices && c.MaxSlices <= 0 {
		return xerrors.Errorf("max_slices must be positive when clamping, got %d", c.MaxSlices)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return xerrors.New("kafka_topic is required when kafka_brokers is set")
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("host", "")
	v.SetDefault("port", DefaultPort)
	v.SetDefault("max_requests", pizza.DefaultMaxRequests)
	v.SetDefault("max_slices", pizza.DefaultMaxSlices)
	v.SetDefault("clamp_slices", true)
	v.SetDefault("send_buffer", DefaultSendBuffer)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("journal_path", "")
	v.SetDefault("journal_queue", 256)
	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("kafka_topic", "pizza-requests")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// SOCKETIO_PORT is what deployments set; the lowercase form is still honoured for old setups
	_ = v.BindEnv("port", "SOCKETIO_PORT", "port", EnvPrefix+"_PORT")
	return v
}

// Load reads configuration from defaults, an optional .env file, an optional config file and the environment.
// An empty path looks for pizza.{json,yaml,toml} in ./config and the working directory and is fine if none exists.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, xerrors.Errorf("failed to load .env: %w", err)
	}

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pizza")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, xerrors.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, xerrors.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
