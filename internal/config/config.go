package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Wyydra/looper/internal/core/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	EngineMemory = "memory"
	EngineWS     = "ws"

	DefaultWatermarkURL = "https://storage.googleapis.com/sogood-live-backend.appspot.com/assets/WATERMARK.png"
)

type Config struct {
	AppID       string            `mapstructure:"app_id"`
	Channel     string            `mapstructure:"channel"`
	Token       string            `mapstructure:"token"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Watermark   WatermarkConfig   `mapstructure:"watermark"`
	Viewport    ViewportConfig    `mapstructure:"viewport"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Rendezvous  RendezvousConfig  `mapstructure:"rendezvous"`
	Log         LogConfig         `mapstructure:"log"`
}

type EngineConfig struct {
	Kind          string        `mapstructure:"kind"`
	RendezvousURL string        `mapstructure:"rendezvous_url"`
	OpTimeout     time.Duration `mapstructure:"op_timeout"`
	Bots          int           `mapstructure:"bots"`
}

type WatermarkConfig struct {
	URL       string                    `mapstructure:"url"`
	CacheDir  string                    `mapstructure:"cache_dir"`
	Placement domain.WatermarkPlacement `mapstructure:"placement"`
}

type ViewportConfig struct {
	Height float64 `mapstructure:"height"`
}

type PermissionsConfig struct {
	Mode string `mapstructure:"mode"`
}

type RendezvousConfig struct {
	Addr      string `mapstructure:"addr"`
	ReadLimit int64  `mapstructure:"read_limit"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// NewViper returns a viper instance with every default set and LOOPER_*
// environment variables bound.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("channel", "looper")
	v.SetDefault("token", "")
	v.SetDefault("engine.kind", EngineWS)
	v.SetDefault("engine.rendezvous_url", "ws://localhost:8080/ws")
	v.SetDefault("engine.op_timeout", "10s")
	v.SetDefault("engine.bots", 0)
	v.SetDefault("watermark.url", DefaultWatermarkURL)
	v.SetDefault("watermark.cache_dir", defaultCacheDir())
	v.SetDefault("watermark.placement.x", domain.DefaultWatermarkX)
	v.SetDefault("watermark.placement.width", domain.DefaultWatermarkWidth)
	v.SetDefault("watermark.placement.height", domain.DefaultWatermarkHeight)
	v.SetDefault("viewport.height", 800)
	v.SetDefault("permissions.mode", "device")
	v.SetDefault("rendezvous.addr", ":8080")
	v.SetDefault("rendezvous.read_limit", 4096)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "looper.log")

	v.SetEnvPrefix("LOOPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file, or looper.yaml from the working directory or the user
// config directory when file is empty, and decodes the result. A missing
// default file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("looper")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "looper"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Debug().Str("module", "config").Msg("No config file found, using defaults")
	} else {
		log.Debug().Str("module", "config").Str("file", v.ConfigFileUsed()).Msg("Loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !v.IsSet("watermark.placement.y") {
		cfg.Watermark.Placement.Y = cfg.Viewport.Height / 2
	}
	return &cfg, nil
}

// ValidateCall checks the settings the call screen depends on.
func (c *Config) ValidateCall() error {
	var errs []error
	if c.AppID == "" {
		errs = append(errs, errors.New("app_id is required"))
	}
	if err := domain.ValidateChannelName(c.Channel); err != nil {
		errs = append(errs, fmt.Errorf("channel: %w", err))
	}
	switch c.Engine.Kind {
	case EngineMemory:
	case EngineWS:
		if c.Engine.RendezvousURL == "" {
			errs = append(errs, errors.New("engine.rendezvous_url is required for the ws engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("engine.kind %q: want %q or %q", c.Engine.Kind, EngineMemory, EngineWS))
	}
	if c.Engine.Bots < 0 {
		errs = append(errs, errors.New("engine.bots must not be negative"))
	}
	if c.Viewport.Height <= 0 {
		errs = append(errs, errors.New("viewport.height must be positive"))
	}
	if err := c.Watermark.Placement.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "looper", "watermarks")
}
