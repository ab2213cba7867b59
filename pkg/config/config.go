package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	API        APIConfig
	Realtime   RealtimeConfig
	Storage    StorageConfig
	Redis      RedisConfig
	Comparison ComparisonConfig
	Status     StatusConfig
	Login      LoginConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.API.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(cfg.Redis); err != nil {
		return nil, err
	}
	if cfg.Comparison.MaxItems <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvComparisonMaxItems)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BUILDMATCH_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"BUILDMATCH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BUILDMATCH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// APIConfig points at the marketplace backend. REST and realtime share the base URL.
type APIConfig struct {
	BaseURL string        `envconfig:"BUILDMATCH_API_URL" default:"http://localhost:3001"`
	Timeout time.Duration `envconfig:"BUILDMATCH_API_TIMEOUT" default:"15s"`
}

func (a *APIConfig) validate() error {
	a.BaseURL = strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	if a.BaseURL == "" {
		a.BaseURL = DefaultAPIBaseURL
	}
	u, err := url.Parse(a.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvAPIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", EnvAPIURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", EnvAPIURL)
	}
	return nil
}

type RealtimeConfig struct {
	Enabled           bool          `envconfig:"BUILDMATCH_REALTIME_ENABLED" default:"true"`
	Path              string        `envconfig:"BUILDMATCH_REALTIME_PATH" default:"/ws"`
	Reconnect         bool          `envconfig:"BUILDMATCH_REALTIME_RECONNECT" default:"true"`
	ReconnectAttempts int           `envconfig:"BUILDMATCH_REALTIME_RECONNECT_ATTEMPTS" default:"5"`
	ReconnectDelay    time.Duration `envconfig:"BUILDMATCH_REALTIME_RECONNECT_DELAY" default:"1s"`
	HandshakeTimeout  time.Duration `envconfig:"BUILDMATCH_REALTIME_HANDSHAKE_TIMEOUT" default:"10s"`
}

type StorageConfig struct {
	Driver string `envconfig:"BUILDMATCH_STORAGE_DRIVER" default:"file"`
	Path   string `envconfig:"BUILDMATCH_STORAGE_PATH" default:".buildmatch"`
	Key    string `envconfig:"BUILDMATCH_STORAGE_KEY" default:"buildmatch-store"`
}

func (s *StorageConfig) validate(redisCfg RedisConfig) error {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	switch s.Driver {
	case StorageDriverFile, StorageDriverSQLite:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("%s is required for the %s driver", EnvStoragePath, s.Driver)
		}
	case StorageDriverRedis:
		if redisCfg.URL == "" && redisCfg.Address == "" {
			return fmt.Errorf("either %s or %s is required for the redis driver", EnvRedisURL, EnvRedisAddr)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageDriver, s.Driver)
	}
	if strings.TrimSpace(s.Key) == "" {
		return fmt.Errorf("%s is required", EnvStorageKey)
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"BUILDMATCH_REDIS_URL"`
	Address      string        `envconfig:"BUILDMATCH_REDIS_ADDR"`
	Password     string        `envconfig:"BUILDMATCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"BUILDMATCH_REDIS_DB" default:"0"`
	DialTimeout  time.Duration `envconfig:"BUILDMATCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BUILDMATCH_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"BUILDMATCH_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type ComparisonConfig struct {
	MaxItems int `envconfig:"BUILDMATCH_COMPARISON_MAX_ITEMS" default:"10"`
}

type StatusConfig struct {
	Addr string `envconfig:"BUILDMATCH_STATUS_ADDR" default:"127.0.0.1:9464"`
}

// LoginConfig holds optional credentials used when no session can be restored.
type LoginConfig struct {
	Email    string `envconfig:"BUILDMATCH_LOGIN_EMAIL"`
	Password string `envconfig:"BUILDMATCH_LOGIN_PASSWORD"`
}

func (l LoginConfig) Present() bool {
	return strings.TrimSpace(l.Email) != "" && l.Password != ""
}
