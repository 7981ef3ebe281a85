package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Encoder struct {
		Address        string        `yaml:"address"`
		Password       string        `yaml:"password"`
		ConnectTimeout time.Duration `yaml:"connect_timeout"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"encoder"`

	Platform struct {
		BaseURL           string        `yaml:"base_url"`
		AccessToken       string        `yaml:"access_token"`
		RequestTimeout    time.Duration `yaml:"request_timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Burst             int           `yaml:"burst"`
	} `yaml:"platform"`

	Stream struct {
		Title       string        `yaml:"title"`
		Description string        `yaml:"description"`
		Visibility  string        `yaml:"visibility"`
		SceneHint   string        `yaml:"scene_hint"`
		StartDelay  time.Duration `yaml:"start_delay"`
	} `yaml:"stream"`

	Session struct {
		AwaitActiveTimeout time.Duration `yaml:"await_active_timeout"`
		PromotePollCount   int           `yaml:"promote_poll_count"`
		PromotePollDelay   time.Duration `yaml:"promote_poll_delay"`
		PromoteGraceWait   time.Duration `yaml:"promote_grace_wait"`
		SettleDelay        time.Duration `yaml:"settle_delay"`
	} `yaml:"session"`

	Overlay struct {
		Enabled    bool          `yaml:"enabled"`
		SourceName string        `yaml:"source_name"`
		Interval   time.Duration `yaml:"interval"`
		TimeFormat string        `yaml:"time_format"`
	} `yaml:"overlay"`

	Server struct {
		Enabled         bool          `yaml:"enabled"`
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Auth struct {
		Enabled        bool          `yaml:"enabled"`
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limiting"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Encoder
	if c.Encoder.Address == "" {
		return fmt.Errorf("encoder.address must not be empty")
	}
	if c.Encoder.ConnectTimeout <= 0 {
		return fmt.Errorf("encoder.connect_timeout must be > 0")
	}
	if c.Encoder.RequestTimeout <= 0 {
		return fmt.Errorf("encoder.request_timeout must be > 0")
	}
	if c.Encoder.PingInterval <= 0 {
		return fmt.Errorf("encoder.ping_interval must be > 0")
	}

	// Platform
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url must not be empty")
	}
	if c.Platform.RequestTimeout <= 0 {
		return fmt.Errorf("platform.request_timeout must be > 0")
	}
	if c.Platform.RequestsPerSecond <= 0 {
		return fmt.Errorf("platform.requests_per_second must be > 0")
	}
	if c.Platform.Burst <= 0 {
		return fmt.Errorf("platform.burst must be > 0")
	}

	// Stream
	switch c.Stream.Visibility {
	case "public", "private", "unlisted":
	default:
		return fmt.Errorf("stream.visibility must be one of public, private, unlisted")
	}
	if c.Stream.StartDelay < 0 {
		return fmt.Errorf("stream.start_delay must be >= 0")
	}

	// Session
	if c.Session.AwaitActiveTimeout <= 0 {
		return fmt.Errorf("session.await_active_timeout must be > 0")
	}
	if c.Session.PromotePollCount <= 0 {
		return fmt.Errorf("session.promote_poll_count must be > 0")
	}
	if c.Session.PromotePollDelay <= 0 {
		return fmt.Errorf("session.promote_poll_delay must be > 0")
	}
	if c.Session.PromoteGraceWait <= 0 {
		return fmt.Errorf("session.promote_grace_wait must be > 0")
	}
	if c.Session.SettleDelay < 0 {
		return fmt.Errorf("session.settle_delay must be >= 0")
	}

	// Overlay
	if c.Overlay.Enabled {
		if c.Overlay.SourceName == "" {
			return fmt.Errorf("overlay.source_name must not be empty when overlay.enabled=true")
		}
		if c.Overlay.Interval <= 0 {
			return fmt.Errorf("overlay.interval must be > 0 when overlay.enabled=true")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Address == "" {
			return fmt.Errorf("server.address must not be empty when server.enabled=true")
		}
		if c.Server.ReadTimeout <= 0 {
			return fmt.Errorf("server.read_timeout must be > 0")
		}
		if c.Server.WriteTimeout <= 0 {
			return fmt.Errorf("server.write_timeout must be > 0")
		}
		if c.Server.ShutdownTimeout <= 0 {
			return fmt.Errorf("server.shutdown_timeout must be > 0")
		}
	}

	// Auth
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret must not be empty when auth.enabled=true")
		}
		if c.Auth.AccessTokenTTL <= 0 {
			return fmt.Errorf("auth.access_token_ttl must be > 0 when auth.enabled=true")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
	}

	// Monitoring
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("monitoring.prometheus_port must be > 0 when prometheus_enabled=true")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Encoder.Address = "ws://localhost:4455"
	cfg.Encoder.ConnectTimeout = 10 * time.Second
	cfg.Encoder.RequestTimeout = 10 * time.Second
	cfg.Encoder.PingInterval = 30 * time.Second

	cfg.Platform.BaseURL = "https://www.googleapis.com/youtube/v3"
	cfg.Platform.RequestTimeout = 30 * time.Second
	cfg.Platform.RequestsPerSecond = 2
	cfg.Platform.Burst = 5

	cfg.Stream.Title = "Live broadcast"
	cfg.Stream.Visibility = "unlisted"
	cfg.Stream.StartDelay = 5 * time.Second

	cfg.Session.AwaitActiveTimeout = 60 * time.Second
	cfg.Session.PromotePollCount = 3
	cfg.Session.PromotePollDelay = 3 * time.Second
	cfg.Session.PromoteGraceWait = 10 * time.Second
	cfg.Session.SettleDelay = 500 * time.Millisecond

	cfg.Overlay.Enabled = false
	cfg.Overlay.SourceName = "clock"
	cfg.Overlay.Interval = 10 * time.Second
	cfg.Overlay.TimeFormat = "[2006/01/02 15:04:05]"

	cfg.Server.Enabled = true
	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Auth.Enabled = false
	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 10
	cfg.RateLimiting.Burst = 20

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "streamcast"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("STREAMCAST_ENCODER_ADDRESS"); addr != "" {
		c.Encoder.Address = addr
	}
	if pass := os.Getenv("STREAMCAST_ENCODER_PASSWORD"); pass != "" {
		c.Encoder.Password = pass
	}
	if token := os.Getenv("STREAMCAST_PLATFORM_TOKEN"); token != "" {
		c.Platform.AccessToken = token
	}
	if addr := os.Getenv("STREAMCAST_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("STREAMCAST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("STREAMCAST_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
}
