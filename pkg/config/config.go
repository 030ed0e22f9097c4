package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Bridge struct {
		PingInterval   time.Duration `yaml:"ping_interval"`
		PongTimeout    time.Duration `yaml:"pong_timeout"`
		TokenSecret    string        `yaml:"token_secret"`
		TokenTTL       time.Duration `yaml:"token_ttl"`
		MessagesPerSec float64       `yaml:"messages_per_second"`
		MessageBurst   int           `yaml:"message_burst"`
	} `yaml:"bridge"`

	Engine struct {
		LoadTimeout         time.Duration `yaml:"load_timeout"`
		HealthProbeInterval time.Duration `yaml:"health_probe_interval"`
		HealthProbeMisses   int           `yaml:"health_probe_misses"`
		QualityCooldown     time.Duration `yaml:"quality_cooldown"`
		MaxRetries          int           `yaml:"max_retries"`
		EventBuffer         int           `yaml:"event_buffer"`
	} `yaml:"engine"`

	Adaptive struct {
		SampleInterval      time.Duration `yaml:"sample_interval"`
		BufferingWindow     time.Duration `yaml:"buffering_window"`
		ForcedDowngradeHits int           `yaml:"forced_downgrade_hits"`
		UpgradeBufferingMax int           `yaml:"upgrade_buffering_max"`
	} `yaml:"adaptive"`

	Pool struct {
		Capacity               int           `yaml:"capacity"`
		MemoryPressureDebounce time.Duration `yaml:"memory_pressure_debounce"`
	} `yaml:"pool"`

	Audio struct {
		MasterVolume          float64 `yaml:"master_volume"`
		FocusBoost            float64 `yaml:"focus_boost"`
		BackgroundAttenuation float64 `yaml:"background_attenuation"`
		DuckingFactor         float64 `yaml:"ducking_factor"`
		VolumeStep            float64 `yaml:"volume_step"`
	} `yaml:"audio"`

	Recovery struct {
		BaseDelay      time.Duration `yaml:"base_delay"`
		MaxDelay       time.Duration `yaml:"max_delay"`
		MaxRetries     int           `yaml:"max_retries"`
		JitterFraction float64       `yaml:"jitter_fraction"`
		AttemptTTL     time.Duration `yaml:"attempt_ttl"`
	} `yaml:"recovery"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
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

	// Bridge
	if c.Bridge.PingInterval <= 0 {
		return fmt.Errorf("bridge.ping_interval must be > 0")
	}
	if c.Bridge.PongTimeout <= 0 {
		return fmt.Errorf("bridge.pong_timeout must be > 0")
	}
	if c.Bridge.TokenSecret == "" {
		return fmt.Errorf("bridge.token_secret must not be empty")
	}
	if c.Bridge.TokenTTL <= 0 {
		return fmt.Errorf("bridge.token_ttl must be > 0")
	}

	// Engine
	if c.Engine.LoadTimeout <= 0 {
		return fmt.Errorf("engine.load_timeout must be > 0")
	}
	if c.Engine.HealthProbeInterval <= 0 {
		return fmt.Errorf("engine.health_probe_interval must be > 0")
	}
	if c.Engine.HealthProbeMisses <= 0 {
		return fmt.Errorf("engine.health_probe_misses must be > 0")
	}
	if c.Engine.QualityCooldown < 0 {
		return fmt.Errorf("engine.quality_cooldown must be >= 0")
	}
	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("engine.max_retries must be >= 0")
	}
	if c.Engine.EventBuffer <= 0 {
		return fmt.Errorf("engine.event_buffer must be > 0")
	}

	// Adaptive
	if c.Adaptive.SampleInterval <= 0 {
		return fmt.Errorf("adaptive.sample_interval must be > 0")
	}
	if c.Adaptive.BufferingWindow <= 0 {
		return fmt.Errorf("adaptive.buffering_window must be > 0")
	}
	if c.Adaptive.ForcedDowngradeHits <= 0 {
		return fmt.Errorf("adaptive.forced_downgrade_hits must be > 0")
	}

	// Pool
	if c.Pool.Capacity <= 0 {
		return fmt.Errorf("pool.capacity must be > 0")
	}
	if c.Pool.MemoryPressureDebounce < 0 {
		return fmt.Errorf("pool.memory_pressure_debounce must be >= 0")
	}

	// Audio
	if c.Audio.MasterVolume < 0 || c.Audio.MasterVolume > 1 {
		return fmt.Errorf("audio.master_volume must be in [0,1]")
	}
	if c.Audio.BackgroundAttenuation <= 0 || c.Audio.BackgroundAttenuation > 1 {
		return fmt.Errorf("audio.background_attenuation must be in (0,1]")
	}
	if c.Audio.DuckingFactor <= 0 || c.Audio.DuckingFactor > 1 {
		return fmt.Errorf("audio.ducking_factor must be in (0,1]")
	}
	if c.Audio.VolumeStep <= 0 || c.Audio.VolumeStep > 1 {
		return fmt.Errorf("audio.volume_step must be in (0,1]")
	}

	// Recovery
	if c.Recovery.BaseDelay <= 0 {
		return fmt.Errorf("recovery.base_delay must be > 0")
	}
	if c.Recovery.MaxDelay < c.Recovery.BaseDelay {
		return fmt.Errorf("recovery.max_delay must be >= recovery.base_delay")
	}
	if c.Recovery.MaxRetries <= 0 {
		return fmt.Errorf("recovery.max_retries must be > 0")
	}
	if c.Recovery.JitterFraction < 0 || c.Recovery.JitterFraction >= 1 {
		return fmt.Errorf("recovery.jitter_fraction must be in [0,1)")
	}
	if c.Recovery.AttemptTTL <= 0 {
		return fmt.Errorf("recovery.attempt_ttl must be > 0")
	}

	// Monitoring
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("monitoring.prometheus_port must be > 0 when prometheus_enabled=true")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
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

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Bridge.PingInterval = 30 * time.Second
	cfg.Bridge.PongTimeout = 60 * time.Second
	cfg.Bridge.TokenSecret = "change-me-in-production"
	cfg.Bridge.TokenTTL = 5 * time.Minute
	cfg.Bridge.MessagesPerSec = 50
	cfg.Bridge.MessageBurst = 100

	cfg.Engine.LoadTimeout = 15 * time.Second
	cfg.Engine.HealthProbeInterval = 10 * time.Second
	cfg.Engine.HealthProbeMisses = 2
	cfg.Engine.QualityCooldown = 30 * time.Second
	cfg.Engine.MaxRetries = 3
	cfg.Engine.EventBuffer = 64

	cfg.Adaptive.SampleInterval = 15 * time.Second
	cfg.Adaptive.BufferingWindow = 60 * time.Second
	cfg.Adaptive.ForcedDowngradeHits = 3
	cfg.Adaptive.UpgradeBufferingMax = 2

	cfg.Pool.Capacity = 8
	cfg.Pool.MemoryPressureDebounce = 5 * time.Second

	cfg.Audio.MasterVolume = 1.0
	cfg.Audio.FocusBoost = 0.2
	cfg.Audio.BackgroundAttenuation = 0.7
	cfg.Audio.DuckingFactor = 0.5
	cfg.Audio.VolumeStep = 0.1

	cfg.Recovery.BaseDelay = 2 * time.Second
	cfg.Recovery.MaxDelay = 30 * time.Second
	cfg.Recovery.MaxRetries = 3
	cfg.Recovery.JitterFraction = 0.2
	cfg.Recovery.AttemptTTL = time.Hour

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 50
	cfg.RateLimiting.Burst = 100

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("PLAYGRID_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("PLAYGRID_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("PLAYGRID_BRIDGE_TOKEN_SECRET"); secret != "" {
		c.Bridge.TokenSecret = secret
	}
	if addr := os.Getenv("PLAYGRID_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
}
