package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/outreach-cli/internal/abtest"
	"github.com/sells-group/outreach-cli/internal/compliance"
	"github.com/sells-group/outreach-cli/internal/quota"
)

// Config holds the full application configuration.
type Config struct {
	Timezone   string            `yaml:"timezone" mapstructure:"timezone"`
	Store      StoreConfig       `yaml:"store" mapstructure:"store"`
	Redis      RedisConfig       `yaml:"redis" mapstructure:"redis"`
	Anthropic  AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Google     GoogleConfig      `yaml:"google" mapstructure:"google"`
	Registry   RegistryConfig    `yaml:"registry" mapstructure:"registry"`
	Perplexity PerplexityConfig  `yaml:"perplexity" mapstructure:"perplexity"`
	Scrape     ScrapeConfig      `yaml:"scrape" mapstructure:"scrape"`
	Enrich     EnrichConfig      `yaml:"enrich" mapstructure:"enrich"`
	Compliance compliance.Config `yaml:"compliance" mapstructure:"compliance"`
	ABTest     abtest.Config     `yaml:"abtest" mapstructure:"abtest"`
	Sequence   SequenceConfig    `yaml:"sequence" mapstructure:"sequence"`
	SendTime   SendTimeConfig    `yaml:"sendtime" mapstructure:"sendtime"`
	Quota      quota.Config      `yaml:"quota" mapstructure:"quota"`
	Pipeline   PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Notify     NotifyConfig      `yaml:"notify" mapstructure:"notify"`
	Server     ServerConfig      `yaml:"server" mapstructure:"server"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the document store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RedisConfig locates the quota counters.
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// AnthropicConfig holds Anthropic API settings. An empty key disables the
// LLM tier: sequences use the templates and replies the keyword rules.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// GoogleConfig holds Places API settings.
type GoogleConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Language string `yaml:"language" mapstructure:"language"`
	Region   string `yaml:"region" mapstructure:"region"`
}

// RegistryConfig holds the company registry endpoint.
type RegistryConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ScrapeConfig configures the website source.
type ScrapeConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// EnrichConfig paces the waterfall.
type EnrichConfig struct {
	// Sources lists the waterfall in order. Sources without credentials
	// are skipped at start-up.
	Sources          []string      `yaml:"sources" mapstructure:"sources"`
	CallInterval     time.Duration `yaml:"call_interval" mapstructure:"call_interval"`
	BatchInterval    time.Duration `yaml:"batch_interval" mapstructure:"batch_interval"`
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset" mapstructure:"breaker_reset"`
}

// SequenceConfig configures message generation.
type SequenceConfig struct {
	MessagingChannel string        `yaml:"messaging_channel" mapstructure:"messaging_channel"`
	LLMInterval      time.Duration `yaml:"llm_interval" mapstructure:"llm_interval"`
}

// SendTimeConfig points at an optional schedule table replacing the
// embedded one.
type SendTimeConfig struct {
	TablePath string `yaml:"table_path" mapstructure:"table_path"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	Concurrency  int           `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	SweepLimit   int           `yaml:"sweep_limit" mapstructure:"sweep_limit"`
	RetryInitial time.Duration `yaml:"retry_initial" mapstructure:"retry_initial"`
	RetryMax     time.Duration `yaml:"retry_max" mapstructure:"retry_max"`
}

// NotifyConfig configures where operator notifications go.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	comp := compliance.DefaultConfig()
	ab := abtest.DefaultConfig()
	q := quota.DefaultConfig()
	warmup := make([]map[string]any, 0, len(q.Warmup))
	for _, p := range q.Warmup {
		warmup = append(warmup, map[string]any{"days": p.Days, "daily_limit": p.DailyLimit})
	}

	v.SetDefault("timezone", "Europe/Paris")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "file:outreach.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.temperature", 0.3)
	v.SetDefault("google.language", "fr")
	v.SetDefault("google.region", "fr")
	v.SetDefault("registry.base_url", "https://recherche-entreprises.api.gouv.fr")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.user_agent", "outreach-cli/1.0")
	v.SetDefault("enrich.sources", []string{"website", "maps", "registry", "network"})
	v.SetDefault("enrich.call_interval", 200*time.Millisecond)
	v.SetDefault("enrich.batch_interval", time.Second)
	v.SetDefault("enrich.breaker_threshold", 5)
	v.SetDefault("enrich.breaker_reset", 30*time.Second)
	v.SetDefault("compliance.max_touches", comp.MaxTouches)
	v.SetDefault("compliance.touch_window", comp.TouchWindow)
	v.SetDefault("compliance.next_contact_gap", comp.NextContactGap)
	v.SetDefault("compliance.bounce_threshold", comp.BounceThreshold)
	v.SetDefault("compliance.scope", string(comp.Scope))
	v.SetDefault("abtest.min_sample_size", ab.MinSampleSize)
	v.SetDefault("abtest.confidence_threshold", ab.ConfidenceThreshold)
	v.SetDefault("abtest.target_metric", string(ab.TargetMetric))
	v.SetDefault("sequence.messaging_channel", "sms")
	v.SetDefault("sequence.llm_interval", 500*time.Millisecond)
	v.SetDefault("quota.daily_limit", q.DailyLimit)
	v.SetDefault("quota.warmup", warmup)
	v.SetDefault("quota.key_prefix", q.KeyPrefix)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.sweep_limit", 500)
	v.SetDefault("pipeline.retry_initial", time.Minute)
	v.SetDefault("pipeline.retry_max", 6*time.Hour)

	// Read config file (optional)
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

// Modes accepted by Validate.
const (
	ModeStore    = "store"
	ModeRun      = "run"
	ModeDispatch = "dispatch"
	ModeLocal    = "local"
	ModeServe    = "serve"
)

// Validate checks the keys the given command mode needs. All problems are
// reported together.
func (c *Config) Validate(mode string) error {
	var missing []string
	requireStore := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			missing = append(missing, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	}

	switch mode {
	case ModeStore, ModeRun:
		requireStore()
	case ModeDispatch:
		requireStore()
		if c.Redis.URL == "" {
			missing = append(missing, "redis.url is required")
		}
	case ModeLocal:
	case ModeServe:
		requireStore()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 50 {
		missing = append(missing, fmt.Sprintf("pipeline.concurrency must be between 1 and 50, got %d", c.Pipeline.Concurrency))
	}
	if c.Compliance.MaxTouches <= 0 {
		missing = append(missing, "compliance.max_touches must be > 0")
	}
	if t := c.ABTest.ConfidenceThreshold; t <= 0 || t >= 1 {
		missing = append(missing, fmt.Sprintf("abtest.confidence_threshold must be in (0, 1), got %v", t))
	}
	switch c.Sequence.MessagingChannel {
	case "", "sms", "whatsapp":
	default:
		missing = append(missing, fmt.Sprintf("sequence.messaging_channel must be sms or whatsapp, got %q", c.Sequence.MessagingChannel))
	}
	if _, err := c.Location(); err != nil {
		missing = append(missing, err.Error())
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// Location resolves Timezone. An empty value means UTC.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "timezone %q is invalid", c.Timezone)
	}
	return loc, nil
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
