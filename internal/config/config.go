package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	OCR         OCRConfig         `yaml:"ocr" mapstructure:"ocr"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Arbitration ArbitrationConfig `yaml:"arbitration" mapstructure:"arbitration"`
	Knowledge   KnowledgeConfig   `yaml:"knowledge" mapstructure:"knowledge"`
	Notion      NotionConfig      `yaml:"notion" mapstructure:"notion"`
	Image       ImageConfig       `yaml:"image" mapstructure:"image"`
	Timeline    TimelineConfig    `yaml:"timeline" mapstructure:"timeline"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Pricing     PricingConfig     `yaml:"pricing" mapstructure:"pricing"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Monitoring  MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// OCRConfig configures the OCR stage.
type OCRConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"`
	URL         string        `yaml:"url" mapstructure:"url"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	JPEGQuality int           `yaml:"jpeg_quality" mapstructure:"jpeg_quality"`
	Language    string        `yaml:"language" mapstructure:"language"`
	Circuit     CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// CircuitConfig configures the optional OCR circuit breaker. A zero
// FailureThreshold disables it.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// LLMConfig configures the vision model used for extraction and verification.
type LLMConfig struct {
	Provider     string  `yaml:"provider" mapstructure:"provider"`
	Model        string  `yaml:"model" mapstructure:"model"`
	APIKey       string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	MaxTokens    int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// ArbitrationConfig configures the decision policy.
type ArbitrationConfig struct {
	Variant              string   `yaml:"variant" mapstructure:"variant"`
	EarlyAcceptThreshold float64  `yaml:"early_accept_threshold" mapstructure:"early_accept_threshold"`
	MinConfidenceFloor   *float64 `yaml:"min_confidence_floor" mapstructure:"min_confidence_floor"`
}

// KnowledgeConfig lists where known-good serial numbers come from.
type KnowledgeConfig struct {
	Serials      []string `yaml:"serials" mapstructure:"serials"`
	Files        []string `yaml:"files" mapstructure:"files"`
	NotionDB     string   `yaml:"notion_db" mapstructure:"notion_db"`
	NotionColumn string   `yaml:"notion_column" mapstructure:"notion_column"`
}

// NotionConfig holds Notion API credentials.
type NotionConfig struct {
	Token        string  `yaml:"token" mapstructure:"token"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// ImageConfig configures image preparation.
type ImageConfig struct {
	MaxDimension int `yaml:"max_dimension" mapstructure:"max_dimension"`
}

// TimelineConfig configures case timestamps.
type TimelineConfig struct {
	Zone string `yaml:"zone" mapstructure:"zone"`
}

// StoreConfig configures the result sink.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	CSVPath     string `yaml:"csv_path" mapstructure:"csv_path"`
	ImageDir    string `yaml:"image_dir" mapstructure:"image_dir"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PricingConfig holds per-model token pricing (USD per million tokens).
type PricingConfig struct {
	Models map[string]ModelPricing `yaml:"models" mapstructure:"models"`
}

// ModelPricing holds per-model token pricing.
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// MonitoringConfig configures the background result checks run by serve.
type MonitoringConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	MinSamples          int     `yaml:"min_samples" mapstructure:"min_samples"`
	NullRateThreshold   float64 `yaml:"null_rate_threshold" mapstructure:"null_rate_threshold"`
	EditRateThreshold   float64 `yaml:"edit_rate_threshold" mapstructure:"edit_rate_threshold"`
	OCRLatencyMs        int     `yaml:"ocr_latency_ms" mapstructure:"ocr_latency_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultKnownSerials seeds the knowledge base when nothing else is configured.
var DefaultKnownSerials = []string{"A5CF64090", "DEF456", "XYZ789", "SN202501", "CRIT998"}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SERIALSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ocr.provider", "http")
	v.SetDefault("ocr.url", "http://localhost:8500/scan_serial")
	v.SetDefault("ocr.timeout_secs", 10)
	v.SetDefault("ocr.jpeg_quality", 90)
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.circuit.failure_threshold", 0)
	v.SetDefault("ocr.circuit.reset_timeout_secs", 30)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.max_tokens", 50)
	v.SetDefault("llm.timeout_secs", 30)
	v.SetDefault("llm.rate_limit_rps", 0)
	v.SetDefault("arbitration.variant", "standard")
	v.SetDefault("arbitration.early_accept_threshold", 0.95)
	v.SetDefault("knowledge.serials", DefaultKnownSerials)
	v.SetDefault("knowledge.notion_column", "Serial")
	v.SetDefault("notion.rate_limit_rps", 3)
	v.SetDefault("image.max_dimension", 2048)
	v.SetDefault("timeline.zone", "Europe/Vienna")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "results/serialscan.db")
	v.SetDefault("store.csv_path", "results/experiments.csv")
	v.SetDefault("store.image_dir", "results/images")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.min_samples", 10)
	v.SetDefault("monitoring.null_rate_threshold", 0.5)
	v.SetDefault("monitoring.edit_rate_threshold", 0.3)
	v.SetDefault("monitoring.ocr_latency_ms", 5000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Keys without defaults must be bound to be visible to Unmarshal.
	for _, key := range []string{
		"ocr.api_key",
		"llm.model",
		"llm.api_key",
		"llm.base_url",
		"arbitration.min_confidence_floor",
		"knowledge.files",
		"knowledge.notion_db",
		"notion.token",
		"monitoring.enabled",
		"monitoring.webhook_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

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

	cfg.applyKeyFallbacks()
	return &cfg, nil
}

// applyKeyFallbacks fills provider API keys from their conventional
// environment variables when not configured explicitly.
func (c *Config) applyKeyFallbacks() {
	if c.LLM.APIKey != "" {
		return
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "gemini":
		c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

// Validate checks that the settings a command needs are present.
func (c *Config) Validate(command string) error {
	var errs []string

	switch command {
	case "scan", "serve":
		switch c.OCR.Provider {
		case "http":
			if c.OCR.URL == "" {
				errs = append(errs, "ocr.url is required for the http provider")
			}
		case "tesseract":
		default:
			errs = append(errs, "ocr.provider must be http or tesseract")
		}
		if c.LLM.APIKey == "" {
			errs = append(errs, "llm.api_key is required")
		}
		if c.Arbitration.EarlyAcceptThreshold < 0 || c.Arbitration.EarlyAcceptThreshold > 1 {
			errs = append(errs, "arbitration.early_accept_threshold must be within [0,1]")
		}
		if f := c.Arbitration.MinConfidenceFloor; f != nil && (*f < 0 || *f > 1) {
			errs = append(errs, "arbitration.min_confidence_floor must be within [0,1]")
		}
		if command == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
	}

	switch c.Store.Driver {
	case "sqlite", "postgres", "csv":
	default:
		errs = append(errs, "store.driver must be sqlite, postgres or csv")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
