package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Dispatch DispatchConfig `mapstructure:"dispatch" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Render   RenderConfig   `mapstructure:"render" validate:"required"`
	Store    StoreConfig    `mapstructure:"store" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// ProviderConfig describes one external generation provider. Providers are
// tried in the order they appear in the configuration.
type ProviderConfig struct {
	Name      string `mapstructure:"name" validate:"required"`
	Endpoint  string `mapstructure:"endpoint" validate:"omitempty,url"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model" validate:"required"`
	Streaming bool   `mapstructure:"streaming"`
}

// DispatchConfig contains provider fallback settings.
type DispatchConfig struct {
	// Providers is the ordered fallback list; the first entry has the
	// highest priority.
	Providers []ProviderConfig `mapstructure:"providers" validate:"dive"`

	// RateLimitBackoffMs is the fixed delay before trying the next
	// provider after a 429 response.
	RateLimitBackoffMs int `mapstructure:"rate_limit_backoff_ms" validate:"gte=0"`
}

// PipelineConfig contains step pipeline engine settings.
type PipelineConfig struct {
	// MaxStepRetries is how many times a failing step is re-invoked
	// before the pipeline fails (total attempts = retries + 1).
	MaxStepRetries int `mapstructure:"max_step_retries" validate:"gte=0"`
}

// RenderConfig contains render scheduler settings.
type RenderConfig struct {
	DebounceMs    int `mapstructure:"debounce_ms" validate:"gte=0"`
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"required,gt=0"`
}

// StoreConfig selects and configures the artifact key-value store backend.
type StoreConfig struct {
	Backend   string `mapstructure:"backend" validate:"required,oneof=memory redis"`
	RedisAddr string `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB   int    `mapstructure:"redis_db" validate:"gte=0"`
}

// LLMConfig contains settings shared by provider adapters.
type LLMConfig struct {
	GeminiAPIKey    string  `mapstructure:"gemini_api_key"`
	GeminiModel     string  `mapstructure:"gemini_model"`
	Temperature     float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens" validate:"gte=0"`
}
