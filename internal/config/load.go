package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables take precedence over file values.
// Returns a populated Config struct or an error if loading or validation
// fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config.yaml next to the binary or in the working directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; env vars and defaults apply.
	}

	v.SetEnvPrefix("GLYPHSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindEnvKeys binds every scalar config key explicitly. AutomaticEnv only
// resolves keys viper already knows about (defaults or file values), so
// keys without defaults — the Redis address, the Gemini credentials — would
// otherwise be invisible to Unmarshal when set through the environment.
// The providers list is structured and comes from the config file only.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.port",
		"server.log_level",
		"dispatch.rate_limit_backoff_ms",
		"pipeline.max_step_retries",
		"render.debounce_ms",
		"render.max_concurrent",
		"store.backend",
		"store.redis_addr",
		"store.redis_db",
		"llm.gemini_api_key",
		"llm.gemini_model",
		"llm.temperature",
		"llm.max_output_tokens",
	}
	for _, key := range keys {
		// BindEnv with one argument uses the prefix and key replacer.
		_ = v.BindEnv(key)
	}
}

// setDefaults applies default values. Numeric tuning knobs deliberately
// have defaults so a minimal deployment only configures providers.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("dispatch.rate_limit_backoff_ms", 3000)

	v.SetDefault("pipeline.max_step_retries", 2)

	v.SetDefault("render.debounce_ms", 300)
	v.SetDefault("render.max_concurrent", 3)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis_db", 0)

	v.SetDefault("llm.gemini_model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_output_tokens", 8192)
}
