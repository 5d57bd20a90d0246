// Package config resolves process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/quorvus/datachat/core"
)

// Provider names accepted by Config.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the resolved process configuration.
type Config struct {
	Addr     string
	Provider string
	// ModelName overrides the provider's default model when set.
	ModelName string

	OpenAIAPIKey    string
	AnthropicAPIKey string

	// WarehouseDSN enables the warehouse tool when set.
	WarehouseDSN     string
	WarehouseSchemas []string

	MemoryMaxTokens int
	Budget          core.ExecutionBudget

	LogLevel  string
	LogFormat string
}

// FromEnv reads configuration from DATACHAT_* and provider environment
// variables, applying defaults for everything unset.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("DATACHAT_ADDR", ":8000"),
		Provider:        strings.ToLower(envOr("DATACHAT_PROVIDER", ProviderOpenAI)),
		ModelName:       os.Getenv("DATACHAT_MODEL"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		WarehouseDSN:    os.Getenv("WAREHOUSE_DSN"),
		MemoryMaxTokens: envInt("DATACHAT_MEMORY_MAX_TOKENS", 4000),
		Budget: core.ExecutionBudget{
			MaxRetriesPerStep: envInt("DATACHAT_MAX_RETRIES_PER_STEP", 3),
			TotalMaxRetries:   envInt("DATACHAT_TOTAL_MAX_RETRIES", 10),
			MaxIterations:     envInt("DATACHAT_MAX_ITERATIONS", 20),
		},
		LogLevel:  envOr("DATACHAT_LOG_LEVEL", "info"),
		LogFormat: envOr("DATACHAT_LOG_FORMAT", "text"),
	}
	if schemas := os.Getenv("WAREHOUSE_SCHEMAS"); schemas != "" {
		for _, s := range strings.Split(schemas, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.WarehouseSchemas = append(cfg.WarehouseSchemas, s)
			}
		}
	}
	return cfg
}

// Validate checks provider selection, credentials and limits.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider %q", c.Provider)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", c.Provider)
		}
	default:
		return fmt.Errorf("unknown provider %q (want %q or %q)", c.Provider, ProviderOpenAI, ProviderAnthropic)
	}
	if c.MemoryMaxTokens <= 0 {
		return fmt.Errorf("memory max tokens must be positive, got %d", c.MemoryMaxTokens)
	}
	return c.Budget.Validate()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
