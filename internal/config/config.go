package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/keywords"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/llm"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/tools"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	ControlPlanePort    string
	ControlPlaneURL     string
	// ControlPlaneTimeout bounds each worker event post to the control plane.
	ControlPlaneTimeout time.Duration
	DataAPIURL          string
	DataAPIRPS          float64
	DataAPITimeout      time.Duration
	DataAPIFanout       int
	StoreDriver         string
	PostgresURL         string
	TemporalEnabled     bool
	TemporalAddress     string
	TemporalTaskQueue   string
	LLMProvider         string
	LLMModel            string
	LLMBaseURL          string
	OpenAIAPIKey        string
	OpenRouterAPIKey    string
	DefaultCountry      string
	CPCMin              float64
	CPCMax              float64
	LogLevel            string
	LogFormat           string
}

func Load() Config {
	controlPlanePort := getEnv("CONTROL_PLANE_PORT", "8080")
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	return Config{
		ControlPlanePort:    controlPlanePort,
		ControlPlaneURL:     getEnv("CONTROL_PLANE_URL", "http://localhost:"+controlPlanePort),
		ControlPlaneTimeout: time.Duration(getEnvInt("CONTROL_PLANE_TIMEOUT_SECONDS", 10)) * time.Second,
		DataAPIURL:          getEnv("DATA_API_URL", "http://localhost:3001"),
		DataAPIRPS:          getEnvFloat("DATA_API_RPS", 0),
		DataAPITimeout:      time.Duration(getEnvInt("DATA_API_TIMEOUT_SECONDS", 60)) * time.Second,
		DataAPIFanout:       getEnvInt("DATA_API_FANOUT", 4),
		StoreDriver:         strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		PostgresURL:         postgresURL,
		TemporalEnabled:     getEnvBool("TEMPORAL_ENABLED", true),
		TemporalAddress:     getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue:   getEnv("TEMPORAL_TASK_QUEUE", "keyword-research"),
		LLMProvider:         getEnv("LLM_PROVIDER", "openai"),
		LLMModel:            getEnv("LLM_MODEL", "gpt-4o"),
		LLMBaseURL:          getEnv("LLM_BASE_URL", ""),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenRouterAPIKey:    getEnv("OPENROUTER_API_KEY", ""),
		DefaultCountry:      strings.ToUpper(getEnv("DEFAULT_COUNTRY", "US")),
		CPCMin:              getEnvFloat("CPC_MIN", 3),
		CPCMax:              getEnvFloat("CPC_MAX", 8),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
	}
}

func (c Config) LLM() llm.Config {
	return llm.Config{
		Provider:         c.LLMProvider,
		Model:            c.LLMModel,
		BaseURL:          c.LLMBaseURL,
		OpenAIAPIKey:     c.OpenAIAPIKey,
		OpenRouterAPIKey: c.OpenRouterAPIKey,
	}
}

// ToolOptions is the data backend client template. The pipeline fills in the
// base URL and country per run.
func (c Config) ToolOptions() tools.Options {
	return tools.Options{
		BaseURL:           c.DataAPIURL,
		DefaultCountry:    c.DefaultCountry,
		Timeout:           c.DataAPITimeout,
		RequestsPerSecond: c.DataAPIRPS,
		FanoutLimit:       c.DataAPIFanout,
	}
}

func (c Config) CPCRange() keywords.CPCRange {
	return keywords.CPCRange{Min: c.CPCMin, Max: c.CPCMax}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "keywords")
	password := getEnv("POSTGRES_PASSWORD", "keywords")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "keywords")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
