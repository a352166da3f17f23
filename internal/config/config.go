// Package config handles loading and validating configuration from environment variables.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Token is the bearer token for API authentication.
	Token string
	// DBPath is the SQLite conversation database path.
	DBPath string
	// ServerAddr is the HTTP listen address (e.g., :80, :8080).
	ServerAddr string
	// ValidUsers defines accepted X-Playhead-User values.
	ValidUsers []string
	// OpenAIKey is the API key for the model endpoint.
	OpenAIKey string
	// OpenAIBaseURL overrides the model endpoint base URL. Empty selects
	// the OpenAI API.
	OpenAIBaseURL string
	// ChatModel is the model used for agent turns.
	ChatModel string
	// TitleModel is the model used for conversation title generation.
	TitleModel string
	// AgentMaxRunDuration bounds one agent turn's lifetime.
	AgentMaxRunDuration time.Duration
	// AgentMaxToolCallsPerRun bounds tool calls executed in one turn.
	AgentMaxToolCallsPerRun int
}

// Load reads configuration from environment variables.
// It loads .env file if present, but environment variables take precedence.
func Load() (*Config, error) {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Token:         os.Getenv("PLAYHEAD_TOKEN"),
		DBPath:        os.Getenv("PLAYHEAD_DB"),
		ServerAddr:    os.Getenv("SERVER_ADDR"),
		ValidUsers:    parseCSV(os.Getenv("VALID_USERS")),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		ChatModel:     strings.TrimSpace(os.Getenv("AGENT_MODEL")),
		TitleModel:    strings.TrimSpace(os.Getenv("TITLE_MODEL")),
	}
	cfg.AgentMaxRunDuration = parseDurationEnv("AGENT_MAX_RUN_DURATION", 2*time.Minute)
	cfg.AgentMaxToolCallsPerRun = parseIntEnv("AGENT_MAX_TOOL_CALLS_PER_RUN", 10)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("PLAYHEAD_TOKEN is required")
	}
	if c.DBPath == "" {
		c.DBPath = "playhead.db"
	}
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.ChatModel == "" {
		c.ChatModel = "gpt-4o-mini"
	}
	if c.TitleModel == "" {
		c.TitleModel = c.ChatModel
	}
	// OpenAIKey is optional - agent chat degrades to an error reply without it
	return nil
}

func parseCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseIntEnv(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}

func parseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}
