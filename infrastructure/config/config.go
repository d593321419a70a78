package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ProfileConfig holds the active creator's profile used to steer generation.
type ProfileConfig struct {
	ChannelName string
	Tone        string
	Audience    string
	Keywords    []string
}

// GenerationConfig holds content provider settings.
type GenerationConfig struct {
	OpenAIAPIKey string
	ChatModel    string
	ImageModel   string
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string

	// Active project served by this instance
	ProjectID string

	// Content generation
	Generation GenerationConfig

	// Creator profile
	Profile ProfileConfig

	// Logging
	LogLevel string

	// Feature flags
	EnableCORS      bool
	EnableWebSocket bool

	// Path to the hot-reloadable YAML config; empty disables the watcher
	DynamicConfigPath string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "canvas")),

		ProjectID: getEnv("PROJECT_ID", ""),

		Generation: GenerationConfig{
			OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
			ChatModel:    getEnv("OPENAI_CHAT_MODEL", ""),
			ImageModel:   getEnv("OPENAI_IMAGE_MODEL", ""),
		},

		Profile: ProfileConfig{
			ChannelName: getEnv("CREATOR_CHANNEL_NAME", ""),
			Tone:        getEnv("CREATOR_TONE", ""),
			Audience:    getEnv("CREATOR_AUDIENCE", ""),
			Keywords:    getEnvList("CREATOR_KEYWORDS"),
		},

		// Logging and features
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		EnableCORS:      getEnvBool("ENABLE_CORS", true),
		EnableWebSocket: getEnvBool("ENABLE_WEBSOCKET", true),

		DynamicConfigPath: getEnv("DYNAMIC_CONFIG_PATH", ""),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig for backwards compatibility
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID is required")
	}

	if c.Environment == "production" {
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
		if c.Generation.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required in production")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvList gets a comma-separated environment variable as a slice
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
