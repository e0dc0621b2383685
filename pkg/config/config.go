// Package config provides configuration management for the importer.
// It loads configuration from environment variables and .env files, and
// bank profiles from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Beancount BeancountConfig
	Import    ImportConfig
	Debug     bool
}

// BeancountConfig represents Beancount-related configuration.
type BeancountConfig struct {
	Root string
}

// ImportConfig represents importer configuration.
type ImportConfig struct {
	DBPath       string
	DocumentsDir string
	ProfilesPath string
	Workers      int
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	workers, err := parseIntEnv("BEAN_IMPORT_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid BEAN_IMPORT_WORKERS: %w", err)
	}

	config := &Config{
		Beancount: BeancountConfig{
			Root: getEnvOrDefault("BEANCOUNT_ROOT", "./beancount"),
		},
		Import: ImportConfig{
			DBPath:       os.Getenv("BEAN_IMPORT_DB_PATH"),
			DocumentsDir: os.Getenv("BEAN_IMPORT_DOCUMENTS_DIR"),
			ProfilesPath: getEnvOrDefault("BEAN_IMPORT_PROFILES", "config/profiles.yaml"),
			Workers:      workers,
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate validates the configuration.
// It checks if all required fields are set.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "beancount":
			switch path[1] {
			case "root":
				value = c.Beancount.Root
			}
		case "import":
			switch path[1] {
			case "dbPath":
				value = c.Import.DBPath
			case "documentsDir":
				value = c.Import.DocumentsDir
			case "profilesPath":
				value = c.Import.ProfilesPath
			case "workers":
				if c.Import.Workers > 0 {
					value = strconv.Itoa(c.Import.Workers)
				}
			}
		}

		if value == "" {
			missing = append(missing, joinPath(path))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an int from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}

	return parsed, nil
}

// joinPath joins a path slice into a dot-separated string.
func joinPath(path []string) string {
	result := ""
	for i, p := range path {
		if i > 0 {
			result += "."
		}
		result += p
	}
	return result
}
