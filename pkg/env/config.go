package env

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"torboxdav/pkg/logger"
)

// LoadEnv loads environment variables from a .env file. Variables already set in the
// process environment win over the file.
func LoadEnv(envPath string) error {
	if _, statErr := os.Stat(envPath); statErr != nil {
		return statErr
	}

	if err := godotenv.Load(envPath); err != nil {
		return err
	}

	logger.Debug("Environment variables loaded from %s", envPath)
	return nil
}

// GetString returns the environment variable value or a default if not set
func GetString(key string, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	return value
}

// GetInt returns the environment variable value as int or a default if not set
func GetInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Warn("Environment variable %s is not a valid integer, using default value %d instead", key, defaultValue)
		return defaultValue
	}

	return value
}

// GetDuration parses a Go duration ("90m", "3h") or a plain number of seconds
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}

	logger.Warn("Environment variable %s is not a valid duration, using default value %s instead", key, defaultValue)
	return defaultValue
}
