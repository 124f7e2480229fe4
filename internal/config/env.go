package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// EnvPaths are the .env locations tried in order. Only the first one found is loaded.
var EnvPaths = []string{
	".env",
	".env.local",
	"../.env",
}

// LoadEnv loads environment variables from the first .env file found.
// Variables already set in the process environment win. It returns the path loaded,
// or "" when none exists.
func LoadEnv(paths ...string) (string, error) {
	if len(paths) == 0 {
		paths = EnvPaths
	}

	for _, envPath := range paths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			return "", fmt.Errorf("error loading %s file: %w", envPath, err)
		}
		return envPath, nil
	}

	return "", nil
}
