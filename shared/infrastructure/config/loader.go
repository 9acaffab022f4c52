package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads .env, then .env.<ENVIRONMENT>, then .env.local. Later
// files override earlier ones; variables already exported by the process
// are only overridden by the environment specific and local files.
func loadEnvFiles() error {
	if IsLambda() {
		return nil
	}

	if err := loadOptional(".env", godotenv.Load); err != nil {
		return err
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		if err := loadOptional(fmt.Sprintf(".env.%s", env), godotenv.Overload); err != nil {
			return err
		}
	}

	return loadOptional(".env.local", godotenv.Overload)
}

func loadOptional(path string, load func(filenames ...string) error) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
