package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// FindEnvFile returns the nearest file called name in the working directory
// or one of its parents. An absolute name is only checked for existence.
func FindEnvFile(name string) (string, error) {
	if name == "" {
		name = defaultEnvFile
	}
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", err
		}
		return name, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		up := filepath.Dir(dir)
		if up == dir {
			return "", fmt.Errorf("%s: %w", name, os.ErrNotExist)
		}
		dir = up
	}
}

// exportEnvFile loads the first of names that FindEnvFile resolves, falling
// back to .env in the working directory. Variables already set in the process
// are left alone. It returns the file used, or "" when there was none.
func exportEnvFile(logger *slog.Logger, names ...string) string {
	for _, name := range names {
		path, err := FindEnvFile(name)
		if err != nil {
			logger.Debug("Env file skipped", "name", name, "error", err)
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.Error("Env file unreadable", "path", path, "error", err)
			continue
		}
		return path
	}
	if err := godotenv.Load(defaultEnvFile); err != nil {
		return ""
	}
	return defaultEnvFile
}
