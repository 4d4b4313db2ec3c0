package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// ParseEnvFile parses KEY=VALUE pairs from a .env file
func ParseEnvFile(r io.Reader) (map[string]string, error) {
	values, err := godotenv.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file: %w", err)
	}
	return values, nil
}

// WriteEnvFile writes values to path, replacing it atomically
func WriteEnvFile(path string, values map[string]string) error {
	content, err := godotenv.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode env file: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".env-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write env file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set env file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close env file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace env file: %w", err)
	}
	return nil
}
