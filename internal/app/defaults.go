package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - WIPE_CONFIG_PATH: config file location (default: ~/.config/wipe.toml)
//   - WIPE_HOME: base directory for wipe data (default: ~/.local/share/wipe)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path":  configPath,
		"base_dir":     baseDir,
		"log_dir":      filepath.Join(baseDir, "log"),
		"protect_file": filepath.Join(baseDir, "protected"),
	}, nil
}

// getConfigPath returns the config file path, checking WIPE_CONFIG_PATH first,
// then falling back to ~/.config/wipe.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("WIPE_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "wipe.toml"), nil
}

// getBaseDir returns the base directory for wipe data, checking WIPE_HOME first,
// then falling back to the XDG default ~/.local/share/wipe.
func getBaseDir() (string, error) {
	if path := os.Getenv("WIPE_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "wipe"), nil
}
