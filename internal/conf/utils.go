// conf/utils.go config file location helpers
package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/logger"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml. When one of
// them already holds a config file only that directory is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("config").
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	if runtime.GOOS == "windows" {
		configPaths = []string{".", filepath.Join(homeDir, "AppData", "Roaming", "wildwatch")}
	} else {
		configPaths = []string{".", filepath.Join(homeDir, ".config", "wildwatch"), "/etc/wildwatch"}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}
	return configPaths, nil
}

// FindConfigFile locates an existing configuration file.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, path := range configPaths {
		configFilePath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFilePath); err == nil {
			return configFilePath, nil
		}
	}
	return "", errors.Newf("config file not found").
		Component("config").
		Category(errors.CategoryNotFound).
		Context("operation", "find-config-file").
		Build()
}

// DefaultConfigPath is where `wildwatch config init` puts a new file.
func DefaultConfigPath() (string, error) {
	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	// skip the working directory unless it is the only candidate
	if len(paths) > 1 {
		return filepath.Join(paths[1], "config.yaml"), nil
	}
	return filepath.Join(paths[0], "config.yaml"), nil
}

// GetLogger returns the config package logger scoped to the config module.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
