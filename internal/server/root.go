package server

import (
	"errors"
	"os"
	"path/filepath"
)

var errNotDirectory = errors.New("not a directory")

// ResolveServeRoot returns the absolute path of the directory to serve.
func ResolveServeRoot(config *Config) (string, error) {
	root, err := filepath.Abs(config.Path(config.Directory))
	if err != nil {
		return "", &ConfigurationError{Path: config.Directory, Err: err}
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", &ConfigurationError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return "", &ConfigurationError{Path: root, Err: errNotDirectory}
	}

	return root, nil
}
