// Package config builds the server configuration from built-in defaults, an
// optional devserve.yaml next to the executable, and DEVSERVE_* environment
// variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sipweb/devserve/internal/server"
	"gopkg.in/yaml.v3"
)

const FileName = "devserve.yaml"

// File mirrors devserve.yaml. Pointer fields distinguish "unset" from the
// zero value.
type File struct {
	Host          *string           `yaml:"host"`
	Port          *int              `yaml:"port"`
	Directory     *string           `yaml:"directory"`
	TLS           *bool             `yaml:"tls"`
	CertFile      *string           `yaml:"cert_file"`
	KeyFile       *string           `yaml:"key_file"`
	CertGenerator *string           `yaml:"cert_generator"`
	DatabasePath  *string           `yaml:"database"`
	Compress      *bool             `yaml:"compress"`
	Watch         *bool             `yaml:"watch"`
	MIMETypes     map[string]string `yaml:"mime_types"`
	Log           LogFile           `yaml:"log"`
}

type LogFile struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Logging struct {
	Level  string
	Format string
}

// Lookup returns an environment value; os.LookupEnv in production.
type Lookup func(key string) (string, bool)

// Load resolves the base directory and returns the merged configuration.
func Load(lookup Lookup) (*server.Config, Logging, error) {
	baseDir, err := BaseDir(lookup)
	if err != nil {
		return nil, Logging{}, err
	}
	return LoadFrom(baseDir, lookup)
}

// BaseDir is DEVSERVE_BASE_DIR when set, otherwise the directory holding the
// running executable.
func BaseDir(lookup Lookup) (string, error) {
	if dir, ok := lookup("DEVSERVE_BASE_DIR"); ok && dir != "" {
		return filepath.Abs(dir)
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

func LoadFrom(baseDir string, lookup Lookup) (*server.Config, Logging, error) {
	cfg := server.DefaultConfig()
	cfg.BaseDir = baseDir
	logging := Logging{Level: "info", Format: "json"}

	file, err := readFile(filepath.Join(baseDir, FileName))
	if err != nil {
		return nil, logging, err
	}
	if file != nil {
		file.apply(&cfg, &logging)
	}

	if err := applyEnv(&cfg, &logging, lookup); err != nil {
		return nil, logging, err
	}

	return &cfg, logging, nil
}

func readFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &f, nil
}

func (f *File) apply(cfg *server.Config, logging *Logging) {
	if f.Host != nil {
		cfg.Host = *f.Host
	}
	if f.Port != nil {
		cfg.Port = strconv.Itoa(*f.Port)
	}
	if f.Directory != nil {
		cfg.Directory = *f.Directory
	}
	if f.TLS != nil {
		cfg.EnableTLS = *f.TLS
	}
	if f.CertFile != nil {
		cfg.CertFile = *f.CertFile
	}
	if f.KeyFile != nil {
		cfg.KeyFile = *f.KeyFile
	}
	if f.CertGenerator != nil {
		cfg.CertGenerator = *f.CertGenerator
	}
	if f.DatabasePath != nil {
		cfg.DatabasePath = *f.DatabasePath
	}
	if f.Compress != nil {
		cfg.Compress = *f.Compress
	}
	if f.Watch != nil {
		cfg.Watch = *f.Watch
	}
	for ext, ct := range f.MIMETypes {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.MIMETypes[strings.ToLower(ext)] = ct
	}
	if f.Log.Level != "" {
		logging.Level = f.Log.Level
	}
	if f.Log.Format != "" {
		logging.Format = f.Log.Format
	}
}

func applyEnv(cfg *server.Config, logging *Logging, lookup Lookup) error {
	getEnv := func(key, defaultValue string) string {
		if value, ok := lookup(key); ok && value != "" {
			return value
		}
		return defaultValue
	}

	cfg.Host = getEnv("DEVSERVE_HOST", cfg.Host)
	cfg.Port = getEnv("DEVSERVE_PORT", cfg.Port)
	cfg.Directory = getEnv("DEVSERVE_DIR", cfg.Directory)
	cfg.CertFile = getEnv("DEVSERVE_CERT_FILE", cfg.CertFile)
	cfg.KeyFile = getEnv("DEVSERVE_KEY_FILE", cfg.KeyFile)
	cfg.CertGenerator = getEnv("DEVSERVE_CERT_GENERATOR", cfg.CertGenerator)
	cfg.DatabasePath = getEnv("DEVSERVE_DB_PATH", cfg.DatabasePath)
	logging.Level = getEnv("DEVSERVE_LOG_LEVEL", logging.Level)
	logging.Format = getEnv("DEVSERVE_LOG_FORMAT", logging.Format)

	bools := []struct {
		key string
		dst *bool
	}{
		{"DEVSERVE_TLS", &cfg.EnableTLS},
		{"DEVSERVE_COMPRESS", &cfg.Compress},
		{"DEVSERVE_WATCH", &cfg.Watch},
	}
	for _, b := range bools {
		raw := getEnv(b.key, "")
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", b.key, raw, err)
		}
		*b.dst = v
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return fmt.Errorf("invalid port %q", cfg.Port)
	}

	return nil
}
