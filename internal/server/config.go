package server

import (
	"net"
	"path/filepath"

	"github.com/sipweb/devserve/internal/static"
)

type Config struct {
	// BaseDir anchors every relative path below. It defaults to the
	// directory holding the executable, not the working directory.
	BaseDir string

	Host      string
	Port      string
	Directory string

	EnableTLS     bool
	CertFile      string
	KeyFile       string
	CertGenerator string

	DatabasePath string

	Compress bool
	Watch    bool

	// MIMETypes maps extensions (with the leading dot) to the Content-Type
	// sent for them.
	MIMETypes map[string]string
}

func DefaultConfig() Config {
	mimeTypes := make(map[string]string, len(static.DefaultMIMETypes))
	for ext, ct := range static.DefaultMIMETypes {
		mimeTypes[ext] = ct
	}

	return Config{
		BaseDir:       ".",
		Host:          "",
		Port:          "8081",
		Directory:     "web",
		EnableTLS:     true,
		CertFile:      "localhost.crt",
		KeyFile:       "localhost.key",
		CertGenerator: "openssl",
		DatabasePath:  "devserve.db",
		Compress:      true,
		Watch:         true,
		MIMETypes:     mimeTypes,
	}
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Path resolves p against BaseDir unless it is already absolute.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}
