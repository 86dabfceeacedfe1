package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sipweb/devserve/internal/certs"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var testAssets = map[string]string{
	"index.html":           "<html><body>sip client</body></html>",
	"main.dart.js":         "console.log('main')",
	"flutter.js":           "console.log('flutter')",
	"styles.css":           "body { margin: 0 }",
	"manifest.json":        `{"name":"sip"}`,
	"canvaskit/ck.wasm":    "\x00asm\x01\x00\x00\x00",
	"assets/AssetManifest": "{}",
}

// newTestConfig lays out a base directory with a populated web/ and returns
// a config bound to a random loopback port.
func newTestConfig(t *testing.T) *Config {
	base := t.TempDir()
	for name, body := range testAssets {
		path := filepath.Join(base, "web", filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}

	config := DefaultConfig()
	config.BaseDir = base
	config.Host = "127.0.0.1"
	config.Port = "0"
	config.EnableTLS = false
	config.Watch = false
	return &config
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

// nativeGenerator is fast enough for tests.
func nativeGenerator() certs.Generator {
	g := certs.NewNativeGenerator()
	g.Bits = 2048
	return g
}

type failingGenerator struct {
	calls int
}

func (f *failingGenerator) Name() string { return "failing" }

func (f *failingGenerator) Generate(ctx context.Context, keyPath, certPath string) error {
	f.calls++
	return &certs.CertificateGenerationError{Generator: f.Name(), Err: os.ErrNotExist}
}

// startTestServer runs srv in the background and waits until it is bound.
func startTestServer(t *testing.T, srv *Server) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case <-srv.Ready():
	case err := <-errCh:
		cancel()
		t.Fatalf("Server failed to start: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("Server did not bind in time")
	}

	t.Cleanup(cancel)
	return cancel, errCh
}

func newClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
		Timeout: 10 * time.Second,
	}
}

func baseURL(srv *Server) string {
	return srv.Scheme() + "://" + srv.Addr()
}
