package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sipweb/devserve/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerStartStop(t *testing.T) {
	config := newTestConfig(t)

	srv, err := New(config, testLogger())
	require.NoError(t, err, "Failed to create server")

	cancel, errCh := startTestServer(t, srv)
	assert.Equal(t, "http", srv.Scheme())

	resp, err := newClient().Get(baseURL(srv) + "/_devserve/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	addr := srv.Addr()
	cancel()

	select {
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shut down within timeout")
	case err := <-errCh:
		assert.NoError(t, err, "Server should shut down without error")
	}

	// The socket must be released once Start returns.
	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	ln.Close()
}

func TestServesOverriddenContentTypes(t *testing.T) {
	config := newTestConfig(t)

	srv, err := New(config, testLogger())
	require.NoError(t, err)
	startTestServer(t, srv)

	tests := []struct {
		path  string
		asset string
		want  string
	}{
		{"/", "index.html", "text/html"},
		{"/index.html", "index.html", "text/html"},
		{"/main.dart.js", "main.dart.js", "application/javascript"},
		{"/styles.css", "styles.css", "text/css"},
		{"/manifest.json", "manifest.json", "application/json"},
		{"/canvaskit/ck.wasm", "canvaskit/ck.wasm", "application/wasm"},
	}

	client := newClient()
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := client.Get(baseURL(srv) + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			assert.Equal(t, tt.path, resp.Request.URL.Path, "request must not be redirected")
			assert.Equal(t, tt.want, resp.Header.Get("Content-Type"))
			assert.Equal(t, testAssets[tt.asset], string(body))
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestServesPageHTMLContentType(t *testing.T) {
	config := newTestConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(config.BaseDir, "web", "about.html"), []byte("<p>about</p>"), 0644))

	srv, err := New(config, testLogger())
	require.NoError(t, err)
	startTestServer(t, srv)

	resp, err := newClient().Get(baseURL(srv) + "/about.html")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
}

func TestCompressedResponses(t *testing.T) {
	config := newTestConfig(t)
	big := make([]byte, 64*1024)
	for i := range big {
		big[i] = 'a' + byte(i%26)
	}
	require.NoError(t, os.WriteFile(filepath.Join(config.BaseDir, "web", "bundle.js"), big, 0644))

	srv, err := New(config, testLogger())
	require.NoError(t, err)
	startTestServer(t, srv)

	req, err := http.NewRequest("GET", baseURL(srv)+"/bundle.js", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := newClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))
	gzipTag := resp.Header.Get("ETag")
	assert.Contains(t, gzipTag, "-gzip")

	req, err = http.NewRequest("GET", baseURL(srv)+"/bundle.js", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "identity")

	plain, err := newClient().Do(req)
	require.NoError(t, err)
	defer plain.Body.Close()

	assert.Empty(t, plain.Header.Get("Content-Encoding"))
	plainTag := plain.Header.Get("ETag")
	require.NotEmpty(t, plainTag)
	assert.NotEqual(t, plainTag, gzipTag, "encoded and identity bodies must not share a strong ETag")

	// The identity ETag still revalidates the identity representation.
	req, err = http.NewRequest("GET", baseURL(srv)+"/bundle.js", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("If-None-Match", plainTag)

	revalidated, err := newClient().Do(req)
	require.NoError(t, err)
	defer revalidated.Body.Close()
	assert.Equal(t, http.StatusNotModified, revalidated.StatusCode)
}

func TestMissingServeDirectory(t *testing.T) {
	config := DefaultConfig()
	config.BaseDir = t.TempDir()

	_, err := New(&config, testLogger())
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestServeDirectoryIsFile(t *testing.T) {
	config := DefaultConfig()
	config.BaseDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(config.BaseDir, "web"), []byte("x"), 0644))

	_, err := ResolveServeRoot(&config)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, errNotDirectory)
}

func TestPortInUse(t *testing.T) {
	first := newTestConfig(t)
	srv, err := New(first, testLogger())
	require.NoError(t, err)
	startTestServer(t, srv)

	_, port, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)

	second := newTestConfig(t)
	second.Port = port
	other, err := New(second, testLogger())
	require.NoError(t, err)

	err = other.Start(context.Background())
	require.Error(t, err)

	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.True(t, bindErr.PortInUse())
	assert.Contains(t, bindErr.Error(), "already in use")
}

func TestBindErrorGeneric(t *testing.T) {
	config := newTestConfig(t)
	config.Port = "99999"

	srv, err := New(config, testLogger())
	require.NoError(t, err)

	err = srv.Start(context.Background())

	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.False(t, bindErr.PortInUse())
	assert.Contains(t, bindErr.Error(), "failed to bind")
}

func TestHTTPSWithGeneratedCertificate(t *testing.T) {
	config := newTestConfig(t)
	config.EnableTLS = true

	srv, err := New(config, testLogger(), WithGenerator(nativeGenerator()))
	require.NoError(t, err)
	startTestServer(t, srv)

	assert.Equal(t, "https", srv.Scheme())
	assert.FileExists(t, filepath.Join(config.BaseDir, "localhost.crt"))
	assert.FileExists(t, filepath.Join(config.BaseDir, "localhost.key"))

	resp, err := newClient().Get(baseURL(srv) + "/main.dart.js")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, resp.TLS)
	assert.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))

	statusResp, err := newClient().Get(baseURL(srv) + "/_devserve/status")
	require.NoError(t, err)
	defer statusResp.Body.Close()

	var status models.ServerStatus
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	assert.True(t, status.TLS)
	assert.True(t, status.IndexPresent)
	require.NotNil(t, status.Certificate)
	assert.Equal(t, "native", status.Certificate.Generator)
}

func TestHTTPSReusesExistingCertificate(t *testing.T) {
	config := newTestConfig(t)
	config.EnableTLS = true
	certPath := filepath.Join(config.BaseDir, "localhost.crt")
	keyPath := filepath.Join(config.BaseDir, "localhost.key")
	require.NoError(t, nativeGenerator().Generate(context.Background(), keyPath, certPath))

	gen := &failingGenerator{}
	srv, err := New(config, testLogger(), WithGenerator(gen))
	require.NoError(t, err)
	startTestServer(t, srv)

	assert.Equal(t, 0, gen.calls)
	assert.True(t, srv.TLS())
}

func TestFallsBackToHTTPWhenGenerationFails(t *testing.T) {
	config := newTestConfig(t)
	config.EnableTLS = true

	gen := &failingGenerator{}
	srv, err := New(config, testLogger(), WithGenerator(gen))
	require.NoError(t, err)
	startTestServer(t, srv)

	assert.Equal(t, 1, gen.calls)
	assert.False(t, srv.TLS())
	assert.Equal(t, "http", srv.Scheme())

	resp, err := newClient().Get(baseURL(srv) + "/flutter.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFallsBackToHTTPWhenCertificateUnreadable(t *testing.T) {
	config := newTestConfig(t)
	config.EnableTLS = true
	require.NoError(t, os.WriteFile(filepath.Join(config.BaseDir, "localhost.crt"), []byte("garbage"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(config.BaseDir, "localhost.key"), []byte("garbage"), 0600))

	srv, err := New(config, testLogger(), WithGenerator(&failingGenerator{}))
	require.NoError(t, err)
	startTestServer(t, srv)

	assert.False(t, srv.TLS())
}

func TestUnknownGenerator(t *testing.T) {
	config := newTestConfig(t)
	config.EnableTLS = true
	config.CertGenerator = "mkcert"

	_, err := New(config, testLogger())
	assert.Error(t, err)
}

func TestURL(t *testing.T) {
	config := newTestConfig(t)
	srv, err := New(config, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:0", srv.URL())

	startTestServer(t, srv)
	_, port, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:"+port, srv.URL())
}
