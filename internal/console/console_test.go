package console

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestStartedBanner(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	p := New(&buf)

	p.Started("http://localhost:8081", "/srv/web", false)
	assert.Contains(t, buf.String(), "Server started at http://localhost:8081\n")
	assert.Contains(t, buf.String(), "Serving files from: /srv/web")
	assert.Contains(t, buf.String(), "WebRTC features may not work without HTTPS")
	assert.Contains(t, buf.String(), "Press Ctrl+C to stop the server")

	buf.Reset()
	p.Started("https://localhost:8081", "/srv/web", true)
	assert.Contains(t, buf.String(), "self-signed certificate")
	assert.NotContains(t, buf.String(), "WebRTC")
}

func TestMessages(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	p := New(&buf)

	p.Error("Port %s is already in use!", "8081")
	p.Hint("Try stopping other servers")
	p.Stopped()

	assert.Equal(t, "Error: Port 8081 is already in use!\nTry stopping other servers\n\nServer stopped\n", buf.String())
}
