package certs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	DefaultKeyBits      = 4096
	DefaultValidityDays = 365
	DefaultSubject      = "/C=US/ST=State/L=City/O=Organization/CN=localhost"
)

// Generator creates a self-signed certificate and private key at the given
// paths.
type Generator interface {
	Name() string
	Generate(ctx context.Context, keyPath, certPath string) error
}

// CertificateGenerationError reports a generator that could not produce a
// certificate pair. It is never fatal: callers fall back to plain HTTP.
type CertificateGenerationError struct {
	Generator string
	Output    string
	Err       error
}

func (e *CertificateGenerationError) Error() string {
	msg := fmt.Sprintf("%s certificate generation failed: %v", e.Generator, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CertificateGenerationError) Unwrap() error {
	return e.Err
}

// OpenSSLGenerator shells out to the openssl binary.
type OpenSSLGenerator struct {
	Binary  string
	Bits    int
	Days    int
	Subject string
}

// NewOpenSSLGenerator returns a generator requesting a 4096-bit RSA key
// valid for 365 days with a placeholder localhost subject.
func NewOpenSSLGenerator() *OpenSSLGenerator {
	return &OpenSSLGenerator{
		Binary:  "openssl",
		Bits:    DefaultKeyBits,
		Days:    DefaultValidityDays,
		Subject: DefaultSubject,
	}
}

func (g *OpenSSLGenerator) Name() string {
	return "openssl"
}

func (g *OpenSSLGenerator) Args(keyPath, certPath string) []string {
	return []string{
		"req", "-x509",
		"-newkey", "rsa:" + strconv.Itoa(g.Bits),
		"-keyout", keyPath,
		"-out", certPath,
		"-days", strconv.Itoa(g.Days),
		"-nodes",
		"-subj", g.Subject,
	}
}

func (g *OpenSSLGenerator) Generate(ctx context.Context, keyPath, certPath string) error {
	binary, err := exec.LookPath(g.Binary)
	if err != nil {
		return &CertificateGenerationError{Generator: g.Name(), Err: err}
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, g.Args(keyPath, certPath)...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return &CertificateGenerationError{
			Generator: g.Name(),
			Output:    out.String(),
			Err:       err,
		}
	}
	return nil
}

// NewGenerator returns the generator registered under name.
func NewGenerator(name string) (Generator, error) {
	switch name {
	case "", "openssl":
		return NewOpenSSLGenerator(), nil
	case "native":
		return NewNativeGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown certificate generator %q", name)
	}
}
