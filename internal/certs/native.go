package certs

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// NativeGenerator builds the certificate in-process with crypto/x509, for
// hosts without an openssl binary.
type NativeGenerator struct {
	Bits     int
	Validity time.Duration
}

func NewNativeGenerator() *NativeGenerator {
	return &NativeGenerator{
		Bits:     DefaultKeyBits,
		Validity: DefaultValidityDays * 24 * time.Hour,
	}
}

func (g *NativeGenerator) Name() string {
	return "native"
}

func (g *NativeGenerator) Generate(ctx context.Context, keyPath, certPath string) error {
	if err := g.generate(ctx, keyPath, certPath); err != nil {
		return &CertificateGenerationError{Generator: g.Name(), Err: err}
	}
	return nil
}

func (g *NativeGenerator) generate(ctx context.Context, keyPath, certPath string) error {
	priv, err := rsa.GenerateKey(rand.Reader, g.Bits)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Country:      []string{"US"},
			Province:     []string{"State"},
			Locality:     []string{"City"},
			Organization: []string{"Organization"},
			CommonName:   "localhost",
		},
		NotBefore:             now,
		NotAfter:              now.Add(g.Validity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}

	if err := writePEM(keyPath, "PRIVATE KEY", keyDER, 0600); err != nil {
		return err
	}
	if err := writePEM(certPath, "CERTIFICATE", certDER, 0644); err != nil {
		os.Remove(keyPath)
		return err
	}
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer out.Close()

	if err := pem.Encode(out, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
