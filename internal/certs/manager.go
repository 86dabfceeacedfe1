// Package certs makes sure a self-signed certificate pair exists for local
// HTTPS serving.
package certs

import (
	"context"
	"os"

	"github.com/sipweb/devserve/pkg/models"
	"github.com/sirupsen/logrus"
)

type Manager struct {
	generator Generator
	certPath  string
	keyPath   string
	ledger    *Ledger
	logger    *logrus.Logger
}

func NewManager(generator Generator, certPath, keyPath string, ledger *Ledger, logger *logrus.Logger) *Manager {
	return &Manager{
		generator: generator,
		certPath:  certPath,
		keyPath:   keyPath,
		ledger:    ledger,
		logger:    logger,
	}
}

func (m *Manager) CertPath() string {
	return m.certPath
}

func (m *Manager) KeyPath() string {
	return m.keyPath
}

// Exists reports whether both the certificate and the key are on disk.
func (m *Manager) Exists() bool {
	return fileExists(m.certPath) && fileExists(m.keyPath)
}

// Ensure returns true when a certificate pair is available, generating one
// if either file is missing. Generation failures are logged and reported as
// false; they are not retried.
func (m *Manager) Ensure(ctx context.Context) bool {
	if m.Exists() {
		m.logger.WithField("cert", m.certPath).Debug("Using existing certificate")
		return true
	}

	log := m.logger.WithFields(logrus.Fields{
		"generator": m.generator.Name(),
		"cert":      m.certPath,
		"key":       m.keyPath,
	})
	log.Info("Generating self-signed certificate")

	if err := m.generator.Generate(ctx, m.keyPath, m.certPath); err != nil {
		log.WithError(err).Warn("Certificate generation failed, HTTPS unavailable")
		return false
	}

	if !m.Exists() {
		log.Warn("Certificate generator reported success but files are missing, HTTPS unavailable")
		return false
	}

	if err := m.ledger.Put(NewRecord(m.generator.Name(), m.keyPath, m.certPath)); err != nil && err != ErrLedgerDisabled {
		log.WithError(err).Warn("Failed to record generated certificate")
	}

	log.Info("Self-signed certificate generated")
	return true
}

// Record returns the ledger entry for the managed certificate.
func (m *Manager) Record() (*models.CertificateRecord, error) {
	return m.ledger.Get(m.certPath)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
