package certs

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sipweb/devserve/pkg/models"
	"go.etcd.io/bbolt"
)

var (
	bucketCertificates = []byte("certificates")
	ErrRecordNotFound  = errors.New("certificate record not found")
	ErrLedgerDisabled  = errors.New("certificate ledger disabled")
)

// Ledger keeps a record of every certificate pair devserve generated. The
// database is opened per operation so that a running instance never holds
// the file lock.
type Ledger struct {
	path    string
	timeout time.Duration
}

func NewLedger(path string) *Ledger {
	return &Ledger{
		path:    path,
		timeout: 1 * time.Second,
	}
}

func (l *Ledger) withDB(readOnly bool, fn func(db *bbolt.DB) error) error {
	if l == nil || l.path == "" {
		return ErrLedgerDisabled
	}

	if readOnly {
		if _, err := os.Stat(l.path); os.IsNotExist(err) {
			return ErrRecordNotFound
		}
	}

	db, err := bbolt.Open(l.path, 0600, &bbolt.Options{
		Timeout:  l.timeout,
		ReadOnly: readOnly,
	})
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer db.Close()

	return fn(db)
}

func (l *Ledger) Put(rec *models.CertificateRecord) error {
	return l.withDB(false, func(db *bbolt.DB) error {
		return db.Update(func(tx *bbolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists(bucketCertificates)
			if err != nil {
				return err
			}

			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal certificate record: %w", err)
			}

			return b.Put([]byte(rec.CertPath), data)
		})
	})
}

func (l *Ledger) Get(certPath string) (*models.CertificateRecord, error) {
	var rec models.CertificateRecord

	err := l.withDB(true, func(db *bbolt.DB) error {
		return db.View(func(tx *bbolt.Tx) error {
			b := tx.Bucket(bucketCertificates)
			if b == nil {
				return ErrRecordNotFound
			}

			data := b.Get([]byte(certPath))
			if data == nil {
				return ErrRecordNotFound
			}

			return json.Unmarshal(data, &rec)
		})
	})

	if err != nil {
		return nil, err
	}

	return &rec, nil
}

func (l *Ledger) List() ([]*models.CertificateRecord, error) {
	var recs []*models.CertificateRecord

	err := l.withDB(true, func(db *bbolt.DB) error {
		return db.View(func(tx *bbolt.Tx) error {
			b := tx.Bucket(bucketCertificates)
			if b == nil {
				return nil
			}

			return b.ForEach(func(k, v []byte) error {
				var rec models.CertificateRecord
				if err := json.Unmarshal(v, &rec); err != nil {
					return fmt.Errorf("failed to unmarshal certificate record %s: %w", k, err)
				}
				recs = append(recs, &rec)
				return nil
			})
		})
	})

	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	return recs, nil
}

// NewRecord describes the certificate at certPath. Fields that cannot be
// read from the file are left empty.
func NewRecord(generator, keyPath, certPath string) *models.CertificateRecord {
	rec := &models.CertificateRecord{
		CertPath:    certPath,
		KeyPath:     keyPath,
		Generator:   generator,
		GeneratedAt: time.Now().UTC(),
	}

	data, err := os.ReadFile(certPath)
	if err != nil {
		return rec
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return rec
	}

	sum := sha256.Sum256(block.Bytes)
	rec.Fingerprint = hex.EncodeToString(sum[:])

	if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
		rec.NotAfter = cert.NotAfter.UTC()
	}
	return rec
}
