package models

import (
	"time"
)

type CertificateRecord struct {
	CertPath    string    `json:"cert_path"`
	KeyPath     string    `json:"key_path"`
	Generator   string    `json:"generator"`
	GeneratedAt time.Time `json:"generated_at"`
	NotAfter    time.Time `json:"not_after,omitempty"`
	Fingerprint string    `json:"fingerprint_sha256,omitempty"`
}

type ServerStatus struct {
	Scheme       string             `json:"scheme"`
	Address      string             `json:"address"`
	ServeRoot    string             `json:"serve_root"`
	TLS          bool               `json:"tls"`
	IndexPresent bool               `json:"index_present"`
	Certificate  *CertificateRecord `json:"certificate,omitempty"`
}
