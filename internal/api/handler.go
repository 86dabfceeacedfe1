package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sipweb/devserve/internal/certs"
	"github.com/sipweb/devserve/internal/storage"
	"github.com/sipweb/devserve/pkg/models"
	"github.com/sirupsen/logrus"
)

const Prefix = "/_devserve"

// StatusProvider reports the live state of the running server.
type StatusProvider interface {
	Status() models.ServerStatus
}

type Handler struct {
	status  StatusProvider
	storage storage.Storage
	ledger  *certs.Ledger
	certs   *certs.Manager
	logger  *logrus.Logger
}

func NewHandler(status StatusProvider, storage storage.Storage, certManager *certs.Manager, ledger *certs.Ledger, logger *logrus.Logger) *Handler {
	return &Handler{
		status:  status,
		storage: storage,
		ledger:  ledger,
		certs:   certManager,
		logger:  logger,
	}
}

func (h *Handler) Register(router *mux.Router) {
	apiRouter := router.PathPrefix(Prefix).Subrouter()
	apiRouter.HandleFunc("/health", h.Health).Methods("GET")
	apiRouter.HandleFunc("/status", h.Status).Methods("GET")
	apiRouter.HandleFunc("/certificates", h.ListCertificates).Methods("GET")
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.status.Status()

	if exists, err := h.storage.Exists("index.html"); err == nil {
		status.IndexPresent = exists
	}

	if status.TLS && h.certs != nil {
		rec, err := h.certs.Record()
		switch {
		case err == nil:
			status.Certificate = rec
		case errors.Is(err, certs.ErrRecordNotFound), errors.Is(err, certs.ErrLedgerDisabled):
		default:
			h.logger.WithError(err).Warn("Failed to read certificate record")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *Handler) ListCertificates(w http.ResponseWriter, r *http.Request) {
	recs, err := h.ledger.List()
	if err != nil && !errors.Is(err, certs.ErrLedgerDisabled) {
		h.writeError(w, http.StatusInternalServerError, "Failed to list certificates")
		return
	}
	if recs == nil {
		recs = []*models.CertificateRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
