// Package static serves the pre-built web application directory.
package static

import (
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/sipweb/devserve/internal/storage"
	"github.com/sirupsen/logrus"
)

// DefaultMIMETypes are applied on top of the standard library's type
// inference.
var DefaultMIMETypes = map[string]string{
	".js":   "application/javascript",
	".html": "text/html",
	".css":  "text/css",
	".json": "application/json",
	".wasm": "application/wasm",
}

const indexPage = "index.html"

type Handler struct {
	storage   storage.Storage
	files     http.Handler
	mimeTypes map[string]string
	etags     *ETagCache
	logger    *logrus.Logger
}

// NewHandler returns a handler serving files from store. Keys of mimeTypes
// are extensions including the leading dot; nil selects DefaultMIMETypes.
func NewHandler(store storage.Storage, mimeTypes map[string]string, etags *ETagCache, logger *logrus.Logger) *Handler {
	if mimeTypes == nil {
		mimeTypes = DefaultMIMETypes
	}
	overrides := make(map[string]string, len(mimeTypes))
	for ext, ct := range mimeTypes {
		overrides[normalizeExt(ext)] = ct
	}
	if etags == nil {
		etags = NewETagCache(store)
	}

	return &Handler{
		storage:   store,
		files:     http.FileServer(http.FS(store.FS())), // same as http.FileServerFS (Go 1.22+)
		mimeTypes: overrides,
		etags:     etags,
		logger:    logger,
	}
}

func (h *Handler) ETags() *ETagCache {
	return h.etags
}

// ContentType returns the override for name's extension.
func (h *Handler) ContentType(name string) (string, bool) {
	ct, ok := h.mimeTypes[normalizeExt(path.Ext(name))]
	return ct, ok
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, err := requestPath(r.URL.Path)
	if err != nil {
		h.logger.WithField("path", r.URL.Path).Warn("Rejected request path")
		http.Error(w, "403 - Forbidden: Invalid path", http.StatusForbidden)
		return
	}

	info, err := h.storage.Stat(name)
	if err != nil {
		h.files.ServeHTTP(w, r)
		return
	}

	if !info.IsDir() {
		h.serveFile(w, r, name, info)
		return
	}

	// Directories without a trailing slash are redirected by the file server.
	if strings.HasSuffix(r.URL.Path, "/") {
		index := path.Join(name, indexPage)
		if indexInfo, err := h.storage.Stat(index); err == nil && !indexInfo.IsDir() {
			h.serveFile(w, r, index, indexInfo)
			return
		}
	}

	w.Header().Set("Cache-Control", cacheControl(path.Base(name), true))
	h.files.ServeHTTP(w, r)
}

// serveFile writes a regular file with its override Content-Type and ETag.
// index.html is served in place rather than redirected to its directory.
func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, name string, info os.FileInfo) {
	file, err := h.storage.Retrieve(name)
	if err != nil {
		h.logger.WithError(err).WithField("path", name).Warn("Failed to open file")
		http.Error(w, "404 page not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	w.Header().Set("Cache-Control", cacheControl(path.Base(name), false))
	if ct, ok := h.ContentType(name); ok {
		w.Header().Set("Content-Type", ct)
	}
	if tag, err := h.etags.Get(name, info); err == nil {
		w.Header().Set("ETag", tag)
	} else {
		h.logger.WithError(err).WithField("path", name).Debug("Failed to compute ETag")
	}

	http.ServeContent(w, r, path.Base(name), info.ModTime(), file)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
