// Package spa sirve el frontend compilado: el archivo pedido si existe,
// index.html para todo lo demás.
package spa

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dropDatabas3/questions/internal/http/errors"
	"github.com/dropDatabas3/questions/internal/observability/logger"
)

const indexFile = "index.html"

// Handler sirve archivos de Dir.
type Handler struct {
	Dir string
}

// New crea el handler para dir.
func New(dir string) *Handler {
	return &Handler{Dir: dir}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		errors.WriteError(w, errors.ErrMethodNotAllowed)
		return
	}

	// path.Clean sobre un path absoluto elimina cualquier "..".
	clean := path.Clean("/" + r.URL.Path)
	if clean != "/" && !strings.HasSuffix(clean, "/"+indexFile) {
		full := filepath.Join(h.Dir, filepath.FromSlash(clean))
		if fi, err := os.Stat(full); err == nil && !fi.IsDir() {
			http.ServeFile(w, r, full)
			return
		}
	}
	h.serveIndex(w, r)
}

func (h *Handler) serveIndex(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(filepath.Join(h.Dir, indexFile))
	if err != nil {
		logger.From(r.Context()).Error("spa index missing", logger.Component("spa"), logger.Err(err))
		errors.WriteError(w, errors.ErrNotFound)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, indexFile, fi.ModTime(), f)
}
