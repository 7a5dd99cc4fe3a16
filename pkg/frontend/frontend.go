// Package frontend serves the embedded query form
package frontend

import (
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"

	static "github.com/ethpandaops/ephemeris/frontend"
)

type handler struct {
	fileHandler http.Handler
	filesystem  fs.FS
}

// NewHandler creates the query form handler. Unknown paths without a file
// extension fall back to index.html; unknown assets are 404.
func NewHandler() (http.Handler, error) {
	formFS, err := fs.Sub(static.FS, "build/frontend")
	if err != nil {
		return nil, fmt.Errorf("failed to load frontend filesystem: %w", err)
	}

	if _, err := fs.Stat(formFS, "index.html"); err != nil {
		return nil, fmt.Errorf("frontend build is missing index.html: %w", err)
	}

	return &handler{
		filesystem:  formFS,
		fileHandler: http.FileServer(http.FS(formFS)),
	}, nil
}

func (h *handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	name := strings.TrimPrefix(req.URL.Path, "/")

	if name == "" || h.fileExists(name) {
		h.fileHandler.ServeHTTP(w, req)
		return
	}

	if path.Ext(name) != "" {
		http.NotFound(w, req)
		return
	}

	req.URL.Path = "/"
	h.fileHandler.ServeHTTP(w, req)
}

func (h *handler) fileExists(name string) bool {
	info, err := fs.Stat(h.filesystem, name)
	return err == nil && !info.IsDir()
}
