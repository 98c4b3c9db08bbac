package handlers

import (
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"norelock.dev/osmcremote/internal/utils"
)

// PageHandler serves the remote page and its offline manifest.
type PageHandler struct {
	files    http.Handler
	manifest []byte
	logger   *utils.Logger
}

// NewPageHandler creates a page handler serving files from static. The
// manifest lists assets and changes on every start, so pages pick up a
// new build.
func NewPageHandler(static fs.FS, assets []string, logger *utils.Logger) *PageHandler {
	return &PageHandler{
		files:    http.FileServerFS(static),
		manifest: buildManifest(uuid.NewString(), assets),
		logger:   logger.Named("page_handler"),
	}
}

// Files serves the embedded page.
func (h *PageHandler) Files(w http.ResponseWriter, r *http.Request) {
	h.files.ServeHTTP(w, r)
}

// Manifest serves the application cache manifest.
func (h *PageHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/cache-manifest")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(h.manifest); err != nil {
		h.logger.Debug("Failed to write manifest", "error", err.Error())
	}
}

func buildManifest(token string, assets []string) []byte {
	var sb strings.Builder
	sb.WriteString("CACHE MANIFEST\n")
	fmt.Fprintf(&sb, "# %s\n\n", token)
	sb.WriteString("CACHE:\n")
	for _, asset := range assets {
		sb.WriteString(asset)
		sb.WriteString("\n")
	}
	sb.WriteString("\nNETWORK:\n*\n")
	return []byte(sb.String())
}
