package viewer

import (
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// handleAsset serves the viewer's static files by path lookup under the
// configured asset root. "/" maps to index.html; anything that does not
// resolve to a file is a plain-text 404.
func (h *hub) handleAsset(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path
	if name == "/" {
		name = "/index.html"
	}

	// Collapse any traversal segments before joining with the asset root.
	name = path.Clean("/" + name)
	full := filepath.Join(h.assetDir, filepath.FromSlash(strings.TrimPrefix(name, "/")))

	data, err := os.ReadFile(full)
	if err != nil {
		h.logger.Infow("asset not found", zap.String("path", r.URL.Path))
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("404 Not Found"))
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(full))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
