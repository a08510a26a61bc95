package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// handleStatic serves the browser client from dir. Unknown paths without a
// file extension fall back to index.html so links like /play?room=X work;
// missing assets stay 404.
func handleStatic(dir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		clean := path.Clean("/" + r.URL.Path)
		if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean))); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		if path.Ext(clean) != "" {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, index)
	}
}
