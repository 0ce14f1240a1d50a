package server

import (
	"net/http"
	"os"
	"path/filepath"
)

// handleStatic serves files from dir. Directories resolve to their
// index.html; anything else is a JSON 404.
func handleStatic(dir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(dir))

	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			info, err = os.Stat(filepath.Join(path, "index.html"))
		}
		if err != nil || info.IsDir() {
			handleNotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	}
}
