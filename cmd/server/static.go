package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

// serveImage serves one stored image by name. Directories are never listed
// and names that could escape the upload directory are not found.
func (app *application) serveImage(w http.ResponseWriter, r *http.Request) {
	path, err := app.blobs.Path(chi.URLParam(r, "name"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
