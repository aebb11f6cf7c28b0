package api

import (
	"net/http"
	"os"
	"path/filepath"
)

// StaticHandler serves the field viewer from ./static: /field renders
// the page, /static/field.{js,css} carry its assets. A missing file is
// a plain 404.
func (s *Server) StaticHandler(w http.ResponseWriter, r *http.Request) {
	base := "static"
	if r.URL.Path == "/field" || r.URL.Path == "/field/" {
		serveStatic(w, r, filepath.Join(base, "field.html"))
		return
	}
	switch name := filepath.Base(r.URL.Path); name {
	case "field.html", "field.js", "field.css":
		serveStatic(w, r, filepath.Join(base, name))
	default:
		http.NotFound(w, r)
	}
}

func serveStatic(w http.ResponseWriter, r *http.Request, p string) {
	if _, err := os.Stat(p); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, p)
}
