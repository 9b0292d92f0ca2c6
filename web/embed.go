// Package web embeds the presenter and attendee shell (dist/) and serves it
// as a single-page application.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// reservedPrefixes never fall back to the shell; an unknown API path is a 404.
var reservedPrefixes = []string{"api/", "ws/"}

// SPAHandler serves the embedded shell. Known files are served as-is,
// unknown API and socket paths get 404, and everything else gets index.html
// so client-side views (/presenter, /scan) resolve.
func SPAHandler() http.Handler {
	shell, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: embedded dist missing: " + err.Error())
	}
	files := http.FileServer(http.FS(shell))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		for _, prefix := range reservedPrefixes {
			if strings.HasPrefix(name+"/", prefix) {
				http.NotFound(w, r)
				return
			}
		}

		if name != "" && exists(shell, name) {
			w.Header().Set("Cache-Control", "public, max-age=300")
			files.ServeHTTP(w, r)
			return
		}

		// The shell carries no hashed assets, so it must be revalidated on
		// every load to pick up a redeploy.
		w.Header().Set("Cache-Control", "no-cache")
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/"
		files.ServeHTTP(w, r2)
	})
}

func exists(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
