package webserver

import (
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/dialcheck/dialcheck/internal/webapi"
	"github.com/dialcheck/dialcheck/web"
)

// registerRoutes sets up API, media-stream, audio, and SPA routes.
func registerRoutes(mux *http.ServeMux, cfg Config) error {
	webapi.RegisterRoutes(mux, cfg.API)

	if cfg.Stream != nil {
		mux.Handle("GET /media-stream", cfg.Stream)
	}

	if cfg.LocalAudioDir != "" {
		fileServer := http.FileServer(http.Dir(cfg.LocalAudioDir))
		mux.Handle("GET /audio/", http.StripPrefix("/audio/", fileServer))
	}

	// SPA static files with HTML5 history API fallback
	handler, err := spaHandler()
	if err != nil {
		return fmt.Errorf("failed to initialize SPA handler: %w", err)
	}
	mux.Handle("/", handler)
	return nil
}

// spaHandler returns an http.Handler that serves the embedded dashboard
// assets. Non-existent paths are served index.html to support client-side
// routing (HTML5 history API fallback).
func spaHandler() (http.Handler, error) {
	distFS, err := fs.Sub(web.Assets, "dist")
	if err != nil {
		return nil, fmt.Errorf("failed to create sub filesystem for web/dist: %w", err)
	}

	fileServer := http.FileServer(http.FS(distFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Try to serve the file directly.
		if path != "/" {
			cleanPath := strings.TrimPrefix(path, "/")
			if f, err := distFS.Open(cleanPath); err == nil {
				f.Close() //nolint:errcheck
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		// Fallback: serve index.html for SPA routing.
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	}), nil
}
