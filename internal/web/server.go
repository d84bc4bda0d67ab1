// Package web serves a read-only browser over the indexed documents.
package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/arbor/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates and configures the HTTP server for the Arbor web UI.
func NewServer(db *sql.DB, cfg *config.Config, version, bind string, port int) (*http.Server, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	h := &Handlers{
		db:       db,
		cfg:      cfg,
		renderer: NewRenderer(templateSub, version, slog.Default()),
		nodes:    newNodeRenderer(),
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           securityHeaders(routes(h, staticSub)),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// routes registers every page on a new mux.
func routes(h *Handlers, static fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/documents", http.StatusFound)
	})
	mux.HandleFunc("GET /documents", h.HandleList)
	mux.HandleFunc("GET /search", h.HandleSearch)
	mux.HandleFunc("GET /documents/{id}", h.HandleDocument)
	mux.HandleFunc("DELETE /documents/{id}", h.HandleUnindex)
	mux.HandleFunc("POST /documents/{id}/reindex", h.HandleReindex)
	mux.HandleFunc("GET /documents/{id}/nodes/{node}", h.HandleNode)
	mux.HandleFunc("GET /static/chroma.css", h.HandleHighlightCSS)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	return mux
}

// securityHeaders adds security-related HTTP headers to all responses.
// Inline style attributes carry document colors; images are data URIs.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; script-src 'self'; style-src 'self'; style-src-attr 'unsafe-inline'; img-src 'self' data:")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and shuts it down gracefully on SIGINT/SIGTERM.
func Run(srv *http.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	slog.Info("arbor UI running", "url", "http://"+srv.Addr)
	if strings.HasPrefix(srv.Addr, "0.0.0.0:") || strings.Contains(srv.Addr, "::") {
		slog.Warn("server is binding to all interfaces and may be reachable from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		slog.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
