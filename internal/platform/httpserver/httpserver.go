// Package httpserver builds the portal's *http.Server from configuration.
package httpserver

import (
	"net/http"
	"time"

	"housing/internal/platform/config"
)

// New keeps the write timeout above the per-request handler timeout so the
// timeout middleware, not the server, answers slow requests.
func New(cfg config.Server, handler http.Handler) *http.Server {
	write := 30 * time.Second
	if cfg.RequestTimeout > 0 {
		write = cfg.RequestTimeout + 5*time.Second
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       2 * time.Minute,
	}
}
