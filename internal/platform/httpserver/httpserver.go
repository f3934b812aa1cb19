package httpserver

import (
	"net/http"
	"time"
)

// New builds the ops HTTP server. Write timeout stays generous because
// /metrics responses grow with label cardinality.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
