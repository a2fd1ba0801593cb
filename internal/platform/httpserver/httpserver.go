package httpserver

import (
	"net/http"
	"time"
)

// New builds the process HTTP server. WriteTimeout and IdleTimeout stay
// zero: the live event channel under /ws holds upgraded connections open
// indefinitely, and per-route deadlines are enforced by router middleware
// instead.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
}
