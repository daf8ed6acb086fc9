package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults for the loopback core API.
// The UI layer is the only expected client, so timeouts stay tight.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
