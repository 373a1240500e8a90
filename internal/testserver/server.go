// Package testserver provides the small local HTTP service the example
// CLI (cmd/tunnelfy) exposes so tunnelfy-client has something concrete to
// forward to without requiring a separate application. It is adapted from
// the teacher's subdomain-routing HTTP proxy: the same tuned http.Server
// and signal-driven graceful shutdown, with the per-host ShardedRouteManager
// routing table replaced by a single fixed handler, since there is exactly
// one upstream here rather than one per tunnel tenant.
package testserver

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Config controls the bundled local service.
type Config struct {
	ListenAddr   string
	ResponseBody string
	LogRequests  bool
}

// Server is the bundled local HTTP service.
type Server struct {
	cfg    Config
	http   *http.Server
	logger *log.Logger
}

// New builds a Server from cfg. logger may be nil, in which case
// log.Default() is used.
func New(cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{cfg: cfg, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if s.cfg.LogRequests {
		s.logger.Printf("request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, s.cfg.ResponseBody)
}

// Start runs the server until ctx is cancelled, then shuts down gracefully
// within a 5 second grace period.
func (s *Server) Start(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		s.logger.Printf("local test server listening on %s", s.cfg.ListenAddr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-serveErr
		return nil
	case err := <-serveErr:
		return err
	}
}
