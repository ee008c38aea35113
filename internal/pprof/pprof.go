// Package pprof serves Go runtime profiles on a dedicated listener so the
// debug surface never shares a port with the gateway API.
package pprof

import (
	"context"
	"net"
	"net/http"
	netpprof "net/http/pprof"
	"time"

	"github.com/codefionn/modelgate/internal/logger"
)

// Server is an optional HTTP endpoint exposing /debug/pprof.
type Server struct {
	server   *http.Server
	listener net.Listener
	log      *logger.Logger
}

// Start listens on addr and serves profiles in the background.
func Start(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", netpprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", netpprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", netpprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", netpprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", netpprof.Trace)

	s := &Server{
		server:   &http.Server{Handler: mux},
		listener: listener,
		log:      logger.Global().WithPrefix("pprof"),
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Warn("pprof server stopped: %v", err)
		}
	}()
	s.log.Info("profiling enabled on %s", listener.Addr())

	return s, nil
}

// Addr returns the bound address, useful when addr had port 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Stop shuts the profile server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
