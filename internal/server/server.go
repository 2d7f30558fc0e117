package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/observability"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
}

// New builds the server. No write timeout is set: upgraded chat connections
// are long lived and manage their own deadlines.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) Start() error {
	observability.Log.Info("starting server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	observability.Log.Info("starting server", zap.String("addr", l.Addr().String()))
	return s.httpServer.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	observability.Log.Info("shutting down server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.Shutdown(ctx)
}
