package service

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	name       string
	logger     *zap.Logger
}

// ServerOptions HTTP 超时设置（零值使用 net/http 默认）
type ServerOptions struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewServer(name, addr string, handler http.Handler, opts ServerOptions, logger *zap.Logger) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return &Server{httpServer: s, name: name, logger: logger}
}

func (s *Server) Start() error {
	s.logger.Info("Starting "+s.name+" HTTP server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping " + s.name + " HTTP server")
	return s.httpServer.Shutdown(ctx)
}
