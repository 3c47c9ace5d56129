package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"bone-crawler/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// Server serves the REST routes and the /ws viewer feed on one listener.
type Server struct {
	engine      EngineInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	broadcastHz int
	httpServer  *http.Server
}

// Options carries the optional collaborators of a Server.
type Options struct {
	Painter FramePainter
	Beat    []byte
}

// NewServer builds the server from the server section of the config. The
// hub and broadcast loop stay idle until Start.
func NewServer(engine EngineInterface, cfg config.ServerConfig, opts Options) *Server {
	s := &Server{
		engine:      engine,
		wsHub:       NewWebSocketHub(engine, NewOriginPolicy(cfg.AllowedOrigins)),
		broadcastHz: cfg.BroadcastHz,
	}

	rateCfg := DefaultRateLimitConfig
	if cfg.RequestsPerSec > 0 {
		rateCfg.RequestsPerSecond = cfg.RequestsPerSec
		rateCfg.Burst = int(cfg.RequestsPerSec * 2)
	}
	s.rateLimiter = NewIPRateLimiter(rateCfg)

	s.router = NewRouter(RouterConfig{
		Engine:       engine,
		Painter:      opts.Painter,
		Beat:         opts.Beat,
		RateLimiter:  s.rateLimiter,
		CORSOrigins:  cfg.AllowedOrigins,
		ControlToken: cfg.ControlToken,
	})

	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start runs the hub and listens on addr. It blocks until Stop; a clean
// shutdown returns nil.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.broadcastHz)

	s.httpServer.Addr = addr

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🖼️  Live frame: http://localhost%s/api/frame.png", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "listen")
	}
	return nil
}

// Router returns the handler without a listener, for httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the WebSocket hub
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Stop drains in-flight requests until ctx expires and disconnects viewers.
func (s *Server) Stop(ctx context.Context) error {
	s.wsHub.Stop()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	return errors.Wrap(s.httpServer.Shutdown(ctx), "shutdown")
}
