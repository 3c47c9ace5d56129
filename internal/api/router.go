package api

import (
	"io"
	"time"

	"bone-crawler/internal/game"
	"bone-crawler/internal/game/maze"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface is the slice of *game.Engine the HTTP layer reads and
// drives. Tests substitute a mock that never runs a frame loop.
type EngineInterface interface {
	Snapshot() (game.GameSnapshot, bool) // false before the first frame
	Stats() map[string]interface{}
	Submit(cmd game.Command) bool // false when the command queue is full
	Level() *game.Level
	RecentEvents(n int) []game.Event // oldest first
}

// FramePainter renders a snapshot as PNG.
type FramePainter interface {
	WritePNG(w io.Writer, snap *game.GameSnapshot, tiles *maze.TileMap) error
}

// RouterConfig wires the router. Only Engine is required; a nil Painter or
// Beat turns the matching endpoint into a 404.
type RouterConfig struct {
	Engine  EngineInterface
	Painter FramePainter
	Beat    []byte // WAV bytes for /api/audio/beat.wav

	// RateLimiter wins over RateLimitConfig; with neither the defaults apply.
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	// CORSOrigins defaults to localhost and 127.0.0.1 on any port.
	CORSOrigins []string

	// ControlToken guards /api/player/* when set.
	ControlToken string

	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine  EngineInterface
	painter FramePainter
	beat    []byte
	limiter *IPRateLimiter
}

// NewRouter builds the chi router. The only goroutine it starts is the
// rate limiter's sweeper, so it can sit behind httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// throttle before CORS so floods are cheap to refuse
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		engine:  cfg.Engine,
		painter: cfg.Painter,
		beat:    cfg.Beat,
		limiter: rateLimiter,
	}

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// Read-only views
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/maze", h.handleGetMaze)
		r.Get("/events", h.handleGetEvents)
		r.Get("/frame.png", h.handleGetFrame)
		r.Get("/audio/beat.wav", h.handleGetBeat)

		// Player control
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(5 * time.Second))
			r.Use(NewControlAuth(cfg.ControlToken).Middleware)
			r.Post("/player/move", h.handleMove)
			r.Post("/player/strafe", h.handleStrafe)
			r.Post("/player/turn", h.handleTurn)
			r.Post("/player/attack", h.handleAttack)
		})
	})

	return r
}
