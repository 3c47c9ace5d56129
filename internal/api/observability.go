package api

import (
	"log"
	"net"
	"net/http"
	"time"

	"bone-crawler/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-enemy labels)
var (
	// Engine metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crawler_frame_duration_seconds",
		Help:    "Time spent in one engine frame",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	raycastDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crawler_raycast_duration_seconds",
		Help:    "Time spent casting wall columns in one frame",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025},
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crawler_render_duration_seconds",
		Help:    "Time spent painting a PNG frame",
		Buckets: []float64{0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
	})

	enemiesAlive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crawler_enemies_alive",
		Help: "Enemies still standing",
	})

	enemiesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crawler_enemies_total",
		Help: "Enemies spawned in the current level",
	})

	meleeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_melee_total",
		Help: "Melee swings by outcome",
	}, []string{"outcome"}) // Bounded: "hit", "miss"

	bonesBroken = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_bones_broken_total",
		Help: "Bones detached by melee hits",
	})

	// Event log metrics
	eventLogTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_total",
		Help: "Total events logged",
	})

	eventLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_dropped_total",
		Help: "Events dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter, origin or auth check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "unauthorized", "ws_total_limit", "ws_ip_limit"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is path pattern, not full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	commandsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_commands_dropped_total",
		Help: "Player commands discarded before reaching the engine",
	}, []string{"reason"}) // Bounded: "ws_flood", "queue_full"

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// ObservabilityConfig configures the debug listener
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string
	AllowExternal bool
	BasicAuthUser string // empty disables basic auth
	BasicAuthPass string
}

// ObservabilityFromConfig maps the application's debug settings.
func ObservabilityFromConfig(cfg config.DebugConfig) ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:       cfg.Enabled,
		ListenAddr:    cfg.ListenAddr,
		AllowExternal: cfg.AllowExternal,
		BasicAuthUser: cfg.BasicAuthUser,
		BasicAuthPass: cfg.BasicAuthPass,
	}
}

const loopbackDebugAddr = "127.0.0.1:6060"

// isLoopback reports whether addr binds to localhost only
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// DebugHandler serves pprof under /debug/pprof, expvar under /debug/vars
// and Prometheus under /metrics.
func DebugHandler(cfg ObservabilityConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if cfg.BasicAuthUser != "" {
		r.Use(middleware.BasicAuth("debug", map[string]string{cfg.BasicAuthUser: cfg.BasicAuthPass}))
	}
	r.Mount("/debug", middleware.Profiler())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	return r
}

// StartDebugServer binds the debug listener and serves it in the
// background. Profiling endpoints are an easy DoS, so a non-loopback
// address is replaced unless AllowExternal is set.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}
	if !isLoopback(cfg.ListenAddr) && !cfg.AllowExternal {
		log.Printf("⚠️ Debug server moved from %s to %s", cfg.ListenAddr, loopbackDebugAddr)
		cfg.ListenAddr = loopbackDebugAddr
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return errors.Wrap(err, "debug listener")
	}
	log.Printf("📊 Debug server on http://%s (pprof /debug/pprof/, metrics /metrics)", ln.Addr())

	go func() {
		if err := http.Serve(ln, DebugHandler(cfg)); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()
	return nil
}

// RecordRender records PNG paint timing for metrics
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// EngineMetrics feeds per-frame engine measurements into Prometheus.
// It implements game.FrameObserver.
type EngineMetrics struct{}

// RecordFrame observes total frame and ray casting time
func (EngineMetrics) RecordFrame(total, raycast time.Duration) {
	tickDuration.Observe(total.Seconds())
	raycastDuration.Observe(raycast.Seconds())
}

// RecordMelee counts a swing; outcome is "hit" or "miss"
func (EngineMetrics) RecordMelee(outcome string) {
	meleeTotal.WithLabelValues(outcome).Inc()
}

// RecordBonesBroken counts detached bones
func (EngineMetrics) RecordBonesBroken(n int) {
	bonesBroken.Add(float64(n))
}

// UpdateEnemies sets the enemy gauges
func (EngineMetrics) UpdateEnemies(alive, total int) {
	enemiesAlive.Set(float64(alive))
	enemiesTotal.Set(float64(total))
}

// EventLogTracker turns the event log's running totals into counter
// increments. Call Update periodically from one goroutine.
type EventLogTracker struct {
	lastTotal   uint64
	lastDropped uint64
}

// Update adds the growth since the previous call.
func (t *EventLogTracker) Update(total, dropped uint64) {
	if total > t.lastTotal {
		eventLogTotal.Add(float64(total - t.lastTotal))
	}
	if dropped > t.lastDropped {
		eventLogDropped.Add(float64(dropped - t.lastDropped))
	}
	t.lastTotal, t.lastDropped = total, dropped
}

// RecordConnectionRejected increments the rejection counter
// reason must be one of: "rate_limit", "origin", "unauthorized", "ws_total_limit", "ws_ip_limit"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// metricsMiddleware records latency and status per route pattern
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}

// RecordCommandDropped counts a discarded player command
func RecordCommandDropped(reason string) {
	commandsDropped.WithLabelValues(reason).Inc()
}
