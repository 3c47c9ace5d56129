package api_test

import (
	"bytes"
	"encoding/json"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bone-crawler/internal/api"
	"bone-crawler/internal/config"
	"bone-crawler/internal/game"
	"bone-crawler/internal/game/raycast"
	"bone-crawler/internal/game/skeleton"
	"bone-crawler/internal/render"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// MockEngine implements api.EngineInterface for testing
type MockEngine struct {
	mu        sync.Mutex
	snap      *game.GameSnapshot
	level     *game.Level
	events    []game.Event
	commands  []game.Command
	queueFull bool
}

func NewMockEngine(t *testing.T) *MockEngine {
	t.Helper()
	cfg := game.DefaultLevelConfig()
	cfg.MazeWidth, cfg.MazeHeight = 3, 2
	cfg.Skeletons = 1
	cfg.SafeRadius = 0

	level, err := game.NewLevel(cfg, skeleton.DefaultConfig(), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewLevel: %v", err)
	}
	return &MockEngine{level: level}
}

func (m *MockEngine) publish(tick uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := &game.GameSnapshot{
		TickNumber: tick,
		Width:      32,
		Height:     20,
		Columns:    make([]raycast.Hit, 32),
		EnemyCount: 1,
		AliveCount: 1,
	}
	for i := range snap.Columns {
		snap.Columns[i] = raycast.Hit{Distance: 2}
	}
	m.snap = snap
}

func (m *MockEngine) Snapshot() (game.GameSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return game.GameSnapshot{}, false
	}
	return m.snap.Clone(), true
}

func (m *MockEngine) Stats() map[string]interface{} {
	return map[string]interface{}{"tick": 7}
}

func (m *MockEngine) Submit(cmd game.Command) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queueFull {
		return false
	}
	m.commands = append(m.commands, cmd)
	return true
}

func (m *MockEngine) Level() *game.Level {
	return m.level
}

func (m *MockEngine) RecentEvents(n int) []game.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.events) {
		n = len(m.events)
	}
	return append([]game.Event(nil), m.events[len(m.events)-n:]...)
}

func (m *MockEngine) addEvent(ev game.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.Sequence = uint64(len(m.events) + 1)
	m.events = append(m.events, ev)
}

func (m *MockEngine) submitted() []game.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]game.Command(nil), m.commands...)
}

func newTestServer(t *testing.T, cfg api.RouterConfig) *httptest.Server {
	t.Helper()
	cfg.DisableLogging = true
	if cfg.RateLimitConfig == nil && cfg.RateLimiter == nil {
		cfg.RateLimitConfig = &api.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Hour,
		}
	}
	ts := httptest.NewServer(api.NewRouter(cfg))
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ============================================================================
// Read Endpoint Tests
// ============================================================================

func TestAPIHealth(t *testing.T) {
	ts := newTestServer(t, api.RouterConfig{Engine: NewMockEngine(t)})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestAPIGetState(t *testing.T) {
	engine := NewMockEngine(t)
	ts := newTestServer(t, api.RouterConfig{Engine: engine})

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before the first frame, got %d", resp.StatusCode)
	}

	engine.publish(42)

	resp, err = http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var snap game.GameSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if snap.TickNumber != 42 || len(snap.Columns) != 32 {
		t.Errorf("Unexpected snapshot: tick=%d columns=%d", snap.TickNumber, len(snap.Columns))
	}
}

func TestAPIGetStats(t *testing.T) {
	ts := newTestServer(t, api.RouterConfig{Engine: NewMockEngine(t)})

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var stats map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if stats["tick"] != float64(7) {
		t.Errorf("Expected engine stats, got %v", stats)
	}
	if _, ok := stats["rateLimit"]; !ok {
		t.Error("Expected rate limiter stats")
	}
}

func TestAPIGetMaze(t *testing.T) {
	engine := NewMockEngine(t)
	ts := newTestServer(t, api.RouterConfig{Engine: engine})

	resp, err := http.Get(ts.URL + "/api/maze")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var view struct {
		CellsWide int      `json:"cellsWide"`
		Width     int      `json:"width"`
		Height    int      `json:"height"`
		Rows      []string `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if view.CellsWide != 3 || view.Width != 7 || view.Height != 5 {
		t.Errorf("Unexpected dimensions: %+v", view)
	}
	if len(view.Rows) != 5 || len(view.Rows[0]) != 7 {
		t.Errorf("Expected 5 rows of 7, got %q", view.Rows)
	}

	text, err := http.Get(ts.URL + "/api/maze?format=text")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer text.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(text.Body)
	if buf.String() != engine.Level().Tiles.String() {
		t.Errorf("Text maze mismatch:\n%s", buf.String())
	}
}

func TestAPIGetEvents(t *testing.T) {
	engine := NewMockEngine(t)
	engine.addEvent(game.NewEvent(game.EventTypeAttack, 3, "player", game.AttackPayload{Hit: true, TargetID: 2}))
	engine.addEvent(game.NewEvent(game.EventTypeKill, 3, "enemy-2", game.EnemyPayload{EnemyID: 2, Kind: "skeleton"}))
	ts := newTestServer(t, api.RouterConfig{Engine: engine})

	resp, err := http.Get(ts.URL + "/api/events?n=1")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var events []struct {
		Type    string                 `json:"type"`
		Tick    uint64                 `json:"tick"`
		Payload map[string]interface{} `json:"payload"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(events) != 1 || events[0].Type != "kill" {
		t.Fatalf("Expected the latest kill event, got %+v", events)
	}
	if events[0].Payload["kind"] != "skeleton" {
		t.Errorf("Payload should be plain JSON, got %v", events[0].Payload)
	}

	bad, err := http.Get(ts.URL + "/api/events?n=zero")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad n, got %d", bad.StatusCode)
	}
}

func TestAPIFrame(t *testing.T) {
	engine := NewMockEngine(t)
	engine.publish(1)

	disabled := newTestServer(t, api.RouterConfig{Engine: engine})
	resp, err := http.Get(disabled.URL + "/api/frame.png")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 without a painter, got %d", resp.StatusCode)
	}

	opts := render.DefaultOptions()
	opts.Scale = 1
	ts := newTestServer(t, api.RouterConfig{Engine: engine, Painter: render.NewPainter(32, 20, opts)})

	resp, err = http.Get(ts.URL + "/api/frame.png")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %q", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 20 {
		t.Errorf("Unexpected frame size %v", img.Bounds())
	}
}

func TestAPIBeat(t *testing.T) {
	engine := NewMockEngine(t)
	wav := []byte("RIFF....WAVE")

	ts := newTestServer(t, api.RouterConfig{Engine: engine, Beat: wav})
	resp, err := http.Get(ts.URL + "/api/audio/beat.wav")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if resp.Header.Get("Content-Type") != "audio/wav" || !bytes.Equal(buf.Bytes(), wav) {
		t.Errorf("Unexpected beat response %q %q", resp.Header.Get("Content-Type"), buf.Bytes())
	}

	off := newTestServer(t, api.RouterConfig{Engine: engine})
	resp2, err := http.Get(off.URL + "/api/audio/beat.wav")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 with audio disabled, got %d", resp2.StatusCode)
	}
}

// ============================================================================
// Control Endpoint Tests
// ============================================================================

func TestAPIPlayerCommands(t *testing.T) {
	engine := NewMockEngine(t)
	ts := newTestServer(t, api.RouterConfig{Engine: engine})

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantKind   game.CommandKind
		wantValue  float64
	}{
		{"move", "/api/player/move", `{"distance": 0.5}`, http.StatusAccepted, game.CommandMove, 0.5},
		{"strafe", "/api/player/strafe", `{"distance": -0.25}`, http.StatusAccepted, game.CommandStrafe, -0.25},
		{"turn", "/api/player/turn", `{"angle": 0.1}`, http.StatusAccepted, game.CommandTurn, 0.1},
		{"attack", "/api/player/attack", ``, http.StatusAccepted, game.CommandAttack, 0},
		{"missing field", "/api/player/move", `{"angle": 1}`, http.StatusBadRequest, 0, 0},
		{"invalid json", "/api/player/turn", `{invalid}`, http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(engine.submitted())
			resp := post(t, ts.URL+tt.path, tt.body, nil)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}

			cmds := engine.submitted()
			if tt.wantStatus != http.StatusAccepted {
				if len(cmds) != before {
					t.Errorf("Rejected request should not queue a command")
				}
				return
			}
			last := cmds[len(cmds)-1]
			if last.Kind != tt.wantKind || last.Value != tt.wantValue {
				t.Errorf("Queued %+v, want kind %d value %v", last, tt.wantKind, tt.wantValue)
			}
		})
	}
}

func TestAPIQueueFull(t *testing.T) {
	engine := NewMockEngine(t)
	engine.queueFull = true
	ts := newTestServer(t, api.RouterConfig{Engine: engine})

	resp := post(t, ts.URL+"/api/player/attack", "", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when the queue is full, got %d", resp.StatusCode)
	}
}

func TestAPIControlToken(t *testing.T) {
	engine := NewMockEngine(t)
	ts := newTestServer(t, api.RouterConfig{Engine: engine, ControlToken: "s3cret"})

	tests := []struct {
		name       string
		header     map[string]string
		wantStatus int
	}{
		{"no token", nil, http.StatusUnauthorized},
		{"wrong token", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"wrong scheme", map[string]string{"Authorization": "Basic s3cret"}, http.StatusUnauthorized},
		{"right token", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/api/player/attack", "", tt.header)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}

	// Reads stay open.
	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected open read endpoint, got %d", resp.StatusCode)
	}
}

func TestAPIRateLimit(t *testing.T) {
	limiter := api.NewIPRateLimiter(api.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	defer limiter.Stop()
	ts := newTestServer(t, api.RouterConfig{Engine: NewMockEngine(t), RateLimiter: limiter})

	codes := make([]int, 3)
	for i := range codes {
		resp, err := http.Get(ts.URL + "/health")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		codes[i] = resp.StatusCode
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected 200,200,429 got %v", codes)
	}
	if stats := limiter.GetStats(); stats["rejected"] != 1 {
		t.Errorf("Expected one rejection, got %v", stats)
	}
}

// ============================================================================
// Origin & WebSocket Tests
// ============================================================================

func TestOriginPolicy(t *testing.T) {
	p := api.NewOriginPolicy([]string{"https://crawler.example"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", false},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"https://crawler.example", true},
		{"https://evil.example", false},
		{"https://crawler.example.evil", false},
		{"http://localhost.evil.example", false},
	}
	for _, tt := range tests {
		if got := p.IsAllowed(tt.origin); got != tt.want {
			t.Errorf("IsAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestWebSocketFramesAndCommands(t *testing.T) {
	engine := NewMockEngine(t)
	engine.publish(5)
	engine.addEvent(game.NewEvent(game.EventTypeLevelStart, 0, "", game.LevelStartPayload{Seed: 9}))

	cfg := config.DefaultServer()
	cfg.BroadcastHz = 50
	server := api.NewServer(engine, cfg, api.Options{})
	hub := server.Hub()
	go hub.Run()
	hub.StartBroadcastLoop(cfg.BroadcastHz)
	defer hub.Stop()

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	// Foreign origins are refused.
	if _, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}}); err == nil {
		t.Fatal("Expected dial from a foreign origin to fail")
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://localhost:3000"}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	seen := map[string]bool{}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for !(seen["game:frame"] && seen["game:events"]) {
		var msg struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v (seen %v)", err, seen)
		}
		seen[msg.Event] = true
	}

	if err := conn.WriteJSON(map[string]interface{}{"type": "turn", "value": 0.2}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if err := conn.WriteJSON(map[string]interface{}{"type": "dance"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if err := conn.WriteJSON(map[string]interface{}{"type": "attack"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(engine.submitted()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cmds := engine.submitted()
	if len(cmds) != 2 {
		t.Fatalf("Expected 2 commands, got %+v", cmds)
	}
	if cmds[0].Kind != game.CommandTurn || cmds[0].Value != 0.2 || cmds[1].Kind != game.CommandAttack {
		t.Errorf("Unexpected commands %+v", cmds)
	}
}
