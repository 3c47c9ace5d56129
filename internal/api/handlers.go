package api

import (
	"bytes"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bone-crawler/internal/game"
)

// maxEvents caps /api/events responses.
const maxEvents = 64

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.engine.Snapshot()
	if !ok {
		writeError(w, "No frame yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()
	stats["rateLimit"] = h.limiter.GetStats()
	writeJSON(w, stats)
}

// mazeView is the JSON form of the level layout.
type mazeView struct {
	CellsWide int      `json:"cellsWide"`
	CellsHigh int      `json:"cellsHigh"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Rows      []string `json:"rows"`
	SpawnX    float64  `json:"spawnX"`
	SpawnY    float64  `json:"spawnY"`
}

func (h *routerHandlers) handleGetMaze(w http.ResponseWriter, r *http.Request) {
	level := h.engine.Level()
	if level == nil {
		writeError(w, "No level", http.StatusServiceUnavailable)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(level.Tiles.String()))
		return
	}

	writeJSON(w, mazeView{
		CellsWide: level.Maze.Width(),
		CellsHigh: level.Maze.Height(),
		Width:     level.Tiles.Width(),
		Height:    level.Tiles.Height(),
		Rows:      strings.Split(strings.TrimRight(level.Tiles.String(), "\n"), "\n"),
		SpawnX:    level.Spawn[0],
		SpawnY:    level.Spawn[1],
	})
}

// eventView decodes the stored payload so clients get plain JSON.
type eventView struct {
	Type     string          `json:"type"`
	Sequence uint64          `json:"sequence"`
	Tick     uint64          `json:"tick"`
	EntityID string          `json:"entityId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

func viewEvent(ev game.Event) eventView {
	return eventView{
		Type:     ev.Type.String(),
		Sequence: ev.Sequence,
		Tick:     ev.TickNum,
		EntityID: ev.EntityID,
		Payload:  json.RawMessage(ev.Payload),
	}
}

func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	n := 20
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	if n > maxEvents {
		n = maxEvents
	}

	events := h.engine.RecentEvents(n)
	out := make([]eventView, 0, len(events))
	for _, ev := range events {
		out = append(out, viewEvent(ev))
	}
	writeJSON(w, out)
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.painter == nil {
		writeError(w, "Frame rendering disabled", http.StatusNotFound)
		return
	}
	snap, ok := h.engine.Snapshot()
	if !ok {
		writeError(w, "No frame yet", http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := h.painter.WritePNG(&buf, &snap, h.engine.Level().Tiles); err != nil {
		log.Printf("❌ Frame render failed: %v", err)
		writeError(w, "Render failed", http.StatusInternalServerError)
		return
	}
	RecordRender(time.Since(start))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleGetBeat(w http.ResponseWriter, r *http.Request) {
	if h.beat == nil {
		writeError(w, "Audio disabled", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(h.beat)))
	w.Write(h.beat)
}

func (h *routerHandlers) handleMove(w http.ResponseWriter, r *http.Request) {
	h.submitValue(w, r, game.CommandMove, "distance")
}

func (h *routerHandlers) handleStrafe(w http.ResponseWriter, r *http.Request) {
	h.submitValue(w, r, game.CommandStrafe, "distance")
}

func (h *routerHandlers) handleTurn(w http.ResponseWriter, r *http.Request) {
	h.submitValue(w, r, game.CommandTurn, "angle")
}

func (h *routerHandlers) handleAttack(w http.ResponseWriter, r *http.Request) {
	h.submit(w, game.Command{Kind: game.CommandAttack})
}

// submitValue decodes {"<field>": number} and queues it as kind.
func (h *routerHandlers) submitValue(w http.ResponseWriter, r *http.Request, kind game.CommandKind, field string) {
	var req map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	v, ok := req[field]
	if !ok {
		writeError(w, field+" is required", http.StatusBadRequest)
		return
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		writeError(w, field+" must be finite", http.StatusBadRequest)
		return
	}

	h.submit(w, game.Command{Kind: kind, Value: v})
}

func (h *routerHandlers) submit(w http.ResponseWriter, cmd game.Command) {
	if !h.engine.Submit(cmd) {
		RecordCommandDropped("queue_full")
		writeError(w, "Command queue full", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]bool{"queued": true})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
