package game

import (
	"sync/atomic"
	"time"

	"bone-crawler/internal/game/raycast"
	"bone-crawler/internal/game/sprite"
)

// ResourceLimits caps what a single snapshot may carry
type ResourceLimits struct {
	MaxColumns int // Widest frame the pool pre-allocates for
	MaxEnemies int // Enemies copied into one snapshot
}

// DefaultLimits fits a 640-column view and a crowded level
var DefaultLimits = ResourceLimits{
	MaxColumns: 640,
	MaxEnemies: 64,
}

// CameraSnapshot is the viewpoint the frame was cast from
type CameraSnapshot struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DirX   float64 `json:"dirX"`
	DirY   float64 `json:"dirY"`
	PlaneX float64 `json:"planeX"`
	PlaneY float64 `json:"planeY"`
}

// PlayerSnapshot is the HUD-facing part of player state
type PlayerSnapshot struct {
	Kills    int `json:"kills"`
	Attacks  int `json:"attacks"`
	Hits     int `json:"hits"`
	Cooldown int `json:"cooldown"`
	Swing    int `json:"swing"`
}

// NearestSnapshot points through the maze toward the closest living enemy
type NearestSnapshot struct {
	Steps int `json:"steps"` // Tiles to walk, -1 when nothing is left
	DX    int `json:"dx"`
	DY    int `json:"dy"`
}

// EnemySnapshot is an immutable copy of one enemy and its projection
type EnemySnapshot struct {
	ID       int           `json:"id"`
	Kind     string        `json:"kind"`
	X        float64       `json:"x"`
	Y        float64       `json:"y"`
	Alive    bool          `json:"alive"`
	State    string        `json:"state"`
	Bones    int           `json:"bones"`
	Broken   int           `json:"broken"`
	Distance float64       `json:"distance"`
	Sprite   sprite.Sprite `json:"sprite"`
}

// GameSnapshot is one finished frame: wall columns, projected enemies and
// the state a painter or HUD needs. Readers get their own copy.
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tick"`
	Seed       int64     `json:"seed"`

	Width  int `json:"width"`
	Height int `json:"height"`

	Camera  CameraSnapshot  `json:"camera"`
	Player  PlayerSnapshot  `json:"player"`
	Nearest NearestSnapshot `json:"nearest"`
	Columns []raycast.Hit   `json:"columns"`
	Enemies []EnemySnapshot `json:"enemies"`

	EnemyCount int `json:"enemyCount"`
	AliveCount int `json:"aliveCount"`
	TotalKills int `json:"totalKills"`
}

// Clone deep-copies the snapshot so it can leave the engine lock
func (s *GameSnapshot) Clone() GameSnapshot {
	out := *s
	out.Columns = append([]raycast.Hit(nil), s.Columns...)
	out.Enemies = make([]EnemySnapshot, len(s.Enemies))
	for i, e := range s.Enemies {
		e.Sprite.Segments = append([]sprite.Segment(nil), e.Sprite.Segments...)
		out.Enemies[i] = e
	}
	return out
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
// Uses triple buffering; the producer writes while holding the engine
// lock and readers clone under the read lock.
type SnapshotPool struct {
	snapshots [3]GameSnapshot
	limits    ResourceLimits
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32 // atomic - consumer index
	sequence  uint64 // atomic - monotonic sequence
	published atomic.Bool
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(limits ResourceLimits) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}

	for i := 0; i < 3; i++ {
		pool.snapshots[i] = GameSnapshot{
			Columns: make([]raycast.Hit, 0, limits.MaxColumns),
			Enemies: make([]EnemySnapshot, 0, limits.MaxEnemies),
		}
	}

	return pool
}

// AcquireWrite gets the next write slot (producer only, called from the tick)
// Returns a snapshot with reset slices but preserved capacity
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snap.Columns = snap.Columns[:0]
	snap.Enemies = snap.Enemies[:0]

	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()

	return snap
}

// PublishWrite marks write complete and advances read pointer
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
	p.published.Store(true)
}

// AcquireRead gets the latest complete snapshot.
// Returns nil if no frame has been published yet.
func (p *SnapshotPool) AcquireRead() *GameSnapshot {
	if !p.published.Load() {
		return nil
	}
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}

// GetLimits returns the resource limits
func (p *SnapshotPool) GetLimits() ResourceLimits {
	return p.limits
}
