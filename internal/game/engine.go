package game

import (
	"log"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"bone-crawler/internal/game/maze"
	"bone-crawler/internal/game/raycast"
	"bone-crawler/internal/game/skeleton"
	"bone-crawler/internal/game/spatial"
	"bone-crawler/internal/game/sprite"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// EngineConfig collects everything the engine needs to build a level and
// run frames.
type EngineConfig struct {
	TickRate  int
	Width     int
	Height    int
	FOV       float64
	NearPlane float64
	Workers   int
	Seed      int64

	// EventLogPath receives JSON lines; empty keeps events in memory
	EventLogPath string

	Level    LevelConfig
	Movement MovementConfig
	Combat   Resolver
	Cooldown int
	Body     skeleton.Config
	Physics  skeleton.Physics
	Limits   ResourceLimits
}

// DefaultEngineConfig returns a playable 320x200 setup.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickRate:  30,
		Width:     320,
		Height:    200,
		FOV:       66 * math.Pi / 180,
		NearPlane: sprite.DefaultNearPlane,
		Seed:      1,
		Level:     DefaultLevelConfig(),
		Movement:  DefaultMovementConfig(),
		Combat:    DefaultResolver(),
		Cooldown:  5,
		Body:      skeleton.DefaultConfig(),
		Physics:   skeleton.DefaultPhysics(),
		Limits:    DefaultLimits,
	}
}

// CommandKind enumerates player inputs.
type CommandKind uint8

const (
	CommandMove   CommandKind = iota // Value: distance, negative backs up
	CommandStrafe                    // Value: distance, positive to the right
	CommandTurn                      // Value: radians, positive to the right
	CommandAttack
)

// Command is one queued input, applied at the start of the next frame.
type Command struct {
	Kind  CommandKind
	Value float64
}

// FrameObserver receives per-frame measurements. Implementations must be
// cheap; they run inside the tick.
type FrameObserver interface {
	RecordFrame(total, raycast time.Duration)
	RecordMelee(outcome string)
	RecordBonesBroken(n int)
	UpdateEnemies(alive, total int)
}

type noopObserver struct{}

func (noopObserver) RecordFrame(time.Duration, time.Duration) {}
func (noopObserver) RecordMelee(string) {}
func (noopObserver) RecordBonesBroken(int) {}
func (noopObserver) UpdateEnemies(int, int) {}

// commandQueueSize bounds inputs buffered between frames.
const commandQueueSize = 64

// Engine owns a level and advances it one frame per tick:
// inputs, fracture physics, melee, ray casting, projection, snapshot.
type Engine struct {
	mu  sync.RWMutex
	cfg EngineConfig

	level     *Level
	player    *Player
	resolver  Resolver
	physics   skeleton.Physics
	projector sprite.Projector

	// Per-frame wall buffers, reused every tick
	pool  *raycast.ColumnPool
	hits  []raycast.Hit
	depth raycast.DepthBuffer

	// Distance field toward living enemies, rebuilt on every kill
	tracker *spatial.FlowField

	commands chan Command

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	doneChan chan struct{}

	tickCount  uint64
	totalKills int

	snapshotPool *SnapshotPool
	eventLog     *EventLog
	observer     FrameObserver

	// Seeded source for level generation and combat
	rng  *rand.Rand
	seed int64

	// OnKill fires inside the tick when an enemy dies
	OnKill func(e *Enemy)
}

// NewEngine builds the level described by cfg. Invalid settings are
// rejected here so the frame loop never sees them.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.TickRate <= 0 {
		return nil, errors.Errorf("tick rate must be positive, got %d", cfg.TickRate)
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, errors.Errorf("screen must be at least 1x1, got %dx%d", cfg.Width, cfg.Height)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	level, err := NewLevel(cfg.Level, cfg.Body, rng)
	if err != nil {
		return nil, errors.Wrap(err, "new level")
	}

	cam, err := raycast.NewCamera(level.Spawn, level.SpawnFacing(), cfg.FOV)
	if err != nil {
		return nil, errors.Wrap(err, "spawn camera")
	}

	projector := sprite.NewProjector(cfg.Width, cfg.Height)
	if cfg.NearPlane > 0 {
		projector.NearPlane = cfg.NearPlane
	}

	limits := cfg.Limits
	if limits.MaxColumns < cfg.Width {
		limits.MaxColumns = cfg.Width
	}

	e := &Engine{
		cfg:          cfg,
		level:        level,
		player:       NewPlayer(cam, cfg.Cooldown),
		resolver:     cfg.Combat,
		physics:      cfg.Physics,
		projector:    projector,
		pool:         raycast.NewColumnPool(cfg.Workers),
		hits:         make([]raycast.Hit, cfg.Width),
		depth:        raycast.NewDepthBuffer(cfg.Width),
		tracker:      spatial.NewFlowField(level.Tiles),
		commands:     make(chan Command, commandQueueSize),
		tickRate:     cfg.TickRate,
		snapshotPool: NewSnapshotPool(limits),
		eventLog:     NewEventLog(),
		observer:     noopObserver{},
		rng:          rng,
		seed:         cfg.Seed,
	}

	e.retrack()

	log.Printf("🗺️  Level built: seed=%d maze=%dx%d tiles=%dx%d enemies=%d",
		cfg.Seed, level.Maze.Width(), level.Maze.Height(),
		level.Tiles.Width(), level.Tiles.Height(), len(level.Enemies))

	return e, nil
}

// SetObserver installs a metrics sink. Call before Start.
func (e *Engine) SetObserver(o FrameObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o == nil {
		o = noopObserver{}
	}
	e.observer = o
}

// EventLog exposes the engine's event log
func (e *Engine) EventLog() *EventLog {
	return e.eventLog
}

// RecentEvents returns up to n of the latest events, oldest first
func (e *Engine) RecentEvents(n int) []Event {
	return e.eventLog.Recent(n)
}

// Start begins the frame loop and the column workers
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))
	e.stopChan = make(chan struct{})
	e.doneChan = make(chan struct{})
	ticker, stop, done := e.ticker, e.stopChan, e.doneChan
	e.mu.Unlock()

	e.pool.Start()
	if err := e.eventLog.Start(e.cfg.EventLogPath); err != nil {
		log.Printf("⚠️ Event log disabled: %v", err)
	}
	e.emitLevelStart()

	dt := 1.0 / float64(e.tickRate)
	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				e.Tick(dt)
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Engine started at %d TPS (%d raycast workers)", e.tickRate, e.pool.NumWorkers())
}

// Stop halts the frame loop and waits for the current frame to finish
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.ticker.Stop()
	close(e.stopChan)
	done := e.doneChan
	e.mu.Unlock()

	<-done
	e.pool.Stop()
	e.eventLog.Stop()
	log.Println("🛑 Engine stopped")
}

// Submit queues a command for the next frame. Returns false when the
// queue is full.
func (e *Engine) Submit(cmd Command) bool {
	select {
	case e.commands <- cmd:
		return true
	default:
		return false
	}
}

// Tick runs one frame of dt seconds. The frame loop calls it on every
// ticker beat; callers driving their own loop may call it directly.
func (e *Engine) Tick(dt float64) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCount++

	e.applyCommands(dt)
	e.stepPhysics(dt)

	if e.player.Attack.Tick() {
		e.resolveAttack()
	}

	castStart := time.Now()
	e.pool.Cast(e.player.Camera, e.level.Tiles, e.hits, e.depth)
	castTime := time.Since(castStart)

	e.publishSnapshot()

	e.observer.RecordFrame(time.Since(start), castTime)
	e.observer.UpdateEnemies(e.level.AliveCount(), len(e.level.Enemies))
}

// applyCommands drains queued inputs without blocking
func (e *Engine) applyCommands(dt float64) {
	for {
		select {
		case cmd := <-e.commands:
			e.apply(cmd, dt)
		default:
			return
		}
	}
}

func (e *Engine) apply(cmd Command, dt float64) {
	if math.IsNaN(cmd.Value) || math.IsInf(cmd.Value, 0) {
		return
	}
	switch cmd.Kind {
	case CommandMove:
		e.player.Move(clamp(cmd.Value, e.cfg.Movement.MoveSpeed*dt), e.level.Tiles)
	case CommandStrafe:
		e.player.Strafe(clamp(cmd.Value, e.cfg.Movement.MoveSpeed*dt), e.level.Tiles)
	case CommandTurn:
		e.player.Turn(clamp(cmd.Value, e.cfg.Movement.TurnSpeed*dt))
	case CommandAttack:
		e.player.Attack.Request()
	}
}

// clamp limits a per-frame input to what one frame allows
func clamp(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	return math.Max(-limit, math.Min(limit, v))
}

// stepPhysics advances every skeleton and reports finished explosions.
// A body can still be alive while it explodes; the frame that clears it
// is the kill.
func (e *Engine) stepPhysics(dt float64) {
	for _, enemy := range e.level.Enemies {
		if enemy.Body == nil || enemy.Body.State() == skeleton.Removed {
			continue
		}
		wasAlive := enemy.Alive()
		e.physics.Step(enemy.Body, dt)
		if enemy.Body.State() == skeleton.Removed {
			e.eventLog.EmitSimple(EventTypeRemoved, e.tickCount, enemyKey(enemy), enemyPayload(enemy))
		}
		if wasAlive && !enemy.Alive() {
			e.recordKill(enemy)
		}
	}
}

// resolveAttack runs one melee swing from the player's camera
func (e *Engine) resolveAttack() {
	cam := e.player.Camera
	e.player.Attacks++

	res, ok := e.resolver.AttemptMeleeAttack(cam.Pos, cam.Dir, e.level.Enemies, e.rng)

	payload := AttackPayload{X: cam.Pos[0], Y: cam.Pos[1], DirX: cam.Dir[0], DirY: cam.Dir[1], Hit: ok}
	if !ok {
		e.observer.RecordMelee("miss")
		e.eventLog.EmitSimple(EventTypeAttack, e.tickCount, "player", payload)
		return
	}

	e.player.Hits++
	payload.TargetID = res.Target.ID
	payload.Distance = res.Distance
	e.observer.RecordMelee("hit")
	e.eventLog.EmitSimple(EventTypeAttack, e.tickCount, "player", payload)

	key := enemyKey(res.Target)
	if res.Target.Body != nil {
		e.observer.RecordBonesBroken(res.BonesBroken)
		e.eventLog.EmitSimple(EventTypeFracture, e.tickCount, key, FracturePayload{
			EnemyID:     res.Target.ID,
			BonesBroken: res.BonesBroken,
			TotalBroken: res.Target.Body.BrokenCount(),
			TotalBones:  res.Target.Body.Len(),
		})
	}
	if res.Exploded {
		e.eventLog.EmitSimple(EventTypeExplode, e.tickCount, key, enemyPayload(res.Target))
	}
	if res.Killed {
		e.recordKill(res.Target)
	}
}

// recordKill counts a death, drops the enemy from the tracker and
// notifies listeners
func (e *Engine) recordKill(enemy *Enemy) {
	e.totalKills++
	e.player.Kills++
	e.eventLog.EmitSimple(EventTypeKill, e.tickCount, enemyKey(enemy), enemyPayload(enemy))
	e.retrack()
	log.Printf("💀 Enemy %d (%s) destroyed at %.1f,%.1f", enemy.ID, enemy.Kind(), enemy.Pos[0], enemy.Pos[1])
	if e.OnKill != nil {
		e.OnKill(enemy)
	}
}

// retrack points the tracker at the tiles of the living enemies
func (e *Engine) retrack() {
	goals := make([]maze.Point, 0, len(e.level.Enemies))
	for _, enemy := range e.level.Enemies {
		if enemy.Alive() {
			goals = append(goals, maze.Point{X: int(enemy.Pos[0]), Y: int(enemy.Pos[1])})
		}
	}
	e.tracker.Generate(e.level.Tiles, goals)
}

// publishSnapshot projects enemies against this frame's depth buffer and
// writes the finished frame into the snapshot pool
func (e *Engine) publishSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	cam := e.player.Camera

	snap.TickNumber = e.tickCount
	snap.Seed = e.seed
	snap.Width = e.cfg.Width
	snap.Height = e.cfg.Height
	snap.Camera = CameraSnapshot{
		X: cam.Pos[0], Y: cam.Pos[1],
		DirX: cam.Dir[0], DirY: cam.Dir[1],
		PlaneX: cam.Plane[0], PlaneY: cam.Plane[1],
	}
	snap.Player = PlayerSnapshot{
		Kills:    e.player.Kills,
		Attacks:  e.player.Attacks,
		Hits:     e.player.Hits,
		Cooldown: e.player.Attack.Remaining(),
		Swing:    e.player.Attack.Swing(),
	}
	snap.Columns = append(snap.Columns, e.hits...)

	px, py := int(cam.Pos[0]), int(cam.Pos[1])
	snap.Nearest.Steps = e.tracker.Cost(px, py)
	snap.Nearest.DX, snap.Nearest.DY, _ = e.tracker.Step(px, py)

	limit := e.snapshotPool.GetLimits().MaxEnemies
	for _, enemy := range e.level.Enemies {
		if enemy.Gone() {
			continue
		}
		if len(snap.Enemies) >= limit {
			break
		}
		snap.Enemies = append(snap.Enemies, e.snapshotEnemy(enemy, cam))
	}

	snap.EnemyCount = len(e.level.Enemies)
	snap.AliveCount = e.level.AliveCount()
	snap.TotalKills = e.totalKills

	e.snapshotPool.PublishWrite()
}

func (e *Engine) snapshotEnemy(enemy *Enemy, cam raycast.Camera) EnemySnapshot {
	es := EnemySnapshot{
		ID:       enemy.ID,
		Kind:     enemy.Kind(),
		X:        enemy.Pos[0],
		Y:        enemy.Pos[1],
		Alive:    enemy.Alive(),
		State:    enemy.State().String(),
		Distance: enemy.Pos.Sub(cam.Pos).Len(),
	}

	if enemy.Body == nil {
		es.Sprite.Anchor, es.Sprite.AnchorVisible = e.projector.Project(enemy.Pos, cam, e.depth)
		return es
	}

	es.Bones = enemy.Body.Len()
	es.Broken = enemy.Body.BrokenCount()
	es.Sprite = e.projector.ProjectSkeleton(enemy.Pos, enemy.Body, cam, e.depth)
	return es
}

func (e *Engine) emitLevelStart() {
	e.mu.RLock()
	defer e.mu.RUnlock()

	e.eventLog.EmitSimple(EventTypeLevelStart, e.tickCount, "", LevelStartPayload{
		Seed:       e.seed,
		MazeWidth:  e.level.Maze.Width(),
		MazeHeight: e.level.Maze.Height(),
		Enemies:    len(e.level.Enemies),
		SpawnX:     e.level.Spawn[0],
		SpawnY:     e.level.Spawn[1],
	})
}

// Snapshot returns a private copy of the latest frame, or false before the
// first tick
func (e *Engine) Snapshot() (GameSnapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := e.snapshotPool.AcquireRead()
	if snap == nil {
		return GameSnapshot{}, false
	}
	return snap.Clone(), true
}

// Level returns the current level. The maze and tile map are immutable;
// enemies must only be read through snapshots.
func (e *Engine) Level() *Level {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.level
}

// Camera returns the player's current viewpoint
func (e *Engine) Camera() raycast.Camera {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.player.Camera
}

// Face points the camera along dir, keeping the field of view
func (e *Engine) Face(dir mgl64.Vec2) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cam, err := raycast.NewCamera(e.player.Camera.Pos, dir, e.player.Camera.FOV())
	if err != nil {
		return err
	}
	e.player.Camera = cam
	return nil
}

// Stats returns counters for the stats endpoint
func (e *Engine) Stats() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return map[string]interface{}{
		"tick":       e.tickCount,
		"seed":       e.seed,
		"enemies":    len(e.level.Enemies),
		"alive":      e.level.AliveCount(),
		"kills":      e.totalKills,
		"attacks":    e.player.Attacks,
		"hits":       e.player.Hits,
		"running":    e.running,
		"workers":    e.pool.NumWorkers(),
		"eventLog":   e.eventLog.GetStats(),
		"resolution": strconv.Itoa(e.cfg.Width) + "x" + strconv.Itoa(e.cfg.Height),
	}
}

func enemyKey(e *Enemy) string {
	return "enemy-" + strconv.Itoa(e.ID)
}

func enemyPayload(e *Enemy) EnemyPayload {
	return EnemyPayload{EnemyID: e.ID, Kind: e.Kind(), X: e.Pos[0], Y: e.Pos[1]}
}
