package game

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// INTEGRATION TESTS: FRAME LOOP UNDER REAL CONSUMERS
// These tests run the engine on its own ticker while painters and input
// goroutines hit it the way the server and terminal client do
// =============================================================================

// TestIntegration_GameLoopWithRenderPressure runs the frame loop while a
// consumer pulls every frame and checks it is complete and in order
func TestIntegration_GameLoopWithRenderPressure(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := DefaultEngineConfig()
	cfg.Workers = 4
	cfg.Level = LevelConfig{MazeWidth: 10, MazeHeight: 10, Skeletons: 12, PlainEnemies: 4, SafeRadius: 2}
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	var (
		frames    int64
		badFrames int64
		outOfOrd  int64
	)

	testDuration := 2 * time.Second
	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	// Painter - polls faster than the engine ticks
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()

		var lastSeq uint64
		for {
			select {
			case <-stopChan:
				return
			case <-ticker.C:
				snap, ok := engine.Snapshot()
				if !ok {
					continue
				}
				if snap.Sequence < lastSeq {
					atomic.AddInt64(&outOfOrd, 1)
				}
				if snap.Sequence == lastSeq {
					continue
				}
				lastSeq = snap.Sequence
				atomic.AddInt64(&frames, 1)

				if len(snap.Columns) != cfg.Width || snap.Width != cfg.Width {
					atomic.AddInt64(&badFrames, 1)
					continue
				}
				for _, c := range snap.Columns {
					if c.Distance <= 0 || math.IsNaN(c.Distance) || math.IsInf(c.Distance, 0) {
						atomic.AddInt64(&badFrames, 1)
						break
					}
				}
			}
		}
	}()

	// Player - turns, walks and swings
	wg.Add(1)
	go func() {
		defer wg.Done()
		script := []Command{
			{Kind: CommandTurn, Value: 0.08},
			{Kind: CommandMove, Value: 0.05},
			{Kind: CommandAttack},
			{Kind: CommandStrafe, Value: -0.05},
		}
		for i := 0; ; i++ {
			select {
			case <-stopChan:
				return
			case <-time.After(10 * time.Millisecond):
				engine.Submit(script[i%len(script)])
			}
		}
	}()

	engine.Start()
	time.Sleep(testDuration)
	close(stopChan)
	wg.Wait()
	engine.Stop()

	t.Logf("Frames consumed: %d, bad: %d, out of order: %d", frames, badFrames, outOfOrd)

	if frames < int64(float64(cfg.TickRate)*testDuration.Seconds()*0.5) {
		t.Errorf("Consumer saw only %d frames in %v", frames, testDuration)
	}
	if badFrames > 0 {
		t.Errorf("%d incomplete or invalid frames", badFrames)
	}
	if outOfOrd > 0 {
		t.Errorf("%d frames went backwards", outOfOrd)
	}

	// The player never leaves open floor, however the script pushes it.
	cam := engine.Camera()
	if engine.Level().Tiles.IsWall(int(cam.Pos[0]), int(cam.Pos[1])) {
		t.Errorf("Player ended inside a wall at %v", cam.Pos)
	}

	stats := engine.Stats()
	if stats["attacks"] == 0 {
		t.Errorf("Expected attacks in stats, got %+v", stats)
	}
}

// TestIntegration_EventsFollowFrames checks that every event carries a tick
// that was actually published and that sequences increase
func TestIntegration_EventsFollowFrames(t *testing.T) {
	e := newTestEngine(t)
	if err := e.EventLog().Start(""); err != nil {
		t.Fatalf("event log: %v", err)
	}
	defer e.EventLog().Stop()

	e.emitLevelStart()
	placeTarget(e, 1.0)
	for i := 0; i < 40; i++ {
		e.Submit(Command{Kind: CommandAttack})
		e.Tick(1.0 / 30)
	}

	snap, _ := e.Snapshot()
	events := e.RecentEvents(100)
	if len(events) < 3 {
		t.Fatalf("Expected level start, attack and fracture events, got %d", len(events))
	}
	if events[0].Type != EventTypeLevelStart {
		t.Errorf("First event should be level start, got %s", events[0].Type)
	}

	var lastSeq uint64
	for _, ev := range events {
		if ev.Sequence <= lastSeq {
			t.Errorf("Sequence %d after %d", ev.Sequence, lastSeq)
		}
		lastSeq = ev.Sequence
		if ev.TickNum > snap.TickNumber {
			t.Errorf("Event at tick %d is ahead of frame %d", ev.TickNum, snap.TickNumber)
		}
	}
}

// TestIntegration_MemoryStability tests for leaks over a long session
func TestIntegration_MemoryStability(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping memory stability test in short mode")
	}

	engine := newTestEngine(t)

	// Force GC and get baseline
	runtime.GC()
	var baselineStats runtime.MemStats
	runtime.ReadMemStats(&baselineStats)

	iterations := 5000
	for i := 0; i < iterations; i++ {
		engine.Submit(Command{Kind: CommandTurn, Value: 0.03})
		if i%7 == 0 {
			engine.Submit(Command{Kind: CommandAttack})
		}
		engine.Tick(1.0 / 30)
		if i%3 == 0 {
			engine.Snapshot()
		}
	}

	// Final GC and measure
	runtime.GC()
	var finalStats runtime.MemStats
	runtime.ReadMemStats(&finalStats)

	heapGrowthMB := float64(int64(finalStats.HeapAlloc)-int64(baselineStats.HeapAlloc)) / (1024 * 1024)

	t.Logf("Memory Stability Results:")
	t.Logf("  Iterations: %d", iterations)
	t.Logf("  Baseline Heap: %.2f MB", float64(baselineStats.HeapAlloc)/(1024*1024))
	t.Logf("  Final Heap: %.2f MB", float64(finalStats.HeapAlloc)/(1024*1024))
	t.Logf("  Heap Growth: %.2f MB", heapGrowthMB)

	// The recent-event ring and snapshot pool are fixed size
	if heapGrowthMB > 10 {
		t.Errorf("Significant memory growth: %.2f MB", heapGrowthMB)
	}
}
