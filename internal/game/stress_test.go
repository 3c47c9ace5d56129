package game

import (
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// STRESS TEST SUITE: REAL-WORLD LOAD SIMULATION
// Run with: go test -v -run=TestStress -timeout=60s ./internal/game/...
// =============================================================================

// StressTestResult contains metrics from stress tests
type StressTestResult struct {
	Duration        time.Duration
	TotalTicks      int64
	AvgTickTime     time.Duration
	MaxTickTime     time.Duration
	P99TickTime     time.Duration
	TicksPerSecond  float64
	CommandsHandled int64
	DroppedCommands int64
	SnapshotsRead   int64
}

// StressTestConfig configures stress test parameters
type StressTestConfig struct {
	Duration         time.Duration
	TargetFPS        int
	Width            int
	Skeletons        int
	Submitters       int           // Goroutines feeding commands
	CommandInterval  time.Duration // Per submitter
	Readers          int           // Goroutines cloning snapshots
	LatencyThreshold time.Duration
}

// DefaultStressConfig returns a busy but realistic session
func DefaultStressConfig() StressTestConfig {
	return StressTestConfig{
		Duration:         3 * time.Second,
		TargetFPS:        30,
		Width:            320,
		Skeletons:        30,
		Submitters:       4,
		CommandInterval:  2 * time.Millisecond,
		Readers:          4,
		LatencyThreshold: 20 * time.Millisecond, // Max acceptable tick time
	}
}

// tickTimer records frame durations from the engine's observer hook
type tickTimer struct {
	mu    sync.Mutex
	times []time.Duration
}

func (o *tickTimer) RecordFrame(total, _ time.Duration) {
	o.mu.Lock()
	o.times = append(o.times, total)
	o.mu.Unlock()
}

func (o *tickTimer) RecordMelee(string) {}
func (o *tickTimer) RecordBonesBroken(int) {}
func (o *tickTimer) UpdateEnemies(int, int) {}

// -----------------------------------------------------------------------------
// STRESS TEST: SUSTAINED LOAD
// -----------------------------------------------------------------------------

func TestStress_SustainedLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	cfg := DefaultStressConfig()
	result := runStressTest(t, cfg)

	if result.AvgTickTime > cfg.LatencyThreshold {
		t.Errorf("Average tick time %v exceeds threshold %v", result.AvgTickTime, cfg.LatencyThreshold)
	}

	expectedTPS := float64(cfg.TargetFPS) * 0.8 // Allow 20% variance
	if result.TicksPerSecond < expectedTPS {
		t.Errorf("Ticks per second %.2f below expected %.2f", result.TicksPerSecond, expectedTPS)
	}
	if result.CommandsHandled == 0 {
		t.Error("No commands were accepted")
	}

	t.Logf("Stress Test Results:")
	t.Logf("  Duration: %v", result.Duration)
	t.Logf("  Total Ticks: %d", result.TotalTicks)
	t.Logf("  Avg Tick Time: %v", result.AvgTickTime)
	t.Logf("  P99 Tick Time: %v", result.P99TickTime)
	t.Logf("  Max Tick Time: %v", result.MaxTickTime)
	t.Logf("  TPS: %.2f", result.TicksPerSecond)
	t.Logf("  Commands Handled: %d (dropped %d)", result.CommandsHandled, result.DroppedCommands)
	t.Logf("  Snapshots Read: %d", result.SnapshotsRead)
}

// -----------------------------------------------------------------------------
// STRESS TEST: WIDE VIEW
// -----------------------------------------------------------------------------

func TestStress_WideView(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	cfg := DefaultStressConfig()
	cfg.Width = 640
	cfg.Skeletons = 60
	cfg.Duration = 2 * time.Second

	result := runStressTest(t, cfg)

	if result.P99TickTime > 2*cfg.LatencyThreshold {
		t.Errorf("P99 tick time %v exceeds %v", result.P99TickTime, 2*cfg.LatencyThreshold)
	}
	t.Logf("Wide view: avg %v, p99 %v, %d ticks", result.AvgTickTime, result.P99TickTime, result.TotalTicks)
}

// -----------------------------------------------------------------------------
// STRESS TEST: COMMAND FLOOD
// -----------------------------------------------------------------------------

// TestStress_CommandFlood checks that a flood of input is shed at the queue
// instead of stalling the frame loop
func TestStress_CommandFlood(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	cfg := DefaultStressConfig()
	cfg.Submitters = 16
	cfg.CommandInterval = 0
	cfg.Duration = 2 * time.Second

	result := runStressTest(t, cfg)

	if result.DroppedCommands == 0 {
		t.Error("Expected the queue to shed some of the flood")
	}
	if result.AvgTickTime > cfg.LatencyThreshold {
		t.Errorf("Average tick time %v exceeds threshold %v under flood", result.AvgTickTime, cfg.LatencyThreshold)
	}
}

func runStressTest(t *testing.T, cfg StressTestConfig) StressTestResult {
	t.Helper()

	engineCfg := DefaultEngineConfig()
	engineCfg.TickRate = cfg.TargetFPS
	engineCfg.Width = cfg.Width
	engineCfg.Height = cfg.Width * 5 / 8
	engineCfg.Level = LevelConfig{MazeWidth: 16, MazeHeight: 16, Skeletons: cfg.Skeletons, SafeRadius: 2}

	engine, err := NewEngine(engineCfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	timer := &tickTimer{}
	engine.SetObserver(timer)

	var (
		handled atomic.Int64
		dropped atomic.Int64
		reads   atomic.Int64
		wg      sync.WaitGroup
	)
	stop := make(chan struct{})

	kinds := []CommandKind{CommandMove, CommandStrafe, CommandTurn, CommandAttack}
	for i := 0; i < cfg.Submitters; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
				}
				cmd := Command{Kind: kinds[rng.Intn(len(kinds))], Value: rng.Float64()*0.2 - 0.1}
				if engine.Submit(cmd) {
					handled.Add(1)
				} else {
					dropped.Add(1)
				}
				if cfg.CommandInterval > 0 {
					time.Sleep(cfg.CommandInterval)
				}
			}
		}(int64(i + 1))
	}

	for i := 0; i < cfg.Readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, ok := engine.Snapshot(); ok {
					reads.Add(1)
				}
				time.Sleep(time.Millisecond)
			}
		}()
	}

	start := time.Now()
	engine.Start()
	time.Sleep(cfg.Duration)
	close(stop)
	wg.Wait()
	engine.Stop()
	elapsed := time.Since(start)

	timer.mu.Lock()
	times := append([]time.Duration(nil), timer.times...)
	timer.mu.Unlock()

	result := StressTestResult{
		Duration:        elapsed,
		TotalTicks:      int64(len(times)),
		CommandsHandled: handled.Load(),
		DroppedCommands: dropped.Load(),
		SnapshotsRead:   reads.Load(),
	}
	if len(times) == 0 {
		t.Fatal("engine produced no frames")
	}

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	var total time.Duration
	for _, d := range times {
		total += d
	}
	result.AvgTickTime = total / time.Duration(len(times))
	result.MaxTickTime = times[len(times)-1]
	result.P99TickTime = times[len(times)*99/100]
	result.TicksPerSecond = float64(len(times)) / elapsed.Seconds()

	return result
}
