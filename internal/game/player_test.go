package game

import (
	"math"
	"testing"

	"bone-crawler/internal/game/maze"
	"bone-crawler/internal/game/raycast"

	"github.com/go-gl/mathgl/mgl64"
)

func testRoom(t *testing.T) *maze.TileMap {
	t.Helper()
	tm, err := maze.Parse(
		"#######",
		"#.....#",
		"#.....#",
		"#.....#",
		"#######",
	)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return tm
}

func testPlayer(t *testing.T, pos, dir mgl64.Vec2) *Player {
	t.Helper()
	cam, err := raycast.NewCamera(pos, dir, 66*math.Pi/180)
	if err != nil {
		t.Fatalf("NewCamera: %v", err)
	}
	return NewPlayer(cam, 5)
}

// TestPlayerMove tests movement with wall collision
func TestPlayerMove(t *testing.T) {
	grid := testRoom(t)

	tests := []struct {
		name     string
		pos, dir mgl64.Vec2
		distance float64
		want     mgl64.Vec2
	}{
		{"open floor", mgl64.Vec2{1.5, 2.5}, mgl64.Vec2{1, 0}, 1, mgl64.Vec2{2.5, 2.5}},
		{"backwards", mgl64.Vec2{3.5, 2.5}, mgl64.Vec2{1, 0}, -1, mgl64.Vec2{2.5, 2.5}},
		{"blocked by wall", mgl64.Vec2{5.5, 2.5}, mgl64.Vec2{1, 0}, 1, mgl64.Vec2{5.5, 2.5}},
		{"slides along wall", mgl64.Vec2{5.5, 2.5}, mgl64.Vec2{1, 1}, 1, mgl64.Vec2{5.5, 2.5 + math.Sqrt2 / 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPlayer(t, tt.pos, tt.dir)
			p.Move(tt.distance, grid)
			if !vecNear(p.Camera.Pos, tt.want, 1e-9) {
				t.Errorf("expected %v, got %v", tt.want, p.Camera.Pos)
			}
		})
	}
}

// TestPlayerStrafe tests sideways movement
func TestPlayerStrafe(t *testing.T) {
	grid := testRoom(t)
	p := testPlayer(t, mgl64.Vec2{3.5, 2.5}, mgl64.Vec2{1, 0})

	// Facing east, right is south.
	p.Strafe(0.5, grid)
	if !vecNear(p.Camera.Pos, mgl64.Vec2{3.5, 3.0}, 1e-9) {
		t.Errorf("expected (3.5,3.0), got %v", p.Camera.Pos)
	}
	p.Strafe(5, grid)
	if p.Camera.Pos[1] >= 4 {
		t.Errorf("strafed into the wall: %v", p.Camera.Pos)
	}
}

// TestPlayerTurn tests that turning keeps the camera basis well formed
func TestPlayerTurn(t *testing.T) {
	p := testPlayer(t, mgl64.Vec2{3.5, 2.5}, mgl64.Vec2{1, 0})
	p.Turn(math.Pi)
	if !vecNear(p.Camera.Dir, mgl64.Vec2{-1, 0}, 1e-9) {
		t.Errorf("expected to face west, got %v", p.Camera.Dir)
	}
}

// TestAttackControllerCooldown tests swing gating
func TestAttackControllerCooldown(t *testing.T) {
	a := AttackController{Cooldown: 5}

	if a.Tick() {
		t.Error("no request, should not fire")
	}

	a.Request()
	if !a.Tick() {
		t.Fatal("first request should fire")
	}
	if a.Swing() != SwingFrames {
		t.Errorf("expected swing %d, got %d", SwingFrames, a.Swing())
	}

	for i := 1; i < 5; i++ {
		a.Request()
		if a.Tick() {
			t.Fatalf("fired during cooldown at tick %d", i)
		}
	}

	if !a.Ready() {
		t.Error("controller should be ready for the fifth tick")
	}
	a.Request()
	if !a.Tick() {
		t.Error("request should fire once the cooldown runs out")
	}
}

// TestAttackControllerDropsStaleRequests tests that a request made during
// cooldown does not fire later on its own
func TestAttackControllerDropsStaleRequests(t *testing.T) {
	a := AttackController{Cooldown: 2}
	a.Request()
	a.Tick()

	a.Request()
	a.Tick()
	if a.Tick() {
		t.Error("stale request fired after the cooldown")
	}
}

// vecNear compares by absolute distance. mgl64's Approx helpers are
// relative, so a zero component never matches rounding residue.
func vecNear[V interface {
	Sub(V) V
	Len() float64
}](got, want V, tol float64) bool {
	return got.Sub(want).Len() < tol
}
