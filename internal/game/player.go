package game

import (
	"math"

	"bone-crawler/internal/game/raycast"

	"github.com/go-gl/mathgl/mgl64"
)

// MovementConfig controls how fast the player walks and turns.
type MovementConfig struct {
	MoveSpeed float64 // world units per second
	TurnSpeed float64 // radians per second
}

// DefaultMovementConfig mirrors the classic keyboard feel.
func DefaultMovementConfig() MovementConfig {
	return MovementConfig{
		MoveSpeed: 3.0,
		TurnSpeed: 2.5,
	}
}

// Player is the first-person viewer.
type Player struct {
	Camera raycast.Camera
	Attack AttackController

	Kills   int
	Attacks int
	Hits    int
}

// NewPlayer places a player with the given camera.
func NewPlayer(cam raycast.Camera, cooldown int) *Player {
	return &Player{
		Camera: cam,
		Attack: AttackController{Cooldown: cooldown},
	}
}

// Move walks distance along the view direction (negative walks back).
// Each axis is checked against the grid separately so the player slides
// along walls instead of sticking to them.
func (p *Player) Move(distance float64, grid raycast.Grid) {
	p.translate(p.Camera.Dir.Mul(distance), grid)
}

// Strafe steps sideways, positive to the right.
func (p *Player) Strafe(distance float64, grid raycast.Grid) {
	right, ok := unit(p.Camera.Plane)
	if !ok {
		return
	}
	p.translate(right.Mul(distance), grid)
}

func (p *Player) translate(step mgl64.Vec2, grid raycast.Grid) {
	if math.IsNaN(step[0]) || math.IsNaN(step[1]) {
		return
	}
	pos := p.Camera.Pos

	if nx := pos[0] + step[0]; !grid.IsWall(int(math.Floor(nx)), int(math.Floor(pos[1]))) {
		pos[0] = nx
	}
	if ny := pos[1] + step[1]; !grid.IsWall(int(math.Floor(pos[0])), int(math.Floor(ny))) {
		pos[1] = ny
	}

	p.Camera.Pos = pos
}

// Turn rotates the view, positive to the right.
func (p *Player) Turn(angle float64) {
	p.Camera = p.Camera.Rotate(angle)
}

// SwingFrames is how long the attack animation shows after a swing.
const SwingFrames = 4

// AttackController gates melee swings with a cooldown measured in ticks.
// Requests made while cooling down are dropped.
type AttackController struct {
	Cooldown int

	remaining int
	requested bool
	swing     int
}

// Request asks for a swing on the next tick.
func (a *AttackController) Request() { a.requested = true }

// Ready reports whether a request would fire on the next tick.
func (a *AttackController) Ready() bool { return a.remaining <= 1 }

// Remaining returns the ticks left before the next swing is allowed.
func (a *AttackController) Remaining() int { return a.remaining }

// Swing returns the frames left of the current swing animation.
func (a *AttackController) Swing() int { return a.swing }

// Tick advances the cooldown by one frame and reports whether a pending
// request fires now.
func (a *AttackController) Tick() bool {
	if a.remaining > 0 {
		a.remaining--
	}
	if a.swing > 0 {
		a.swing--
	}

	fire := a.requested && a.remaining == 0
	a.requested = false
	if fire {
		a.remaining = a.Cooldown
		a.swing = SwingFrames
	}
	return fire
}
