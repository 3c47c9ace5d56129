package game

import (
	"bone-crawler/internal/game/skeleton"

	"github.com/go-gl/mathgl/mgl64"
)

// Enemy is anything the player can strike. A nil Body makes it a plain
// enemy that dies from a single hit; otherwise its life is decided by the
// skeleton it carries.
type Enemy struct {
	ID   int
	Pos  mgl64.Vec2
	Body *skeleton.Body

	dead bool
}

// NewEnemy creates a plain enemy.
func NewEnemy(id int, pos mgl64.Vec2) *Enemy {
	return &Enemy{ID: id, Pos: pos}
}

// NewSkeleton creates an enemy with a fresh skeletal body.
func NewSkeleton(id int, pos mgl64.Vec2, cfg skeleton.Config) *Enemy {
	return &Enemy{ID: id, Pos: pos, Body: skeleton.NewBody(cfg)}
}

// Alive reports whether the enemy can still be targeted.
func (e *Enemy) Alive() bool {
	if e.Body != nil {
		return e.Body.Alive()
	}
	return !e.dead
}

// Gone reports whether nothing of the enemy remains to draw.
func (e *Enemy) Gone() bool {
	if e.Body != nil {
		return e.Body.Len() == 0
	}
	return e.dead
}

// Kind names the enemy variant for snapshots and logs.
func (e *Enemy) Kind() string {
	if e.Body != nil {
		return "skeleton"
	}
	return "plain"
}

// State returns the fracture state, or a synthetic one for plain enemies.
func (e *Enemy) State() skeleton.State {
	if e.Body != nil {
		return e.Body.State()
	}
	if e.dead {
		return skeleton.Removed
	}
	return skeleton.Intact
}
