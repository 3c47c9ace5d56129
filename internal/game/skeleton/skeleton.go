// Package skeleton models destructible bodies made of rigid bone segments.
//
// A body starts Intact, becomes Exploding once enough bones are broken and
// is Removed (bones cleared) after its explosion animation runs out. Broken
// bones leave the rigid body frame and are simulated in world space by
// Physics.
package skeleton

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// State is the fracture state of a body. Transitions only move forward.
type State uint8

const (
	Intact State = iota
	Exploding
	Removed
)

func (s State) String() string {
	switch s {
	case Intact:
		return "intact"
	case Exploding:
		return "exploding"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// Bone is one rigid segment.
//
// Local coordinates are relative to the sprite box (unit height, centred on
// the body anchor, y down). World coordinates are only meaningful once the
// bone is broken: X and Y lie on the map plane and Z is the vertical offset
// from eye level, positive downward, with the floor at FloorZ.
type Bone struct {
	Name       string
	LocalStart mgl64.Vec2
	LocalEnd   mgl64.Vec2
	WorldStart mgl64.Vec3
	WorldEnd   mgl64.Vec3
	Velocity   mgl64.Vec3
	Thickness  float64
	Core       bool

	broken bool
}

// Broken reports whether the bone has detached. Once true it stays true.
func (b *Bone) Broken() bool { return b.broken }

// FloorZ is the world Z of the floor: half a wall below eye level.
const FloorZ = 0.5

// Config controls how a body fractures.
type Config struct {
	// Threshold is the broken fraction at which the body explodes.
	Threshold float64
	// SpeedMin and SpeedMax bound the launch speed of a broken bone in
	// world units per second.
	SpeedMin float64
	SpeedMax float64
}

// DefaultConfig returns the stock fracture tuning.
func DefaultConfig() Config {
	return Config{
		Threshold: 0.2,
		SpeedMin:  0.8,
		SpeedMax:  1.6,
	}
}

// Body is a skeleton with its fracture state.
type Body struct {
	cfg             Config
	bones           []Bone
	state           State
	explosionFrames int
}

// NewBody builds a body from the Anatomy template.
func NewBody(cfg Config) *Body {
	return NewBodyFromTemplate(Anatomy, cfg)
}

// NewBodyFromTemplate builds a body from an arbitrary template.
func NewBodyFromTemplate(specs []BoneSpec, cfg Config) *Body {
	return &Body{
		cfg:   cfg,
		bones: instantiate(specs),
	}
}

// Bones exposes the bone slice for reading. Only Physics and Break mutate
// bones; callers must not.
func (b *Body) Bones() []Bone { return b.bones }

// Len returns the number of remaining bones.
func (b *Body) Len() int { return len(b.bones) }

// State returns the current fracture state.
func (b *Body) State() State { return b.state }

// ExplosionFrames returns how many physics steps the explosion has run.
func (b *Body) ExplosionFrames() int { return b.explosionFrames }

// BrokenCount returns the number of broken bones.
func (b *Body) BrokenCount() int {
	n := 0
	for i := range b.bones {
		if b.bones[i].broken {
			n++
		}
	}
	return n
}

// Alive reports whether at least one core bone is unbroken. A body with no
// bones is never alive.
func (b *Body) Alive() bool {
	for i := range b.bones {
		if b.bones[i].Core && !b.bones[i].broken {
			return true
		}
	}
	return false
}

// Break detaches up to n unbroken bones, core bones first and in template
// order within each group. Each detached bone is placed in world space as
// a billboard at anchor facing the attacker, and launched in a random
// direction within that billboard plane. Returns the number broken.
func (b *Body) Break(n int, anchor, facing mgl64.Vec2, rng *rand.Rand) int {
	if n <= 0 || b.state == Removed {
		return 0
	}

	// Local +x maps to the attacker's right.
	lateral := mgl64.Vec2{1, 0}
	if l := facing.Len(); l > 0 && !math.IsNaN(l) {
		f := facing.Mul(1 / l)
		lateral = mgl64.Vec2{-f[1], f[0]}
	}

	broken := 0
	for _, wantCore := range [2]bool{true, false} {
		for i := range b.bones {
			if broken == n {
				break
			}
			bone := &b.bones[i]
			if bone.broken || bone.Core != wantCore {
				continue
			}
			b.detach(bone, anchor, lateral, rng)
			broken++
		}
	}

	if b.state == Intact && len(b.bones) > 0 &&
		float64(b.BrokenCount())/float64(len(b.bones)) >= b.cfg.Threshold {
		b.state = Exploding
	}

	return broken
}

func (b *Body) detach(bone *Bone, anchor, lateral mgl64.Vec2, rng *rand.Rand) {
	bone.broken = true
	bone.WorldStart = toWorld(bone.LocalStart, anchor, lateral)
	bone.WorldEnd = toWorld(bone.LocalEnd, anchor, lateral)

	angle := rng.Float64() * 2 * math.Pi
	speed := b.cfg.SpeedMin + rng.Float64()*(b.cfg.SpeedMax-b.cfg.SpeedMin)
	side := lateral.Mul(math.Cos(angle) * speed)
	bone.Velocity = mgl64.Vec3{side[0], side[1], math.Sin(angle) * speed}
}

func toWorld(local, anchor, lateral mgl64.Vec2) mgl64.Vec3 {
	p := anchor.Add(lateral.Mul(local[0]))
	return mgl64.Vec3{p[0], p[1], local[1]}
}
