package game

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// Resolver decides what a melee swing hits. It holds tuning only and is
// safe to share; attack frequency is gated by the caller's cooldown.
type Resolver struct {
	Range     float64 // reach in world units
	HalfAngle float64 // half-width of the facing cone, radians
	BatchMin  int     // fewest bones one hit breaks
	BatchMax  int     // most bones one hit breaks
}

// DefaultResolver returns the stock melee tuning.
func DefaultResolver() Resolver {
	return Resolver{
		Range:     1.9,
		HalfAngle: 0.7,
		BatchMin:  5,
		BatchMax:  9,
	}
}

// MeleeResult describes a successful hit.
type MeleeResult struct {
	Target      *Enemy
	Distance    float64
	BonesBroken int
	Killed      bool // the hit took the target from alive to dead
	Exploded    bool // the hit pushed the body into its explosion
}

// overlap is the distance under which an enemy counts as in front of the
// attacker regardless of bearing.
const overlap = 1e-9

// AttemptMeleeAttack strikes the nearest living enemy within Range and
// inside the facing cone around dir. It reports false when nothing
// qualifies. The batch size and every bone launch are drawn from rng.
func (r Resolver) AttemptMeleeAttack(pos, dir mgl64.Vec2, enemies []*Enemy, rng *rand.Rand) (MeleeResult, bool) {
	facing, ok := unit(dir)
	if !ok {
		return MeleeResult{}, false
	}
	minDot := math.Cos(r.HalfAngle)

	var target *Enemy
	best := math.Inf(1)
	for _, e := range enemies {
		if e == nil || !e.Alive() {
			continue
		}

		offset := e.Pos.Sub(pos)
		dist := offset.Len()
		if dist > r.Range || dist >= best {
			continue
		}
		if dist > overlap && offset.Mul(1/dist).Dot(facing) < minDot {
			continue
		}

		target, best = e, dist
	}

	if target == nil {
		return MeleeResult{}, false
	}

	res := MeleeResult{Target: target, Distance: best}

	if target.Body == nil {
		target.dead = true
		res.Killed = true
		return res, true
	}

	before := target.Body.State()
	res.BonesBroken = target.Body.Break(r.batchSize(rng), target.Pos, facing, rng)
	res.Killed = !target.Body.Alive()
	res.Exploded = before != target.Body.State()

	return res, true
}

func (r Resolver) batchSize(rng *rand.Rand) int {
	if r.BatchMax <= r.BatchMin {
		return r.BatchMin
	}
	return r.BatchMin + rng.Intn(r.BatchMax-r.BatchMin+1)
}

func unit(v mgl64.Vec2) (mgl64.Vec2, bool) {
	l := v.Len()
	if l < overlap || math.IsNaN(l) {
		return mgl64.Vec2{}, false
	}
	return v.Mul(1 / l), true
}
