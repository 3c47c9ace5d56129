package skeleton

// Physics advances broken bones. It is the only writer of bone world
// position, velocity and thickness once a bone has detached.
type Physics struct {
	// Damping multiplies velocity every step.
	Damping float64
	// Shrink multiplies thickness every step.
	Shrink float64
	// MaxExplosionFrames is how many steps an explosion animates before the
	// body is removed.
	MaxExplosionFrames int
}

// DefaultPhysics returns the stock tuning.
func DefaultPhysics() Physics {
	return Physics{
		Damping:            0.95,
		Shrink:             0.95,
		MaxExplosionFrames: 30,
	}
}

// Step advances every broken bone of b by dt seconds and runs the
// explosion clock. Unbroken bones are untouched.
func (p Physics) Step(b *Body, dt float64) {
	if b.state == Removed {
		return
	}

	for i := range b.bones {
		bone := &b.bones[i]
		if !bone.broken {
			continue
		}

		move := bone.Velocity.Mul(dt)
		bone.WorldStart = bone.WorldStart.Add(move)
		bone.WorldEnd = bone.WorldEnd.Add(move)

		// Bones settle on the floor instead of sinking through it.
		if low := max(bone.WorldStart[2], bone.WorldEnd[2]); low > FloorZ {
			lift := low - FloorZ
			bone.WorldStart[2] -= lift
			bone.WorldEnd[2] -= lift
			bone.Velocity[2] = 0
		}

		bone.Velocity = bone.Velocity.Mul(p.Damping)
		bone.Thickness *= p.Shrink
	}

	if b.state != Exploding {
		return
	}
	b.explosionFrames++
	if b.explosionFrames > p.MaxExplosionFrames {
		b.bones = nil
		b.state = Removed
	}
}
