package physics

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// World integrates every attached body once per Step. Game loop goroutine only.
type World struct {
	Gravity mgl64.Vec3
	bodies  []*Body
}

func NewWorld(gravity mgl64.Vec3) *World {
	return &World{
		Gravity: gravity,
		bodies:  make([]*Body, 0, 64),
	}
}

func (w *World) Add(b *Body) {
	if b == nil || w.Contains(b) {
		return
	}
	w.bodies = append(w.bodies, b)
}

// Remove detaches b, reporting whether it was attached.
func (w *World) Remove(b *Body) bool {
	for i, cur := range w.bodies {
		if cur == b {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			return true
		}
	}
	return false
}

func (w *World) Contains(b *Body) bool {
	for _, cur := range w.bodies {
		if cur == b {
			return true
		}
	}
	return false
}

func (w *World) Len() int { return len(w.bodies) }

// Bodies returns a copy of the attached bodies.
func (w *World) Bodies() []*Body {
	out := make([]*Body, len(w.bodies))
	copy(out, w.bodies)
	return out
}

// Step advances the simulation by dt using semi-implicit Euler.
func (w *World) Step(dt time.Duration) {
	h := dt.Seconds()
	if h <= 0 {
		return
	}
	for _, b := range w.bodies {
		if b.IsStatic() {
			b.Force = mgl64.Vec3{}
			continue
		}
		g := w.Gravity
		if b.Gravity != nil {
			g = *b.Gravity
		}
		acc := b.Force.Mul(1.0 / b.Mass).Add(g)
		b.Velocity = b.Velocity.Add(acc.Mul(h))
		if b.LinearDamping > 0 {
			b.Velocity = b.Velocity.Mul(math.Pow(1-b.LinearDamping, h))
		}
		b.Position = b.Position.Add(b.Velocity.Mul(h))
		b.Quaternion = integrateRotation(b.Quaternion, b.AngularVelocity, h)
		b.Force = mgl64.Vec3{}
	}
}

// integrateRotation applies q' = q + ½·ω·q·h and renormalizes.
func integrateRotation(q mgl64.Quat, omega mgl64.Vec3, h float64) mgl64.Quat {
	if omega.Len() == 0 {
		return q
	}
	spin := mgl64.Quat{W: 0, V: omega}.Mul(q).Scale(0.5 * h)
	return q.Add(spin).Normalize()
}
