package physics

import "github.com/go-gl/mathgl/mgl64"

// Body is a rigid body simulated by World. Mass 0 means static.
type Body struct {
	Position        mgl64.Vec3
	Quaternion      mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Force           mgl64.Vec3
	Mass            float64
	LinearDamping   float64 // fraction of velocity lost per second (0..1)

	// Gravity overrides the world gravity for this body when non-nil.
	Gravity *mgl64.Vec3
}

func NewBody(mass float64) *Body {
	return &Body{
		Quaternion:    mgl64.QuatIdent(),
		Mass:          mass,
		LinearDamping: 0.01,
	}
}

func (b *Body) IsStatic() bool { return b.Mass <= 0 }

// ApplyCentralForce accumulates a force through the center of mass, so it
// never induces torque. Cleared after each Step.
func (b *Body) ApplyCentralForce(f mgl64.Vec3) {
	b.Force = b.Force.Add(f)
}

// ApplyImpulse changes velocity immediately.
func (b *Body) ApplyImpulse(impulse mgl64.Vec3) {
	if b.IsStatic() {
		return
	}
	b.Velocity = b.Velocity.Add(impulse.Mul(1.0 / b.Mass))
}

// SetGravity installs a per-body gravity override. Nil restores world gravity.
func (b *Body) SetGravity(g *mgl64.Vec3) {
	if g == nil {
		b.Gravity = nil
		return
	}
	v := *g
	b.Gravity = &v
}
