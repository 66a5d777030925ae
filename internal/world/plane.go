package world

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/planetilt/host/internal/entity"
	"github.com/planetilt/host/internal/net"
)

// Plane is one connected controller's avatar. It is the behavior attached to
// its entity. Game loop only.
type Plane struct {
	ID        uint64
	SessionID uint64
	Session   *net.Session
	Name      string
	Entity    *entity.Entity
	JoinedAt  time.Time

	X, Y   float64 // screen marker, viewport units from center
	TX, TY float64 // aim target

	FireTicks int // remaining ticks of the fire flash
	Fires     int
	Relay     []Motion // samples not yet relayed to displays

	// OnLeave runs from the entity removal hook.
	OnLeave func(*Plane)
}

// Think counts the fire flash down.
func (p *Plane) Think() {
	if p.FireTicks > 0 {
		p.FireTicks--
	}
}

func (p *Plane) OnRemove() {
	if p.OnLeave != nil {
		p.OnLeave(p)
	}
}

// Fire starts a flash lasting flashTicks ticks.
func (p *Plane) Fire(flashTicks int) {
	p.Fires++
	if flashTicks < 1 {
		flashTicks = 1
	}
	p.FireTicks = flashTicks
}

func (p *Plane) Firing() bool { return p.FireTicks > 0 }

// Pos returns the entity position, falling back to the cached one while no
// mesh is attached.
func (p *Plane) Pos() mgl64.Vec3 {
	if p.Entity == nil {
		return mgl64.Vec3{}
	}
	if pos, err := p.Entity.GetPos(); err == nil {
		return pos
	}
	return p.Entity.CachedPos()
}
