package world

import (
	"time"

	"github.com/planetilt/host/internal/entity"
	"github.com/planetilt/host/internal/net"
)

// State holds every plane in the world. Accessed only from the game loop
// goroutine, no locks needed.
type State struct {
	byID      map[uint64]*Plane
	bySession map[uint64]*Plane
	order     []*Plane // join order

	viewport Viewport
	field    Field
	nextID   uint64
}

func NewState(vp Viewport, f Field) *State {
	return &State{
		byID:      make(map[uint64]*Plane),
		bySession: make(map[uint64]*Plane),
		viewport:  vp,
		field:     f,
	}
}

// Create registers a plane for sess and makes it the behavior of e.
func (s *State) Create(sess *net.Session, name string, e *entity.Entity) *Plane {
	s.nextID++
	p := &Plane{
		ID:       s.nextID,
		Name:     name,
		Entity:   e,
		JoinedAt: time.Now(),
	}
	if sess != nil {
		p.Session = sess
		p.SessionID = sess.ID
	}
	if e != nil {
		e.SetBehavior(p)
	}
	s.byID[p.ID] = p
	if sess != nil {
		s.bySession[sess.ID] = p
	}
	s.order = append(s.order, p)
	return p
}

func (s *State) Find(id uint64) *Plane { return s.byID[id] }

func (s *State) FindBySession(sessionID uint64) *Plane { return s.bySession[sessionID] }

// Remove drops the plane from the store. The entity is left to the caller.
func (s *State) Remove(id uint64) *Plane {
	p, ok := s.byID[id]
	if !ok {
		return nil
	}
	delete(s.byID, id)
	if p.Session != nil {
		delete(s.bySession, p.SessionID)
	}
	for i, q := range s.order {
		if q == p {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return p
}

// Each visits planes in join order.
func (s *State) Each(fn func(*Plane)) {
	for _, p := range s.order {
		fn(p)
	}
}

func (s *State) Len() int { return len(s.order) }

func (s *State) Viewport() Viewport { return s.viewport }

func (s *State) Field() Field { return s.field }

// SetViewport ignores non-positive sizes.
func (s *State) SetViewport(vp Viewport) bool {
	if vp.Width <= 0 || vp.Height <= 0 {
		return false
	}
	s.viewport = vp
	return true
}

// ApplyMotion maps m onto p, preferring mapper when it yields a result, and
// moves the plane's entity.
func (s *State) ApplyMotion(p *Plane, m Motion, mapper MotionMapper) MotionResult {
	in := MotionInput{
		X:        p.X,
		Y:        p.Y,
		Pos:      p.Pos(),
		Motion:   m,
		Viewport: s.viewport,
		Field:    s.field,
	}
	var res MotionResult
	ok := false
	if mapper != nil {
		res, ok = mapper.MapMotion(in)
	}
	if !ok {
		res = MapMotion(in)
	}
	p.X, p.Y = res.X, res.Y
	p.TX, p.TY = res.TX, res.TY
	if p.Entity != nil {
		p.Entity.SetPos(res.Pos)
	}
	return res
}
