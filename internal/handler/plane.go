package handler

import (
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/planetilt/host/internal/core/event"
	"github.com/planetilt/host/internal/entity"
	"github.com/planetilt/host/internal/net"
	"github.com/planetilt/host/internal/net/packet"
	"github.com/planetilt/host/internal/physics"
	"github.com/planetilt/host/internal/render"
	"github.com/planetilt/host/internal/world"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const (
	maxNameRunes = 16
	defaultName  = "pilot"
)

type joinPayload struct {
	Name string `json:"name" msgpack:"name"`
}

type welcomePayload struct {
	PlayerID uint64  `json:"playerId" msgpack:"playerId"`
	Name     string  `json:"name" msgpack:"name"`
	TickHz   float64 `json:"tickHz" msgpack:"tickHz"`
}

type boundsPayload struct {
	Width  float64 `json:"width" msgpack:"width"`
	Height float64 `json:"height" msgpack:"height"`
}

// NormalizeName folds a player name to NFC, strips control characters and
// surrounding space, and caps it at 16 runes. Empty names become "pilot".
func NormalizeName(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxNameRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxNameRunes]))
	}
	if s == "" {
		return defaultName
	}
	return s
}

// HandleJoin creates the controller's plane. The entity gets a placeholder
// box at once so its position is always readable, then its model loads in
// the background.
func HandleJoin(sess *net.Session, r *packet.Reader, deps *Deps) {
	if deps.World.FindBySession(sess.ID) != nil {
		return
	}
	var req joinPayload
	if err := r.Decode(&req); err != nil && !errors.Is(err, packet.ErrNoPayload) {
		sess.Log().Debug("bad join payload", zap.Error(err))
		sendError(sess, "bad join payload")
		return
	}
	name := NormalizeName(req.Name)

	e, err := spawnPlaneEntity(deps)
	if err != nil {
		deps.Log.Error("plane entity setup failed", zap.Uint64("session", sess.ID), zap.Error(err))
		sendError(sess, "server could not create your plane")
		return
	}

	p := deps.World.Create(sess, name, e)
	p.OnLeave = func(p *world.Plane) {
		BroadcastRemovePlane(deps, p.ID)
		event.Emit(deps.Bus, event.PlaneLeft{PlayerID: p.ID, Name: p.Name, Fires: p.Fires})
	}
	sess.Name = name
	sess.SetState(packet.StateJoined)

	loadPlaneModel(deps, p)

	sess.SendMessage(MsgWelcome, welcomePayload{
		PlayerID: p.ID,
		Name:     name,
		TickHz:   float64(time.Second) / float64(deps.Config.Network.TickRate),
	})
	BroadcastAddPlane(deps, p)
	event.Emit(deps.Bus, event.PlaneJoined{PlayerID: p.ID, SessionID: sess.ID, Name: name})

	deps.Log.Info("plane joined",
		zap.Uint64("player", p.ID),
		zap.Uint64("session", sess.ID),
		zap.String("name", name),
	)
}

func spawnPlaneEntity(deps *Deps) (*entity.Entity, error) {
	box := [3]float64{1, 1, 1}
	mass := 1.0
	var gravity *[3]float64
	damping := 0.0
	if m := deps.Models.Get(deps.Config.Assets.PlaneModel); m != nil {
		box, mass, gravity, damping = m.Box, m.Mass, m.Gravity, m.Damping
	}

	e := deps.Sim.NewEntity()
	if err := e.SetGeometry(render.BoxGeometry(box[0], box[1], box[2]), nil); err != nil {
		_ = e.Remove()
		return nil, err
	}
	body := physics.NewBody(mass)
	if damping > 0 {
		body.LinearDamping = damping
	}
	if err := e.SetPhysicsBody(body); err != nil {
		_ = e.Remove()
		return nil, err
	}
	e.SetMass(mass)
	if gravity != nil {
		e.SetGravity(mgl64.Vec3(*gravity))
	}
	return e, nil
}

func loadPlaneModel(deps *Deps, p *world.Plane) {
	m := deps.Models.Get(deps.Config.Assets.PlaneModel)
	if m == nil || m.Path == "" {
		return
	}
	err := p.Entity.SetModel(deps.loadCtx(), m.Path, m.Material, func(_ *entity.Entity, err error) {
		if err != nil {
			deps.Log.Warn("plane model not applied",
				zap.Uint64("player", p.ID),
				zap.String("path", m.Path),
				zap.Error(err),
			)
			return
		}
		deps.Log.Debug("plane model applied", zap.Uint64("player", p.ID), zap.String("path", m.Path))
	})
	if err != nil {
		deps.Log.Warn("plane model rejected", zap.String("path", m.Path), zap.Error(err))
	}
}

// HandleMotion applies one tilt sample to the sender's plane.
func HandleMotion(sess *net.Session, r *packet.Reader, deps *Deps) {
	p := deps.World.FindBySession(sess.ID)
	if p == nil {
		return
	}
	var m world.Motion
	if err := r.Decode(&m); err != nil {
		sess.Log().Debug("bad motion payload", zap.Error(err))
		return
	}
	if !finite(m.X) || !finite(m.Y) || !finite(m.Z) {
		return
	}
	deps.World.ApplyMotion(p, m, deps.motionMapper())
	p.Relay = append(p.Relay, m)
}

// HandleFire flashes the sender's plane and tells the displays.
func HandleFire(sess *net.Session, _ *packet.Reader, deps *Deps) {
	p := deps.World.FindBySession(sess.ID)
	if p == nil {
		return
	}
	p.Fire(FireFlashTicks(deps))
	BroadcastFire(deps, p)
	pos := p.Pos()
	event.Emit(deps.Bus, event.PlaneFired{PlayerID: p.ID, Name: p.Name, X: pos.X(), Y: pos.Y()})
}

// FireFlashTicks is the flash length in ticks, from the scripts when they
// define it.
func FireFlashTicks(deps *Deps) int {
	tick := deps.Config.Network.TickRate
	n := int(math.Ceil(float64(deps.Config.Field.FireFlash) / float64(tick)))
	if n < 1 {
		n = 1
	}
	if deps.Scripting != nil {
		flash := deps.Config.Field.FireFlash
		return deps.Scripting.FireFlashTicks(int(tick/time.Millisecond), int(flash/time.Millisecond), n)
	}
	return n
}

// HandleBounds records the display's viewport.
func HandleBounds(sess *net.Session, r *packet.Reader, deps *Deps) {
	var b boundsPayload
	if err := r.Decode(&b); err != nil {
		sess.Log().Debug("bad bounds payload", zap.Error(err))
		return
	}
	if !deps.World.SetViewport(world.Viewport{Width: b.Width, Height: b.Height}) {
		sess.Log().Debug("ignored empty bounds", zap.Float64("width", b.Width), zap.Float64("height", b.Height))
	}
}

// HandleConnect greets a new session. Displays get the current state and
// are subscribed right away.
func HandleConnect(sess *net.Session, deps *Deps, tick uint64) {
	if sess.Role != packet.RoleDisplay {
		return
	}
	SendState(sess, deps, tick)
	sess.SetState(packet.StateJoined)
}

// HandleDisconnect drops the controller's plane. Its entity leaves at the
// end of the tick, which relays the removal.
func HandleDisconnect(sess *net.Session, deps *Deps) {
	p := deps.World.FindBySession(sess.ID)
	if p == nil {
		return
	}
	deps.World.Remove(p.ID)
	if p.Entity != nil && p.Entity.Registered() {
		deps.Sim.MarkForRemoval(p.Entity)
	}
	deps.Log.Info("plane left",
		zap.Uint64("player", p.ID),
		zap.String("name", p.Name),
		zap.Int("fires", p.Fires),
	)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
