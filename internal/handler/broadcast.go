package handler

import (
	"github.com/planetilt/host/internal/net"
	"github.com/planetilt/host/internal/net/packet"
	"github.com/planetilt/host/internal/world"
)

// Vec is the wire form of a position.
type Vec struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// PlaneView is one plane inside a state snapshot.
type PlaneView struct {
	ID     uint64  `json:"id" msgpack:"id"`
	Name   string  `json:"name" msgpack:"name"`
	Pos    Vec     `json:"pos" msgpack:"pos"`
	X      float64 `json:"x" msgpack:"x"`
	Y      float64 `json:"y" msgpack:"y"`
	TX     float64 `json:"tx" msgpack:"tx"`
	TY     float64 `json:"ty" msgpack:"ty"`
	Firing bool    `json:"firing" msgpack:"firing"`
	Fires  int     `json:"fires" msgpack:"fires"`
}

// StateView is the full snapshot sent to displays.
type StateView struct {
	Tick     uint64      `json:"tick" msgpack:"tick"`
	Viewport Viewport    `json:"viewport" msgpack:"viewport"`
	Planes   []PlaneView `json:"planes" msgpack:"planes"`
}

type Viewport struct {
	Width  float64 `json:"width" msgpack:"width"`
	Height float64 `json:"height" msgpack:"height"`
}

func posOf(p *world.Plane) Vec {
	v := p.Pos()
	return Vec{X: v.X(), Y: v.Y(), Z: v.Z()}
}

func viewOf(p *world.Plane) PlaneView {
	return PlaneView{
		ID:     p.ID,
		Name:   p.Name,
		Pos:    posOf(p),
		X:      p.X,
		Y:      p.Y,
		TX:     p.TX,
		TY:     p.TY,
		Firing: p.Firing(),
		Fires:  p.Fires,
	}
}

// BuildState snapshots every plane in join order.
func BuildState(deps *Deps, tick uint64) StateView {
	vp := deps.World.Viewport()
	st := StateView{
		Tick:     tick,
		Viewport: Viewport{Width: vp.Width, Height: vp.Height},
		Planes:   make([]PlaneView, 0, deps.World.Len()),
	}
	deps.World.Each(func(p *world.Plane) {
		st.Planes = append(st.Planes, viewOf(p))
	})
	return st
}

// BroadcastAddPlane sends "add plane" id to every display.
func BroadcastAddPlane(deps *Deps, p *world.Plane) {
	deps.Sessions.Broadcast(packet.NewFrames(MsgAddPlane, p.ID))
}

// BroadcastUpdatePlane relays one controller motion sample as
// "update plane" [id, {x,y,z}] to every display. Absolute positions only go
// out in state snapshots.
func BroadcastUpdatePlane(deps *Deps, id uint64, m world.Motion) {
	deps.Sessions.Broadcast(packet.NewFrames(MsgUpdatePlane, []any{id, m}))
}

// BroadcastRemovePlane sends "remove plane" id to every display.
func BroadcastRemovePlane(deps *Deps, id uint64) {
	deps.Sessions.Broadcast(packet.NewFrames(MsgRemovePlane, id))
}

// BroadcastFire sends "fire" id to every display.
func BroadcastFire(deps *Deps, p *world.Plane) {
	deps.Sessions.Broadcast(packet.NewFrames(MsgFire, p.ID))
}

// BroadcastState sends a full snapshot to every display.
func BroadcastState(deps *Deps, tick uint64) int {
	return deps.Sessions.Broadcast(packet.NewFrames(MsgState, BuildState(deps, tick)))
}

// SendState sends a full snapshot to one session.
func SendState(sess *net.Session, deps *Deps, tick uint64) {
	sess.SendMessage(MsgState, BuildState(deps, tick))
}

func sendError(sess *net.Session, msg string) {
	sess.SendMessage(MsgError, map[string]string{"message": msg})
}
