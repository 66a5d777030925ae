package handler

import (
	"context"

	"github.com/planetilt/host/internal/config"
	"github.com/planetilt/host/internal/core/event"
	"github.com/planetilt/host/internal/data"
	"github.com/planetilt/host/internal/entity"
	"github.com/planetilt/host/internal/net"
	"github.com/planetilt/host/internal/net/packet"
	"github.com/planetilt/host/internal/scripting"
	"github.com/planetilt/host/internal/world"
	"go.uber.org/zap"
)

// Message types exchanged with clients.
const (
	MsgJoin   = "join"
	MsgMotion = "motion"
	MsgFire   = "fire"
	MsgBounds = "bounds"

	MsgWelcome     = "welcome"
	MsgAddPlane    = "add plane"
	MsgUpdatePlane = "update plane"
	MsgRemovePlane = "remove plane"
	MsgState       = "state"
	MsgError       = "error"
)

// Deps holds shared dependencies injected into all message handlers.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	World     *world.State
	Sim       *entity.Simulation
	Sessions  *net.SessionStore
	Scripting *scripting.Engine // nil uses the Go motion mapping
	Models    *data.ModelTable
	Bus       *event.Bus

	// LoadCtx bounds async model loads; canceled at shutdown.
	LoadCtx context.Context
}

// RegisterAll registers all message handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	// Controller, before join
	reg.Register(MsgJoin, packet.RoleController,
		[]packet.SessionState{packet.StateConnected},
		func(sess any, r *packet.Reader) {
			HandleJoin(sess.(*net.Session), r, deps)
		},
	)

	// Controller, flying
	joined := []packet.SessionState{packet.StateJoined}

	reg.Register(MsgMotion, packet.RoleController, joined,
		func(sess any, r *packet.Reader) {
			HandleMotion(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(MsgFire, packet.RoleController, joined,
		func(sess any, r *packet.Reader) {
			HandleFire(sess.(*net.Session), r, deps)
		},
	)

	// Display
	reg.Register(MsgBounds, packet.RoleDisplay,
		[]packet.SessionState{packet.StateConnected, packet.StateJoined},
		func(sess any, r *packet.Reader) {
			HandleBounds(sess.(*net.Session), r, deps)
		},
	)
}

func (d *Deps) motionMapper() world.MotionMapper {
	if d.Scripting == nil {
		return nil
	}
	return d.Scripting
}

func (d *Deps) loadCtx() context.Context {
	if d.LoadCtx == nil {
		return context.Background()
	}
	return d.LoadCtx
}
