package packet

import (
	"fmt"

	"go.uber.org/zap"
)

// Role is the kind of client behind a session.
type Role int

const (
	RoleController Role = iota // phone sending tilt and fire
	RoleDisplay                // screen rendering the planes
)

func (r Role) String() string {
	switch r {
	case RoleController:
		return "Controller"
	case RoleDisplay:
		return "Display"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateConnected     SessionState = iota // upgraded, no plane yet
	StateJoined                            // controller owns a plane / display subscribed
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateJoined:
		return "Joined"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc is the callback signature for message handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, r *Reader)

type handlerEntry struct {
	fn            HandlerFunc
	role          Role
	allowedStates map[SessionState]bool
}

// Registry maps message types to handlers with role and state access control.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps a message type to a handler, restricted to one role and the
// given session states.
func (reg *Registry) Register(typ string, role Role, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[typ] = &handlerEntry{
		fn:            fn,
		role:          role,
		allowedStates: allowed,
	}
}

// Has reports whether typ has a handler.
func (reg *Registry) Has(typ string) bool {
	_, ok := reg.handlers[typ]
	return ok
}

// Dispatch finds the handler for the message type, validates the session
// role and state, and calls the handler. Unknown types are ignored.
func (reg *Registry) Dispatch(sess any, role Role, state SessionState, r *Reader) error {
	typ := r.Type()
	reg.log.Debug("message received",
		zap.String("type", typ),
		zap.String("role", role.String()),
		zap.String("state", state.String()),
	)

	entry, ok := reg.handlers[typ]
	if !ok {
		reg.log.Debug("unknown message type", zap.String("type", typ), zap.String("role", role.String()))
		return nil
	}
	if entry.role != role {
		reg.log.Warn("message not allowed for role",
			zap.String("type", typ),
			zap.String("role", role.String()),
		)
		return fmt.Errorf("message %q not allowed for role %s", typ, role)
	}
	if !entry.allowedStates[state] {
		reg.log.Warn("message not allowed in state",
			zap.String("type", typ),
			zap.String("state", state.String()),
		)
		return fmt.Errorf("message %q not allowed in state %s", typ, state)
	}
	return reg.safeCall(entry.fn, sess, r)
}

// safeCall executes a handler with panic recovery to prevent a single
// bad message from crashing the entire game loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, r *Reader) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.String("type", r.Type()),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %q: %v", r.Type(), rec)
		}
	}()
	fn(sess, r)
	return nil
}
