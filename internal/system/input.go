package system

import (
	"time"

	coresys "github.com/planetilt/host/internal/core/system"
	"github.com/planetilt/host/internal/handler"
	"github.com/planetilt/host/internal/net"
	"github.com/planetilt/host/internal/net/packet"
	"go.uber.org/zap"
)

// InputSystem accepts new sessions, retires dead ones and drains message
// queues through the packet registry. Phase 0 (Input).
type InputSystem struct {
	netServer  *net.Server
	registry   *packet.Registry
	store      *net.SessionStore
	deps       *handler.Deps
	clock      *Clock
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(
	netServer *net.Server,
	registry *packet.Registry,
	deps *handler.Deps,
	clock *Clock,
	maxPerTick int,
	log *zap.Logger,
) *InputSystem {
	return &InputSystem{
		netServer:  netServer,
		registry:   registry,
		store:      deps.Sessions,
		deps:       deps,
		clock:      clock,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	s.acceptNew()
	s.retireDead()

	var closing []*net.Session
	s.store.ForEach(func(sess *net.Session) {
		if sess.IsClosed() {
			closing = append(closing, sess)
			return
		}
		s.drain(sess)
	})

	// Drain whatever arrived before the hang-up, then clean up.
	for _, sess := range closing {
		s.drain(sess)
		sess.FlushOutput()
		handler.HandleDisconnect(sess, s.deps)
		s.netServer.NotifyDead(sess.ID)
		s.store.Remove(sess.ID)
		s.log.Info("client disconnected", zap.Uint64("session", sess.ID), zap.String("role", sess.Role.String()))
	}

	// Early flush so replies start going out while the rest of the tick runs.
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}

func (s *InputSystem) acceptNew() {
	for {
		select {
		case sess := <-s.netServer.NewSessions():
			s.store.Add(sess)
			handler.HandleConnect(sess, s.deps, s.clock.Now())
		default:
			return
		}
	}
}

func (s *InputSystem) retireDead() {
	for {
		select {
		case id := <-s.netServer.DeadSessions():
			if sess := s.store.Remove(id); sess != nil {
				handler.HandleDisconnect(sess, s.deps)
			}
		default:
			return
		}
	}
}

// drain dispatches up to maxPerTick messages from one session.
func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case data := <-sess.InQueue:
			s.dispatch(sess, data)
		default:
			return
		}
	}
}

func (s *InputSystem) dispatch(sess *net.Session, data []byte) {
	r, err := packet.NewReader(sess.Encoding, data)
	if err != nil {
		s.log.Debug("undecodable message", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}
	if err := s.registry.Dispatch(sess, sess.Role, sess.State(), r); err != nil {
		s.log.Debug("message dispatch error",
			zap.Uint64("session", sess.ID),
			zap.Error(err),
		)
	}
}
