package net

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/planetilt/host/internal/net/packet"
	"go.uber.org/zap"
)

const (
	ControllerPath = "/ws/controller"
	DisplayPath    = "/ws/display"
	QRPath         = "/qr.png"
	HealthPath     = "/healthz"
)

// ServerOptions configures the listener and the sessions it creates.
type ServerOptions struct {
	BindAddress    string
	AllowedOrigins []string // empty allows any origin
	ControllerURL  string   // encoded into the QR code
	DisplayKey     DisplayKey
	Session        SessionOptions
}

// Server upgrades websocket connections and creates Sessions.
// New/dead sessions are communicated to the game loop via channels.
type Server struct {
	listener net.Listener
	http     *http.Server
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	opts     ServerOptions

	nextID   atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64 // session IDs of dead sessions
	log      *zap.Logger
}

func NewServer(opts ServerOptions, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", opts.BindAddress)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: ln,
		mux:      http.NewServeMux(),
		opts:     opts,
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 64),
		log:      log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.mux.HandleFunc(ControllerPath, s.handleController)
	s.mux.HandleFunc(DisplayPath, s.handleDisplay)
	s.mux.Handle(QRPath, QRHandler(opts.ControllerURL, log))
	s.mux.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	s.http = &http.Server{Handler: s.mux}
	return s, nil
}

// Handle mounts an extra HTTP handler, e.g. stats.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler exposes the routes, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// AcceptLoop runs in its own goroutine and serves HTTP until Shutdown.
func (s *Server) AcceptLoop() {
	if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("http serve failed", zap.Error(err))
	}
}

func (s *Server) handleController(w http.ResponseWriter, r *http.Request) {
	s.accept(w, r, packet.RoleController, packet.EncodingJSON)
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := s.opts.DisplayKey.Check(q.Get("key")); err != nil {
		s.log.Warn("display rejected", zap.String("ip", r.RemoteAddr), zap.Error(err))
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	enc, err := packet.ParseEncoding(q.Get("enc"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.accept(w, r, packet.RoleDisplay, enc)
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request, role packet.Role, enc packet.Encoding) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.String("ip", r.RemoteAddr), zap.Error(err))
		return
	}

	id := s.nextID.Add(1)
	sess := NewSession(conn, id, role, enc, s.opts.Session, s.log)
	sess.Start()

	s.log.Info("client connected",
		zap.Uint64("session", id),
		zap.String("role", role.String()),
		zap.String("encoding", enc.String()),
		zap.String("ip", sess.IP),
	)

	select {
	case s.newConns <- sess:
	default:
		s.log.Warn("session queue full, rejecting connection")
		sess.Close()
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session ID to the game loop.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
	}
}

// DeadSessions returns the channel of dead session IDs.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
