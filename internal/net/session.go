package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/planetilt/host/internal/net/packet"
	"go.uber.org/zap"
)

// Session represents a single websocket client. Network I/O runs in
// dedicated goroutines; game state is accessed only from the game loop.
type Session struct {
	ID       uint64
	Role     packet.Role
	Encoding packet.Encoding
	conn     *websocket.Conn

	state atomic.Int32 // packet.SessionState stored as int32

	InQueue  chan []byte // game loop reads messages from here
	OutQueue chan []byte // writer goroutine reads from here

	IP   string
	Name string // player name once joined

	outBuf [][]byte // buffered messages, flushed by the output system (game loop only)

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	writeTimeout time.Duration
	readTimeout  time.Duration

	// Per-second message rate limiter (readLoop goroutine only, no lock needed)
	msgPerSec  int   // max messages/sec (0 = unlimited)
	msgCount   int   // messages received this second
	msgResetAt int64 // unix second of last counter reset

	log *zap.Logger
}

// SessionOptions sizes queues and timeouts of new sessions.
type SessionOptions struct {
	InQueueSize  int
	OutQueueSize int
	MsgPerSec    int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

func NewSession(conn *websocket.Conn, id uint64, role packet.Role, enc packet.Encoding, opts SessionOptions, log *zap.Logger) *Session {
	s := &Session{
		ID:           id,
		Role:         role,
		Encoding:     enc,
		conn:         conn,
		InQueue:      make(chan []byte, opts.InQueueSize),
		OutQueue:     make(chan []byte, opts.OutQueueSize),
		IP:           conn.RemoteAddr().String(),
		closeCh:      make(chan struct{}),
		writeTimeout: opts.WriteTimeout,
		readTimeout:  opts.ReadTimeout,
		msgPerSec:    opts.MsgPerSec,
		log:          log.With(zap.Uint64("session", id), zap.String("role", role.String())),
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = 10 * time.Second
	}
	s.state.Store(int32(packet.StateConnected))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

func (s *Session) Log() *zap.Logger { return s.log }

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	s.conn.SetReadLimit(maxFrameSize)
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a message for sending. Nothing is written until FlushOutput
// is called by the output system.
// Called only from the game loop goroutine, no lock needed on outBuf.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, data)
}

// SendMessage encodes and buffers one message in the session's encoding.
func (s *Session) SendMessage(typ string, payload any) {
	data, err := packet.Encode(s.Encoding, typ, payload)
	if err != nil {
		s.log.Error("encode message failed", zap.String("type", typ), zap.Error(err))
		return
	}
	s.Send(data)
}

// SendFrames buffers the cached encoding of f.
func (s *Session) SendFrames(f *packet.Frames) {
	data, err := f.For(s.Encoding)
	if err != nil {
		s.log.Error("encode message failed", zap.String("type", f.Type), zap.Error(err))
		return
	}
	s.Send(data)
}

// Pending returns the number of buffered, unflushed messages.
func (s *Session) Pending() int { return len(s.outBuf) }

// FlushOutput drains the output buffer to OutQueue for the writeLoop goroutine.
// Non-blocking: if OutQueue is full, the session is disconnected (backpressure).
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, dropping slow client")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop runs in its own goroutine. It reads frames from the websocket
// and pushes them onto InQueue for the game loop to consume.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		data, err := readFrame(s.conn, s.readTimeout)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		if s.msgPerSec > 0 {
			now := time.Now().Unix()
			if now != s.msgResetAt {
				s.msgCount = 0
				s.msgResetAt = now
			}
			s.msgCount++
			if s.msgCount > s.msgPerSec {
				s.log.Warn("message rate exceeded, disconnecting", zap.Int("mps", s.msgCount))
				return
			}
		}

		// Block until InQueue has space or the session closes; motion
		// samples are relative, so dropping one would desync the plane.
		select {
		case s.InQueue <- data:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop runs in its own goroutine. It writes messages from OutQueue to
// the websocket.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if err := writeFrame(s.conn, s.Encoding, data, s.writeTimeout); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
