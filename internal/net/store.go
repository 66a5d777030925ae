package net

import "github.com/planetilt/host/internal/net/packet"

// SessionStore tracks live sessions. Game loop only.
type SessionStore struct {
	sessions map[uint64]*Session
	order    []uint64
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session)}
}

func (st *SessionStore) Add(s *Session) {
	if _, ok := st.sessions[s.ID]; ok {
		return
	}
	st.sessions[s.ID] = s
	st.order = append(st.order, s.ID)
}

func (st *SessionStore) Remove(id uint64) *Session {
	s, ok := st.sessions[id]
	if !ok {
		return nil
	}
	delete(st.sessions, id)
	for i, sid := range st.order {
		if sid == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	return s
}

func (st *SessionStore) Get(id uint64) *Session { return st.sessions[id] }

func (st *SessionStore) Count() int { return len(st.sessions) }

// ForEach visits sessions in connection order.
func (st *SessionStore) ForEach(fn func(*Session)) {
	for _, id := range st.order {
		fn(st.sessions[id])
	}
}

// Displays returns the open display sessions in connection order.
func (st *SessionStore) Displays() []*Session {
	var out []*Session
	for _, id := range st.order {
		s := st.sessions[id]
		if s.Role == packet.RoleDisplay && !s.IsClosed() {
			out = append(out, s)
		}
	}
	return out
}

// Broadcast buffers f on every open display.
func (st *SessionStore) Broadcast(f *packet.Frames) int {
	n := 0
	for _, s := range st.Displays() {
		s.SendFrames(f)
		n++
	}
	return n
}
