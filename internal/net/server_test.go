package net

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/planetilt/host/internal/net/packet"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, opts ServerOptions) (*Server, *httptest.Server) {
	t.Helper()
	opts.BindAddress = "127.0.0.1:0"
	if opts.Session.InQueueSize == 0 {
		opts.Session = SessionOptions{InQueueSize: 8, OutQueueSize: 8, WriteTimeout: time.Second}
	}
	srv, err := NewServer(opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewServer() err = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return srv, ts
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func nextSession(t *testing.T, srv *Server) *Session {
	t.Helper()
	select {
	case sess := <-srv.NewSessions():
		return sess
	case <-time.After(2 * time.Second):
		t.Fatal("no session accepted")
		return nil
	}
}

// go test -run ^TestServer_ControllerRoundTrip$ ./internal/net -count 1
func TestServer_ControllerRoundTrip(t *testing.T) {
	srv, ts := newTestServer(t, ServerOptions{})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ControllerPath), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sess := nextSession(t, srv)
	if sess.Role != packet.RoleController || sess.State() != packet.StateConnected {
		t.Fatalf("session role=%v state=%v", sess.Role, sess.State())
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","payload":{"name":"ace"}}`)); err != nil {
		t.Fatal(err)
	}
	select {
	case data := <-sess.InQueue:
		r, err := packet.NewReader(sess.Encoding, data)
		if err != nil || r.Type() != "join" {
			t.Fatalf("inbound = %q, %v", data, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message never reached InQueue")
	}

	sess.SendMessage("welcome", map[string]int{"playerId": 1})
	if sess.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", sess.Pending())
	}
	sess.FlushOutput()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if kind != websocket.TextMessage || string(data) != `{"type":"welcome","payload":{"playerId":1}}` {
		t.Errorf("outbound = %d %s", kind, data)
	}

	conn.Close()
	deadline := time.After(2 * time.Second)
	for !sess.IsClosed() {
		select {
		case <-deadline:
			t.Fatal("session not closed after client hung up")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServer_DisplayMsgpack(t *testing.T) {
	srv, ts := newTestServer(t, ServerOptions{})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, DisplayPath+"?enc=msgpack"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sess := nextSession(t, srv)
	if sess.Role != packet.RoleDisplay || sess.Encoding != packet.EncodingMsgpack {
		t.Fatalf("session role=%v enc=%v", sess.Role, sess.Encoding)
	}
	store := NewSessionStore()
	store.Add(sess)
	if n := store.Broadcast(packet.NewFrames("remove plane", 4)); n != 1 {
		t.Fatalf("Broadcast() = %d, want 1", n)
	}
	sess.FlushOutput()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var env struct {
		Type    string `msgpack:"type"`
		Payload int    `msgpack:"payload"`
	}
	if kind != websocket.BinaryMessage || msgpack.Unmarshal(data, &env) != nil || env.Type != "remove plane" || env.Payload != 4 {
		t.Errorf("outbound kind=%d env=%+v", kind, env)
	}
}

func TestServer_DisplayRejections(t *testing.T) {
	hash, err := HashDisplayKey("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	_, ts := newTestServer(t, ServerOptions{DisplayKey: NewDisplayKey(hash)})

	tests := []struct {
		name  string
		query string
		code  int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "?key=nope", http.StatusUnauthorized},
		{"bad encoding", "?key=s3cret&enc=xml", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, DisplayPath+tt.query), nil)
			if err == nil {
				t.Fatal("dial succeeded")
			}
			if resp == nil || resp.StatusCode != tt.code {
				t.Fatalf("resp = %v, want %d", resp, tt.code)
			}
		})
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, DisplayPath+"?key=s3cret"), nil)
	if err != nil {
		t.Fatalf("dial with key: %v", err)
	}
	conn.Close()
}

func TestServer_OriginCheck(t *testing.T) {
	_, ts := newTestServer(t, ServerOptions{AllowedOrigins: []string{"http://game.local"}})
	h := http.Header{"Origin": []string{"http://evil.local"}}
	if _, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ControllerPath), h); err == nil {
		t.Error("foreign origin accepted")
	}
	h.Set("Origin", "http://game.local")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ControllerPath), h)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}

func TestServer_HTTPRoutes(t *testing.T) {
	_, ts := newTestServer(t, ServerOptions{ControllerURL: "http://localhost:3000/"})

	resp, err := http.Get(ts.URL + QRPath)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("qr status=%d type=%q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if len(body) < 8 || string(body[1:4]) != "PNG" {
		t.Errorf("qr body is not a PNG")
	}

	resp, err = http.Get(ts.URL + HealthPath)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
}

func TestSession_BackpressureCloses(t *testing.T) {
	srv, ts := newTestServer(t, ServerOptions{Session: SessionOptions{InQueueSize: 1, OutQueueSize: 1, WriteTimeout: time.Second}})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ControllerPath), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	sess := nextSession(t, srv)

	// writer may drain one message; more than queue+1 must overflow
	for i := 0; i < 1000; i++ {
		sess.Send([]byte(`{"type":"x"}`))
	}
	sess.FlushOutput()
	if !sess.IsClosed() {
		t.Error("session survived a full output queue")
	}
	sess.Send([]byte("late"))
	if sess.Pending() != 0 {
		t.Error("closed session buffered output")
	}
}

func TestSessionStore(t *testing.T) {
	st := NewSessionStore()
	a := &Session{ID: 1, Role: packet.RoleController}
	b := &Session{ID: 2, Role: packet.RoleDisplay}
	c := &Session{ID: 3, Role: packet.RoleDisplay}
	c.closed.Store(true)
	st.Add(a)
	st.Add(b)
	st.Add(b)
	st.Add(c)

	if st.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", st.Count())
	}
	if d := st.Displays(); len(d) != 1 || d[0] != b {
		t.Errorf("Displays() = %v, want [b]", d)
	}
	if st.Remove(1) != a || st.Remove(1) != nil || st.Get(2) != b {
		t.Error("Remove/Get mismatch")
	}
	var ids []uint64
	st.ForEach(func(s *Session) { ids = append(ids, s.ID) })
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Errorf("ForEach order = %v", ids)
	}
}

func TestDisplayKey(t *testing.T) {
	if err := (DisplayKey{}).Check("anything"); err != nil {
		t.Errorf("disabled key rejected: %v", err)
	}
	hash, err := HashDisplayKey("k")
	if err != nil {
		t.Fatal(err)
	}
	k := NewDisplayKey(hash)
	if !k.Enabled() || k.Check("k") != nil || k.Check("x") != ErrBadDisplayKey {
		t.Error("DisplayKey check mismatch")
	}
}
