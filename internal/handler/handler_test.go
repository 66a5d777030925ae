package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"github.com/planetilt/host/internal/asset"
	"github.com/planetilt/host/internal/config"
	"github.com/planetilt/host/internal/core/event"
	"github.com/planetilt/host/internal/data"
	"github.com/planetilt/host/internal/entity"
	"github.com/planetilt/host/internal/net"
	"github.com/planetilt/host/internal/net/packet"
	"github.com/planetilt/host/internal/physics"
	"github.com/planetilt/host/internal/render"
	"github.com/planetilt/host/internal/scripting"
	"github.com/planetilt/host/internal/world"
	"go.uber.org/zap/zaptest"
)

const testModels = `
models:
  - name: plane
    path: models/plane.obj
    box: [2, 0.5, 3]
    mass: 2
    gravity: [0, 0, 0]
`

const testOBJ = `o hull
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`

type harness struct {
	deps *Deps
	srv  *net.Server
	ts   *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	cfg := config.Defaults()

	models, err := data.ParseModelTable([]byte(testModels))
	if err != nil {
		t.Fatal(err)
	}
	lib := asset.NewLibrary(fstest.MapFS{"models/plane.obj": {Data: []byte(testOBJ)}})
	sim := entity.NewSimulation(physics.NewWorld(mgl64.Vec3{0, -9.82, 0}), render.NewScene(), lib, log)

	srv, err := net.NewServer(net.ServerOptions{
		BindAddress: "127.0.0.1:0",
		Session:     net.SessionOptions{InQueueSize: 8, OutQueueSize: 32, WriteTimeout: time.Second},
	}, log)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})

	deps := &Deps{
		Config:   cfg,
		Log:      log,
		World:    world.NewState(world.Viewport{Width: cfg.Display.Width, Height: cfg.Display.Height}, world.Field{Width: 40, Height: 40, Scale: 20}),
		Sim:      sim,
		Sessions: net.NewSessionStore(),
		Models:   models,
		Bus:      event.NewBus(),
	}
	return &harness{deps: deps, srv: srv, ts: ts}
}

// connect dials path and returns the client side plus the stored session.
func (h *harness) connect(t *testing.T, path string) (*websocket.Conn, *net.Session) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	select {
	case sess := <-h.srv.NewSessions():
		h.deps.Sessions.Add(sess)
		HandleConnect(sess, h.deps, 0)
		return conn, sess
	case <-time.After(2 * time.Second):
		t.Fatal("session not accepted")
		return nil, nil
	}
}

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// expect flushes sess and reads the next message on conn.
func expect(t *testing.T, sess *net.Session, conn *websocket.Conn, typ string) received {
	t.Helper()
	sess.FlushOutput()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read %q: %v", typ, err)
	}
	var msg received
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != typ {
		t.Fatalf("got %q (%s), want %q", msg.Type, msg.Payload, typ)
	}
	return msg
}

func reader(t *testing.T, raw string) *packet.Reader {
	t.Helper()
	r, err := packet.NewReader(packet.EncodingJSON, []byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Ace  ", "Ace"},
		{"Café", "Café"},
		{"bell\u0007boy", "bellboy"},
		{"", "pilot"},
		{" \t ", "pilot"},
		{"abcdefghijklmnopqrstuvwxyz", "abcdefghijklmnop"},
		{"飛行員", "飛行員"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// go test -run ^TestPlaneLifecycle$ ./internal/handler -count 1
func TestPlaneLifecycle(t *testing.T) {
	h := newHarness(t)
	dconn, display := h.connect(t, net.DisplayPath)
	expect(t, display, dconn, MsgState)
	if display.State() != packet.StateJoined {
		t.Fatalf("display state = %v, want joined", display.State())
	}
	cconn, ctrl := h.connect(t, net.ControllerPath)

	HandleJoin(ctrl, reader(t, `{"type":"join","payload":{"name":"  Ace "}}`), h.deps)

	if h.deps.World.Len() != 1 || ctrl.State() != packet.StateJoined {
		t.Fatalf("join: planes=%d state=%v", h.deps.World.Len(), ctrl.State())
	}
	p := h.deps.World.FindBySession(ctrl.ID)
	if p.Name != "Ace" {
		t.Errorf("name = %q", p.Name)
	}
	if _, err := p.Entity.GetPos(); err != nil {
		t.Errorf("placeholder mesh missing: %v", err)
	}
	if g, ok := p.Entity.Gravity(); !ok || g != (mgl64.Vec3{}) {
		t.Errorf("gravity override = %v %v, want zero", g, ok)
	}
	if p.Entity.Body() == nil || p.Entity.Body().Mass != 2 || !h.deps.Sim.World().Contains(p.Entity.Body()) {
		t.Error("physics body not installed from the manifest")
	}
	welcome := expect(t, ctrl, cconn, MsgWelcome)
	var w welcomePayload
	_ = json.Unmarshal(welcome.Payload, &w)
	if w.PlayerID != p.ID || w.TickHz != 20 {
		t.Errorf("welcome = %+v", w)
	}
	add := expect(t, display, dconn, MsgAddPlane)
	if string(add.Payload) != "1" {
		t.Errorf("add plane payload = %s", add.Payload)
	}

	// async model replaces the placeholder box
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.deps.Sim.Settle(ctx); err != nil {
		t.Fatal(err)
	}
	if p.Entity.Mesh().Geometry.Name != "hull" {
		t.Errorf("model not applied, geometry %q", p.Entity.Mesh().Geometry.Name)
	}

	HandleMotion(ctrl, reader(t, `{"type":"motion","payload":{"x":0,"y":20,"z":20}}`), h.deps)
	if pos := p.Pos(); !pos.ApproxEqual(mgl64.Vec3{1, -1, 0}) || len(p.Relay) != 1 {
		t.Errorf("after motion pos=%v relay=%v", pos, p.Relay)
	}
	BroadcastUpdatePlane(h.deps, p.ID, p.Relay[0])
	upd := expect(t, display, dconn, MsgUpdatePlane)
	if string(upd.Payload) != `[1,{"x":0,"y":20,"z":20}]` {
		t.Errorf("update plane payload = %s", upd.Payload)
	}

	HandleFire(ctrl, nil, h.deps)
	if !p.Firing() || p.Fires != 1 {
		t.Errorf("fire: firing=%v fires=%d", p.Firing(), p.Fires)
	}
	expect(t, display, dconn, MsgFire)

	HandleDisconnect(ctrl, h.deps)
	if h.deps.World.Len() != 0 {
		t.Fatal("plane still in world after disconnect")
	}
	if !p.Entity.Registered() {
		t.Fatal("entity removed before end of tick")
	}
	h.deps.Sim.FlushRemovals()
	if p.Entity.Registered() || h.deps.Sim.World().Len() != 0 {
		t.Error("entity not removed at end of tick")
	}
	rm := expect(t, display, dconn, MsgRemovePlane)
	if string(rm.Payload) != "1" {
		t.Errorf("remove plane payload = %s", rm.Payload)
	}

	h.deps.Bus.SwapBuffers()
	if n := h.deps.Bus.Pending(); n != 3 {
		t.Errorf("bus events = %d, want joined+fired+left", n)
	}
}

func TestHandleJoin_Twice(t *testing.T) {
	h := newHarness(t)
	_, ctrl := h.connect(t, net.ControllerPath)
	HandleJoin(ctrl, reader(t, `{"type":"join"}`), h.deps)
	HandleJoin(ctrl, reader(t, `{"type":"join","payload":{"name":"again"}}`), h.deps)
	if h.deps.World.Len() != 1 {
		t.Fatalf("planes = %d, want 1", h.deps.World.Len())
	}
	if p := h.deps.World.FindBySession(ctrl.ID); p.Name != "pilot" {
		t.Errorf("name = %q, want default", p.Name)
	}
}

func TestHandleMotion_RejectsNonFinite(t *testing.T) {
	h := newHarness(t)
	_, ctrl := h.connect(t, net.ControllerPath)
	HandleJoin(ctrl, reader(t, `{"type":"join"}`), h.deps)
	p := h.deps.World.FindBySession(ctrl.ID)

	HandleMotion(ctrl, reader(t, `{"type":"motion","payload":{"y":"fast"}}`), h.deps)
	HandleMotion(ctrl, reader(t, `{"type":"motion"}`), h.deps)
	if len(p.Relay) != 0 || p.Pos() != (mgl64.Vec3{}) {
		t.Errorf("bad motion moved the plane to %v", p.Pos())
	}
}

func TestHandleBounds(t *testing.T) {
	h := newHarness(t)
	_, display := h.connect(t, net.DisplayPath)
	HandleBounds(display, reader(t, `{"type":"bounds","payload":{"width":1280,"height":720}}`), h.deps)
	if vp := h.deps.World.Viewport(); vp.Width != 1280 || vp.Height != 720 {
		t.Errorf("viewport = %+v", vp)
	}
	HandleBounds(display, reader(t, `{"type":"bounds","payload":{"width":-1,"height":720}}`), h.deps)
	if h.deps.World.Viewport().Width != 1280 {
		t.Error("negative bounds accepted")
	}
}

func TestFireFlashTicks(t *testing.T) {
	cfg := config.Defaults()
	tests := []struct {
		tick, flash time.Duration
		want        int
	}{
		{50 * time.Millisecond, 250 * time.Millisecond, 5},
		{40 * time.Millisecond, 250 * time.Millisecond, 7},
		{50 * time.Millisecond, 0, 1},
	}
	for _, tt := range tests {
		cfg.Network.TickRate, cfg.Field.FireFlash = tt.tick, tt.flash
		if got := FireFlashTicks(&Deps{Config: cfg}); got != tt.want {
			t.Errorf("FireFlashTicks(tick=%v flash=%v) = %d, want %d", tt.tick, tt.flash, got, tt.want)
		}
	}
}

func TestFireFlashTicks_ScriptSeesConfiguredFlash(t *testing.T) {
	eng, err := scripting.NewEngineFromSource(`
function fire_flash_ticks(tick_ms, flash_ms)
  return math.max(1, math.ceil(flash_ms / tick_ms))
end
`, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	cfg := config.Defaults()
	cfg.Network.TickRate = 50 * time.Millisecond
	cfg.Field.FireFlash = 600 * time.Millisecond
	if got := FireFlashTicks(&Deps{Config: cfg, Scripting: eng}); got != 12 {
		t.Errorf("FireFlashTicks() = %d, want 12 from the configured 600ms flash", got)
	}
}

func TestRegisterAll(t *testing.T) {
	reg := packet.NewRegistry(zaptest.NewLogger(t))
	RegisterAll(reg, &Deps{})
	for _, typ := range []string{MsgJoin, MsgMotion, MsgFire, MsgBounds} {
		if !reg.Has(typ) {
			t.Errorf("%q not registered", typ)
		}
	}
}
