package entity

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/planetilt/host/internal/asset"
	"github.com/planetilt/host/internal/physics"
	"github.com/planetilt/host/internal/render"
	"go.uber.org/zap/zaptest"
)

func newTestSim(t *testing.T, lib *asset.Library) *Simulation {
	t.Helper()
	return NewSimulation(
		physics.NewWorld(mgl64.Vec3{0, -9.8, 0}),
		render.NewScene(),
		lib,
		zaptest.NewLogger(t),
	)
}

func countIn(r *Registry, e *Entity) int {
	n := 0
	r.Each(func(cur *Entity) {
		if cur == e {
			n++
		}
	})
	return n
}

type hooks struct {
	thinks  int
	removes int
	onThink func()
}

func (h *hooks) Think() {
	h.thinks++
	if h.onThink != nil {
		h.onThink()
	}
}

func (h *hooks) OnRemove() { h.removes++ }

// go test -run ^TestNewEntity_Registers$ ./internal/entity -count 1
func TestNewEntity_Registers(t *testing.T) {
	sim := newTestSim(t, nil)
	a := sim.NewEntity()
	b := sim.NewEntity()

	if got := countIn(sim.Registry(), a); got != 1 {
		t.Fatalf("a registered %d times, want 1", got)
	}
	if sim.Registry().At(0) != a || sim.Registry().At(1) != b {
		t.Error("registry order is not creation order")
	}
	if a.ID() == b.ID() {
		t.Error("entities share an id")
	}

	if err := a.Remove(); err != nil {
		t.Fatalf("Remove() err = %v", err)
	}
	if got := countIn(sim.Registry(), a); got != 0 {
		t.Errorf("a still registered %d times after Remove", got)
	}
	if sim.Registry().Len() != 1 {
		t.Errorf("Len() = %d, want 1", sim.Registry().Len())
	}
}

func TestRemove_Twice(t *testing.T) {
	sim := newTestSim(t, nil)
	e := sim.NewEntity()
	h := &hooks{}
	e.SetBehavior(h)

	if err := e.Remove(); err != nil {
		t.Fatalf("first Remove() err = %v", err)
	}
	if err := e.Remove(); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("second Remove() err = %v, want ErrNotRegistered", err)
	}
	if h.removes != 1 {
		t.Errorf("OnRemove ran %d times, want 1", h.removes)
	}
}

func TestRemove_DetachesMeshAndBody(t *testing.T) {
	sim := newTestSim(t, nil)
	e := sim.NewEntity()
	if err := e.SetGeometry(render.BoxGeometry(1, 1, 1), nil); err != nil {
		t.Fatal(err)
	}
	if err := e.SetPhysicsBody(physics.NewBody(1)); err != nil {
		t.Fatal(err)
	}
	if sim.Scene().Len() != 1 || sim.World().Len() != 1 {
		t.Fatalf("scene=%d world=%d, want 1 1", sim.Scene().Len(), sim.World().Len())
	}
	if err := e.Remove(); err != nil {
		t.Fatal(err)
	}
	if sim.Scene().Len() != 0 || sim.World().Len() != 0 {
		t.Errorf("scene=%d world=%d after Remove, want 0 0", sim.Scene().Len(), sim.World().Len())
	}
	if err := e.SetGeometry(render.BoxGeometry(1, 1, 1), nil); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("SetGeometry after Remove err = %v, want ErrNotRegistered", err)
	}
	if sim.Scene().Len() != 0 {
		t.Error("removed entity reattached a mesh")
	}
}

func TestAccessors_MissingMesh(t *testing.T) {
	sim := newTestSim(t, nil)
	e := sim.NewEntity()
	if _, err := e.GetPos(); !errors.Is(err, ErrMissingMesh) {
		t.Errorf("GetPos() err = %v, want ErrMissingMesh", err)
	}
	if _, err := e.GetRotation(); !errors.Is(err, ErrMissingMesh) {
		t.Errorf("GetRotation() err = %v, want ErrMissingMesh", err)
	}
	if _, err := e.Forward(); !errors.Is(err, ErrMissingMesh) {
		t.Errorf("Forward() err = %v, want ErrMissingMesh", err)
	}
	if err := e.SetPhysicsBody(physics.NewBody(1)); !errors.Is(err, ErrMissingMesh) {
		t.Errorf("SetPhysicsBody() err = %v, want ErrMissingMesh", err)
	}
	if sim.World().Len() != 0 {
		t.Error("failed SetPhysicsBody still added the body")
	}
}

func TestSetPos_BeforeMeshIsApplied(t *testing.T) {
	sim := newTestSim(t, nil)
	e := sim.NewEntity()
	want := mgl64.Vec3{1, 2, 3}
	rot := mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 1, 0})
	e.SetPos(want)
	e.SetRotation(rot)

	if err := e.SetGeometry(render.BoxGeometry(1, 1, 1), nil); err != nil {
		t.Fatal(err)
	}
	got, err := e.GetPos()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("GetPos() = %v, want %v", got, want)
	}
	if gotRot, _ := e.GetRotation(); gotRot != rot {
		t.Errorf("GetRotation() = %v, want %v", gotRot, rot)
	}
	if !e.Mesh().CastShadow {
		t.Error("mesh does not cast shadows")
	}
	if e.Mesh().Material != render.DefaultMaterial() {
		t.Errorf("material = %+v, want default", e.Mesh().Material)
	}
}

func TestSetGeometry_ReplaceKeepsTransform(t *testing.T) {
	sim := newTestSim(t, nil)
	e := sim.NewEntity()
	if err := e.SetGeometry(render.BoxGeometry(1, 1, 1), nil); err != nil {
		t.Fatal(err)
	}
	if err := e.SetPhysicsBody(physics.NewBody(1)); err != nil {
		t.Fatal(err)
	}
	pos := mgl64.Vec3{4, 5, 6}
	rot := mgl64.QuatRotate(1, mgl64.Vec3{1, 0, 0})
	e.SetPos(pos)
	e.SetRotation(rot)
	old := e.Mesh()

	red := render.Material{Name: "red", Color: 0xff0000}
	if err := e.SetGeometry(render.BoxGeometry(2, 2, 2), []render.Material{red, render.DefaultMaterial()}); err != nil {
		t.Fatal(err)
	}
	if e.Mesh() == old {
		t.Fatal("mesh was not replaced")
	}
	if sim.Scene().Contains(old) || !sim.Scene().Contains(e.Mesh()) || sim.Scene().Len() != 1 {
		t.Error("scene does not hold exactly the new mesh")
	}
	if e.Mesh().Position != pos || e.Mesh().Quaternion != rot {
		t.Errorf("transform = %v %v, want %v %v", e.Mesh().Position, e.Mesh().Quaternion, pos, rot)
	}
	if e.Body().Position != pos {
		t.Errorf("body position = %v, want %v", e.Body().Position, pos)
	}
	if e.Mesh().Material != red {
		t.Errorf("material = %+v, want first material", e.Mesh().Material)
	}
}

func TestSetGeometry_Container(t *testing.T) {
	sim := newTestSim(t, nil)
	e := sim.NewEntity()

	first := render.BoxGeometry(1, 1, 1)
	group := render.NewGroup("ship")
	group.Children = []*render.Mesh{
		render.NewMesh(first, render.DefaultMaterial()),
		render.NewMesh(render.BoxGeometry(3, 3, 3), render.DefaultMaterial()),
	}
	if err := e.SetGeometry(group, nil); err != nil {
		t.Fatal(err)
	}
	if e.Mesh().Geometry != first {
		t.Error("container geometry not taken from the first child")
	}

	if err := e.SetGeometry(render.NewGroup("empty"), nil); !errors.Is(err, ErrEmptyContainer) {
		t.Errorf("empty container err = %v, want ErrEmptyContainer", err)
	}
	if e.Mesh().Geometry != first {
		t.Error("failed SetGeometry replaced the mesh")
	}
}

func TestSetPhysicsBody_ReplacementKeepsGravity(t *testing.T) {
	sim := newTestSim(t, nil)
	e := sim.NewEntity()
	e.SetPos(mgl64.Vec3{7, 0, 0})
	if err := e.SetGeometry(render.BoxGeometry(1, 1, 1), nil); err != nil {
		t.Fatal(err)
	}
	first := physics.NewBody(1)
	if err := e.SetPhysicsBody(first); err != nil {
		t.Fatal(err)
	}
	if first.Position != (mgl64.Vec3{7, 0, 0}) {
		t.Errorf("body position = %v, want mesh position", first.Position)
	}
	e.SetGravity(mgl64.Vec3{0, -1, 0})

	second := physics.NewBody(3)
	if err := e.SetPhysicsBody(second); err != nil {
		t.Fatal(err)
	}
	if sim.World().Contains(first) || !sim.World().Contains(second) {
		t.Error("world does not hold exactly the new body")
	}
	if second.Gravity == nil || *second.Gravity != (mgl64.Vec3{0, -1, 0}) {
		t.Errorf("gravity not transferred: %v", second.Gravity)
	}
	if second.Gravity == first.Gravity {
		t.Error("gravity shared by pointer between bodies")
	}
}

func TestSetMassAndGravity_Forwarded(t *testing.T) {
	sim := newTestSim(t, nil)
	e := sim.NewEntity()
	e.SetMass(2)
	if e.Mass() != 2 {
		t.Errorf("Mass() = %v, want 2", e.Mass())
	}
	if err := e.SetGeometry(render.BoxGeometry(1, 1, 1), nil); err != nil {
		t.Fatal(err)
	}
	b := physics.NewBody(1)
	if err := e.SetPhysicsBody(b); err != nil {
		t.Fatal(err)
	}
	e.SetMass(5)
	if b.Mass != 5 {
		t.Errorf("body mass = %v, want 5", b.Mass)
	}
	e.SetGravity(mgl64.Vec3{0, 0, 0})
	if g, ok := e.Gravity(); !ok || g != (mgl64.Vec3{}) {
		t.Errorf("Gravity() = %v %v", g, ok)
	}
	if b.Gravity == nil || *b.Gravity != (mgl64.Vec3{}) {
		t.Errorf("body gravity = %v, want zero override", b.Gravity)
	}
}

func TestSetPhysicsBody_FirstBodyTakesCachedMassAndGravity(t *testing.T) {
	sim := newTestSim(t, nil)
	e := sim.NewEntity()
	e.SetGravity(mgl64.Vec3{0, 0, 0})
	e.SetMass(5)
	if err := e.SetGeometry(render.BoxGeometry(1, 1, 1), nil); err != nil {
		t.Fatal(err)
	}
	b := physics.NewBody(1)
	if err := e.SetPhysicsBody(b); err != nil {
		t.Fatal(err)
	}
	if b.Gravity == nil || *b.Gravity != (mgl64.Vec3{}) {
		t.Errorf("body gravity = %v, want cached zero override", b.Gravity)
	}
	if b.Mass != 5 {
		t.Errorf("body mass = %v, want cached 5", b.Mass)
	}

	// no cached mass: the body keeps its own
	other := sim.NewEntity()
	if err := other.SetGeometry(render.BoxGeometry(1, 1, 1), nil); err != nil {
		t.Fatal(err)
	}
	ob := physics.NewBody(3)
	if err := other.SetPhysicsBody(ob); err != nil {
		t.Fatal(err)
	}
	if ob.Mass != 3 || ob.Gravity != nil {
		t.Errorf("body mass=%v gravity=%v, want 3 and world gravity", ob.Mass, ob.Gravity)
	}
}

func TestApplyForce(t *testing.T) {
	sim := newTestSim(t, nil)
	e := sim.NewEntity()
	e.ApplyForce(mgl64.Vec3{1, 0, 0}) // no body: no-op
	if err := e.SetGeometry(render.BoxGeometry(1, 1, 1), nil); err != nil {
		t.Fatal(err)
	}
	b := physics.NewBody(1)
	if err := e.SetPhysicsBody(b); err != nil {
		t.Fatal(err)
	}
	e.ApplyForce(mgl64.Vec3{1, 0, 0})
	e.ApplyForce(mgl64.Vec3{0, 2, 0})
	if b.Force != (mgl64.Vec3{1, 2, 0}) {
		t.Errorf("Force = %v, want {1 2 0}", b.Force)
	}
}

func TestForward(t *testing.T) {
	tests := []struct {
		name string
		rot  mgl64.Quat
		want mgl64.Vec3
	}{
		{"identity", mgl64.QuatIdent(), mgl64.Vec3{0, 0, -1}},
		{"yaw 90", mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0}), mgl64.Vec3{-1, 0, 0}},
		{"pitch 90", mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0}), mgl64.Vec3{0, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newTestSim(t, nil)
			e := sim.NewEntity()
			if err := e.SetGeometry(render.BoxGeometry(1, 1, 1), nil); err != nil {
				t.Fatal(err)
			}
			e.SetPos(mgl64.Vec3{5, -3, 2})
			e.SetRotation(tt.rot)
			got, err := e.Forward()
			if err != nil {
				t.Fatal(err)
			}
			if !got.ApproxEqualThreshold(tt.want, 1e-9) {
				t.Errorf("Forward() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeferredRemoval(t *testing.T) {
	sim := newTestSim(t, nil)
	a := sim.NewEntity()
	b := sim.NewEntity()
	sim.MarkForRemoval(a)
	sim.MarkForRemoval(a)
	if !a.Registered() {
		t.Fatal("MarkForRemoval removed immediately")
	}
	if n := sim.FlushRemovals(); n != 1 {
		t.Errorf("FlushRemovals() = %d, want 1", n)
	}
	if a.Registered() || !b.Registered() {
		t.Error("wrong entity removed")
	}
	sim.MarkForRemoval(a)
	if n := sim.FlushRemovals(); n != 0 {
		t.Errorf("FlushRemovals() of removed entity = %d, want 0", n)
	}
}
