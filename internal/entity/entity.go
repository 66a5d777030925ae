package entity

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/planetilt/host/internal/physics"
	"github.com/planetilt/host/internal/render"
)

// Entity keeps a render mesh and a physics body in step. Position and
// rotation are cached so they can be set before any mesh exists.
type Entity struct {
	id         uint64
	sim        *Simulation
	registered bool

	mesh   *render.Mesh
	object *render.Group // textured model installed without SetGeometry
	body   *physics.Body

	pos     mgl64.Vec3
	rot     mgl64.Quat
	mass    float64
	gravity *mgl64.Vec3

	behavior any
}

func newEntity(s *Simulation, id uint64) *Entity {
	return &Entity{
		id:         id,
		sim:        s,
		registered: true,
		rot:        mgl64.QuatIdent(),
	}
}

func (e *Entity) ID() uint64                 { return e.id }
func (e *Entity) Registered() bool           { return e.registered }
func (e *Entity) Mesh() *render.Mesh         { return e.mesh }
func (e *Entity) Object() *render.Group      { return e.object }
func (e *Entity) Body() *physics.Body        { return e.body }
func (e *Entity) Mass() float64              { return e.mass }
func (e *Entity) Behavior() any              { return e.behavior }
func (e *Entity) Simulation() *Simulation    { return e.sim }
func (e *Entity) CachedPos() mgl64.Vec3      { return e.pos }
func (e *Entity) CachedRotation() mgl64.Quat { return e.rot }

// Gravity returns the per-entity gravity override, if one was set.
func (e *Entity) Gravity() (mgl64.Vec3, bool) {
	if e.gravity == nil {
		return mgl64.Vec3{}, false
	}
	return *e.gravity, true
}

// SetBehavior attaches the value whose optional capabilities (Thinker,
// Remover) the simulation queries.
func (e *Entity) SetBehavior(b any) {
	e.behavior = b
}

// SetGeometry installs a mesh built from src. src is either a bare geometry
// or a container whose first child carries the geometry; container loaders
// deliver the latter and only the first child is used. The first material
// is used, else a flat default. Replacing an existing mesh keeps its
// transform; a first mesh picks up the cached position and rotation.
func (e *Entity) SetGeometry(src render.GeometrySource, materials []render.Material) error {
	if !e.registered {
		return ErrNotRegistered
	}
	geom, err := resolveGeometry(src)
	if err != nil {
		return err
	}
	mat := render.DefaultMaterial()
	if len(materials) > 0 {
		mat = materials[0]
	}

	scene := e.sim.scene
	if e.mesh != nil {
		pos, rot := e.mesh.Position, e.mesh.Quaternion
		scene.Remove(e.mesh)
		e.mesh = render.NewMesh(geom, mat)
		scene.Add(e.mesh)
		e.SetPos(pos)
		e.SetRotation(rot)
	} else {
		e.mesh = render.NewMesh(geom, mat)
		scene.Add(e.mesh)
		e.SetPos(e.pos)
		e.SetRotation(e.rot)
	}
	e.mesh.CastShadow = true
	return nil
}

func resolveGeometry(src render.GeometrySource) (*render.Geometry, error) {
	switch g := src.(type) {
	case *render.Geometry:
		if g == nil {
			return nil, fmt.Errorf("nil geometry")
		}
		return g, nil
	case *render.Group:
		if g == nil || len(g.Children) == 0 || g.Children[0] == nil || g.Children[0].Geometry == nil {
			return nil, ErrEmptyContainer
		}
		return g.Children[0].Geometry, nil
	default:
		return nil, fmt.Errorf("unsupported geometry source %T", src)
	}
}

// SetPhysicsBody installs b, initialized from the mesh transform. A replaced
// body leaves the world and hands its gravity setting to b. A first body
// picks up the gravity and non-zero mass set on the entity beforehand.
func (e *Entity) SetPhysicsBody(b *physics.Body) error {
	if !e.registered {
		return ErrNotRegistered
	}
	if e.mesh == nil {
		return ErrMissingMesh
	}
	world := e.sim.world
	if e.body != nil {
		world.Remove(e.body)
		b.SetGravity(e.body.Gravity)
	} else {
		if e.gravity != nil {
			b.SetGravity(e.gravity)
		}
		if e.mass != 0 {
			b.Mass = e.mass
		}
	}
	b.Position = e.mesh.Position
	b.Quaternion = e.mesh.Quaternion
	e.body = b
	world.Add(b)
	return nil
}

func (e *Entity) SetMass(mass float64) {
	e.mass = mass
	if e.body != nil {
		e.body.Mass = mass
	}
}

func (e *Entity) SetGravity(g mgl64.Vec3) {
	e.gravity = &g
	if e.body != nil {
		e.body.SetGravity(&g)
	}
}

func (e *Entity) SetPos(v mgl64.Vec3) {
	e.pos = v
	if e.mesh != nil {
		e.mesh.Position = v
	}
	if e.object != nil {
		e.object.Position = v
	}
	if e.body != nil {
		e.body.Position = v
	}
}

// GetPos returns the mesh position. It fails until a mesh is attached.
func (e *Entity) GetPos() (mgl64.Vec3, error) {
	if e.mesh == nil {
		return mgl64.Vec3{}, ErrMissingMesh
	}
	return e.mesh.Position, nil
}

func (e *Entity) SetRotation(q mgl64.Quat) {
	e.rot = q
	if e.body != nil {
		e.body.Quaternion = q
	}
	if e.mesh != nil {
		e.mesh.Quaternion = q
	}
	if e.object != nil {
		e.object.Quaternion = q
	}
}

func (e *Entity) GetRotation() (mgl64.Quat, error) {
	if e.mesh == nil {
		return mgl64.Quat{}, ErrMissingMesh
	}
	return e.mesh.Quaternion, nil
}

// Remove runs the OnRemove hook, unregisters the entity and detaches its
// body and render objects. Removing twice returns ErrNotRegistered and does
// not run the hook again.
func (e *Entity) Remove() error {
	if !e.registered {
		return ErrNotRegistered
	}
	if r, ok := e.behavior.(Remover); ok {
		r.OnRemove()
	}
	e.registered = false
	e.sim.registry.remove(e)
	if e.body != nil {
		e.sim.world.Remove(e.body)
	}
	if e.mesh != nil {
		e.sim.scene.Remove(e.mesh)
	}
	if e.object != nil {
		e.sim.scene.Remove(e.object)
	}
	return nil
}

// ApplyForce pushes the body through its center of mass. No-op without a body.
func (e *Entity) ApplyForce(f mgl64.Vec3) {
	if e.body != nil {
		e.body.ApplyCentralForce(f)
	}
}

// Forward returns the world-space unit vector the mesh faces (local -Z).
func (e *Entity) Forward() (mgl64.Vec3, error) {
	if e.mesh == nil {
		return mgl64.Vec3{}, ErrMissingMesh
	}
	tip := mgl64.TransformCoordinate(mgl64.Vec3{0, 0, -1}, e.mesh.MatrixWorld())
	return tip.Sub(e.mesh.Position).Normalize(), nil
}

func (e *Entity) syncFromBody() {
	e.mesh.Position = e.body.Position
	e.mesh.Quaternion = e.body.Quaternion
	if e.object != nil {
		e.object.Position = e.body.Position
		e.object.Quaternion = e.body.Quaternion
	}
}
