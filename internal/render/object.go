package render

import "github.com/go-gl/mathgl/mgl64"

// Transform is the placement of a scene object. Objects in this scene are
// never parented, so the local transform is also the world transform.
type Transform struct {
	Position   mgl64.Vec3
	Quaternion mgl64.Quat
	CastShadow bool
}

func NewTransform() Transform {
	return Transform{Quaternion: mgl64.QuatIdent()}
}

// MatrixWorld returns translation × rotation.
func (t *Transform) MatrixWorld() mgl64.Mat4 {
	p := t.Position
	return mgl64.Translate3D(p[0], p[1], p[2]).Mul4(t.Quaternion.Normalize().Mat4())
}

func (t *Transform) transform() *Transform { return t }

// Object is anything the Scene can hold.
type Object interface {
	transform() *Transform
}

// TransformOf exposes the transform of any scene object.
func TransformOf(o Object) *Transform { return o.transform() }

// GeometrySource is what a loader hands back: either a bare *Geometry or a
// *Group container whose children carry geometry.
type GeometrySource interface {
	geometrySource()
}

// Geometry is an indexed triangle list.
type Geometry struct {
	Name     string
	Vertices []mgl64.Vec3
	Normals  []mgl64.Vec3
	Faces    [][3]int
}

func (*Geometry) geometrySource() {}

// Bounds returns the axis aligned bounding box of the vertices.
func (g *Geometry) Bounds() (min, max mgl64.Vec3) {
	if len(g.Vertices) == 0 {
		return
	}
	min, max = g.Vertices[0], g.Vertices[0]
	for _, v := range g.Vertices[1:] {
		for i := 0; i < 3; i++ {
			if v[i] < min[i] {
				min[i] = v[i]
			}
			if v[i] > max[i] {
				max[i] = v[i]
			}
		}
	}
	return min, max
}

// BoxGeometry builds an axis aligned box centered on the origin.
func BoxGeometry(w, h, d float64) *Geometry {
	x, y, z := w/2, h/2, d/2
	return &Geometry{
		Name: "box",
		Vertices: []mgl64.Vec3{
			{-x, -y, -z}, {x, -y, -z}, {x, y, -z}, {-x, y, -z},
			{-x, -y, z}, {x, -y, z}, {x, y, z}, {-x, y, z},
		},
		Faces: [][3]int{
			{0, 2, 1}, {0, 3, 2}, // back
			{4, 5, 6}, {4, 6, 7}, // front
			{0, 1, 5}, {0, 5, 4}, // bottom
			{3, 7, 6}, {3, 6, 2}, // top
			{0, 4, 7}, {0, 7, 3}, // left
			{1, 2, 6}, {1, 6, 5}, // right
		},
	}
}

// Material is the subset of surface properties the host keeps.
type Material struct {
	Name  string
	Color uint32
	Flat  bool
}

// DefaultMaterial is used when a model ships without materials.
func DefaultMaterial() Material {
	return Material{Name: "default", Color: 0xdedede, Flat: true}
}

// Mesh is a renderable geometry with one material.
type Mesh struct {
	Transform
	Geometry *Geometry
	Material Material
}

func NewMesh(g *Geometry, m Material) *Mesh {
	return &Mesh{Transform: NewTransform(), Geometry: g, Material: m}
}

// Group is a container object produced by scene-graph loaders.
type Group struct {
	Transform
	Name     string
	Children []*Mesh
}

func NewGroup(name string) *Group {
	return &Group{Transform: NewTransform(), Name: name}
}

func (*Group) geometrySource() {}
