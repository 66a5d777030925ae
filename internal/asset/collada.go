package asset

import (
	"context"
	"encoding/xml"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/planetilt/host/internal/render"
)

// ColladaLoader reads the geometry library of a COLLADA (.dae) document. Each
// <geometry> becomes one child of the returned container.
type ColladaLoader struct {
	FS fs.FS
}

type daeDocument struct {
	Geometries []daeGeometry `xml:"library_geometries>geometry"`
}

type daeGeometry struct {
	ID   string  `xml:"id,attr"`
	Name string  `xml:"name,attr"`
	Mesh daeMesh `xml:"mesh"`
}

type daeMesh struct {
	Sources   []daeSource    `xml:"source"`
	Vertices  daeVertices    `xml:"vertices"`
	Triangles []daePrimitive `xml:"triangles"`
	Polylists []daePrimitive `xml:"polylist"`
}

type daeSource struct {
	ID         string `xml:"id,attr"`
	FloatArray string `xml:"float_array"`
}

type daeVertices struct {
	ID     string     `xml:"id,attr"`
	Inputs []daeInput `xml:"input"`
}

type daeInput struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   int    `xml:"offset,attr"`
}

type daePrimitive struct {
	Inputs []daeInput `xml:"input"`
	VCount string     `xml:"vcount"`
	P      string     `xml:"p"`
}

func (l *ColladaLoader) Load(ctx context.Context, p string) (Result, error) {
	raw, err := readFile(ctx, l.FS, p)
	if err != nil {
		return Result{}, &LoadError{Path: p, Err: err}
	}
	var doc daeDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return Result{}, &LoadError{Path: p, Err: err}
	}
	group := render.NewGroup(path.Base(p))
	for _, dg := range doc.Geometries {
		g, err := dg.build()
		if err != nil {
			return Result{}, &LoadError{Path: p, Err: fmt.Errorf("geometry %q: %w", dg.ID, err)}
		}
		group.Children = append(group.Children, render.NewMesh(g, render.DefaultMaterial()))
	}
	if len(group.Children) == 0 {
		return Result{}, &LoadError{Path: p, Err: fmt.Errorf("no geometry")}
	}
	return Result{Source: group}, nil
}

func (dg *daeGeometry) build() (*render.Geometry, error) {
	posSource := ""
	for _, in := range dg.Mesh.Vertices.Inputs {
		if in.Semantic == "POSITION" {
			posSource = strings.TrimPrefix(in.Source, "#")
		}
	}
	var floats []float64
	for _, s := range dg.Mesh.Sources {
		if s.ID == posSource {
			var err error
			if floats, err = parseFloats(s.FloatArray); err != nil {
				return nil, err
			}
		}
	}
	if len(floats) == 0 || len(floats)%3 != 0 {
		return nil, fmt.Errorf("missing or malformed POSITION source %q", posSource)
	}
	name := dg.Name
	if name == "" {
		name = dg.ID
	}
	g := &render.Geometry{Name: name}
	for i := 0; i < len(floats); i += 3 {
		g.Vertices = append(g.Vertices, mgl64.Vec3{floats[i], floats[i+1], floats[i+2]})
	}

	prims := append(append([]daePrimitive{}, dg.Mesh.Triangles...), dg.Mesh.Polylists...)
	for _, prim := range prims {
		if err := prim.appendFaces(g); err != nil {
			return nil, err
		}
	}
	if len(g.Faces) == 0 {
		return nil, fmt.Errorf("no faces")
	}
	return g, nil
}

func (prim *daePrimitive) appendFaces(g *render.Geometry) error {
	stride, vertexOffset := 0, -1
	for _, in := range prim.Inputs {
		if in.Offset+1 > stride {
			stride = in.Offset + 1
		}
		if in.Semantic == "VERTEX" {
			vertexOffset = in.Offset
		}
	}
	if vertexOffset < 0 {
		return fmt.Errorf("primitive without VERTEX input")
	}
	p, err := parseInts(prim.P)
	if err != nil {
		return err
	}
	var counts []int
	if prim.VCount != "" {
		if counts, err = parseInts(prim.VCount); err != nil {
			return err
		}
	}
	corner := func(i int) (int, error) {
		at := i*stride + vertexOffset
		if at >= len(p) {
			return 0, fmt.Errorf("index stream truncated")
		}
		v := p[at]
		if v < 0 || v >= len(g.Vertices) {
			return 0, fmt.Errorf("vertex index %d out of range", v)
		}
		return v, nil
	}

	total := len(p) / stride
	if counts == nil {
		for i := 0; i+2 < total; i += 3 {
			counts = append(counts, 3)
		}
	}
	next := 0
	for _, n := range counts {
		if n < 3 || n > total-next {
			return fmt.Errorf("polygon vertex count %d out of range", n)
		}
		idx := make([]int, n)
		for k := 0; k < n; k++ {
			v, err := corner(next + k)
			if err != nil {
				return err
			}
			idx[k] = v
		}
		next += n
		for k := 1; k+1 < n; k++ {
			g.Faces = append(g.Faces, [3]int{idx[0], idx[k], idx[k+1]})
		}
	}
	return nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
