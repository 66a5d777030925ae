package asset

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/planetilt/host/internal/render"
)

// JSONLoader reads the JSON model format (format version 3): a flat vertex
// array, a bitmask-typed face stream and a material list.
type JSONLoader struct {
	FS fs.FS
}

type jsonModel struct {
	Vertices  []float64      `json:"vertices"`
	Faces     []int          `json:"faces"`
	Materials []jsonMaterial `json:"materials"`
}

type jsonMaterial struct {
	DbgName      string    `json:"DbgName"`
	ColorDiffuse []float64 `json:"colorDiffuse"`
	Shading      string    `json:"shading"`
}

const (
	faceQuad = 1 << iota
	faceMaterial
	faceUV
	faceVertexUV
	faceNormal
	faceVertexNormal
	faceColor
	faceVertexColor
)

func (l *JSONLoader) Load(ctx context.Context, p string) (Result, error) {
	raw, err := readFile(ctx, l.FS, p)
	if err != nil {
		return Result{}, &LoadError{Path: p, Err: err}
	}
	var m jsonModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return Result{}, &LoadError{Path: p, Err: err}
	}
	g, err := m.geometry()
	if err != nil {
		return Result{}, &LoadError{Path: p, Err: err}
	}
	g.Name = path.Base(p)

	mats := make([]render.Material, 0, len(m.Materials))
	for _, jm := range m.Materials {
		mat := render.Material{Name: jm.DbgName, Color: 0xffffff, Flat: jm.Shading != "phong"}
		if len(jm.ColorDiffuse) >= 3 {
			mat.Color = packColor(mgl64.Vec3{jm.ColorDiffuse[0], jm.ColorDiffuse[1], jm.ColorDiffuse[2]})
		}
		mats = append(mats, mat)
	}
	return Result{Source: g, Materials: mats}, nil
}

func (m *jsonModel) geometry() (*render.Geometry, error) {
	if len(m.Vertices)%3 != 0 {
		return nil, fmt.Errorf("vertex array length %d not a multiple of 3", len(m.Vertices))
	}
	g := &render.Geometry{Vertices: make([]mgl64.Vec3, 0, len(m.Vertices)/3)}
	for i := 0; i < len(m.Vertices); i += 3 {
		g.Vertices = append(g.Vertices, mgl64.Vec3{m.Vertices[i], m.Vertices[i+1], m.Vertices[i+2]})
	}

	f := m.Faces
	for off := 0; off < len(f); {
		typ := f[off]
		off++
		n := 3
		if typ&faceQuad != 0 {
			n = 4
		}
		if off+n > len(f) {
			return nil, fmt.Errorf("truncated face at offset %d", off)
		}
		idx := f[off : off+n]
		for _, v := range idx {
			if v < 0 || v >= len(g.Vertices) {
				return nil, fmt.Errorf("face vertex %d out of range", v)
			}
		}
		g.Faces = append(g.Faces, [3]int{idx[0], idx[1], idx[2]})
		if n == 4 {
			g.Faces = append(g.Faces, [3]int{idx[0], idx[2], idx[3]})
		}
		off += n
		off += skipFaceAttrs(typ, n)
	}
	if len(g.Faces) == 0 {
		return nil, fmt.Errorf("no faces")
	}
	return g, nil
}

// skipFaceAttrs counts the per-face attribute slots following the indices.
func skipFaceAttrs(typ, n int) int {
	skip := 0
	if typ&faceMaterial != 0 {
		skip++
	}
	if typ&faceUV != 0 {
		skip++
	}
	if typ&faceVertexUV != 0 {
		skip += n
	}
	if typ&faceNormal != 0 {
		skip++
	}
	if typ&faceVertexNormal != 0 {
		skip += n
	}
	if typ&faceColor != 0 {
		skip++
	}
	if typ&faceVertexColor != 0 {
		skip += n
	}
	return skip
}
