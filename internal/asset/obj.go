package asset

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/planetilt/host/internal/render"
)

// OBJLoader reads Wavefront OBJ files. The result is a container with one
// child mesh per object or group statement.
type OBJLoader struct {
	FS fs.FS
}

func (l *OBJLoader) Load(ctx context.Context, p string) (Result, error) {
	raw, err := readFile(ctx, l.FS, p)
	if err != nil {
		return Result{}, &LoadError{Path: p, Err: err}
	}
	group, err := parseOBJ(raw, nil)
	if err != nil {
		return Result{}, &LoadError{Path: p, Err: err}
	}
	group.Name = path.Base(p)
	return Result{Source: group}, nil
}

// OBJMTLLoader reads an OBJ plus its MTL library and binds the materials.
type OBJMTLLoader struct {
	FS fs.FS
}

func (l *OBJMTLLoader) LoadTextured(ctx context.Context, p, mtlPath string) (*render.Group, error) {
	mtlRaw, err := readFile(ctx, l.FS, mtlPath)
	if err != nil {
		return nil, &LoadError{Path: mtlPath, Err: err}
	}
	mats, err := parseMTL(mtlRaw)
	if err != nil {
		return nil, &LoadError{Path: mtlPath, Err: err}
	}
	raw, err := readFile(ctx, l.FS, p)
	if err != nil {
		return nil, &LoadError{Path: p, Err: err}
	}
	group, err := parseOBJ(raw, mats)
	if err != nil {
		return nil, &LoadError{Path: p, Err: err}
	}
	group.Name = path.Base(p)
	return group, nil
}

type objBuilder struct {
	group    *render.Group
	cur      *render.Mesh
	vertices []mgl64.Vec3
	remap    map[int]int
	mats     map[string]render.Material
	material render.Material
}

func (b *objBuilder) begin(name string) {
	if b.cur != nil && len(b.cur.Geometry.Faces) == 0 {
		b.cur.Geometry.Name = name
		b.cur.Material = b.material
		return
	}
	b.cur = render.NewMesh(&render.Geometry{Name: name}, b.material)
	b.group.Children = append(b.group.Children, b.cur)
	b.remap = make(map[int]int)
}

// vertex maps a global OBJ vertex index into the current child geometry.
func (b *objBuilder) vertex(global int) int {
	if local, ok := b.remap[global]; ok {
		return local
	}
	g := b.cur.Geometry
	g.Vertices = append(g.Vertices, b.vertices[global])
	local := len(g.Vertices) - 1
	b.remap[global] = local
	return local
}

func parseOBJ(raw []byte, mats map[string]render.Material) (*render.Group, error) {
	b := &objBuilder{
		group:    render.NewGroup(""),
		mats:     mats,
		material: render.DefaultMaterial(),
	}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			v, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			b.vertices = append(b.vertices, v)
		case "o", "g":
			name := ""
			if len(fields) > 1 {
				name = strings.Join(fields[1:], " ")
			}
			b.begin(name)
		case "usemtl":
			if len(fields) > 1 {
				if m, ok := b.mats[fields[1]]; ok {
					b.material = m
				}
			}
			if b.cur != nil {
				if len(b.cur.Geometry.Faces) == 0 {
					b.cur.Material = b.material
				} else {
					b.begin(b.cur.Geometry.Name)
				}
			}
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs at least 3 vertices", line)
			}
			if b.cur == nil {
				b.begin("")
			}
			idx := make([]int, 0, len(fields)-1)
			for _, f := range fields[1:] {
				ref := strings.SplitN(f, "/", 2)[0]
				n, err := strconv.Atoi(ref)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad face index %q", line, f)
				}
				if n < 0 {
					n = len(b.vertices) + n
				} else {
					n--
				}
				if n < 0 || n >= len(b.vertices) {
					return nil, fmt.Errorf("line %d: face index %q out of range", line, f)
				}
				idx = append(idx, b.vertex(n))
			}
			for i := 1; i+1 < len(idx); i++ {
				b.cur.Geometry.Faces = append(b.cur.Geometry.Faces, [3]int{idx[0], idx[i], idx[i+1]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	// begin reuses an empty child, so only the last one can lack faces
	if n := len(b.group.Children); n > 0 && len(b.group.Children[n-1].Geometry.Faces) == 0 {
		b.group.Children = b.group.Children[:n-1]
	}
	if len(b.group.Children) == 0 {
		return nil, fmt.Errorf("no faces")
	}
	return b.group, nil
}

func parseMTL(raw []byte) (map[string]render.Material, error) {
	mats := make(map[string]render.Material)
	var cur *render.Material
	flush := func() {
		if cur != nil {
			mats[cur.Name] = *cur
		}
	}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "newmtl":
			flush()
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: newmtl without name", line)
			}
			cur = &render.Material{Name: fields[1], Color: 0xffffff}
		case "Kd":
			if cur == nil {
				return nil, fmt.Errorf("line %d: Kd before newmtl", line)
			}
			v, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			cur.Color = packColor(v)
		case "illum":
			if cur != nil && len(fields) > 1 {
				cur.Flat = fields[1] == "0" || fields[1] == "1"
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return mats, nil
}

func parseVec3(fields []string) (mgl64.Vec3, error) {
	var v mgl64.Vec3
	if len(fields) < 3 {
		return v, fmt.Errorf("want 3 components, got %d", len(fields))
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return v, fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = f
	}
	return v, nil
}

// packColor converts an rgb triple in [0,1] into 0xRRGGBB.
func packColor(c mgl64.Vec3) uint32 {
	var out uint32
	for i := 0; i < 3; i++ {
		ch := math.Round(mgl64.Clamp(c[i], 0, 1) * 255)
		out = out<<8 | uint32(ch)
	}
	return out
}
