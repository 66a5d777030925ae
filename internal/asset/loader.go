package asset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/planetilt/host/internal/render"
)

// ErrUnsupportedFormat is returned when no loader handles a path's extension.
var ErrUnsupportedFormat = errors.New("unsupported asset format")

// Kind selects one loader capability.
type Kind int

const (
	KindSceneGraph       Kind = iota // .js / .json
	KindMesh                         // .obj
	KindTexturedMesh                 // .obj + .mtl
	KindSceneDescription             // .dae
)

func (k Kind) String() string {
	switch k {
	case KindSceneGraph:
		return "SceneGraph"
	case KindMesh:
		return "Mesh"
	case KindTexturedMesh:
		return "TexturedMesh"
	case KindSceneDescription:
		return "SceneDescription"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Select picks the loader kind from the path extension. A material path only
// matters for .obj models.
func Select(p, mtlPath string) (Kind, error) {
	switch strings.ToLower(path.Ext(p)) {
	case ".js", ".json":
		return KindSceneGraph, nil
	case ".obj":
		if mtlPath != "" {
			return KindTexturedMesh, nil
		}
		return KindMesh, nil
	case ".dae":
		return KindSceneDescription, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, p)
}

// LoadError wraps any failure raised by a loader.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Result is what an untextured loader produces.
type Result struct {
	Source    render.GeometrySource
	Materials []render.Material
}

// Loader loads a geometry from a path.
type Loader interface {
	Load(ctx context.Context, path string) (Result, error)
}

// TexturedLoader loads a ready-to-render object with its materials applied.
type TexturedLoader interface {
	LoadTextured(ctx context.Context, path, mtlPath string) (*render.Group, error)
}

// Library bundles one loader per kind.
type Library struct {
	SceneGraph       Loader
	Mesh             Loader
	TexturedMesh     TexturedLoader
	SceneDescription Loader
}

// NewLibrary wires the built-in loaders over an asset root.
func NewLibrary(root fs.FS) *Library {
	return &Library{
		SceneGraph:       &JSONLoader{FS: root},
		Mesh:             &OBJLoader{FS: root},
		TexturedMesh:     &OBJMTLLoader{FS: root},
		SceneDescription: &ColladaLoader{FS: root},
	}
}

// For returns the untextured loader for k.
func (l *Library) For(k Kind) (Loader, error) {
	var ld Loader
	switch k {
	case KindSceneGraph:
		ld = l.SceneGraph
	case KindMesh:
		ld = l.Mesh
	case KindSceneDescription:
		ld = l.SceneDescription
	}
	if ld == nil {
		return nil, fmt.Errorf("%w: no loader for %s", ErrUnsupportedFormat, k)
	}
	return ld, nil
}

func readFile(ctx context.Context, fsys fs.FS, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fsys == nil {
		return nil, errors.New("no asset root")
	}
	return fs.ReadFile(fsys, strings.TrimPrefix(path.Clean(p), "/"))
}
