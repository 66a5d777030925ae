// modelconv scans a model directory and writes a models.yaml manifest.
// Each supported model becomes one entry named after its file; an .obj with
// a sibling .mtl of the same name gets it as its material.
//
// Usage: modelconv <assets_root> <output.yaml>
package main

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/planetilt/host/internal/asset"
	"github.com/planetilt/host/internal/data"
	"gopkg.in/yaml.v3"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: modelconv <assets_root> <output.yaml>")
		os.Exit(1)
	}

	entries, err := scan(os.DirFS(os.Args[1]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan: %v\n", err)
		os.Exit(1)
	}

	out, err := render(entries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(os.Args[2], out, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %d models\n", len(entries))
}

func scan(root fs.FS) ([]data.ModelEntry, error) {
	var entries []data.ModelEntry
	seen := make(map[string]string)
	err := fs.WalkDir(root, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.EqualFold(path.Ext(p), ".mtl") {
			return nil
		}
		if _, err := asset.Select(p, ""); err != nil {
			return nil
		}
		name := strings.TrimSuffix(path.Base(p), path.Ext(p))
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("model name %q used by %s and %s", name, prev, p)
		}
		seen[name] = p

		e := data.ModelEntry{Name: name, Path: p, Box: [3]float64{1, 1, 1}, Mass: 1}
		if strings.EqualFold(path.Ext(p), ".obj") {
			mtl := strings.TrimSuffix(p, path.Ext(p)) + ".mtl"
			if _, err := fs.Stat(root, mtl); err == nil {
				e.Material = mtl
			}
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func render(entries []data.ModelEntry) ([]byte, error) {
	doc := struct {
		Models []data.ModelEntry `yaml:"models"`
	}{Models: entries}
	body, err := yaml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return append([]byte("# Generated by modelconv\n"), body...), nil
}
