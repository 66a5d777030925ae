package main

import (
	"testing"
	"testing/fstest"

	"github.com/planetilt/host/internal/data"
)

func TestScan(t *testing.T) {
	root := fstest.MapFS{
		"models/plane.obj":   {Data: []byte("v 0 0 0\n")},
		"models/plane.mtl":   {Data: []byte("newmtl hull\n")},
		"models/tower.dae":   {Data: []byte("<COLLADA/>")},
		"models/notes.txt":   {Data: []byte("skip me")},
		"scenes/island.json": {Data: []byte("{}")},
	}
	entries, err := scan(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %+v, want 3", entries)
	}
	if entries[1].Name != "plane" || entries[1].Material != "models/plane.mtl" {
		t.Errorf("plane entry = %+v", entries[1])
	}
	if entries[2].Name != "tower" || entries[2].Material != "" {
		t.Errorf("tower entry = %+v", entries[2])
	}

	out, err := render(entries)
	if err != nil {
		t.Fatal(err)
	}
	table, err := data.ParseModelTable(out)
	if err != nil {
		t.Fatalf("generated manifest does not parse: %v", err)
	}
	if table.Count() != 3 || table.Get("island") == nil {
		t.Errorf("table count = %d", table.Count())
	}
}

func TestScan_DuplicateName(t *testing.T) {
	root := fstest.MapFS{
		"a/plane.obj": {Data: []byte("v 0 0 0\n")},
		"b/plane.dae": {Data: []byte("<COLLADA/>")},
	}
	if _, err := scan(root); err == nil {
		t.Error("want error for duplicate model name")
	}
}
