package system

import (
	"testing"
	"time"
)

type recorder struct {
	name  string
	phase Phase
	log   *[]string
}

func (r recorder) Phase() Phase { return r.phase }

func (r recorder) Update(time.Duration) { *r.log = append(*r.log, r.name) }

func TestRunner_PhaseOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"cleanup", PhaseCleanup, &log})
	r.Register(recorder{"output", PhaseOutput, &log})
	r.Register(recorder{"input", PhaseInput, &log})
	r.Register(recorder{"think", PhasePostUpdate, &log})
	r.Register(recorder{"physics", PhaseUpdate, &log})
	r.Register(recorder{"assets", PhasePreUpdate, &log})
	r.Register(recorder{"events", PhasePreUpdate, &log})

	r.Tick(50 * time.Millisecond)

	want := []string{"input", "assets", "events", "physics", "think", "output", "cleanup"}
	if len(log) != len(want) {
		t.Fatalf("ran %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("ran %v, want %v", log, want)
		}
	}
}

func TestRunner_TickPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"input", PhaseInput, &log})
	r.Register(recorder{"physics", PhaseUpdate, &log})

	r.TickPhase(PhaseInput, 0)
	r.TickPhase(PhaseInput, 0)
	if len(log) != 2 || log[0] != "input" || log[1] != "input" {
		t.Errorf("TickPhase ran %v", log)
	}
}

func TestPhase_String(t *testing.T) {
	if PhaseCleanup.String() != "cleanup" || Phase(42).String() != "unknown" {
		t.Error("unexpected phase names")
	}
}
