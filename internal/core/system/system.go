package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain session queues
	PhasePreUpdate               // 1: last tick's events, finished asset loads
	PhaseUpdate                  // 2: physics step
	PhasePostUpdate              // 3: entity sync and think pass
	PhaseOutput                  // 4: relay to displays
	PhasePersist                 // 5: batch event flush
	PhaseCleanup                 // 6: deferred entity removals
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post-update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is one step of the tick.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
