package event

// PlaneJoined is emitted once a controller's plane entity exists.
type PlaneJoined struct {
	PlayerID  uint64
	SessionID uint64
	Name      string
}

// PlaneLeft is emitted from the plane's removal hook.
type PlaneLeft struct {
	PlayerID uint64
	Name     string
	Fires    int
}

type PlaneFired struct {
	PlayerID uint64
	Name     string
	X, Y     float64
}
