package system

// Clock counts completed ticks. Game loop only.
type Clock struct {
	tick uint64
}

func (c *Clock) Now() uint64 { return c.tick }

func (c *Clock) Advance() { c.tick++ }
