package timeline

// Clock owns one timeline's continuous time, advance rate, scrub rate and
// pause flag.
//
// T moves forward while playing and may move backward while scrubbing.
// It only changes through Advance or an explicit seek (Seek, Apply).
//
// Clock is not safe for concurrent use; the engine mutates clocks from its
// single frame goroutine and everyone else goes through commands.
type Clock struct {
	T         float64
	TickRate  float64
	ScrubRate float64
	Paused    bool

	// CachedPaused holds the pause state from before a scrub gesture so
	// EndScrub can restore it.
	CachedPaused bool
}

// NewClock creates a clock at t=0 playing forward at tickRate.
func NewClock(tickRate float64) *Clock {
	return &Clock{TickRate: tickRate}
}

// Advance applies one frame of wall-clock time:
//
//	t' = max(0, t + d*scrub_rate + (paused ? 0 : d*tick_rate))
//
// T is written only if the result differs. Returns true if T changed.
func (c *Clock) Advance(wallDelta float64) bool {
	next := c.T + wallDelta*c.ScrubRate
	if !c.Paused {
		next += wallDelta * c.TickRate
	}
	if next < 0 {
		next = 0
	}
	if next == c.T {
		return false
	}
	c.T = next
	return true
}

// Seek moves the clock to t, clamped to zero.
func (c *Clock) Seek(t float64) {
	if t < 0 {
		t = 0
	}
	c.T = t
}

// BeginScrub starts an operator scrub gesture: the current pause state is
// cached, the clock pauses and time follows the scrub rate alone.
func (c *Clock) BeginScrub(rate float64) {
	c.CachedPaused = c.Paused
	c.Paused = true
	c.ScrubRate = rate
}

// EndScrub stops scrubbing and restores the pause state cached by BeginScrub.
func (c *Clock) EndScrub() {
	c.ScrubRate = 0
	c.Paused = c.CachedPaused
}

// Apply executes a seek/pause/scrub command. Nil fields are left unchanged.
func (c *Clock) Apply(cmd ClockCommand) {
	if cmd.T != nil {
		c.Seek(*cmd.T)
	}
	if cmd.Paused != nil {
		c.Paused = *cmd.Paused
	}
	if cmd.ScrubRate != nil {
		c.ScrubRate = *cmd.ScrubRate
	}
}

// State returns the clock's current (t, paused) pair.
func (c *Clock) State() (t float64, paused bool) {
	return c.T, c.Paused
}

// ClockCommand is the payload of an external seek/pause/scrub command.
type ClockCommand struct {
	T         *float64
	Paused    *bool
	ScrubRate *float64
}
