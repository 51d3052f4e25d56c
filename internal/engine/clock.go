package engine

// Clock is the frame-time snapshot exposed to scripts: variable delta,
// fixed delta, total elapsed time, frame count, a smoothed FPS measure and a
// mutable time-scale multiplier.
type Clock struct {
	delta      float64
	fixedDelta float64
	elapsed    float64
	frame      int64
	fps        float64
	timeScale  float64
}

func NewClock(fixedDelta float64) *Clock {
	if fixedDelta <= 0 {
		fixedDelta = 1.0 / 50.0
	}
	return &Clock{fixedDelta: fixedDelta, timeScale: 1}
}

// tick advances the clock by one frame. rawDelta is unscaled wall time,
// scaledDelta is what the simulation observed.
func (c *Clock) tick(rawDelta, scaledDelta float64) {
	c.delta = scaledDelta
	c.elapsed += scaledDelta
	c.frame++
	if rawDelta > 0 {
		instant := 1.0 / rawDelta
		if c.fps == 0 {
			c.fps = instant
		} else {
			c.fps = c.fps*0.9 + instant*0.1
		}
	}
}

func (c *Clock) Delta() float64      { return c.delta }
func (c *Clock) FixedDelta() float64 { return c.fixedDelta }
func (c *Clock) Elapsed() float64    { return c.elapsed }
func (c *Clock) Frame() int64        { return c.frame }
func (c *Clock) FPS() float64        { return c.fps }
func (c *Clock) TimeScale() float64  { return c.timeScale }

func (c *Clock) SetTimeScale(scale float64) {
	if scale < 0 {
		scale = 0
	}
	c.timeScale = scale
}
