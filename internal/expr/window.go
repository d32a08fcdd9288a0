package expr

import "tickforge/internal/timing"

// Window is the tick window a time-dependent evaluation runs over: the
// reserved identifier "t" evaluates to a Ramp spanning exactly this window.
type Window struct {
	// Start/Stop are the ramp endpoints of t itself, in seconds, relative to
	// the window's own origin: start_tick*Δ - t1 and stop_tick*Δ - t1.
	Start, Stop float64
	Length      uint64
}

// NewWindow derives a Window from a block's absolute time span [t1, t2) and
// the sequencer's tick quantum.
func NewWindow(t1, t2 timing.Time, step timing.TimeStep) Window {
	startTick := timing.StartTick(t1, step)
	stopTick := timing.StopTick(t2, step)
	length := timing.NumberTicks(t1, t2, step)
	dt := step.Seconds()
	return Window{
		Start:  float64(startTick)*dt - t1.Seconds(),
		Stop:   float64(stopTick)*dt - t1.Seconds(),
		Length: uint64(length),
	}
}
