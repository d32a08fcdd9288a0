// Package channel implements the combinators a device uses to describe how
// one of its output channels is produced from a shot's lanes and constants:
// a small recursive tree of Output nodes, each evaluating to a dense
// Instruction plus the unit it is expressed in.
package channel

import (
	"tickforge/internal/expr"
	"tickforge/internal/instr"
	"tickforge/internal/lane"
	"tickforge/internal/timing"
	"tickforge/internal/units"
)

// LaneKind distinguishes a digital lane's bool cells from an analog lane's
// expression/ramp cells.
type LaneKind int

const (
	DigitalLane LaneKind = iota
	AnalogLane
)

// LaneSpec is the raw, uncompiled content of one time lane as the shot
// context exposes it. Output nodes compile it on demand via internal/lane.
type LaneSpec struct {
	Kind       LaneKind
	Cells      []lane.Cell
	OutputUnit units.Unit // only meaningful for AnalogLane
}

// ShotContext is the narrow slice of shot-compilation state an Output needs:
// resolved variables, the step schedule, and lane lookup with consumption
// tracking. internal/shotcompiler supplies the concrete implementation; this
// package only depends on the interface, so it never imports shotcompiler.
type ShotContext interface {
	Variables() expr.Env
	StepBounds() []timing.Time
	ShotDuration() timing.Time
	Lane(name string) (LaneSpec, bool)
	MarkConsumed(name string)
}

// Output is one node of a channel's output description. Evaluate produces
// exactly prepend + number_ticks(0, shot_duration, step) + append samples.
type Output interface {
	Evaluate(step timing.TimeStep, prepend, append uint64, ctx ShotContext) (instr.Instruction, units.Unit, error)
	// MaxAdvanceDelay reports the largest prepend/append budget this output
	// (and its children) will ever need to borrow via Advance/Delay, so the
	// caller can size prepend/append before the first Evaluate call.
	MaxAdvanceDelay(step timing.TimeStep, env expr.Env) (advance, delay uint64, err error)
}

func fullLength(step timing.TimeStep, prepend, append uint64, ctx ShotContext) uint64 {
	return prepend + uint64(timing.NumberTicks(timing.Zero, ctx.ShotDuration(), step)) + append
}
