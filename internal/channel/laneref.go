package channel

import (
	"fmt"

	"tickforge/internal/errkind"
	"tickforge/internal/expr"
	"tickforge/internal/instr"
	"tickforge/internal/lane"
	"tickforge/internal/timing"
	"tickforge/internal/units"
)

// LaneRef reads one of the shot's time lanes by name, falling back to
// Default when the lane is absent from the sequence entirely (as opposed to
// present-but-unused, which is a compile error enforced elsewhere).
// Reading a lane this way marks it consumed, satisfying the rule that every
// lane declared on a sequence must be read by at least one channel.
type LaneRef struct {
	Name    string
	Default Output
}

func (l *LaneRef) Evaluate(step timing.TimeStep, prepend, appendN uint64, ctx ShotContext) (instr.Instruction, units.Unit, error) {
	spec, ok := ctx.Lane(l.Name)
	if !ok {
		if l.Default == nil {
			return nil, units.Unit{}, fmt.Errorf("lane %q: not found and no default", l.Name)
		}
		return l.Default.Evaluate(step, prepend, appendN, ctx)
	}
	ctx.MarkConsumed(l.Name)

	bounds := ctx.StepBounds()
	var body instr.Instruction
	var unit units.Unit
	var err error
	switch spec.Kind {
	case DigitalLane:
		body, err = lane.CompileDigital(spec.Cells, bounds, step, ctx.Variables())
		unit = units.DimensionlessUnit()
	case AnalogLane:
		body, err = lane.CompileAnalog(spec.Cells, bounds, step, ctx.Variables(), spec.OutputUnit)
		unit = spec.OutputUnit
	default:
		return nil, units.Unit{}, fmt.Errorf("lane %q: unknown lane kind", l.Name)
	}
	if err != nil {
		return nil, units.Unit{}, fmt.Errorf("lane %q: %w", l.Name, err)
	}

	return boundaryExtend(body, prepend, appendN), unit, nil
}

// boundaryExtend pads x with prepend copies of its first sample and appendN
// copies of its last sample, rather than re-evaluating any expression over
// an enlarged time window — the prepended/appended region holds before time
// zero and after the shot ends, where no lane content exists to evaluate.
func boundaryExtend(x instr.Instruction, prepend, appendN uint64) instr.Instruction {
	if prepend == 0 && appendN == 0 {
		return x
	}
	if x.Len() == 0 {
		errkind.Invariant("boundary extend: cannot pad a zero-length lane")
	}
	parts := make([]instr.Instruction, 0, 3)
	if prepend > 0 {
		parts = append(parts, instr.Repeat(x.Slice(0, 1), prepend))
	}
	parts = append(parts, x)
	if appendN > 0 {
		parts = append(parts, instr.Repeat(x.Slice(x.Len()-1, x.Len()), appendN))
	}
	return instr.Concat(parts...)
}

func (l *LaneRef) MaxAdvanceDelay(step timing.TimeStep, env expr.Env) (uint64, uint64, error) {
	if l.Default != nil {
		return l.Default.MaxAdvanceDelay(step, env)
	}
	return 0, 0, nil
}
