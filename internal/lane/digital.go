package lane

import (
	"fmt"

	"tickforge/internal/errkind"
	"tickforge/internal/expr"
	"tickforge/internal/instr"
	"tickforge/internal/timing"
)

// CompileDigital compiles a digital lane into a bool-dtype Instruction
// covering the whole shot. stepBounds must have len(cells)+1 entries: the
// cumulative step start times produced by timing.StepBounds, the last entry
// being the shot duration.
func CompileDigital(cells []Cell, stepBounds []timing.Time, step timing.TimeStep, env expr.Env) (instr.Instruction, error) {
	if len(stepBounds) != len(cells)+1 {
		errkind.Invariant("digital lane: %d cells but %d step bounds", len(cells), len(stepBounds))
	}

	blocks := Blocks(cells)
	parts := make([]instr.Instruction, 0, len(blocks))
	for _, b := range blocks {
		start := stepTime(stepBounds, b.Start)
		stop := stepTime(stepBounds, b.Stop)
		length := uint64(timing.NumberTicks(start, stop, step))

		switch {
		case b.Value.IsBool:
			parts = append(parts, instr.RepeatValue(instr.BoolScalar(b.Value.Bool), length))
		case b.Value.IsRamp:
			return nil, fmt.Errorf("digital lane: ramp cells are not valid in a digital lane")
		default:
			e, err := parseCell(b.Value.Source)
			if err != nil {
				return nil, err
			}
			win := expr.NewWindow(start, stop, step)
			out, err := expr.EvaluateDigital(e, env, win)
			if err != nil {
				return nil, fmt.Errorf("digital lane block [%d,%d): %w", b.Start, b.Stop, err)
			}
			if out.Len() != length {
				return nil, fmt.Errorf("digital lane block [%d,%d): expression produced %d samples, want %d", b.Start, b.Stop, out.Len(), length)
			}
			parts = append(parts, out)
		}
	}
	if len(parts) == 0 {
		return instr.Empty(instr.BoolDtype), nil
	}
	return instr.Concat(parts...), nil
}
