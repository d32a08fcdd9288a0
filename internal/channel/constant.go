package channel

import (
	"fmt"

	"tickforge/internal/expr"
	"tickforge/internal/instr"
	"tickforge/internal/timing"
	"tickforge/internal/units"
)

// Constant holds an output at a value constant over shot time (though it
// may still vary from shot to shot, since its expression is reevaluated
// against each shot's variables).
type Constant struct {
	Value   string // expression source
	Digital bool   // bool-dtype output if true, float64 otherwise
}

func (c *Constant) Evaluate(step timing.TimeStep, prepend, append uint64, ctx ShotContext) (instr.Instruction, units.Unit, error) {
	length := fullLength(step, prepend, append, ctx)
	e, err := expr.Parse(c.Value)
	if err != nil {
		return nil, units.Unit{}, fmt.Errorf("constant %q: %w", c.Value, err)
	}
	q, err := expr.Eval(e, ctx.Variables())
	if err != nil {
		return nil, units.Unit{}, fmt.Errorf("constant %q: %w", c.Value, err)
	}
	if c.Digital {
		return instr.RepeatValue(instr.BoolScalar(q.Magnitude != 0), length), units.DimensionlessUnit(), nil
	}
	return instr.RepeatValue(instr.Float64Scalar(q.Magnitude), length), q.Unit, nil
}

func (c *Constant) MaxAdvanceDelay(step timing.TimeStep, env expr.Env) (uint64, uint64, error) {
	return 0, 0, nil
}
