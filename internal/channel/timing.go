package channel

import (
	"fmt"

	"tickforge/internal/expr"
	"tickforge/internal/instr"
	"tickforge/internal/timing"
	"tickforge/internal/units"
)

// Advance shifts Input earlier in time by the given expression, borrowing
// ticks from the prepend budget and returning them to the append budget. The
// expression is always interpreted in nanoseconds regardless of Input's
// output unit.
type Advance struct {
	Input   Output
	Advance string
}

func (a *Advance) Evaluate(step timing.TimeStep, prepend, append uint64, ctx ShotContext) (instr.Instruction, units.Unit, error) {
	ticks, err := evalTickShift(a.Advance, step, ctx.Variables())
	if err != nil {
		return nil, units.Unit{}, fmt.Errorf("advance: %w", err)
	}
	if ticks > prepend {
		return nil, units.Unit{}, fmt.Errorf("advance: cannot advance by %d ticks when only %d are available", ticks, prepend)
	}
	return a.Input.Evaluate(step, prepend-ticks, append+ticks, ctx)
}

func (a *Advance) MaxAdvanceDelay(step timing.TimeStep, env expr.Env) (uint64, uint64, error) {
	ticks, err := evalTickShift(a.Advance, step, env)
	if err != nil {
		return 0, 0, fmt.Errorf("advance: %w", err)
	}
	inAdvance, inDelay, err := a.Input.MaxAdvanceDelay(step, env)
	if err != nil {
		return 0, 0, err
	}
	return ticks + inAdvance, inDelay, nil
}

// Delay shifts Input later in time by the given expression, borrowing ticks
// from the append budget and returning them to the prepend budget.
type Delay struct {
	Input Output
	Delay string
}

func (d *Delay) Evaluate(step timing.TimeStep, prepend, append uint64, ctx ShotContext) (instr.Instruction, units.Unit, error) {
	ticks, err := evalTickShift(d.Delay, step, ctx.Variables())
	if err != nil {
		return nil, units.Unit{}, fmt.Errorf("delay: %w", err)
	}
	if ticks > append {
		return nil, units.Unit{}, fmt.Errorf("delay: cannot delay by %d ticks when only %d are available", ticks, append)
	}
	return d.Input.Evaluate(step, prepend+ticks, append-ticks, ctx)
}

func (d *Delay) MaxAdvanceDelay(step timing.TimeStep, env expr.Env) (uint64, uint64, error) {
	ticks, err := evalTickShift(d.Delay, step, env)
	if err != nil {
		return 0, 0, fmt.Errorf("delay: %w", err)
	}
	inAdvance, inDelay, err := d.Input.MaxAdvanceDelay(step, env)
	if err != nil {
		return 0, 0, err
	}
	return inAdvance, ticks + inDelay, nil
}

// evalTickShift evaluates src as a duration in nanoseconds and rounds it to
// the nearest whole number of step ticks, rejecting a negative shift.
func evalTickShift(src string, step timing.TimeStep, env expr.Env) (uint64, error) {
	e, err := expr.Parse(src)
	if err != nil {
		return 0, err
	}
	q, err := expr.Eval(e, env)
	if err != nil {
		return 0, err
	}
	ns, err := q.MagnitudeIn(units.MustLookup("ns"))
	if err != nil {
		return 0, err
	}
	stepNs := step.Seconds() * 1e9
	ticks := ns / stepNs
	rounded := int64(ticks + 0.5)
	if ticks < 0 {
		rounded = -int64(-ticks + 0.5)
	}
	if rounded < 0 {
		return 0, fmt.Errorf("cannot shift by a negative number of time steps (%d)", rounded)
	}
	return uint64(rounded), nil
}
