package lane

import (
	"fmt"

	"tickforge/internal/expr"
	"tickforge/internal/instr"
	"tickforge/internal/timing"
	"tickforge/internal/units"
)

// CompileAnalog compiles an analog lane into a float64-dtype Instruction
// covering the whole shot, expressed in outputUnit. stepBounds must have
// len(cells)+1 entries, as for CompileDigital.
func CompileAnalog(cells []Cell, stepBounds []timing.Time, step timing.TimeStep, env expr.Env, outputUnit units.Unit) (instr.Instruction, error) {
	blocks := Blocks(cells)
	parts := make([]instr.Instruction, 0, len(blocks))
	for i, b := range blocks {
		start := stepTime(stepBounds, b.Start)
		stop := stepTime(stepBounds, b.Stop)
		length := uint64(timing.NumberTicks(start, stop, step))

		var out instr.Instruction
		var err error
		if b.Value.IsRamp {
			out, err = compileRampCell(blocks, i, stepBounds, env, outputUnit, length)
		} else if b.Value.IsBool {
			return nil, fmt.Errorf("analog lane block [%d,%d): bool cells are not valid in an analog lane", b.Start, b.Stop)
		} else {
			out, err = compileExpressionCell(b.Value.Source, start, stop, step, env, outputUnit, length)
		}
		if err != nil {
			return nil, fmt.Errorf("analog lane block [%d,%d): %w", b.Start, b.Stop, err)
		}
		if out.Len() != length {
			return nil, fmt.Errorf("analog lane block [%d,%d): produced %d samples, want %d", b.Start, b.Stop, out.Len(), length)
		}
		parts = append(parts, out)
	}
	if len(parts) == 0 {
		return instr.Empty(instr.Float64Dtype), nil
	}
	return instr.Concat(parts...), nil
}

func compileExpressionCell(src string, start, stop timing.Time, step timing.TimeStep, env expr.Env, outputUnit units.Unit, length uint64) (instr.Instruction, error) {
	e, err := parseCell(src)
	if err != nil {
		return nil, err
	}
	if !expr.IsTimeDependent(e) {
		q, err := expr.Eval(e, env)
		if err != nil {
			return nil, err
		}
		mag, err := q.MagnitudeIn(outputUnit)
		if err != nil {
			return nil, err
		}
		return instr.RepeatValue(instr.Float64Scalar(mag), length), nil
	}
	win := expr.NewWindow(start, stop, step)
	out, unit, err := expr.EvaluateAnalog(e, env, win)
	if err != nil {
		return nil, err
	}
	return convertInstrUnit(out, unit, outputUnit)
}

// compileRampCell interpolates between the trailing value of the preceding
// block and the leading value of the following block: the preceding
// expression evaluated at t = its own block's duration, the following one
// evaluated at t = 0.
func compileRampCell(blocks []Block, i int, stepBounds []timing.Time, env expr.Env, outputUnit units.Unit, length uint64) (instr.Instruction, error) {
	if i == 0 || i == len(blocks)-1 {
		return nil, fmt.Errorf("ramp cell needs both a preceding and a following cell")
	}
	prev, next := blocks[i-1], blocks[i+1]
	if prev.Value.IsBool || prev.Value.IsRamp || next.Value.IsBool || next.Value.IsRamp {
		return nil, fmt.Errorf("ramp cell must be bounded by expression cells")
	}

	prevDuration := stepTime(stepBounds, prev.Stop).Sub(stepTime(stepBounds, prev.Start)).Seconds()
	start, err := evalScalarAtTime(prev.Value.Source, prevDuration, env, outputUnit)
	if err != nil {
		return nil, fmt.Errorf("evaluating ramp start: %w", err)
	}
	stop, err := evalScalarAtTime(next.Value.Source, 0, env, outputUnit)
	if err != nil {
		return nil, fmt.Errorf("evaluating ramp stop: %w", err)
	}
	return instr.NewRamp(instr.KindFloat64, start, stop, length), nil
}

// evalScalarAtTime evaluates src with t bound to the single instant tSeconds
// rather than a window, by reusing the analog evaluator over a
// degenerate length-1 window (Ramp sampling with length<=1 returns its
// start endpoint, so binding Start==Stop==tSeconds yields exactly t==tSeconds).
func evalScalarAtTime(src string, tSeconds float64, env expr.Env, outputUnit units.Unit) (float64, error) {
	e, err := parseCell(src)
	if err != nil {
		return 0, err
	}
	win := expr.Window{Start: tSeconds, Stop: tSeconds, Length: 1}
	out, unit, err := expr.EvaluateAnalog(e, env, win)
	if err != nil {
		return 0, err
	}
	mag := out.ToPattern().At(0)[""].AsFloat64()
	q := units.Quantity{Magnitude: mag, Unit: unit}
	return q.MagnitudeIn(outputUnit)
}

func convertInstrUnit(x instr.Instruction, from, to units.Unit) (instr.Instruction, error) {
	if from == to {
		return x, nil
	}
	if !units.Compatible(from, to) {
		return nil, fmt.Errorf("cannot express %s quantity in %s", from.Symbol, to.Symbol)
	}
	var convErr error
	out := x.Apply(func(in []instr.Scalar) []instr.Scalar {
		out := make([]instr.Scalar, len(in))
		for i, s := range in {
			mag, err := (units.Quantity{Magnitude: s.AsFloat64(), Unit: from}).MagnitudeIn(to)
			if err != nil && convErr == nil {
				convErr = err
			}
			out[i] = instr.Float64Scalar(mag)
		}
		return out
	}, instr.KindFloat64)
	if convErr != nil {
		return nil, convErr
	}
	return out, nil
}
