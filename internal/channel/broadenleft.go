package channel

import (
	"fmt"

	"tickforge/internal/expr"
	"tickforge/internal/instr"
	"tickforge/internal/timing"
	"tickforge/internal/units"
)

// BroadenLeft makes Input go high earlier, compensating for hardware with a
// finite rise time: output y(t) is high whenever any of Input's samples in
// [t, t+Width] is high. Only valid for bool-dtype input.
type BroadenLeft struct {
	Input Output
	Width string // expression source, a time duration
}

func (b *BroadenLeft) Evaluate(step timing.TimeStep, prepend, append uint64, ctx ShotContext) (instr.Instruction, units.Unit, error) {
	in, unit, err := b.Input.Evaluate(step, prepend, append, ctx)
	if err != nil {
		return nil, units.Unit{}, err
	}
	if !in.Dtype().Equal(instr.BoolDtype) {
		return nil, units.Unit{}, fmt.Errorf("broaden left: input is not a digital instruction")
	}
	e, err := expr.Parse(b.Width)
	if err != nil {
		return nil, units.Unit{}, fmt.Errorf("broaden left: %w", err)
	}
	q, err := expr.Eval(e, ctx.Variables())
	if err != nil {
		return nil, units.Unit{}, fmt.Errorf("broaden left: %w", err)
	}
	seconds, err := q.MagnitudeIn(units.Seconds())
	if err != nil {
		return nil, units.Unit{}, fmt.Errorf("broaden left: width is not a time quantity: %w", err)
	}
	if seconds < 0 {
		return nil, units.Unit{}, fmt.Errorf("broaden left: width %g s is negative", seconds)
	}
	ticks := uint64(seconds/step.Seconds() + 0.5)

	broadened, _ := broadenLeft(in, ticks)
	return broadened, unit, nil
}

func (b *BroadenLeft) MaxAdvanceDelay(step timing.TimeStep, env expr.Env) (uint64, uint64, error) {
	return b.Input.MaxAdvanceDelay(step, env)
}

// broadenLeft dispatches on x's concrete shape, mirroring how each algebra
// node broadens without ever flattening the whole tree to samples: only
// Pattern leaves pay that cost. It returns the broadened instruction and the
// bleed — how many samples before x's start must be forced high because a
// high value within width of x's front edge would otherwise broaden past
// x's own boundary.
func broadenLeft(x instr.Instruction, width uint64) (instr.Instruction, int64) {
	switch v := x.(type) {
	case *instr.Pattern:
		return broadenPattern(v, width)
	case *instr.Concatenated:
		return broadenConcatenated(v, width)
	case *instr.Repeated:
		return broadenRepeated(v, width)
	default:
		return broadenPattern(x.ToPattern(), width)
	}
}

func broadenPattern(p *instr.Pattern, width uint64) (instr.Instruction, int64) {
	n := p.Len()
	vals := make([]bool, n)
	for i := uint64(0); i < n; i++ {
		vals[i] = p.At(i)[""].B
	}
	result := make([]bool, n)
	trueCount := 0
	for i := int64(n) - 1; i >= 0; i-- {
		if vals[i] {
			trueCount++
		}
		out := i + int64(width) + 1
		if out < int64(n) && vals[out] {
			trueCount--
		}
		result[i] = trueCount > 0
	}
	firstHigh := int64(-1)
	for i, v := range vals {
		if v {
			firstHigh = int64(i)
			break
		}
	}
	var bleed int64
	if firstHigh >= 0 {
		if excess := int64(width) - firstHigh; excess > 0 {
			bleed = excess
		}
	}
	return instr.BoolPattern(result), bleed
}

func trueBlock(n int64) instr.Instruction {
	if n <= 0 {
		return instr.Empty(instr.BoolDtype)
	}
	return instr.RepeatValue(instr.BoolScalar(true), uint64(n))
}

func broadenConcatenated(c *instr.Concatenated, width uint64) (instr.Instruction, int64) {
	children := c.Children()
	parts := make([]instr.Instruction, 0, 2*len(children))
	bleed := int64(0)
	for i := len(children) - 1; i >= 0; i-- {
		expanded, newBleed := broadenLeft(children[i], width)
		expandedLen := int64(expanded.Len())
		overwrittenLen := bleed
		if overwrittenLen > expandedLen {
			overwrittenLen = expandedLen
		}
		if overwrittenLen < 0 {
			overwrittenLen = 0
		}
		overwritten := trueBlock(overwrittenLen)
		kept := expanded.Slice(0, uint64(expandedLen-overwrittenLen))
		parts = append(parts, overwritten, kept)
		bleed -= expandedLen
		if newBleed > bleed {
			bleed = newBleed
		}
	}
	// parts were appended tail-first and, within each iteration,
	// overwritten-before-kept; reverse to restore left-to-right order.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	nonEmpty := make([]instr.Instruction, 0, len(parts))
	for _, p := range parts {
		if p.Len() > 0 {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return instr.Empty(instr.BoolDtype), bleed
	}
	return instr.Concat(nonEmpty...), bleed
}

func broadenRepeated(r *instr.Repeated, width uint64) (instr.Instruction, int64) {
	expanded, bleed := broadenLeft(r.Child(), width)
	count := r.Count()
	expandedLen := int64(expanded.Len())

	if bleed == 0 {
		return instr.Repeat(expanded, count), bleed
	}
	if bleed >= expandedLen {
		block := trueBlock(expandedLen)
		return instr.Concat(instr.Repeat(block, count-1), expanded), bleed
	}

	overwrittenLen := bleed
	overwritten := trueBlock(overwrittenLen)
	kept := expanded.Slice(0, uint64(expandedLen-overwrittenLen))
	leftInstr := instr.Concat(kept, overwritten)
	if instr.SampleEqual(leftInstr, expanded) {
		return instr.Repeat(expanded, count), bleed
	}
	return instr.Concat(instr.Repeat(leftInstr, count-1), expanded), bleed
}
