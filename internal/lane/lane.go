// Package lane compiles a single timing lane — one row of a sequence's time
// lanes table — into a dense Instruction covering the whole shot.
package lane

import (
	"fmt"

	"tickforge/internal/errkind"
	"tickforge/internal/expr"
	"tickforge/internal/timing"
)

// Cell is one entry of a lane: either a constant bool (digital lanes only),
// an Expression, or a Ramp marker (analog lanes only, meaning "interpolate
// between the neighboring cells").
type Cell struct {
	IsBool bool
	Bool   bool
	IsRamp bool
	Source string // expression source text, empty for IsBool/IsRamp cells
}

// BoolCell builds a constant digital cell.
func BoolCell(b bool) Cell { return Cell{IsBool: true, Bool: b} }

// ExprCell builds an expression cell from source text.
func ExprCell(src string) Cell { return Cell{Source: src} }

// RampCell builds an analog ramp-marker cell.
func RampCell() Cell { return Cell{IsRamp: true} }

// Block groups a run of adjacent equal cells into [Start, Stop) step indices.
type Block struct {
	Start, Stop int
	Value       Cell
}

// Blocks groups adjacent equal cells of a lane into blocks, mirroring how
// the time-lanes editor stores a lane as merged cells rather than one entry
// per step.
func Blocks(cells []Cell) []Block {
	if len(cells) == 0 {
		return nil
	}
	blocks := make([]Block, 0, len(cells))
	start := 0
	for i := 1; i <= len(cells); i++ {
		if i < len(cells) && cells[i] == cells[start] {
			continue
		}
		blocks = append(blocks, Block{Start: start, Stop: i, Value: cells[start]})
		start = i
	}
	return blocks
}

// stepTime returns stepBounds[i] guarded against an out-of-range index —
// stepBounds must have one more entry than the lane has steps.
func stepTime(stepBounds []timing.Time, i int) timing.Time {
	if i < 0 || i >= len(stepBounds) {
		errkind.Invariant("lane: step index %d out of range for %d bounds", i, len(stepBounds))
	}
	return stepBounds[i]
}

func parseCell(src string) (expr.Expr, error) {
	e, err := expr.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing cell %q: %w", src, err)
	}
	return e, nil
}
