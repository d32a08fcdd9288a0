package channel

import (
	"fmt"
	"sort"

	"tickforge/internal/expr"
	"tickforge/internal/instr"
	"tickforge/internal/timing"
	"tickforge/internal/units"
)

// Point is one (input, output) sample of a device's calibration curve, e.g.
// mapping a requested optical power to the drive voltage that produces it.
type Point struct {
	X, Y float64
}

// CalibratedMapping applies a device's calibration curve to Input's samples:
// a piecewise-linear interpolation through Points, clamped to the curve's
// endpoints outside its domain (no calibration data exists to extrapolate
// from, so the nearest known point stands in).
type CalibratedMapping struct {
	Input      Output
	Points     []Point
	OutputUnit units.Unit
}

func (m *CalibratedMapping) Evaluate(step timing.TimeStep, prepend, appendN uint64, ctx ShotContext) (instr.Instruction, units.Unit, error) {
	if len(m.Points) < 2 {
		return nil, units.Unit{}, fmt.Errorf("calibrated mapping: need at least 2 points, got %d", len(m.Points))
	}
	in, _, err := m.Input.Evaluate(step, prepend, appendN, ctx)
	if err != nil {
		return nil, units.Unit{}, err
	}

	points := make([]Point, len(m.Points))
	copy(points, m.Points)
	sort.Slice(points, func(i, j int) bool { return points[i].X < points[j].X })

	out := in.Apply(func(vals []instr.Scalar) []instr.Scalar {
		res := make([]instr.Scalar, len(vals))
		for i, v := range vals {
			res[i] = instr.Float64Scalar(interpolate(points, v.AsFloat64()))
		}
		return res
	}, instr.KindFloat64)
	return out, m.OutputUnit, nil
}

// interpolate evaluates the piecewise-linear curve through sorted points at
// x, clamping to the first/last point outside the curve's domain.
func interpolate(points []Point, x float64) float64 {
	if x <= points[0].X {
		return points[0].Y
	}
	if x >= points[len(points)-1].X {
		return points[len(points)-1].Y
	}
	i := sort.Search(len(points), func(i int) bool { return points[i].X >= x })
	a, b := points[i-1], points[i]
	frac := (x - a.X) / (b.X - a.X)
	return a.Y + frac*(b.Y-a.Y)
}

func (m *CalibratedMapping) MaxAdvanceDelay(step timing.TimeStep, env expr.Env) (uint64, uint64, error) {
	return m.Input.MaxAdvanceDelay(step, env)
}
