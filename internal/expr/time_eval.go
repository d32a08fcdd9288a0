package expr

import (
	"fmt"
	"math"

	"tickforge/internal/errkind"
	"tickforge/internal/instr"
	"tickforge/internal/units"
)

// analogValue is either a constant scalar (a subtree with no reference to
// t, evaluated once) or a fully time-sampled Instruction. Combinators defer
// lifting a constant to a dense Instruction until they must combine it with
// one, so a long constant run stays O(1) instead of O(window length) until
// the last possible moment.
type analogValue struct {
	isConst bool
	mag     float64
	inst    instr.Instruction
	unit    units.Unit
}

func (v analogValue) lift(length uint64) instr.Instruction {
	if !v.isConst {
		return v.inst
	}
	return instr.RepeatValue(instr.Float64Scalar(v.mag), length)
}

// EvaluateAnalog evaluates e over window, binding t to a Ramp spanning it.
// The result is always a float64-dtype Instruction of length window.Length.
func EvaluateAnalog(e Expr, env Env, window Window) (instr.Instruction, units.Unit, error) {
	v, err := analogEval(e, env, window)
	if err != nil {
		return nil, units.Unit{}, err
	}
	return v.lift(window.Length), v.unit, nil
}

func analogEval(e Expr, env Env, window Window) (analogValue, error) {
	if !IsTimeDependent(e) {
		q, err := Eval(e, env)
		if err != nil {
			return analogValue{}, err
		}
		return analogValue{isConst: true, mag: q.Magnitude, unit: q.Unit}, nil
	}

	switch n := e.(type) {
	case *IdentExpr: // must be "t": IsTimeDependent guarantees this at a leaf
		ramp := instr.NewRamp(instr.KindFloat64, window.Start, window.Stop, window.Length)
		return analogValue{inst: ramp, unit: units.Seconds()}, nil

	case *UnaryExpr:
		v, err := analogEval(n.Operand, env, window)
		if err != nil {
			return analogValue{}, err
		}
		if n.Op == '-' {
			if v.isConst {
				v.mag = -v.mag
			} else {
				v.inst = negateInstr(v.inst)
			}
		}
		return v, nil

	case *BinaryExpr:
		l, err := analogEval(n.Left, env, window)
		if err != nil {
			return analogValue{}, err
		}
		r, err := analogEval(n.Right, env, window)
		if err != nil {
			return analogValue{}, err
		}
		return combineAnalog(n, l, r, window.Length)

	case *CallExpr:
		f, ok := unaryMathFuncs[n.Name]
		if !ok {
			return analogValue{}, wrapEval(n, "unknown function %q", n.Name)
		}
		if len(n.Args) != 1 {
			return analogValue{}, wrapEval(n, "%q takes exactly one argument in a time-dependent context", n.Name)
		}
		arg, err := analogEval(n.Args[0], env, window)
		if err != nil {
			return analogValue{}, err
		}
		if arg.unit.Dim != units.Dimensionless {
			return analogValue{}, wrapEval(n, "%q requires a dimensionless argument", n.Name)
		}
		out := arg.inst.Apply(func(in []instr.Scalar) []instr.Scalar {
			res := make([]instr.Scalar, len(in))
			for i, s := range in {
				res[i] = instr.Float64Scalar(f(s.AsFloat64()))
			}
			return res
		}, instr.KindFloat64)
		return analogValue{inst: out, unit: units.DimensionlessUnit()}, nil

	default:
		errkind.Invariant("analog eval: unhandled node type %T", e)
		return analogValue{}, nil
	}
}

func combineAnalog(n *BinaryExpr, l, r analogValue, length uint64) (analogValue, error) {
	if l.isConst && r.isConst {
		lv, err := evalBinaryQuantity(n, units.Quantity{Magnitude: l.mag, Unit: l.unit}, units.Quantity{Magnitude: r.mag, Unit: r.unit})
		if err != nil {
			return analogValue{}, err
		}
		return analogValue{isConst: true, mag: lv.Magnitude, unit: lv.Unit}, nil
	}

	switch n.Op {
	case '+':
		if !units.Compatible(l.unit, r.unit) {
			return analogValue{}, wrapEval(n, "unit mismatch: %s + %s", l.unit.Symbol, r.unit.Symbol)
		}
		return analogValue{inst: addInstr(l.lift(length), r.lift(length)), unit: l.unit}, nil
	case '-':
		if !units.Compatible(l.unit, r.unit) {
			return analogValue{}, wrapEval(n, "unit mismatch: %s - %s", l.unit.Symbol, r.unit.Symbol)
		}
		return analogValue{inst: subInstr(l.lift(length), r.lift(length)), unit: l.unit}, nil
	case '*':
		return analogValue{inst: mulInstr(l.lift(length), r.lift(length)), unit: units.Mul(l.unit, r.unit)}, nil
	case '/':
		out, err := divInstr(l.lift(length), r.lift(length))
		if err != nil {
			return analogValue{}, wrapEval(n, "%v", err)
		}
		return analogValue{inst: out, unit: units.Div(l.unit, r.unit)}, nil
	case '^':
		if !r.isConst {
			return analogValue{}, wrapEval(n, "a time-dependent exponent is not supported")
		}
		out := powInstrConst(l.lift(length), r.mag)
		return analogValue{inst: out, unit: units.BaseUnitFor(l.unit.Dim)}, nil
	default:
		errkind.Invariant("analog eval: unknown operator %q", n.Op)
		return analogValue{}, nil
	}
}

func evalBinaryQuantity(n *BinaryExpr, l, r units.Quantity) (units.Quantity, error) {
	se := &ScalarEvaluator{}
	lit := &litExpr{l}
	rit := &litExpr{r}
	v, err := (&BinaryExpr{Op: n.Op, Left: lit, Right: rit, pos: n.pos}).Accept(se)
	if err != nil {
		return units.Quantity{}, err
	}
	return v.(units.Quantity), nil
}

// litExpr wraps an already-evaluated Quantity as a leaf Expr so constant
// folding can reuse ScalarEvaluator's binary-operator rules instead of
// duplicating them.
type litExpr struct{ q units.Quantity }

func (l *litExpr) Accept(v Visitor) (any, error) { return l.q, nil }
func (l *litExpr) Pos() int                      { return 0 }

// EvaluateDigital evaluates a boolean-producing expression in a digital
// lane. Only expressions with no dependency on t at all are accepted; a
// bare reference to t has no boolean value, and arithmetic or comparisons
// involving t are rejected outright rather than silently rounded.
func EvaluateDigital(e Expr, env Env, window Window) (instr.Instruction, error) {
	if !IsTimeDependent(e) {
		q, err := Eval(e, env)
		if err != nil {
			return nil, err
		}
		return instr.RepeatValue(instr.BoolScalar(q.Magnitude != 0), window.Length), nil
	}
	if ident, ok := e.(*IdentExpr); ok && ident.Name == "t" {
		return nil, wrapEval(e, "bare time reference has no boolean value in a digital context")
	}
	return nil, wrapEval(e, "arithmetic or comparison on t is not supported in a digital context")
}

// --- Instruction-level elementwise combinators ---------------------------

func negateInstr(x instr.Instruction) instr.Instruction {
	if r, ok := x.(*instr.Ramp); ok {
		start, stop := r.Bounds()
		return instr.NewRamp(instr.KindFloat64, -start, -stop, r.Len())
	}
	return x.Apply(func(in []instr.Scalar) []instr.Scalar {
		out := make([]instr.Scalar, len(in))
		for i, s := range in {
			out[i] = instr.Float64Scalar(-s.AsFloat64())
		}
		return out
	}, instr.KindFloat64)
}

func addInstr(a, b instr.Instruction) instr.Instruction {
	if ra, ok := a.(*instr.Ramp); ok {
		if rb, ok2 := b.(*instr.Ramp); ok2 && ra.Len() == rb.Len() {
			as, ae := ra.Bounds()
			bs, be := rb.Bounds()
			return instr.NewRamp(instr.KindFloat64, as+bs, ae+be, ra.Len())
		}
	}
	return flattenCombine(a, b, func(x, y float64) float64 { return x + y })
}

func subInstr(a, b instr.Instruction) instr.Instruction {
	if ra, ok := a.(*instr.Ramp); ok {
		if rb, ok2 := b.(*instr.Ramp); ok2 && ra.Len() == rb.Len() {
			as, ae := ra.Bounds()
			bs, be := rb.Bounds()
			return instr.NewRamp(instr.KindFloat64, as-bs, ae-be, ra.Len())
		}
	}
	return flattenCombine(a, b, func(x, y float64) float64 { return x - y })
}

// mulInstr multiplies two time-dependent values elementwise. A Ramp times a
// Ramp where either side has zero slope is still affine in t, so the
// product stays a Ramp; any other pairing flattens to a Pattern.
func mulInstr(a, b instr.Instruction) instr.Instruction {
	if ra, ok := a.(*instr.Ramp); ok {
		if rb, ok2 := b.(*instr.Ramp); ok2 && ra.Len() == rb.Len() {
			as, ae := ra.Bounds()
			bs, be := rb.Bounds()
			switch {
			case as == ae:
				return instr.NewRamp(instr.KindFloat64, as*bs, as*be, ra.Len())
			case bs == be:
				return instr.NewRamp(instr.KindFloat64, as*bs, ae*bs, ra.Len())
			}
		}
	}
	return flattenCombine(a, b, func(x, y float64) float64 { return x * y })
}

func divInstr(a, b instr.Instruction) (instr.Instruction, error) {
	pa, pb := a.ToPattern(), b.ToPattern()
	la, lb := pa.Column(""), pb.Column("")
	out := make([]instr.Scalar, len(la))
	for i := range la {
		denom := lb[i].AsFloat64()
		if denom == 0 {
			return nil, fmt.Errorf("division by zero at sample %d", i)
		}
		out[i] = instr.Float64Scalar(la[i].AsFloat64() / denom)
	}
	return instr.NewPattern(instr.Float64Dtype, map[string][]instr.Scalar{"": out}), nil
}

func powInstrConst(a instr.Instruction, exp float64) instr.Instruction {
	return a.Apply(func(in []instr.Scalar) []instr.Scalar {
		out := make([]instr.Scalar, len(in))
		for i, s := range in {
			out[i] = instr.Float64Scalar(math.Pow(s.AsFloat64(), exp))
		}
		return out
	}, instr.KindFloat64)
}

// flattenCombine is the general-purpose elementwise fallback: both operands
// are flattened to a Pattern and combined sample by sample. Every operator
// without a compact Ramp-preserving shortcut falls back to this path.
func flattenCombine(a, b instr.Instruction, f func(x, y float64) float64) instr.Instruction {
	pa, pb := a.ToPattern(), b.ToPattern()
	la, lb := pa.Column(""), pb.Column("")
	out := make([]instr.Scalar, len(la))
	for i := range la {
		out[i] = instr.Float64Scalar(f(la[i].AsFloat64(), lb[i].AsFloat64()))
	}
	return instr.NewPattern(instr.Float64Dtype, map[string][]instr.Scalar{"": out})
}
