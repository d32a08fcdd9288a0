package expr

import (
	"fmt"
	"math"

	"tickforge/internal/errkind"
	"tickforge/internal/units"
)

// ScalarEvaluator evaluates a time-independent expression to a single
// Quantity (magnitude + unit), in base units throughout. It is the Visitor
// used whenever IsTimeDependent(expr) is false.
type ScalarEvaluator struct {
	Env Env
}

// Eval evaluates e, failing if e references the reserved "t" identifier —
// callers must route time-dependent expressions through the analog/digital
// evaluators instead.
func Eval(e Expr, env Env) (units.Quantity, error) {
	v, err := e.Accept(&ScalarEvaluator{Env: env})
	if err != nil {
		return units.Quantity{}, err
	}
	return v.(units.Quantity), nil
}

func (s *ScalarEvaluator) VisitNumber(n *NumberExpr) (any, error) {
	u, err := units.Lookup(n.Unit)
	if err != nil {
		return nil, wrapEval(n, "%v", err)
	}
	lit := units.Quantity{Magnitude: n.Value, Unit: u}
	return units.Quantity{Magnitude: lit.BaseMagnitude(), Unit: units.BaseUnitFor(u.Dim)}, nil
}

func (s *ScalarEvaluator) VisitIdent(n *IdentExpr) (any, error) {
	if n.Name == "t" {
		return nil, wrapEval(n, "the time variable t is only valid in a time-dependent context")
	}
	q, ok := s.Env.Lookup(n.Name)
	if !ok {
		return nil, wrapEval(n, "undefined symbol %q", n.Name)
	}
	return q, nil
}

func (s *ScalarEvaluator) VisitUnary(n *UnaryExpr) (any, error) {
	v, err := n.Operand.Accept(s)
	if err != nil {
		return nil, err
	}
	q := v.(units.Quantity)
	if n.Op == '-' {
		q.Magnitude = -q.Magnitude
	}
	return q, nil
}

func (s *ScalarEvaluator) VisitBinary(n *BinaryExpr) (any, error) {
	lv, err := n.Left.Accept(s)
	if err != nil {
		return nil, err
	}
	rv, err := n.Right.Accept(s)
	if err != nil {
		return nil, err
	}
	l, r := lv.(units.Quantity), rv.(units.Quantity)
	switch n.Op {
	case '+':
		if !units.Compatible(l.Unit, r.Unit) {
			return nil, wrapEval(n, "unit mismatch: %s + %s", l.Unit.Symbol, r.Unit.Symbol)
		}
		return units.Quantity{Magnitude: l.Magnitude + r.Magnitude, Unit: l.Unit}, nil
	case '-':
		if !units.Compatible(l.Unit, r.Unit) {
			return nil, wrapEval(n, "unit mismatch: %s - %s", l.Unit.Symbol, r.Unit.Symbol)
		}
		return units.Quantity{Magnitude: l.Magnitude - r.Magnitude, Unit: l.Unit}, nil
	case '*':
		return units.Quantity{Magnitude: l.Magnitude * r.Magnitude, Unit: units.Mul(l.Unit, r.Unit)}, nil
	case '/':
		if r.Magnitude == 0 {
			return nil, wrapEval(n, "division by zero")
		}
		return units.Quantity{Magnitude: l.Magnitude / r.Magnitude, Unit: units.Div(l.Unit, r.Unit)}, nil
	case '^':
		if !r.IsDimensionless() {
			return nil, wrapEval(n, "exponent must be dimensionless, got %s", r.Unit.Symbol)
		}
		if !l.IsDimensionless() && r.Magnitude != math.Trunc(r.Magnitude) {
			return nil, wrapEval(n, "a dimensioned base can only be raised to an integer power")
		}
		resultUnit := l.Unit
		if l.Magnitude != 0 || r.Magnitude != 1 {
			resultUnit = units.BaseUnitFor(l.Unit.Dim)
		}
		return units.Quantity{Magnitude: math.Pow(l.Magnitude, r.Magnitude), Unit: resultUnit}, nil
	default:
		errkind.Invariant("scalar eval: unknown operator %q", n.Op)
		return nil, nil
	}
}

var unaryMathFuncs = map[string]func(float64) float64{
	"sin": math.Sin, "cos": math.Cos, "tan": math.Tan,
	"exp": math.Exp, "log": math.Log, "sqrt": math.Sqrt, "abs": math.Abs,
}

func (s *ScalarEvaluator) VisitCall(n *CallExpr) (any, error) {
	f, ok := unaryMathFuncs[n.Name]
	if !ok {
		return nil, wrapEval(n, "unknown function %q", n.Name)
	}
	if len(n.Args) != 1 {
		return nil, wrapEval(n, "%q takes exactly one argument", n.Name)
	}
	av, err := n.Args[0].Accept(s)
	if err != nil {
		return nil, err
	}
	arg := av.(units.Quantity)
	if !arg.IsDimensionless() {
		return nil, wrapEval(n, "%q requires a dimensionless argument, got %s", n.Name, arg.Unit.Symbol)
	}
	return units.Quantity{Magnitude: f(arg.Magnitude), Unit: units.DimensionlessUnit()}, nil
}

func wrapEval(e Expr, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return errkind.NewUserError("evaluation error: "+msg).WithExpression(fmt.Sprintf("offset %d", e.Pos()))
}
