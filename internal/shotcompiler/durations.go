package shotcompiler

import (
	"tickforge/internal/errkind"
	"tickforge/internal/expr"
	"tickforge/internal/timing"
	"tickforge/internal/units"
)

// EvaluateStepDurations parses and evaluates each step's duration
// expression against variables, converting the result to an exact Time in
// seconds. A step whose expression fails to parse or evaluate, doesn't
// resolve to a quantity compatible with time, or is negative, is reported
// against that step's name.
//
// This lives here rather than in internal/timing to avoid an import cycle:
// it depends on internal/expr, and internal/expr's time-dependent evaluator
// already depends on internal/timing for its Window type.
func EvaluateStepDurations(stepNames, stepDurationExprs []string, variables expr.Env) ([]timing.Time, error) {
	if len(stepNames) != len(stepDurationExprs) {
		errkind.Invariant("shotcompiler: %d step names but %d step duration expressions", len(stepNames), len(stepDurationExprs))
	}
	result := make([]timing.Time, len(stepDurationExprs))
	for i, src := range stepDurationExprs {
		e, err := expr.Parse(src)
		if err != nil {
			return nil, errkind.NewUserError("couldn't parse duration of step "+stepNames[i]).WithExpression(src).WithCause(err)
		}
		q, err := expr.Eval(e, variables)
		if err != nil {
			return nil, errkind.NewUserError("couldn't evaluate duration of step "+stepNames[i]).WithExpression(src).WithCause(err)
		}
		seconds, err := q.MagnitudeIn(units.Seconds())
		if err != nil {
			return nil, errkind.NewUserError("duration of step "+stepNames[i]+" does not evaluate to a time quantity").WithExpression(src).WithCause(err)
		}
		if seconds < 0 {
			return nil, errkind.NewUserError("duration of step " + stepNames[i] + " is negative").WithExpression(src)
		}
		t, err := timing.TimeFromSeconds(seconds)
		if err != nil {
			return nil, errkind.NewUserError("duration of step "+stepNames[i]+" is not a finite time").WithExpression(src).WithCause(err)
		}
		result[i] = t
	}
	return result, nil
}
