package expr

import "tickforge/internal/units"

// Env binds identifiers to quantities for scalar expression evaluation
// (sequence parameters, device calibration constants). It never carries a
// binding for "t" — that identifier is supplied only through time-dependent
// evaluation, never through the environment.
type Env map[string]units.Quantity

// Lookup resolves name, normalizing its quantity to base units so every
// value flowing through the evaluator is already in base-unit form.
func (e Env) Lookup(name string) (units.Quantity, bool) {
	q, ok := e[name]
	if !ok {
		return units.Quantity{}, false
	}
	return units.Quantity{Magnitude: q.BaseMagnitude(), Unit: units.BaseUnitFor(q.Unit.Dim)}, true
}
