// Package timing implements exact-rational time arithmetic and tick
// accounting for the shot compiler: every duration is a non-negative
// rational number of seconds, and conversion to integer ticks happens only
// at the grid boundary so adjacent steps never gap or double-count.
package timing

import (
	"fmt"
	"math/big"
)

// Time is an exact rational number of seconds. It is always non-negative.
type Time struct {
	r *big.Rat
}

// TimeStep is an exact rational, strictly positive number of seconds: the
// hardware quantum of a sequencer.
type TimeStep struct {
	r *big.Rat
}

// Zero is the additive identity Time.
var Zero = Time{r: new(big.Rat)}

// NewTime builds a Time from a numerator/denominator pair of seconds.
func NewTime(num, den int64) (Time, error) {
	if den == 0 {
		return Time{}, fmt.Errorf("timing: zero denominator")
	}
	r := big.NewRat(num, den)
	if r.Sign() < 0 {
		return Time{}, fmt.Errorf("timing: negative time %v/%v", num, den)
	}
	return Time{r: r}, nil
}

// TimeFromSeconds builds a Time from a float64 number of seconds. Use
// NewTime or NewTimeNanos when exactness matters; this is a convenience for
// literals that are already inexact (e.g. user-typed decimals).
func TimeFromSeconds(seconds float64) (Time, error) {
	if seconds < 0 {
		return Time{}, fmt.Errorf("timing: negative time %v", seconds)
	}
	r := new(big.Rat).SetFloat64(seconds)
	if r == nil {
		return Time{}, fmt.Errorf("timing: %v is not a finite number", seconds)
	}
	return Time{r: r}, nil
}

// NewTimeNanos builds an exact Time from a whole number of nanoseconds.
func NewTimeNanos(ns int64) (Time, error) {
	if ns < 0 {
		return Time{}, fmt.Errorf("timing: negative duration %d ns", ns)
	}
	return Time{r: big.NewRat(ns, 1_000_000_000)}, nil
}

// NewTimeStepNanos builds an exact TimeStep from a whole number of
// nanoseconds. It must be strictly positive.
func NewTimeStepNanos(ns int64) (TimeStep, error) {
	if ns <= 0 {
		return TimeStep{}, fmt.Errorf("timing: time step must be positive, got %d ns", ns)
	}
	return TimeStep{r: big.NewRat(ns, 1_000_000_000)}, nil
}

// Add returns t + other.
func (t Time) Add(other Time) Time {
	return Time{r: new(big.Rat).Add(t.r, other.r)}
}

// Sub returns t - other. The caller is responsible for ensuring the result
// is used only where a negative Time is meaningful (durations); Time values
// themselves are not re-validated as non-negative here.
func (t Time) Sub(other Time) Time {
	return Time{r: new(big.Rat).Sub(t.r, other.r)}
}

// Seconds returns the time as a float64 number of seconds. This should only
// be used at presentation boundaries (logging, JSON), never inside the
// tick-accounting arithmetic.
func (t Time) Seconds() float64 {
	f, _ := t.r.Float64()
	return f
}

func (t Time) String() string {
	return t.r.RatString() + "s"
}

// Rat exposes the underlying exact rational for tick arithmetic.
func (t Time) Rat() *big.Rat { return t.r }

// Seconds returns the step as a float64 number of seconds.
func (d TimeStep) Seconds() float64 {
	f, _ := d.r.Float64()
	return f
}

func (d TimeStep) String() string {
	return d.r.RatString() + "s"
}

// Rat exposes the underlying exact rational.
func (d TimeStep) Rat() *big.Rat { return d.r }

// ceilDiv returns ceil(a / b) for positive rationals a, b as an int64 tick
// count. It never rounds down: the only two ways a/b can be non-integer are
// handled by QuoRem followed by bumping the quotient up by one when there is
// a remainder.
func ceilDiv(a, b *big.Rat) int64 {
	// a/b = (an*bd) / (ad*bn)
	num := new(big.Int).Mul(a.Num(), b.Denom())
	den := new(big.Int).Mul(a.Denom(), b.Num())
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Int64()
}

// StartTick returns the included first tick index of a step starting at t,
// on a grid with quantum step: ceil(t/step).
func StartTick(t Time, step TimeStep) int64 {
	return ceilDiv(t.r, step.r)
}

// StopTick returns the excluded last tick index of a step ending at t, on a
// grid with quantum step: ceil(t/step). StartTick and StopTick share the
// same formula by construction: the boundary between two adjacent steps maps
// to one tick index shared by both, so there is never a gap or an overlap.
func StopTick(t Time, step TimeStep) int64 {
	return ceilDiv(t.r, step.r)
}

// NumberTicks returns the number of ticks between t0 and t1 on the given
// grid. It is always >= 0 when t1 >= t0.
func NumberTicks(t0, t1 Time, step TimeStep) int64 {
	return StopTick(t1, step) - StartTick(t0, step)
}

// StepBounds returns the cumulative step-start times for a sequence of step
// durations [d0, ..., dn-1]: [0, d0, d0+d1, ..., sum(d)]. The result always
// has len(durations)+1 elements.
func StepBounds(durations []Time) []Time {
	bounds := make([]Time, len(durations)+1)
	bounds[0] = Zero
	acc := Zero
	for i, d := range durations {
		acc = acc.Add(d)
		bounds[i+1] = acc
	}
	return bounds
}
