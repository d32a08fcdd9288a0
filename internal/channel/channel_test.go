package channel

import (
	"math"
	"testing"

	"tickforge/internal/expr"
	"tickforge/internal/instr"
	"tickforge/internal/lane"
	"tickforge/internal/timing"
	"tickforge/internal/units"
)

type mockCtx struct {
	vars     expr.Env
	bounds   []timing.Time
	duration timing.Time
	lanes    map[string]LaneSpec
	consumed map[string]bool
}

func newMockCtx(t *testing.T, durationNs int64, lanes map[string]LaneSpec) *mockCtx {
	t.Helper()
	d, err := timing.NewTimeNanos(durationNs)
	if err != nil {
		t.Fatalf("NewTimeNanos: %v", err)
	}
	return &mockCtx{
		vars:     expr.Env{},
		bounds:   []timing.Time{timing.Zero, d},
		duration: d,
		lanes:    lanes,
		consumed: map[string]bool{},
	}
}

func (c *mockCtx) Variables() expr.Env          { return c.vars }
func (c *mockCtx) StepBounds() []timing.Time    { return c.bounds }
func (c *mockCtx) ShotDuration() timing.Time    { return c.duration }
func (c *mockCtx) Lane(name string) (LaneSpec, bool) {
	l, ok := c.lanes[name]
	return l, ok
}
func (c *mockCtx) MarkConsumed(name string) { c.consumed[name] = true }

func timeNanos(t *testing.T, ns int64) timing.Time {
	t.Helper()
	v, err := timing.NewTimeNanos(ns)
	if err != nil {
		t.Fatalf("NewTimeNanos(%d): %v", ns, err)
	}
	return v
}

// TestAnalogRampChannel reproduces a ramp channel: three blocks of 10 ns
// each at 1 ns resolution, the middle one a ramp between 0 and 10 (in a
// dimensionless linear unit) interpolating across 10 samples.
func TestAnalogRampChannel(t *testing.T) {
	cells := []lane.Cell{lane.ExprCell("0"), lane.RampCell(), lane.ExprCell("10")}
	bounds := []timing.Time{
		timeNanos(t, 0),
		timeNanos(t, 10),
		timeNanos(t, 20),
		timeNanos(t, 30),
	}
	step, err := timing.NewTimeStepNanos(1)
	if err != nil {
		t.Fatalf("NewTimeStepNanos: %v", err)
	}
	unit := units.DimensionlessUnit()

	ctx := newMockCtx(t, 30, map[string]LaneSpec{
		"ramped": {Kind: AnalogLane, Cells: cells, OutputUnit: unit},
	})
	ctx.bounds = bounds

	ref := &LaneRef{Name: "ramped"}
	out, gotUnit, err := ref.Evaluate(step, 0, 0, ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if gotUnit != unit {
		t.Errorf("unit = %v, want %v", gotUnit, unit)
	}
	if out.Len() != 30 {
		t.Fatalf("length = %d, want 30", out.Len())
	}
	for i := uint64(0); i < 10; i++ {
		if v := out.At(i)[""].F; v != 0 {
			t.Errorf("sample %d = %v, want 0", i, v)
		}
	}
	for i := uint64(20); i < 30; i++ {
		if v := out.At(i)[""].F; v != 10 {
			t.Errorf("sample %d = %v, want 10", i, v)
		}
	}
	for i := uint64(0); i < 10; i++ {
		want := float64(i)
		got := out.At(10 + i)[""].F
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("ramp sample %d = %v, want %v", i, got, want)
		}
	}
	if !ctx.consumed["ramped"] {
		t.Error("lane should have been marked consumed")
	}
}

func TestBroadenLeftChannel(t *testing.T) {
	vals := []bool{false, false, false, true}
	pattern := instr.BoolPattern(vals)
	b := &BroadenLeft{Input: constInstrOutput{pattern, units.DimensionlessUnit()}, Width: "2 ns"}

	step, _ := timing.NewTimeStepNanos(1)
	ctx := newMockCtx(t, 4, nil)
	out, _, err := b.Evaluate(step, 0, 0, ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := []bool{false, true, true, true}
	for i, w := range want {
		if got := out.At(uint64(i))[""].B; got != w {
			t.Errorf("sample %d = %v, want %v", i, got, w)
		}
	}
}

func TestAdvanceChannel(t *testing.T) {
	c := &Constant{Value: "1"}
	a := &Advance{Input: c, Advance: "2 ns"}

	step, _ := timing.NewTimeStepNanos(1)
	ctx := newMockCtx(t, 5, nil)
	out, _, err := a.Evaluate(step, 3, 0, ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.Len() != 8 {
		t.Fatalf("length = %d, want 8", out.Len())
	}
	for i := uint64(0); i < out.Len(); i++ {
		if v := out.At(i)[""].F; v != 1 {
			t.Errorf("sample %d = %v, want 1", i, v)
		}
	}
}

func TestAdvanceRejectsExceedingPrepend(t *testing.T) {
	c := &Constant{Value: "1"}
	a := &Advance{Input: c, Advance: "5 ns"}
	step, _ := timing.NewTimeStepNanos(1)
	ctx := newMockCtx(t, 5, nil)
	if _, _, err := a.Evaluate(step, 2, 0, ctx); err == nil {
		t.Fatal("expected error advancing beyond prepend budget")
	}
}

// constInstrOutput is a minimal Output wrapping an already-built instruction,
// used by tests that need to feed a hand-built instruction straight into a
// combinator without compiling it from an expression.
type constInstrOutput struct {
	instruction instr.Instruction
	unit        units.Unit
}

func (c constInstrOutput) Evaluate(step timing.TimeStep, prepend, appendN uint64, ctx ShotContext) (instr.Instruction, units.Unit, error) {
	return c.instruction, c.unit, nil
}

func (c constInstrOutput) MaxAdvanceDelay(step timing.TimeStep, env expr.Env) (uint64, uint64, error) {
	return 0, 0, nil
}
