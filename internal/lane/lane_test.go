package lane

import (
	"math"
	"testing"

	"tickforge/internal/expr"
	"tickforge/internal/instr"
	"tickforge/internal/timing"
	"tickforge/internal/units"
)

func timeNanos(t *testing.T, ns int64) timing.Time {
	t.Helper()
	v, err := timing.NewTimeNanos(ns)
	if err != nil {
		t.Fatalf("NewTimeNanos(%d): %v", ns, err)
	}
	return v
}

func TestBlocksGroupsAdjacentEqual(t *testing.T) {
	cells := []Cell{BoolCell(false), BoolCell(false), BoolCell(true), BoolCell(true), BoolCell(true)}
	blocks := Blocks(cells)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].Start != 0 || blocks[0].Stop != 2 {
		t.Errorf("block 0 = [%d,%d), want [0,2)", blocks[0].Start, blocks[0].Stop)
	}
	if blocks[1].Start != 2 || blocks[1].Stop != 5 {
		t.Errorf("block 1 = [%d,%d), want [2,5)", blocks[1].Start, blocks[1].Stop)
	}
}

func TestCompileDigitalConstantBlocks(t *testing.T) {
	cells := []Cell{BoolCell(true), BoolCell(true), BoolCell(false)}
	bounds := []timing.Time{timeNanos(t, 0), timeNanos(t, 1), timeNanos(t, 2), timeNanos(t, 3)}
	step, _ := timing.NewTimeStepNanos(1)

	out, err := CompileDigital(cells, bounds, step, expr.Env{})
	if err != nil {
		t.Fatalf("CompileDigital: %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("length = %d, want 3", out.Len())
	}
	want := []bool{true, true, false}
	for i, w := range want {
		got := out.At(uint64(i))[""].B
		if got != w {
			t.Errorf("sample %d = %v, want %v", i, got, w)
		}
	}
}

func TestCompileDigitalExpressionBlock(t *testing.T) {
	cells := []Cell{ExprCell("1")}
	bounds := []timing.Time{timeNanos(t, 0), timeNanos(t, 4)}
	step, _ := timing.NewTimeStepNanos(1)

	out, err := CompileDigital(cells, bounds, step, expr.Env{})
	if err != nil {
		t.Fatalf("CompileDigital: %v", err)
	}
	if out.Len() != 4 {
		t.Fatalf("length = %d, want 4", out.Len())
	}
	for i := uint64(0); i < 4; i++ {
		if !out.At(i)[""].B {
			t.Errorf("sample %d = false, want true (nonzero magnitude)", i)
		}
	}
}

func TestCompileDigitalRejectsTimeArithmetic(t *testing.T) {
	cells := []Cell{ExprCell("t + 1 ns")}
	bounds := []timing.Time{timeNanos(t, 0), timeNanos(t, 4)}
	step, _ := timing.NewTimeStepNanos(1)
	if _, err := CompileDigital(cells, bounds, step, expr.Env{}); err == nil {
		t.Fatal("expected error for time-dependent arithmetic in digital lane")
	}
}

func TestCompileAnalogConstantExpression(t *testing.T) {
	cells := []Cell{ExprCell("2 V")}
	bounds := []timing.Time{timeNanos(t, 0), timeNanos(t, 5)}
	step, _ := timing.NewTimeStepNanos(1)

	out, err := CompileAnalog(cells, bounds, step, expr.Env{}, units.MustLookup("V"))
	if err != nil {
		t.Fatalf("CompileAnalog: %v", err)
	}
	if out.Len() != 5 {
		t.Fatalf("length = %d, want 5", out.Len())
	}
	for i := uint64(0); i < 5; i++ {
		if v := out.At(i)[""].F; v != 2 {
			t.Errorf("sample %d = %v, want 2", i, v)
		}
	}
}

func TestCompileAnalogRampCell(t *testing.T) {
	cells := []Cell{ExprCell("0 V"), RampCell(), ExprCell("10 V")}
	bounds := []timing.Time{
		timeNanos(t, 0),
		timeNanos(t, 1),
		timeNanos(t, 5),
		timeNanos(t, 6),
	}
	step, _ := timing.NewTimeStepNanos(1)

	out, err := CompileAnalog(cells, bounds, step, expr.Env{}, units.MustLookup("V"))
	if err != nil {
		t.Fatalf("CompileAnalog: %v", err)
	}
	if out.Len() != 6 {
		t.Fatalf("length = %d, want 6", out.Len())
	}
	// The ramp block spans samples [1,5): 4 samples evenly spaced from 0 to 10.
	want := []float64{0, 0, 2.5, 5, 7.5, 10}
	for i, w := range want {
		got := out.At(uint64(i))[""].F
		if math.Abs(got-w) > 1e-9 {
			t.Errorf("sample %d = %v, want %v", i, got, w)
		}
	}
}

// TestCompileAnalogRampDecibelCell reproduces the S2 testable property: a
// dB-valued ramp must convert through the power-ratio formula (10^(x/10))
// before interpolating, not pass the dB figure straight through as a linear
// magnitude.
func TestCompileAnalogRampDecibelCell(t *testing.T) {
	cells := []Cell{ExprCell("0 dB"), RampCell(), ExprCell("10 dB")}
	bounds := []timing.Time{
		timeNanos(t, 0),
		timeNanos(t, 10),
		timeNanos(t, 20),
		timeNanos(t, 30),
	}
	step, _ := timing.NewTimeStepNanos(1)

	out, err := CompileAnalog(cells, bounds, step, expr.Env{}, units.DimensionlessUnit())
	if err != nil {
		t.Fatalf("CompileAnalog: %v", err)
	}
	if out.Len() != 30 {
		t.Fatalf("length = %d, want 30", out.Len())
	}
	for i := uint64(0); i < 10; i++ {
		if got := out.At(i)[""].F; math.Abs(got-1.0) > 1e-9 {
			t.Errorf("sample %d = %v, want 1.0", i, got)
		}
	}
	for i := uint64(19); i < 30; i++ {
		if got := out.At(i)[""].F; math.Abs(got-10.0) > 1e-9 {
			t.Errorf("sample %d = %v, want 10.0", i, got)
		}
	}
	// Middle samples interpolate linearly between the converted endpoints,
	// 1.0 and 10.0, not between the raw dB figures 0 and 10.
	mid := out.At(14)[""].F
	if mid <= 1.0 || mid >= 10.0 {
		t.Errorf("sample 14 = %v, want strictly between 1.0 and 10.0", mid)
	}
}

func TestCompileAnalogTimeDependentExpression(t *testing.T) {
	cells := []Cell{ExprCell("t / (10 ns) * 1 V")}
	bounds := []timing.Time{timeNanos(t, 0), timeNanos(t, 10)}
	step, _ := timing.NewTimeStepNanos(1)

	out, err := CompileAnalog(cells, bounds, step, expr.Env{}, units.MustLookup("V"))
	if err != nil {
		t.Fatalf("CompileAnalog: %v", err)
	}
	for i := uint64(0); i < 10; i++ {
		want := float64(i) * 0.1
		got := out.At(i)[""].F
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("sample %d = %v, want %v", i, got, want)
		}
	}
}

func TestCompileAnalogRejectsBoolCell(t *testing.T) {
	cells := []Cell{BoolCell(true)}
	bounds := []timing.Time{timeNanos(t, 0), timeNanos(t, 1)}
	step, _ := timing.NewTimeStepNanos(1)
	if _, err := CompileAnalog(cells, bounds, step, expr.Env{}, units.MustLookup("V")); err == nil {
		t.Fatal("expected error for bool cell in analog lane")
	}
}

func TestCompileDigitalUsesInstrEqual(t *testing.T) {
	cells := []Cell{BoolCell(false), BoolCell(false)}
	bounds := []timing.Time{timeNanos(t, 0), timeNanos(t, 1), timeNanos(t, 2)}
	step, _ := timing.NewTimeStepNanos(1)
	out, err := CompileDigital(cells, bounds, step, expr.Env{})
	if err != nil {
		t.Fatalf("CompileDigital: %v", err)
	}
	want := instr.RepeatValue(instr.BoolScalar(false), 2)
	if !instr.Equal(out, want) {
		t.Errorf("got %v samples, want constant false pattern of length 2", out.Len())
	}
}
