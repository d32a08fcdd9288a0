package instr

import (
	"math"
	"testing"
)

func boolsOf(p *Pattern) []bool {
	out := make([]bool, p.Len())
	for i := range out {
		out[i] = p.At(uint64(i))[""].B
	}
	return out
}

func TestLengthProperty(t *testing.T) {
	cases := []Instruction{
		BoolPattern([]bool{true, false, true}),
		Concat(BoolPattern([]bool{true}), BoolPattern([]bool{false, false})),
		Repeat(BoolPattern([]bool{true, false}), 5),
		NewRamp(KindFloat64, 0, 10, 20),
	}
	for i, x := range cases {
		if got, want := x.ToPattern().Len(), x.Len(); got != want {
			t.Errorf("case %d: to_pattern length %d != Len() %d", i, got, want)
		}
	}
}

func TestSliceIdentity(t *testing.T) {
	x := Concat(Repeat(BoolPattern([]bool{true, false}), 3), BoolPattern([]bool{true, true, false}))
	full := x.Slice(0, x.Len())
	if !Equal(full, x) {
		t.Fatalf("slice(0, len(x)) not structurally equal to x")
	}

	a, b := uint64(2), uint64(7)
	got := x.Slice(a, b).ToPattern()
	want := x.ToPattern().Slice(a, b).ToPattern()
	if !Equal(got, want) {
		t.Fatalf("slice/to_pattern does not commute: got %v want %v", boolsOf(got), boolsOf(want))
	}
}

func TestSliceOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range slice")
		}
	}()
	BoolPattern([]bool{true, false}).Slice(0, 3)
}

func TestConcatAssociativityOnFlattening(t *testing.T) {
	a := BoolPattern([]bool{true})
	b := BoolPattern([]bool{false, false})
	c := Repeat(BoolPattern([]bool{true, false}), 4)

	left := Concat(a, Concat(b, c))
	right := Concat(Concat(a, b), c)

	if !Equal(left.ToPattern(), right.ToPattern()) {
		t.Fatalf("concat is not associative on flattening")
	}
}

func TestConcatEmptyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for concat with no arguments")
		}
	}()
	Concat()
}

func TestConcatDtypeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for dtype mismatch")
		}
	}()
	Concat(BoolPattern([]bool{true}), Float64Pattern([]float64{1}))
}

func TestRepeatCollapse(t *testing.T) {
	x := BoolPattern([]bool{true, false, true})
	left := Repeat(Repeat(x, 3), 4)
	right := Repeat(x, 12)
	if !Equal(left.ToPattern(), right.ToPattern()) {
		t.Fatalf("repeat(repeat(x,3),4) != repeat(x,12)")
	}
	if _, ok := left.(*Repeated); !ok {
		t.Fatalf("nested repeat did not collapse to a single Repeated, got %T", left)
	}
}

func TestMergeLength(t *testing.T) {
	a := Float64Pattern([]float64{1, 2, 3})
	b := BoolPattern([]bool{true, false, true})
	m := Merge(a, b, "analog", "digital")
	if m.Len() != a.Len() {
		t.Fatalf("merge length %d != %d", m.Len(), a.Len())
	}
	dtype := m.Dtype()
	if kind, ok := dtype.HasField("analog"); !ok || kind != KindFloat64 {
		t.Fatalf("merged dtype missing analog field: %v", dtype)
	}
	if kind, ok := dtype.HasField("digital"); !ok || kind != KindBool {
		t.Fatalf("merged dtype missing digital field: %v", dtype)
	}
	row0 := m.ToPattern().At(0)
	if row0["analog"].F != 1 || row0["digital"].B != true {
		t.Fatalf("merged row 0 wrong: %+v", row0)
	}
}

func TestMergeLengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for merge length mismatch")
		}
	}()
	Merge(Float64Pattern([]float64{1, 2}), BoolPattern([]bool{true}), "a", "b")
}

func TestRampSampling(t *testing.T) {
	const start, stop, length = -5.0, 15.0, 20
	r := NewRamp(KindFloat64, start, stop, length)
	p := r.ToPattern()
	for i := 0; i < length; i++ {
		want := start + float64(i)*(stop-start)/length
		got := p.At(uint64(i))[""].F
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("sample %d: got %v want %v", i, got, want)
		}
	}
}

func TestRampSliceStaysCompact(t *testing.T) {
	r := NewRamp(KindFloat64, 0, 100, 100)
	sliced := r.Slice(10, 20)
	if _, ok := sliced.(*Ramp); !ok {
		t.Fatalf("ramp slice did not stay a Ramp, got %T", sliced)
	}
	full := r.ToPattern()
	got := sliced.ToPattern()
	for i := uint64(0); i < 10; i++ {
		if got.At(i)[""].F != full.At(i+10)[""].F {
			t.Errorf("ramp slice sample %d mismatch", i)
		}
	}
}

func TestGetFieldPushesThroughTree(t *testing.T) {
	a := Float64Pattern([]float64{1, 2})
	b := BoolPattern([]bool{true, false})
	merged := Merge(a, b, "x", "y")
	rep := Repeat(merged, 3)
	field := rep.GetField("x").ToPattern()
	for i := 0; i < 6; i++ {
		want := float64(i%2) + 1
		if field.At(uint64(i))[""].F != want {
			t.Errorf("field sample %d: got %v want %v", i, field.At(uint64(i))[""].F, want)
		}
	}
}

func TestApplyLengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for apply producing wrong length")
		}
	}()
	x := Float64Pattern([]float64{1, 2, 3})
	x.Apply(func(in []Scalar) []Scalar { return in[:1] }, KindFloat64)
}

func TestPatternJSONRoundTrip(t *testing.T) {
	x := Concat(Repeat(BoolPattern([]bool{true, false}), 3), BoolPattern([]bool{true}))
	data, err := marshalInstruction(x.ToPattern())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !Equal(back, x.ToPattern()) {
		t.Fatalf("round trip mismatch: got %v want %v", boolsOf(back.ToPattern()), boolsOf(x.ToPattern()))
	}
}
