// Package instr implements the structural, immutable time-series
// instruction algebra: a closed sum type of four variants (Pattern,
// Concatenated, Repeated, Ramp) supporting compact concatenation/
// repetition/ramps, structural slicing without flattening, and
// cross-channel merging.
//
// All constructors here restore the algebra's invariants and panic (via
// errkind.Invariant) on programmer-bug-class violations — empty concat,
// dtype mismatch, out-of-range slice, length mismatch in apply/merge. User-facing failures (expression evaluation, unit mismatch,
// unused lanes) live one layer up, in internal/expr, internal/lane and
// internal/channel.
//
// Grounded on original_source/caqtus/device/sequencer/instructions/
// _instructions.py and _ramp.py.
package instr

import (
	"tickforge/internal/errkind"
)

// ScalarKind is the element type of a single field in a Dtype.
type ScalarKind int

const (
	KindBool ScalarKind = iota
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
)

func (k ScalarKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// IsFloating reports whether k is a floating-point kind.
func (k ScalarKind) IsFloating() bool {
	return k == KindFloat32 || k == KindFloat64
}

// Field names one column of a Dtype.
type Field struct {
	Name string
	Kind ScalarKind
}

// Dtype describes the element type of an instruction: either a single
// scalar (one Field with Name == "") or a named-field struct packing several
// channels together.
type Dtype struct {
	Fields []Field
}

// IsScalar reports whether d is a plain scalar dtype rather than a struct
// pack of several named channels.
func (d Dtype) IsScalar() bool {
	return len(d.Fields) == 1 && d.Fields[0].Name == ""
}

// ScalarKindOf returns the single scalar kind of a scalar dtype. It panics if
// d is a struct dtype; callers must check IsScalar first.
func (d Dtype) ScalarKindOf() ScalarKind {
	if !d.IsScalar() {
		errkind.Invariant("ScalarKindOf called on struct dtype %v", d)
	}
	return d.Fields[0].Kind
}

// Equal reports structural equality of two dtypes: same fields, same order,
// same kinds.
func (d Dtype) Equal(other Dtype) bool {
	if len(d.Fields) != len(other.Fields) {
		return false
	}
	for i, f := range d.Fields {
		if f != other.Fields[i] {
			return false
		}
	}
	return true
}

// FieldNames returns the ordered list of field names (a single "" entry for
// a scalar dtype).
func (d Dtype) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// HasField reports whether d declares a field with the given name, and
// returns its kind.
func (d Dtype) HasField(name string) (ScalarKind, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Kind, true
		}
	}
	return 0, false
}

func (d Dtype) String() string {
	if d.IsScalar() {
		return d.Fields[0].Kind.String()
	}
	s := "struct{"
	for i, f := range d.Fields {
		if i > 0 {
			s += ", "
		}
		s += f.Name + ":" + f.Kind.String()
	}
	return s + "}"
}

// Scalar is a single tagged-union sample value, used uniformly whether it
// belongs to a scalar-dtype instruction or to one field of a struct-dtype
// instruction.
type Scalar struct {
	Kind ScalarKind
	B    bool
	I    int64
	U    uint64
	F    float64
}

// AsFloat64 returns the scalar's value widened to float64, regardless of its
// declared kind. It is used by Apply/CalibratedMapping, which always produce
// float64 results.
func (s Scalar) AsFloat64() float64 {
	switch s.Kind {
	case KindBool:
		if s.B {
			return 1
		}
		return 0
	case KindInt64:
		return float64(s.I)
	case KindUint64:
		return float64(s.U)
	case KindFloat32, KindFloat64:
		return s.F
	default:
		errkind.Invariant("unknown scalar kind %v", s.Kind)
		return 0
	}
}

func BoolScalar(b bool) Scalar       { return Scalar{Kind: KindBool, B: b} }
func Int64Scalar(i int64) Scalar     { return Scalar{Kind: KindInt64, I: i} }
func Uint64Scalar(u uint64) Scalar   { return Scalar{Kind: KindUint64, U: u} }
func Float32Scalar(f float64) Scalar { return Scalar{Kind: KindFloat32, F: f} }
func Float64Scalar(f float64) Scalar { return Scalar{Kind: KindFloat64, F: f} }

// ScalarDtype builds a one-field scalar Dtype of the given kind.
func ScalarDtype(kind ScalarKind) Dtype {
	return Dtype{Fields: []Field{{Name: "", Kind: kind}}}
}

var (
	BoolDtype    = ScalarDtype(KindBool)
	Int64Dtype   = ScalarDtype(KindInt64)
	Uint64Dtype  = ScalarDtype(KindUint64)
	Float32Dtype = ScalarDtype(KindFloat32)
	Float64Dtype = ScalarDtype(KindFloat64)
)

// Instruction is the closed sum type: Pattern, Concatenated, Repeated, or
// Ramp. The unexported marker method closes the set to this package's four
// concrete types, mirroring a tagged union / enum-of-structs rather than
// open inheritance.
type Instruction interface {
	// Len returns the number of samples; total output time is Len()*step.
	Len() uint64
	// Dtype returns the element type.
	Dtype() Dtype
	// Depth returns the nesting depth; the invariant Depth() <= Len() always
	// holds.
	Depth() uint32
	// ToPattern flattens the instruction to a dense Pattern.
	ToPattern() *Pattern
	// Slice returns instr[a:b], 0 <= a <= b <= Len(). Out-of-range is an
	// invariant panic, never a silent clamp.
	Slice(a, b uint64) Instruction
	// GetField pushes field access through the tree; panics if the dtype is
	// scalar or the field does not exist.
	GetField(name string) Instruction
	// Apply maps f element-wise over a scalar-dtype instruction, producing a
	// new scalar-dtype instruction. f must return a slice of the same
	// length as its input.
	Apply(f func([]Scalar) []Scalar, resultKind ScalarKind) Instruction

	// At returns the value at index i as a single "row": a map from field
	// name to Scalar (a scalar dtype uses key "").
	At(i uint64) map[string]Scalar

	instrMarker()
}

// empty builds the canonical empty Pattern of the given dtype, used as the
// absorbing element of Concat and the result of repeating by 0.
func empty(dtype Dtype) *Pattern {
	columns := make(map[string][]Scalar, len(dtype.Fields))
	for _, f := range dtype.Fields {
		columns[f.Name] = []Scalar{}
	}
	return &Pattern{dtype: dtype, length: 0, columns: columns}
}

// Empty returns the canonical empty Pattern of the given dtype.
func Empty(dtype Dtype) Instruction {
	return empty(dtype)
}

func checkRange(op string, a, b, length uint64) {
	if a > b || b > length {
		errkind.Invariant("%s out of range: [%d:%d) for length %d", op, a, b, length)
	}
}

func checkSameDtype(op string, a, b Dtype) {
	if !a.Equal(b) {
		errkind.Invariant("%s: dtype mismatch %v vs %v", op, a, b)
	}
}

func lengthOf(op string, got, want uint64) {
	if got != want {
		errkind.Invariant("%s: length mismatch, got %d want %d", op, got, want)
	}
}

