package instr

import "tickforge/internal/errkind"

// Pattern is a dense, flat run of samples: the base case of the algebra.
// Every other variant eventually flattens to one of these via ToPattern.
type Pattern struct {
	dtype   Dtype
	length  uint64
	columns map[string][]Scalar // keyed by field name; scalar dtype uses key ""
}

// NewPattern builds a Pattern from column data, validating that every
// declared field is present with exactly length samples.
func NewPattern(dtype Dtype, columns map[string][]Scalar) *Pattern {
	var length uint64 = ^uint64(0)
	for _, f := range dtype.Fields {
		col, ok := columns[f.Name]
		if !ok {
			errkind.Invariant("pattern: missing column %q for dtype %v", f.Name, dtype)
		}
		if length == ^uint64(0) {
			length = uint64(len(col))
		} else if uint64(len(col)) != length {
			errkind.Invariant("pattern: column %q has length %d, want %d", f.Name, len(col), length)
		}
		for _, v := range col {
			if v.Kind != f.Kind {
				errkind.Invariant("pattern: column %q holds kind %v, want %v", f.Name, v.Kind, f.Kind)
			}
		}
	}
	if length == ^uint64(0) {
		length = 0
	}
	cp := make(map[string][]Scalar, len(columns))
	for k, v := range columns {
		cp[k] = append([]Scalar(nil), v...)
	}
	return &Pattern{dtype: dtype, length: length, columns: cp}
}

// BoolPattern builds a scalar bool Pattern from raw values.
func BoolPattern(vals []bool) *Pattern {
	col := make([]Scalar, len(vals))
	for i, v := range vals {
		col[i] = BoolScalar(v)
	}
	return NewPattern(BoolDtype, map[string][]Scalar{"": col})
}

// Float64Pattern builds a scalar float64 Pattern from raw values.
func Float64Pattern(vals []float64) *Pattern {
	col := make([]Scalar, len(vals))
	for i, v := range vals {
		col[i] = Float64Scalar(v)
	}
	return NewPattern(Float64Dtype, map[string][]Scalar{"": col})
}

// RepeatValue builds a length-n Pattern repeating a single scalar value, the
// Go counterpart of the original's `Pattern.create(n * [value])` shorthand.
func RepeatValue(v Scalar, n uint64) *Pattern {
	col := make([]Scalar, n)
	for i := range col {
		col[i] = v
	}
	return NewPattern(ScalarDtype(v.Kind), map[string][]Scalar{"": col})
}

func (p *Pattern) Len() uint64  { return p.length }
func (p *Pattern) Dtype() Dtype { return p.dtype }
func (p *Pattern) Depth() uint32 {
	return 0
}
func (p *Pattern) ToPattern() *Pattern { return p }

func (p *Pattern) Slice(a, b uint64) Instruction {
	checkRange("pattern slice", a, b, p.length)
	cols := make(map[string][]Scalar, len(p.columns))
	for k, v := range p.columns {
		cols[k] = append([]Scalar(nil), v[a:b]...)
	}
	return &Pattern{dtype: p.dtype, length: b - a, columns: cols}
}

func (p *Pattern) GetField(name string) Instruction {
	kind, ok := p.dtype.HasField(name)
	if !ok {
		errkind.Invariant("pattern: no field %q in dtype %v", name, p.dtype)
	}
	col := p.columns[name]
	_ = kind
	return NewPattern(ScalarDtype(kind), map[string][]Scalar{"": col})
}

func (p *Pattern) Apply(f func([]Scalar) []Scalar, resultKind ScalarKind) Instruction {
	if !p.dtype.IsScalar() {
		errkind.Invariant("apply: dtype %v is not scalar", p.dtype)
	}
	in := p.columns[""]
	out := f(in)
	lengthOf("apply", uint64(len(out)), p.length)
	return NewPattern(ScalarDtype(resultKind), map[string][]Scalar{"": out})
}

func (p *Pattern) At(i uint64) map[string]Scalar {
	if i >= p.length {
		errkind.Invariant("pattern: index %d out of range for length %d", i, p.length)
	}
	row := make(map[string]Scalar, len(p.columns))
	for k, col := range p.columns {
		row[k] = col[i]
	}
	return row
}

func (p *Pattern) instrMarker() {}

// Column returns the raw samples of one field (key "" for a scalar dtype).
// It is the escape hatch the expression evaluator uses to do elementwise
// arithmetic without reaching into unexported state.
func (p *Pattern) Column(name string) []Scalar { return p.columns[name] }

// SampleEqual reports sample-wise equality with another instruction, by
// flattening both sides: two instructions built from different variants
// (e.g. a Repeated and a Concatenated) compare equal here as long as their
// samples agree. Used where a caller genuinely wants to compare the
// observable output rather than the tree shape, such as broadenleft's
// steady-state shortcut.
func SampleEqual(a, b Instruction) bool {
	if a.Len() != b.Len() || !a.Dtype().Equal(b.Dtype()) {
		return false
	}
	pa, pb := a.ToPattern(), b.ToPattern()
	for _, name := range a.Dtype().FieldNames() {
		ca, cb := pa.columns[name], pb.columns[name]
		for i := range ca {
			if ca[i] != cb[i] {
				return false
			}
		}
	}
	return true
}

// Equal reports structural (tree) equality: two instructions are equal only
// if they are the same variant at every level with the same children, not
// merely the same flattened samples. A Repeated(x, 3) and the Concatenated
// built from three copies of x are SampleEqual but not Equal.
func Equal(a, b Instruction) bool {
	switch x := a.(type) {
	case *Pattern:
		y, ok := b.(*Pattern)
		if !ok || x.length != y.length || !x.dtype.Equal(y.dtype) {
			return false
		}
		for _, f := range x.dtype.Fields {
			xa, yb := x.columns[f.Name], y.columns[f.Name]
			for i := range xa {
				if xa[i] != yb[i] {
					return false
				}
			}
		}
		return true
	case *Concatenated:
		y, ok := b.(*Concatenated)
		if !ok || len(x.children) != len(y.children) {
			return false
		}
		for i := range x.children {
			if !Equal(x.children[i], y.children[i]) {
				return false
			}
		}
		return true
	case *Repeated:
		y, ok := b.(*Repeated)
		if !ok || x.count != y.count {
			return false
		}
		return Equal(x.child, y.child)
	case *Ramp:
		y, ok := b.(*Ramp)
		if !ok || x.length != y.length || !x.dtype.Equal(y.dtype) {
			return false
		}
		for _, f := range x.dtype.Fields {
			if x.start[f.Name] != y.start[f.Name] || x.stop[f.Name] != y.stop[f.Name] {
				return false
			}
		}
		return true
	default:
		errkind.Invariant("Equal: unhandled instruction type %T", a)
		return false
	}
}
