package instr

import "tickforge/internal/errkind"

// Concatenated is a sequence of child instructions placed end to end. It is
// never constructed directly with fewer than two children, never holds an
// empty child, and never holds two adjacent Patterns (those are merged into
// one at construction time) — see Concat.
type Concatenated struct {
	dtype    Dtype
	length   uint64
	depth    uint32
	children []Instruction
	// bounds[i] is the cumulative length before children[i]; bounds has
	// len(children)+1 entries, mirroring timing.StepBounds.
	bounds []uint64
}

func newConcatenated(children []Instruction) *Concatenated {
	dtype := children[0].Dtype()
	bounds := make([]uint64, len(children)+1)
	var depth uint32
	for i, c := range children {
		checkSameDtype("concat", dtype, c.Dtype())
		bounds[i+1] = bounds[i] + c.Len()
		if d := c.Depth() + 1; d > depth {
			depth = d
		}
	}
	return &Concatenated{dtype: dtype, length: bounds[len(children)], depth: depth, children: children, bounds: bounds}
}

func (c *Concatenated) Len() uint64  { return c.length }
func (c *Concatenated) Dtype() Dtype { return c.dtype }
func (c *Concatenated) Depth() uint32 { return c.depth }

func (c *Concatenated) ToPattern() *Pattern {
	columns := make(map[string][]Scalar, len(c.dtype.Fields))
	for _, f := range c.dtype.Fields {
		columns[f.Name] = make([]Scalar, 0, c.length)
	}
	for _, child := range c.children {
		cp := child.ToPattern()
		for _, f := range c.dtype.Fields {
			columns[f.Name] = append(columns[f.Name], cp.columns[f.Name]...)
		}
	}
	return NewPattern(c.dtype, columns)
}

// childIndex finds, via binary search over bounds, the child containing
// global index i and returns the child index plus i's offset within it.
func (c *Concatenated) childIndex(i uint64) (childIdx int, offset uint64) {
	lo, hi := 0, len(c.children)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if c.bounds[mid] <= i {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, i - c.bounds[lo]
}

// Slice walks the bounds table with two binary searches (one per edge) and
// returns only the children spanned by [a:b), slicing the first and last of
// them — it never flattens the untouched middle children.
func (c *Concatenated) Slice(a, b uint64) Instruction {
	checkRange("concatenated slice", a, b, c.length)
	if a == b {
		return Empty(c.dtype)
	}
	startChild, startOff := c.childIndex(a)
	endChild, endOff := c.childIndex(b - 1)
	if startChild == endChild {
		return c.children[startChild].Slice(startOff, endOff+1)
	}
	parts := make([]Instruction, 0, endChild-startChild+1)
	first := c.children[startChild]
	if startOff == 0 {
		parts = append(parts, first)
	} else {
		parts = append(parts, first.Slice(startOff, first.Len()))
	}
	for i := startChild + 1; i < endChild; i++ {
		parts = append(parts, c.children[i])
	}
	last := c.children[endChild]
	if endOff+1 == last.Len() {
		parts = append(parts, last)
	} else {
		parts = append(parts, last.Slice(0, endOff+1))
	}
	return Concat(parts...)
}

func (c *Concatenated) GetField(name string) Instruction {
	parts := make([]Instruction, len(c.children))
	for i, child := range c.children {
		parts[i] = child.GetField(name)
	}
	return Concat(parts...)
}

func (c *Concatenated) Apply(f func([]Scalar) []Scalar, resultKind ScalarKind) Instruction {
	if !c.dtype.IsScalar() {
		errkind.Invariant("apply: dtype %v is not scalar", c.dtype)
	}
	parts := make([]Instruction, len(c.children))
	for i, child := range c.children {
		parts[i] = child.Apply(f, resultKind)
	}
	return Concat(parts...)
}

func (c *Concatenated) At(i uint64) map[string]Scalar {
	idx, off := c.childIndex(i)
	return c.children[idx].At(off)
}

func (c *Concatenated) instrMarker() {}

// Children returns c's direct children in order. It is the escape hatch
// callers outside this package use to walk a Concatenated's structure
// without flattening it (e.g. the channel package's left-broadening pass).
func (c *Concatenated) Children() []Instruction { return c.children }

// breakConcatenations flattens any Concatenated among xs one level, so
// Concat never nests a Concatenated directly inside another.
func breakConcatenations(xs []Instruction) []Instruction {
	out := make([]Instruction, 0, len(xs))
	for _, x := range xs {
		if nested, ok := x.(*Concatenated); ok {
			out = append(out, nested.children...)
		} else {
			out = append(out, x)
		}
	}
	return out
}

// Concat builds the concatenation of one or more instructions, restoring the
// algebra's invariants: empty-length children are dropped, nested
// Concatenated children are flattened, and adjacent Patterns are merged into
// a single buffer. A single surviving child is returned unwrapped.
//
// Concat panics (an invariant violation, never recovered) if called with no
// arguments or with mismatched dtypes — these only happen from a programming
// error in a caller, never from user-authored sequence content.
func Concat(xs ...Instruction) Instruction {
	if len(xs) == 0 {
		errkind.Invariant("concat requires at least one instruction")
	}
	dtype := xs[0].Dtype()
	for _, x := range xs[1:] {
		checkSameDtype("concat", dtype, x.Dtype())
	}

	flat := breakConcatenations(xs)

	nonEmpty := make([]Instruction, 0, len(flat))
	for _, x := range flat {
		if x.Len() > 0 {
			nonEmpty = append(nonEmpty, x)
		}
	}
	if len(nonEmpty) == 0 {
		return Empty(dtype)
	}

	merged := make([]Instruction, 0, len(nonEmpty))
	for _, x := range nonEmpty {
		if len(merged) > 0 {
			prevPattern, prevOK := merged[len(merged)-1].(*Pattern)
			curPattern, curOK := x.(*Pattern)
			if prevOK && curOK {
				merged[len(merged)-1] = mergePatterns(prevPattern, curPattern)
				continue
			}
		}
		merged = append(merged, x)
	}

	if len(merged) == 1 {
		return merged[0]
	}
	return newConcatenated(merged)
}

func mergePatterns(a, b *Pattern) *Pattern {
	cols := make(map[string][]Scalar, len(a.dtype.Fields))
	for _, f := range a.dtype.Fields {
		cols[f.Name] = append(append([]Scalar(nil), a.columns[f.Name]...), b.columns[f.Name]...)
	}
	return &Pattern{dtype: a.dtype, length: a.length + b.length, columns: cols}
}
