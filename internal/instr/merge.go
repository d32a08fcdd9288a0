package instr

// Merge combines two equal-length instructions into a single struct-dtype
// instruction carrying both as named fields (leftName/rightName; a bare
// scalar field uses key "" and is renamed to the given name), so two
// channels sampled on the same tick grid can be packed into one struct-dtype
// instruction.
//
// Merge recurses structurally when both sides share the same top-level
// shape (both Ramp, both Repeated with matching block size, both
// Concatenated with identical block boundaries) so the result stays as
// compact as its inputs; anything less aligned falls back to flattening both
// sides to a Pattern first. This is a deliberately scoped-down version of a
// fully general lcm-block merge: exact alignment is the common case (two
// lanes sharing one step schedule), and the flatten fallback is still
// correct, just not maximally compact, for the remainder.
//
// A length mismatch is an invariant violation: callers are expected to only
// ever merge instructions already known to share a length (e.g. two lanes
// compiled against the same step schedule).
func Merge(a, b Instruction, leftName, rightName string) Instruction {
	lengthOf("merge", b.Len(), a.Len())

	if ra, ok := a.(*Ramp); ok {
		if rb, ok2 := b.(*Ramp); ok2 {
			return stackRamps(ra, rb, leftName, rightName)
		}
	}
	if ra, ok := a.(*Repeated); ok {
		if rb, ok2 := b.(*Repeated); ok2 && ra.count == rb.count && ra.child.Len() == rb.child.Len() {
			return Repeat(Merge(ra.child, rb.child, leftName, rightName), ra.count)
		}
	}
	if ca, ok := a.(*Concatenated); ok {
		if cb, ok2 := b.(*Concatenated); ok2 && sameBounds(ca.bounds, cb.bounds) {
			parts := make([]Instruction, len(ca.children))
			for i := range ca.children {
				parts[i] = Merge(ca.children[i], cb.children[i], leftName, rightName)
			}
			return Concat(parts...)
		}
	}
	return mergePatternsNamed(a.ToPattern(), b.ToPattern(), leftName, rightName)
}

func sameBounds(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mergePatternsNamed(a, b *Pattern, leftName, rightName string) *Pattern {
	fields := make([]Field, 0, len(a.dtype.Fields)+len(b.dtype.Fields))
	columns := make(map[string][]Scalar, len(a.columns)+len(b.columns))
	for _, f := range a.dtype.Fields {
		name := rename(f.Name, leftName)
		fields = append(fields, Field{Name: name, Kind: f.Kind})
		columns[name] = a.columns[f.Name]
	}
	for _, f := range b.dtype.Fields {
		name := rename(f.Name, rightName)
		fields = append(fields, Field{Name: name, Kind: f.Kind})
		columns[name] = b.columns[f.Name]
	}
	return NewPattern(Dtype{Fields: fields}, columns)
}
