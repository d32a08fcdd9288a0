package instr

import "tickforge/internal/errkind"

// Ramp is a compact linear interpolation between two endpoints over `length`
// samples, sampled at construction time only when flattened. Every field of
// a Ramp's dtype must be floating point: sample i of field f is
// start[f] + (stop[f]-start[f]) * i / length, for i in [0, length).
//
// A single-field Ramp is the common case (one analog channel ramping); a
// multi-field Ramp arises from merging several same-length Ramps into one
// (see Merge), so their samples stay computed lazily together instead of
// eagerly flattening each side first.
type Ramp struct {
	dtype  Dtype
	start  map[string]float64
	stop   map[string]float64
	length uint64
}

// NewRamp builds a single-field Ramp of the given kind (Float32 or Float64)
// ramping linearly from start to stop over length samples.
func NewRamp(kind ScalarKind, start, stop float64, length uint64) *Ramp {
	if !kind.IsFloating() {
		errkind.Invariant("ramp: dtype kind %v is not floating point", kind)
	}
	return &Ramp{
		dtype:  ScalarDtype(kind),
		start:  map[string]float64{"": start},
		stop:   map[string]float64{"": stop},
		length: length,
	}
}

func (r *Ramp) Len() uint64   { return r.length }
func (r *Ramp) Dtype() Dtype  { return r.dtype }
func (r *Ramp) Depth() uint32 { return 0 }

func (r *Ramp) sampleAt(field string, kind ScalarKind, i uint64) Scalar {
	start, stop := r.start[field], r.stop[field]
	var v float64
	if r.length <= 1 {
		v = start
	} else {
		v = start + (stop-start)*float64(i)/float64(r.length)
	}
	if kind == KindFloat32 {
		return Float32Scalar(v)
	}
	return Float64Scalar(v)
}

func (r *Ramp) ToPattern() *Pattern {
	columns := make(map[string][]Scalar, len(r.dtype.Fields))
	for _, f := range r.dtype.Fields {
		col := make([]Scalar, r.length)
		for i := uint64(0); i < r.length; i++ {
			col[i] = r.sampleAt(f.Name, f.Kind, i)
		}
		columns[f.Name] = col
	}
	return NewPattern(r.dtype, columns)
}

// Slice on a Ramp recomputes fresh endpoints for the sub-range rather than
// flattening: Slice(a,b) is itself a Ramp from value(a) to value(b) (value(b)
// being the endpoint one step past the included range) over b-a samples,
// matching the original's endpoint-recomputation slice so a ramp stays O(1)
// no matter how many times it is re-sliced.
func (r *Ramp) Slice(a, b uint64) Instruction {
	checkRange("ramp slice", a, b, r.length)
	if a == b {
		return Empty(r.dtype)
	}
	newStart := make(map[string]float64, len(r.start))
	newStop := make(map[string]float64, len(r.start))
	for _, f := range r.dtype.Fields {
		start, stop := r.start[f.Name], r.stop[f.Name]
		step := (stop - start) / float64(r.length)
		newStart[f.Name] = start + step*float64(a)
		newStop[f.Name] = start + step*float64(b)
	}
	return &Ramp{dtype: r.dtype, start: newStart, stop: newStop, length: b - a}
}

func (r *Ramp) GetField(name string) Instruction {
	kind, ok := r.dtype.HasField(name)
	if !ok {
		errkind.Invariant("ramp: no field %q in dtype %v", name, r.dtype)
	}
	return &Ramp{
		dtype:  ScalarDtype(kind),
		start:  map[string]float64{"": r.start[name]},
		stop:   map[string]float64{"": r.stop[name]},
		length: r.length,
	}
}

// Apply on a Ramp gives up the compact representation: there is no general
// way to apply an arbitrary function and stay linear, so it flattens first.
func (r *Ramp) Apply(f func([]Scalar) []Scalar, resultKind ScalarKind) Instruction {
	return r.ToPattern().Apply(f, resultKind)
}

func (r *Ramp) At(i uint64) map[string]Scalar {
	if i >= r.length {
		errkind.Invariant("ramp: index %d out of range for length %d", i, r.length)
	}
	row := make(map[string]Scalar, len(r.dtype.Fields))
	for _, f := range r.dtype.Fields {
		row[f.Name] = r.sampleAt(f.Name, f.Kind, i)
	}
	return row
}

func (r *Ramp) instrMarker() {}

// Bounds returns the (start, stop) endpoints of a scalar-dtype Ramp. It
// panics on a struct-dtype (multi-field) Ramp; callers that might hold one
// of those should go through GetField first.
func (r *Ramp) Bounds() (start, stop float64) {
	if !r.dtype.IsScalar() {
		errkind.Invariant("Bounds called on struct-dtype ramp %v", r.dtype)
	}
	return r.start[""], r.stop[""]
}

// stackRamps combines two same-length Ramps into one multi-field Ramp,
// renaming bare "" fields to leftName/rightName so their endpoints don't
// collide. It panics if the lengths differ (LengthMismatch).
func stackRamps(a, b *Ramp, leftName, rightName string) *Ramp {
	lengthOf("ramp merge", b.length, a.length)
	fields := make([]Field, 0, len(a.dtype.Fields)+len(b.dtype.Fields))
	start := make(map[string]float64, len(a.start)+len(b.start))
	stop := make(map[string]float64, len(a.stop)+len(b.stop))
	for _, f := range a.dtype.Fields {
		name := rename(f.Name, leftName)
		fields = append(fields, Field{Name: name, Kind: f.Kind})
		start[name] = a.start[f.Name]
		stop[name] = a.stop[f.Name]
	}
	for _, f := range b.dtype.Fields {
		name := rename(f.Name, rightName)
		fields = append(fields, Field{Name: name, Kind: f.Kind})
		start[name] = b.start[f.Name]
		stop[name] = b.stop[f.Name]
	}
	return &Ramp{dtype: Dtype{Fields: fields}, start: start, stop: stop, length: a.length}
}

func rename(current, fallback string) string {
	if current != "" {
		return current
	}
	return fallback
}
