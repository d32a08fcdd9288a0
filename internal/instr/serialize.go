package instr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
)

// wire is the tagged-union JSON shape every Instruction marshals to:
// {"kind":"pat",...}, {"kind":"cat","children":[...]}, {"kind":"rep",...},
// or {"kind":"ramp",...}. It doubles as the unmarshal target since the kind
// tag determines which of the other fields are populated.
type wire struct {
	Kind string `json:"kind"`

	// pat
	Dtype json.RawMessage `json:"dtype,omitempty"`
	Data  string          `json:"data,omitempty"` // base64 of a column-major dump

	// cat
	Children []wire `json:"children,omitempty"`

	// rep
	N     uint64 `json:"n,omitempty"`
	Child *wire  `json:"child,omitempty"`

	// ramp
	Start map[string]float64 `json:"start,omitempty"`
	Stop  map[string]float64 `json:"stop,omitempty"`
	Len   uint64             `json:"len,omitempty"`
}

type wireField struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func dtypeToWire(d Dtype) json.RawMessage {
	fields := make([]wireField, len(d.Fields))
	for i, f := range d.Fields {
		fields[i] = wireField{Name: f.Name, Kind: f.Kind.String()}
	}
	b, _ := json.Marshal(fields)
	return b
}

func dtypeFromWire(raw json.RawMessage) (Dtype, error) {
	var fields []wireField
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Dtype{}, err
	}
	out := Dtype{Fields: make([]Field, len(fields))}
	for i, f := range fields {
		kind, err := kindFromString(f.Kind)
		if err != nil {
			return Dtype{}, err
		}
		out.Fields[i] = Field{Name: f.Name, Kind: kind}
	}
	return out, nil
}

func kindFromString(s string) (ScalarKind, error) {
	switch s {
	case "bool":
		return KindBool, nil
	case "int64":
		return KindInt64, nil
	case "uint64":
		return KindUint64, nil
	case "float32":
		return KindFloat32, nil
	case "float64":
		return KindFloat64, nil
	default:
		return 0, fmt.Errorf("instr: unknown scalar kind %q", s)
	}
}

// MarshalJSON implements the tagged wire format for a flat Pattern: dtype plus
// a base64 dump of every field's raw samples, concatenated field by field in
// declaration order, 8 bytes per sample (bool and integer kinds widen to
// uint64/int64 for a fixed stride; floats of either kind are encoded as
// float64 bits regardless of declared precision, since tickforge only ever
// produces float64 samples internally).
func (p *Pattern) MarshalJSON() ([]byte, error) {
	data := make([]byte, 0, 8*int(p.length)*len(p.dtype.Fields))
	for _, f := range p.dtype.Fields {
		for _, v := range p.columns[f.Name] {
			data = appendScalarBytes(data, v)
		}
	}
	w := wire{
		Kind:  "pat",
		Dtype: dtypeToWire(p.dtype),
		Data:  base64.StdEncoding.EncodeToString(data),
	}
	return json.Marshal(w)
}

func appendScalarBytes(buf []byte, v Scalar) []byte {
	var bits uint64
	switch v.Kind {
	case KindBool:
		if v.B {
			bits = 1
		}
	case KindInt64:
		bits = uint64(v.I)
	case KindUint64:
		bits = v.U
	case KindFloat32, KindFloat64:
		bits = floatBits(v.F)
	}
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(bits>>(8*i)))
	}
	return buf
}

func floatBits(f float64) uint64 {
	return math.Float64bits(f)
}

// MarshalJSON for Concatenated: {"kind":"cat","children":[...]}.
func (c *Concatenated) MarshalJSON() ([]byte, error) {
	children := make([]json.RawMessage, len(c.children))
	for i, ch := range c.children {
		b, err := marshalInstruction(ch)
		if err != nil {
			return nil, err
		}
		children[i] = b
	}
	return json.Marshal(struct {
		Kind     string            `json:"kind"`
		Children []json.RawMessage `json:"children"`
	}{Kind: "cat", Children: children})
}

// MarshalJSON for Repeated: {"kind":"rep","n":...,"child":...}.
func (r *Repeated) MarshalJSON() ([]byte, error) {
	child, err := marshalInstruction(r.child)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Kind  string          `json:"kind"`
		N     uint64          `json:"n"`
		Child json.RawMessage `json:"child"`
	}{Kind: "rep", N: r.count, Child: child})
}

// MarshalJSON for Ramp: {"kind":"ramp","dtype":...,"start":...,"stop":...,"len":...}.
func (r *Ramp) MarshalJSON() ([]byte, error) {
	w := wire{Kind: "ramp", Dtype: dtypeToWire(r.dtype), Start: r.start, Stop: r.stop, Len: r.length}
	return json.Marshal(w)
}

func marshalInstruction(x Instruction) (json.RawMessage, error) {
	type marshaler interface {
		MarshalJSON() ([]byte, error)
	}
	m, ok := x.(marshaler)
	if !ok {
		return nil, fmt.Errorf("instr: %T does not implement MarshalJSON", x)
	}
	return m.MarshalJSON()
}

// Unmarshal decodes the tagged wire format back into an Instruction tree.
func Unmarshal(data []byte) (Instruction, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return unmarshalWire(w)
}

func unmarshalWire(w wire) (Instruction, error) {
	switch w.Kind {
	case "pat":
		return unmarshalPattern(w)
	case "cat":
		parts := make([]Instruction, len(w.Children))
		for i, cw := range w.Children {
			x, err := unmarshalWire(cw)
			if err != nil {
				return nil, err
			}
			parts[i] = x
		}
		return Concat(parts...), nil
	case "rep":
		child, err := unmarshalWire(*w.Child)
		if err != nil {
			return nil, err
		}
		return Repeat(child, w.N), nil
	case "ramp":
		dtype, err := dtypeFromWire(w.Dtype)
		if err != nil {
			return nil, err
		}
		return &Ramp{dtype: dtype, start: w.Start, stop: w.Stop, length: w.Len}, nil
	default:
		return nil, fmt.Errorf("instr: unknown wire kind %q", w.Kind)
	}
}

func unmarshalPattern(w wire) (Instruction, error) {
	dtype, err := dtypeFromWire(w.Dtype)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(w.Data)
	if err != nil {
		return nil, err
	}
	length := len(raw) / (8 * len(dtype.Fields))
	columns := make(map[string][]Scalar, len(dtype.Fields))
	offset := 0
	for _, f := range dtype.Fields {
		col := make([]Scalar, length)
		for i := 0; i < length; i++ {
			bits := readUint64(raw[offset : offset+8])
			col[i] = scalarFromBits(f.Kind, bits)
			offset += 8
		}
		columns[f.Name] = col
	}
	return NewPattern(dtype, columns), nil
}

func readUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func scalarFromBits(kind ScalarKind, bits uint64) Scalar {
	switch kind {
	case KindBool:
		return BoolScalar(bits != 0)
	case KindInt64:
		return Int64Scalar(int64(bits))
	case KindUint64:
		return Uint64Scalar(bits)
	case KindFloat32:
		return Float32Scalar(math.Float64frombits(bits))
	default:
		return Float64Scalar(math.Float64frombits(bits))
	}
}
