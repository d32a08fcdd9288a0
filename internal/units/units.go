// Package units implements the process-wide unit registry: the single piece
// of global mutable-at-init, read-only-thereafter state allowed by the shot
// compiler's resource model. It is initialized once via sync.Once and is
// safe to read concurrently from many goroutines afterwards.
package units

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// Dimension identifies what kind of physical quantity a unit measures.
type Dimension int

const (
	Dimensionless Dimension = iota
	DimTime
	DimFrequency
	DimVoltage
	DimAngle
)

// Conversion selects how a Unit's Scale is interpreted when converting to or
// from the base unit of its dimension. Almost every unit is a plain linear
// multiple of its base unit; dB is not, so it gets its own kind rather than
// forcing Scale to carry a non-linear relationship it cannot express.
type Conversion int

const (
	// LinearScale converts via magnitude*Scale / magnitude/Scale.
	LinearScale Conversion = iota
	// LogRatioDB converts a dB value to a linear power ratio
	// (base = 10^(x/10)) and back (x = 10*log10(base)); Scale is unused for
	// units of this kind. 0 dB == 1.0, 10 dB == 10.0.
	LogRatioDB
)

// Unit is an interned unit symbol: its dimension and the scale factor that
// converts a magnitude expressed in this unit into the base unit for its
// dimension (seconds, hertz, volts, radians).
type Unit struct {
	Symbol     string
	Dim        Dimension
	Scale      float64
	Conversion Conversion
}

// Quantity pairs a magnitude with a Unit. The zero Quantity is the
// dimensionless value 0.
type Quantity struct {
	Magnitude float64
	Unit      Unit
}

// BaseMagnitude returns the magnitude expressed in the base unit of q's
// dimension (e.g. seconds for any time unit).
func (q Quantity) BaseMagnitude() float64 {
	if q.Unit.Conversion == LogRatioDB {
		return math.Pow(10, q.Magnitude/10)
	}
	return q.Magnitude * q.Unit.Scale
}

// IsDimensionless reports whether q carries no physical dimension.
func (q Quantity) IsDimensionless() bool {
	return q.Unit.Dim == Dimensionless
}

// MagnitudeIn converts q (assumed already normalized to base units) into the
// requested output unit, the last step of a lane or channel evaluation
// before samples leave the core as plain float64s.
func (q Quantity) MagnitudeIn(u Unit) (float64, error) {
	if !Compatible(q.Unit, u) {
		return 0, fmt.Errorf("units: cannot express %s quantity in %s", q.Unit.Symbol, u.Symbol)
	}
	base := q.BaseMagnitude()
	if u.Conversion == LogRatioDB {
		return 10 * math.Log10(base), nil
	}
	return base / u.Scale, nil
}

var (
	once     sync.Once
	units    map[string]Unit
	prefixes map[string]float64
)

func initRegistry() {
	units = map[string]Unit{
		"":    {Symbol: "", Dim: Dimensionless, Scale: 1},
		"rad": {Symbol: "rad", Dim: DimAngle, Scale: 1},
		"°":   {Symbol: "°", Dim: DimAngle, Scale: 3.14159265358979323846 / 180},
		"s":   {Symbol: "s", Dim: DimTime, Scale: 1},
		"Hz":  {Symbol: "Hz", Dim: DimFrequency, Scale: 1},
		"V":   {Symbol: "V", Dim: DimVoltage, Scale: 1},
		// dB denotes a dimensionless power ratio: 0 dB == 1.0, 10 dB == 10.0,
		// i.e. 10^(x/10).
		"dB": {Symbol: "dB", Dim: Dimensionless, Scale: 1, Conversion: LogRatioDB},
	}
	prefixes = map[string]float64{
		"n": 1e-9,
		"u": 1e-6,
		"µ": 1e-6,
		"m": 1e-3,
		"k": 1e3,
		"M": 1e6,
		"G": 1e9,
	}
}

func registry() (map[string]Unit, map[string]float64) {
	once.Do(initRegistry)
	return units, prefixes
}

// Lookup resolves a textual unit suffix (e.g. "ns", "kHz", "dB", "") to a
// Unit with its scale factor relative to the base unit of its dimension. It
// is the Go counterpart of parsing the `unit` half of the `number unit?`
// token of a number-with-unit literal.
func Lookup(symbol string) (Unit, error) {
	table, prefixTable := registry()
	if u, ok := table[symbol]; ok {
		return u, nil
	}
	// dB is never prefixed; everything else may carry a single SI prefix.
	for p, scale := range prefixTable {
		if strings.HasPrefix(symbol, p) {
			base := strings.TrimPrefix(symbol, p)
			if u, ok := table[base]; ok && base != "" && base != "dB" {
				return Unit{Symbol: symbol, Dim: u.Dim, Scale: u.Scale * scale}, nil
			}
		}
	}
	return Unit{}, fmt.Errorf("units: unknown unit %q", symbol)
}

// MustLookup is Lookup but panics on failure; only safe for unit literals
// known to be valid at compile time (e.g. in tests or internal call sites).
func MustLookup(symbol string) Unit {
	u, err := Lookup(symbol)
	if err != nil {
		panic(err)
	}
	return u
}

// DimensionlessUnit is the Unit of plain numbers.
func DimensionlessUnit() Unit {
	u, _ := Lookup("")
	return u
}

// Seconds is the base Unit of time.
func Seconds() Unit {
	u, _ := Lookup("s")
	return u
}

// BaseUnitFor returns the canonical scale-1 Unit for a dimension, the form
// every Quantity is normalized to once its magnitude has been folded into
// base units. Expression evaluation carries values in this form throughout
// so unit arithmetic never needs to re-derive a symbol from a dimension.
func BaseUnitFor(dim Dimension) Unit {
	switch dim {
	case DimTime:
		return Unit{Symbol: "s", Dim: DimTime, Scale: 1}
	case DimFrequency:
		return Unit{Symbol: "Hz", Dim: DimFrequency, Scale: 1}
	case DimVoltage:
		return Unit{Symbol: "V", Dim: DimVoltage, Scale: 1}
	case DimAngle:
		return Unit{Symbol: "rad", Dim: DimAngle, Scale: 1}
	default:
		return Unit{Symbol: "", Dim: Dimensionless, Scale: 1}
	}
}

// Compatible reports whether two units measure the same dimension and can
// therefore be added, compared, or converted between one another.
func Compatible(a, b Unit) bool {
	return a.Dim == b.Dim
}

// Mul combines two units for multiplication: the result is dimensionless
// only if both operands are dimensionless, otherwise it is a synthetic unit
// with scale 1 (operands are expected in base units) whose dimension is that
// of the first dimensioned operand. Multiplying by a dimensionless factor
// therefore keeps the other operand's dimension; a product of two
// dimensioned units keeps only the left operand's dimension, since a
// Dimension cannot express a compound such as V·s.
func Mul(a, b Unit) Unit {
	if a.Dim == Dimensionless && b.Dim == Dimensionless {
		return DimensionlessUnit()
	}
	return Unit{Symbol: a.Symbol + "·" + b.Symbol, Dim: compoundDim(a.Dim, b.Dim), Scale: 1}
}

// Div is the algebraic analogue of Mul for division.
func Div(a, b Unit) Unit {
	if a.Dim == b.Dim {
		return DimensionlessUnit()
	}
	return Unit{Symbol: a.Symbol + "/" + b.Symbol, Dim: compoundDim(b.Dim, a.Dim), Scale: 1}
}

func compoundDim(a, b Dimension) Dimension {
	if a == Dimensionless {
		return b
	}
	return a
}
