package units

import (
	"math"
	"testing"
)

func TestDecibelConvertsAsPowerRatio(t *testing.T) {
	u := MustLookup("dB")
	cases := []struct {
		db   float64
		want float64
	}{
		{0, 1.0},
		{10, 10.0},
		{20, 100.0},
	}
	for _, c := range cases {
		q := Quantity{Magnitude: c.db, Unit: u}
		if got := q.BaseMagnitude(); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("%v dB -> base = %v, want %v", c.db, got, c.want)
		}
	}
}

func TestDecibelRoundTripsThroughLinear(t *testing.T) {
	u := MustLookup("dB")
	linear := Quantity{Magnitude: 10, Unit: DimensionlessUnit()}
	db, err := linear.MagnitudeIn(u)
	if err != nil {
		t.Fatalf("MagnitudeIn: %v", err)
	}
	if math.Abs(db-10.0) > 1e-9 {
		t.Fatalf("10.0 linear -> %v dB, want 10.0", db)
	}
}

func TestDecibelIsNeverPrefixed(t *testing.T) {
	if _, err := Lookup("mdB"); err == nil {
		t.Fatal("expected mdB to be rejected: dB is never SI-prefixed")
	}
}
