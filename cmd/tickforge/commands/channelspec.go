package commands

import (
	"encoding/json"
	"fmt"

	"tickforge/internal/channel"
)

// channelSpec is the JSON description of one channel.Output tree. Exactly
// one combinator's fields are populated per node; Kind selects which.
type channelSpec struct {
	Kind string `json:"kind"`

	// "constant"
	Value   string `json:"value,omitempty"`
	Digital bool   `json:"digital,omitempty"`

	// "laneref"
	Name    string       `json:"name,omitempty"`
	Default *channelSpec `json:"default,omitempty"`

	// "advance" / "delay"
	Input  *channelSpec `json:"input,omitempty"`
	Amount string       `json:"amount,omitempty"`

	// "broadenleft"
	Width string `json:"width,omitempty"`

	// "calibratedmapping"
	Points     []pointFile `json:"points,omitempty"`
	OutputUnit string      `json:"output_unit,omitempty"`
}

type pointFile struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// build turns a channelSpec into the channel.Output tree it describes.
func (s channelSpec) build() (channel.Output, error) {
	switch s.Kind {
	case "constant":
		return &channel.Constant{Value: s.Value, Digital: s.Digital}, nil

	case "laneref":
		var fallback channel.Output
		if s.Default != nil {
			built, err := s.Default.build()
			if err != nil {
				return nil, fmt.Errorf("laneref %q default: %w", s.Name, err)
			}
			fallback = built
		}
		return &channel.LaneRef{Name: s.Name, Default: fallback}, nil

	case "advance":
		input, err := s.requireInput()
		if err != nil {
			return nil, err
		}
		return &channel.Advance{Input: input, Advance: s.Amount}, nil

	case "delay":
		input, err := s.requireInput()
		if err != nil {
			return nil, err
		}
		return &channel.Delay{Input: input, Delay: s.Amount}, nil

	case "broadenleft":
		input, err := s.requireInput()
		if err != nil {
			return nil, err
		}
		return &channel.BroadenLeft{Input: input, Width: s.Width}, nil

	case "calibratedmapping":
		input, err := s.requireInput()
		if err != nil {
			return nil, err
		}
		points := make([]channel.Point, len(s.Points))
		for i, p := range s.Points {
			points[i] = channel.Point{X: p.X, Y: p.Y}
		}
		outputUnit, err := lookupOrDimensionless(s.OutputUnit)
		if err != nil {
			return nil, fmt.Errorf("calibratedmapping output unit: %w", err)
		}
		return &channel.CalibratedMapping{Input: input, Points: points, OutputUnit: outputUnit}, nil

	default:
		return nil, fmt.Errorf("unknown channel kind %q", s.Kind)
	}
}

func (s channelSpec) requireInput() (channel.Output, error) {
	if s.Input == nil {
		return nil, fmt.Errorf("channel kind %q requires \"input\"", s.Kind)
	}
	return s.Input.build()
}

// UnmarshalJSON rejects malformed channel nodes early (e.g. "kind" missing)
// instead of deferring the error to build(), which runs much later in the
// compile pipeline.
func (s *channelSpec) UnmarshalJSON(data []byte) error {
	type alias channelSpec
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Kind == "" {
		return fmt.Errorf("channel node missing \"kind\"")
	}
	*s = channelSpec(a)
	return nil
}
