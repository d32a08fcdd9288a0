// Package commands implements tickforge's subcommands, mirroring the
// teacher CLI's one-file-per-command layout under cmd/<tool>/commands.
package commands

import (
	"encoding/json"
	"fmt"

	"tickforge/internal/channel"
	"tickforge/internal/expr"
	"tickforge/internal/lane"
	"tickforge/internal/units"
)

// sequenceFile is the on-disk JSON shape `compile` reads: a sequence's
// static device configurations and time lanes, the per-device channel
// descriptions that turn those lanes into device parameters, and the list
// of shots (variable bindings) to compile against them.
type sequenceFile struct {
	SessionID         string                     `json:"session_id"`
	Devices           map[string]deviceFile      `json:"devices"`
	StepNames         []string                   `json:"step_names"`
	StepDurationExprs []string                   `json:"step_duration_exprs"`
	Lanes             map[string]laneFile        `json:"lanes"`
	Shots             []shotFile                 `json:"shots"`
}

type deviceFile struct {
	DeltaNs  int64                  `json:"delta_ns"`
	Config   json.RawMessage        `json:"config"`
	Channels map[string]channelSpec `json:"channels"`
}

type laneFile struct {
	Kind       string     `json:"kind"` // "digital" or "analog"
	Cells      []cellFile `json:"cells"`
	OutputUnit string     `json:"output_unit"`
}

type cellFile struct {
	Bool *bool   `json:"bool,omitempty"`
	Ramp bool    `json:"ramp,omitempty"`
	Expr *string `json:"expr,omitempty"`
}

type shotFile struct {
	Variables map[string]string `json:"variables"`
}

func (c cellFile) toCell() (lane.Cell, error) {
	switch {
	case c.Bool != nil:
		return lane.BoolCell(*c.Bool), nil
	case c.Ramp:
		return lane.RampCell(), nil
	case c.Expr != nil:
		return lane.ExprCell(*c.Expr), nil
	default:
		return lane.Cell{}, fmt.Errorf("lane cell has none of bool/ramp/expr set")
	}
}

func (f laneFile) toLaneSpec() (channel.LaneSpec, error) {
	cells := make([]lane.Cell, len(f.Cells))
	for i, cf := range f.Cells {
		cell, err := cf.toCell()
		if err != nil {
			return channel.LaneSpec{}, fmt.Errorf("cell %d: %w", i, err)
		}
		cells[i] = cell
	}

	var kind channel.LaneKind
	switch f.Kind {
	case "digital":
		kind = channel.DigitalLane
	case "analog":
		kind = channel.AnalogLane
	default:
		return channel.LaneSpec{}, fmt.Errorf("unknown lane kind %q (want \"digital\" or \"analog\")", f.Kind)
	}

	outputUnit := units.DimensionlessUnit()
	if f.OutputUnit != "" {
		u, err := units.Lookup(f.OutputUnit)
		if err != nil {
			return channel.LaneSpec{}, fmt.Errorf("lane output unit: %w", err)
		}
		outputUnit = u
	}

	return channel.LaneSpec{Kind: kind, Cells: cells, OutputUnit: outputUnit}, nil
}

// toEnv resolves a shot's variable bindings (expression source text) into
// an expr.Env of already-evaluated quantities, the form the compiler core
// expects.
func (f shotFile) toEnv() (expr.Env, error) {
	env := make(expr.Env, len(f.Variables))
	for name, src := range f.Variables {
		q, err := evalQuantity(src, nil)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		env[name] = q
	}
	return env, nil
}

// lookupOrDimensionless resolves a unit symbol, defaulting to dimensionless
// when symbol is empty (the common case for already-normalized channels).
func lookupOrDimensionless(symbol string) (units.Unit, error) {
	if symbol == "" {
		return units.DimensionlessUnit(), nil
	}
	return units.Lookup(symbol)
}

// evalQuantity parses and evaluates a scalar expression against env (nil
// means "no variables"); a shot file's variable bindings go through it.
func evalQuantity(src string, env expr.Env) (units.Quantity, error) {
	e, err := expr.Parse(src)
	if err != nil {
		return units.Quantity{}, err
	}
	return expr.Eval(e, env)
}
