package commands

import (
	"encoding/json"
	"fmt"

	"tickforge/internal/channel"
	"tickforge/internal/shotcompiler"
	"tickforge/internal/timing"
)

// jsonDevice is the generic DeviceCompiler every sequence file drives: its
// channels are built once from the file's declarative channelSpec tree, and
// CompileShot just evaluates each of them at the device's tick grid. A real
// deployment would give each physical device its own DeviceCompiler (e.g.
// one translating Instructions into a specific AWG's register writes);
// jsonDevice exists so the CLI can exercise the shot-compiler facade without
// depending on any particular piece of hardware.
type jsonDevice struct {
	name     string
	step     timing.TimeStep
	channels map[string]channel.Output
	config   json.RawMessage
}

func newJSONDevice(name string, f deviceFile) (*jsonDevice, error) {
	if f.DeltaNs <= 0 {
		return nil, fmt.Errorf("device %q: delta_ns must be positive", name)
	}
	step, err := timing.NewTimeStepNanos(f.DeltaNs)
	if err != nil {
		return nil, fmt.Errorf("device %q: %w", name, err)
	}

	channels := make(map[string]channel.Output, len(f.Channels))
	for chName, spec := range f.Channels {
		out, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("device %q channel %q: %w", name, chName, err)
		}
		channels[chName] = out
	}

	return &jsonDevice{name: name, step: step, channels: channels, config: f.Config}, nil
}

func (d *jsonDevice) CompileInit(seq *shotcompiler.SequenceContext) (any, error) {
	return map[string]any{"config": json.RawMessage(d.config)}, nil
}

func (d *jsonDevice) CompileShot(ctx *shotcompiler.ShotContext) (any, error) {
	advance, delay := uint64(0), uint64(0)
	for chName, out := range d.channels {
		a, dly, err := out.MaxAdvanceDelay(d.step, ctx.Variables())
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", chName, err)
		}
		if a > advance {
			advance = a
		}
		if dly > delay {
			delay = dly
		}
	}

	results := make(map[string]any, len(d.channels))
	for chName, out := range d.channels {
		instruction, unit, err := out.Evaluate(d.step, advance, delay, ctx)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", chName, err)
		}
		results[chName] = map[string]any{
			"instruction": instruction,
			"unit":        unit.Symbol,
			"length":      instruction.Len(),
		}
	}
	return results, nil
}
