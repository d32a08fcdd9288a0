// Package shotcompiler orchestrates compiling one sequence's devices and,
// for each shot of that sequence, evaluating every device's channel outputs
// against the shot's variables — the layer above internal/channel that
// supplies its ShotContext interface and enforces that every lane a
// sequence declares gets read by at least one channel.
package shotcompiler

import (
	"tickforge/internal/channel"
	"tickforge/internal/errkind"
	"tickforge/internal/expr"
	"tickforge/internal/timing"
)

// SequenceContext holds the static, shot-independent description of a
// sequence being compiled: its device configurations, step schedule, and
// time lanes. It never changes once built.
type SequenceContext struct {
	DeviceConfigurations map[string]any
	StepNames            []string
	StepDurationExprs    []string
	Lanes                map[string]channel.LaneSpec
}

// DeviceConfiguration returns the configuration for the named device.
func (s *SequenceContext) DeviceConfiguration(name string) (any, bool) {
	cfg, ok := s.DeviceConfigurations[name]
	return cfg, ok
}

// Lane returns the raw, uncompiled lane spec with the given name.
func (s *SequenceContext) Lane(name string) (channel.LaneSpec, bool) {
	l, ok := s.Lanes[name]
	return l, ok
}

// ShotContext is one shot's compilation state: the sequence it belongs to,
// the variables for this particular shot, and the bookkeeping needed to
// enforce that every declared lane gets consumed. It implements
// channel.ShotContext.
type ShotContext struct {
	seq             *SequenceContext
	variables       expr.Env
	deviceCompilers map[string]DeviceCompiler

	stepBounds []timing.Time
	consumed   map[string]bool
	shotParams map[string]any
}

// NewShotContext evaluates the sequence's step durations against variables
// and builds a fresh ShotContext for compiling one shot.
func NewShotContext(seq *SequenceContext, variables expr.Env, deviceCompilers map[string]DeviceCompiler) (*ShotContext, error) {
	durations, err := EvaluateStepDurations(seq.StepNames, seq.StepDurationExprs, variables)
	if err != nil {
		return nil, err
	}
	consumed := make(map[string]bool, len(seq.Lanes))
	for name := range seq.Lanes {
		consumed[name] = false
	}
	return &ShotContext{
		seq:             seq,
		variables:       variables,
		deviceCompilers: deviceCompilers,
		stepBounds:      timing.StepBounds(durations),
		consumed:        consumed,
		shotParams:      make(map[string]any),
	}, nil
}

func (c *ShotContext) Variables() expr.Env       { return c.variables }
func (c *ShotContext) StepBounds() []timing.Time { return c.stepBounds }
func (c *ShotContext) ShotDuration() timing.Time { return c.stepBounds[len(c.stepBounds)-1] }

func (c *ShotContext) Lane(name string) (channel.LaneSpec, bool) {
	return c.seq.Lane(name)
}

func (c *ShotContext) MarkConsumed(name string) { c.consumed[name] = true }

// UnusedLanes returns the names of lanes declared on the sequence that no
// channel read during this shot's compilation.
func (c *ShotContext) UnusedLanes() []string {
	var unused []string
	for name, used := range c.consumed {
		if !used {
			unused = append(unused, name)
		}
	}
	return unused
}

// ShotParameters returns the device's compiled shot parameters, computing
// and caching them on first request so a device referenced by multiple
// channels is only compiled once per shot.
func (c *ShotContext) ShotParameters(device string) (any, error) {
	if p, ok := c.shotParams[device]; ok {
		return p, nil
	}
	compiler, ok := c.deviceCompilers[device]
	if !ok {
		return nil, errkind.NewUserError("no compiler registered for device").WithDevice(device, "")
	}
	params, err := compiler.CompileShot(c)
	if err != nil {
		return nil, errkind.NewUserError("failed to compile shot parameters").WithDevice(device, "").WithCause(err)
	}
	c.shotParams[device] = params
	return params, nil
}
