package shotcompiler

import (
	"testing"

	"tickforge/internal/channel"
	"tickforge/internal/expr"
	"tickforge/internal/lane"
	"tickforge/internal/timing"
)

type stubDevice struct {
	initCalls int
	channels  map[string]channel.Output
}

func (d *stubDevice) CompileInit(seq *SequenceContext) (any, error) {
	d.initCalls++
	return "initialized", nil
}

func (d *stubDevice) CompileShot(ctx *ShotContext) (any, error) {
	step, err := timing.NewTimeStepNanos(1)
	if err != nil {
		return nil, err
	}
	results := make(map[string]any, len(d.channels))
	for name, out := range d.channels {
		instruction, _, err := out.Evaluate(step, 0, 0, ctx)
		if err != nil {
			return nil, err
		}
		results[name] = instruction
	}
	return results, nil
}

func newSequence(t *testing.T) *SequenceContext {
	t.Helper()
	return &SequenceContext{
		DeviceConfigurations: map[string]any{"aom": "cfg"},
		StepNames:            []string{"step0", "step1"},
		StepDurationExprs:    []string{"5 ns", "5 ns"},
		Lanes: map[string]channel.LaneSpec{
			"shutter": {
				Kind:  channel.DigitalLane,
				Cells: []lane.Cell{lane.BoolCell(true), lane.BoolCell(false)},
			},
		},
	}
}

func TestCompilerLifecycle(t *testing.T) {
	seq := newSequence(t)
	device := &stubDevice{channels: map[string]channel.Output{
		"shutter": &channel.LaneRef{Name: "shutter"},
	}}
	c := NewCompiler(seq, map[string]DeviceCompiler{"aom": device})

	if c.State() != StateIdle {
		t.Fatalf("initial state = %v, want %v", c.State(), StateIdle)
	}
	if err := c.CompileSequence(); err != nil {
		t.Fatalf("CompileSequence: %v", err)
	}
	if c.State() != StateCompiled {
		t.Fatalf("state after CompileSequence = %v, want %v", c.State(), StateCompiled)
	}
	if device.initCalls != 1 {
		t.Fatalf("initCalls = %d, want 1", device.initCalls)
	}

	results, err := c.CompileShot(expr.Env{})
	if err != nil {
		t.Fatalf("CompileShot: %v", err)
	}
	if c.State() != StateShotEmitted {
		t.Fatalf("state after CompileShot = %v, want %v", c.State(), StateShotEmitted)
	}
	if _, ok := results["aom"]; !ok {
		t.Fatalf("results missing device aom: %v", results)
	}

	// A second shot should be compilable from StateShotEmitted.
	if _, err := c.CompileShot(expr.Env{}); err != nil {
		t.Fatalf("second CompileShot: %v", err)
	}
}

func TestCompileShotFailsOnUnusedLane(t *testing.T) {
	seq := newSequence(t)
	device := &stubDevice{channels: map[string]channel.Output{
		"shutter": &channel.Constant{Value: "1", Digital: true},
	}}
	c := NewCompiler(seq, map[string]DeviceCompiler{"aom": device})
	if err := c.CompileSequence(); err != nil {
		t.Fatalf("CompileSequence: %v", err)
	}
	if _, err := c.CompileShot(expr.Env{}); err == nil {
		t.Fatal("expected error: lane \"shutter\" declared but never read")
	}
	if c.State() != StateCompiled {
		t.Fatalf("state after failed CompileShot = %v, want %v", c.State(), StateCompiled)
	}
}

func TestEvaluateStepDurations(t *testing.T) {
	durations, err := EvaluateStepDurations(
		[]string{"a", "b"},
		[]string{"10 ns", "5 ns"},
		expr.Env{},
	)
	if err != nil {
		t.Fatalf("EvaluateStepDurations: %v", err)
	}
	if len(durations) != 2 {
		t.Fatalf("got %d durations, want 2", len(durations))
	}
	if durations[0].Seconds() != 10e-9 {
		t.Errorf("durations[0] = %v, want 10ns", durations[0].Seconds())
	}
	if durations[1].Seconds() != 5e-9 {
		t.Errorf("durations[1] = %v, want 5ns", durations[1].Seconds())
	}
}

func TestEvaluateStepDurationsRejectsNegative(t *testing.T) {
	_, err := EvaluateStepDurations([]string{"a"}, []string{"-1 ns"}, expr.Env{})
	if err == nil {
		t.Fatal("expected error for negative step duration")
	}
}

func TestEvaluateStepDurationsRejectsNonTimeUnit(t *testing.T) {
	_, err := EvaluateStepDurations([]string{"a"}, []string{"1 V"}, expr.Env{})
	if err == nil {
		t.Fatal("expected error for non-time step duration")
	}
}
