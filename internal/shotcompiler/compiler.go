package shotcompiler

import (
	"fmt"
	"sort"

	"tickforge/internal/errkind"
	"tickforge/internal/expr"
)

// DeviceCompiler is the per-device half of compilation: once-per-sequence
// initialization (resolving a device's static configuration into whatever
// form its driver wants) and once-per-shot parameter compilation (running
// that device's channel outputs against a shot's variables).
type DeviceCompiler interface {
	CompileInit(seq *SequenceContext) (any, error)
	CompileShot(ctx *ShotContext) (any, error)
}

// State is one stage of a Compiler's lifecycle. Valid transitions are
// strictly forward except around CompileShot, which is accepted from both
// StateCompiled and StateShotEmitted (a failed shot returns to
// StateCompiled), so a sequence's devices are initialized once and its
// shots compiled many times.
type State int

const (
	StateIdle State = iota
	StateCompiling
	StateCompiled
	StateShotCompiling
	StateShotEmitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCompiling:
		return "compiling"
	case StateCompiled:
		return "compiled"
	case StateShotCompiling:
		return "shot-compiling"
	case StateShotEmitted:
		return "shot-emitted"
	default:
		return "unknown"
	}
}

// Compiler is the facade a sequence runner drives: CompileSequence once,
// then CompileShot once per shot.
type Compiler struct {
	state           State
	seq             *SequenceContext
	deviceCompilers map[string]DeviceCompiler
	initResults     map[string]any
}

// NewCompiler builds a Compiler in StateIdle for the given sequence and its
// registered per-device compilers.
func NewCompiler(seq *SequenceContext, deviceCompilers map[string]DeviceCompiler) *Compiler {
	return &Compiler{
		state:           StateIdle,
		seq:             seq,
		deviceCompilers: deviceCompilers,
		initResults:     make(map[string]any),
	}
}

func (c *Compiler) State() State { return c.state }

// CompileSequence initializes every registered device against the
// sequence's static configuration. Devices are initialized in
// lexicographic name order so a run is reproducible across processes.
func (c *Compiler) CompileSequence() error {
	if c.state != StateIdle {
		return fmt.Errorf("shotcompiler: CompileSequence called in state %s, want %s", c.state, StateIdle)
	}
	c.state = StateCompiling

	names := make([]string, 0, len(c.deviceCompilers))
	for name := range c.deviceCompilers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		result, err := c.deviceCompilers[name].CompileInit(c.seq)
		if err != nil {
			c.state = StateIdle
			return errkind.NewUserError("failed to initialize device").WithDevice(name, "").WithCause(err)
		}
		c.initResults[name] = result
	}
	c.state = StateCompiled
	return nil
}

// CompileShot evaluates every registered device's shot parameters for one
// shot's variables, failing if any lane declared on the sequence went
// unread by every channel.
func (c *Compiler) CompileShot(variables expr.Env) (map[string]any, error) {
	if c.state != StateCompiled && c.state != StateShotEmitted {
		return nil, fmt.Errorf("shotcompiler: CompileShot called in state %s, want %s or %s", c.state, StateCompiled, StateShotEmitted)
	}
	c.state = StateShotCompiling

	ctx, err := NewShotContext(c.seq, variables, c.deviceCompilers)
	if err != nil {
		c.state = StateCompiled
		return nil, err
	}

	names := make([]string, 0, len(c.deviceCompilers))
	for name := range c.deviceCompilers {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]any, len(names))
	for _, name := range names {
		params, err := ctx.ShotParameters(name)
		if err != nil {
			c.state = StateCompiled
			return nil, err
		}
		results[name] = params
	}

	if unused := ctx.UnusedLanes(); len(unused) > 0 {
		sort.Strings(unused)
		c.state = StateCompiled
		return nil, errkind.NewUserError(fmt.Sprintf("lanes declared but never read by any channel: %v", unused))
	}

	c.state = StateShotEmitted
	return results, nil
}
