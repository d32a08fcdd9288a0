package commands

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"tickforge/internal/channel"
	"tickforge/internal/instr"
	"tickforge/internal/orchestrator"
	"tickforge/internal/shotcompiler"
	"tickforge/internal/store"
)

// CompileCommand reads a sequence file, compiles every shot it describes,
// and prints a per-device summary. With -store it also persists the
// session's setup and every shot's result to a SQLite database.
func CompileCommand(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	storeDSN := fs.String("store", "", "path to a SQLite database to persist results into")
	poolSize := fs.Int("workers", orchestrator.DefaultPoolSize, "number of shots to compile concurrently")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: tickforge compile [-store path] [-workers n] <sequence.json>")
	}

	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("reading sequence file: %w", err)
	}
	var sf sequenceFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return fmt.Errorf("parsing sequence file: %w", err)
	}

	sessionID := sf.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	seq, deviceCompilers, err := buildSequence(sf)
	if err != nil {
		return err
	}

	compiler := shotcompiler.NewCompiler(seq, deviceCompilers)
	if err := compiler.CompileSequence(); err != nil {
		return fmt.Errorf("initializing devices: %w", err)
	}
	log.Printf("session %s: initialized %d device(s)", sessionID, len(deviceCompilers))

	var sessionStore *store.SQLiteStore
	if *storeDSN != "" {
		sessionStore, err = store.Open(*storeDSN)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer sessionStore.Close()

		deviceConfigs, err := json.Marshal(sf.Devices)
		if err != nil {
			return fmt.Errorf("encoding device configs: %w", err)
		}
		timeLanes, err := json.Marshal(sf.Lanes)
		if err != nil {
			return fmt.Errorf("encoding time lanes: %w", err)
		}
		if err := sessionStore.SaveSessionSetup(context.Background(), sessionID, deviceConfigs, timeLanes); err != nil {
			return fmt.Errorf("saving session setup: %w", err)
		}
	}

	requests := make([]orchestrator.ShotRequest, len(sf.Shots))
	for i, shot := range sf.Shots {
		env, err := shot.toEnv()
		if err != nil {
			return fmt.Errorf("shot %d: %w", i, err)
		}
		requests[i] = orchestrator.ShotRequest{Index: i, Variables: env}
	}

	// shotcompiler.Compiler advances through a single state machine per
	// call to CompileShot, so concurrent shots share one compiler behind a
	// mutex: many shots can be *in flight* (variable resolution, retries)
	// but the actual compile step runs one at a time, matching the "single-
	// threaded per shot" compilation model the pool's CompileFunc contract
	// only requires to be race-free, not internally parallel.
	var mu sync.Mutex
	compile := func(ctx context.Context, req orchestrator.ShotRequest) (map[string]any, error) {
		mu.Lock()
		defer mu.Unlock()
		return compiler.CompileShot(req.Variables)
	}

	sink := func(ctx context.Context, result orchestrator.ShotResult) error {
		started := time.Now()
		printShotSummary(result)
		if sessionStore != nil {
			encoded, err := encodeDeviceParameters(result.Parameters)
			if err != nil {
				return fmt.Errorf("shot %d: %w", result.Index, err)
			}
			finished := time.Now()
			if err := sessionStore.SaveShotResult(ctx, sessionID, result.Index, encoded, started, finished); err != nil {
				return fmt.Errorf("shot %d: %w", result.Index, err)
			}
		}
		return nil
	}

	pool := orchestrator.NewPool(*poolSize, compile, orchestrator.DefaultRetryPolicy)
	if err := pool.Run(context.Background(), requests, sink); err != nil {
		return err
	}

	log.Printf("session %s: compiled %d shot(s)", sessionID, len(requests))
	return nil
}

func buildSequence(sf sequenceFile) (*shotcompiler.SequenceContext, map[string]shotcompiler.DeviceCompiler, error) {
	lanes := make(map[string]channel.LaneSpec, len(sf.Lanes))
	for name, lf := range sf.Lanes {
		spec, err := lf.toLaneSpec()
		if err != nil {
			return nil, nil, fmt.Errorf("lane %q: %w", name, err)
		}
		lanes[name] = spec
	}

	deviceConfigurations := make(map[string]any, len(sf.Devices))
	deviceCompilers := make(map[string]shotcompiler.DeviceCompiler, len(sf.Devices))
	names := make([]string, 0, len(sf.Devices))
	for name := range sf.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		df := sf.Devices[name]
		device, err := newJSONDevice(name, df)
		if err != nil {
			return nil, nil, err
		}
		deviceCompilers[name] = device
		deviceConfigurations[name] = df.Config
	}

	seq := &shotcompiler.SequenceContext{
		DeviceConfigurations: deviceConfigurations,
		StepNames:            sf.StepNames,
		StepDurationExprs:    sf.StepDurationExprs,
		Lanes:                lanes,
	}
	return seq, deviceCompilers, nil
}

func printShotSummary(result orchestrator.ShotResult) {
	deviceNames := make([]string, 0, len(result.Parameters))
	for name := range result.Parameters {
		deviceNames = append(deviceNames, name)
	}
	sort.Strings(deviceNames)

	fmt.Printf("shot %d:\n", result.Index)
	for _, device := range deviceNames {
		channels, ok := result.Parameters[device].(map[string]any)
		if !ok {
			fmt.Printf("  %s: %v\n", device, result.Parameters[device])
			continue
		}
		chNames := make([]string, 0, len(channels))
		for name := range channels {
			chNames = append(chNames, name)
		}
		sort.Strings(chNames)
		for _, ch := range chNames {
			info, ok := channels[ch].(map[string]any)
			if !ok {
				continue
			}
			length, _ := info["length"].(uint64)
			unit, _ := info["unit"].(string)
			fmt.Printf("  %s.%s: %s samples (%s)\n", device, ch, humanize.Comma(int64(length)), unitLabel(unit))
		}
	}
}

func unitLabel(symbol string) string {
	if symbol == "" {
		return "dimensionless"
	}
	return symbol
}

func encodeDeviceParameters(parameters map[string]any) (map[string]json.RawMessage, error) {
	encoded := make(map[string]json.RawMessage, len(parameters))
	for device, value := range parameters {
		channels, ok := value.(map[string]any)
		if !ok {
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("device %q: %w", device, err)
			}
			encoded[device] = raw
			continue
		}

		out := make(map[string]any, len(channels))
		for ch, info := range channels {
			m, ok := info.(map[string]any)
			if !ok {
				out[ch] = info
				continue
			}
			entry := map[string]any{"unit": m["unit"], "length": m["length"]}
			if ins, ok := m["instruction"].(instr.Instruction); ok {
				entry["instruction"] = ins
			}
			out[ch] = entry
		}
		raw, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", device, err)
		}
		encoded[device] = raw
	}
	return encoded, nil
}
