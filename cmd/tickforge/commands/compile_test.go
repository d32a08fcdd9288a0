package commands

import (
	"encoding/json"
	"testing"

	"tickforge/internal/expr"
	"tickforge/internal/instr"
	"tickforge/internal/orchestrator"
	"tickforge/internal/shotcompiler"
)

// digitalPatternSequence builds the S1 scenario: a digital lane [true,
// false] over two 10ns steps at a 1ns grid, read by a single device channel.
func digitalPatternSequence(t *testing.T) sequenceFile {
	t.Helper()
	raw := []byte(`{
		"devices": {
			"aom": {
				"delta_ns": 1,
				"config": {"port": 1},
				"channels": {
					"shutter": {"kind": "laneref", "name": "shutter"}
				}
			}
		},
		"step_names": ["step0", "step1"],
		"step_duration_exprs": ["10 ns", "10 ns"],
		"lanes": {
			"shutter": {
				"kind": "digital",
				"cells": [{"bool": true}, {"bool": false}]
			}
		},
		"shots": [{"variables": {}}]
	}`)
	var sf sequenceFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return sf
}

func TestBuildSequenceAndCompileShot(t *testing.T) {
	sf := digitalPatternSequence(t)
	seq, deviceCompilers, err := buildSequence(sf)
	if err != nil {
		t.Fatalf("buildSequence: %v", err)
	}

	device, ok := deviceCompilers["aom"].(*jsonDevice)
	if !ok {
		t.Fatalf("expected *jsonDevice, got %T", deviceCompilers["aom"])
	}

	ctx, err := shotcompiler.NewShotContext(seq, expr.Env{}, deviceCompilers)
	if err != nil {
		t.Fatalf("building shot context: %v", err)
	}

	params, err := device.CompileShot(ctx)
	if err != nil {
		t.Fatalf("CompileShot: %v", err)
	}

	channels := params.(map[string]any)
	shutter := channels["shutter"].(map[string]any)
	instruction := shutter["instruction"].(instr.Instruction)

	if instruction.Len() != 20 {
		t.Fatalf("length = %d, want 20", instruction.Len())
	}
	for i := uint64(0); i < 10; i++ {
		if !instruction.At(i)[""].B {
			t.Fatalf("sample %d = false, want true", i)
		}
	}
	for i := uint64(10); i < 20; i++ {
		if instruction.At(i)[""].B {
			t.Fatalf("sample %d = true, want false", i)
		}
	}
}

func TestChannelSpecRejectsUnknownKind(t *testing.T) {
	var spec channelSpec
	err := json.Unmarshal([]byte(`{"kind":"bogus"}`), &spec)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := spec.build(); err == nil {
		t.Fatal("expected error building unknown channel kind")
	}
}

func TestChannelSpecRequiresKind(t *testing.T) {
	if err := json.Unmarshal([]byte(`{"value":"1"}`), new(channelSpec)); err == nil {
		t.Fatal("expected error for channel node missing kind")
	}
}

func TestEncodeDeviceParametersProducesValidJSON(t *testing.T) {
	result := orchestrator.ShotResult{
		Index: 0,
		Parameters: map[string]any{
			"aom": map[string]any{
				"shutter": map[string]any{
					"unit":   "",
					"length": uint64(4),
				},
			},
		},
	}
	encoded, err := encodeDeviceParameters(result.Parameters)
	if err != nil {
		t.Fatalf("encodeDeviceParameters: %v", err)
	}
	if _, ok := encoded["aom"]; !ok {
		t.Fatalf("missing device aom in encoded result: %v", encoded)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded["aom"], &decoded); err != nil {
		t.Fatalf("decoded JSON invalid: %v", err)
	}
}
