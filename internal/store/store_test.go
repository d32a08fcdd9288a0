package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionSetupRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	deviceConfigs := json.RawMessage(`{"aom":{"channel":1}}`)
	timeLanes := json.RawMessage(`{"shutter":{"kind":"digital"}}`)

	if err := s.SaveSessionSetup(ctx, "sess-1", deviceConfigs, timeLanes); err != nil {
		t.Fatalf("SaveSessionSetup: %v", err)
	}

	gotConfigs, err := s.LoadDeviceConfigs(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadDeviceConfigs: %v", err)
	}
	if string(gotConfigs) != string(deviceConfigs) {
		t.Errorf("device configs = %s, want %s", gotConfigs, deviceConfigs)
	}

	gotLanes, err := s.LoadTimeLanes(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadTimeLanes: %v", err)
	}
	if string(gotLanes) != string(timeLanes) {
		t.Errorf("time lanes = %s, want %s", gotLanes, timeLanes)
	}
}

func TestSessionSetupOverwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveSessionSetup(ctx, "sess-1", json.RawMessage(`{"a":1}`), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("SaveSessionSetup (first): %v", err)
	}
	if err := s.SaveSessionSetup(ctx, "sess-1", json.RawMessage(`{"a":2}`), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("SaveSessionSetup (second): %v", err)
	}

	got, err := s.LoadDeviceConfigs(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadDeviceConfigs: %v", err)
	}
	if string(got) != `{"a":2}` {
		t.Errorf("device configs = %s, want overwritten value", got)
	}
}

func TestLoadMissingSessionFails(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.LoadDeviceConfigs(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected error loading device configs for unknown session")
	}
}

func TestSaveShotResultRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveSessionSetup(ctx, "sess-1", json.RawMessage(`{}`), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("SaveSessionSetup: %v", err)
	}

	params := map[string]json.RawMessage{
		"aom": json.RawMessage(`{"frequency_hz":80000000}`),
	}
	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(5 * time.Millisecond)

	if err := s.SaveShotResult(ctx, "sess-1", 0, params, started, finished); err != nil {
		t.Fatalf("SaveShotResult: %v", err)
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT device_parameters FROM shot_results WHERE session_id = ? AND shot_index = ?`, "sess-1", 0).Scan(&raw)
	if err != nil {
		t.Fatalf("querying shot result: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("unmarshalling stored parameters: %v", err)
	}
	if string(decoded["aom"]) != `{"frequency_hz":80000000}` {
		t.Errorf("stored aom parameters = %s", decoded["aom"])
	}
}

func TestSaveShotResultOverwritesSameIndex(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SaveSessionSetup(ctx, "sess-1", json.RawMessage(`{}`), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("SaveSessionSetup: %v", err)
	}

	now := time.Now()
	first := map[string]json.RawMessage{"aom": json.RawMessage(`1`)}
	second := map[string]json.RawMessage{"aom": json.RawMessage(`2`)}

	if err := s.SaveShotResult(ctx, "sess-1", 0, first, now, now); err != nil {
		t.Fatalf("SaveShotResult (first): %v", err)
	}
	if err := s.SaveShotResult(ctx, "sess-1", 0, second, now, now); err != nil {
		t.Fatalf("SaveShotResult (second): %v", err)
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT device_parameters FROM shot_results WHERE session_id = ? AND shot_index = ?`, "sess-1", 0).Scan(&raw)
	if err != nil {
		t.Fatalf("querying shot result: %v", err)
	}
	if raw != `{"aom":2}` {
		t.Errorf("device_parameters = %s, want {\"aom\":2}", raw)
	}
}
