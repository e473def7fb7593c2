package matrixstate

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeNamesFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestLoadNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.yaml")
	writeNamesFile(t, path, "inputs:\n  1: Apple TV\n  2: Console\noutputs:\n  1: Living Room\n")

	nf, err := LoadNames(path)
	if err != nil {
		t.Fatalf("LoadNames: %v", err)
	}
	if nf.Inputs[1] != "Apple TV" || nf.Inputs[2] != "Console" {
		t.Errorf("inputs = %v", nf.Inputs)
	}
	if nf.Outputs[1] != "Living Room" {
		t.Errorf("outputs = %v", nf.Outputs)
	}
}

func TestLoadNames_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.yaml")
	writeNamesFile(t, path, "inputs: [not a map\n")

	if _, err := LoadNames(path); err == nil {
		t.Error("malformed yaml should fail to load")
	}
}

func TestWatchNames_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "names.yaml")
	writeNamesFile(t, path, "inputs:\n  1: Apple TV\n")

	store := New(8, 8)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go WatchNames(ctx, store, path, logger)

	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return store.InputName(1) == "Apple TV"
	}, "initial names never loaded")

	writeNamesFile(t, path, "inputs:\n  1: Blu-ray\n")

	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return store.InputName(1) == "Blu-ray"
	}, "rename never picked up by watcher")
}

func TestWatchNames_KeepsPreviousOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "names.yaml")
	writeNamesFile(t, path, "inputs:\n  1: Apple TV\n")

	store := New(8, 8)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go WatchNames(ctx, store, path, logger)

	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return store.InputName(1) == "Apple TV"
	}, "initial names never loaded")

	writeNamesFile(t, path, "inputs: {broken\n")

	// Give the watcher time to attempt (and skip) the bad reload.
	time.Sleep(500 * time.Millisecond)
	if got := store.InputName(1); got != "Apple TV" {
		t.Errorf("input name = %q, want previous name kept after parse error", got)
	}
}
