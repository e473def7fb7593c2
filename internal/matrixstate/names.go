package matrixstate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// NamesFile is the on-disk port naming table.
type NamesFile struct {
	Inputs  map[int]string `yaml:"inputs"`
	Outputs map[int]string `yaml:"outputs"`
}

// LoadNames reads and parses a names file.
func LoadNames(path string) (NamesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NamesFile{}, fmt.Errorf("matrixstate: read names file: %w", err)
	}
	var nf NamesFile
	if err := yaml.Unmarshal(data, &nf); err != nil {
		return NamesFile{}, fmt.Errorf("matrixstate: parse names file: %w", err)
	}
	return nf, nil
}

// WatchNames loads the names file into the store and keeps it hot-reloaded
// until ctx is cancelled. Editors replace files via rename, so the watcher
// observes the containing directory and filters on the file name. A reload
// that fails to parse is logged and skipped; the previous names stay active.
func WatchNames(ctx context.Context, store *Store, path string, logger *slog.Logger) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("matrixstate: resolve names path: %w", err)
	}

	reload := func() {
		nf, err := LoadNames(abs)
		if err != nil {
			logger.Warn("names reload failed, keeping previous names",
				slog.String("path", abs),
				slog.String("error", err.Error()))
			return
		}
		store.SetNames(nf.Inputs, nf.Outputs)
		logger.Info("port names loaded",
			slog.String("path", abs),
			slog.Int("inputs", len(nf.Inputs)),
			slog.Int("outputs", len(nf.Outputs)))
	}
	reload()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("matrixstate: create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("matrixstate: watch names dir: %w", err)
	}

	// Debounce bursts of write events from editors and atomic saves.
	var debounce *time.Timer
	var debounceCh <-chan time.Time
	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(200 * time.Millisecond)
			debounceCh = debounce.C
		} else {
			debounce.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case <-debounceCh:
			reload()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("names watcher error", slog.String("error", err.Error()))
		}
	}
}
