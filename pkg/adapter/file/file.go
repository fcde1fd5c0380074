// Package file provides a model adapter that keeps the diagram in memory and
// writes it back to a state file after every change.
package file

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowcore/pkg/adapter/memory"
	fio "github.com/matzehuels/flowcore/pkg/io"
	"github.com/matzehuels/flowcore/pkg/model"
)

// Adapter is a memory adapter persisted to one state file. The format
// follows the file extension (see package io).
type Adapter struct {
	*memory.Adapter

	path   string
	logger *log.Logger

	mu      sync.Mutex
	lastErr error
	saves   int
	stop    func()
}

// Open loads path, or starts from an empty diagram when it does not exist
// yet. The file is only created by the first write.
func Open(path string, logger *log.Logger) (*Adapter, error) {
	if logger == nil {
		logger = log.Default()
	}
	state := model.State{Metadata: model.DefaultMetadata()}
	if _, err := os.Stat(path); err == nil {
		if state, err = fio.ImportState(path); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	a := &Adapter{Adapter: memory.New(state), path: path, logger: logger}
	a.stop = a.OnChange(a.save)
	return a, nil
}

// save writes the current state to a temporary file next to path and
// renames it over path, so readers never see a partial file.
func (a *Adapter) save() {
	a.mu.Lock()
	defer a.mu.Unlock()

	var buf bytes.Buffer
	err := fio.WriteState(a.State(), &buf, fio.FormatFor(a.path))
	if err == nil {
		err = writeAtomic(a.path, buf.Bytes())
	}
	a.lastErr = err
	if err != nil {
		a.logger.Error("persist state failed", "path", a.path, "err", err)
		return
	}
	a.saves++
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

// Path returns the backing file.
func (a *Adapter) Path() string { return a.path }

// Err returns the error of the most recent save, if it failed.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Saves counts successful saves.
func (a *Adapter) Saves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves
}

// Close stops persisting. Writes after Close stay in memory.
func (a *Adapter) Close() error {
	a.stop()
	return a.Err()
}
