package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/model"
)

// Format is a state file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatJSON
}

// tomlState mirrors model.State with TOML table names.
type tomlState struct {
	Nodes    []model.Node   `toml:"nodes"`
	Edges    []model.Edge   `toml:"edges"`
	Metadata model.Metadata `toml:"metadata"`
}

// ReadState decodes and validates a state from r.
func ReadState(r io.Reader, format Format) (model.State, error) {
	var s model.State
	switch format {
	case FormatTOML:
		var doc tomlState
		if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
			return model.State{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode toml state")
		}
		s = model.State(doc)
	default:
		if err := json.NewDecoder(r).Decode(&s); err != nil {
			return model.State{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode json state")
		}
	}
	if s.Metadata.Viewport.Scale == 0 {
		s.Metadata.Viewport.Scale = 1
	}
	if err := Validate(s); err != nil {
		return model.State{}, err
	}
	return s, nil
}

// WriteState encodes s to w.
func WriteState(s model.State, w io.Writer, format Format) error {
	switch format {
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(tomlState(s)); err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	}
	return nil
}

// ImportState reads a state file. The format follows the extension.
func ImportState(path string) (model.State, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.State{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	s, err := ReadState(f, FormatFor(path))
	if err != nil {
		return model.State{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ExportState writes a state file. The format follows the extension.
func ExportState(s model.State, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteState(s, f, FormatFor(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Validate checks id uniqueness and edge endpoints.
func Validate(s model.State) error {
	nodeIDs := make([]string, len(s.Nodes))
	known := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if err := errors.ValidateID("node", n.ID); err != nil {
			return err
		}
		nodeIDs[i] = n.ID
		known[n.ID] = true
	}
	if err := errors.ValidateUniqueIDs("node", nodeIDs); err != nil {
		return err
	}

	edgeIDs := make([]string, len(s.Edges))
	for i, e := range s.Edges {
		if err := errors.ValidateID("edge", e.ID); err != nil {
			return err
		}
		if !known[e.Source] || !known[e.Target] {
			return errors.New(errors.ErrCodeInvalidInput, "edge %q references unknown node", e.ID)
		}
		edgeIDs[i] = e.ID
	}
	return errors.ValidateUniqueIDs("edge", edgeIDs)
}
