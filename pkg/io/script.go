package io

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/flowcore/pkg/command"
	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/model"
)

// ReadScript decodes a command script from r. Every envelope is decoded
// into its command, so an unknown command fails the whole script.
func ReadScript(r io.Reader) ([]model.Command, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	var envs []command.Envelope
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &envs); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidCommand, err, "decode script")
		}
	} else {
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for line := 1; sc.Scan(); line++ {
			text := bytes.TrimSpace(sc.Bytes())
			if len(text) == 0 || text[0] == '#' {
				continue
			}
			var env command.Envelope
			if err := json.Unmarshal(text, &env); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidCommand, err, "line %d", line)
			}
			envs = append(envs, env)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scan script: %w", err)
		}
	}

	cmds := make([]model.Command, 0, len(envs))
	for i, env := range envs {
		cmd, err := env.Decode()
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i+1, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// WriteScript encodes cmds as one envelope per line.
func WriteScript(cmds []model.Command, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, cmd := range cmds {
		env, err := command.Encode(cmd)
		if err != nil {
			return err
		}
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("encode %s: %w", cmd.CommandName(), err)
		}
	}
	return nil
}

// ImportScript reads a command script file.
func ImportScript(path string) ([]model.Command, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadScript(f)
}
