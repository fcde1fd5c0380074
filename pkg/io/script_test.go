package io

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/flowcore/pkg/command"
	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/model"
)

func TestReadScriptLines(t *testing.T) {
	script := `
# select then nudge
{"command": "select", "payload": {"nodeIds": ["a"]}}

{"command": "moveNodesBy", "payload": {"nodeIds": ["a"], "delta": {"x": 10, "y": 0}}}
{"command": "deleteSelection"}
`
	cmds, err := ReadScript(strings.NewReader(script))
	require.NoError(t, err)
	assert.Equal(t, []model.Command{
		command.Select{NodeIDs: []string{"a"}},
		command.MoveNodesBy{NodeIDs: []string{"a"}, Delta: model.Point{X: 10}},
		command.DeleteSelection{},
	}, cmds)
}

func TestReadScriptArray(t *testing.T) {
	cmds, err := ReadScript(strings.NewReader(`[{"command":"selectAll"},{"command":"zoom","payload":{"factor":2}}]`))
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, command.Zoom{Factor: 2}, cmds[1])
}

func TestReadScriptErrors(t *testing.T) {
	_, err := ReadScript(strings.NewReader(`{"command":"launchRockets"}`))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidCommand))

	_, err = ReadScript(strings.NewReader("{\"command\":\"select\"}\nnot json"))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidCommand))
	assert.Contains(t, err.Error(), "line 2")
}

func TestWriteScriptRoundTrip(t *testing.T) {
	in := []model.Command{
		command.AddNodes{Nodes: []model.Node{{ID: "n", Position: model.Point{X: 1, Y: 2}}}},
		command.Paste{Position: &model.Point{X: 3, Y: 4}},
		command.Copy{},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteScript(in, &buf))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	out, err := ReadScript(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
