package command

import (
	"encoding/json"

	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/model"
)

type decoder func(json.RawMessage) (model.Command, error)

func decodeAs[T model.Command](raw json.RawMessage) (model.Command, error) {
	var c T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

var decoders = map[string]decoder{
	NameSelect:            decodeAs[Select],
	NameDeselect:          decodeAs[Deselect],
	NameDeselectAll:       decodeAs[DeselectAll],
	NameSelectAll:         decodeAs[SelectAll],
	NameSelectEnd:         decodeAs[SelectEnd],
	NameAddNodes:          decodeAs[AddNodes],
	NameUpdateNode:        decodeAs[UpdateNode],
	NameUpdateNodes:       decodeAs[UpdateNodes],
	NameDeleteNodes:       decodeAs[DeleteNodes],
	NameMoveNodesBy:       decodeAs[MoveNodesBy],
	NameMoveNodes:         decodeAs[MoveNodes],
	NameResizeStart:       decodeAs[ResizeStart],
	NameResizeNode:        decodeAs[ResizeNode],
	NameResizeEnd:         decodeAs[ResizeEnd],
	NameRotateNodeTo:      decodeAs[RotateNodeTo],
	NameChangeZOrder:      decodeAs[ChangeZOrder],
	NameAddToGroup:        decodeAs[AddToGroup],
	NameRemoveFromGroup:   decodeAs[RemoveFromGroup],
	NameAddEdges:          decodeAs[AddEdges],
	NameUpdateEdge:        decodeAs[UpdateEdge],
	NameUpdateEdges:       decodeAs[UpdateEdges],
	NameDeleteEdges:       decodeAs[DeleteEdges],
	NameStartLinking:      decodeAs[StartLinking],
	NameMoveTemporaryEdge: decodeAs[MoveTemporaryEdge],
	NameFinishLinking:     decodeAs[FinishLinking],
	NameAddPorts:          decodeAs[AddPorts],
	NameUpdatePorts:       decodeAs[UpdatePorts],
	NameDeletePorts:       decodeAs[DeletePorts],
	NameAddEdgeLabels:     decodeAs[AddEdgeLabels],
	NameUpdateEdgeLabels:  decodeAs[UpdateEdgeLabels],
	NameDeleteEdgeLabels:  decodeAs[DeleteEdgeLabels],
	NameMoveViewport:      decodeAs[MoveViewport],
	NameMoveViewportBy:    decodeAs[MoveViewportBy],
	NameZoom:              decodeAs[Zoom],
	NameCenterOnNode:      decodeAs[CenterOnNode],
	NameCenterOnRect:      decodeAs[CenterOnRect],
	NameResizeViewport:    decodeAs[ResizeViewport],
	NameCopy:              decodeAs[Copy],
	NamePaste:             decodeAs[Paste],
	NameCut:               decodeAs[Cut],
	NameDeleteSelection:   decodeAs[DeleteSelection],
	NameInit:              decodeAs[Init],
}

// Decode builds the built-in command called name from its JSON payload. An
// empty payload yields the zero command.
func Decode(name string, payload json.RawMessage) (model.Command, error) {
	dec, ok := decoders[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidCommand, "unknown command %q", name)
	}
	cmd, err := dec(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidCommand, err, "decode %s", name)
	}
	return cmd, nil
}

// Envelope is the serialized form of a command: its name and payload.
type Envelope struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode decodes the envelope.
func (e Envelope) Decode() (model.Command, error) { return Decode(e.Command, e.Payload) }

// Encode wraps cmd in an envelope.
func Encode(cmd model.Command) (Envelope, error) {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return Envelope{}, errors.Wrap(errors.ErrCodeInvalidCommand, err, "encode %s", cmd.CommandName())
	}
	return Envelope{Command: cmd.CommandName(), Payload: raw}, nil
}
