package flowcore

import "github.com/matzehuels/flowcore/pkg/model"

// ModelAdapter supplies and persists the raw diagram state. The engine
// reads the current state through it before every update and writes the
// committed state back. OnChange listeners must run after every write;
// the engine reindexes and redraws from them.
type ModelAdapter interface {
	Nodes() []model.Node
	Edges() []model.Edge
	Metadata() model.Metadata

	UpdateNodes(nodes []model.Node)
	UpdateEdges(edges []model.Edge)
	UpdateMetadata(m model.Metadata)

	OnChange(fn func()) (unsubscribe func())
}

// StateReader is implemented by adapters that can return all three parts
// from one consistent snapshot.
type StateReader interface {
	State() model.State
}

// StateWriter is implemented by adapters that can replace all three parts
// with a single change notification.
type StateWriter interface {
	WriteState(s model.State)
}
