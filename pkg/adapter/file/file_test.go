package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fio "github.com/matzehuels/flowcore/pkg/io"
	"github.com/matzehuels/flowcore/pkg/model"
)

func TestOpenMissingStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "diagram.json")

	a, err := Open(path, nil)
	require.NoError(t, err)
	assert.Empty(t, a.Nodes())
	assert.Equal(t, 1.0, a.Metadata().Viewport.Scale)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing is written before the first change")
}

func TestWritesArePersisted(t *testing.T) {
	for _, name := range []string{"diagram.json", "diagram.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			a, err := Open(path, nil)
			require.NoError(t, err)

			a.UpdateNodes([]model.Node{{ID: "a", Position: model.Point{X: 3, Y: 4}}})
			require.NoError(t, a.Err())
			assert.Equal(t, 1, a.Saves())

			reopened, err := Open(path, nil)
			require.NoError(t, err)
			assert.Equal(t, a.Nodes(), reopened.Nodes())
		})
	}
}

func TestOpenExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagram.json")
	require.NoError(t, fio.ExportState(model.State{
		Nodes:    []model.Node{{ID: "x"}},
		Metadata: model.DefaultMetadata(),
	}, path))

	a, err := Open(path, nil)
	require.NoError(t, err)
	require.Len(t, a.Nodes(), 1)
	assert.Equal(t, "x", a.Nodes()[0].ID)
}

func TestOpenRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagram.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes":[{"id":"a"},{"id":"a"}]}`), 0o644))

	_, err := Open(path, nil)
	assert.Error(t, err)
}

func TestCloseStopsPersisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagram.json")
	a, err := Open(path, nil)
	require.NoError(t, err)

	a.UpdateNodes([]model.Node{{ID: "a"}})
	require.NoError(t, a.Close())
	a.UpdateNodes(nil)

	assert.Equal(t, 1, a.Saves())
	got, err := fio.ImportState(path)
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 1)
}
