package aggregates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuetree/domain/core/entities"
	"valuetree/domain/core/valueobjects"
	"valuetree/domain/events"
)

func TestNewTree(t *testing.T) {
	tests := []struct {
		name     string
		project  string
		rootName string
		wantName string
	}{
		{name: "name from slug", project: "my-car", wantName: "My Car"},
		{name: "explicit name", project: "My Car", rootName: "My Car!", wantName: "My Car!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pid, err := valueobjects.NewProjectID(tt.project)
			require.NoError(t, err)

			tree, err := NewTree(pid, tt.rootName)
			require.NoError(t, err)

			root := tree.Root()
			assert.Equal(t, tt.wantName, root.Name)
			assert.False(t, root.ID.IsZero())
			assert.True(t, root.IsRoot())
			assert.Empty(t, root.Children)
			assert.Equal(t, 1, tree.Version())
			assert.Equal(t, 2, tree.NextVersion())

			evts := tree.GetUncommittedEvents()
			require.Len(t, evts, 1)
			assert.Equal(t, events.TypeTreeCreated, evts[0].GetEventType())
			assert.Equal(t, "my-car", evts[0].GetAggregateID())

			tree.MarkEventsAsCommitted()
			assert.Empty(t, tree.GetUncommittedEvents())
		})
	}

	_, err := NewTree(valueobjects.ProjectID{}, "")
	assert.Error(t, err)
}

func TestTree_ReplaceRoot(t *testing.T) {
	pid, err := valueobjects.NewProjectID("house")
	require.NoError(t, err)
	tree, err := NewTree(pid, "")
	require.NoError(t, err)

	original := tree.Root()

	invalid := original.Clone()
	invalid.Children = []*entities.Node{{ID: valueobjects.MustNodeID("a"), Name: "A"}}
	assert.Error(t, tree.ReplaceRoot(invalid), "child without parent reference")
	assert.Same(t, original, tree.Root())

	valid := original.Clone()
	valid.Children = []*entities.Node{{ID: valueobjects.MustNodeID("a"), Name: "A", Parent: valid.ID}}
	require.NoError(t, tree.ReplaceRoot(valid))
	assert.Same(t, valid, tree.Root())
}

func TestReconstructTree(t *testing.T) {
	pid, err := valueobjects.NewProjectID("house")
	require.NoError(t, err)
	root, err := entities.NewRootNode("House")
	require.NoError(t, err)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tree, err := ReconstructTree(pid, root, 7, created, created)
	require.NoError(t, err)
	assert.Equal(t, 7, tree.Version())
	assert.Equal(t, created, tree.CreatedAt())
	assert.Empty(t, tree.GetUncommittedEvents())

	_, err = ReconstructTree(pid, nil, 1, created, created)
	assert.Error(t, err)
}
