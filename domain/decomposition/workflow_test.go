package decomposition

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"valuetree/domain/core/aggregates"
	"valuetree/domain/core/entities"
	"valuetree/domain/core/valueobjects"
	"valuetree/domain/services"
	pkgerrors "valuetree/pkg/errors"
)

// treeAppender applies appends to a single in-memory tree
type treeAppender struct {
	tree    *aggregates.Tree
	mutator *services.TreeMutator
	calls   int
}

func newTreeAppender(t *testing.T) *treeAppender {
	t.Helper()
	pid, err := valueobjects.NewProjectID("my-car")
	require.NoError(t, err)
	tree, err := aggregates.NewTree(pid, "")
	require.NoError(t, err)
	return &treeAppender{tree: tree, mutator: services.NewTreeMutator(nil)}
}

func (a *treeAppender) Find(_ context.Context, _ valueobjects.ProjectID, id valueobjects.NodeID) (*entities.Node, error) {
	return a.mutator.Find(a.tree.Root(), id)
}

func (a *treeAppender) AppendChildren(
	_ context.Context,
	_ valueobjects.ProjectID,
	parentID valueobjects.NodeID,
	children []*entities.Node,
	meta *services.ChildMetadata,
) (*aggregates.Tree, error) {
	a.calls++
	root, err := a.mutator.InsertChildren(a.tree.Root(), parentID, children, meta)
	if err != nil {
		return nil, err
	}
	if err := a.tree.ReplaceRoot(root); err != nil {
		return nil, err
	}
	return a.tree, nil
}

type mockAppender struct {
	mock.Mock
}

func (m *mockAppender) Find(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.NodeID) (*entities.Node, error) {
	args := m.Called(ctx, projectID, id)
	node, _ := args.Get(0).(*entities.Node)
	return node, args.Error(1)
}

func (m *mockAppender) AppendChildren(
	ctx context.Context,
	projectID valueobjects.ProjectID,
	parentID valueobjects.NodeID,
	children []*entities.Node,
	meta *services.ChildMetadata,
) (*aggregates.Tree, error) {
	args := m.Called(ctx, projectID, parentID, children, meta)
	tree, _ := args.Get(0).(*aggregates.Tree)
	return tree, args.Error(1)
}

func rootTarget(a *treeAppender) Target {
	return Target{NodeID: a.tree.Root().ID, Name: a.tree.Root().Name}
}

func TestStart(t *testing.T) {
	iv := NewInterviewer(nil)
	a := newTreeAppender(t)

	w, err := iv.Start(a.tree.ProjectID(), "Car", rootTarget(a))
	require.NoError(t, err)

	assert.Equal(t, StateAwaitingChildCount, w.State)
	require.NotNil(t, w.Target)
	assert.True(t, w.Target.NodeID.Equals(a.tree.Root().ID))
	assert.Equal(t, 0, w.Pending.Len())

	_, err = iv.Start(a.tree.ProjectID(), "Car")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestSubmitCount(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   bool
		wantState State
		wantSlots int
	}{
		{name: "zero skips", input: "0", wantState: StateFinalized},
		{name: "two", input: "2", wantState: StateAwaitingChildDetails, wantSlots: 2},
		{name: "five with spaces", input: " 5 ", wantState: StateAwaitingChildDetails, wantSlots: 5},
		{name: "one is rejected", input: "1", wantErr: true, wantState: StateAwaitingChildCount},
		{name: "six is rejected", input: "6", wantErr: true, wantState: StateAwaitingChildCount},
		{name: "negative", input: "-2", wantErr: true, wantState: StateAwaitingChildCount},
		{name: "text", input: "three", wantErr: true, wantState: StateAwaitingChildCount},
		{name: "fraction", input: "2.5", wantErr: true, wantState: StateAwaitingChildCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv := NewInterviewer(nil)
			a := newTreeAppender(t)
			w, err := iv.Start(a.tree.ProjectID(), "", rootTarget(a))
			require.NoError(t, err)

			err = iv.SubmitCount(w, tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsValidation(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, w.State)
			assert.Len(t, w.Slots, tt.wantSlots)
		})
	}
}

func TestSubmitDetails_Validation(t *testing.T) {
	iv := NewInterviewer(nil)
	a := newTreeAppender(t)
	w, err := iv.Start(a.tree.ProjectID(), "", rootTarget(a))
	require.NoError(t, err)
	require.NoError(t, iv.SubmitCount(w, "2"))

	err = iv.SubmitDetails(context.Background(), w, a, []ChildDetail{{Name: "Price"}})
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, StateAwaitingChildDetails, w.State)

	err = iv.SubmitDetails(context.Background(), w, a, []ChildDetail{{Name: "Price"}, {Name: " "}})
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, StateAwaitingChildDetails, w.State)
	assert.Equal(t, 0, a.calls)
}

func TestSubmitDetails_AppendFailureReturnsToDetails(t *testing.T) {
	iv := NewInterviewer(nil)
	a := newTreeAppender(t)
	w, err := iv.Start(a.tree.ProjectID(), "", rootTarget(a))
	require.NoError(t, err)
	require.NoError(t, iv.SubmitCount(w, "2"))

	m := new(mockAppender)
	m.On("Find", mock.Anything, w.ProjectID, w.Target.NodeID).Return(a.tree.Root(), nil)
	m.On("AppendChildren", mock.Anything, w.ProjectID, w.Target.NodeID, mock.Anything, mock.Anything).
		Return(nil, pkgerrors.NewCapacityExceededError(w.Target.NodeID.String(), 5))

	details := []ChildDetail{{Name: "Price", Decompose: true}, {Name: "Safety"}}
	err = iv.SubmitDetails(context.Background(), w, m, details)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCapacityExceeded(err))

	assert.Equal(t, StateAwaitingChildDetails, w.State)
	assert.Len(t, w.Slots, 2)
	assert.Equal(t, "Price", w.Slots[0].Name)
	assert.NotEmpty(t, w.LastError)
	assert.Equal(t, 0, w.Pending.Len())
	m.AssertExpectations(t)
}

func TestSubmitDetails_MetadataAndFlags(t *testing.T) {
	iv := NewInterviewer(nil)
	a := newTreeAppender(t)
	w, err := iv.Start(a.tree.ProjectID(), "Family Car", rootTarget(a))
	require.NoError(t, err)
	require.NoError(t, iv.SubmitCount(w, "2"))

	four := 4
	err = iv.SubmitDetails(context.Background(), w, a, []ChildDetail{
		{Name: "Price", Decompose: true, Importance: &four},
		{Name: "Safety"},
	})
	require.NoError(t, err)

	root := a.tree.Root()
	require.Len(t, root.Children, 2)
	assert.Equal(t, "DEMA", root.Attributes.DecisionProcess)
	assert.Equal(t, "Family Car", root.Attributes.ObjectName)
	assert.True(t, root.Children[0].Attributes.WantsDecomposition())
	assert.False(t, root.Children[1].Attributes.WantsDecomposition())
	assert.Equal(t, 4, *root.Children[0].Attributes.Importance)

	// Price was queued and became the next target
	assert.Equal(t, StateAwaitingChildCount, w.State)
	require.NotNil(t, w.Target)
	assert.True(t, w.Target.NodeID.Equals(root.Children[0].ID))
	assert.Equal(t, "Price", w.Target.Name)
	assert.Equal(t, 1, w.Submissions)
}

func TestSubmitCount_OpensSlotsWithIDs(t *testing.T) {
	iv := NewInterviewer(nil)
	a := newTreeAppender(t)
	w, err := iv.Start(a.tree.ProjectID(), "", rootTarget(a))
	require.NoError(t, err)

	require.NoError(t, iv.SubmitCount(w, "3"))

	seen := map[string]bool{}
	for _, slot := range w.Slots {
		require.False(t, slot.ID.IsZero())
		seen[slot.ID.String()] = true
	}
	assert.Len(t, seen, 3)
}

func TestSubmitDetails_UsesSlotIDs(t *testing.T) {
	iv := NewInterviewer(nil)
	a := newTreeAppender(t)
	w, err := iv.Start(a.tree.ProjectID(), "", rootTarget(a))
	require.NoError(t, err)
	require.NoError(t, iv.SubmitCount(w, "2"))
	slotIDs := []valueobjects.NodeID{w.Slots[0].ID, w.Slots[1].ID}

	// ids sent by the client are ignored
	err = iv.SubmitDetails(context.Background(), w, a, []ChildDetail{
		{ID: valueobjects.NewNodeID(), Name: "Price"},
		{Name: "Safety"},
	})
	require.NoError(t, err)

	root := a.tree.Root()
	require.Len(t, root.Children, 2)
	assert.True(t, root.Children[0].ID.Equals(slotIDs[0]))
	assert.True(t, root.Children[1].ID.Equals(slotIDs[1]))
}

func TestSubmitDetails_ReplayedSubmitIsApplied(t *testing.T) {
	// Arrange: a copy of the workflow taken before submit stands in for a
	// session whose save was lost after the children were appended
	iv := NewInterviewer(nil)
	a := newTreeAppender(t)
	w, err := iv.Start(a.tree.ProjectID(), "", rootTarget(a))
	require.NoError(t, err)
	require.NoError(t, iv.SubmitCount(w, "2"))

	data, err := json.Marshal(w)
	require.NoError(t, err)
	var stale Workflow
	require.NoError(t, json.Unmarshal(data, &stale))

	details := []ChildDetail{{Name: "Price", Decompose: true}, {Name: "Safety"}}
	require.NoError(t, iv.SubmitDetails(context.Background(), w, a, details))
	require.Equal(t, 1, a.calls)

	// Act
	err = iv.SubmitDetails(context.Background(), &stale, a, details)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, a.calls, "children are appended once")
	assert.Len(t, a.tree.Root().Children, 2)
	assert.Equal(t, StateAwaitingChildCount, stale.State)
	require.NotNil(t, stale.Target)
	assert.Equal(t, "Price", stale.Target.Name)
	assert.Equal(t, 1, stale.Submissions)
}

func TestSubmitDetails_LostRaceIsApplied(t *testing.T) {
	iv := NewInterviewer(nil)
	a := newTreeAppender(t)
	w, err := iv.Start(a.tree.ProjectID(), "", rootTarget(a))
	require.NoError(t, err)
	require.NoError(t, iv.SubmitCount(w, "2"))

	// the tree as another submit of the same session left it
	landed := a.tree.Root().Clone()
	landed.Children = []*entities.Node{
		{ID: w.Slots[0].ID, Name: "Price", Children: []*entities.Node{}, Parent: landed.ID},
		{ID: w.Slots[1].ID, Name: "Safety", Children: []*entities.Node{}, Parent: landed.ID},
	}

	m := new(mockAppender)
	m.On("Find", mock.Anything, w.ProjectID, w.Target.NodeID).Return(a.tree.Root(), nil).Once()
	m.On("AppendChildren", mock.Anything, w.ProjectID, w.Target.NodeID, mock.Anything, mock.Anything).
		Return(nil, pkgerrors.NewValidationError("node id already exists")).Once()
	m.On("Find", mock.Anything, w.ProjectID, w.Target.NodeID).Return(landed, nil).Once()

	err = iv.SubmitDetails(context.Background(), w, m, []ChildDetail{{Name: "Price"}, {Name: "Safety"}})

	require.NoError(t, err)
	assert.True(t, w.IsFinalized())
	assert.Empty(t, w.LastError)
	m.AssertExpectations(t)
}

func TestWorkflow_BreadthFirstScenario(t *testing.T) {
	iv := NewInterviewer(nil)
	a := newTreeAppender(t)
	root := a.tree.Root()

	// Seed the tree with X and Y, then run the interview over queue [X, Y]
	withXY, err := a.mutator.InsertChildren(root, root.ID, []*entities.Node{{Name: "X"}, {Name: "Y"}}, nil)
	require.NoError(t, err)
	require.NoError(t, a.tree.ReplaceRoot(withXY))
	x, y := withXY.Children[0], withXY.Children[1]

	w, err := iv.Start(a.tree.ProjectID(), "",
		Target{NodeID: x.ID, Name: x.Name},
		Target{NodeID: y.ID, Name: y.Name},
	)
	require.NoError(t, err)
	assert.True(t, w.Target.NodeID.Equals(x.ID))

	require.NoError(t, iv.SubmitCount(w, "0"))
	assert.Equal(t, StateAwaitingChildCount, w.State)
	assert.True(t, w.Target.NodeID.Equals(y.ID))

	require.NoError(t, iv.SubmitCount(w, "2"))
	require.NoError(t, iv.SubmitDetails(context.Background(), w, a, []ChildDetail{
		{Name: "Y1"}, {Name: "Y2"},
	}))

	assert.Equal(t, StateFinalized, w.State)
	assert.True(t, w.IsFinalized())
	assert.Equal(t, 0, w.Pending.Len())
	assert.Nil(t, w.Target)

	tree := a.tree.Root()
	assert.Empty(t, tree.Children[0].Children)
	require.Len(t, tree.Children[1].Children, 2)
	assert.Equal(t, []string{"Y1", "Y2"}, []string{tree.Children[1].Children[0].Name, tree.Children[1].Children[1].Name})

	err = iv.SubmitCount(w, "2")
	assert.True(t, pkgerrors.IsValidation(err), "finalized workflows accept no input")
}

func TestWorkflow_JSONRoundTrip(t *testing.T) {
	iv := NewInterviewer(nil)
	a := newTreeAppender(t)
	w, err := iv.Start(a.tree.ProjectID(), "Car", rootTarget(a))
	require.NoError(t, err)
	require.NoError(t, iv.SubmitCount(w, "3"))

	data, err := json.Marshal(w)
	require.NoError(t, err)

	var back Workflow
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, w.State, back.State)
	assert.Equal(t, w.ProjectID, back.ProjectID)
	assert.True(t, w.Target.NodeID.Equals(back.Target.NodeID))
	assert.Len(t, back.Slots, 3)
}

func TestQueue_FIFO(t *testing.T) {
	var q Queue
	q.Push(Target{Name: "a"}, Target{Name: "b"})
	q.Push(Target{Name: "c"})

	assert.Equal(t, 3, q.Len())

	var order []string
	for q.Len() > 0 {
		next, _ := q.Pop()
		order = append(order, next.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)

	_, ok := q.Pop()
	assert.False(t, ok)
}
