package services

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuetree/domain/core/entities"
	"valuetree/domain/core/validators"
	"valuetree/domain/core/valueobjects"
	pkgerrors "valuetree/pkg/errors"
)

func newRoot(t *testing.T) *entities.Node {
	t.Helper()
	root, err := entities.NewRootNode("My Car")
	require.NoError(t, err)
	return root
}

func leaf(name string) *entities.Node {
	return &entities.Node{Name: name}
}

func TestInsertChildren_AppendsInOrder(t *testing.T) {
	m := NewTreeMutator(nil)
	root := newRoot(t)

	out, err := m.InsertChildren(root, root.ID, []*entities.Node{leaf("Price"), leaf("Safety")}, nil)
	require.NoError(t, err)

	require.Len(t, out.Children, 2)
	assert.Equal(t, "Price", out.Children[0].Name)
	assert.Equal(t, "Safety", out.Children[1].Name)
	for _, c := range out.Children {
		assert.True(t, c.Parent.Equals(root.ID))
		assert.False(t, c.ID.IsZero())
		assert.Empty(t, c.Children)
		require.NotNil(t, c.Attributes)
		assert.NotNil(t, c.Attributes.Created)
	}

	assert.Empty(t, root.Children, "input must not be mutated")
	assert.True(t, validators.IsValid(out))
}

func TestInsertChildren_Metadata(t *testing.T) {
	m := NewTreeMutator(nil)
	root := newRoot(t)

	out, err := m.InsertChildren(root, root.ID, []*entities.Node{leaf("Price"), leaf("Safety")}, &ChildMetadata{})
	require.NoError(t, err)

	require.NotNil(t, out.Attributes)
	assert.Equal(t, "DEMA", out.Attributes.DecisionProcess)
	assert.Equal(t, "Untitled Object", out.Attributes.ObjectName)
	assert.NotNil(t, out.Attributes.LastUpdated)
	assert.Nil(t, out.Children[0].Attributes.LastUpdated)
}

func TestInsertChildren_CapacityExceeded(t *testing.T) {
	m := NewTreeMutator(nil)
	root := newRoot(t)

	full, err := m.InsertChildren(root, root.ID, []*entities.Node{
		leaf("a"), leaf("b"), leaf("c"), leaf("d"), leaf("e"),
	}, nil)
	require.NoError(t, err)

	before := full.Clone()
	_, err = m.InsertChildren(full, full.ID, []*entities.Node{leaf("f")}, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCapacityExceeded(err))
	assert.Equal(t, before, full)
}

func TestInsertChildren_Errors(t *testing.T) {
	m := NewTreeMutator(nil)
	root := newRoot(t)
	bad := 9

	tests := []struct {
		name     string
		parentID valueobjects.NodeID
		nodes    []*entities.Node
		check    func(error) bool
	}{
		{"missing parent", valueobjects.MustNodeID("nope"), []*entities.Node{leaf("a")}, pkgerrors.IsNotFound},
		{"empty batch", root.ID, nil, pkgerrors.IsValidation},
		{"empty name", root.ID, []*entities.Node{leaf("  ")}, pkgerrors.IsValidation},
		{"out of range importance", root.ID, []*entities.Node{{Name: "a", Attributes: &entities.Attributes{Importance: &bad}}}, pkgerrors.IsValidation},
		{"duplicate id", root.ID, []*entities.Node{{ID: root.ID, Name: "a"}}, pkgerrors.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.InsertChildren(root, tt.parentID, tt.nodes, nil)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

func TestInsertChildren_RejectsParentWithRequirement(t *testing.T) {
	m := NewTreeMutator(nil)
	root := newRoot(t)
	out, err := m.InsertChildren(root, root.ID, []*entities.Node{leaf("Price")}, nil)
	require.NoError(t, err)

	req, err := valueobjects.NewPreferLow(10000, 30000)
	require.NoError(t, err)
	price := out.Children[0].ID
	out, err = m.SetRequirement(out, price, req)
	require.NoError(t, err)

	_, err = m.InsertChildren(out, price, []*entities.Node{leaf("Purchase")}, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestFind(t *testing.T) {
	m := NewTreeMutator(nil)
	root := newRoot(t)
	out, err := m.InsertChildren(root, root.ID, []*entities.Node{leaf("Price")}, nil)
	require.NoError(t, err)

	id := out.Children[0].ID
	found, err := m.Find(out, valueobjects.MustNodeID(" "+id.String()+" "))
	require.NoError(t, err)
	assert.Equal(t, "Price", found.Name)

	found.Name = "changed"
	assert.Equal(t, "Price", out.Children[0].Name)

	_, err = m.Find(out, valueobjects.MustNodeID("missing"))
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestRenameNode(t *testing.T) {
	m := NewTreeMutator(nil)
	root := newRoot(t)

	out, err := m.RenameNode(root, root.ID, "  Family Car ")
	require.NoError(t, err)
	assert.Equal(t, "Family Car", out.Name)
	assert.Equal(t, "My Car", root.Name)

	_, err = m.RenameNode(root, root.ID, "")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = m.RenameNode(root, valueobjects.MustNodeID("missing"), "x")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestDeleteSubtree(t *testing.T) {
	m := NewTreeMutator(nil)
	root := newRoot(t)

	tree, err := m.InsertChildren(root, root.ID, []*entities.Node{leaf("X"), leaf("Y")}, nil)
	require.NoError(t, err)
	x := tree.Children[0].ID
	tree, err = m.InsertChildren(tree, x, []*entities.Node{leaf("X1"), leaf("X2")}, nil)
	require.NoError(t, err)
	require.Equal(t, 5, tree.Count())

	out, err := m.DeleteSubtree(tree, x)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count())
	require.Len(t, out.Children, 1)
	assert.Equal(t, "Y", out.Children[0].Name)

	out.Walk(func(n *entities.Node, _ int) bool {
		assert.False(t, n.Parent.Equals(x), "dangling parent reference to deleted node")
		assert.NotContains(t, []string{"X", "X1", "X2"}, n.Name)
		return true
	})
	assert.Equal(t, 5, tree.Count(), "input must not be mutated")
}

func TestDeleteSubtree_AbsentIDLeavesTreeUnchanged(t *testing.T) {
	m := NewTreeMutator(nil)
	root := newRoot(t)
	tree, err := m.InsertChildren(root, root.ID, []*entities.Node{leaf("X")}, nil)
	require.NoError(t, err)

	before := tree.Clone()
	_, err = m.DeleteSubtree(tree, valueobjects.MustNodeID("absent"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Equal(t, before, tree)
}

func TestDeleteSubtree_RootIsRejected(t *testing.T) {
	m := NewTreeMutator(nil)
	root := newRoot(t)

	_, err := m.DeleteSubtree(root, root.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSetRequirement(t *testing.T) {
	m := NewTreeMutator(nil)
	root := newRoot(t)
	tree, err := m.InsertChildren(root, root.ID, []*entities.Node{leaf("Price")}, nil)
	require.NoError(t, err)
	price := tree.Children[0].ID

	req, err := valueobjects.NewPreferLow(10000, 30000)
	require.NoError(t, err)

	out, err := m.SetRequirement(tree, price, req)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.RequirementPreferLow, out.Children[0].Requirement().Kind)
	assert.Nil(t, tree.Children[0].Requirement())

	_, err = m.SetRequirement(out, out.ID, req)
	assert.True(t, pkgerrors.IsValidation(err), "inner nodes cannot carry requirements")

	cleared, err := m.SetRequirement(out, price, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.Children[0].Requirement())

	_, err = m.SetRequirement(out, price, &valueobjects.Requirement{Kind: valueobjects.RequirementRange})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestFlatten(t *testing.T) {
	m := NewTreeMutator(nil)
	root := newRoot(t)
	tree, err := m.InsertChildren(root, root.ID, []*entities.Node{leaf("Price"), leaf("Safety")}, nil)
	require.NoError(t, err)
	tree, err = m.InsertChildren(tree, tree.Children[1].ID, []*entities.Node{leaf("Airbags"), leaf("Brakes")}, nil)
	require.NoError(t, err)

	rows := m.Flatten(tree)
	require.Len(t, rows, 4)

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"Price", "Safety", "Airbags", "Brakes"}, names)
	assert.Equal(t, 1, rows[0].Depth)
	assert.Equal(t, 2, rows[2].Depth)
	assert.Equal(t, []string{"My Car", "Safety", "Airbags"}, rows[2].Path)
	assert.True(t, rows[0].IsLeaf)
	assert.False(t, rows[1].IsLeaf)
}

func TestMutator_RandomEditSequenceKeepsTreeValid(t *testing.T) {
	m := NewTreeMutator(nil)
	rnd := rand.New(rand.NewSource(7))
	req, err := valueobjects.NewPreferHigh(1, 5)
	require.NoError(t, err)

	pick := func(root *entities.Node) *entities.Node {
		var nodes []*entities.Node
		root.Walk(func(n *entities.Node, _ int) bool {
			nodes = append(nodes, n)
			return true
		})
		return nodes[rnd.Intn(len(nodes))]
	}

	current := newRoot(t)
	accepted := 0
	for step := 0; step < 500; step++ {
		before := current.Clone()
		target := pick(current)

		var (
			out *entities.Node
			op  string
		)
		switch rnd.Intn(4) {
		case 0:
			op = "insert"
			children := make([]*entities.Node, 1+rnd.Intn(3))
			for i := range children {
				children[i] = leaf(fmt.Sprintf("C%d-%d", step, i))
			}
			out, err = m.InsertChildren(current, target.ID, children, nil)
		case 1:
			op = "rename"
			out, err = m.RenameNode(current, target.ID, fmt.Sprintf("R%d", step))
		case 2:
			op = "delete"
			out, err = m.DeleteSubtree(current, target.ID)
		default:
			op = "requirement"
			if rnd.Intn(2) == 0 {
				out, err = m.SetRequirement(current, target.ID, nil)
			} else {
				out, err = m.SetRequirement(current, target.ID, req)
			}
		}

		assert.Equal(t, before, current, "step %d %s mutated its input", step, op)
		if err != nil {
			continue
		}
		require.True(t, validators.IsValid(out), "step %d %s produced an invalid tree", step, op)
		current = out
		accepted++
	}

	assert.Greater(t, accepted, 100)
}
