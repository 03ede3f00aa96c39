package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuetree/domain/core/valueobjects"
)

func buildDeep(t *testing.T, depth int) *Node {
	t.Helper()
	root, err := NewRootNode("Root")
	require.NoError(t, err)
	cur := root
	for i := 0; i < depth; i++ {
		child, err := NewLeafNode("level", nil)
		require.NoError(t, err)
		child.Parent = cur.ID
		cur.Children = append(cur.Children, child)
		cur = child
	}
	return root
}

func TestNewLeafNode(t *testing.T) {
	imp := 3
	attrs := &Attributes{Importance: &imp}

	n, err := NewLeafNode("  Price ", attrs)
	require.NoError(t, err)
	assert.Equal(t, "Price", n.Name)
	assert.NotNil(t, n.Attributes.Created)
	assert.Nil(t, attrs.Created, "caller attributes are copied")

	_, err = NewLeafNode("", nil)
	assert.Error(t, err)
}

func TestNode_CloneIsDeep(t *testing.T) {
	root := buildDeep(t, 3)
	imp := 2
	root.Children[0].Attributes.Importance = &imp

	c := root.Clone()
	assert.Equal(t, root, c)

	c.Children[0].Name = "changed"
	*c.Children[0].Attributes.Importance = 5
	c.Children[0].Children = nil

	assert.Equal(t, "level", root.Children[0].Name)
	assert.Equal(t, 2, *root.Children[0].Attributes.Importance)
	assert.Len(t, root.Children[0].Children, 1)
}

func TestNode_DeepTreesDoNotRecurse(t *testing.T) {
	root := buildDeep(t, 50000)

	c := root.Clone()
	assert.Equal(t, 50001, c.Count())

	maxDepth := 0
	c.Walk(func(_ *Node, depth int) bool {
		if depth > maxDepth {
			maxDepth = depth
		}
		return true
	})
	assert.Equal(t, 50000, maxDepth)
}

func TestNode_WalkPreOrderAndStop(t *testing.T) {
	root := &Node{ID: valueobjects.MustNodeID("r"), Name: "r", Children: []*Node{
		{ID: valueobjects.MustNodeID("a"), Name: "a", Children: []*Node{
			{ID: valueobjects.MustNodeID("a1"), Name: "a1"},
		}},
		{ID: valueobjects.MustNodeID("b"), Name: "b"},
	}}

	var order []string
	root.Walk(func(n *Node, _ int) bool {
		order = append(order, n.Name)
		return true
	})
	assert.Equal(t, []string{"r", "a", "a1", "b"}, order)

	order = nil
	root.Walk(func(n *Node, _ int) bool {
		order = append(order, n.Name)
		return n.Name != "a"
	})
	assert.Equal(t, []string{"r", "a"}, order)
}

func TestNode_JSON(t *testing.T) {
	raw := `{"id":17,"name":"Root","children":[{"id":"18","name":"Price","parent":17,"children":[],"attributes":{"importance":4,"decompose":true}}],"parent":null}`

	var root Node
	require.NoError(t, json.Unmarshal([]byte(raw), &root))

	assert.Equal(t, "17", root.ID.String())
	assert.True(t, root.IsRoot())
	require.Len(t, root.Children, 1)
	assert.True(t, root.Children[0].Parent.Equals(root.ID))
	assert.True(t, root.Children[0].Attributes.WantsDecomposition())

	out, err := json.Marshal(&root)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"parent":null`)
	assert.Contains(t, string(out), `"id":"17"`)
}
