package entities

import (
	"time"

	"valuetree/domain/core/valueobjects"
)

// Attributes holds the optional weighting and bookkeeping data of a node.
// Nil pointers mean "not set".
type Attributes struct {
	Importance      *int                      `json:"importance,omitempty"`
	Connection      *int                      `json:"connection,omitempty"`
	Created         *time.Time                `json:"created,omitempty"`
	DecisionProcess string                    `json:"decisionProcess,omitempty"`
	ObjectName      string                    `json:"objectName,omitempty"`
	LastUpdated     *time.Time                `json:"lastUpdated,omitempty"`
	Decompose       *bool                     `json:"decompose,omitempty"`
	Requirement     *valueobjects.Requirement `json:"requirement,omitempty"`
}

// Clone returns a deep copy of the attributes
func (a *Attributes) Clone() *Attributes {
	if a == nil {
		return nil
	}
	c := &Attributes{
		DecisionProcess: a.DecisionProcess,
		ObjectName:      a.ObjectName,
		Requirement:     a.Requirement.Clone(),
	}
	if a.Importance != nil {
		v := *a.Importance
		c.Importance = &v
	}
	if a.Connection != nil {
		v := *a.Connection
		c.Connection = &v
	}
	if a.Created != nil {
		v := *a.Created
		c.Created = &v
	}
	if a.LastUpdated != nil {
		v := *a.LastUpdated
		c.LastUpdated = &v
	}
	if a.Decompose != nil {
		v := *a.Decompose
		c.Decompose = &v
	}
	return c
}

// WantsDecomposition reports whether the node was flagged for further decomposition
func (a *Attributes) WantsDecomposition() bool {
	return a != nil && a.Decompose != nil && *a.Decompose
}

// Node is one criterion of a value tree. Children are owned exclusively by
// their parent; Parent is a lookup aid and is empty on the root.
type Node struct {
	ID         valueobjects.NodeID `json:"id"`
	Name       string              `json:"name"`
	Attributes *Attributes         `json:"attributes,omitempty"`
	Children   []*Node             `json:"children"`
	Parent     valueobjects.NodeID `json:"parent"`
}

// NewRootNode creates a parentless node with a fresh id
func NewRootNode(name string) (*Node, error) {
	name, err := valueobjects.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Node{
		ID:         valueobjects.NewNodeID(),
		Name:       name,
		Attributes: &Attributes{Created: &now},
		Children:   []*Node{},
	}, nil
}

// NewLeafNode creates a detached node with a fresh id. The created
// timestamp is filled in when missing.
func NewLeafNode(name string, attrs *Attributes) (*Node, error) {
	name, err := valueobjects.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	attrs = attrs.Clone()
	if attrs == nil {
		attrs = &Attributes{}
	}
	if attrs.Created == nil {
		now := time.Now().UTC()
		attrs.Created = &now
	}
	return &Node{
		ID:         valueobjects.NewNodeID(),
		Name:       name,
		Attributes: attrs,
		Children:   []*Node{},
	}, nil
}

// IsRoot reports whether the node has no parent
func (n *Node) IsRoot() bool {
	return n.Parent.IsZero()
}

// IsLeaf reports whether the node has no children
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Requirement returns the leaf requirement or nil
func (n *Node) Requirement() *valueobjects.Requirement {
	if n.Attributes == nil {
		return nil
	}
	return n.Attributes.Requirement
}

// Clone returns a deep copy of the subtree rooted at n
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	type pair struct{ src, dst *Node }
	root := n.shallowCopy()
	stack := []pair{{src: n, dst: root}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		p.dst.Children = make([]*Node, len(p.src.Children))
		for i, child := range p.src.Children {
			if child == nil {
				continue
			}
			c := child.shallowCopy()
			p.dst.Children[i] = c
			stack = append(stack, pair{src: child, dst: c})
		}
	}
	return root
}

func (n *Node) shallowCopy() *Node {
	return &Node{
		ID:         n.ID,
		Name:       n.Name,
		Attributes: n.Attributes.Clone(),
		Parent:     n.Parent,
	}
}

// Walk visits the subtree in pre-order. Returning false from fn stops the walk.
// depth is 0 for n itself.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	if n == nil {
		return
	}

	type frame struct {
		node  *Node
		depth int
	}
	stack := []frame{{n, 0}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(f.node, f.depth) {
			return
		}
		// push in reverse so children are visited in order
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			if c := f.node.Children[i]; c != nil {
				stack = append(stack, frame{c, f.depth + 1})
			}
		}
	}
}

// Count returns the number of nodes in the subtree
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node, int) bool {
		count++
		return true
	})
	return count
}
