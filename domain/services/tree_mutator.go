// Package services holds pure domain operations over value trees.
package services

import (
	"fmt"
	"time"

	"valuetree/domain/config"
	"valuetree/domain/core/entities"
	"valuetree/domain/core/validators"
	"valuetree/domain/core/valueobjects"
	pkgerrors "valuetree/pkg/errors"
)

// ChildMetadata is stamped onto the parent when children are appended
// through the decomposition interview
type ChildMetadata struct {
	DecisionProcess string `json:"decisionProcess,omitempty"`
	ObjectName      string `json:"objectName,omitempty"`
}

// FlatNode is one row of the criteria listing
type FlatNode struct {
	ID          valueobjects.NodeID       `json:"id"`
	ParentID    valueobjects.NodeID       `json:"parentId"`
	Name        string                    `json:"name"`
	Depth       int                       `json:"depth"`
	Path        []string                  `json:"path"`
	IsLeaf      bool                      `json:"isLeaf"`
	Importance  *int                      `json:"importance,omitempty"`
	Connection  *int                      `json:"connection,omitempty"`
	Requirement *valueobjects.Requirement `json:"requirement,omitempty"`
}

// TreeMutator performs structural edits. It never touches its input: every
// operation works on a deep copy and returns the copy only if the result
// passes validation.
type TreeMutator struct {
	cfg       *config.DomainConfig
	validator *validators.TreeValidator
	now       func() time.Time
}

// NewTreeMutator creates a mutator bound to the given business limits
func NewTreeMutator(cfg *config.DomainConfig) *TreeMutator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &TreeMutator{
		cfg:       cfg,
		validator: validators.NewTreeValidator(cfg),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// DefaultRootName names the root of a project's first tree after its slug,
// or the configured default when the slug has no letters or digits
func (m *TreeMutator) DefaultRootName(projectID valueobjects.ProjectID) string {
	if name := projectID.DisplayName(); name != "" {
		return name
	}
	return m.cfg.DefaultRootName
}

// Find returns a copy of the subtree whose root has the given id
func (m *TreeMutator) Find(root *entities.Node, id valueobjects.NodeID) (*entities.Node, error) {
	node := findNode(root, id)
	if node == nil {
		return nil, nodeNotFound(id)
	}
	return node.Clone(), nil
}

// InsertChildren appends newNodes, in order, to the children of parentID
func (m *TreeMutator) InsertChildren(
	root *entities.Node,
	parentID valueobjects.NodeID,
	newNodes []*entities.Node,
	meta *ChildMetadata,
) (*entities.Node, error) {
	if len(newNodes) == 0 {
		return nil, pkgerrors.NewValidationError("at least one child is required")
	}

	out := root.Clone()
	parent := findNode(out, parentID)
	if parent == nil {
		return nil, nodeNotFound(parentID)
	}
	if parent.Requirement() != nil {
		return nil, pkgerrors.NewValidationError(
			fmt.Sprintf("node %q carries a requirement and cannot be decomposed", parentID))
	}
	if len(parent.Children)+len(newNodes) > m.cfg.MaxChildrenPerNode {
		return nil, pkgerrors.NewCapacityExceededError(parentID.String(), m.cfg.MaxChildrenPerNode)
	}

	ids := make(map[string]struct{})
	out.Walk(func(n *entities.Node, _ int) bool {
		ids[n.ID.String()] = struct{}{}
		return true
	})

	now := m.now()
	for i, n := range newNodes {
		if n == nil {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("child %d is empty", i))
		}

		name, err := valueobjects.NormalizeNameWithConfig(n.Name, m.cfg)
		if err != nil {
			return nil, err
		}

		child := &entities.Node{
			ID:         n.ID,
			Name:       name,
			Attributes: n.Attributes.Clone(),
			Children:   []*entities.Node{},
			Parent:     parent.ID,
		}
		if child.ID.IsZero() {
			child.ID = valueobjects.NewNodeID()
		}
		if _, dup := ids[child.ID.String()]; dup {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("node id %q already exists", child.ID))
		}
		ids[child.ID.String()] = struct{}{}

		if child.Attributes == nil {
			child.Attributes = &entities.Attributes{}
		}
		if err := m.validator.ValidateAttributes(child.Attributes, false); err != nil {
			return nil, err
		}
		if child.Attributes.Created == nil {
			created := now
			child.Attributes.Created = &created
		}

		parent.Children = append(parent.Children, child)
	}

	if meta != nil {
		if parent.Attributes == nil {
			parent.Attributes = &entities.Attributes{}
		}
		parent.Attributes.DecisionProcess = meta.DecisionProcess
		if parent.Attributes.DecisionProcess == "" {
			parent.Attributes.DecisionProcess = m.cfg.DefaultDecisionProcess
		}
		parent.Attributes.ObjectName = meta.ObjectName
		if parent.Attributes.ObjectName == "" {
			parent.Attributes.ObjectName = m.cfg.DefaultObjectName
		}
		updated := now
		parent.Attributes.LastUpdated = &updated
	}

	return m.commit(out)
}

// RenameNode changes the name of a single node
func (m *TreeMutator) RenameNode(root *entities.Node, id valueobjects.NodeID, name string) (*entities.Node, error) {
	name, err := valueobjects.NormalizeNameWithConfig(name, m.cfg)
	if err != nil {
		return nil, err
	}

	out := root.Clone()
	node := findNode(out, id)
	if node == nil {
		return nil, nodeNotFound(id)
	}
	node.Name = name

	return m.commit(out)
}

// DeleteSubtree removes a node and all of its descendants. The root cannot
// be deleted and is reported as not found.
func (m *TreeMutator) DeleteSubtree(root *entities.Node, id valueobjects.NodeID) (*entities.Node, error) {
	if root == nil || root.ID.Equals(id) {
		return nil, nodeNotFound(id)
	}

	out := root.Clone()
	removed := false
	stack := []*entities.Node{out}

	for len(stack) > 0 && !removed {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		kept := node.Children[:0]
		for _, child := range node.Children {
			if child.ID.Equals(id) {
				removed = true
				continue
			}
			kept = append(kept, child)
		}
		node.Children = kept
		stack = append(stack, kept...)
	}

	if !removed {
		return nil, nodeNotFound(id)
	}
	return m.commit(out)
}

// SetRequirement attaches a requirement to a leaf criterion. A nil req clears it.
func (m *TreeMutator) SetRequirement(root *entities.Node, id valueobjects.NodeID, req *valueobjects.Requirement) (*entities.Node, error) {
	out := root.Clone()
	node := findNode(out, id)
	if node == nil {
		return nil, nodeNotFound(id)
	}

	if req != nil {
		if !node.IsLeaf() {
			return nil, pkgerrors.NewValidationError("requirements can only be set on leaf criteria")
		}
		if err := req.Validate(m.cfg); err != nil {
			return nil, err
		}
	}

	if node.Attributes == nil {
		node.Attributes = &entities.Attributes{}
	}
	node.Attributes.Requirement = req.Clone()
	updated := m.now()
	node.Attributes.LastUpdated = &updated

	return m.commit(out)
}

// Flatten lists every non-root node in pre-order with its depth and name path
func (m *TreeMutator) Flatten(root *entities.Node) []FlatNode {
	if root == nil {
		return nil
	}

	type frame struct {
		node *entities.Node
		path []string
	}

	out := []FlatNode{}
	stack := []frame{{node: root}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		path := append(append([]string(nil), f.path...), f.node.Name)
		if f.node != root {
			row := FlatNode{
				ID:       f.node.ID,
				ParentID: f.node.Parent,
				Name:     f.node.Name,
				Depth:    len(f.path),
				Path:     path,
				IsLeaf:   f.node.IsLeaf(),
			}
			if a := f.node.Attributes.Clone(); a != nil {
				row.Importance = a.Importance
				row.Connection = a.Connection
				row.Requirement = a.Requirement
			}
			out = append(out, row)
		}

		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: f.node.Children[i], path: path})
		}
	}

	return out
}

func (m *TreeMutator) commit(root *entities.Node) (*entities.Node, error) {
	if err := m.validator.Validate(root); err != nil {
		return nil, err
	}
	return root, nil
}

// findNode is a depth-first search over an explicit stack
func findNode(root *entities.Node, id valueobjects.NodeID) *entities.Node {
	if root == nil || id.IsZero() {
		return nil
	}
	var found *entities.Node
	root.Walk(func(n *entities.Node, _ int) bool {
		if n.ID.Equals(id) {
			found = n
			return false
		}
		return true
	})
	return found
}

func nodeNotFound(id valueobjects.NodeID) error {
	return pkgerrors.NewNotFoundError(fmt.Sprintf("node %s", id)).
		WithDetails(map[string]interface{}{"node_id": id.String()})
}
