package validators

import (
	"fmt"
	"strings"

	"valuetree/domain/config"
	"valuetree/domain/core/entities"
	"valuetree/domain/core/valueobjects"
	"valuetree/pkg/errors"
)

// TreeValidator checks the structural and attribute invariants of a value tree
type TreeValidator struct {
	cfg *config.DomainConfig
}

// NewTreeValidator creates a validator bound to the given business limits
func NewTreeValidator(cfg *config.DomainConfig) *TreeValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &TreeValidator{cfg: cfg}
}

var defaultValidator = NewTreeValidator(nil)

// Validate checks root against the default limits
func Validate(root *entities.Node) error {
	return defaultValidator.Validate(root)
}

// IsValid reports whether root satisfies every invariant
func IsValid(root *entities.Node) bool {
	return defaultValidator.Validate(root) == nil
}

// Validate walks the tree once and returns the first violated invariant
func (v *TreeValidator) Validate(root *entities.Node) error {
	if root == nil {
		return errors.NewValidationError("tree has no root")
	}
	if !root.Parent.IsZero() {
		return errors.NewValidationError("root node must not have a parent")
	}

	visited := map[*entities.Node]struct{}{root: {}}
	ids := map[string]struct{}{}
	stack := []*entities.Node{root}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := v.ValidateNode(node); err != nil {
			return err
		}

		id := node.ID.String()
		if _, dup := ids[id]; dup {
			return errors.NewValidationError(fmt.Sprintf("duplicate node id %q", id))
		}
		ids[id] = struct{}{}

		for _, child := range node.Children {
			if child == nil {
				return errors.NewValidationError(fmt.Sprintf("node %q has a nil child", id))
			}
			if _, seen := visited[child]; seen {
				return errors.NewValidationError(fmt.Sprintf("node %q is reachable more than once", child.ID))
			}
			if !child.Parent.Equals(node.ID) {
				return errors.NewValidationError(
					fmt.Sprintf("node %q has parent %q but is held by %q", child.ID, child.Parent, id))
			}
			visited[child] = struct{}{}
			stack = append(stack, child)
		}
	}

	return nil
}

// ValidateNode checks the rules that apply to a single node in isolation
func (v *TreeValidator) ValidateNode(node *entities.Node) error {
	if node.ID.IsZero() {
		return errors.NewValidationError("node id cannot be empty")
	}
	if strings.TrimSpace(node.Name) == "" {
		return errors.NewValidationError(fmt.Sprintf("node %q: name cannot be empty", node.ID))
	}
	if len(node.Children) > v.cfg.MaxChildrenPerNode {
		return errors.NewValidationError(
			fmt.Sprintf("node %q has %d children, limit is %d", node.ID, len(node.Children), v.cfg.MaxChildrenPerNode))
	}
	return v.ValidateAttributes(node.Attributes, len(node.Children) > 0)
}

// ValidateAttributes checks rating ranges and the leaf-only requirement rule
func (v *TreeValidator) ValidateAttributes(attrs *entities.Attributes, hasChildren bool) error {
	if attrs == nil {
		return nil
	}
	if attrs.Importance != nil {
		if err := valueobjects.ValidateRating("importance", *attrs.Importance, v.cfg); err != nil {
			return err
		}
	}
	if attrs.Connection != nil {
		if err := valueobjects.ValidateRating("connection", *attrs.Connection, v.cfg); err != nil {
			return err
		}
	}
	if attrs.Requirement != nil {
		if hasChildren {
			return errors.NewValidationError("requirements can only be set on leaf criteria")
		}
		if err := attrs.Requirement.Validate(v.cfg); err != nil {
			return err
		}
	}
	return nil
}
