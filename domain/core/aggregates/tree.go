package aggregates

import (
	"errors"
	"time"

	"valuetree/domain/core/entities"
	"valuetree/domain/core/validators"
	"valuetree/domain/core/valueobjects"
	"valuetree/domain/events"
)

// Tree is the aggregate root for one project's value tree.
// All structural changes arrive as a complete, validated root.
type Tree struct {
	projectID valueobjects.ProjectID
	root      *entities.Node
	version   int
	createdAt time.Time
	updatedAt time.Time

	events []events.DomainEvent
}

// NewTree creates a tree holding a single root node. When rootName is empty
// the root is named after the project slug ("my-car" becomes "My Car").
func NewTree(projectID valueobjects.ProjectID, rootName string) (*Tree, error) {
	if projectID.IsZero() {
		return nil, errors.New("projectID is required")
	}
	if rootName == "" {
		rootName = projectID.DisplayName()
	}

	root, err := entities.NewRootNode(rootName)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tree := &Tree{
		projectID: projectID,
		root:      root,
		version:   1,
		createdAt: now,
		updatedAt: now,
		events:    []events.DomainEvent{},
	}

	tree.addEvent(events.NewTreeCreated(projectID, root.ID, root.Name, now))

	return tree, nil
}

// ReconstructTree recreates a tree from stored data
func ReconstructTree(
	projectID valueobjects.ProjectID,
	root *entities.Node,
	version int,
	createdAt, updatedAt time.Time,
) (*Tree, error) {
	if projectID.IsZero() || root == nil {
		return nil, errors.New("required fields missing for tree reconstruction")
	}

	return &Tree{
		projectID: projectID,
		root:      root,
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
		events:    []events.DomainEvent{},
	}, nil
}

// ProjectID returns the project slug
func (t *Tree) ProjectID() valueobjects.ProjectID {
	return t.projectID
}

// Root returns the root node. Callers must treat it as read-only and go
// through the tree mutator for changes.
func (t *Tree) Root() *entities.Node {
	return t.root
}

// Version returns the stored version stamp
func (t *Tree) Version() int {
	return t.version
}

// NextVersion is the version the next successful write will produce
func (t *Tree) NextVersion() int {
	return t.version + 1
}

// CreatedAt returns when the tree was first stored
func (t *Tree) CreatedAt() time.Time {
	return t.createdAt
}

// UpdatedAt returns the last write time
func (t *Tree) UpdatedAt() time.Time {
	return t.updatedAt
}

// ReplaceRoot swaps in a new full tree after checking every structural invariant.
// The aggregate is left untouched when validation fails.
func (t *Tree) ReplaceRoot(root *entities.Node) error {
	if err := validators.Validate(root); err != nil {
		return err
	}
	t.root = root
	t.updatedAt = time.Now().UTC()
	return nil
}

// RecordEvent attaches a domain event to be published after the next commit
func (t *Tree) RecordEvent(event events.DomainEvent) {
	t.addEvent(event)
}

// Validate ensures tree invariants
func (t *Tree) Validate() error {
	return validators.Validate(t.root)
}

// GetUncommittedEvents returns all uncommitted domain events
func (t *Tree) GetUncommittedEvents() []events.DomainEvent {
	out := make([]events.DomainEvent, len(t.events))
	copy(out, t.events)
	return out
}

// MarkEventsAsCommitted clears all uncommitted events
func (t *Tree) MarkEventsAsCommitted() {
	t.events = []events.DomainEvent{}
}

func (t *Tree) addEvent(event events.DomainEvent) {
	t.events = append(t.events, event)
}
