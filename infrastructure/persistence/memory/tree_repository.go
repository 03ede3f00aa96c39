package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"valuetree/domain/core/aggregates"
	"valuetree/domain/core/entities"
	"valuetree/domain/core/valueobjects"
	pkgerrors "valuetree/pkg/errors"
)

type storedTree struct {
	root      *entities.Node
	version   int
	createdAt time.Time
	updatedAt time.Time
}

// TreeRepository keeps project trees in process memory. Stored roots are
// private copies, so callers can never alias them.
type TreeRepository struct {
	mu    sync.RWMutex
	trees map[string]*storedTree
}

// NewTreeRepository creates an empty in-memory tree store
func NewTreeRepository() *TreeRepository {
	return &TreeRepository{
		trees: make(map[string]*storedTree),
	}
}

// GetOrCreate loads a tree or creates it under the write lock
func (r *TreeRepository) GetOrCreate(ctx context.Context, projectID valueobjects.ProjectID, rootName string) (*aggregates.Tree, error) {
	r.mu.RLock()
	stored, ok := r.trees[projectID.String()]
	var tree *aggregates.Tree
	var err error
	if ok {
		tree, err = stored.toAggregate(projectID)
	}
	r.mu.RUnlock()
	if ok {
		return tree, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// another caller may have won the race
	if stored, ok := r.trees[projectID.String()]; ok {
		return stored.toAggregate(projectID)
	}

	tree, err = aggregates.NewTree(projectID, rootName)
	if err != nil {
		return nil, err
	}
	r.trees[projectID.String()] = fromAggregate(tree, tree.Version())
	return tree, nil
}

// Create stores a new tree
func (r *TreeRepository) Create(ctx context.Context, tree *aggregates.Tree) (*aggregates.Tree, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := tree.ProjectID().String()
	if _, exists := r.trees[key]; exists {
		return nil, pkgerrors.NewConflictError(fmt.Sprintf("project %s already exists", key))
	}
	r.trees[key] = fromAggregate(tree, tree.Version())
	return tree, nil
}

// Replace overwrites the tree, checking the version under the lock
func (r *TreeRepository) Replace(ctx context.Context, tree *aggregates.Tree, expectedVersion int) (*aggregates.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("replace tree", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := tree.ProjectID().String()
	current, exists := r.trees[key]

	previous := 0
	if exists {
		previous = current.version
	}
	if expectedVersion != 0 && expectedVersion != previous {
		return nil, pkgerrors.NewConflictError(
			fmt.Sprintf("tree %s is at version %d, expected %d", key, previous, expectedVersion)).
			WithDetails(map[string]interface{}{"expected_version": expectedVersion, "current_version": previous})
	}

	next := fromAggregate(tree, previous+1)
	next.updatedAt = time.Now().UTC()
	if exists {
		next.createdAt = current.createdAt
	}
	r.trees[key] = next

	return next.toAggregate(tree.ProjectID())
}

// Exists reports whether a tree is stored for the project
func (r *TreeRepository) Exists(ctx context.Context, projectID valueobjects.ProjectID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.trees[projectID.String()]
	return ok, nil
}

func fromAggregate(tree *aggregates.Tree, version int) *storedTree {
	return &storedTree{
		root:      tree.Root().Clone(),
		version:   version,
		createdAt: tree.CreatedAt(),
		updatedAt: tree.UpdatedAt(),
	}
}

func (s *storedTree) toAggregate(projectID valueobjects.ProjectID) (*aggregates.Tree, error) {
	return aggregates.ReconstructTree(projectID, s.root.Clone(), s.version, s.createdAt, s.updatedAt)
}
