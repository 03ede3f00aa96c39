package handlers

import (
	"context"

	"valuetree/application/queries"
	"valuetree/application/queries/bus"
	"valuetree/application/services"
	"valuetree/domain/core/valueobjects"
	pkgerrors "valuetree/pkg/errors"
)

// TreeQueryHandlers serves the read side of project trees and sessions
type TreeQueryHandlers struct {
	trees          *services.TreeService
	decompositions *services.DecompositionService
}

// NewTreeQueryHandlers creates a new handler set
func NewTreeQueryHandlers(trees *services.TreeService, decompositions *services.DecompositionService) *TreeQueryHandlers {
	return &TreeQueryHandlers{
		trees:          trees,
		decompositions: decompositions,
	}
}

// Register binds each query to its handler
func (h *TreeQueryHandlers) Register(b *bus.QueryBus) error {
	if err := b.Register(queries.GetTreeQuery{}, bus.QueryHandlerFunc(h.handleGetTree)); err != nil {
		return err
	}
	if err := b.Register(queries.FindNodeQuery{}, bus.QueryHandlerFunc(h.handleFindNode)); err != nil {
		return err
	}
	if err := b.Register(queries.ListCriteriaQuery{}, bus.QueryHandlerFunc(h.handleListCriteria)); err != nil {
		return err
	}
	return b.Register(queries.GetDecompositionQuery{}, bus.QueryHandlerFunc(h.handleGetDecomposition))
}

func (h *TreeQueryHandlers) handleGetTree(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.GetTreeQuery)
	projectID, err := parseProjectID(query.ProjectID)
	if err != nil {
		return nil, err
	}
	return h.trees.GetOrCreate(ctx, projectID)
}

func (h *TreeQueryHandlers) handleFindNode(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.FindNodeQuery)
	projectID, err := parseProjectID(query.ProjectID)
	if err != nil {
		return nil, err
	}
	nodeID, err := valueobjects.NewNodeIDFromString(query.NodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	return h.trees.Find(ctx, projectID, nodeID)
}

func (h *TreeQueryHandlers) handleListCriteria(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.ListCriteriaQuery)
	projectID, err := parseProjectID(query.ProjectID)
	if err != nil {
		return nil, err
	}
	return h.trees.ListCriteria(ctx, projectID)
}

func (h *TreeQueryHandlers) handleGetDecomposition(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.GetDecompositionQuery)
	projectID, err := parseProjectID(query.ProjectID)
	if err != nil {
		return nil, err
	}
	return h.decompositions.Get(ctx, projectID, query.SessionToken)
}

func parseProjectID(raw string) (valueobjects.ProjectID, error) {
	projectID, err := valueobjects.NewProjectID(raw)
	if err != nil {
		return valueobjects.ProjectID{}, pkgerrors.NewValidationError(err.Error())
	}
	return projectID, nil
}
