package queries

import (
	"strings"

	"valuetree/application/ports"
	"valuetree/domain/core/valueobjects"
	pkgerrors "valuetree/pkg/errors"
)

// GetTreeQuery loads a project tree, creating it on first access
type GetTreeQuery struct {
	ProjectID string
}

// Validate validates the GetTreeQuery
func (q GetTreeQuery) Validate() error {
	return requireProject(q.ProjectID)
}

// CacheKey implements bus.Cacheable
func (q GetTreeQuery) CacheKey() string {
	return projectKey(q.ProjectID, "tree")
}

// FindNodeQuery returns one node with its subtree
type FindNodeQuery struct {
	ProjectID string
	NodeID    string
}

// Validate validates the FindNodeQuery
func (q FindNodeQuery) Validate() error {
	if err := requireProject(q.ProjectID); err != nil {
		return err
	}
	if strings.TrimSpace(q.NodeID) == "" {
		return pkgerrors.NewValidationError("node ID is required")
	}
	return nil
}

// CacheKey implements bus.Cacheable
func (q FindNodeQuery) CacheKey() string {
	return projectKey(q.ProjectID, "node", strings.TrimSpace(q.NodeID))
}

// ListCriteriaQuery flattens a project tree into its criteria
type ListCriteriaQuery struct {
	ProjectID string
}

// Validate validates the ListCriteriaQuery
func (q ListCriteriaQuery) Validate() error {
	return requireProject(q.ProjectID)
}

// CacheKey implements bus.Cacheable
func (q ListCriteriaQuery) CacheKey() string {
	return projectKey(q.ProjectID, "criteria")
}

// GetDecompositionQuery returns the state of an interview session. Sessions
// change on every answer and are never cached.
type GetDecompositionQuery struct {
	ProjectID    string
	SessionToken string
}

// Validate validates the GetDecompositionQuery
func (q GetDecompositionQuery) Validate() error {
	if err := requireProject(q.ProjectID); err != nil {
		return err
	}
	if strings.TrimSpace(q.SessionToken) == "" {
		return pkgerrors.NewValidationError("session token is required")
	}
	return nil
}

func requireProject(raw string) error {
	if valueobjects.Slugify(raw) == "" {
		return pkgerrors.NewValidationError("project ID is required")
	}
	return nil
}

// projectKey builds a cache key under the project's prefix. Queries are
// validated before their key is taken.
func projectKey(raw string, parts ...string) string {
	projectID, _ := valueobjects.NewProjectID(raw)
	return ports.TreeCacheKey(projectID, parts...)
}
