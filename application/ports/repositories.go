package ports

import (
	"context"
	"time"

	"valuetree/domain/core/aggregates"
	"valuetree/domain/core/valueobjects"
	"valuetree/domain/decomposition"
	"valuetree/domain/events"
)

// TreeRepository defines the interface for value tree persistence.
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type TreeRepository interface {
	// GetOrCreate loads the project's tree, creating a single-root tree named
	// rootName on first access. Concurrent callers end up with the same tree.
	GetOrCreate(ctx context.Context, projectID valueobjects.ProjectID, rootName string) (*aggregates.Tree, error)

	// Create stores a new tree and fails with CONFLICT if the project exists
	Create(ctx context.Context, tree *aggregates.Tree) (*aggregates.Tree, error)

	// Replace overwrites the whole tree. With expectedVersion 0 the write is
	// unconditional; otherwise it fails with CONFLICT unless the stored
	// version matches. The stored version becomes previous+1.
	Replace(ctx context.Context, tree *aggregates.Tree, expectedVersion int) (*aggregates.Tree, error)

	// Exists reports whether the project has a stored tree
	Exists(ctx context.Context, projectID valueobjects.ProjectID) (bool, error)
}

// WorkflowRepository stores decomposition sessions keyed by project and session token
type WorkflowRepository interface {
	Save(ctx context.Context, sessionToken string, workflow *decomposition.Workflow, ttl time.Duration) error
	Get(ctx context.Context, projectID valueobjects.ProjectID, sessionToken string) (*decomposition.Workflow, error)
	Delete(ctx context.Context, projectID valueobjects.ProjectID, sessionToken string) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with TTL in seconds
	Set(ctx context.Context, key string, value interface{}, ttl int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from cache
	Clear(ctx context.Context) error
}

// Metrics records service level counters and latencies
type Metrics interface {
	RecordCommandExecution(ctx context.Context, commandName string, duration time.Duration, success bool)
	RecordQueryExecution(ctx context.Context, queryName string, duration time.Duration, success bool)
	RecordError(ctx context.Context, errorType, operation string)
}

// TreeCacheKey builds a cache key scoped to one project. Every key for a
// project shares the TreeCachePrefix so writes can evict them together.
func TreeCacheKey(projectID valueobjects.ProjectID, parts ...string) string {
	key := TreeCachePrefix(projectID)
	for _, p := range parts {
		key += p + ":"
	}
	return key
}

// TreeCachePrefix is the common prefix of a project's cache keys
func TreeCachePrefix(projectID valueobjects.ProjectID) string {
	return "tree:" + projectID.String() + ":"
}
