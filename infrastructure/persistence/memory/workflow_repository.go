package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"valuetree/domain/core/valueobjects"
	"valuetree/domain/decomposition"
	pkgerrors "valuetree/pkg/errors"
)

type storedWorkflow struct {
	payload   []byte
	expiresAt time.Time
}

// WorkflowRepository keeps decomposition sessions in process memory. Entries
// are stored serialized, the same shape the DynamoDB store writes.
type WorkflowRepository struct {
	mu        sync.RWMutex
	workflows map[string]storedWorkflow
	now       func() time.Time
}

// NewWorkflowRepository creates an empty in-memory session store
func NewWorkflowRepository() *WorkflowRepository {
	return &WorkflowRepository{
		workflows: make(map[string]storedWorkflow),
		now:       time.Now,
	}
}

func sessionKey(projectID valueobjects.ProjectID, sessionToken string) string {
	return projectID.String() + "#" + sessionToken
}

// Save stores the workflow for ttl. A non-positive ttl never expires.
func (r *WorkflowRepository) Save(ctx context.Context, sessionToken string, workflow *decomposition.Workflow, ttl time.Duration) error {
	payload, err := json.Marshal(workflow)
	if err != nil {
		return pkgerrors.NewInternalError("failed to encode workflow").WithCause(err)
	}

	entry := storedWorkflow{payload: payload}
	if ttl > 0 {
		entry.expiresAt = r.now().Add(ttl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.workflows[sessionKey(workflow.ProjectID, sessionToken)] = entry
	return nil
}

// Get loads the workflow or returns NOT_FOUND when absent or expired
func (r *WorkflowRepository) Get(ctx context.Context, projectID valueobjects.ProjectID, sessionToken string) (*decomposition.Workflow, error) {
	r.mu.RLock()
	entry, ok := r.workflows[sessionKey(projectID, sessionToken)]
	r.mu.RUnlock()

	if !ok || r.expired(entry) {
		return nil, pkgerrors.NewNotFoundError("decomposition session")
	}

	var w decomposition.Workflow
	if err := json.Unmarshal(entry.payload, &w); err != nil {
		return nil, pkgerrors.NewInternalError("failed to decode workflow").WithCause(err)
	}
	return &w, nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (r *WorkflowRepository) Delete(ctx context.Context, projectID valueobjects.ProjectID, sessionToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.workflows, sessionKey(projectID, sessionToken))
	return nil
}

// StartCleanup sweeps expired sessions every interval until ctx is done
func (r *WorkflowRepository) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

func (r *WorkflowRepository) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entry := range r.workflows {
		if r.expired(entry) {
			delete(r.workflows, key)
		}
	}
}

func (r *WorkflowRepository) expired(entry storedWorkflow) bool {
	return !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt)
}
