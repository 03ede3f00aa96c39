package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"valuetree/application/ports"
	"valuetree/domain/core/aggregates"
	"valuetree/domain/core/entities"
	"valuetree/domain/core/validators"
	"valuetree/domain/core/valueobjects"
	"valuetree/domain/events"
	domainservices "valuetree/domain/services"
	pkgerrors "valuetree/pkg/errors"
	"valuetree/pkg/observability"
)

// Conflict codes let clients tell a clashing name from a lost update
const (
	CodeProjectExists = "PROJECT_EXISTS"
	CodeStaleVersion  = "STALE_VERSION"
)

// TreeService coordinates load, mutate and replace for project trees.
// Every write is a compare-and-swap against the version that was loaded.
type TreeService struct {
	repo      ports.TreeRepository
	mutator   *domainservices.TreeMutator
	publisher ports.EventPublisher
	cache     ports.Cache
	tracer    *observability.Tracer
	logger    *zap.Logger
}

// NewTreeService creates a new tree service. publisher, cache and tracer may be nil.
func NewTreeService(
	repo ports.TreeRepository,
	mutator *domainservices.TreeMutator,
	publisher ports.EventPublisher,
	cache ports.Cache,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *TreeService {
	if mutator == nil {
		mutator = domainservices.NewTreeMutator(nil)
	}
	return &TreeService{
		repo:      repo,
		mutator:   mutator,
		publisher: publisher,
		cache:     cache,
		tracer:    tracer,
		logger:    logger,
	}
}

// GetOrCreate loads the project tree, creating it on first access
func (s *TreeService) GetOrCreate(ctx context.Context, projectID valueobjects.ProjectID) (*aggregates.Tree, error) {
	var tree *aggregates.Tree
	err := s.tracer.TraceFunction(ctx, "TreeService.GetOrCreate", func(ctx context.Context) error {
		var err error
		tree, err = s.repo.GetOrCreate(ctx, projectID, s.mutator.DefaultRootName(projectID))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, tree)
	return tree, nil
}

// CreateProject creates a tree for a new project name. The root is named
// after the project and a clashing slug is a CONFLICT.
func (s *TreeService) CreateProject(ctx context.Context, projectName string) (*aggregates.Tree, error) {
	projectName = strings.TrimSpace(projectName)
	projectID, err := valueobjects.NewProjectID(projectName)
	if err != nil {
		return nil, pkgerrors.NewValidationError("project name must contain letters or digits")
	}

	tree, err := aggregates.NewTree(projectID, projectName)
	if err != nil {
		return nil, err
	}

	saved, err := s.repo.Create(ctx, tree)
	if err != nil {
		if pkgerrors.IsConflict(err) {
			return nil, pkgerrors.NewConflictError("project name already exists").
				WithCode(CodeProjectExists).
				WithDetails(map[string]interface{}{"project_id": projectID.String()})
		}
		return nil, err
	}

	s.logger.Info("Project created",
		zap.String("projectID", projectID.String()),
		zap.String("rootID", saved.Root().ID.String()),
	)

	s.publish(ctx, saved)
	return saved, nil
}

// Replace overwrites the whole tree with root. expectedVersion 0 skips the
// version check.
func (s *TreeService) Replace(
	ctx context.Context,
	projectID valueobjects.ProjectID,
	root *entities.Node,
	expectedVersion int,
) (*aggregates.Tree, error) {
	if err := validators.Validate(root); err != nil {
		return nil, err
	}

	return s.mutate(ctx, projectID, expectedVersion, "Replace", func(_ *entities.Node, tree *aggregates.Tree) (*entities.Node, events.DomainEvent, error) {
		return root, events.NewTreeReplaced(projectID, tree.NextVersion(), root.Count(), time.Now().UTC()), nil
	})
}

// AppendChildren is the compound load, insert, replace operation used by
// clients and by the decomposition workflow
func (s *TreeService) AppendChildren(
	ctx context.Context,
	projectID valueobjects.ProjectID,
	parentID valueobjects.NodeID,
	children []*entities.Node,
	meta *domainservices.ChildMetadata,
) (*aggregates.Tree, error) {
	return s.AppendChildrenAt(ctx, projectID, parentID, children, meta, 0)
}

// AppendChildrenAt is AppendChildren with an explicit expected version
func (s *TreeService) AppendChildrenAt(
	ctx context.Context,
	projectID valueobjects.ProjectID,
	parentID valueobjects.NodeID,
	children []*entities.Node,
	meta *domainservices.ChildMetadata,
	expectedVersion int,
) (*aggregates.Tree, error) {
	return s.mutate(ctx, projectID, expectedVersion, "AppendChildren", func(root *entities.Node, tree *aggregates.Tree) (*entities.Node, events.DomainEvent, error) {
		out, err := s.mutator.InsertChildren(root, parentID, children, meta)
		if err != nil {
			return nil, nil, err
		}

		parent, err := s.mutator.Find(out, parentID)
		if err != nil {
			return nil, nil, err
		}
		added := parent.Children[len(parent.Children)-len(children):]
		ids := make([]valueobjects.NodeID, len(added))
		for i, c := range added {
			ids[i] = c.ID
		}

		return out, events.NewChildrenAppended(projectID, tree.NextVersion(), parentID, ids, time.Now().UTC()), nil
	})
}

// RenameNode changes the name of one node
func (s *TreeService) RenameNode(
	ctx context.Context,
	projectID valueobjects.ProjectID,
	nodeID valueobjects.NodeID,
	name string,
	expectedVersion int,
) (*aggregates.Tree, error) {
	return s.mutate(ctx, projectID, expectedVersion, "RenameNode", func(root *entities.Node, tree *aggregates.Tree) (*entities.Node, events.DomainEvent, error) {
		before, err := s.mutator.Find(root, nodeID)
		if err != nil {
			return nil, nil, err
		}
		out, err := s.mutator.RenameNode(root, nodeID, name)
		if err != nil {
			return nil, nil, err
		}
		after, _ := s.mutator.Find(out, nodeID)
		return out, events.NewNodeRenamed(projectID, tree.NextVersion(), nodeID, before.Name, after.Name, time.Now().UTC()), nil
	})
}

// DeleteSubtree removes a node and everything below it
func (s *TreeService) DeleteSubtree(
	ctx context.Context,
	projectID valueobjects.ProjectID,
	nodeID valueobjects.NodeID,
	expectedVersion int,
) (*aggregates.Tree, error) {
	return s.mutate(ctx, projectID, expectedVersion, "DeleteSubtree", func(root *entities.Node, tree *aggregates.Tree) (*entities.Node, events.DomainEvent, error) {
		out, err := s.mutator.DeleteSubtree(root, nodeID)
		if err != nil {
			return nil, nil, err
		}
		removed := root.Count() - out.Count()
		return out, events.NewSubtreeDeleted(projectID, tree.NextVersion(), nodeID, removed, time.Now().UTC()), nil
	})
}

// SetRequirement sets or, with a nil req, clears the requirement of a leaf
func (s *TreeService) SetRequirement(
	ctx context.Context,
	projectID valueobjects.ProjectID,
	nodeID valueobjects.NodeID,
	req *valueobjects.Requirement,
	expectedVersion int,
) (*aggregates.Tree, error) {
	return s.mutate(ctx, projectID, expectedVersion, "SetRequirement", func(root *entities.Node, tree *aggregates.Tree) (*entities.Node, events.DomainEvent, error) {
		out, err := s.mutator.SetRequirement(root, nodeID, req)
		if err != nil {
			return nil, nil, err
		}
		kind := ""
		if req != nil {
			kind = string(req.Kind)
		}
		return out, events.NewRequirementSet(projectID, tree.NextVersion(), nodeID, kind, time.Now().UTC()), nil
	})
}

// Find returns a copy of one node and its subtree
func (s *TreeService) Find(ctx context.Context, projectID valueobjects.ProjectID, nodeID valueobjects.NodeID) (*entities.Node, error) {
	tree, err := s.GetOrCreate(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.mutator.Find(tree.Root(), nodeID)
}

// ListCriteria flattens the tree into its non-root criteria
func (s *TreeService) ListCriteria(ctx context.Context, projectID valueobjects.ProjectID) ([]domainservices.FlatNode, error) {
	tree, err := s.GetOrCreate(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.mutator.Flatten(tree.Root()), nil
}

type mutation func(root *entities.Node, tree *aggregates.Tree) (*entities.Node, events.DomainEvent, error)

// mutate loads the tree, applies fn to its root and writes the result back
// conditioned on the loaded version
func (s *TreeService) mutate(
	ctx context.Context,
	projectID valueobjects.ProjectID,
	expectedVersion int,
	operation string,
	fn mutation,
) (*aggregates.Tree, error) {
	var saved *aggregates.Tree

	err := s.tracer.TraceFunction(ctx, "TreeService."+operation, func(ctx context.Context) error {
		s.tracer.AddAnnotation(ctx, "projectID", projectID.String())

		tree, err := s.GetOrCreate(ctx, projectID)
		if err != nil {
			return err
		}

		if expectedVersion != 0 && expectedVersion != tree.Version() {
			return staleVersion(expectedVersion, tree.Version())
		}

		root, event, err := fn(tree.Root(), tree)
		if err != nil {
			return err
		}
		if err := tree.ReplaceRoot(root); err != nil {
			return err
		}
		tree.RecordEvent(event)

		saved, err = s.repo.Replace(ctx, tree, tree.Version())
		if err != nil {
			if appErr := pkgerrors.GetAppError(err); appErr != nil && appErr.Type == pkgerrors.ErrorTypeConflict {
				appErr.WithCode(CodeStaleVersion)
			}
			return err
		}

		s.invalidate(ctx, projectID)
		s.logger.Debug("Tree updated",
			zap.String("operation", operation),
			zap.String("projectID", projectID.String()),
			zap.Int("version", saved.Version()),
		)

		// events were recorded on the working copy
		s.publishEvents(ctx, tree.GetUncommittedEvents())
		tree.MarkEventsAsCommitted()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func staleVersion(expected, actual int) error {
	return pkgerrors.NewConflictError(
		fmt.Sprintf("tree was modified by another session (expected version %d, found %d)", expected, actual)).
		WithCode(CodeStaleVersion).
		WithDetails(map[string]interface{}{"expected_version": expected, "current_version": actual})
}

func (s *TreeService) invalidate(ctx context.Context, projectID valueobjects.ProjectID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, ports.TreeCachePrefix(projectID)); err != nil {
		s.logger.Warn("Failed to invalidate tree cache", zap.String("projectID", projectID.String()), zap.Error(err))
	}
}

func (s *TreeService) publish(ctx context.Context, tree *aggregates.Tree) {
	s.publishEvents(ctx, tree.GetUncommittedEvents())
	tree.MarkEventsAsCommitted()
}

// publishEvents never fails the write that produced the events
func (s *TreeService) publishEvents(ctx context.Context, evts []events.DomainEvent) {
	if s.publisher == nil || len(evts) == 0 {
		return
	}
	if err := s.publisher.PublishBatch(ctx, evts); err != nil {
		s.logger.Error("Failed to publish domain events",
			zap.Int("count", len(evts)),
			zap.Error(err),
		)
	}
}
