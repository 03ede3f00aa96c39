package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"valuetree/application/ports"
	"valuetree/domain/core/valueobjects"
	"valuetree/domain/decomposition"
	"valuetree/domain/events"
	pkgerrors "valuetree/pkg/errors"
)

// DecompositionService runs guided decomposition interviews and keeps their
// state server-side, keyed by project and session token
type DecompositionService struct {
	trees       *TreeService
	workflows   ports.WorkflowRepository
	interviewer *decomposition.Interviewer
	publisher   ports.EventPublisher
	sessionTTL  time.Duration
	logger      *zap.Logger
}

// NewDecompositionService creates a new decomposition service
func NewDecompositionService(
	trees *TreeService,
	workflows ports.WorkflowRepository,
	interviewer *decomposition.Interviewer,
	publisher ports.EventPublisher,
	sessionTTL time.Duration,
	logger *zap.Logger,
) *DecompositionService {
	if interviewer == nil {
		interviewer = decomposition.NewInterviewer(nil)
	}
	return &DecompositionService{
		trees:       trees,
		workflows:   workflows,
		interviewer: interviewer,
		publisher:   publisher,
		sessionTTL:  sessionTTL,
		logger:      logger,
	}
}

// Start begins an interview at parentID, or at the root when parentID is
// zero. An empty token gets a fresh one; the token in use is returned.
func (s *DecompositionService) Start(
	ctx context.Context,
	projectID valueobjects.ProjectID,
	sessionToken string,
	parentID valueobjects.NodeID,
	objectName string,
) (*decomposition.Workflow, string, error) {
	sessionToken = strings.TrimSpace(sessionToken)
	if sessionToken == "" {
		sessionToken = uuid.New().String()
	}

	tree, err := s.trees.GetOrCreate(ctx, projectID)
	if err != nil {
		return nil, "", err
	}

	target := tree.Root()
	if !parentID.IsZero() {
		if target, err = s.trees.mutator.Find(tree.Root(), parentID); err != nil {
			return nil, "", err
		}
	}

	w, err := s.interviewer.Start(projectID, strings.TrimSpace(objectName), decomposition.Target{
		NodeID: target.ID,
		Name:   target.Name,
	})
	if err != nil {
		return nil, "", err
	}

	if err := s.workflows.Save(ctx, sessionToken, w, s.sessionTTL); err != nil {
		return nil, "", err
	}

	s.logger.Info("Decomposition started",
		zap.String("projectID", projectID.String()),
		zap.String("targetID", target.ID.String()),
	)
	return w, sessionToken, nil
}

// Get returns the stored interview state
func (s *DecompositionService) Get(ctx context.Context, projectID valueobjects.ProjectID, sessionToken string) (*decomposition.Workflow, error) {
	if strings.TrimSpace(sessionToken) == "" {
		return nil, pkgerrors.NewValidationError("session token is required")
	}
	return s.workflows.Get(ctx, projectID, sessionToken)
}

// SubmitCount answers the child-count step
func (s *DecompositionService) SubmitCount(ctx context.Context, projectID valueobjects.ProjectID, sessionToken, count string) (*decomposition.Workflow, error) {
	w, err := s.Get(ctx, projectID, sessionToken)
	if err != nil {
		return nil, err
	}

	if err := s.interviewer.SubmitCount(w, count); err != nil {
		return w, err
	}
	return w, s.save(ctx, sessionToken, w)
}

// SubmitDetails answers the child-details step and appends the children
func (s *DecompositionService) SubmitDetails(
	ctx context.Context,
	projectID valueobjects.ProjectID,
	sessionToken string,
	details []decomposition.ChildDetail,
) (*decomposition.Workflow, error) {
	w, err := s.Get(ctx, projectID, sessionToken)
	if err != nil {
		return nil, err
	}

	submitErr := s.interviewer.SubmitDetails(ctx, w, s.trees, details)
	if submitErr != nil && w.LastError == "" {
		// rejected before submitting, nothing changed
		return w, submitErr
	}

	if err := s.save(ctx, sessionToken, w); err != nil {
		return nil, err
	}
	return w, submitErr
}

// Abandon drops the interview. The tree keeps everything already submitted.
func (s *DecompositionService) Abandon(ctx context.Context, projectID valueobjects.ProjectID, sessionToken string) error {
	if strings.TrimSpace(sessionToken) == "" {
		return pkgerrors.NewValidationError("session token is required")
	}
	return s.workflows.Delete(ctx, projectID, sessionToken)
}

func (s *DecompositionService) save(ctx context.Context, sessionToken string, w *decomposition.Workflow) error {
	if err := s.workflows.Save(ctx, sessionToken, w, s.sessionTTL); err != nil {
		return pkgerrors.Wrapf(err, "save decomposition session in state %s", w.State)
	}

	if w.IsFinalized() {
		s.logger.Info("Decomposition finalized",
			zap.String("projectID", w.ProjectID.String()),
			zap.Int("submissions", w.Submissions),
		)
		if s.publisher != nil {
			evt := events.NewDecompositionFinalized(w.ProjectID, sessionToken, w.Submissions, time.Now().UTC())
			if err := s.publisher.Publish(ctx, evt); err != nil {
				s.logger.Error("Failed to publish decomposition event", zap.Error(err))
			}
		}
	}
	return nil
}
