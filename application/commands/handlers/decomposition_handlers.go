package handlers

import (
	"context"

	"valuetree/application/commands"
	"valuetree/application/commands/bus"
	"valuetree/application/services"
	"valuetree/domain/core/valueobjects"
)

// DecompositionCommandHandlers handles the guided decomposition commands
type DecompositionCommandHandlers struct {
	decompositions *services.DecompositionService
}

// NewDecompositionCommandHandlers creates a new handler set
func NewDecompositionCommandHandlers(decompositions *services.DecompositionService) *DecompositionCommandHandlers {
	return &DecompositionCommandHandlers{decompositions: decompositions}
}

// Register binds each decomposition command to its handler
func (h *DecompositionCommandHandlers) Register(b *bus.CommandBus) error {
	if err := b.Register(commands.StartDecompositionCommand{}, bus.CommandHandlerFunc(h.handleStart)); err != nil {
		return err
	}
	if err := b.Register(commands.SubmitCountCommand{}, bus.CommandHandlerFunc(h.handleSubmitCount)); err != nil {
		return err
	}
	if err := b.Register(commands.SubmitDetailsCommand{}, bus.CommandHandlerFunc(h.handleSubmitDetails)); err != nil {
		return err
	}
	return b.Register(commands.AbandonDecompositionCommand{}, bus.CommandHandlerFunc(h.handleAbandon))
}

func (h *DecompositionCommandHandlers) handleStart(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.StartDecompositionCommand)
	projectID, err := ParseProjectID(cmd.ProjectID)
	if err != nil {
		return nil, err
	}

	var parentID valueobjects.NodeID
	if cmd.ParentID != "" {
		if parentID, err = ParseNodeID(cmd.ParentID); err != nil {
			return nil, err
		}
	}

	w, token, err := h.decompositions.Start(ctx, projectID, cmd.SessionToken, parentID, cmd.ObjectName)
	if err != nil {
		return nil, err
	}
	return &commands.StartDecompositionResult{SessionToken: token, Workflow: w}, nil
}

func (h *DecompositionCommandHandlers) handleSubmitCount(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.SubmitCountCommand)
	projectID, err := ParseProjectID(cmd.ProjectID)
	if err != nil {
		return nil, err
	}
	return h.decompositions.SubmitCount(ctx, projectID, cmd.SessionToken, cmd.Count)
}

func (h *DecompositionCommandHandlers) handleSubmitDetails(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.SubmitDetailsCommand)
	projectID, err := ParseProjectID(cmd.ProjectID)
	if err != nil {
		return nil, err
	}
	return h.decompositions.SubmitDetails(ctx, projectID, cmd.SessionToken, cmd.Children)
}

func (h *DecompositionCommandHandlers) handleAbandon(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.AbandonDecompositionCommand)
	projectID, err := ParseProjectID(cmd.ProjectID)
	if err != nil {
		return nil, err
	}
	return nil, h.decompositions.Abandon(ctx, projectID, cmd.SessionToken)
}
