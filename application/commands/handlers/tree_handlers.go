package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"valuetree/application/commands"
	"valuetree/application/commands/bus"
	"valuetree/application/services"
	"valuetree/domain/core/entities"
	"valuetree/domain/core/valueobjects"
	pkgerrors "valuetree/pkg/errors"
)

// TreeCommandHandlers handles every command that changes a project tree
type TreeCommandHandlers struct {
	trees  *services.TreeService
	logger *zap.Logger
}

// NewTreeCommandHandlers creates a new handler set
func NewTreeCommandHandlers(trees *services.TreeService, logger *zap.Logger) *TreeCommandHandlers {
	return &TreeCommandHandlers{
		trees:  trees,
		logger: logger,
	}
}

// Register binds each tree command to its handler
func (h *TreeCommandHandlers) Register(b *bus.CommandBus) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandlerFunc
	}{
		{commands.CreateProjectCommand{}, h.handleCreateProject},
		{commands.ReplaceTreeCommand{}, h.handleReplaceTree},
		{commands.AppendChildrenCommand{}, h.handleAppendChildren},
		{commands.RenameNodeCommand{}, h.handleRenameNode},
		{commands.DeleteSubtreeCommand{}, h.handleDeleteSubtree},
		{commands.SetRequirementCommand{}, h.handleSetRequirement},
	}

	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *TreeCommandHandlers) handleCreateProject(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.CreateProjectCommand)
	return h.trees.CreateProject(ctx, cmd.ProjectName)
}

func (h *TreeCommandHandlers) handleReplaceTree(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.ReplaceTreeCommand)
	projectID, err := ParseProjectID(cmd.ProjectID)
	if err != nil {
		return nil, err
	}
	return h.trees.Replace(ctx, projectID, cmd.Root, cmd.ExpectedVersion)
}

func (h *TreeCommandHandlers) handleAppendChildren(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.AppendChildrenCommand)
	projectID, err := ParseProjectID(cmd.ProjectID)
	if err != nil {
		return nil, err
	}
	parentID, err := ParseNodeID(cmd.ParentID)
	if err != nil {
		return nil, err
	}

	children := make([]*entities.Node, len(cmd.Children))
	for i, nc := range cmd.Children {
		if children[i], err = nc.ToNode(); err != nil {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("child %d: %v", i+1, err))
		}
	}

	tree, err := h.trees.AppendChildrenAt(ctx, projectID, parentID, children, cmd.Metadata, cmd.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	h.logger.Info("Children appended",
		zap.String("projectID", projectID.String()),
		zap.String("parentID", parentID.String()),
		zap.Int("count", len(children)),
	)
	return tree, nil
}

func (h *TreeCommandHandlers) handleRenameNode(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.RenameNodeCommand)
	projectID, nodeID, err := parseTarget(cmd.ProjectID, cmd.NodeID)
	if err != nil {
		return nil, err
	}
	return h.trees.RenameNode(ctx, projectID, nodeID, cmd.Name, cmd.ExpectedVersion)
}

func (h *TreeCommandHandlers) handleDeleteSubtree(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.DeleteSubtreeCommand)
	projectID, nodeID, err := parseTarget(cmd.ProjectID, cmd.NodeID)
	if err != nil {
		return nil, err
	}
	return h.trees.DeleteSubtree(ctx, projectID, nodeID, cmd.ExpectedVersion)
}

func (h *TreeCommandHandlers) handleSetRequirement(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.SetRequirementCommand)
	projectID, nodeID, err := parseTarget(cmd.ProjectID, cmd.NodeID)
	if err != nil {
		return nil, err
	}
	return h.trees.SetRequirement(ctx, projectID, nodeID, cmd.Requirement, cmd.ExpectedVersion)
}

// ParseProjectID normalizes a raw project id, reporting failures as VALIDATION
func ParseProjectID(raw string) (valueobjects.ProjectID, error) {
	projectID, err := valueobjects.NewProjectID(raw)
	if err != nil {
		return valueobjects.ProjectID{}, pkgerrors.NewValidationError(err.Error())
	}
	return projectID, nil
}

// ParseNodeID normalizes a raw node id, reporting failures as VALIDATION
func ParseNodeID(raw string) (valueobjects.NodeID, error) {
	nodeID, err := valueobjects.NewNodeIDFromString(raw)
	if err != nil {
		return valueobjects.NodeID{}, pkgerrors.NewValidationError(err.Error())
	}
	return nodeID, nil
}

func parseTarget(rawProject, rawNode string) (valueobjects.ProjectID, valueobjects.NodeID, error) {
	projectID, err := ParseProjectID(rawProject)
	if err != nil {
		return valueobjects.ProjectID{}, valueobjects.NodeID{}, err
	}
	nodeID, err := ParseNodeID(rawNode)
	if err != nil {
		return valueobjects.ProjectID{}, valueobjects.NodeID{}, err
	}
	return projectID, nodeID, nil
}
