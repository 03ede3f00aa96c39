package commands

import (
	"valuetree/domain/core/entities"
	"valuetree/domain/core/valueobjects"
	domainservices "valuetree/domain/services"
	"valuetree/pkg/utils"
)

// CreateProjectCommand creates a new project tree from a human-readable name
type CreateProjectCommand struct {
	ProjectName string `json:"projectName" validate:"required,max=200"`
}

// Validate validates the command
func (c CreateProjectCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// ReplaceTreeCommand overwrites a whole tree
type ReplaceTreeCommand struct {
	ProjectID       string         `json:"projectId" validate:"required"`
	Root            *entities.Node `json:"tree" validate:"required"`
	ExpectedVersion int            `json:"expectedVersion" validate:"gte=0"`
}

// Validate validates the command
func (c ReplaceTreeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// NewChild describes one node to append
type NewChild struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name" validate:"required"`
	Importance *int   `json:"importance,omitempty" validate:"omitempty,min=1,max=5"`
	Connection *int   `json:"connection,omitempty" validate:"omitempty,min=1,max=5"`
	Decompose  bool   `json:"decompose"`
}

// ToNode converts the DTO into a detached node. A blank id is left zero so
// the mutator assigns one.
func (c NewChild) ToNode() (*entities.Node, error) {
	node := &entities.Node{
		Name: c.Name,
		Attributes: &entities.Attributes{
			Importance: c.Importance,
			Connection: c.Connection,
		},
		Children: []*entities.Node{},
	}
	if c.Decompose {
		flag := true
		node.Attributes.Decompose = &flag
	}
	if c.ID != "" {
		id, err := valueobjects.NewNodeIDFromString(c.ID)
		if err != nil {
			return nil, err
		}
		node.ID = id
	}
	return node, nil
}

// AppendChildrenCommand appends children to one parent
type AppendChildrenCommand struct {
	ProjectID       string                        `json:"projectId" validate:"required"`
	ParentID        string                        `json:"parentId" validate:"required"`
	Children        []NewChild                    `json:"children" validate:"required,min=1,dive"`
	Metadata        *domainservices.ChildMetadata `json:"metadata,omitempty"`
	ExpectedVersion int                           `json:"expectedVersion" validate:"gte=0"`
}

// Validate validates the command
func (c AppendChildrenCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// RenameNodeCommand renames a node
type RenameNodeCommand struct {
	ProjectID       string `json:"projectId" validate:"required"`
	NodeID          string `json:"nodeId" validate:"required"`
	Name            string `json:"name" validate:"required"`
	ExpectedVersion int    `json:"expectedVersion" validate:"gte=0"`
}

// Validate validates the command
func (c RenameNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DeleteSubtreeCommand removes a node and its descendants
type DeleteSubtreeCommand struct {
	ProjectID       string `json:"projectId" validate:"required"`
	NodeID          string `json:"nodeId" validate:"required"`
	ExpectedVersion int    `json:"expectedVersion" validate:"gte=0"`
}

// Validate validates the command
func (c DeleteSubtreeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SetRequirementCommand sets or clears a leaf requirement
type SetRequirementCommand struct {
	ProjectID       string                    `json:"projectId" validate:"required"`
	NodeID          string                    `json:"nodeId" validate:"required"`
	Requirement     *valueobjects.Requirement `json:"requirement"`
	ExpectedVersion int                       `json:"expectedVersion" validate:"gte=0"`
}

// Validate validates the command
func (c SetRequirementCommand) Validate() error {
	return utils.ValidateStruct(c)
}
