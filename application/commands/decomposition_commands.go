package commands

import (
	"valuetree/domain/decomposition"
	"valuetree/pkg/utils"
)

// StartDecompositionCommand begins an interview. ParentID defaults to the root.
type StartDecompositionCommand struct {
	ProjectID    string `json:"projectId" validate:"required"`
	SessionToken string `json:"-"`
	ParentID     string `json:"parentId,omitempty"`
	ObjectName   string `json:"objectName,omitempty" validate:"max=200"`
}

// Validate validates the command
func (c StartDecompositionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// StartDecompositionResult carries the session token the client must echo
type StartDecompositionResult struct {
	SessionToken string
	Workflow     *decomposition.Workflow
}

// SubmitCountCommand answers the child-count step. Count stays a string so
// that non-numeric input is reported by the workflow itself.
type SubmitCountCommand struct {
	ProjectID    string `json:"projectId" validate:"required"`
	SessionToken string `json:"-" validate:"required"`
	Count        string `json:"count" validate:"required"`
}

// Validate validates the command
func (c SubmitCountCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SubmitDetailsCommand answers the child-details step
type SubmitDetailsCommand struct {
	ProjectID    string                      `json:"projectId" validate:"required"`
	SessionToken string                      `json:"-" validate:"required"`
	Children     []decomposition.ChildDetail `json:"children" validate:"required"`
}

// Validate validates the command
func (c SubmitDetailsCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// AbandonDecompositionCommand discards an interview session
type AbandonDecompositionCommand struct {
	ProjectID    string `json:"projectId" validate:"required"`
	SessionToken string `json:"-" validate:"required"`
}

// Validate validates the command
func (c AbandonDecompositionCommand) Validate() error {
	return utils.ValidateStruct(c)
}
