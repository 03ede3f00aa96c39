package handlers

import (
	"math"
	"net/http"
	"strconv"

	"valuetree/application/commands"
	"valuetree/application/commands/bus"
	"valuetree/application/queries"
	querybus "valuetree/application/queries/bus"
	"valuetree/domain/core/entities"
	"valuetree/domain/core/valueobjects"
	domainservices "valuetree/domain/services"
	pkgerrors "valuetree/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProjectHandler serves project trees and their nodes
type ProjectHandler struct {
	responder
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *ProjectHandler {
	return &ProjectHandler{
		responder:  responder{errHandler: errHandler, logger: logger},
		commandBus: commandBus,
		queryBus:   queryBus,
	}
}

// CreateProjectRequest is the body of POST /projects
type CreateProjectRequest struct {
	ProjectName string `json:"projectName"`
}

// AppendChildrenRequest is the body of POST /projects/{projectID}/nodes
type AppendChildrenRequest struct {
	ParentID        string                        `json:"parentId"`
	Children        []commands.NewChild           `json:"children"`
	Metadata        *domainservices.ChildMetadata `json:"metadata,omitempty"`
	ExpectedVersion int                           `json:"expectedVersion,omitempty"`
}

// RenameNodeRequest is the body of PATCH /projects/{projectID}/nodes/{nodeID}
type RenameNodeRequest struct {
	Name string `json:"name"`
}

// SetRequirementRequest is the body of PUT .../nodes/{nodeID}/requirement.
// A null requirement clears it.
type SetRequirementRequest struct {
	Requirement *valueobjects.Requirement `json:"requirement"`
}

// CreateProject handles POST /projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.CreateProjectCommand{ProjectName: req.ProjectName})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondTree(w, r, http.StatusCreated, result)
}

// GetProject handles GET /projects/{projectID}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetTreeQuery{ProjectID: chi.URLParam(r, "projectID")})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondTree(w, r, http.StatusOK, result)
}

// ReplaceTree handles PUT /projects/{projectID}. The body is the root node.
func (h *ProjectHandler) ReplaceTree(w http.ResponseWriter, r *http.Request) {
	version, err := expectedVersion(r, 0)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var root entities.Node
	if err := decodeJSON(w, r, &root, false); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.ReplaceTreeCommand{
		ProjectID:       chi.URLParam(r, "projectID"),
		Root:            &root,
		ExpectedVersion: version,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondTree(w, r, http.StatusOK, result)
}

// AppendChildren handles POST /projects/{projectID}/nodes
func (h *ProjectHandler) AppendChildren(w http.ResponseWriter, r *http.Request) {
	var req AppendChildrenRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.respondError(w, r, err)
		return
	}

	version, err := expectedVersion(r, req.ExpectedVersion)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.AppendChildrenCommand{
		ProjectID:       chi.URLParam(r, "projectID"),
		ParentID:        req.ParentID,
		Children:        req.Children,
		Metadata:        req.Metadata,
		ExpectedVersion: version,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondTree(w, r, http.StatusCreated, result)
}

// GetNode handles GET /projects/{projectID}/nodes/{nodeID}
func (h *ProjectHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.FindNodeQuery{
		ProjectID: chi.URLParam(r, "projectID"),
		NodeID:    chi.URLParam(r, "nodeID"),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// RenameNode handles PATCH /projects/{projectID}/nodes/{nodeID}
func (h *ProjectHandler) RenameNode(w http.ResponseWriter, r *http.Request) {
	var req RenameNodeRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.respondError(w, r, err)
		return
	}

	version, err := expectedVersion(r, 0)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.RenameNodeCommand{
		ProjectID:       chi.URLParam(r, "projectID"),
		NodeID:          chi.URLParam(r, "nodeID"),
		Name:            req.Name,
		ExpectedVersion: version,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondTree(w, r, http.StatusOK, result)
}

// DeleteNode handles DELETE /projects/{projectID}/nodes/{nodeID}
func (h *ProjectHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	version, err := expectedVersion(r, 0)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.DeleteSubtreeCommand{
		ProjectID:       chi.URLParam(r, "projectID"),
		NodeID:          chi.URLParam(r, "nodeID"),
		ExpectedVersion: version,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondTree(w, r, http.StatusOK, result)
}

// SetRequirement handles PUT /projects/{projectID}/nodes/{nodeID}/requirement
func (h *ProjectHandler) SetRequirement(w http.ResponseWriter, r *http.Request) {
	var req SetRequirementRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.respondError(w, r, err)
		return
	}

	version, err := expectedVersion(r, 0)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.SetRequirementCommand{
		ProjectID:       chi.URLParam(r, "projectID"),
		NodeID:          chi.URLParam(r, "nodeID"),
		Requirement:     req.Requirement,
		ExpectedVersion: version,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondTree(w, r, http.StatusOK, result)
}

// scoredCriterion carries the satisfaction of a criterion for the offered
// value when one was asked for and the criterion has a requirement
type scoredCriterion struct {
	domainservices.FlatNode
	Satisfaction *float64 `json:"satisfaction,omitempty"`
}

// ListCriteria handles GET /projects/{projectID}/criteria[?offered=<number>]
func (h *ProjectHandler) ListCriteria(w http.ResponseWriter, r *http.Request) {
	offered, scored, err := parseOffered(r.URL.Query().Get("offered"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ListCriteriaQuery{ProjectID: chi.URLParam(r, "projectID")})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	flat, _ := result.([]domainservices.FlatNode)
	criteria := make([]scoredCriterion, 0, len(flat))
	for _, c := range flat {
		row := scoredCriterion{FlatNode: c}
		if scored && c.Requirement != nil {
			score := c.Requirement.Satisfaction(offered)
			row.Satisfaction = &score
		}
		criteria = append(criteria, row)
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"projectId": valueobjects.Slugify(chi.URLParam(r, "projectID")),
		"criteria":  criteria,
	})
}

func parseOffered(raw string) (float64, bool, error) {
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, pkgerrors.NewValidationError("offered must be a finite number")
	}
	return v, true, nil
}
