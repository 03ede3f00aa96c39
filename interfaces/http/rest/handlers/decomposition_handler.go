package handlers

import (
	"bytes"
	"net/http"
	"strings"

	"valuetree/application/commands"
	"valuetree/application/commands/bus"
	"valuetree/application/queries"
	querybus "valuetree/application/queries/bus"
	"valuetree/domain/decomposition"
	pkgerrors "valuetree/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionTokenHeader carries the decomposition session token both ways
const SessionTokenHeader = "X-Session-Token"

// DecompositionHandler serves the guided decomposition interview
type DecompositionHandler struct {
	responder
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
}

// NewDecompositionHandler creates a new decomposition handler
func NewDecompositionHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *DecompositionHandler {
	return &DecompositionHandler{
		responder:  responder{errHandler: errHandler, logger: logger},
		commandBus: commandBus,
		queryBus:   queryBus,
	}
}

// StartDecompositionRequest is the body of POST .../decomposition
type StartDecompositionRequest struct {
	ParentID   string `json:"parentId,omitempty"`
	ObjectName string `json:"objectName,omitempty"`
}

// CountValue accepts the child count as a JSON number or string
type CountValue string

// UnmarshalJSON implements json.Unmarshaler
func (c *CountValue) UnmarshalJSON(data []byte) error {
	*c = CountValue(strings.Trim(string(bytes.TrimSpace(data)), `"`))
	return nil
}

// SubmitCountRequest is the body of POST .../decomposition/count
type SubmitCountRequest struct {
	Count CountValue `json:"count"`
}

// SubmitDetailsRequest is the body of POST .../decomposition/details
type SubmitDetailsRequest struct {
	Children []decomposition.ChildDetail `json:"children"`
}

// WorkflowResponse wraps a session's state
type WorkflowResponse struct {
	SessionToken string                  `json:"sessionToken"`
	Workflow     *decomposition.Workflow `json:"workflow"`
}

// Start handles POST /projects/{projectID}/decomposition
func (h *DecompositionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartDecompositionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), commands.StartDecompositionCommand{
		ProjectID:    chi.URLParam(r, "projectID"),
		SessionToken: r.Header.Get(SessionTokenHeader),
		ParentID:     req.ParentID,
		ObjectName:   req.ObjectName,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	started, _ := result.(*commands.StartDecompositionResult)
	if started == nil {
		h.respondError(w, r, pkgerrors.NewInternalError("unexpected decomposition result"))
		return
	}
	h.respondWorkflow(w, http.StatusCreated, started.SessionToken, started.Workflow)
}

// Get handles GET /projects/{projectID}/decomposition
func (h *DecompositionHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(SessionTokenHeader)
	result, err := h.queryBus.Ask(r.Context(), queries.GetDecompositionQuery{
		ProjectID:    chi.URLParam(r, "projectID"),
		SessionToken: token,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWorkflow(w, http.StatusOK, token, result)
}

// SubmitCount handles POST /projects/{projectID}/decomposition/count
func (h *DecompositionHandler) SubmitCount(w http.ResponseWriter, r *http.Request) {
	var req SubmitCountRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.respondError(w, r, err)
		return
	}

	token := r.Header.Get(SessionTokenHeader)
	result, err := h.commandBus.Send(r.Context(), commands.SubmitCountCommand{
		ProjectID:    chi.URLParam(r, "projectID"),
		SessionToken: token,
		Count:        string(req.Count),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWorkflow(w, http.StatusOK, token, result)
}

// SubmitDetails handles POST /projects/{projectID}/decomposition/details
func (h *DecompositionHandler) SubmitDetails(w http.ResponseWriter, r *http.Request) {
	var req SubmitDetailsRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.respondError(w, r, err)
		return
	}

	token := r.Header.Get(SessionTokenHeader)
	result, err := h.commandBus.Send(r.Context(), commands.SubmitDetailsCommand{
		ProjectID:    chi.URLParam(r, "projectID"),
		SessionToken: token,
		Children:     req.Children,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWorkflow(w, http.StatusOK, token, result)
}

// Abandon handles DELETE /projects/{projectID}/decomposition
func (h *DecompositionHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if _, err := h.commandBus.Send(r.Context(), commands.AbandonDecompositionCommand{
		ProjectID:    chi.URLParam(r, "projectID"),
		SessionToken: r.Header.Get(SessionTokenHeader),
	}); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DecompositionHandler) respondWorkflow(w http.ResponseWriter, status int, token string, result interface{}) {
	workflow, _ := result.(*decomposition.Workflow)
	w.Header().Set(SessionTokenHeader, token)
	h.respondJSON(w, status, WorkflowResponse{SessionToken: token, Workflow: workflow})
}
