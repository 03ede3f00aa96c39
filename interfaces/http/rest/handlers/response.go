package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"valuetree/domain/core/aggregates"
	"valuetree/domain/core/entities"
	pkgerrors "valuetree/pkg/errors"

	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// TreeResponse is the envelope every tree-returning endpoint uses
type TreeResponse struct {
	ProjectID string         `json:"projectId"`
	Version   int            `json:"version"`
	Tree      *entities.Node `json:"tree"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func newTreeResponse(tree *aggregates.Tree) TreeResponse {
	return TreeResponse{
		ProjectID: tree.ProjectID().String(),
		Version:   tree.Version(),
		Tree:      tree.Root(),
		CreatedAt: tree.CreatedAt(),
		UpdatedAt: tree.UpdatedAt(),
	}
}

// responder holds the helpers shared by the handlers
type responder struct {
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

func (h responder) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h responder) respondTree(w http.ResponseWriter, r *http.Request, status int, result interface{}) {
	tree, ok := result.(*aggregates.Tree)
	if !ok || tree == nil {
		h.respondError(w, r, pkgerrors.NewInternalError("unexpected tree result"))
		return
	}
	w.Header().Set("ETag", strconv.Quote(strconv.Itoa(tree.Version())))
	h.respondJSON(w, status, newTreeResponse(tree))
}

func (h responder) respondError(w http.ResponseWriter, r *http.Request, err error) {
	h.errHandler.Handle(w, r, err)
}

// decodeJSON reads a JSON body into dst. An empty body is allowed when
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(body).Decode(dst)
	if err == io.EOF && optional {
		return nil
	}
	if err != nil {
		return pkgerrors.NewValidationError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// expectedVersion reads If-Match. 3, "3" and W/"3" are accepted; a
// missing header or * means unconditional.
func expectedVersion(r *http.Request, fallback int) (int, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return fallback, nil
	}

	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		return 0, pkgerrors.NewValidationError(fmt.Sprintf("invalid If-Match version %q", r.Header.Get("If-Match")))
	}
	return version, nil
}
