// Package decomposition implements the guided breadth-first interview that
// grows a value tree one parent at a time.
package decomposition

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"valuetree/domain/config"
	"valuetree/domain/core/aggregates"
	"valuetree/domain/core/entities"
	"valuetree/domain/core/valueobjects"
	"valuetree/domain/services"
	pkgerrors "valuetree/pkg/errors"
)

// State is a step of the interview
type State string

const (
	StateAwaitingChildCount   State = "awaiting_child_count"
	StateAwaitingChildDetails State = "awaiting_child_details"
	StateSubmitting           State = "submitting"
	StateDequeue              State = "dequeue"
	StateFinalized            State = "finalized"
)

// IsTerminal reports whether no further input is accepted
func IsTerminal(s State) bool {
	return s == StateFinalized
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateAwaitingChildCount:
		return to == StateDequeue || to == StateAwaitingChildDetails
	case StateAwaitingChildDetails:
		return to == StateSubmitting
	case StateSubmitting:
		return to == StateDequeue || to == StateAwaitingChildDetails
	case StateDequeue:
		return to == StateAwaitingChildCount || to == StateFinalized
	default:
		return false
	}
}

// ChildDetail is what the user supplies for one child slot. ID is assigned
// by the interviewer when the slot is opened and is kept across retries.
type ChildDetail struct {
	ID         valueobjects.NodeID `json:"id"`
	Name       string              `json:"name"`
	Decompose  bool                `json:"decompose"`
	Importance *int                `json:"importance,omitempty"`
	Connection *int                `json:"connection,omitempty"`
}

// Workflow is the serializable state of one interview session
type Workflow struct {
	ProjectID   valueobjects.ProjectID `json:"projectId"`
	State       State                  `json:"state"`
	Target      *Target                `json:"target,omitempty"`
	Slots       []ChildDetail          `json:"slots,omitempty"`
	Pending     Queue                  `json:"pending"`
	ObjectName  string                 `json:"objectName,omitempty"`
	Submissions int                    `json:"submissions"`
	LastError   string                 `json:"lastError,omitempty"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// IsFinalized reports whether the interview has finished
func (w *Workflow) IsFinalized() bool {
	return IsTerminal(w.State)
}

func (w *Workflow) transition(to State) error {
	if !isAllowedTransition(w.State, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", w.State, to)
	}
	w.State = to
	return nil
}

// dequeue pops the next target or finalizes when nothing is pending
func (w *Workflow) dequeue() error {
	if w.State != StateDequeue {
		if err := w.transition(StateDequeue); err != nil {
			return err
		}
	}
	w.Slots = nil

	next, ok := w.Pending.Pop()
	if !ok {
		w.Target = nil
		return w.transition(StateFinalized)
	}
	w.Target = &next
	return w.transition(StateAwaitingChildCount)
}

// ChildAppender is the persistence collaborator used on submit
type ChildAppender interface {
	Find(ctx context.Context, projectID valueobjects.ProjectID, nodeID valueobjects.NodeID) (*entities.Node, error)
	AppendChildren(
		ctx context.Context,
		projectID valueobjects.ProjectID,
		parentID valueobjects.NodeID,
		children []*entities.Node,
		meta *services.ChildMetadata,
	) (*aggregates.Tree, error)
}

// Interviewer drives workflows through their states
type Interviewer struct {
	cfg *config.DomainConfig
	now func() time.Time
}

// NewInterviewer creates an interviewer bound to the given business limits
func NewInterviewer(cfg *config.DomainConfig) *Interviewer {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Interviewer{cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Start seeds a new workflow with one or more targets and moves to the first one.
func (iv *Interviewer) Start(projectID valueobjects.ProjectID, objectName string, seeds ...Target) (*Workflow, error) {
	if len(seeds) == 0 {
		return nil, pkgerrors.NewValidationError("decomposition needs a starting node")
	}

	w := &Workflow{
		ProjectID:  projectID,
		State:      StateDequeue,
		Pending:    Queue{},
		ObjectName: objectName,
		UpdatedAt:  iv.now(),
	}
	for _, s := range seeds {
		if s.NodeID.IsZero() {
			return nil, pkgerrors.NewValidationError("decomposition target needs a node id")
		}
		s.ProjectID = projectID
		w.Pending.Push(s)
	}

	if err := w.dequeue(); err != nil {
		return nil, err
	}
	return w, nil
}

// SubmitCount handles the answer to "how many sub-criteria?". Zero skips the
// current target. Any other value outside the configured range is rejected
// and the workflow stays where it was.
func (iv *Interviewer) SubmitCount(w *Workflow, raw string) error {
	if err := iv.expect(w, StateAwaitingChildCount); err != nil {
		return err
	}

	count, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return pkgerrors.NewValidationError(fmt.Sprintf("count must be a whole number, got %q", raw))
	}

	w.LastError = ""
	w.UpdatedAt = iv.now()

	switch {
	case count == 0:
		return w.dequeue()
	case count >= iv.cfg.MinDecompositionCount && count <= iv.cfg.MaxDecompositionCount:
		w.Slots = make([]ChildDetail, count)
		for i := range w.Slots {
			w.Slots[i].ID = valueobjects.NewNodeID()
		}
		return w.transition(StateAwaitingChildDetails)
	default:
		return pkgerrors.NewValidationError(
			fmt.Sprintf("count must be 0 or between %d and %d, got %d",
				iv.cfg.MinDecompositionCount, iv.cfg.MaxDecompositionCount, count))
	}
}

// SubmitDetails fills the open slots and appends the children to the current
// target. Each slot keeps the id it was opened with, so a submit whose
// children already sit under the target is taken as applied and never
// appended twice. On append failure the workflow returns to the details step
// with the slots kept. Children flagged for decomposition are queued.
func (iv *Interviewer) SubmitDetails(ctx context.Context, w *Workflow, appender ChildAppender, details []ChildDetail) error {
	if err := iv.expect(w, StateAwaitingChildDetails); err != nil {
		return err
	}
	if len(details) != len(w.Slots) {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("expected %d children, got %d", len(w.Slots), len(details)))
	}

	slots := make([]ChildDetail, len(details))
	children := make([]*entities.Node, len(details))
	for i, d := range details {
		name, err := valueobjects.NormalizeNameWithConfig(d.Name, iv.cfg)
		if err != nil {
			return pkgerrors.NewValidationError(fmt.Sprintf("child %d: %s", i+1, pkgerrors.GetAppError(err).Message))
		}
		d.Name = name
		d.ID = w.Slots[i].ID
		if d.ID.IsZero() {
			d.ID = valueobjects.NewNodeID()
		}
		slots[i] = d

		decompose := d.Decompose
		node, err := entities.NewLeafNode(name, &entities.Attributes{
			Importance: d.Importance,
			Connection: d.Connection,
			Decompose:  &decompose,
		})
		if err != nil {
			return err
		}
		node.ID = d.ID
		children[i] = node
	}

	if err := w.transition(StateSubmitting); err != nil {
		return err
	}
	w.Slots = slots
	w.UpdatedAt = iv.now()

	added, err := iv.appendOnce(ctx, w, appender, children)
	if err != nil {
		w.LastError = err.Error()
		if terr := w.transition(StateAwaitingChildDetails); terr != nil {
			return terr
		}
		return err
	}

	for _, c := range added {
		if c.Attributes.WantsDecomposition() {
			w.Pending.Push(Target{ProjectID: w.ProjectID, NodeID: c.ID, Name: c.Name})
		}
	}
	w.Submissions++
	w.LastError = ""

	return w.dequeue()
}

// appendOnce writes children under the target unless an earlier submit of
// the same slots already did. It returns the stored children in slot order.
func (iv *Interviewer) appendOnce(ctx context.Context, w *Workflow, appender ChildAppender, children []*entities.Node) ([]*entities.Node, error) {
	if stored, ok, err := iv.applied(ctx, w, appender); err != nil || ok {
		return stored, err
	}

	meta := &services.ChildMetadata{
		DecisionProcess: iv.cfg.DefaultDecisionProcess,
		ObjectName:      w.ObjectName,
	}
	_, appendErr := appender.AppendChildren(ctx, w.ProjectID, w.Target.NodeID, children, meta)
	if appendErr == nil {
		return children, nil
	}

	// a concurrent submit of this session may have landed first
	if stored, ok, err := iv.applied(ctx, w, appender); err == nil && ok {
		return stored, nil
	}
	return nil, appendErr
}

// applied reports whether every slot id is already a child of the target
func (iv *Interviewer) applied(ctx context.Context, w *Workflow, appender ChildAppender) ([]*entities.Node, bool, error) {
	target, err := appender.Find(ctx, w.ProjectID, w.Target.NodeID)
	if err != nil {
		return nil, false, err
	}

	byID := make(map[string]*entities.Node, len(target.Children))
	for _, c := range target.Children {
		byID[c.ID.String()] = c
	}

	stored := make([]*entities.Node, 0, len(w.Slots))
	for _, slot := range w.Slots {
		c, ok := byID[slot.ID.String()]
		if !ok {
			return nil, false, nil
		}
		stored = append(stored, c)
	}
	return stored, true, nil
}

func (iv *Interviewer) expect(w *Workflow, state State) error {
	if w == nil {
		return pkgerrors.NewNotFoundError("decomposition session")
	}
	if w.IsFinalized() {
		return pkgerrors.NewValidationError("decomposition is finalized")
	}
	if w.State != state {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("decomposition is in state %s, expected %s", w.State, state))
	}
	return nil
}
