package events

import (
	"time"

	"valuetree/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Event type names
const (
	TypeTreeCreated            = "tree.created"
	TypeTreeReplaced           = "tree.replaced"
	TypeChildrenAppended       = "tree.children_appended"
	TypeNodeRenamed            = "tree.node_renamed"
	TypeSubtreeDeleted         = "tree.subtree_deleted"
	TypeRequirementSet         = "tree.requirement_set"
	TypeDecompositionFinalized = "decomposition.finalized"
)

func newBase(projectID valueobjects.ProjectID, eventType string, version int, ts time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: projectID.String(),
		EventType:   eventType,
		Timestamp:   ts,
		Version:     version,
	}
}

// TreeCreated is raised when a project tree is created
type TreeCreated struct {
	BaseEvent
	RootID   valueobjects.NodeID `json:"root_id"`
	RootName string              `json:"root_name"`
}

// NewTreeCreated creates a TreeCreated event
func NewTreeCreated(projectID valueobjects.ProjectID, rootID valueobjects.NodeID, rootName string, ts time.Time) TreeCreated {
	return TreeCreated{
		BaseEvent: newBase(projectID, TypeTreeCreated, 1, ts),
		RootID:    rootID,
		RootName:  rootName,
	}
}

// TreeReplaced is raised when a whole tree is overwritten
type TreeReplaced struct {
	BaseEvent
	NodeCount int `json:"node_count"`
}

// NewTreeReplaced creates a TreeReplaced event
func NewTreeReplaced(projectID valueobjects.ProjectID, version, nodeCount int, ts time.Time) TreeReplaced {
	return TreeReplaced{
		BaseEvent: newBase(projectID, TypeTreeReplaced, version, ts),
		NodeCount: nodeCount,
	}
}

// ChildrenAppended is raised when a batch of children is attached to a parent
type ChildrenAppended struct {
	BaseEvent
	ParentID valueobjects.NodeID   `json:"parent_id"`
	ChildIDs []valueobjects.NodeID `json:"child_ids"`
}

// NewChildrenAppended creates a ChildrenAppended event
func NewChildrenAppended(projectID valueobjects.ProjectID, version int, parentID valueobjects.NodeID, childIDs []valueobjects.NodeID, ts time.Time) ChildrenAppended {
	return ChildrenAppended{
		BaseEvent: newBase(projectID, TypeChildrenAppended, version, ts),
		ParentID:  parentID,
		ChildIDs:  childIDs,
	}
}

// NodeRenamed is raised when a node changes its name
type NodeRenamed struct {
	BaseEvent
	NodeID  valueobjects.NodeID `json:"node_id"`
	OldName string              `json:"old_name"`
	NewName string              `json:"new_name"`
}

// NewNodeRenamed creates a NodeRenamed event
func NewNodeRenamed(projectID valueobjects.ProjectID, version int, nodeID valueobjects.NodeID, oldName, newName string, ts time.Time) NodeRenamed {
	return NodeRenamed{
		BaseEvent: newBase(projectID, TypeNodeRenamed, version, ts),
		NodeID:    nodeID,
		OldName:   oldName,
		NewName:   newName,
	}
}

// SubtreeDeleted is raised when a node and its descendants are removed
type SubtreeDeleted struct {
	BaseEvent
	NodeID       valueobjects.NodeID `json:"node_id"`
	RemovedCount int                 `json:"removed_count"`
}

// NewSubtreeDeleted creates a SubtreeDeleted event
func NewSubtreeDeleted(projectID valueobjects.ProjectID, version int, nodeID valueobjects.NodeID, removed int, ts time.Time) SubtreeDeleted {
	return SubtreeDeleted{
		BaseEvent:    newBase(projectID, TypeSubtreeDeleted, version, ts),
		NodeID:       nodeID,
		RemovedCount: removed,
	}
}

// RequirementSet is raised when a leaf requirement is set or cleared
type RequirementSet struct {
	BaseEvent
	NodeID  valueobjects.NodeID `json:"node_id"`
	Kind    string              `json:"kind,omitempty"`
	Cleared bool                `json:"cleared"`
}

// NewRequirementSet creates a RequirementSet event. An empty kind means cleared.
func NewRequirementSet(projectID valueobjects.ProjectID, version int, nodeID valueobjects.NodeID, kind string, ts time.Time) RequirementSet {
	return RequirementSet{
		BaseEvent: newBase(projectID, TypeRequirementSet, version, ts),
		NodeID:    nodeID,
		Kind:      kind,
		Cleared:   kind == "",
	}
}

// DecompositionFinalized is raised when a guided decomposition runs out of queued nodes
type DecompositionFinalized struct {
	BaseEvent
	SessionToken string `json:"session_token"`
	Submissions  int    `json:"submissions"`
}

// NewDecompositionFinalized creates a DecompositionFinalized event
func NewDecompositionFinalized(projectID valueobjects.ProjectID, sessionToken string, submissions int, ts time.Time) DecompositionFinalized {
	return DecompositionFinalized{
		BaseEvent:    newBase(projectID, TypeDecompositionFinalized, 1, ts),
		SessionToken: sessionToken,
		Submissions:  submissions,
	}
}
