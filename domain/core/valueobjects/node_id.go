package valueobjects

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// NodeID is the canonical identifier of a node inside one tree.
// Every id entering the domain goes through NewNodeIDFromString, so two ids
// compare equal exactly when their normalized strings match.
type NodeID struct {
	value string
}

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID{value: uuid.New().String()}
}

// NewNodeIDFromString normalizes an incoming id. Legacy numeric ids are
// accepted as their decimal string.
func NewNodeIDFromString(id string) (NodeID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	return NodeID{value: id}, nil
}

// MustNodeID is NewNodeIDFromString for ids known to be valid. It panics otherwise.
func MustNodeID(id string) NodeID {
	nid, err := NewNodeIDFromString(id)
	if err != nil {
		panic(err)
	}
	return nid
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return id.value
}

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler. The zero id encodes as null.
func (id NodeID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler. Both strings and numbers are
// accepted so trees written by older clients keep loading.
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		id.value = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		id.value = strings.TrimSpace(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("NodeID must be a string or a number")
	}
	id.value = n.String()
	return nil
}

// MarshalText implements encoding.TextMarshaler for map keys and attributevalue.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *NodeID) UnmarshalText(text []byte) error {
	id.value = strings.TrimSpace(string(text))
	return nil
}
