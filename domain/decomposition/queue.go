package decomposition

import "valuetree/domain/core/valueobjects"

// Target names a node that still awaits decomposition, with enough context
// to render the next interview step.
type Target struct {
	ProjectID valueobjects.ProjectID `json:"projectId"`
	NodeID    valueobjects.NodeID    `json:"nodeId"`
	Name      string                 `json:"name"`
}

// Queue is the FIFO of pending targets. Breadth-first order falls out of
// appending on submit and popping the head on dequeue.
type Queue []Target

// Push appends targets at the tail
func (q *Queue) Push(targets ...Target) {
	*q = append(*q, targets...)
}

// Pop removes and returns the head
func (q *Queue) Pop() (Target, bool) {
	if len(*q) == 0 {
		return Target{}, false
	}
	head := (*q)[0]
	*q = append(Queue(nil), (*q)[1:]...)
	return head, true
}

// Len returns the number of pending targets
func (q Queue) Len() int {
	return len(q)
}
