package interview

import (
	"context"
	"time"
)

// Status is the lifecycle status of an interview as stored externally.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Roles for conversation turns.
const (
	RoleCandidate   = "candidate"
	RoleInterviewer = "interviewer"
)

// Turn is one immutable contribution to the conversation history.
type Turn struct {
	Role       string
	Text       string
	ObservedAt time.Time
}

// Details describes an interview as fetched from the store.
type Details struct {
	ID            string
	Status        Status
	Role          string
	Description   string
	CandidateName string
	OwnerID       string
}

// Store is the narrow interface to the interview persistence layer.
type Store interface {
	Fetch(ctx context.Context, id string) (Details, error)
	SetStatus(ctx context.Context, id string, status Status) error
	AppendTurn(ctx context.Context, id, role, text string) error
}

// Notifier delivers best-effort status events to the interview owner.
// Implementations must never block the caller on delivery.
type Notifier interface {
	Notify(ownerID, event string, payload map[string]any)
}
