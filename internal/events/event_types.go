package events

import (
	"time"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventStudentCreated EventType = "student_created"
	EventStudentUpdated EventType = "student_updated"
	EventStudentDeleted EventType = "student_deleted"
)

// StudentEventTypes lists every student lifecycle event.
var StudentEventTypes = []EventType{EventStudentCreated, EventStudentUpdated, EventStudentDeleted}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	StudentID string      `json:"student_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// StudentCreatedPayload payload.
type StudentCreatedPayload struct {
	OwnerID *string `json:"owner_id,omitempty"`
	Course  string  `json:"course"`
}

// StudentUpdatedPayload lists the fields that were supplied.
type StudentUpdatedPayload struct {
	Fields []string `json:"fields"`
}
