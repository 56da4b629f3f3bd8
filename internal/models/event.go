package models

import (
	"time"
)

// EventType categorizes events published by stores and engines.
type EventType string

const (
	// Engine events
	EventTypeThreadUpdated            EventType = "thread.updated"
	EventTypeReplyPhaseChanged        EventType = "reply.phase_changed"
	EventTypeConversationPhaseChanged EventType = "conversation.phase_changed"

	// Store events
	EventTypePostDeleted  EventType = "post.deleted"
	EventTypePostRestored EventType = "post.restored"
)

// Event is a notification fanned out through the in-process publisher.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Type is the kind of event.
	Type EventType `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// ThreadID is the engine instance the event came from (empty for store events).
	ThreadID string `json:"thread_id,omitempty"`

	// PostID is the post the event relates to.
	PostID string `json:"post_id,omitempty"`

	// Payload carries event-specific data, e.g. a thread update.
	Payload any `json:"payload,omitempty"`
}
