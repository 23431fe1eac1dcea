// Package events defines event types and structures for switch lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every switch lifecycle event.
const Topic = "flowroute.switch.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	SwitchCaseSelectedEvent EventType = "switch.case.selected"
	SwitchCaseFinishedEvent EventType = "switch.case.finished"
	SwitchCompletedEvent    EventType = "switch.completed"
)

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	InvocationID string         `json:"invocation_id"`
	NodeID       string         `json:"node_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent fills the common event fields.
func NewBaseEvent(eventType EventType, invocationID, nodeID string) BaseEvent {
	return BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		InvocationID: invocationID,
		NodeID:       nodeID,
	}
}

// SwitchCaseSelected is published when a discriminant value creates a condition.
type SwitchCaseSelected struct {
	BaseEvent

	Index     int    `json:"index"`
	Value     any    `json:"value"`
	Case      string `json:"case"`
	Operation string `json:"operation"`
	Level     int    `json:"level"`
	Default   bool   `json:"default"`
}

func (e SwitchCaseSelected) GetType() EventType {
	return SwitchCaseSelectedEvent
}

// SwitchCaseFinished is published when every input has moved past a condition.
type SwitchCaseFinished struct {
	BaseEvent

	Index     int    `json:"index"`
	Case      string `json:"case"`
	Operation string `json:"operation"`
}

func (e SwitchCaseFinished) GetType() EventType {
	return SwitchCaseFinishedEvent
}

// SwitchCompleted is published when an invocation has emitted its last packet.
type SwitchCompleted struct {
	BaseEvent

	Conditions int           `json:"conditions"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

func (e SwitchCompleted) GetType() EventType {
	return SwitchCompletedEvent
}
