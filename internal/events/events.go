// Package events provides an event system for harness and supervisor lifecycle notifications.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventIterationStart is emitted before the harness invokes an iteration
	EventIterationStart EventType = "iteration_start"
	// EventIterationFinish is emitted after an iteration returns
	EventIterationFinish EventType = "iteration_finish"
	// EventPortRotated is emitted when the harness rewrites the port argument
	EventPortRotated EventType = "port_rotated"
	// EventSupervisorStart is emitted when the server supervisor takes over a session
	EventSupervisorStart EventType = "supervisor_start"
	// EventPidfileCreated is emitted after the pidfile is written
	EventPidfileCreated EventType = "pidfile_created"
	// EventServerAttempt is emitted after each server run, successful or not
	EventServerAttempt EventType = "server_attempt"
	// EventSupervisorStop is emitted when the run loop exits
	EventSupervisorStop EventType = "supervisor_stop"
	// EventPidfileRemoved is emitted after the pidfile is deleted
	EventPidfileRemoved EventType = "pidfile_removed"
	// EventClientAttempt is emitted after the single client run
	EventClientAttempt EventType = "client_attempt"
)

// StopReason explains why the supervisor run loop ended.
type StopReason string

const (
	StopOneOff        StopReason = "one_off"
	StopTooManyErrors StopReason = "too_many_errors"
	StopCancelled     StopReason = "cancelled"
)

// Event represents a lifecycle event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Iteration   int        `json:"iteration,omitempty"`
	Attempt     int        `json:"attempt,omitempty"`
	Consecutive int        `json:"consecutive,omitempty"`
	Success     bool       `json:"success,omitempty"`
	ExitCode    int        `json:"exit_code,omitempty"`
	OldPort     int        `json:"old_port,omitempty"`
	NewPort     int        `json:"new_port,omitempty"`
	Path        string     `json:"path,omitempty"`
	Reason      StopReason `json:"reason,omitempty"`
	Error       string     `json:"error,omitempty"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewIterationStartEvent creates an iteration start event
func NewIterationStartEvent(iteration int) Event {
	return Event{
		Type:      EventIterationStart,
		Timestamp: time.Now(),
		Data:      EventData{Iteration: iteration},
	}
}

// NewIterationFinishEvent creates an iteration finish event
func NewIterationFinishEvent(iteration, exitCode int) Event {
	return Event{
		Type:      EventIterationFinish,
		Timestamp: time.Now(),
		Data: EventData{
			Iteration: iteration,
			ExitCode:  exitCode,
			Success:   exitCode == 0,
		},
	}
}

// NewPortRotatedEvent creates a port rotation event
func NewPortRotatedEvent(iteration, oldPort, newPort int) Event {
	return Event{
		Type:      EventPortRotated,
		Timestamp: time.Now(),
		Data: EventData{
			Iteration: iteration,
			OldPort:   oldPort,
			NewPort:   newPort,
		},
	}
}

// NewSupervisorStartEvent creates a supervisor start event
func NewSupervisorStartEvent(sessionID string) Event {
	return Event{
		Type:      EventSupervisorStart,
		Timestamp: time.Now(),
		SessionID: sessionID,
	}
}

// NewPidfileEvent creates a pidfile created or removed event
func NewPidfileEvent(t EventType, sessionID, path string) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      EventData{Path: path},
	}
}

// NewServerAttemptEvent creates a server attempt event
func NewServerAttemptEvent(sessionID string, attempt, consecutive int, err error) Event {
	return Event{
		Type:      EventServerAttempt,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data: EventData{
			Attempt:     attempt,
			Consecutive: consecutive,
			Success:     err == nil,
			Error:       errString(err),
		},
	}
}

// NewSupervisorStopEvent creates a supervisor stop event
func NewSupervisorStopEvent(sessionID string, reason StopReason, attempts int) Event {
	return Event{
		Type:      EventSupervisorStop,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data: EventData{
			Attempt: attempts,
			Reason:  reason,
		},
	}
}

// NewClientAttemptEvent creates a client attempt event
func NewClientAttemptEvent(sessionID string, err error) Event {
	return Event{
		Type:      EventClientAttempt,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data: EventData{
			Success: err == nil,
			Error:   errString(err),
		},
	}
}
