package domain

import (
	"context"
	"time"
)

// NotificationType defines the category of a client notification.
type NotificationType string

const (
	NotificationStatus  NotificationType = "status"
	NotificationConsole NotificationType = "console"
	NotificationState   NotificationType = "state"
)

// LogLevel is the severity of a console message.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// Notification is one message fanned out to attached clients.
// Exactly one of Status, Console or State is set, according to Type.
type Notification struct {
	Type       NotificationType `json:"type"`
	DebuggerID string           `json:"debugger_id"`
	Timestamp  time.Time        `json:"timestamp"`

	Status  Status          `json:"status,omitempty"`
	Console *ConsoleMessage `json:"console,omitempty"`
	State   *DebuggerState  `json:"state,omitempty"`
}

// ConsoleMessage is a line of program or debugger output.
type ConsoleMessage struct {
	Message string   `json:"message"`
	Level   LogLevel `json:"level"`
}

// NewStatusNotification builds a status notification.
func NewStatusNotification(debuggerID string, status Status) Notification {
	return Notification{
		Type:       NotificationStatus,
		DebuggerID: debuggerID,
		Timestamp:  time.Now(),
		Status:     status,
	}
}

// NewConsoleNotification builds a console notification.
func NewConsoleNotification(debuggerID, message string, level LogLevel) Notification {
	return Notification{
		Type:       NotificationConsole,
		DebuggerID: debuggerID,
		Timestamp:  time.Now(),
		Console:    &ConsoleMessage{Message: message, Level: level},
	}
}

// NewStateNotification builds a state notification.
func NewStateNotification(debuggerID string, state *DebuggerState) Notification {
	return Notification{
		Type:       NotificationState,
		DebuggerID: debuggerID,
		Timestamp:  time.Now(),
		State:      state,
	}
}

// ProgramEvent carries the context of a program lifecycle callback.
type ProgramEvent struct {
	DebuggerID string           `json:"debugger_id"`
	Program    string           `json:"program"`
	Thread     string           `json:"thread,omitempty"`
	Event      *Event           `json:"event,omitempty"`
	Assertion  *FailedAssertion `json:"assertion,omitempty"`
}

// LifecycleHooks is the program listener: callbacks notified of program start, end,
// assertion failures, added threads and completed supersteps.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnStarting        func(context.Context, *ProgramEvent)
	OnStarted         func(context.Context, *ProgramEvent)
	OnEnded           func(context.Context, *ProgramEvent)
	OnAssertionFailed func(context.Context, *ProgramEvent)
	OnThreadAdded     func(context.Context, *ProgramEvent)
	OnSuperstepDone   func(context.Context, *ProgramEvent)
	OnEventSelected   func(context.Context, *ProgramEvent)
	OnSyncPoint       func(context.Context, *ProgramEvent)
	OnRollback        func(context.Context, *ProgramEvent)
}
