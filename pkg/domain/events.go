package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTransition      EventType = "transition"
	EventMessageSent     EventType = "message_sent"
	EventMessageReceived EventType = "message_received"
	EventFault           EventType = "fault"
	EventHandlerError    EventType = "handler_error"
)

// Cause names what triggered a tag transition.
type Cause string

const (
	CauseLocalFault   Cause = "local_fault"
	CauseLocalWrite   Cause = "local_write"
	CauseServeRequest Cause = "serve_request"
	CauseInvalidate   Cause = "invalidate"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// TransitionEvent reports a tag change on a page.
type TransitionEvent struct {
	EventBase
	Addr  uint64 `json:"addr"`
	From  Tag    `json:"from"`
	To    Tag    `json:"to"`
	Cause Cause  `json:"cause"`
}

// MessageEvent reports a protocol message crossing the transport.
type MessageEvent struct {
	EventBase
	Kind string `json:"kind"`
	ID   uint64 `json:"id"`
	Addr uint64 `json:"addr"`
	Err  error  `json:"-"`
}

// FaultEvent reports the outcome of a local fault.
type FaultEvent struct {
	EventBase
	Addr     uint64        `json:"addr"`
	Kind     AccessKind    `json:"kind"`
	Duration time.Duration `json:"duration"`
	NoData   bool          `json:"no_data,omitempty"`
	Local    bool          `json:"local,omitempty"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnTransition      func(context.Context, *TransitionEvent)
	OnMessageSent     func(context.Context, *MessageEvent)
	OnMessageReceived func(context.Context, *MessageEvent)
	OnFault           func(context.Context, *FaultEvent)
	OnHandlerError    func(context.Context, *MessageEvent)
}
