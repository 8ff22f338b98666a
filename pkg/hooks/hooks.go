// Package hooks provides the cross-cutting interceptor pipeline that
// wraps phase transitions and tool invocations. Handlers are registered
// per event type with a priority; triggering an event runs the chain in
// order, isolating individual handler failures so one misbehaving hook
// cannot halt the workflow.
package hooks

import (
	"context"
)

// EventType names a hook point in the workflow.
type EventType string

// Hook event taxonomy.
const (
	BeforeAgent          EventType = "before_agent"
	AfterAgent           EventType = "after_agent"
	BeforeModel          EventType = "before_model"
	AfterModel           EventType = "after_model"
	WrapModelCall        EventType = "wrap_model_call"
	BeforeToolCall       EventType = "before_tool_call"
	AfterToolCall        EventType = "after_tool_call"
	WrapToolCall         EventType = "wrap_tool_call"
	BeforeClarification  EventType = "before_clarification"
	AfterClarification   EventType = "after_clarification"
	WaitForClarification EventType = "wait_for_clarification"
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	return string(e)
}

// Context is the transient envelope threaded through a hook chain. It is
// created fresh per triggered event and discarded after the chain
// completes; its final Data is what downstream logic uses.
//
// Metadata is the only sanctioned channel for a hook to influence the
// caller's control flow: handlers write side-band decisions (e.g.
// "execution_approved", "rejection_reason") and the caller inspects them
// after Trigger returns. Handlers must never change Data's type.
type Context struct {
	// Data carries the phase-specific payload, often the workflow
	// state itself.
	Data any

	// Metadata is the side channel between hooks and the caller.
	Metadata map[string]any

	// Event is the event type this context was created for.
	Event EventType
}

// NewContext creates a hook context for the given event.
func NewContext(event EventType, data any) *Context {
	return &Context{
		Data:     data,
		Metadata: make(map[string]any),
		Event:    event,
	}
}

// Handler observes or gates the operation surrounding its event point.
// It receives the context produced by the previous handler in the chain
// and returns the context for the next one. Handlers may block on I/O
// (e.g. waiting for operator approval); ctx carries cancellation.
//
// Returning an error marks the handler as failed: the error is logged,
// counted, and the chain continues with the last successfully produced
// context. Returning a nil *Context without an error is treated the
// same way.
type Handler func(ctx context.Context, hc *Context) (*Context, error)
