package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"codeagent/pkg/logx"
	"codeagent/pkg/metrics"
)

// registration pairs a handler with its ordering information.
type registration struct {
	fn       Handler
	name     string
	priority int
	seq      int // registration order, tiebreaker for equal priority
}

// Registry maps event types to ordered handler chains. Handlers run in
// descending priority order; handlers with equal priority run in
// registration order.
type Registry struct {
	mu       sync.Mutex
	handlers map[EventType][]registration
	seq      int
	logger   *logx.Logger
	recorder *metrics.Recorder
}

// NewRegistry creates an empty hook registry. The recorder may be nil.
func NewRegistry(recorder *metrics.Recorder) *Registry {
	return &Registry{
		handlers: make(map[EventType][]registration),
		logger:   logx.NewLogger("hooks"),
		recorder: recorder,
	}
}

// Register adds a named handler for the given event with a priority.
// Higher priorities run earlier. The chain is kept sorted at
// registration time; the sort is stable with respect to insertion order
// for equal priorities.
func (r *Registry) Register(event EventType, name string, priority int, fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	regs := append(r.handlers[event], registration{
		fn:       fn,
		name:     name,
		priority: priority,
		seq:      r.seq,
	})
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority > regs[j].priority
		}
		return regs[i].seq < regs[j].seq
	})
	r.handlers[event] = regs
}

// HandlerCount returns the number of handlers registered for an event.
func (r *Registry) HandlerCount(event EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[event])
}

// Trigger runs every handler registered for the event in order,
// threading the context through the chain.
//
// Failure isolation: a handler that returns an error (or panics) is
// logged and skipped, and subsequent handlers run with the last
// successfully produced context. Trigger itself never fails; the
// returned context is always usable.
func (r *Registry) Trigger(ctx context.Context, event EventType, hc *Context) *Context {
	r.mu.Lock()
	regs := make([]registration, len(r.handlers[event]))
	copy(regs, r.handlers[event])
	r.mu.Unlock()

	if hc == nil {
		hc = NewContext(event, nil)
	}

	current := hc
	for _, reg := range regs {
		next, err := r.invoke(ctx, reg, current)
		if err != nil {
			r.logger.Warn("hook %s failed on %s: %v", reg.name, event, err)
			r.recorder.ObserveHookFailure(event.String(), reg.name)
			continue
		}
		if next == nil {
			r.logger.Warn("hook %s on %s returned nil context, keeping previous", reg.name, event)
			continue
		}
		current = next
	}
	return current
}

// invoke runs a single handler, converting panics into errors so they
// are isolated like ordinary failures.
func (r *Registry) invoke(ctx context.Context, reg registration, hc *Context) (out *Context, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = fmt.Errorf("hook panicked: %v", p)
		}
	}()
	return reg.fn(ctx, hc)
}
