package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeagent/pkg/logx"
	"codeagent/pkg/metrics"
	"codeagent/pkg/proto"
)

// Channel presents a request to an operator and returns the raw response
// token. Present may block indefinitely; the manager enforces the
// timeout around it.
type Channel interface {
	Present(req *Request) (string, error)
}

// Manager owns the approval request lifecycle for one workflow run. It
// is an explicit dependency passed to whichever component gates an
// operation; there is no process-wide instance.
type Manager struct {
	// mu guards pending and history; each Request guards its own status.
	mu      sync.Mutex
	pending map[string]*Request
	history []*Request

	channel        Channel
	defaultTimeout time.Duration
	logger         *logx.Logger
	recorder       *metrics.Recorder
}

// NewManager creates an approval manager. The channel may be nil for
// fully automated runs (requests then resolve only by explicit calls or
// timeout). The recorder may be nil.
func NewManager(channel Channel, defaultTimeout time.Duration, recorder *metrics.Recorder) *Manager {
	return &Manager{
		pending:        make(map[string]*Request),
		channel:        channel,
		defaultTimeout: defaultTimeout,
		logger:         logx.NewLogger("approval"),
		recorder:       recorder,
	}
}

// CreateRequest allocates a PENDING request and adds it to the pending
// set. A zero timeout uses the manager's default.
func (m *Manager) CreateRequest(opType proto.ApprovalType, description string, snapshot map[string]any, timeout time.Duration) *Request {
	if timeout <= 0 {
		timeout = m.defaultTimeout
	}
	req := newRequest(opType, description, snapshot, timeout)

	m.mu.Lock()
	m.pending[req.ID] = req
	m.mu.Unlock()

	m.logger.Info("created %s approval request %s: %s", req.Type, req.ID, description)
	return req
}

// Get returns a request by ID, pending or resolved.
func (m *Manager) Get(id string) (*Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req, exists := m.pending[id]; exists {
		return req, true
	}
	for _, req := range m.history {
		if req.ID == id {
			return req, true
		}
	}
	return nil, false
}

// WaitForApproval presents the request to the operator channel and
// blocks until it resolves or its timeout elapses, at which point it is
// forced to TIMEOUT. The wait is notification-based: resolution closes
// the request's done channel, so there is no polling latency.
//
// Denial and timeout are first-class outcomes, not errors; the error
// return is reserved for unknown IDs and context cancellation.
func (m *Manager) WaitForApproval(ctx context.Context, id string) (*Request, error) {
	m.mu.Lock()
	req, exists := m.pending[id]
	m.mu.Unlock()
	if !exists {
		// Already resolved requests return immediately.
		if resolved, ok := m.Get(id); ok {
			return resolved, nil
		}
		return nil, fmt.Errorf("unknown approval request %s", id)
	}

	if m.channel != nil {
		go func() {
			token, err := m.channel.Present(req)
			if err != nil {
				m.logger.Warn("operator channel failed for %s: %v", req.ID, err)
				return
			}
			m.Respond(req.ID, token)
		}()
	}

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()

	select {
	case <-req.Done():
	case <-timer.C:
		m.resolveAndArchive(req, proto.ApprovalStatusTimeout, "approval wait timed out")
	case <-ctx.Done():
		m.resolveAndArchive(req, proto.ApprovalStatusTimeout, "workflow cancelled during approval wait")
		return req, fmt.Errorf("approval wait cancelled: %w", ctx.Err())
	}
	return req, nil
}

// Respond resolves a pending request from a raw operator token.
func (m *Manager) Respond(id, token string) {
	req, exists := m.Get(id)
	if !exists {
		m.logger.Warn("response for unknown approval request %s", id)
		return
	}
	status, reason := ParseResponseToken(token)
	m.resolveAndArchive(req, status, reason)
}

// Approve resolves a pending request as APPROVED with a rationale.
func (m *Manager) Approve(id, rationale string) error {
	return m.resolveByID(id, proto.ApprovalStatusApproved, rationale)
}

// Reject resolves a pending request as REJECTED with a rationale.
func (m *Manager) Reject(id, rationale string) error {
	return m.resolveByID(id, proto.ApprovalStatusRejected, rationale)
}

func (m *Manager) resolveByID(id string, status proto.ApprovalStatus, rationale string) error {
	req, exists := m.Get(id)
	if !exists {
		return fmt.Errorf("unknown approval request %s", id)
	}
	m.resolveAndArchive(req, status, rationale)
	return nil
}

// resolveAndArchive applies a terminal status and moves the request from
// the pending set into the immutable history. Repeated resolution
// attempts are no-ops; only the winning resolution archives.
func (m *Manager) resolveAndArchive(req *Request, status proto.ApprovalStatus, response string) {
	if !req.resolve(status, response) {
		return
	}

	m.mu.Lock()
	delete(m.pending, req.ID)
	m.history = append(m.history, req)
	m.mu.Unlock()

	m.recorder.ObserveApproval(req.Type.String(), status.String())
	m.logger.Info("approval request %s resolved: %s", req.ID, status)
}

// PendingCount returns the number of unresolved requests.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// History returns the resolved requests, oldest first.
func (m *Manager) History() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Request{}, m.history...)
}
