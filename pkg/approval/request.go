// Package approval implements the human-in-the-loop gate pausing risky
// operations (code execution, plan acceptance, dangerous system calls)
// until an operator consents or a timeout expires.
package approval

import (
	"strings"
	"sync"
	"time"

	"codeagent/pkg/proto"
)

// Request is one approval request. It is mutable until it reaches a
// terminal status, after which the status never changes again.
type Request struct {
	ID          string
	Type        proto.ApprovalType
	Description string
	Context     map[string]any // snapshot of the gated operation's context
	RequestedAt time.Time
	Timeout     time.Duration

	mu          sync.Mutex
	status      proto.ApprovalStatus
	response    string
	respondedAt time.Time
	done        chan struct{} // closed exactly once, on resolution
}

func newRequest(opType proto.ApprovalType, description string, snapshot map[string]any, timeout time.Duration) *Request {
	return &Request{
		ID:          proto.GenerateApprovalID(),
		Type:        opType,
		Description: description,
		Context:     snapshot,
		RequestedAt: time.Now().UTC(),
		Timeout:     timeout,
		status:      proto.ApprovalStatusPending,
		done:        make(chan struct{}),
	}
}

// Status returns the current status.
func (r *Request) Status() proto.ApprovalStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Response returns the operator's rationale, set on resolution.
func (r *Request) Response() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response
}

// RespondedAt returns when the request reached its terminal status.
func (r *Request) RespondedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.respondedAt
}

// Done returns a channel closed when the request resolves. Waiters block
// on it instead of polling.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// resolve moves the request to a terminal status. It is a no-op if the
// request already resolved; the first resolution wins.
func (r *Request) resolve(status proto.ApprovalStatus, response string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.IsTerminal() {
		return false
	}
	r.status = status
	r.response = response
	r.respondedAt = time.Now().UTC()
	close(r.done)
	return true
}

// Operator token vocabulary. Residual tokens reject with the token
// itself as the reason.
var (
	//nolint:gochecknoglobals // fixed vocabulary tables
	approveTokens = map[string]bool{
		"yes": true, "y": true, "approve": true, "approved": true, "ok": true,
		"si": true, "sí": true, "oui": true, "ja": true, "da": true,
	}
	//nolint:gochecknoglobals
	rejectTokens = map[string]bool{
		"no": true, "n": true, "reject": true, "rejected": true,
		"deny": true, "denied": true, "nein": true, "non": true,
	}
)

// ParseResponseToken maps a raw operator token to a terminal status and
// a rationale. Unrecognized tokens reject, with the token preserved as
// the rejection reason.
func ParseResponseToken(token string) (proto.ApprovalStatus, string) {
	normalized := strings.ToLower(strings.TrimSpace(token))
	switch {
	case approveTokens[normalized]:
		return proto.ApprovalStatusApproved, ""
	case rejectTokens[normalized]:
		return proto.ApprovalStatusRejected, ""
	default:
		return proto.ApprovalStatusRejected, strings.TrimSpace(token)
	}
}
