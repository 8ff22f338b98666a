package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeagent/pkg/hooks"
	"codeagent/pkg/proto"
)

func triggerGate(t *testing.T, handler hooks.Handler, metadata map[string]any) *hooks.Context {
	t.Helper()
	hc := hooks.NewContext(hooks.BeforeToolCall, nil)
	for k, v := range metadata {
		hc.Metadata[k] = v
	}
	out, err := handler(context.Background(), hc)
	require.NoError(t, err)
	return out
}

func TestExecutionGateAutoApprove(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	handler := NewExecutionGate(m, true)

	out := triggerGate(t, handler, map[string]any{MetaTool: ToolSandboxExecute})
	assert.Equal(t, true, out.Metadata[MetaExecutionApproved])
	assert.Equal(t, 0, m.PendingCount())
}

func TestExecutionGateIgnoresOtherTools(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	handler := NewExecutionGate(m, false)

	out := triggerGate(t, handler, map[string]any{MetaTool: "search"})
	_, present := out.Metadata[MetaExecutionApproved]
	assert.False(t, present)
}

func TestExecutionGateDeniesOnTimeout(t *testing.T) {
	// No operator channel and a short default timeout: the gate must
	// come back with a denial, not an error.
	m := NewManager(nil, 50*time.Millisecond, nil)
	handler := NewExecutionGate(m, false)

	out := triggerGate(t, handler, map[string]any{
		MetaTool:        ToolSandboxExecute,
		MetaDescription: "run main.py",
	})

	assert.Equal(t, false, out.Metadata[MetaExecutionApproved])
	assert.NotEmpty(t, out.Metadata[MetaRejectionReason])
}

func TestExecutionGateApprovedByOperator(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	handler := NewExecutionGate(m, false)

	done := make(chan *hooks.Context, 1)
	go func() {
		done <- triggerGate(t, handler, map[string]any{MetaTool: ToolSandboxExecute})
	}()

	// Approve as soon as the request shows up.
	require.Eventually(t, func() bool { return m.PendingCount() == 1 }, time.Second, 5*time.Millisecond)
	for _, req := range pendingRequests(m) {
		require.NoError(t, m.Approve(req.ID, "fine"))
	}

	out := <-done
	assert.Equal(t, true, out.Metadata[MetaExecutionApproved])
}

func pendingRequests(m *Manager) []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]*Request, 0, len(m.pending))
	for _, r := range m.pending {
		reqs = append(reqs, r)
	}
	return reqs
}

func TestPlanGateOnlyFiresInPlanning(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	handler := NewPlanGate(m, true)

	out := triggerGate(t, handler, map[string]any{MetaPhase: proto.PhaseCoding.String()})
	_, present := out.Metadata[MetaPlanApproved]
	assert.False(t, present)

	out = triggerGate(t, handler, map[string]any{MetaPhase: proto.PhasePlanning.String()})
	assert.Equal(t, true, out.Metadata[MetaPlanApproved])
}

func TestSystemGateAllowList(t *testing.T) {
	m := NewManager(nil, 50*time.Millisecond, nil)
	handler := NewSystemGate(m, false)

	// Non-dangerous tool passes ungated.
	out := triggerGate(t, handler, map[string]any{MetaTool: "read_file"})
	_, present := out.Metadata[MetaSystemApproved]
	assert.False(t, present)

	// Dangerous tool hits the gate; with no operator it times out to denial.
	out = triggerGate(t, handler, map[string]any{MetaTool: "package_install"})
	assert.Equal(t, false, out.Metadata[MetaSystemApproved])
}
