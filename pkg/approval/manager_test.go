package approval

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeagent/pkg/proto"
)

func TestStatusIsMonotonic(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	req := m.CreateRequest(proto.ApprovalTypeExecution, "run code", nil, 0)

	require.Equal(t, proto.ApprovalStatusPending, req.Status())
	require.NoError(t, m.Approve(req.ID, "looks fine"))
	assert.Equal(t, proto.ApprovalStatusApproved, req.Status())

	// Repeated resolution attempts are no-ops.
	assert.NoError(t, m.Reject(req.ID, "changed my mind"))
	assert.Equal(t, proto.ApprovalStatusApproved, req.Status())
	assert.Equal(t, "looks fine", req.Response())

	// Resolved request moved from pending into history exactly once.
	assert.Equal(t, 0, m.PendingCount())
	assert.Len(t, m.History(), 1)
}

func TestWaitForApprovalWakesOnResolution(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	req := m.CreateRequest(proto.ApprovalTypePlan, "accept plan", nil, time.Minute)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = m.Approve(req.ID, "ship it")
	}()

	start := time.Now()
	resolved, err := m.WaitForApproval(context.Background(), req.ID)
	require.NoError(t, err)

	assert.Equal(t, proto.ApprovalStatusApproved, resolved.Status())
	// Notification-based wake-up, not a 1s polling loop.
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWaitForApprovalTimesOut(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	req := m.CreateRequest(proto.ApprovalTypeExecution, "run code", nil, 50*time.Millisecond)

	resolved, err := m.WaitForApproval(context.Background(), req.ID)
	require.NoError(t, err)

	assert.Equal(t, proto.ApprovalStatusTimeout, resolved.Status())
	assert.Equal(t, 0, m.PendingCount())
}

func TestWaitForApprovalContextCancel(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	req := m.CreateRequest(proto.ApprovalTypeExecution, "run code", nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	resolved, err := m.WaitForApproval(ctx, req.ID)
	assert.Error(t, err)
	assert.Equal(t, proto.ApprovalStatusTimeout, resolved.Status())
}

func TestWaitForUnknownRequest(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	_, err := m.WaitForApproval(context.Background(), "approval-missing")
	assert.Error(t, err)
}

func TestChannelTokenResolution(t *testing.T) {
	in := strings.NewReader("yes\n")
	var out strings.Builder
	m := NewManager(newConsoleChannelForTest(in, &out), time.Minute, nil)

	req := m.CreateRequest(proto.ApprovalTypeSystem, "delete scratch files", map[string]any{"path": "/tmp/x"}, time.Second)
	resolved, err := m.WaitForApproval(context.Background(), req.ID)
	require.NoError(t, err)

	assert.Equal(t, proto.ApprovalStatusApproved, resolved.Status())
	assert.Contains(t, out.String(), "APPROVAL REQUIRED")
	assert.Contains(t, out.String(), "delete scratch files")
	assert.Contains(t, out.String(), "path: /tmp/x")
}

func TestParseResponseToken(t *testing.T) {
	cases := []struct {
		token  string
		status proto.ApprovalStatus
		reason string
	}{
		{"yes", proto.ApprovalStatusApproved, ""},
		{" Y ", proto.ApprovalStatusApproved, ""},
		{"OK", proto.ApprovalStatusApproved, ""},
		{"sí", proto.ApprovalStatusApproved, ""},
		{"ja", proto.ApprovalStatusApproved, ""},
		{"no", proto.ApprovalStatusRejected, ""},
		{"NEIN", proto.ApprovalStatusRejected, ""},
		{"too risky for prod", proto.ApprovalStatusRejected, "too risky for prod"},
	}
	for _, tc := range cases {
		status, reason := ParseResponseToken(tc.token)
		assert.Equal(t, tc.status, status, "token %q", tc.token)
		assert.Equal(t, tc.reason, reason, "token %q", tc.token)
	}
}
