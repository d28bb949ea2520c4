// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package hitl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAndApprove(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	req := svc.Submit("sess-1", "bash", map[string]interface{}{"command": "rm file.txt"}, "bash_approval", "destructive command")
	require.Equal(t, Pending, req.Status)

	decided, err := svc.Approve(req.ID, "operator-1", "looks safe")
	require.NoError(t, err)
	assert.Equal(t, Approved, decided.Status)
	assert.Equal(t, "operator-1", decided.DecidedBy)
}

func TestDenyThenCannotDecideAgain(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	req := svc.Submit("sess-1", "bash", nil, "bash_approval", "")

	_, err := svc.Deny(req.ID, "operator-1", "no")
	require.NoError(t, err)

	_, err = svc.Approve(req.ID, "operator-2", "actually fine")
	assert.ErrorIs(t, err, ErrAlreadyDecided)
}

func TestExpiry(t *testing.T) {
	svc := NewService(ServiceConfig{DefaultExpiry: 10 * time.Millisecond, MaxExpiry: time.Minute})
	req := svc.Submit("sess-1", "bash", nil, "bash_approval", "")

	time.Sleep(20 * time.Millisecond)
	got, err := svc.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, Expired, got.Status)

	pending := svc.ListPending("sess-1")
	assert.Empty(t, pending)
}

func TestGetUnknown(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	_, err := svc.Get("does-not-exist")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestListPendingFiltersBySession(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	svc.Submit("sess-1", "bash", nil, "p", "")
	svc.Submit("sess-2", "bash", nil, "p", "")

	assert.Len(t, svc.ListPending("sess-1"), 1)
	assert.Len(t, svc.ListPending(""), 2)
}
