package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{NewHostFailed(2, "ErrorInternal"), "HOST_FAILED: ErrorInternal (anchor=2)"},
		{NewResolveFailed("c9", "ErrorResolvingCloudIdNotFound"), "RESOLVE_FAILED: ErrorResolvingCloudIdNotFound (cloud_id=c9)"},
		{NewSessionNotReady("Limited"), "SESSION_NOT_READY: session status is Limited"},
		{NewPlacementRejected("create anchor", errors.New("not tracking")), "PLACEMENT_REJECTED: create anchor: not tracking"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestError_PredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("tick: %w", NewFatalSession("lost"))

	assert.True(t, IsFatalSession(wrapped))
	assert.False(t, IsPlacementRejected(wrapped))
	assert.True(t, IsHostFailed(NewHostFailed(1, "x")))
	assert.True(t, IsResolveFailed(NewResolveFailed("c", "x")))
	assert.True(t, IsSessionNotReady(NewSessionNotReady("Limited")))
	assert.False(t, IsHostFailed(errors.New("plain")))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewPlacementRejected("create anchor", cause)
	assert.ErrorIs(t, err, cause)
}
