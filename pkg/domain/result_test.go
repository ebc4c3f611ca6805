package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, CodeNone},
		{"direct", ErrUnknownSnapshot, CodeUnknownSnapshot},
		{"wrapped", fmt.Errorf("rollback to 7: %w", ErrInvalidState), CodeInvalidState},
		{"stopped maps to rejected", ErrSessionStopped, CodeCommandRejected},
		{"unknown", errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestFail(t *testing.T) {
	res := Fail(fmt.Errorf("add external event: %w", ErrInvalidEvent))
	assert.False(t, res.Success)
	assert.Equal(t, CodeInvalidEvent, res.Code)
	assert.Contains(t, res.Message, "invalid event")

	assert.True(t, Fail(nil).Success)
	assert.NoError(t, Ok().Err())
	assert.EqualError(t, res.Err(), "INVALID_EVENT: add external event: invalid event")
}

func TestNewEventsStatus(t *testing.T) {
	threads := []ThreadInfo{
		{Name: "a", Requested: []Event{NewEvent("x"), NewEvent("y")}, Blocked: []Event{NewEvent("z")}},
		{Name: "b", Requested: []Event{NewEvent("y")}, WaitFor: []Event{NewEvent("x")}},
	}
	external := []Event{NewEvent("coin"), NewEvent("coin")}

	status := NewEventsStatus(threads, external)
	assert.Equal(t, []Event{NewEvent("x"), NewEvent("y")}, status.Requested)
	assert.Equal(t, []Event{NewEvent("z")}, status.Blocked)
	assert.Equal(t, []Event{NewEvent("x")}, status.Waited)
	assert.Equal(t, external, status.External, "external queue keeps duplicates")

	external[0] = NewEvent("changed")
	assert.Equal(t, "coin", status.External[0].Name, "status must not alias the queue")
}
