package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want func(error) bool
	}{
		{"not found", NewNotFound("task", "t1"), IsNotFound},
		{"invalid state", NewInvalidState("task", "todo", "review", ""), IsInvalidState},
		{"duplicate", NewDuplicate("queue entry", "t1"), IsDuplicate},
		{"validation", NewValidation("title", "required"), IsValidation},
	}

	predicates := []func(error) bool{IsNotFound, IsInvalidState, IsDuplicate, IsValidation}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if !c.want(c.err) {
				t.Errorf("predicate rejected its own error %v", c.err)
			}
			matched := 0
			for _, p := range predicates {
				if p(c.err) {
					matched++
				}
			}
			if matched != 1 {
				t.Errorf("%v matched %d predicates, want exactly 1", c.err, matched)
			}
		})
	}
}

func TestPredicates_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("enqueue: %w", NewDuplicate("queue entry", "t1"))
	if !IsDuplicate(wrapped) {
		t.Error("IsDuplicate failed to unwrap")
	}
	if IsNotFound(wrapped) {
		t.Error("IsNotFound matched a duplicate error")
	}
}

func TestPredicates_NilAndForeign(t *testing.T) {
	if IsNotFound(nil) || IsValidation(nil) {
		t.Error("predicates matched nil")
	}
	if IsInvalidState(errors.New("plain")) {
		t.Error("IsInvalidState matched a plain error")
	}
}

func TestInvalidStateError_Message(t *testing.T) {
	err := NewInvalidState("task", "todo", "done", "2 subtasks incomplete")
	want := "task: invalid transition todo -> done: 2 subtasks incomplete"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	bare := NewInvalidState("execution", "completed", "paused", "")
	if bare.Error() != "execution: invalid transition completed -> paused" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestExecutionFailure_Unwrap(t *testing.T) {
	cause := errors.New("step broke")
	err := &ExecutionFailure{ExecutionID: "e1", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("ExecutionFailure does not unwrap to its cause")
	}
}
