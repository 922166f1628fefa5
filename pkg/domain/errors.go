package domain

import (
	"errors"
	"strings"
)

// Error taxonomy. Callers branch with errors.Is; concrete errors wrap one of these.
var (
	// ErrInvalidInput marks input rejected before any store mutation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable marks a failed read or write against the document store.
	// The operation may be retried as a whole by the caller.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidState marks an arithmetic or stored-data precondition failure.
	ErrInvalidState = errors.New("invalid state")
)

// ValidationError reports blocking violations found while validating input.
type ValidationError struct {
	Result Result
}

func (e ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Violations))
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msgs = append(msgs, v.Message)
		}
	}
	if len(msgs) == 0 {
		return ErrInvalidInput.Error()
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(msgs, "; ")
}

// Is makes ValidationError match ErrInvalidInput.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// RuleViolationError is returned when a registered rule blocks a change.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "change blocked by rules"
}

// Is makes RuleViolationError match ErrInvalidInput.
func (e RuleViolationError) Is(target error) bool {
	return target == ErrInvalidInput
}
