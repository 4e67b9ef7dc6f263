package engine

import "errors"

// Errors returned by session operations.
var (
	// ErrRuleViolation indicates an edit was rejected because a shop rule
	// reported an error-severity finding.
	ErrRuleViolation = errors.New("rule violation")

	// ErrNilMutate indicates Apply was called without a mutate function.
	ErrNilMutate = errors.New("nil mutate function")
)
