package rules

import "errors"

// Sentinel errors returned by the rules engine.
var (
	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("rules engine is closed")

	// ErrInvalidRule is wrapped when a rule script fails to compile or does
	// not define a check function.
	ErrInvalidRule = errors.New("invalid rule")
)
