package history

import (
	"encoding/json"
	"fmt"
)

// CloneFunc produces a deep copy of a state value. The returned value must
// share no mutable structure with its argument: after cloning, mutations to
// either value must be invisible to the other.
//
// The log calls the CloneFunc on every push and on every state handed back
// out, so stored snapshots stay immutable no matter what callers do with
// their working copies. A CloneFunc that copies shallowly breaks that
// guarantee silently; supplying one is caller misuse, not a detectable
// condition.
type CloneFunc[T any] func(T) T

// JSONClone returns a CloneFunc that deep-copies states by round-tripping
// them through encoding/json. It suits opaque, fully serializable states
// where writing a hand-rolled clone is not worth it; states with a cheap
// Clone method should prefer it, since the round trip costs a marshal per
// push.
//
// JSONClone panics when the state cannot round-trip (cyclic structures,
// channels, unexported-only fields). Pushing such a state is a programming
// error.
func JSONClone[T any]() CloneFunc[T] {
	return func(v T) T {
		data, err := json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("history: state is not JSON-clonable: %v", err))
		}
		var out T
		if err := json.Unmarshal(data, &out); err != nil {
			panic(fmt.Sprintf("history: state did not round-trip: %v", err))
		}
		return out
	}
}
