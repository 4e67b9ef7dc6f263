// Package history provides the bounded version log backing undo/redo and the
// history timeline for an editing session.
//
// The log stores immutable snapshots of session state, oldest first, with a
// cursor marking the current one. It is generic over the state type; the
// surrounding application decides what a snapshot is. Key concepts:
//
// # Snapshots and the Cursor
//
// Every committed action pushes a deep copy of the state together with a
// label and timestamp. The cursor identifies the current snapshot; undo and
// redo move it one step, Seek moves it anywhere:
//
//	log := history.New(
//		(*design.Document).Clone,
//		history.WithCapacity[*design.Document](50),
//	)
//
//	log.Push(doc, "Resize")
//
//	if prev, ok := log.Undo(); ok {
//		doc = prev
//	}
//
// Operations at a boundary (undo at the oldest snapshot, redo at the newest,
// reads on an empty log) report ok=false and change nothing.
//
// # Branch Discarding
//
// Pushing while the cursor sits before the tail discards every later
// snapshot: once a new action diverges from the redo path, that path is gone.
// Seek alone never discards.
//
// # Capacity and Eviction
//
// The log holds at most its capacity (DefaultCapacity unless configured).
// Growing past it evicts the oldest snapshot and rebases the cursor so it
// still refers to the same logical snapshot. WithEvictionFunc makes the
// eviction observable to hosts that want to warn about lost history.
//
// # Snapshot Isolation
//
// States are cloned on the way in and on the way out through the CloneFunc
// given to New. Mutating a working copy after a push, or mutating a value an
// operation returned, never alters stored history.
//
// # Timeline
//
// Timeline projects the log into Records ({index, label, created-at,
// is-current}) as a restartable iterator for history panels:
//
//	for r := range log.Timeline() {
//		fmt.Println(r.Index, r.Label)
//	}
package history
