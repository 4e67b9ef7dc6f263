// Package engine provides the editing session at the core of Caseworks.
//
// A Session owns one design document and everything that makes editing it
// safe to explore: a bounded version log for undo/redo, optional Lua shop
// rules that gate commits, and an event feed for UI layers.
//
// # Architecture
//
// The session composes three sub-packages:
//
//   - history: generic bounded version log (snapshots, cursor, branch
//     discarding, eviction)
//   - notify: observer registry delivering session events
//   - rules: Lua-scripted validation (wired in by the caller)
//
// The document model itself lives in the design package; the session only
// ever hands out and stores deep copies of it.
//
// # Thread Safety
//
// All Session operations are safe for concurrent use. Reads take a shared
// lock; Apply, Undo, Redo, SeekTo, and ClearHistory serialize behind a write
// lock. Events are published after the lock is released, so observers may
// call back into the session.
//
// # Basic Usage
//
//	session := engine.New(design.NewDocument("Kitchen"))
//
//	err := session.Apply("Add base cabinet", func(d *design.Document) error {
//		d.AddCabinet(baseCabinet)
//		return nil
//	})
//
//	session.Undo() // back to the empty kitchen
//	session.Redo() // the cabinet returns
//
// Apply is the only write path. The mutate function receives a private clone;
// if it returns an error, or the result fails validation or the shop rules,
// the working document is untouched and the error says why.
//
// # Versions and the Timeline
//
// Every successful Apply records a labeled version. Undo and Redo move a
// cursor across those versions without discarding anything; applying a new
// edit while rewound discards the versions ahead of the cursor, exactly like
// an editor's undo stack. The log is bounded: once full, the oldest version
// falls off and EventEvict reports the loss.
//
//	for rec := range session.Timeline() {
//		fmt.Printf("%d %s", rec.Index, rec.Label)
//	}
//
// # Events
//
// Hosts subscribe to the session to drive status lines and history panels:
//
//	sub := session.Subscribe(func(ev notify.Event) {
//		log.Printf("%s at %d/%d", ev.Type, ev.Index, ev.Len)
//	})
//	defer sub.Unsubscribe()
package engine
