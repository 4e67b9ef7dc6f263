package history

import (
	"iter"
	"time"
)

// Record is a read-only projection of one stored snapshot, as shown in a
// history timeline. It carries metadata only, never the snapshot's state.
type Record struct {
	Index     int
	Label     string
	CreatedAt time.Time
	IsCurrent bool
}

// record builds the projection for the entry at index i. Caller must hold mu.
func (l *Log[T]) record(i int) Record {
	e := l.entries[i]
	return Record{
		Index:     i,
		Label:     e.label,
		CreatedAt: e.createdAt,
		IsCurrent: i == l.cursor,
	}
}

// Timeline returns a finite, restartable sequence of Records for every stored
// snapshot, oldest first. Each ranging over the sequence reads the log fresh
// at that moment; breaking out early is allowed. Timeline never mutates the
// log.
func (l *Log[T]) Timeline() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		l.mu.Lock()
		records := make([]Record, len(l.entries))
		for i := range l.entries {
			records[i] = l.record(i)
		}
		l.mu.Unlock()

		for _, r := range records {
			if !yield(r) {
				return
			}
		}
	}
}

// Records returns the timeline as a slice, for callers that want the whole
// projection at once.
func (l *Log[T]) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([]Record, len(l.entries))
	for i := range l.entries {
		records[i] = l.record(i)
	}
	return records
}

// CurrentRecord returns the record at the cursor. Reports ok=false when the
// log is empty.
func (l *Log[T]) CurrentRecord() (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor < 0 {
		return Record{}, false
	}
	return l.record(l.cursor), true
}

// PeekUndo returns the record one snapshot before the cursor without moving
// it, for undo preview text. Reports ok=false when there is nothing to undo.
func (l *Log[T]) PeekUndo() (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor <= 0 {
		return Record{}, false
	}
	return l.record(l.cursor - 1), true
}

// PeekRedo returns the record one snapshot after the cursor without moving
// it, for redo preview text. Reports ok=false when there is nothing to redo.
func (l *Log[T]) PeekRedo() (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor >= len(l.entries)-1 {
		return Record{}, false
	}
	return l.record(l.cursor + 1), true
}
