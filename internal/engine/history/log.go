package history

import (
	"sync"
	"time"
)

// Defaults for log construction.
const (
	// DefaultCapacity is the maximum number of snapshots retained when no
	// capacity option is given.
	DefaultCapacity = 50

	// DefaultLabel is recorded for a push with an empty label.
	DefaultLabel = "Action"
)

// entry is one stored snapshot: a deep copy of the caller's state plus
// display metadata. Entries are never mutated after creation.
type entry[T any] struct {
	state     T
	label     string
	createdAt time.Time
}

// Log is a bounded, branch-truncating version log over states of type T.
//
// The log owns an ordered sequence of snapshots (oldest first) and a cursor
// identifying the current one; the cursor is -1 while the log is empty.
// Push appends, Undo/Redo/Seek move the cursor, and a push anywhere but the
// tail discards the abandoned redo branch. When the log grows past its
// capacity the oldest snapshot is evicted and the cursor rebased so it keeps
// referring to the same logical snapshot.
//
// Snapshots are isolated from the caller in both directions: states are deep
// copied on the way in and on the way out, so no mutation of a live value can
// alter stored history. All operations take a single internal lock, making a
// Log safe for use from multiple goroutines.
//
// Operations whose preconditions fail (undo at the oldest entry, redo at the
// newest, seek out of range, reads on an empty log) report ok=false and change
// nothing; they never return errors.
type Log[T any] struct {
	mu       sync.Mutex
	clone    CloneFunc[T]
	entries  []entry[T]
	cursor   int
	capacity int
	onEvict  func(Record)
}

// New creates an empty log that snapshots states with clone. Each editing
// session owns its own Log; there is no shared instance.
//
// New panics if clone is nil: the log cannot exist without a deep-copy
// contract.
func New[T any](clone CloneFunc[T], opts ...Option[T]) *Log[T] {
	if clone == nil {
		panic("history: New requires a non-nil CloneFunc")
	}
	l := &Log[T]{
		clone:    clone,
		cursor:   -1,
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Push records a deep copy of state as the new current snapshot. An empty
// label becomes DefaultLabel.
//
// If the cursor is not at the tail, every entry after it is discarded first;
// committing a new action abandons the redo branch. If the append exceeds the
// log's capacity the oldest entries are evicted, the cursor is rebased, and
// the eviction callback (if any) is invoked once per dropped entry.
//
// Push never fails. A state the clone function cannot copy is a programming
// error on the caller's side, not a condition the log detects.
func (l *Log[T]) Push(state T, label string) {
	if label == "" {
		label = DefaultLabel
	}

	l.mu.Lock()
	if l.cursor < len(l.entries)-1 {
		l.entries = l.entries[:l.cursor+1]
	}
	l.entries = append(l.entries, entry[T]{
		state:     l.clone(state),
		label:     label,
		createdAt: time.Now(),
	})
	l.cursor = len(l.entries) - 1
	evicted := l.evictOver(l.capacity)
	l.mu.Unlock()

	l.notifyEvicted(evicted)
}

// Undo moves the cursor one snapshot back and returns a copy of the state
// there. It reports ok=false, changing nothing, when there is no earlier
// snapshot.
func (l *Log[T]) Undo() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	if l.cursor <= 0 {
		return zero, false
	}
	l.cursor--
	return l.clone(l.entries[l.cursor].state), true
}

// Redo moves the cursor one snapshot forward and returns a copy of the state
// there. It reports ok=false, changing nothing, when the cursor is already at
// the newest snapshot.
func (l *Log[T]) Redo() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	if l.cursor >= len(l.entries)-1 {
		return zero, false
	}
	l.cursor++
	return l.clone(l.entries[l.cursor].state), true
}

// Current returns a copy of the state at the cursor, or ok=false when the
// log is empty.
func (l *Log[T]) Current() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	if l.cursor < 0 {
		return zero, false
	}
	return l.clone(l.entries[l.cursor].state), true
}

// Seek moves the cursor to an arbitrary snapshot index and returns a copy of
// the state there. An out-of-range index (including any negative value) is a
// no-op reporting ok=false. Seek never discards entries; only a later Push
// prunes the branch beyond the cursor.
func (l *Log[T]) Seek(index int) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	if index < 0 || index >= len(l.entries) {
		return zero, false
	}
	l.cursor = index
	return l.clone(l.entries[l.cursor].state), true
}

// CanUndo reports whether a snapshot exists before the cursor.
func (l *Log[T]) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor > 0
}

// CanRedo reports whether a snapshot exists after the cursor.
func (l *Log[T]) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor < len(l.entries)-1
}

// Clear removes every snapshot and resets the cursor. The discarded history
// is unrecoverable.
func (l *Log[T]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.cursor = -1
}

// Len returns the number of stored snapshots.
func (l *Log[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Cap returns the capacity bound.
func (l *Log[T]) Cap() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capacity
}

// Cursor returns the index of the current snapshot, or -1 when the log is
// empty.
func (l *Log[T]) Cursor() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// SetCapacity changes the capacity bound. Values below 1 fall back to
// DefaultCapacity. Shrinking below the current size evicts the oldest
// entries with cursor rebasing, firing the eviction callback per entry; if
// the current snapshot itself is evicted the cursor moves to the oldest
// retained one.
func (l *Log[T]) SetCapacity(n int) {
	if n < 1 {
		n = DefaultCapacity
	}

	l.mu.Lock()
	l.capacity = n
	evicted := l.evictOver(n)
	l.mu.Unlock()

	l.notifyEvicted(evicted)
}

// evictOver drops oldest entries until at most limit remain, rebasing the
// cursor. Caller must hold mu. Returns records for the dropped entries, in
// eviction order, when an eviction callback is installed.
func (l *Log[T]) evictOver(limit int) []Record {
	excess := len(l.entries) - limit
	if excess <= 0 {
		return nil
	}

	var evicted []Record
	if l.onEvict != nil {
		evicted = make([]Record, 0, excess)
		for i := 0; i < excess; i++ {
			evicted = append(evicted, Record{
				Index:     0,
				Label:     l.entries[i].label,
				CreatedAt: l.entries[i].createdAt,
			})
		}
	}

	l.entries = l.entries[excess:]
	l.cursor -= excess
	if l.cursor < 0 {
		l.cursor = 0
	}
	return evicted
}

// notifyEvicted invokes the eviction callback outside the log's lock, so the
// callback may safely call back into the log.
func (l *Log[T]) notifyEvicted(evicted []Record) {
	if l.onEvict == nil {
		return
	}
	for _, r := range evicted {
		l.onEvict(r)
	}
}
