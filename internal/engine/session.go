package engine

import (
	"fmt"
	"iter"
	"sync"

	"github.com/dshills/caseworks/internal/design"
	"github.com/dshills/caseworks/internal/engine/history"
	"github.com/dshills/caseworks/internal/engine/notify"
	"github.com/dshills/caseworks/internal/rules"
)

// initLabel names the snapshot a session starts from.
const initLabel = "Init"

// Session is the editing facade for one document: it owns the working copy,
// the version log behind undo/redo, optional rule checking, and the event
// feed hosts subscribe to.
//
// All operations are safe for concurrent use. Create one Session per open
// document; nothing here is process-global.
type Session struct {
	mu sync.RWMutex

	working    *design.Document
	log        *history.Log[*design.Document]
	checker    *rules.Engine
	events     *notify.Notifier
	violations []rules.Violation

	// pendingEvicts collects eviction records fired by the log during Push
	// or SetCapacity. The callback runs on the calling goroutine while mu is
	// held, so access needs no extra lock; events are published after mu is
	// released.
	pendingEvicts []history.Record

	// Configuration, fixed after New.
	capacity     int
	defaultLabel string
}

// New creates a session editing doc. A nil doc starts an untitled document.
// The session immediately records the starting state, so the timeline is
// never empty and the first Apply is undoable.
func New(doc *design.Document, opts ...Option) *Session {
	s := &Session{
		capacity:     history.DefaultCapacity,
		defaultLabel: history.DefaultLabel,
		events:       notify.NewNotifier(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if doc == nil {
		doc = design.NewDocument("")
	}
	// The caller keeps its pointer; the session works on a private copy.
	s.working = doc.Clone()
	s.log = history.New(
		(*design.Document).Clone,
		history.WithCapacity[*design.Document](s.capacity),
		history.WithEvictionFunc[*design.Document](s.noteEviction),
	)
	s.log.Push(doc, initLabel)
	return s
}

// Apply commits one edit: mutate runs against a clone of the working
// document, and only a clone that mutates without error, validates, and
// passes the shop rules becomes the new working version. Rejected edits
// leave the session exactly as it was.
//
// An empty label gets the session's default. On success the new version is
// pushed to the log (discarding any redo branch) and EventPush is published,
// preceded by EventEvict for any snapshot the capacity bound dropped.
func (s *Session) Apply(label string, mutate func(*design.Document) error) error {
	if mutate == nil {
		return ErrNilMutate
	}
	if label == "" {
		label = s.defaultLabel
	}

	s.mu.Lock()

	cand := s.working.Clone()
	if err := mutate(cand); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", label, err)
	}
	if err := cand.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", label, err)
	}

	if s.checker != nil {
		vs, err := s.checker.Check(cand)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("%s: checking rules: %w", label, err)
		}
		s.violations = vs
		if rules.HasErrors(vs) {
			s.mu.Unlock()
			return fmt.Errorf("%s: %w: %s", label, ErrRuleViolation, firstError(vs))
		}
	} else {
		s.violations = nil
	}

	cand.Touch()
	s.log.Push(cand, label)
	// The mutate function still holds cand; keep a private copy so later
	// writes through that pointer cannot reach the session.
	s.working = cand.Clone()

	// Evictions first, so observers tracking timeline positions see the
	// push's index as the final word.
	events := make([]notify.Event, 0, len(s.pendingEvicts)+1)
	events = s.appendEvictionsLocked(events)
	events = append(events, notify.Event{
		Type:  notify.EventPush,
		Label: label,
		Index: s.log.Cursor(),
		Len:   s.log.Len(),
	})
	s.mu.Unlock()

	s.publish(events)
	return nil
}

// Undo steps the session back one version. It reports false, changing
// nothing, when the session is already at the oldest version.
func (s *Session) Undo() bool {
	s.mu.Lock()
	doc, ok := s.log.Undo()
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.working = doc
	event := s.positionEventLocked(notify.EventUndo)
	s.mu.Unlock()

	s.events.Publish(event)
	return true
}

// Redo steps the session forward one version. It reports false, changing
// nothing, when there is no newer version.
func (s *Session) Redo() bool {
	s.mu.Lock()
	doc, ok := s.log.Redo()
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.working = doc
	event := s.positionEventLocked(notify.EventRedo)
	s.mu.Unlock()

	s.events.Publish(event)
	return true
}

// SeekTo jumps the session to the version at index, as shown on the
// timeline. It reports false, changing nothing, for an out-of-range index.
func (s *Session) SeekTo(index int) bool {
	s.mu.Lock()
	doc, ok := s.log.Seek(index)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.working = doc
	event := s.positionEventLocked(notify.EventSeek)
	s.mu.Unlock()

	s.events.Publish(event)
	return true
}

// CanUndo reports whether Undo would move.
func (s *Session) CanUndo() bool {
	return s.log.CanUndo()
}

// CanRedo reports whether Redo would move.
func (s *Session) CanRedo() bool {
	return s.log.CanRedo()
}

// UndoLabel returns the label of the edit Undo would revert, for menu text
// like "Undo Resize". ok=false means there is nothing to undo.
func (s *Session) UndoLabel() (string, bool) {
	if !s.log.CanUndo() {
		return "", false
	}
	rec, ok := s.log.CurrentRecord()
	if !ok {
		return "", false
	}
	return rec.Label, true
}

// RedoLabel returns the label of the edit Redo would restore. ok=false means
// there is nothing to redo.
func (s *Session) RedoLabel() (string, bool) {
	rec, ok := s.log.PeekRedo()
	if !ok {
		return "", false
	}
	return rec.Label, true
}

// Document returns a copy of the working document. Callers may mutate the
// copy freely; committing a change goes through Apply.
func (s *Session) Document() *design.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.working.Clone()
}

// Violations returns the findings from the most recent rule check, including
// the findings that rejected a failed Apply.
func (s *Session) Violations() []rules.Violation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]rules.Violation(nil), s.violations...)
}

// Timeline returns the version timeline, oldest first. Each ranging reads
// the log fresh at that moment.
func (s *Session) Timeline() iter.Seq[history.Record] {
	return s.log.Timeline()
}

// Records returns the timeline as a slice.
func (s *Session) Records() []history.Record {
	return s.log.Records()
}

// HistoryLen returns how many versions the session retains.
func (s *Session) HistoryLen() int {
	return s.log.Len()
}

// Cursor returns the timeline index of the current version.
func (s *Session) Cursor() int {
	return s.log.Cursor()
}

// HistoryCap returns the maximum number of versions the session retains.
func (s *Session) HistoryCap() int {
	return s.log.Cap()
}

// ClearHistory forgets every version except the current working state, which
// becomes the new starting snapshot.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	s.log.Clear()
	s.log.Push(s.working, initLabel)
	event := notify.Event{
		Type:  notify.EventClear,
		Label: initLabel,
		Index: s.log.Cursor(),
		Len:   s.log.Len(),
	}
	s.mu.Unlock()

	s.events.Publish(event)
}

// SetHistoryCapacity rebounds the version log at runtime, evicting oldest
// versions if the new bound is tighter. Used when configuration reloads.
func (s *Session) SetHistoryCapacity(n int) {
	s.mu.Lock()
	s.log.SetCapacity(n)
	events := s.appendEvictionsLocked(nil)
	s.mu.Unlock()

	s.publish(events)
}

// Subscribe registers an observer for session events. Observers run on the
// goroutine that performed the operation, after the session's lock is
// released; they may call back into the session.
func (s *Session) Subscribe(fn notify.Observer) notify.Subscription {
	return s.events.Subscribe(fn)
}

// SubscribeType registers an observer for one event type only.
func (s *Session) SubscribeType(t notify.EventType, fn notify.Observer) notify.Subscription {
	return s.events.SubscribeType(t, fn)
}

// noteEviction is the log's eviction callback. It runs on the goroutine
// executing Push or SetCapacity while s.mu is held; the records are turned
// into events once the lock drops.
func (s *Session) noteEviction(rec history.Record) {
	s.pendingEvicts = append(s.pendingEvicts, rec)
}

// appendEvictionsLocked converts pending eviction records into events.
// Caller holds mu.
func (s *Session) appendEvictionsLocked(events []notify.Event) []notify.Event {
	for _, rec := range s.pendingEvicts {
		events = append(events, notify.Event{
			Type:  notify.EventEvict,
			Label: rec.Label,
			Index: rec.Index,
			Len:   s.log.Len(),
		})
	}
	s.pendingEvicts = s.pendingEvicts[:0]
	return events
}

// positionEventLocked builds the event for a cursor move. Caller holds mu.
func (s *Session) positionEventLocked(t notify.EventType) notify.Event {
	event := notify.Event{Type: t, Index: s.log.Cursor(), Len: s.log.Len()}
	if rec, ok := s.log.CurrentRecord(); ok {
		event.Label = rec.Label
	}
	return event
}

func (s *Session) publish(events []notify.Event) {
	for _, event := range events {
		s.events.Publish(event)
	}
}

func firstError(vs []rules.Violation) string {
	for _, v := range vs {
		if v.Severity == rules.SeverityError {
			return v.String()
		}
	}
	return ""
}
