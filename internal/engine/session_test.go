package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/dshills/caseworks/internal/design"
	"github.com/dshills/caseworks/internal/engine/notify"
	"github.com/dshills/caseworks/internal/measure"
	"github.com/dshills/caseworks/internal/rules"
)

func baseCabinet(name string) design.Cabinet {
	return design.Cabinet{
		Name:   name,
		Width:  measure.FromMillimeters(600),
		Height: measure.FromMillimeters(720),
		Depth:  measure.FromMillimeters(580),
	}
}

// kitchenSession starts a session on a document holding one base cabinet.
func kitchenSession(opts ...Option) *Session {
	doc := design.NewDocument("Kitchen")
	doc.AddCabinet(baseCabinet("Base"))
	return New(doc, opts...)
}

func mustApply(t *testing.T, s *Session, label string, mutate func(*design.Document) error) {
	t.Helper()
	if err := s.Apply(label, mutate); err != nil {
		t.Fatalf("Apply(%s) error = %v", label, err)
	}
}

func setWidth(name string, mm float64) func(*design.Document) error {
	return func(d *design.Document) error {
		cab, ok := d.Cabinet(name)
		if !ok {
			return errors.New("no such cabinet")
		}
		cab.Width = measure.FromMillimeters(mm)
		return nil
	}
}

func addDoor(name string, wmm, hmm float64) func(*design.Document) error {
	return func(d *design.Document) error {
		cab, ok := d.Cabinet(name)
		if !ok {
			return errors.New("no such cabinet")
		}
		cab.Doors = append(cab.Doors, design.Door{
			Style: "shaker", Hinge: "left",
			Width:  measure.FromMillimeters(wmm),
			Height: measure.FromMillimeters(hmm),
		})
		return nil
	}
}

func addDrawer(name string, hmm float64) func(*design.Document) error {
	return func(d *design.Document) error {
		cab, ok := d.Cabinet(name)
		if !ok {
			return errors.New("no such cabinet")
		}
		cab.Drawers = append(cab.Drawers, design.Drawer{
			Height: measure.FromMillimeters(hmm), Front: "slab",
		})
		return nil
	}
}

// Session Tests

func TestNewStartsWithInitVersion(t *testing.T) {
	s := New(nil)

	if s.HistoryLen() != 1 {
		t.Errorf("HistoryLen() = %d, want 1", s.HistoryLen())
	}
	if s.Cursor() != 0 {
		t.Errorf("Cursor() = %d, want 0", s.Cursor())
	}
	if s.CanUndo() {
		t.Error("CanUndo() = true on a fresh session")
	}
	if got := s.Document(); got.Name != "Untitled" {
		t.Errorf("Document().Name = %q, want Untitled for nil doc", got.Name)
	}
}

func TestApplyCommitsAndPushes(t *testing.T) {
	s := kitchenSession()

	mustApply(t, s, "Widen base", setWidth("Base", 900))

	doc := s.Document()
	cab, _ := doc.Cabinet("Base")
	if cab.Width.Millimeters() != 900 {
		t.Errorf("width = %v, want 900", cab.Width.Millimeters())
	}
	if doc.Revision != 1 {
		t.Errorf("Revision = %d, want 1", doc.Revision)
	}
	if s.HistoryLen() != 2 || s.Cursor() != 1 {
		t.Errorf("log = %d entries cursor %d, want 2/1", s.HistoryLen(), s.Cursor())
	}
}

func TestApplyDefaultLabel(t *testing.T) {
	s := kitchenSession(WithDefaultLabel("Edit"))

	mustApply(t, s, "", setWidth("Base", 650))

	label, ok := s.UndoLabel()
	if !ok || label != "Edit" {
		t.Errorf("UndoLabel() = %q, %v, want Edit", label, ok)
	}
}

func TestApplyNilMutate(t *testing.T) {
	s := kitchenSession()

	if err := s.Apply("x", nil); !errors.Is(err, ErrNilMutate) {
		t.Errorf("Apply(nil) error = %v, want ErrNilMutate", err)
	}
}

func TestApplyMutateErrorRollsBack(t *testing.T) {
	s := kitchenSession()
	before := s.Document()

	sentinel := errors.New("half done")
	err := s.Apply("Broken", func(d *design.Document) error {
		d.Cabinets[0].Width = measure.FromMillimeters(5000)
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Apply() error = %v, want the mutate error", err)
	}

	after := s.Document()
	if after.Cabinets[0].Width != before.Cabinets[0].Width {
		t.Error("failed Apply leaked a partial mutation")
	}
	if s.HistoryLen() != 1 {
		t.Errorf("HistoryLen() = %d after failed Apply, want 1", s.HistoryLen())
	}
}

func TestApplyValidationRollsBack(t *testing.T) {
	s := kitchenSession()

	err := s.Apply("Implode", func(d *design.Document) error {
		d.Cabinets[0].Width = measure.FromMillimeters(-1)
		return nil
	})
	if !errors.Is(err, design.ErrInvalidDocument) {
		t.Fatalf("Apply() error = %v, want ErrInvalidDocument", err)
	}

	cab, _ := s.Document().Cabinet("Base")
	if cab.Width.Millimeters() != 600 {
		t.Errorf("width = %v after rejected Apply, want 600", cab.Width.Millimeters())
	}
}

// Undo/Redo Tests

func TestUndoRedoFlow(t *testing.T) {
	s := kitchenSession()

	mustApply(t, s, "Resize", setWidth("Base", 900))
	mustApply(t, s, "AddDoor", addDoor("Base", 450, 700))

	// Two undos walk back to the starting state.
	if !s.Undo() {
		t.Fatal("Undo() = false, want true")
	}
	cab, _ := s.Document().Cabinet("Base")
	if len(cab.Doors) != 0 || cab.Width.Millimeters() != 900 {
		t.Errorf("after undo: %d doors width %v, want 0 doors at 900", len(cab.Doors), cab.Width.Millimeters())
	}

	if !s.Undo() {
		t.Fatal("second Undo() = false, want true")
	}
	cab, _ = s.Document().Cabinet("Base")
	if cab.Width.Millimeters() != 600 {
		t.Errorf("after second undo: width %v, want 600", cab.Width.Millimeters())
	}
	if s.CanUndo() {
		t.Error("CanUndo() = true at the oldest version")
	}
	if s.Undo() {
		t.Error("Undo() = true at the oldest version, want no-op false")
	}

	// Redo forward, then a fresh edit discards the rest of the branch.
	if !s.Redo() {
		t.Fatal("Redo() = false, want true")
	}
	mustApply(t, s, "AddDrawer", addDrawer("Base", 150))

	if s.CanRedo() {
		t.Error("CanRedo() = true after branching edit")
	}
	if s.Redo() {
		t.Error("Redo() = true after branching edit, want no-op false")
	}
	if s.HistoryLen() != 3 {
		t.Errorf("HistoryLen() = %d, want 3", s.HistoryLen())
	}

	var labels []string
	for rec := range s.Timeline() {
		labels = append(labels, rec.Label)
	}
	want := []string{"Init", "Resize", "AddDrawer"}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("timeline[%d] = %q, want %q", i, labels[i], want[i])
		}
	}

	cab, _ = s.Document().Cabinet("Base")
	if cab.Width.Millimeters() != 900 || len(cab.Drawers) != 1 || len(cab.Doors) != 0 {
		t.Errorf("final state: width %v doors %d drawers %d, want 900/0/1",
			cab.Width.Millimeters(), len(cab.Doors), len(cab.Drawers))
	}
}

func TestUndoRedoLabels(t *testing.T) {
	s := kitchenSession()
	mustApply(t, s, "Resize", setWidth("Base", 900))

	label, ok := s.UndoLabel()
	if !ok || label != "Resize" {
		t.Errorf("UndoLabel() = %q, %v, want Resize", label, ok)
	}
	if _, ok := s.RedoLabel(); ok {
		t.Error("RedoLabel() ok = true at newest version")
	}

	s.Undo()
	if _, ok := s.UndoLabel(); ok {
		t.Error("UndoLabel() ok = true at oldest version")
	}
	label, ok = s.RedoLabel()
	if !ok || label != "Resize" {
		t.Errorf("RedoLabel() = %q, %v, want Resize", label, ok)
	}
}

func TestSeekTo(t *testing.T) {
	s := kitchenSession()
	mustApply(t, s, "Resize", setWidth("Base", 900))
	mustApply(t, s, "AddDoor", addDoor("Base", 450, 700))

	if !s.SeekTo(0) {
		t.Fatal("SeekTo(0) = false, want true")
	}
	cab, _ := s.Document().Cabinet("Base")
	if cab.Width.Millimeters() != 600 {
		t.Errorf("width = %v after SeekTo(0), want 600", cab.Width.Millimeters())
	}
	if s.Cursor() != 0 {
		t.Errorf("Cursor() = %d, want 0", s.Cursor())
	}

	if s.SeekTo(7) {
		t.Error("SeekTo(7) = true, want out-of-range no-op")
	}
	if s.SeekTo(-1) {
		t.Error("SeekTo(-1) = true, want out-of-range no-op")
	}
	if s.Cursor() != 0 {
		t.Errorf("Cursor() = %d after rejected seeks, want 0", s.Cursor())
	}
}

// Isolation Tests

func TestDocumentReturnsIsolatedCopy(t *testing.T) {
	s := kitchenSession()

	stolen := s.Document()
	stolen.Cabinets[0].Width = measure.FromMillimeters(1)
	stolen.Name = "Vandalized"

	doc := s.Document()
	if doc.Name != "Kitchen" || doc.Cabinets[0].Width.Millimeters() != 600 {
		t.Error("mutating Document() result reached the session")
	}
}

func TestMutateSeesPrivateClone(t *testing.T) {
	s := kitchenSession()

	var captured *design.Document
	mustApply(t, s, "Capture", func(d *design.Document) error {
		captured = d
		return nil
	})

	captured.Name = "Hijacked"
	if s.Document().Name != "Kitchen" {
		t.Error("mutating the document after Apply reached the session")
	}
}

func TestUndoneVersionImmuneToWorkingEdits(t *testing.T) {
	s := kitchenSession()
	mustApply(t, s, "Resize", setWidth("Base", 900))

	s.Undo()
	mustApply(t, s, "Rename", func(d *design.Document) error {
		d.Name = "Pantry"
		return nil
	})
	s.Undo()

	if got := s.Document().Name; got != "Kitchen" {
		t.Errorf("restored name = %q, want Kitchen", got)
	}
}

// Rule Integration Tests

func TestApplyRejectedByRules(t *testing.T) {
	checker, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	defer checker.Close()

	s := kitchenSession(WithRules(checker))

	// Stack three drawer fronts past the carcase height; the built-in
	// drawer-stack rule fails the commit.
	err = s.Apply("Overstuff", func(d *design.Document) error {
		cab, _ := d.Cabinet("Base")
		for i := 0; i < 3; i++ {
			cab.Drawers = append(cab.Drawers, design.Drawer{
				Height: measure.FromMillimeters(300), Front: "slab",
			})
		}
		return nil
	})
	if !errors.Is(err, ErrRuleViolation) {
		t.Fatalf("Apply() error = %v, want ErrRuleViolation", err)
	}
	if !strings.Contains(err.Error(), "drawer-stack") {
		t.Errorf("error %q does not name the failing rule", err)
	}

	cab, _ := s.Document().Cabinet("Base")
	if len(cab.Drawers) != 0 {
		t.Error("rejected Apply committed its drawers")
	}
	if s.HistoryLen() != 1 {
		t.Errorf("HistoryLen() = %d, want 1", s.HistoryLen())
	}
	if vs := s.Violations(); !rules.HasErrors(vs) {
		t.Error("Violations() lost the rejecting findings")
	}
}

func TestApplyKeepsWarnings(t *testing.T) {
	checker, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	defer checker.Close()

	s := kitchenSession(WithRules(checker))

	// A 700mm door on an 800mm carcase is legal but warns.
	mustApply(t, s, "Widen", setWidth("Base", 800))
	mustApply(t, s, "BigDoor", addDoor("Base", 700, 700))

	vs := s.Violations()
	if len(vs) == 0 {
		t.Fatal("Violations() = none, want the door-width warning")
	}
	if rules.HasErrors(vs) {
		t.Errorf("Violations() = %v, want warnings only", vs)
	}
	if vs[0].Rule != "door-width" {
		t.Errorf("rule = %q, want door-width", vs[0].Rule)
	}
}

// Event Tests

func TestEventSequence(t *testing.T) {
	s := kitchenSession()

	var got []string
	sub := s.Subscribe(func(ev notify.Event) {
		got = append(got, ev.Type.String()+":"+ev.Label)
	})
	defer sub.Unsubscribe()

	mustApply(t, s, "Resize", setWidth("Base", 900))
	s.Undo()
	s.Redo()
	s.SeekTo(0)
	s.ClearHistory()

	want := []string{"push:Resize", "undo:Init", "redo:Resize", "seek:Init", "clear:Init"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNoEventOnNoOp(t *testing.T) {
	s := kitchenSession()

	events := 0
	sub := s.Subscribe(func(notify.Event) { events++ })
	defer sub.Unsubscribe()

	s.Undo()
	s.Redo()
	s.SeekTo(42)

	if events != 0 {
		t.Errorf("no-op operations published %d events", events)
	}
}

func TestEvictionEvents(t *testing.T) {
	s := kitchenSession(WithHistoryCapacity(2))

	var evicted []string
	sub := s.SubscribeType(notify.EventEvict, func(ev notify.Event) {
		evicted = append(evicted, ev.Label)
	})
	defer sub.Unsubscribe()

	mustApply(t, s, "First", setWidth("Base", 700))
	mustApply(t, s, "Second", setWidth("Base", 800))

	if len(evicted) != 1 || evicted[0] != "Init" {
		t.Errorf("evicted = %v, want [Init]", evicted)
	}
	if s.HistoryLen() != 2 {
		t.Errorf("HistoryLen() = %d, want the capacity 2", s.HistoryLen())
	}
	if s.CanUndo() != true {
		t.Error("CanUndo() = false, want true at rebased cursor")
	}
}

func TestEvictionPublishedBeforePush(t *testing.T) {
	s := kitchenSession(WithHistoryCapacity(2))

	var got []string
	sub := s.Subscribe(func(ev notify.Event) {
		got = append(got, ev.Type.String())
	})
	defer sub.Unsubscribe()

	mustApply(t, s, "First", setWidth("Base", 700))
	got = got[:0]
	mustApply(t, s, "Second", setWidth("Base", 800))

	want := []string{"evict", "push"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSetHistoryCapacityEvicts(t *testing.T) {
	s := kitchenSession()
	mustApply(t, s, "A", setWidth("Base", 700))
	mustApply(t, s, "B", setWidth("Base", 800))
	mustApply(t, s, "C", setWidth("Base", 900))

	var evicted []string
	sub := s.SubscribeType(notify.EventEvict, func(ev notify.Event) {
		evicted = append(evicted, ev.Label)
	})
	defer sub.Unsubscribe()

	s.SetHistoryCapacity(2)

	want := []string{"Init", "A"}
	if len(evicted) != len(want) {
		t.Fatalf("evicted = %v, want %v", evicted, want)
	}
	for i := range want {
		if evicted[i] != want[i] {
			t.Errorf("evicted[%d] = %q, want %q", i, evicted[i], want[i])
		}
	}
	if s.HistoryLen() != 2 {
		t.Errorf("HistoryLen() = %d, want 2", s.HistoryLen())
	}
	// Newest state survives.
	cab, _ := s.Document().Cabinet("Base")
	if cab.Width.Millimeters() != 900 {
		t.Errorf("width = %v after shrink, want 900", cab.Width.Millimeters())
	}
}

func TestObserverMayCallBack(t *testing.T) {
	s := kitchenSession()

	done := make(chan struct{})
	sub := s.Subscribe(func(ev notify.Event) {
		// Reading session state from an observer must not deadlock.
		_ = s.CanUndo()
		_ = s.Document()
		close(done)
	})
	defer sub.Unsubscribe()

	mustApply(t, s, "Resize", setWidth("Base", 900))

	select {
	case <-done:
	default:
		t.Error("observer did not run synchronously")
	}
}

// ClearHistory Tests

func TestClearHistoryKeepsWorkingState(t *testing.T) {
	s := kitchenSession()
	mustApply(t, s, "Resize", setWidth("Base", 900))
	mustApply(t, s, "AddDoor", addDoor("Base", 450, 700))

	s.ClearHistory()

	if s.HistoryLen() != 1 || s.Cursor() != 0 {
		t.Errorf("log = %d entries cursor %d after clear, want 1/0", s.HistoryLen(), s.Cursor())
	}
	if s.CanUndo() || s.CanRedo() {
		t.Error("clear left undo/redo available")
	}
	cab, _ := s.Document().Cabinet("Base")
	if cab.Width.Millimeters() != 900 || len(cab.Doors) != 1 {
		t.Error("clear lost the working state")
	}
}
