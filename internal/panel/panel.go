// Package panel renders the version timeline of a design session as a
// full-screen terminal view.
//
// The Timeline panel shows one row per stored version, oldest first, with
// the current version marked and one row highlighted as the selection. The
// selection follows the session cursor after undo, redo, and seek, and moves
// independently with MoveUp and MoveDown so the user can pick a seek target.
//
// A Timeline is not safe for concurrent use. Drive it, and the session events
// fed to Observe, from a single goroutine.
package panel

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/caseworks/internal/engine"
	"github.com/dshills/caseworks/internal/engine/notify"
)

// Surface is the drawing target for a panel. tcell.Screen satisfies it; tests
// substitute an in-memory fake.
type Surface interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Size() (int, int)
	Clear()
	Show()
	HideCursor()
}

// styleSet holds the styles for one theme. Both themes keep the terminal's
// base colors; they differ only in the accents.
type styleSet struct {
	header   tcell.Style
	row      tcell.Style
	selected tcell.Style
	notice   tcell.Style
	hint     tcell.Style
	status   tcell.Style
}

func darkStyles() styleSet {
	return styleSet{
		header:   tcell.StyleDefault.Bold(true),
		row:      tcell.StyleDefault,
		selected: tcell.StyleDefault.Reverse(true),
		notice:   tcell.StyleDefault.Foreground(tcell.ColorYellow),
		hint:     tcell.StyleDefault.Dim(true),
		status:   tcell.StyleDefault.Bold(true),
	}
}

// lightStyles swaps the accents for ones that stay readable on a light
// terminal background, where yellow and dim text wash out.
func lightStyles() styleSet {
	st := darkStyles()
	st.notice = tcell.StyleDefault.Foreground(tcell.ColorDarkRed)
	st.hint = tcell.StyleDefault.Foreground(tcell.ColorGray)
	return st
}

const keyHint = "u undo  r redo  arrows select  enter seek  c clear  e export  q quit"

// Timeline is the version-history view of one session.
type Timeline struct {
	session *engine.Session

	st       styleSet
	showTime bool

	selected int // timeline index the selection bar sits on
	offset   int // first visible timeline index

	// Eviction notice state, consumed by the next Draw.
	evicted  int
	lastDrop string
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithTheme selects the style set by name. "light" picks the light-background
// accents; any other name keeps the dark default.
func WithTheme(name string) Option {
	return func(t *Timeline) {
		if name == "light" {
			t.st = lightStyles()
		}
	}
}

// WithTimestamps controls whether rows carry the version's creation time.
func WithTimestamps(show bool) Option {
	return func(t *Timeline) {
		t.showTime = show
	}
}

// NewTimeline creates a timeline view over the given session. The selection
// starts on the session's current version.
func NewTimeline(s *engine.Session, opts ...Option) *Timeline {
	t := &Timeline{session: s, st: darkStyles(), showTime: true, selected: s.Cursor()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe updates the view from a session event. Wire it up with
// session.Subscribe so the selection tracks the cursor and evictions are
// reported on the next draw.
func (t *Timeline) Observe(e notify.Event) {
	switch e.Type {
	case notify.EventEvict:
		t.evicted++
		t.lastDrop = e.Label
		if t.selected > 0 {
			t.selected--
		}
	case notify.EventClear:
		t.selected = 0
		t.offset = 0
	case notify.EventPush, notify.EventUndo, notify.EventRedo, notify.EventSeek:
		t.selected = e.Index
	}
}

// MoveUp moves the selection one row toward the oldest version.
func (t *Timeline) MoveUp() {
	if t.selected > 0 {
		t.selected--
	}
}

// MoveDown moves the selection one row toward the newest version.
func (t *Timeline) MoveDown() {
	if t.selected < t.session.HistoryLen()-1 {
		t.selected++
	}
}

// Selected returns the timeline index the selection bar sits on, the target
// for a seek.
func (t *Timeline) Selected() int {
	return t.selected
}

// Draw renders the full view onto the surface and consumes any pending
// eviction notice.
func (t *Timeline) Draw(s Surface) {
	s.Clear()

	width, height := s.Size()
	if width <= 0 || height <= 0 {
		return
	}

	doc := t.session.Document()
	records := t.session.Records()
	t.clampSelection(len(records))

	drawText(s, 0, width, t.st.header, fmt.Sprintf("caseworks  %s  rev %d", doc.Name, doc.Revision))

	listRows := height - 3
	if listRows < 0 {
		listRows = 0
	}
	t.scrollIntoView(listRows)

	for i := 0; i < listRows && t.offset+i < len(records); i++ {
		rec := records[t.offset+i]
		marker := ' '
		if rec.IsCurrent {
			marker = '*'
		}
		style := t.st.row
		if rec.Index == t.selected {
			style = t.st.selected
		}
		line := fmt.Sprintf("%c %3d  %-24s", marker, rec.Index, rec.Label)
		if t.showTime {
			line = fmt.Sprintf("%s %s", line, rec.CreatedAt.Format("15:04:05"))
		}
		drawText(s, 1+i, width, style, line)
	}

	if height >= 3 {
		notice, style := keyHint, t.st.hint
		if t.evicted > 0 {
			notice = fmt.Sprintf("history full: dropped %d old version(s), through %q", t.evicted, t.lastDrop)
			style = t.st.notice
			t.evicted = 0
		}
		drawText(s, height-2, width, style, notice)
	}
	if height >= 2 {
		drawText(s, height-1, width, t.st.status, t.statusLine())
	}

	s.HideCursor()
	s.Show()
}

func (t *Timeline) statusLine() string {
	undo, redo := "-", "-"
	if label, ok := t.session.UndoLabel(); ok {
		undo = label
	}
	if label, ok := t.session.RedoLabel(); ok {
		redo = label
	}
	return fmt.Sprintf("undo: %s  redo: %s  %d/%d versions",
		undo, redo, t.session.HistoryLen(), t.session.HistoryCap())
}

// clampSelection keeps the selection inside the timeline after the history
// shrinks, for example when the capacity is lowered.
func (t *Timeline) clampSelection(n int) {
	if t.selected >= n {
		t.selected = n - 1
	}
	if t.selected < 0 {
		t.selected = 0
	}
}

// scrollIntoView adjusts the scroll offset so the selected row is visible
// within the given number of list rows.
func (t *Timeline) scrollIntoView(rows int) {
	if rows < 1 {
		rows = 1
	}
	if t.selected < t.offset {
		t.offset = t.selected
	}
	if t.selected >= t.offset+rows {
		t.offset = t.selected - rows + 1
	}
	if t.offset < 0 {
		t.offset = 0
	}
}

// drawText writes one row, truncating at the surface edge and padding the
// remainder so row styles cover the full width.
func drawText(s Surface, y, width int, style tcell.Style, text string) {
	col := 0
	for _, r := range text {
		if col >= width {
			return
		}
		s.SetContent(col, y, r, nil, style)
		col++
	}
	for ; col < width; col++ {
		s.SetContent(col, y, ' ', nil, style)
	}
}
