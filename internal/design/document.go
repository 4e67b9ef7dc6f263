// Package design defines the cabinet document model an editing session
// versions, plus the template catalog used to stamp out new cabinets.
package design

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dshills/caseworks/internal/measure"
)

// ErrInvalidDocument is wrapped by Validate for any structural failure.
var ErrInvalidDocument = errors.New("invalid document")

// Document is the complete state of one design session: a named collection of
// cabinets. Documents are plain data; the session layer owns concurrency.
type Document struct {
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Revision uint64    `json:"revision" yaml:"revision"`
	Cabinets []Cabinet `json:"cabinets" yaml:"cabinets"`
}

// Cabinet is one carcase with its front hardware.
type Cabinet struct {
	Name    string            `json:"name" yaml:"name"`
	Width   measure.Dimension `json:"width" yaml:"width"`
	Height  measure.Dimension `json:"height" yaml:"height"`
	Depth   measure.Dimension `json:"depth" yaml:"depth"`
	Shelves int               `json:"shelves" yaml:"shelves"`
	Doors   []Door            `json:"doors,omitempty" yaml:"doors,omitempty"`
	Drawers []Drawer          `json:"drawers,omitempty" yaml:"drawers,omitempty"`
	Finish  string            `json:"finish,omitempty" yaml:"finish,omitempty"`
}

// Door is a hinged front.
type Door struct {
	Style  string            `json:"style" yaml:"style"`
	Hinge  string            `json:"hinge" yaml:"hinge"`
	Width  measure.Dimension `json:"width" yaml:"width"`
	Height measure.Dimension `json:"height" yaml:"height"`
}

// Drawer is a sliding front.
type Drawer struct {
	Height measure.Dimension `json:"height" yaml:"height"`
	Front  string            `json:"front" yaml:"front"`
}

// NewDocument creates an empty document with a fresh ID. An empty name
// becomes "Untitled".
func NewDocument(name string) *Document {
	if name == "" {
		name = "Untitled"
	}
	return &Document{
		ID:   uuid.NewString(),
		Name: name,
	}
}

// Clone returns a deep copy of the document. Mutating the copy's cabinets,
// doors, or drawers never touches the original; this is the snapshot contract
// the version log relies on.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Cabinets = make([]Cabinet, len(d.Cabinets))
	for i, c := range d.Cabinets {
		out.Cabinets[i] = c.clone()
	}
	return &out
}

func (c Cabinet) clone() Cabinet {
	out := c
	out.Doors = append([]Door(nil), c.Doors...)
	out.Drawers = append([]Drawer(nil), c.Drawers...)
	return out
}

// Touch bumps the revision counter. The session calls it once per committed
// edit.
func (d *Document) Touch() {
	d.Revision++
}

// AddCabinet appends a cabinet to the document.
func (d *Document) AddCabinet(c Cabinet) {
	d.Cabinets = append(d.Cabinets, c)
}

// Cabinet returns a pointer to the named cabinet for in-place edits, or
// ok=false when no cabinet has that name.
func (d *Document) Cabinet(name string) (*Cabinet, bool) {
	for i := range d.Cabinets {
		if d.Cabinets[i].Name == name {
			return &d.Cabinets[i], true
		}
	}
	return nil, false
}

// RemoveCabinet deletes the named cabinet, reporting whether it existed.
func (d *Document) RemoveCabinet(name string) bool {
	for i := range d.Cabinets {
		if d.Cabinets[i].Name == name {
			d.Cabinets = append(d.Cabinets[:i], d.Cabinets[i+1:]...)
			return true
		}
	}
	return false
}

// Validate checks the document's structural soundness: non-empty names,
// positive carcase dimensions, fronts that fit their cabinet.
func (d *Document) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: document has no name", ErrInvalidDocument)
	}
	seen := make(map[string]bool, len(d.Cabinets))
	for i := range d.Cabinets {
		c := &d.Cabinets[i]
		if c.Name == "" {
			return fmt.Errorf("%w: cabinet %d has no name", ErrInvalidDocument, i)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate cabinet name %q", ErrInvalidDocument, c.Name)
		}
		seen[c.Name] = true
		if err := c.validate(); err != nil {
			return fmt.Errorf("%w: cabinet %q: %v", ErrInvalidDocument, c.Name, err)
		}
	}
	return nil
}

func (c *Cabinet) validate() error {
	if c.Width <= 0 || c.Height <= 0 || c.Depth <= 0 {
		return fmt.Errorf("carcase dimensions must be positive (got %s x %s x %s)",
			c.Width, c.Height, c.Depth)
	}
	if c.Shelves < 0 {
		return fmt.Errorf("shelf count %d is negative", c.Shelves)
	}
	for i, door := range c.Doors {
		if door.Width <= 0 || door.Height <= 0 {
			return fmt.Errorf("door %d dimensions must be positive", i)
		}
		if door.Width > c.Width || door.Height > c.Height {
			return fmt.Errorf("door %d (%s x %s) exceeds the carcase", i, door.Width, door.Height)
		}
	}
	for i, drawer := range c.Drawers {
		if drawer.Height <= 0 {
			return fmt.Errorf("drawer %d height must be positive", i)
		}
		if drawer.Height > c.Height {
			return fmt.Errorf("drawer %d (%s) exceeds the carcase height", i, drawer.Height)
		}
	}
	return nil
}
