package design

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dshills/caseworks/internal/measure"
)

// ErrInvalidCatalog is wrapped by LoadCatalog for unreadable or malformed
// catalog files.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog holds named cabinet templates. Template returns copies, so
// instantiated cabinets never share structure with the catalog.
type Catalog struct {
	templates map[string]Cabinet
}

// catalogFile is the on-disk YAML shape. Dimensions are written as the same
// strings users type into forms ("750mm", "30in") and parsed on load.
type catalogFile struct {
	Templates map[string]cabinetTemplate `yaml:"templates"`
}

type cabinetTemplate struct {
	Width   string           `yaml:"width"`
	Height  string           `yaml:"height"`
	Depth   string           `yaml:"depth"`
	Shelves int              `yaml:"shelves"`
	Finish  string           `yaml:"finish"`
	Doors   []doorTemplate   `yaml:"doors"`
	Drawers []drawerTemplate `yaml:"drawers"`
}

type doorTemplate struct {
	Style  string `yaml:"style"`
	Hinge  string `yaml:"hinge"`
	Width  string `yaml:"width"`
	Height string `yaml:"height"`
}

type drawerTemplate struct {
	Height string `yaml:"height"`
	Front  string `yaml:"front"`
}

// LoadCatalog reads a YAML template catalog. A missing or unparsable file is
// an error; an empty template map is not.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	c := &Catalog{templates: make(map[string]Cabinet, len(file.Templates))}
	for name, tmpl := range file.Templates {
		cab, err := tmpl.toCabinet(name)
		if err != nil {
			return nil, fmt.Errorf("%w: template %q: %v", ErrInvalidCatalog, name, err)
		}
		c.templates[name] = cab
	}
	return c, nil
}

func (t cabinetTemplate) toCabinet(name string) (Cabinet, error) {
	cab := Cabinet{
		Name:    name,
		Shelves: t.Shelves,
		Finish:  t.Finish,
	}

	var err error
	if cab.Width, err = measure.Parse(t.Width); err != nil {
		return Cabinet{}, fmt.Errorf("width: %v", err)
	}
	if cab.Height, err = measure.Parse(t.Height); err != nil {
		return Cabinet{}, fmt.Errorf("height: %v", err)
	}
	if cab.Depth, err = measure.Parse(t.Depth); err != nil {
		return Cabinet{}, fmt.Errorf("depth: %v", err)
	}

	for i, dt := range t.Doors {
		door := Door{Style: dt.Style, Hinge: dt.Hinge}
		if door.Width, err = measure.Parse(dt.Width); err != nil {
			return Cabinet{}, fmt.Errorf("door %d width: %v", i, err)
		}
		if door.Height, err = measure.Parse(dt.Height); err != nil {
			return Cabinet{}, fmt.Errorf("door %d height: %v", i, err)
		}
		cab.Doors = append(cab.Doors, door)
	}
	for i, dt := range t.Drawers {
		drawer := Drawer{Front: dt.Front}
		if drawer.Height, err = measure.Parse(dt.Height); err != nil {
			return Cabinet{}, fmt.Errorf("drawer %d height: %v", i, err)
		}
		cab.Drawers = append(cab.Drawers, drawer)
	}

	if cab.Width <= 0 || cab.Height <= 0 || cab.Depth <= 0 {
		return Cabinet{}, fmt.Errorf("carcase dimensions must be positive")
	}
	return cab, nil
}

// DefaultCatalog returns the built-in templates used when no catalog file is
// configured: standard European base, wall, drawer-base, and tall units.
func DefaultCatalog() *Catalog {
	mm := measure.FromMillimeters
	return &Catalog{templates: map[string]Cabinet{
		"base": {
			Name: "base", Width: mm(600), Height: mm(720), Depth: mm(560),
			Shelves: 1,
			Doors: []Door{
				{Style: "slab", Hinge: "left", Width: mm(596), Height: mm(716)},
			},
		},
		"wall": {
			Name: "wall", Width: mm(600), Height: mm(720), Depth: mm(320),
			Shelves: 2,
			Doors: []Door{
				{Style: "slab", Hinge: "left", Width: mm(596), Height: mm(716)},
			},
		},
		"drawer-base": {
			Name: "drawer-base", Width: mm(600), Height: mm(720), Depth: mm(560),
			Drawers: []Drawer{
				{Height: mm(140), Front: "slab"},
				{Height: mm(283), Front: "slab"},
				{Height: mm(283), Front: "slab"},
			},
		},
		"tall": {
			Name: "tall", Width: mm(600), Height: mm(2100), Depth: mm(560),
			Shelves: 4,
			Doors: []Door{
				{Style: "slab", Hinge: "left", Width: mm(596), Height: mm(1044)},
				{Style: "slab", Hinge: "left", Width: mm(596), Height: mm(1044)},
			},
		},
	}}
}

// Template returns a copy of the named template, ok=false when absent.
func (c *Catalog) Template(name string) (Cabinet, bool) {
	tmpl, ok := c.templates[name]
	if !ok {
		return Cabinet{}, false
	}
	return tmpl.clone(), true
}

// Names returns the template names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}
