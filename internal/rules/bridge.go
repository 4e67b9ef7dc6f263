package rules

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/caseworks/internal/design"
)

// designToLua converts a document into the table handed to check functions.
// Dimensions cross the boundary as float millimeters so scripts never touch
// the Dimension type.
func designToLua(L *lua.LState, doc *design.Document) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(doc.ID))
	t.RawSetString("name", lua.LString(doc.Name))
	t.RawSetString("revision", lua.LNumber(doc.Revision))

	cabinets := L.NewTable()
	for i := range doc.Cabinets {
		cabinets.Append(cabinetToLua(L, &doc.Cabinets[i]))
	}
	t.RawSetString("cabinets", cabinets)
	return t
}

func cabinetToLua(L *lua.LState, c *design.Cabinet) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("name", lua.LString(c.Name))
	t.RawSetString("width_mm", lua.LNumber(c.Width.Millimeters()))
	t.RawSetString("height_mm", lua.LNumber(c.Height.Millimeters()))
	t.RawSetString("depth_mm", lua.LNumber(c.Depth.Millimeters()))
	t.RawSetString("shelves", lua.LNumber(c.Shelves))
	t.RawSetString("finish", lua.LString(c.Finish))

	doors := L.NewTable()
	for _, d := range c.Doors {
		dt := L.NewTable()
		dt.RawSetString("style", lua.LString(d.Style))
		dt.RawSetString("hinge", lua.LString(d.Hinge))
		dt.RawSetString("width_mm", lua.LNumber(d.Width.Millimeters()))
		dt.RawSetString("height_mm", lua.LNumber(d.Height.Millimeters()))
		doors.Append(dt)
	}
	t.RawSetString("doors", doors)

	drawers := L.NewTable()
	for _, d := range c.Drawers {
		dt := L.NewTable()
		dt.RawSetString("front", lua.LString(d.Front))
		dt.RawSetString("height_mm", lua.LNumber(d.Height.Millimeters()))
		drawers.Append(dt)
	}
	t.RawSetString("drawers", drawers)
	return t
}

// violationsFromLua walks a check function's return value. nil means the rule
// passed. Anything other than a table of violation tables becomes an error
// violation naming the rule, so a sloppy script surfaces in the report rather
// than silently passing.
func violationsFromLua(rule string, lv lua.LValue) []Violation {
	if lv == lua.LNil {
		return nil
	}
	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return []Violation{{
			Rule:     rule,
			Severity: SeverityError,
			Message:  fmt.Sprintf("rule returned %s, want a table of violations", lv.Type()),
		}}
	}

	var out []Violation
	n := tbl.Len()
	for i := 1; i <= n; i++ {
		elem, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			out = append(out, Violation{
				Rule:     rule,
				Severity: SeverityError,
				Message:  fmt.Sprintf("violation %d is not a table", i),
			})
			continue
		}
		msg := lua.LVAsString(elem.RawGetString("message"))
		if msg == "" {
			out = append(out, Violation{
				Rule:     rule,
				Severity: SeverityError,
				Message:  fmt.Sprintf("violation %d has no message", i),
			})
			continue
		}
		out = append(out, Violation{
			Rule:     rule,
			Severity: parseSeverity(lua.LVAsString(elem.RawGetString("severity"))),
			Message:  msg,
		})
	}
	return out
}
