package rules

// Built-in shop rules, always loaded unless WithoutBuiltins. They cover
// policy the structural validator does not: hinge stress, drawer ergonomics,
// and front stacking.
var builtinRules = []struct {
	name   string
	script string
}{
	{"door-width", builtinDoorWidth},
	{"drawer-depth", builtinDrawerDepth},
	{"drawer-stack", builtinDrawerStack},
}

const builtinDoorWidth = `
function check(design)
  local out = {}
  local limit = cw.mm("600mm")
  for _, cab in ipairs(design.cabinets) do
    for i, door in ipairs(cab.doors) do
      if door.width_mm > limit then
        table.insert(out, cw.warn(string.format(
          "door %d of %q is %.0fmm wide; doors over 600mm strain their hinges",
          i, cab.name, door.width_mm)))
      end
    end
  end
  return out
end
`

const builtinDrawerDepth = `
function check(design)
  local out = {}
  local minimum = cw.mm("450mm")
  for _, cab in ipairs(design.cabinets) do
    if #cab.drawers > 0 and cab.depth_mm < minimum then
      table.insert(out, cw.warn(string.format(
        "%q is %.0fmm deep; drawer boxes need at least 450mm",
        cab.name, cab.depth_mm)))
    end
  end
  return out
end
`

const builtinDrawerStack = `
function check(design)
  local out = {}
  for _, cab in ipairs(design.cabinets) do
    local stack = 0
    for _, drawer in ipairs(cab.drawers) do
      stack = stack + drawer.height_mm
    end
    if stack > cab.height_mm then
      table.insert(out, cw.fail(string.format(
        "drawer fronts of %q stack to %.0fmm but the carcase is only %.0fmm",
        cab.name, stack, cab.height_mm)))
    end
  end
  return out
end
`
