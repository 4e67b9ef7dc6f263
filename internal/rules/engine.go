// Package rules validates design documents against Lua-scripted shop rules.
//
// A rule is a Lua script defining a check(design) function that returns an
// array of violation tables. Scripts run in a sandboxed interpreter with only
// the base, table, string, and math libraries plus the cw helper module:
//
//	function check(design)
//	  local out = {}
//	  for _, cab in ipairs(design.cabinets) do
//	    if cab.depth_mm < cw.mm("450mm") then
//	      table.insert(out, cw.warn(cab.name .. " is too shallow for drawers"))
//	    end
//	  end
//	  return out
//	end
//
// The engine ships with built-in rules so validation is useful with zero
// configuration; shops add their own scripts through LoadRule and LoadDir.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/caseworks/internal/design"
	"github.com/dshills/caseworks/internal/measure"
)

// DefaultMaxViolations caps how many violations one Check may return.
const DefaultMaxViolations = 100

// Severity grades a violation.
type Severity int

const (
	// SeverityWarning flags questionable geometry the shop may still build.
	SeverityWarning Severity = iota
	// SeverityError flags geometry that must not be committed.
	SeverityError
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	default:
		return "warning"
	}
}

func parseSeverity(s string) Severity {
	switch strings.ToLower(s) {
	case "error", "fail":
		return SeverityError
	default:
		return SeverityWarning
	}
}

// Violation is one rule finding against a document.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
}

// String renders the violation for logs and the status line.
func (v Violation) String() string {
	return fmt.Sprintf("%s[%s]: %s", v.Severity, v.Rule, v.Message)
}

// HasErrors reports whether any violation is SeverityError.
func HasErrors(vs []Violation) bool {
	for _, v := range vs {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

// rule is one loaded script: its registered name and compiled check function.
type rule struct {
	name string
	fn   *lua.LFunction
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxViolations caps the violations returned per Check. Values below 1
// are ignored.
func WithMaxViolations(n int) EngineOption {
	return func(e *Engine) {
		if n >= 1 {
			e.maxViolations = n
		}
	}
}

// WithoutBuiltins skips loading the built-in rules.
func WithoutBuiltins() EngineOption {
	return func(e *Engine) {
		e.skipBuiltins = true
	}
}

// Engine owns a sandboxed Lua state and the loaded rule set.
//
// gopher-lua states are not goroutine-safe; the engine serializes every
// operation behind its mutex.
type Engine struct {
	mu            sync.Mutex
	L             *lua.LState
	rules         []rule
	maxViolations int
	skipBuiltins  bool
	closed        bool
}

// NewEngine creates an engine with the sandbox installed and, unless
// disabled, the built-in rules loaded.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	e := &Engine{maxViolations: DefaultMaxViolations}
	for _, opt := range opts {
		opt(e)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	e.L = L
	e.registerHelpers()

	if !e.skipBuiltins {
		for _, b := range builtinRules {
			if err := e.loadRuleLocked(b.name, b.script); err != nil {
				L.Close()
				return nil, fmt.Errorf("loading builtin %s: %w", b.name, err)
			}
		}
	}
	return e, nil
}

// openSafeLibraries opens only the Lua libraries rules may use. io, os,
// debug, and package stay closed.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// registerHelpers installs the cw module.
func (e *Engine) registerHelpers() {
	mod := e.L.SetFuncs(e.L.NewTable(), map[string]lua.LGFunction{
		"mm":   luaMM,
		"warn": luaViolation("warning"),
		"fail": luaViolation("error"),
	})
	e.L.SetGlobal("cw", mod)
}

// luaMM parses a dimension string and returns millimeters as a number.
func luaMM(L *lua.LState) int {
	s := L.CheckString(1)
	d, err := measure.Parse(s)
	if err != nil {
		L.RaiseError("cw.mm: %v", err)
		return 0
	}
	L.Push(lua.LNumber(d.Millimeters()))
	return 1
}

// luaViolation builds the constructor for one severity.
func luaViolation(severity string) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		t := L.NewTable()
		t.RawSetString("severity", lua.LString(severity))
		t.RawSetString("message", lua.LString(msg))
		L.Push(t)
		return 1
	}
}

// LoadRule compiles a script and registers it under name. The script must
// define check(design). Loading an already-registered name replaces that
// rule, which is how directory reloads pick up edits.
func (e *Engine) LoadRule(name, script string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	return e.loadRuleLocked(name, script)
}

func (e *Engine) loadRuleLocked(name, script string) error {
	if err := e.L.DoString(script); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRule, name, err)
	}

	// Claim the check function and clear the global so the next script
	// cannot silently inherit it.
	fn := e.L.GetGlobal("check")
	e.L.SetGlobal("check", lua.LNil)

	lf, ok := fn.(*lua.LFunction)
	if !ok {
		return fmt.Errorf("%w: %s does not define check()", ErrInvalidRule, name)
	}

	for i := range e.rules {
		if e.rules[i].name == name {
			e.rules[i].fn = lf
			return nil
		}
	}
	e.rules = append(e.rules, rule{name: name, fn: lf})
	return nil
}

// LoadDir loads every .lua file in dir, sorted by filename, registering each
// under its basename. A missing directory loads nothing. Returns how many
// rules were loaded before any failure.
func (e *Engine) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading rules dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lua") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		script, err := os.ReadFile(path)
		if err != nil {
			return loaded, fmt.Errorf("reading rule %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".lua")
		if err := e.LoadRule(name, string(script)); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

// Rules returns the loaded rule names, sorted.
func (e *Engine) Rules() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.name
	}
	sort.Strings(names)
	return names
}

// Check runs every loaded rule against the document and collects violations.
// A rule that fails at runtime contributes a SeverityError violation naming
// the rule instead of aborting the whole check. A nil document checks clean.
func (e *Engine) Check(doc *design.Document) ([]Violation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}
	if doc == nil {
		return nil, nil
	}

	tbl := designToLua(e.L, doc)
	var out []Violation
	for _, r := range e.rules {
		out = append(out, e.runRule(r, tbl)...)
		if len(out) >= e.maxViolations {
			out = out[:e.maxViolations]
			break
		}
	}
	return out, nil
}

// runRule executes one rule with panic containment.
func (e *Engine) runRule(r rule, designTbl lua.LValue) (out []Violation) {
	defer func() {
		if rec := recover(); rec != nil {
			out = []Violation{{
				Rule:     r.name,
				Severity: SeverityError,
				Message:  fmt.Sprintf("rule panicked: %v", rec),
			}}
		}
	}()

	if err := e.L.CallByParam(lua.P{Fn: r.fn, NRet: 1, Protect: true}, designTbl); err != nil {
		return []Violation{{
			Rule:     r.name,
			Severity: SeverityError,
			Message:  fmt.Sprintf("rule failed: %v", err),
		}}
	}

	ret := e.L.Get(-1)
	e.L.Pop(1)
	return violationsFromLua(r.name, ret)
}

// Close releases the Lua state. Idempotent; all later operations return
// ErrEngineClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.L.Close()
	e.closed = true
	return nil
}
