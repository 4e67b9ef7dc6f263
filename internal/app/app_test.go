package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/caseworks/internal/archive"
	"github.com/dshills/caseworks/internal/config"
	"github.com/dshills/caseworks/internal/design"
	"github.com/dshills/caseworks/internal/engine/history"
)

// Test Helpers

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newHeadless(t *testing.T, opts Options) *Application {
	t.Helper()
	opts.Headless = true
	if opts.LogOutput == nil {
		opts.LogOutput = io.Discard
	}
	application, err := New(opts)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(application.Shutdown)
	return application
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// Bootstrap Tests

func TestNew_Defaults(t *testing.T) {
	application := newHeadless(t, Options{})

	if application.Session() == nil {
		t.Fatal("session not wired")
	}
	if got := application.Session().HistoryCap(); got != history.DefaultCapacity {
		t.Errorf("history capacity = %d, want the default %d", got, history.DefaultCapacity)
	}
	if application.Session().Document().Name != "Untitled" {
		t.Errorf("document name = %q, want Untitled", application.Session().Document().Name)
	}
	if application.Catalog() == nil || application.Catalog().Len() == 0 {
		t.Error("default catalog not wired")
	}
	if application.Rules() == nil {
		t.Error("rules are enabled by default")
	}
	if len(application.Warnings()) != 0 {
		t.Errorf("unexpected startup warnings: %v", application.Warnings())
	}
}

func TestNew_WithConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "caseworks.toml", `
[session]
history_capacity = 5

[rules]
enabled = false

[log]
level = "debug"
`)

	application := newHeadless(t, Options{ConfigPath: path})

	if got := application.Session().HistoryCap(); got != 5 {
		t.Errorf("history capacity = %d, want 5", got)
	}
	if application.Rules() != nil {
		t.Error("rules should be disabled by the configuration")
	}
	if application.Config().Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", application.Config().Log.Level)
	}
}

func TestNew_BadConfigAborts(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "caseworks.toml", "[session\nhistory_capacity = 5")

	_, err := New(Options{ConfigPath: path, Headless: true, LogOutput: io.Discard})
	if err == nil {
		t.Fatal("New() should fail on a bad configuration file")
	}

	var ie *InitError
	if !errors.As(err, &ie) || ie.Component != "config" {
		t.Errorf("error = %v, want an InitError for the config component", err)
	}
}

func TestNew_BadCatalogDegrades(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "shop.yaml", "templates: {broken")

	application := newHeadless(t, Options{CatalogPath: path})

	if len(application.Warnings()) != 1 {
		t.Fatalf("warnings = %v, want exactly one", application.Warnings())
	}
	var ie *InitError
	if !errors.As(application.Warnings()[0], &ie) || ie.Component != "catalog" {
		t.Errorf("warning = %v, want an InitError for the catalog component", application.Warnings()[0])
	}
	if got, want := application.Catalog().Len(), design.DefaultCatalog().Len(); got != want {
		t.Errorf("catalog length = %d, want the built-in default %d", got, want)
	}
}

func TestNew_LoadsCatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "shop.yaml", `
templates:
  pantry:
    width: 900mm
    height: 2100mm
    depth: 600mm
    shelves: 5
`)

	application := newHeadless(t, Options{CatalogPath: path})

	if _, ok := application.Catalog().Template("pantry"); !ok {
		t.Errorf("catalog templates = %v, want pantry", application.Catalog().Names())
	}
}

func TestNew_LoadsRulesDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tall-upper.lua", "check = function(design)\n  return {}\nend\n")

	application := newHeadless(t, Options{RulesDir: dir})

	if !containsString(application.Rules().Rules(), "tall-upper") {
		t.Errorf("rules = %v, want tall-upper loaded", application.Rules().Rules())
	}
}

func TestNew_BadRuleDegrades(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.lua", "this is not lua")

	application := newHeadless(t, Options{RulesDir: dir})

	if len(application.Warnings()) == 0 {
		t.Error("a broken rule script should surface as a startup warning")
	}
	if application.Rules() == nil {
		t.Error("the engine should survive a broken rule script")
	}
}

func TestNew_ImportsDesign(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pantry-wall"+archive.Ext)

	doc := design.NewDocument("Pantry Wall")
	if err := archive.Export(path, doc); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	application := newHeadless(t, Options{DesignPath: path})

	got := application.Session().Document()
	if got.Name != "Pantry Wall" {
		t.Errorf("document name = %q, want Pantry Wall", got.Name)
	}
	if got.ID != doc.ID {
		t.Errorf("document ID = %q, want the imported %q", got.ID, doc.ID)
	}
}

func TestNew_MissingDesignStartsFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "galley"+archive.Ext)

	application := newHeadless(t, Options{DesignPath: path})

	if got := application.Session().Document().Name; got != "galley" {
		t.Errorf("document name = %q, want galley from the archive path", got)
	}
	if len(application.Warnings()) != 0 {
		t.Errorf("a missing design path is not a warning: %v", application.Warnings())
	}
}

func TestNew_CorruptDesignAborts(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad"+archive.Ext, "not a design archive")

	_, err := New(Options{DesignPath: path, Headless: true, LogOutput: io.Discard})
	if err == nil {
		t.Fatal("New() should fail on a corrupt design archive")
	}

	var ie *InitError
	if !errors.As(err, &ie) || ie.Component != "design" {
		t.Errorf("error = %v, want an InitError for the design component", err)
	}
	if !errors.Is(err, archive.ErrCorruptArchive) {
		t.Errorf("error = %v, want ErrCorruptArchive underneath", err)
	}
}

// Run Tests

func TestRun_HeadlessReturns(t *testing.T) {
	application := newHeadless(t, Options{})

	if err := application.Run(context.Background()); err != nil {
		t.Fatalf("headless Run() = %v, want nil", err)
	}
	if application.IsRunning() {
		t.Error("IsRunning() should be false after Run returns")
	}
}

func TestRun_AlreadyRunning(t *testing.T) {
	application := newHeadless(t, Options{})

	application.running.Store(true)
	defer application.running.Store(false)

	if err := application.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Run() = %v, want ErrAlreadyRunning", err)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	application := newHeadless(t, Options{})

	application.Shutdown()
	application.Shutdown()
}

// Key Handling Tests

func TestHandleKey_HistoryNavigation(t *testing.T) {
	application := newHeadless(t, Options{})
	session := application.Session()

	if err := session.Apply("Widen", func(*design.Document) error { return nil }); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	press := func(key tcell.Key, r rune) error {
		t.Helper()
		return application.handleKey(tcell.NewEventKey(key, r, tcell.ModNone))
	}

	if err := press(tcell.KeyRune, 'u'); err != nil {
		t.Fatalf("u: %v", err)
	}
	if session.Cursor() != 0 {
		t.Errorf("cursor = %d after undo, want 0", session.Cursor())
	}

	if err := press(tcell.KeyRune, 'r'); err != nil {
		t.Fatalf("r: %v", err)
	}
	if session.Cursor() != 1 {
		t.Errorf("cursor = %d after redo, want 1", session.Cursor())
	}

	// Select the oldest version and seek to it.
	if err := press(tcell.KeyUp, 0); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := press(tcell.KeyEnter, 0); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if session.Cursor() != 0 {
		t.Errorf("cursor = %d after seek, want 0", session.Cursor())
	}

	if err := press(tcell.KeyRune, 'c'); err != nil {
		t.Fatalf("c: %v", err)
	}
	if session.HistoryLen() != 1 {
		t.Errorf("history length = %d after clear, want 1", session.HistoryLen())
	}
}

func TestHandleKey_Quit(t *testing.T) {
	application := newHeadless(t, Options{})

	for _, ev := range []*tcell.EventKey{
		tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone),
		tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone),
		tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl),
	} {
		if err := application.handleKey(ev); !errors.Is(err, ErrQuit) {
			t.Errorf("handleKey(%v) = %v, want ErrQuit", ev.Key(), err)
		}
	}
}

// Export Tests

func TestExportKey_WritesArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "island"+archive.Ext)

	application := newHeadless(t, Options{DesignPath: path})

	if err := application.handleRune('e'); err != nil {
		t.Fatalf("e: %v", err)
	}

	doc, err := archive.Import(path)
	if err != nil {
		t.Fatalf("Import() after export failed: %v", err)
	}
	if doc.Name != "island" {
		t.Errorf("exported name = %q, want island", doc.Name)
	}
}

func TestExport_DerivesPathFromName(t *testing.T) {
	t.Chdir(t.TempDir())

	application := newHeadless(t, Options{})

	if err := application.exportDesign(); err != nil {
		t.Fatalf("exportDesign() failed: %v", err)
	}

	if _, err := os.Stat("untitled" + archive.Ext); err != nil {
		t.Errorf("derived archive missing: %v", err)
	}
	if application.designPath != "untitled"+archive.Ext {
		t.Errorf("designPath = %q, want it pinned after the first export", application.designPath)
	}
}

// Hot Reload Tests

func TestHandleFileEvent_ReloadsConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "caseworks.toml", "[session]\nhistory_capacity = 5\n")

	application := newHeadless(t, Options{ConfigPath: path})
	if got := application.Session().HistoryCap(); got != 5 {
		t.Fatalf("history capacity = %d, want 5", got)
	}

	writeFile(t, dir, "caseworks.toml", "[session]\nhistory_capacity = 2\n")
	application.handleFileEvent(config.Event{Path: application.configPath, Op: config.OpWrite})

	if got := application.Session().HistoryCap(); got != 2 {
		t.Errorf("history capacity = %d after reload, want 2", got)
	}
}

func TestHandleFileEvent_ReloadsRules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tall-upper.lua", "check = function(design)\n  return {}\nend\n")

	application := newHeadless(t, Options{RulesDir: dir})

	path := writeFile(t, dir, "plinth.lua", "check = function(design)\n  return {}\nend\n")
	application.handleFileEvent(config.Event{Path: path, Op: config.OpCreate})

	if !containsString(application.Rules().Rules(), "plinth") {
		t.Errorf("rules = %v, want plinth after reload", application.Rules().Rules())
	}
}

func TestHandleFileEvent_IgnoresRemoves(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "caseworks.toml", "[session]\nhistory_capacity = 5\n")

	application := newHeadless(t, Options{ConfigPath: path})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	application.handleFileEvent(config.Event{Path: application.configPath, Op: config.OpRemove})

	if got := application.Session().HistoryCap(); got != 5 {
		t.Errorf("history capacity = %d, a remove event must not reload", got)
	}
}
