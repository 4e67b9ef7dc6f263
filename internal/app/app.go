package app

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/caseworks/internal/archive"
	"github.com/dshills/caseworks/internal/config"
	"github.com/dshills/caseworks/internal/design"
	"github.com/dshills/caseworks/internal/engine"
	"github.com/dshills/caseworks/internal/panel"
	"github.com/dshills/caseworks/internal/rules"
)

// Options configures the application at startup.
type Options struct {
	// ConfigPath is the TOML configuration file. Empty runs on built-in
	// defaults without watching for configuration changes.
	ConfigPath string
	// CatalogPath overrides the cabinet catalog file from the configuration.
	CatalogPath string
	// DesignPath is the design archive to open, and the default export
	// target. A path that does not exist yet starts a new design there.
	DesignPath string
	// RulesDir overrides the shop rules directory from the configuration.
	RulesDir string
	// LogLevel overrides the log level from the configuration.
	LogLevel string
	// LogOutput overrides where logs are written. Defaults to os.Stderr.
	LogOutput io.Writer
	// Headless skips the terminal UI; Run returns once wiring is complete.
	Headless bool
}

// Application owns the design session and every supporting component.
type Application struct {
	opts   Options
	cfg    *config.Config
	logger *Logger

	catalog  *design.Catalog
	checker  *rules.Engine
	session  *engine.Session
	watcher  *config.Watcher
	timeline *panel.Timeline

	configPath string // absolute, empty when running on defaults
	rulesDir   string
	designPath string // export target, empty until the first export

	screen tcell.Screen

	warnings []error

	running      atomic.Bool
	done         chan struct{}
	shutdownOnce sync.Once
}

// New bootstraps an application from the given options. A broken
// configuration file or design archive aborts startup; a failing catalog,
// rule engine, or watcher logs a warning and degrades instead.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts: opts,
		done: make(chan struct{}),
	}

	// 1. Configuration
	cfg := config.Default()
	if opts.ConfigPath != "" {
		abs, err := filepath.Abs(opts.ConfigPath)
		if err != nil {
			return nil, &InitError{Component: "config", Err: err}
		}
		app.configPath = abs
		if cfg, err = config.Load(abs); err != nil {
			return nil, &InitError{Component: "config", Err: err}
		}
	}
	app.cfg = cfg

	// 2. Logger
	level := ParseLogLevel(cfg.Log.Level)
	if opts.LogLevel != "" {
		level = ParseLogLevel(opts.LogLevel)
	}
	app.logger = NewLogger(LoggerConfig{Level: level, Output: opts.LogOutput, Prefix: "caseworks"})
	SetLogger(app.logger)

	// 3. Cabinet catalog
	catalogPath := cfg.Catalog.Path
	if opts.CatalogPath != "" {
		catalogPath = opts.CatalogPath
	}
	app.catalog = design.DefaultCatalog()
	if catalogPath != "" {
		catalog, err := design.LoadCatalog(catalogPath)
		if err != nil {
			app.warn("catalog", err)
		} else {
			app.catalog = catalog
		}
	}

	// 4. Rule engine
	app.rulesDir = cfg.Rules.Dir
	if opts.RulesDir != "" {
		app.rulesDir = opts.RulesDir
	}
	if cfg.Rules.Enabled {
		checker, err := rules.NewEngine()
		if err != nil {
			app.warn("rules", err)
		} else {
			app.checker = checker
			if app.rulesDir != "" {
				n, err := checker.LoadDir(app.rulesDir)
				if err != nil {
					app.warn("rules", err)
				} else if n > 0 {
					app.logger.WithComponent("rules").Info("loaded %d rule(s) from %s", n, app.rulesDir)
				}
			}
		}
	}

	// 5. Design document
	doc, err := app.openDesign(opts.DesignPath)
	if err != nil {
		if app.checker != nil {
			_ = app.checker.Close()
		}
		return nil, &InitError{Component: "design", Err: err}
	}

	// 6. Session
	sessionOpts := []engine.Option{
		engine.WithHistoryCapacity(cfg.Session.HistoryCapacity),
		engine.WithDefaultLabel(cfg.Session.DefaultAction),
	}
	if app.checker != nil {
		sessionOpts = append(sessionOpts, engine.WithRules(app.checker))
	}
	app.session = engine.New(doc, sessionOpts...)
	app.timeline = panel.NewTimeline(app.session,
		panel.WithTheme(cfg.UI.Theme),
		panel.WithTimestamps(cfg.UI.ShowTimestamps))

	// 7. Configuration and rules watcher
	app.startWatcher()

	return app, nil
}

// openDesign imports the archive at path, or starts a fresh document when
// the path is empty or does not exist yet.
func (app *Application) openDesign(path string) (*design.Document, error) {
	if path == "" {
		return design.NewDocument(""), nil
	}
	app.designPath = path

	doc, err := archive.Import(path)
	if errors.Is(err, fs.ErrNotExist) {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		app.logger.Info("starting new design %q at %s", name, path)
		return design.NewDocument(name), nil
	}
	if err != nil {
		return nil, err
	}

	app.logger.Info("opened design %q from %s", doc.Name, path)
	return doc, nil
}

// startWatcher watches the configuration file and the rules directory so
// edits take effect without a restart. Watch failures degrade.
func (app *Application) startWatcher() {
	wantConfig := app.configPath != ""
	wantRules := app.rulesDir != "" && app.checker != nil
	if !wantConfig && !wantRules {
		return
	}

	watcher, err := config.NewWatcher()
	if err != nil {
		app.warn("watcher", err)
		return
	}

	watched := 0
	if wantConfig {
		if err := watcher.Watch(app.configPath); err != nil {
			app.warn("watcher", err)
		} else {
			watched++
		}
	}
	if wantRules {
		if err := watcher.Watch(app.rulesDir); err != nil {
			app.warn("watcher", err)
		} else {
			watched++
		}
	}

	if watched == 0 {
		_ = watcher.Close()
		return
	}
	app.watcher = watcher
}

// warn records a degraded component and keeps going.
func (app *Application) warn(component string, err error) {
	ie := &InitError{Component: component, Err: err}
	app.warnings = append(app.warnings, ie)
	app.logger.Warn("%v", ie)
}

// Shutdown stops the application and releases every component. It is safe
// to call more than once and from any goroutine.
func (app *Application) Shutdown() {
	app.shutdownOnce.Do(func() {
		close(app.done)
		if app.watcher != nil {
			_ = app.watcher.Close()
		}
		if app.checker != nil {
			_ = app.checker.Close()
		}
	})
}

// IsRunning reports whether the event loop is active.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Session returns the design session.
func (app *Application) Session() *engine.Session {
	return app.session
}

// Config returns the active configuration.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Catalog returns the cabinet catalog.
func (app *Application) Catalog() *design.Catalog {
	return app.catalog
}

// Rules returns the rule engine, or nil when rules are disabled or failed
// to start.
func (app *Application) Rules() *rules.Engine {
	return app.checker
}

// Logger returns the application's logger instance.
func (app *Application) Logger() *Logger {
	if app.logger == nil {
		return GetLogger()
	}
	return app.logger
}

// Warnings returns the degraded-component failures collected during startup.
func (app *Application) Warnings() []error {
	return app.warnings
}
