package app

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/caseworks/internal/archive"
	"github.com/dshills/caseworks/internal/config"
)

// Run drives the application until the context is canceled, Shutdown is
// called, or the user quits. A quit returns ErrQuit. When Headless is set,
// Run returns as soon as the components are wired, which is how tests drive
// the application without a terminal.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if app.opts.Headless {
		return nil
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return &InitError{Component: "screen", Err: err}
	}
	if err := screen.Init(); err != nil {
		return &InitError{Component: "screen", Err: err}
	}
	defer screen.Fini()
	app.screen = screen

	return app.eventLoop(ctx)
}

// eventLoop is the main application loop. It multiplexes terminal input,
// session events feeding the panel, and file watcher events for hot reload.
func (app *Application) eventLoop(ctx context.Context) error {
	keys := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go app.screen.ChannelEvents(keys, quit)
	defer close(quit)

	sub := app.session.Subscribe(app.timeline.Observe)
	defer sub.Unsubscribe()

	var fsEvents <-chan config.Event
	var fsErrors <-chan error
	if app.watcher != nil {
		fsEvents = app.watcher.Events()
		fsErrors = app.watcher.Errors()
	}

	app.draw()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-app.done:
			return nil

		case ev, ok := <-keys:
			if !ok {
				return nil
			}
			if err := app.handleEvent(ev); err != nil {
				return err
			}
			app.draw()

		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			app.handleFileEvent(ev)
			app.draw()

		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			app.logger.WithComponent("watcher").Warn("watch error: %v", err)
		}
	}
}

func (app *Application) handleEvent(ev tcell.Event) error {
	switch tev := ev.(type) {
	case *tcell.EventResize:
		app.screen.Sync()
	case *tcell.EventKey:
		return app.handleKey(tev)
	}
	return nil
}

func (app *Application) handleKey(ev *tcell.EventKey) error {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return ErrQuit
	case tcell.KeyUp:
		app.timeline.MoveUp()
	case tcell.KeyDown:
		app.timeline.MoveDown()
	case tcell.KeyEnter:
		if !app.session.SeekTo(app.timeline.Selected()) {
			app.logger.Debug("seek to %d rejected", app.timeline.Selected())
		}
	case tcell.KeyRune:
		return app.handleRune(ev.Rune())
	}
	return nil
}

func (app *Application) handleRune(r rune) error {
	switch r {
	case 'q':
		return ErrQuit
	case 'u':
		if !app.session.Undo() {
			app.logger.Debug("nothing to undo")
		}
	case 'r':
		if !app.session.Redo() {
			app.logger.Debug("nothing to redo")
		}
	case 'c':
		app.session.ClearHistory()
	case 'e':
		if err := app.exportDesign(); err != nil {
			app.logger.WithComponent("archive").Error("export failed: %v", err)
		}
	}
	return nil
}

// handleFileEvent reloads configuration or shop rules after an on-disk edit.
func (app *Application) handleFileEvent(ev config.Event) {
	if !ev.Op.Has(config.OpWrite) && !ev.Op.Has(config.OpCreate) {
		return
	}
	switch {
	case app.configPath != "" && ev.Path == app.configPath:
		app.reloadConfig()
	case app.rulesDir != "" && filepath.Ext(ev.Path) == ".lua":
		app.reloadRules()
	}
}

func (app *Application) reloadConfig() {
	log := app.logger.WithComponent("config")

	cfg, err := config.Load(app.configPath)
	if err != nil {
		log.Warn("reload failed: %v", err)
		return
	}
	app.cfg = cfg

	app.session.SetHistoryCapacity(cfg.Session.HistoryCapacity)
	// A -log-level flag keeps precedence over the configuration file.
	if app.opts.LogLevel == "" {
		app.logger.SetLevel(ParseLogLevel(cfg.Log.Level))
	}
	log.Info("configuration reloaded")
}

func (app *Application) reloadRules() {
	if app.checker == nil {
		return
	}
	log := app.logger.WithComponent("rules")

	// Loaded rules replace by name; a deleted script keeps its last loaded
	// rule until restart.
	n, err := app.checker.LoadDir(app.rulesDir)
	if err != nil {
		log.Warn("reload failed: %v", err)
		return
	}
	log.Info("reloaded %d rule(s) from %s", n, app.rulesDir)
}

// exportDesign writes the current version to the design archive path, deriving
// one from the document name on the first export of an unsaved design.
func (app *Application) exportDesign() error {
	doc := app.session.Document()

	path := app.designPath
	if path == "" {
		name := strings.ToLower(strings.ReplaceAll(doc.Name, " ", "-"))
		path = name + archive.Ext
	}

	if err := archive.Export(path, doc); err != nil {
		return err
	}
	app.designPath = path
	app.logger.Info("exported design %q to %s", doc.Name, path)
	return nil
}

func (app *Application) draw() {
	if app.screen == nil {
		return
	}
	app.timeline.Draw(app.screen)
}
