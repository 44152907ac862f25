// Package workspace assembles the workbench subsystems from configuration:
// the backend client, the event bus, the sample store, the status overlay,
// the selection context, the editor and the well-picking controller.
//
//	ws, err := workspace.New(cfg)
//	if err := ws.RefreshAll(ctx); err != nil { ... }
//	go ws.Run(ctx)
//	sub, err := ws.Editor().AddMethod(ctx, "s1", labware.StagePrep, "Transfer")
//
// Functional options replace config-created subsystems in tests.
package workspace

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lh-manager/workbench/backend"
	"github.com/lh-manager/workbench/bus"
	"github.com/lh-manager/workbench/editor"
	"github.com/lh-manager/workbench/observability"
	"github.com/lh-manager/workbench/overlay"
	"github.com/lh-manager/workbench/picking"
	"github.com/lh-manager/workbench/refresh"
	"github.com/lh-manager/workbench/selection"
	"github.com/lh-manager/workbench/store"
)

const (
	EventStarted observability.EventType = "workspace.started"
	EventStopped observability.EventType = "workspace.stopped"
)

// Option configures a Workspace before its subsystems are built.
type Option func(*Workspace)

// WithBackend replaces the config-created HTTP client.
func WithBackend(b backend.Backend) Option {
	return func(w *Workspace) { w.backend = b }
}

// WithObserver replaces the observer named in the config.
func WithObserver(o observability.Observer) Option {
	return func(w *Workspace) { w.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

// Workspace owns one connected set of subsystems.
type Workspace struct {
	cfg       Config
	backend   backend.Backend
	bus       *bus.Bus
	store     *store.Store
	overlay   *overlay.Overlay
	selection *selection.Context
	editor    *editor.Editor
	picking   *picking.Controller
	observer  observability.Observer
	logger    *slog.Logger
}

// New creates a Workspace from cfg. Nothing is fetched until RefreshAll or
// Run is called.
func New(cfg *Config, opts ...Option) (*Workspace, error) {
	c := DefaultConfig()
	if cfg != nil {
		c.Merge(cfg)
	}

	w := &Workspace{cfg: c, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}

	if w.observer == nil {
		obs, err := observability.GetObserver(c.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		w.observer = obs
	}

	if w.backend == nil {
		client, err := backend.NewHTTPClient(c.Backend, nil, w.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create backend client: %w", err)
		}
		w.backend = client
	}

	busCfg := c.Bus
	busCfg.Logger = w.logger
	w.bus = bus.New(busCfg)

	w.store = store.New(w.backend,
		store.WithBus(w.bus),
		store.WithObserver(w.observer),
		store.WithLogger(w.logger))
	w.overlay = overlay.New(w.store)
	w.selection = selection.New()
	w.editor = editor.New(w.store, w.backend, w.selection, c.Editor,
		editor.WithObserver(w.observer),
		editor.WithLogger(w.logger))
	w.picking = picking.New(w.store, w.editor, w.bus.WellPicked,
		picking.WithObserver(w.observer),
		picking.WithLogger(w.logger))

	return w, nil
}

func (w *Workspace) Config() Config {
	return w.cfg
}

func (w *Workspace) Backend() backend.Backend {
	return w.backend
}

func (w *Workspace) Bus() *bus.Bus {
	return w.bus
}

func (w *Workspace) Store() *store.Store {
	return w.store
}

func (w *Workspace) Overlay() *overlay.Overlay {
	return w.overlay
}

func (w *Workspace) Selection() *selection.Context {
	return w.selection
}

func (w *Workspace) Editor() *editor.Editor {
	return w.editor
}

func (w *Workspace) Picking() *picking.Controller {
	return w.picking
}

// RefreshAll fetches samples, status and method definitions concurrently.
// Each refresh replaces its own state independently, so one failing does not
// stop the others. The first error is returned.
func (w *Workspace) RefreshAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return w.store.Refresh(ctx) })
	g.Go(func() error { return w.overlay.Refresh(ctx) })
	g.Go(func() error { return w.store.RefreshMethodDefs(ctx) })
	return g.Wait()
}

// Run polls the backend and routes well picks until ctx is cancelled.
func (w *Workspace) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	r := w.cfg.Refresh
	pollers := []refresh.Poller{
		{Name: "samples", Interval: r.SamplesInterval.Std(), Func: w.store.Refresh},
		{Name: "status", Interval: r.StatusInterval.Std(), Func: w.overlay.Refresh},
		{Name: "methods", Interval: r.MethodsInterval.Std(), Func: w.store.RefreshMethodDefs},
	}
	for _, p := range pollers {
		p.MaxBackoff = r.MaxBackoff.Std()
		p.Logger = w.logger
		g.Go(func() error { return p.Run(ctx) })
	}
	g.Go(func() error { return w.picking.Run(ctx) })

	observability.Emit(ctx, w.observer, observability.Event{
		Type:   EventStarted,
		Level:  observability.LevelInfo,
		Source: "workspace",
		Data:   map[string]any{"pollers": len(pollers)},
	})

	err := g.Wait()
	observability.Emit(context.WithoutCancel(ctx), w.observer, observability.Event{
		Type:   EventStopped,
		Level:  observability.LevelInfo,
		Source: "workspace",
	})
	return err
}

// Close waits for in-flight submissions and closes the bus.
func (w *Workspace) Close(ctx context.Context) error {
	err := w.editor.Drain(ctx)
	w.bus.Close()
	if err != nil {
		return fmt.Errorf("drain submissions: %w", err)
	}
	return nil
}
