// Package picking binds well locations chosen on the deck view into the
// Source or Target field of a method.
//
// A Controller is Idle until a field is armed. The next well_picked event is
// written into the armed field through the editor and the controller returns
// to Idle. Arming while a field is already armed replaces the target. Picks
// that arrive while Idle, or whose field has disappeared from the document
// since arming, are discarded with a warning event.
package picking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/looplab/fsm"

	"github.com/lh-manager/workbench/bus"
	"github.com/lh-manager/workbench/core/labware"
	"github.com/lh-manager/workbench/editor"
	"github.com/lh-manager/workbench/observability"
	"github.com/lh-manager/workbench/store"
)

// State of the controller.
type State string

const (
	StateIdle     State = "idle"
	StateAwaiting State = "awaiting"
)

const (
	eventArm    = "arm"
	eventDisarm = "disarm"
	eventPick   = "pick"
)

const (
	EventArmed     observability.EventType = "picking.armed"
	EventDisarmed  observability.EventType = "picking.disarmed"
	EventApplied   observability.EventType = "picking.applied"
	EventDiscarded observability.EventType = "picking.discarded"
)

// SubscriberName identifies the controller on the well_picked topic.
const SubscriberName = "picking"

// Target is the method field awaiting a pick.
type Target struct {
	SampleID    string
	Stage       labware.StageName
	MethodIndex int
	Field       string
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s/%d/%s", t.SampleID, t.Stage, t.MethodIndex, t.Field)
}

// Controller routes picks to the armed field.
type Controller struct {
	store    *store.Store
	editor   *editor.Editor
	topic    *bus.Topic[labware.WellLocation]
	observer observability.Observer
	logger   *slog.Logger

	mu         sync.Mutex
	machine    *fsm.FSM
	target     Target
	lastSource *labware.WellLocation
	lastTarget *labware.WellLocation
}

// Option configures a Controller.
type Option func(*Controller)

func WithObserver(o observability.Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// New creates an idle controller. Picks are read from topic by Run, and
// may also be fed directly with HandlePick.
func New(s *store.Store, ed *editor.Editor, topic *bus.Topic[labware.WellLocation], opts ...Option) *Controller {
	c := &Controller{
		store:    s,
		editor:   ed,
		topic:    topic,
		observer: observability.NoOpObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.machine = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: eventArm, Src: []string{string(StateIdle), string(StateAwaiting)}, Dst: string(StateAwaiting)},
			{Name: eventDisarm, Src: []string{string(StateIdle), string(StateAwaiting)}, Dst: string(StateIdle)},
			{Name: eventPick, Src: []string{string(StateAwaiting)}, Dst: string(StateIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.logger.Debug("picking state changed", "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)
	return c
}

// State reports whether a field is armed.
func (c *Controller) State() State {
	return State(c.machine.Current())
}

// Target returns the armed field, if any.
func (c *Controller) Target() (Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() != StateAwaiting {
		return Target{}, false
	}
	return c.target, true
}

// Arm makes t the field awaiting the next pick, replacing any previous one.
func (c *Controller) Arm(ctx context.Context, t Target) error {
	if t.Field != labware.FieldSource && t.Field != labware.FieldTarget {
		return fmt.Errorf("%w: %s is not a well field", ErrInvalidTarget, t.Field)
	}
	if t.SampleID == "" || t.MethodIndex < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, t)
	}
	if _, err := labware.ParseStage(string(t.Stage)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fire(ctx, eventArm); err != nil {
		return err
	}
	c.target = t

	sel := c.editor.Selection()
	sel.SelectSample(t.SampleID)
	sel.SelectMethod(t.Stage, t.MethodIndex)
	sel.SelectWellField(t.Field)

	observability.Emit(ctx, c.observer, observability.Event{
		Type:     EventArmed,
		Level:    observability.LevelVerbose,
		Source:   "picking",
		SampleID: t.SampleID,
		Data:     map[string]any{"target": t.String()},
	})
	return nil
}

// Disarm returns to Idle without applying anything.
func (c *Controller) Disarm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == StateIdle {
		return nil
	}
	if err := c.fire(ctx, eventDisarm); err != nil {
		return err
	}
	c.editor.Selection().SelectWellField("")

	observability.Emit(ctx, c.observer, observability.Event{
		Type:     EventDisarmed,
		Level:    observability.LevelVerbose,
		Source:   "picking",
		SampleID: c.target.SampleID,
	})
	c.target = Target{}
	return nil
}

// HandlePick writes loc into the armed field and returns to Idle. The
// returned submission completes when the backend acknowledges the write.
func (c *Controller) HandlePick(ctx context.Context, loc labware.WellLocation) (*editor.Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != StateAwaiting {
		return nil, c.discard(ctx, "", loc, ErrNoActiveField)
	}

	t := c.target
	c.target = Target{}
	if err := c.fire(ctx, eventPick); err != nil {
		return nil, err
	}
	c.editor.Selection().SelectWellField("")

	if !c.fieldPresent(t) {
		return nil, c.discard(ctx, t.SampleID, loc, fmt.Errorf("%w: %s", ErrFieldMissing, t))
	}

	sub, err := c.editor.SetLocation(ctx, t.SampleID, t.Stage, t.MethodIndex, t.Field, loc)
	if err != nil {
		return nil, c.discard(ctx, t.SampleID, loc, err)
	}

	picked := loc
	switch t.Field {
	case labware.FieldSource:
		c.lastSource = &picked
	case labware.FieldTarget:
		c.lastTarget = &picked
	}

	observability.Emit(ctx, c.observer, observability.Event{
		Type:     EventApplied,
		Level:    observability.LevelInfo,
		Source:   "picking",
		SampleID: t.SampleID,
		Data:     map[string]any{"target": t.String(), "location": loc.String()},
	})
	return sub, nil
}

// LastSource is the most recent location written into a Source field.
func (c *Controller) LastSource() (labware.WellLocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSource == nil {
		return labware.WellLocation{}, false
	}
	return *c.lastSource, true
}

// LastTarget is the most recent location written into a Target field.
func (c *Controller) LastTarget() (labware.WellLocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastTarget == nil {
		return labware.WellLocation{}, false
	}
	return *c.lastTarget, true
}

// Run consumes well_picked events until ctx is cancelled or the topic is
// closed. Rejected picks are reported through the observer and do not stop
// the loop.
func (c *Controller) Run(ctx context.Context) error {
	if c.topic == nil {
		return fmt.Errorf("picking: no well_picked topic")
	}
	sub := c.topic.Subscribe(SubscriberName)
	defer func() { _ = c.topic.Unsubscribe(sub.ID) }()

	for {
		env, err := sub.Receive(ctx)
		if err != nil {
			if errors.Is(err, bus.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		_, _ = c.HandlePick(ctx, env.Data)
	}
}

// fire drives the state machine. Arming while already armed is a
// self-transition, which looplab/fsm reports as NoTransitionError.
func (c *Controller) fire(ctx context.Context, event string) error {
	err := c.machine.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return fmt.Errorf("picking %s: %w", event, err)
	}
	return nil
}

func (c *Controller) fieldPresent(t Target) bool {
	sample, ok := c.store.Find(t.SampleID)
	if !ok {
		return false
	}
	ml, err := sample.Stage(t.Stage)
	if err != nil || t.MethodIndex >= len(ml.Methods) {
		return false
	}
	return ml.Methods[t.MethodIndex].HasField(t.Field)
}

func (c *Controller) discard(ctx context.Context, sampleID string, loc labware.WellLocation, err error) error {
	observability.Emit(ctx, c.observer, observability.Event{
		Type:     EventDiscarded,
		Level:    observability.LevelWarning,
		Source:   "picking",
		SampleID: sampleID,
		Data:     map[string]any{"location": loc.String(), "error": err.Error()},
	})
	return err
}
