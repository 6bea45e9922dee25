package timer

import (
	"log/slog"
	"time"
)

// Hooks are the side effects the Engine fires after transitions. All of
// them are optional and best-effort: a nil hook is skipped and no hook
// may block the engine for long (publishing and persistence are
// fire-and-forget by contract).
type Hooks struct {
	// Publish broadcasts a local transition to sibling instances.
	// Remote-applied events are never re-published.
	Publish func(Event)

	// Persist snapshots the state after a transition while the timer is
	// active (Running or Paused).
	Persist func(State)

	// Discard deletes persisted snapshots after a reset, a completion, or
	// any transition back to Stopped.
	Discard func()

	// OnComplete fires once per completed session, after snapshots have
	// been discarded.
	OnComplete func(Completion)
}

// Engine owns a Machine and is the single writer of its state. Local
// commands, inbound sync events, and the periodic recompute all funnel
// through one goroutine, so no locking is needed around the state
// itself.
//
// The recompute ticker is a scoped resource: acquired when the machine
// enters Running, released on any exit from Running.
type Engine struct {
	machine *Machine
	hooks   Hooks
	logger  *slog.Logger

	tickEvery time.Duration
	tick      *time.Ticker

	cmds    chan func()
	done    chan struct{}
	stopped chan struct{}

	subs chan chan State
	list []chan State
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithTickInterval overrides the 1-second recompute cadence. Tests use
// short intervals to exercise completion without waiting.
func WithTickInterval(d time.Duration) EngineOption {
	return func(e *Engine) { e.tickEvery = d }
}

// NewEngine starts the owner goroutine for machine. Close must be
// called to release it.
func NewEngine(machine *Machine, hooks Hooks, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{
		machine:   machine,
		hooks:     hooks,
		logger:    logger,
		tickEvery: time.Second,
		cmds:      make(chan func()),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		subs:      make(chan chan State),
	}
	for _, o := range opts {
		o(e)
	}
	// A recovered snapshot may seed the machine already Running.
	e.syncTicker(machine.State().Status)
	go e.loop()
	return e
}

// Close stops the owner goroutine. Pending subscribers' channels are
// closed. Safe to call once.
func (e *Engine) Close() {
	close(e.done)
	<-e.stopped
}

// Subscribe returns a channel that receives a state copy after every
// transition and every periodic recompute. Delivery is best-effort:
// slow receivers miss intermediate updates rather than backing up the
// engine.
func (e *Engine) Subscribe() <-chan State {
	ch := make(chan State, 8)
	select {
	case e.subs <- ch:
	case <-e.done:
		close(ch)
	}
	return ch
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	var st State
	e.do(func() { st = e.machine.State() })
	return st
}

// Start begins a session from Stopped.
func (e *Engine) Start() {
	e.do(func() { e.localTransition(e.machine.Start()) })
}

// Pause freezes a running session.
func (e *Engine) Pause() {
	e.do(func() { e.localTransition(e.machine.Pause()) })
}

// Resume continues a paused session.
func (e *Engine) Resume() {
	e.do(func() { e.localTransition(e.machine.Resume()) })
}

// Reset returns the timer to Stopped with the full duration.
func (e *Engine) Reset() {
	e.do(func() { e.localTransition(e.machine.Reset()) })
}

// SwitchMode stops any active run and selects the requested mode.
func (e *Engine) SwitchMode(mode Mode) {
	e.do(func() { e.localTransition(e.machine.SwitchMode(mode)) })
}

// ApplyRemote reconciles an event received from the sync bus. Stale
// events are dropped by the machine's causality filter.
func (e *Engine) ApplyRemote(ev Event) {
	e.do(func() {
		if !e.machine.Apply(ev) {
			e.logger.Debug("dropped stale sync event",
				"type", ev.Type, "timestamp", ev.Timestamp)
			return
		}
		e.afterMutation()
		e.broadcast()
	})
}

// Refresh recomputes remaining time immediately, outside the periodic
// cadence. The TUI calls this when the terminal regains focus so the
// display jumps straight to the correct value.
func (e *Engine) Refresh() {
	e.do(e.recompute)
}

// do runs fn on the owner goroutine and waits for it to finish. After
// Close it becomes a no-op.
func (e *Engine) do(fn func()) {
	ran := make(chan struct{})
	select {
	case e.cmds <- func() { fn(); close(ran) }:
		<-ran
	case <-e.done:
	}
}

func (e *Engine) loop() {
	defer close(e.stopped)
	for {
		select {
		case fn := <-e.cmds:
			fn()
		case ch := <-e.subs:
			e.list = append(e.list, ch)
			e.send(ch, e.machine.State())
		case <-e.tickC():
			e.recompute()
		case <-e.done:
			e.releaseTicker()
			for _, ch := range e.list {
				close(ch)
			}
			return
		}
	}
}

// localTransition handles the outcome of a user-initiated machine call:
// publish the event, persist or discard snapshots, fan out the new state,
// and sync the ticker to the new status.
func (e *Engine) localTransition(ev Event, changed bool) {
	if !changed {
		return
	}
	if e.hooks.Publish != nil {
		e.hooks.Publish(ev)
	}
	e.afterMutation()
	e.broadcast()
}

// afterMutation persists or discards snapshots based on the resulting
// status and keeps the ticker scoped to Running.
func (e *Engine) afterMutation() {
	st := e.machine.State()
	switch st.Status {
	case StatusRunning, StatusPaused:
		if e.hooks.Persist != nil {
			e.hooks.Persist(st)
		}
	default:
		if e.hooks.Discard != nil {
			e.hooks.Discard()
		}
	}
	e.syncTicker(st.Status)
}

// recompute re-derives remaining time and handles completion.
func (e *Engine) recompute() {
	comp, completed := e.machine.Recompute()
	if completed {
		if e.hooks.Discard != nil {
			e.hooks.Discard()
		}
		if e.hooks.OnComplete != nil {
			e.hooks.OnComplete(comp)
		}
		if comp.AutoStarted {
			// The auto-started session is a fresh Running state; persist it
			// and let siblings converge on the same anchor.
			st := e.machine.State()
			if e.hooks.Publish != nil {
				e.hooks.Publish(Event{
					Type:      EventStart,
					Mode:      st.Mode,
					StartTime: st.Anchor.UnixMilli(),
					Timestamp: st.LastMutation.UnixMilli(),
				})
			}
			if e.hooks.Persist != nil {
				e.hooks.Persist(st)
			}
		}
		e.syncTicker(e.machine.State().Status)
	}
	e.broadcast()
}

func (e *Engine) broadcast() {
	st := e.machine.State()
	for _, ch := range e.list {
		e.send(ch, st)
	}
}

func (e *Engine) send(ch chan State, st State) {
	select {
	case ch <- st:
	default:
		// Drop if the receiver is slow; it will catch up on the next tick.
	}
}

// tickC returns the ticker channel, or nil (blocking forever in select)
// when the timer is not running.
func (e *Engine) tickC() <-chan time.Time {
	if e.tick == nil {
		return nil
	}
	return e.tick.C
}

func (e *Engine) syncTicker(status Status) {
	if status == StatusRunning {
		if e.tick == nil {
			e.tick = time.NewTicker(e.tickEvery)
		}
		return
	}
	e.releaseTicker()
}

func (e *Engine) releaseTicker() {
	if e.tick != nil {
		e.tick.Stop()
		e.tick = nil
	}
}
