// Package punch drives the punch-in/punch-out cycle: it gathers
// evidence, submits it and keeps the local open-punch record in step
// with what the HR backend accepted.
package punch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fieldops.dev/punchclock/log"
	"fieldops.dev/punchclock/notifier"
	"fieldops.dev/punchclock/punch/models"
	"fieldops.dev/punchclock/punch/state"
	"github.com/google/uuid"
)

type State string

const (
	PunchedOut State = "PUNCHED_OUT"
	PunchedIn  State = "PUNCHED_IN"
)

const (
	DefaultNoticeTTL = 5 * time.Second

	loadFailedMessage  = "Failed to retrieve punch status."
	saveFailedMessage  = "Punched in, but the punch status could not be saved on this device."
	clearFailedMessage = "Punched out, but the punch status could not be cleared on this device."
)

var ErrBusy = errors.New("a punch is already in progress")

// Acquirer gathers the evidence for one attempt.
type Acquirer interface {
	Acquire(ctx context.Context, dir models.Direction) (*models.Evidence, error)
}

// Submitter sends one punch to the backend.
type Submitter interface {
	Submit(ctx context.Context, dir models.Direction, ev *models.Evidence) (*models.Outcome, error)
}

// Snapshot is a point-in-time copy of the controller's observable
// state.
type Snapshot struct {
	State     State             `json:"state" yaml:"state"`
	Busy      bool              `json:"busy" yaml:"busy"`
	Next      models.Direction  `json:"next" yaml:"next"`
	Record    *models.OpenPunch `json:"record,omitempty" yaml:"record,omitempty"`
	LastError string            `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	Notice    string            `json:"notice,omitempty" yaml:"notice,omitempty"`
	Attempt   string            `json:"attempt,omitempty" yaml:"attempt,omitempty"`
}

type Controller struct {
	acquirer  Acquirer
	submitter Submitter
	store     state.Store
	recorders []Recorder
	n         *notifier.Notifier
	l         *slog.Logger
	noticeTTL time.Duration
	now       func() time.Time

	mu        sync.Mutex
	state     State
	record    *models.OpenPunch
	busy      bool
	lastError string
	notice    string
	attempt   string
	// bumped whenever the notice changes so stale timers leave it alone
	noticeGen   uint64
	noticeTimer *time.Timer
}

type Opt func(*Controller)

func WithLogger(l *slog.Logger) Opt {
	return func(c *Controller) {
		c.l = l
	}
}

func WithNoticeTTL(d time.Duration) Opt {
	return func(c *Controller) {
		c.noticeTTL = d
	}
}

func WithRecorder(r ...Recorder) Opt {
	return func(c *Controller) {
		c.recorders = append(c.recorders, r...)
	}
}

func WithClock(now func() time.Time) Opt {
	return func(c *Controller) {
		c.now = now
	}
}

// New builds a controller whose state is reconstructed from store. A
// store that cannot be read leaves the controller punched out with the
// failure shown to the worker.
func New(ctx context.Context, acquirer Acquirer, submitter Submitter, store state.Store, opts ...Opt) *Controller {
	c := &Controller{
		acquirer:  acquirer,
		submitter: submitter,
		store:     store,
		n:         notifier.New(),
		l:         log.New("punch"),
		noticeTTL: DefaultNoticeTTL,
		now:       time.Now,
		state:     PunchedOut,
	}
	for _, o := range opts {
		o(c)
	}

	record, err := store.Load(ctx)
	switch {
	case err != nil:
		c.l.Error("failed to load punch state", "err", err)
		c.lastError = loadFailedMessage
	case record != nil:
		c.state = PunchedIn
		c.record = record
		c.l.Info("restored open punch", "in_time", record.InTime)
	}

	return c
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{
		State:     c.state,
		Busy:      c.busy,
		Next:      nextDirection(c.state),
		LastError: c.lastError,
		Notice:    c.notice,
		Attempt:   c.attempt,
	}
	if c.record != nil {
		s.Record = c.record.Clone()
	}
	return s
}

// Subscribe returns a channel that receives a signal whenever the
// snapshot may have changed.
func (c *Controller) Subscribe() chan struct{} {
	return c.n.Subscribe()
}

func (c *Controller) Unsubscribe(ch chan struct{}) {
	c.n.Unsubscribe(ch)
}

// Close stops the pending notice timer.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
	}
}

func nextDirection(s State) models.Direction {
	if s == PunchedIn {
		return models.DirectionOut
	}
	return models.DirectionIn
}

// TogglePunch runs one punch attempt in the direction implied by the
// current state. Only one attempt runs at a time; a call made while
// another is in flight returns ErrBusy and changes nothing. Failures
// leave the state and the stored record as they were and are returned
// after being recorded as the last error.
func (c *Controller) TogglePunch(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.lastError = ""
	c.setNotice("")
	dir := nextDirection(c.state)
	id := uuid.NewString()
	c.attempt = id
	c.mu.Unlock()
	c.n.NotifyAll()

	l := c.l.With("attempt", id, "direction", dir)
	ctx = log.IntoContext(ctx, l)

	a := Attempt{ID: id, Direction: dir, Started: c.now()}
	outcome, err := c.attemptPunch(ctx, dir)
	a.Duration = c.now().Sub(a.Started)
	a.Outcome = outcome
	a.Err = err

	if err != nil {
		l.Warn("punch failed", "err", err)
		c.finish(func() {
			c.lastError = models.UserMessage(err)
		})
		c.report(ctx, a)
		return err
	}

	// the backend has accepted the punch, so the record is written even
	// if the caller gives up now
	persistCtx := context.WithoutCancel(ctx)
	var storeErr error
	switch dir {
	case models.DirectionIn:
		storeErr = c.store.Save(persistCtx, *outcome.Record)
	case models.DirectionOut:
		storeErr = c.store.Clear(persistCtx)
	}
	if storeErr != nil {
		l.Error("failed to persist punch state", "err", storeErr)
	}
	l.Info("punch accepted")

	c.finish(func() {
		if dir == models.DirectionIn {
			rec := *outcome.Record
			c.state = PunchedIn
			c.record = &rec
		} else {
			c.state = PunchedOut
			c.record = nil
		}
		c.setNotice(fmt.Sprintf("Successfully punched %s!", dir))
		if storeErr != nil {
			if dir == models.DirectionIn {
				c.lastError = saveFailedMessage
			} else {
				c.lastError = clearFailedMessage
			}
		}
	})
	c.report(ctx, a)
	return nil
}

// attemptPunch gathers evidence and submits it. The evidence is
// released before returning, whatever the outcome.
func (c *Controller) attemptPunch(ctx context.Context, dir models.Direction) (*models.Outcome, error) {
	ev, err := c.acquirer.Acquire(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer ev.Release()

	outcome, err := c.submitter.Submit(ctx, dir, ev)
	if err != nil {
		return nil, err
	}
	if outcome == nil || (dir == models.DirectionIn && outcome.Record == nil) {
		return nil, &models.TransportError{Direction: dir, Err: errors.New("submission returned no punch record")}
	}
	return outcome, nil
}

// finish applies the attempt's result and leaves the busy state.
func (c *Controller) finish(apply func()) {
	c.mu.Lock()
	apply()
	c.busy = false
	c.mu.Unlock()
	c.n.NotifyAll()
}

// setNotice must be called with mu held.
func (c *Controller) setNotice(msg string) {
	c.noticeGen++
	c.notice = msg
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
		c.noticeTimer = nil
	}
	if msg == "" || c.noticeTTL <= 0 {
		return
	}

	gen := c.noticeGen
	c.noticeTimer = time.AfterFunc(c.noticeTTL, func() {
		c.mu.Lock()
		if c.noticeGen != gen {
			c.mu.Unlock()
			return
		}
		c.notice = ""
		c.noticeTimer = nil
		c.mu.Unlock()
		c.n.NotifyAll()
	})
}

func (c *Controller) report(ctx context.Context, a Attempt) {
	for _, r := range c.recorders {
		r.Record(ctx, a)
	}
}
