package punch

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fieldops.dev/punchclock/log"
	"fieldops.dev/punchclock/punch/models"
	"fieldops.dev/punchclock/punch/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcquirer struct {
	mu        sync.Mutex
	err       error
	evidences []*models.Evidence
	dirs      []models.Direction
}

func (f *fakeAcquirer) Acquire(ctx context.Context, dir models.Direction) (*models.Evidence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dirs = append(f.dirs, dir)
	if f.err != nil {
		return nil, f.err
	}
	ev := &models.Evidence{
		Photo:      &models.Photo{Name: "selfie.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, byte(len(f.evidences))}},
		Location:   models.Fix{Latitude: 18.1, Longitude: -77.2},
		CapturedAt: time.Now(),
	}
	f.evidences = append(f.evidences, ev)
	return ev, nil
}

func (f *fakeAcquirer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dirs)
}

type fakeSubmitter struct {
	mu sync.Mutex
	// respond decides the result of each call; nil means success
	respond func(dir models.Direction) (*models.Outcome, error)
	block   chan struct{}
	started chan struct{}
	dirs    []models.Direction
	seen    []*models.Evidence
}

func (f *fakeSubmitter) Submit(ctx context.Context, dir models.Direction, ev *models.Evidence) (*models.Outcome, error) {
	f.mu.Lock()
	f.dirs = append(f.dirs, dir)
	f.seen = append(f.seen, ev)
	respond, block, started := f.respond, f.block, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	if respond != nil {
		return respond(dir)
	}
	return succeed(dir)
}

func (f *fakeSubmitter) directions() []models.Direction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Direction(nil), f.dirs...)
}

func succeed(dir models.Direction) (*models.Outcome, error) {
	if dir == models.DirectionIn {
		return &models.Outcome{
			Direction: dir,
			Record: &models.OpenPunch{
				InTime: "08:00:00",
				Extra:  map[string]json.RawMessage{"id": json.RawMessage(`7`)},
			},
		}, nil
	}
	return &models.Outcome{Direction: dir}, nil
}

type failingStore struct {
	state.Store
	loadErr, saveErr, clearErr error
}

func (f *failingStore) Load(ctx context.Context) (*models.OpenPunch, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.Store.Load(ctx)
}

func (f *failingStore) Save(ctx context.Context, r models.OpenPunch) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.Save(ctx, r)
}

func (f *failingStore) Clear(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	return f.Store.Clear(ctx)
}

type recorded struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (r *recorded) Record(ctx context.Context, a Attempt) {
	r.mu.Lock()
	r.attempts = append(r.attempts, a)
	r.mu.Unlock()
}

func newTestController(t *testing.T, acq Acquirer, sub Submitter, store state.Store, opts ...Opt) *Controller {
	t.Helper()
	opts = append([]Opt{WithLogger(log.Discard())}, opts...)
	c := New(context.Background(), acq, sub, store, opts...)
	t.Cleanup(c.Close)
	return c
}

func sqliteStore(t *testing.T) state.Store {
	t.Helper()
	s, err := state.NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func stores() map[string]func(t *testing.T) state.Store {
	return map[string]func(t *testing.T) state.Store{
		"memory": func(t *testing.T) state.Store { return state.NewMemoryStore() },
		"sqlite": sqliteStore,
	}
}

func TestDirectionsAlternate(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			acq := &fakeAcquirer{}
			sub := &fakeSubmitter{}
			c := newTestController(t, acq, sub, store)

			for i := 0; i < 6; i++ {
				require.NoError(t, c.TogglePunch(ctx))

				rec, err := store.Load(ctx)
				require.NoError(t, err)
				snap := c.Snapshot()
				if i%2 == 0 {
					assert.Equal(t, PunchedIn, snap.State)
					require.NotNil(t, rec, "record exists after a punch-in")
					assert.Equal(t, "08:00:00", rec.InTime)
					assert.JSONEq(t, `7`, string(rec.Extra["id"]))
				} else {
					assert.Equal(t, PunchedOut, snap.State)
					assert.Nil(t, rec, "record is gone after a punch-out")
				}
			}

			assert.Equal(t, []models.Direction{
				models.DirectionIn, models.DirectionOut,
				models.DirectionIn, models.DirectionOut,
				models.DirectionIn, models.DirectionOut,
			}, sub.directions())
		})
	}
}

func TestRestoreFromStore(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			require.NoError(t, store.Save(ctx, models.OpenPunch{InTime: "07:58:00"}))

			sub := &fakeSubmitter{}
			c := newTestController(t, &fakeAcquirer{}, sub, store)

			snap := c.Snapshot()
			assert.Equal(t, PunchedIn, snap.State)
			assert.Equal(t, models.DirectionOut, snap.Next)
			require.NotNil(t, snap.Record)
			assert.Equal(t, "07:58:00", snap.Record.InTime)

			require.NoError(t, c.TogglePunch(ctx))
			assert.Equal(t, []models.Direction{models.DirectionOut}, sub.directions())
		})
	}
}

func TestSnapshotDoesNotShareRecord(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	require.NoError(t, store.Save(ctx, models.OpenPunch{
		InTime: "07:58:00",
		Extra:  map[string]json.RawMessage{"site": json.RawMessage(`"KGN-04"`)},
	}))
	c := newTestController(t, &fakeAcquirer{}, &fakeSubmitter{}, store)

	snap := c.Snapshot()
	require.NotNil(t, snap.Record)
	snap.Record.Extra["site"] = json.RawMessage(`"MBJ-01"`)
	snap.Record.Extra["added"] = json.RawMessage(`true`)
	snap.Record.InTime = "00:00:00"

	again := c.Snapshot().Record
	assert.Equal(t, "07:58:00", again.InTime)
	assert.JSONEq(t, `"KGN-04"`, string(again.Extra["site"]))
	assert.NotContains(t, again.Extra, "added")
}

func TestRestoreEmpty(t *testing.T) {
	sub := &fakeSubmitter{}
	c := newTestController(t, &fakeAcquirer{}, sub, state.NewMemoryStore())

	snap := c.Snapshot()
	assert.Equal(t, PunchedOut, snap.State)
	assert.Equal(t, models.DirectionIn, snap.Next)
	assert.Nil(t, snap.Record)
	assert.Empty(t, snap.LastError)

	require.NoError(t, c.TogglePunch(context.Background()))
	assert.Equal(t, []models.Direction{models.DirectionIn}, sub.directions())
}

func TestRestoreLoadFailure(t *testing.T) {
	store := &failingStore{Store: state.NewMemoryStore(), loadErr: errors.New("disk on fire")}
	c := newTestController(t, &fakeAcquirer{}, &fakeSubmitter{}, store)

	snap := c.Snapshot()
	assert.Equal(t, PunchedOut, snap.State)
	assert.Equal(t, "Failed to retrieve punch status.", snap.LastError)
}

func TestLocationDenied(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	acq := &fakeAcquirer{err: &models.PermissionDeniedError{Resource: models.ResourceLocation}}
	sub := &fakeSubmitter{}
	c := newTestController(t, acq, sub, store)

	err := c.TogglePunch(ctx)
	var denied *models.PermissionDeniedError
	require.ErrorAs(t, err, &denied)

	snap := c.Snapshot()
	assert.Equal(t, PunchedOut, snap.State)
	assert.False(t, snap.Busy)
	assert.Contains(t, snap.LastError, "Location")
	assert.Empty(t, sub.directions(), "no network call is made")

	rec, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPunchInSuccess(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	acq := &fakeAcquirer{}
	c := newTestController(t, acq, &fakeSubmitter{}, store, WithNoticeTTL(time.Hour))

	require.NoError(t, c.TogglePunch(ctx))

	snap := c.Snapshot()
	assert.Equal(t, PunchedIn, snap.State)
	assert.Equal(t, "Successfully punched in!", snap.Notice)
	assert.Empty(t, snap.LastError)
	assert.NotEmpty(t, snap.Attempt)

	rec, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "08:00:00", rec.InTime)

	require.Len(t, acq.evidences, 1)
	assert.True(t, acq.evidences[0].Photo.Released(), "evidence is released after the attempt")
}

func TestRejectedPunchOut(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	original := models.OpenPunch{InTime: "08:00:00", Extra: map[string]json.RawMessage{"site": json.RawMessage(`"KGN-04"`)}}
	require.NoError(t, store.Save(ctx, original))

	acq := &fakeAcquirer{}
	sub := &fakeSubmitter{respond: func(dir models.Direction) (*models.Outcome, error) {
		return nil, &models.SubmissionError{Direction: dir, Message: "Duty already closed"}
	}}
	c := newTestController(t, acq, sub, store)

	err := c.TogglePunch(ctx)
	require.Error(t, err)

	snap := c.Snapshot()
	assert.Equal(t, PunchedIn, snap.State)
	assert.Equal(t, "Duty already closed", snap.LastError)
	assert.Empty(t, snap.Notice)

	rec, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, original.InTime, rec.InTime)
	assert.JSONEq(t, `"KGN-04"`, string(rec.Extra["site"]))

	require.Len(t, acq.evidences, 1)
	assert.True(t, acq.evidences[0].Photo.Released(), "evidence is released after a failure too")
}

func TestRetryUsesFreshEvidence(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	acq := &fakeAcquirer{}

	fail := true
	sub := &fakeSubmitter{}
	sub.respond = func(dir models.Direction) (*models.Outcome, error) {
		if fail {
			return nil, &models.TransportError{Direction: dir, Err: errors.New("connection reset")}
		}
		return succeed(dir)
	}
	c := newTestController(t, acq, sub, store)

	err := c.TogglePunch(ctx)
	require.Error(t, err)
	assert.Equal(t, "Failed to punch in.", c.Snapshot().LastError)
	rec, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec, "a failed punch-in never creates a record")

	fail = false
	require.NoError(t, c.TogglePunch(ctx))
	assert.Empty(t, c.Snapshot().LastError, "a new attempt clears the last error")

	assert.Equal(t, 2, acq.calls(), "evidence is acquired again for the retry")
	require.Len(t, sub.seen, 2)
	assert.NotSame(t, sub.seen[0], sub.seen[1])
	assert.Equal(t, []models.Direction{models.DirectionIn, models.DirectionIn}, sub.directions())
}

func TestToggleWhileBusy(t *testing.T) {
	ctx := context.Background()
	acq := &fakeAcquirer{}
	sub := &fakeSubmitter{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c := newTestController(t, acq, sub, state.NewMemoryStore())

	done := make(chan error, 1)
	go func() {
		done <- c.TogglePunch(ctx)
	}()

	<-sub.started
	assert.True(t, c.Snapshot().Busy)

	before := c.Snapshot()
	assert.ErrorIs(t, c.TogglePunch(ctx), ErrBusy)
	assert.Equal(t, before, c.Snapshot(), "a rejected toggle changes nothing")
	assert.Equal(t, 1, acq.calls())

	close(sub.block)
	require.NoError(t, <-done)

	snap := c.Snapshot()
	assert.False(t, snap.Busy)
	assert.Equal(t, PunchedIn, snap.State)
	assert.Len(t, sub.directions(), 1)
}

func TestNoticeClears(t *testing.T) {
	c := newTestController(t, &fakeAcquirer{}, &fakeSubmitter{}, state.NewMemoryStore(), WithNoticeTTL(20*time.Millisecond))

	ch := c.Subscribe()
	defer c.Unsubscribe(ch)

	require.NoError(t, c.TogglePunch(context.Background()))
	assert.Equal(t, "Successfully punched in!", c.Snapshot().Notice)

	assert.Eventually(t, func() bool {
		return c.Snapshot().Notice == ""
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, PunchedIn, c.Snapshot().State)
}

func TestNoticeReplacedBeforeExpiry(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, &fakeAcquirer{}, &fakeSubmitter{}, state.NewMemoryStore(), WithNoticeTTL(100*time.Millisecond))

	require.NoError(t, c.TogglePunch(ctx))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, c.TogglePunch(ctx))

	// past the first notice's deadline; the newer notice must survive it
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, "Successfully punched out!", c.Snapshot().Notice)

	assert.Eventually(t, func() bool {
		return c.Snapshot().Notice == ""
	}, time.Second, 5*time.Millisecond)
}

func TestSaveFailureAfterAcceptedPunch(t *testing.T) {
	store := &failingStore{Store: state.NewMemoryStore(), saveErr: errors.New("read-only filesystem")}
	c := newTestController(t, &fakeAcquirer{}, &fakeSubmitter{}, store)

	require.NoError(t, c.TogglePunch(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, PunchedIn, snap.State)
	assert.Equal(t, saveFailedMessage, snap.LastError)
	assert.Equal(t, "Successfully punched in!", snap.Notice)
}

func TestPersistsAfterCallerCancels(t *testing.T) {
	store := state.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	sub := &fakeSubmitter{respond: func(dir models.Direction) (*models.Outcome, error) {
		// the caller gives up once the backend has answered
		cancel()
		return succeed(dir)
	}}
	c := newTestController(t, &fakeAcquirer{}, sub, store)

	require.NoError(t, c.TogglePunch(ctx))
	rec, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestSubmitterWithoutRecord(t *testing.T) {
	store := state.NewMemoryStore()
	sub := &fakeSubmitter{respond: func(dir models.Direction) (*models.Outcome, error) {
		return &models.Outcome{Direction: dir}, nil
	}}
	c := newTestController(t, &fakeAcquirer{}, sub, store)

	err := c.TogglePunch(context.Background())
	var te *models.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, PunchedOut, c.Snapshot().State)
}

func TestSubscribersNotified(t *testing.T) {
	c := newTestController(t, &fakeAcquirer{}, &fakeSubmitter{}, state.NewMemoryStore())

	ch := c.Subscribe()
	require.NoError(t, c.TogglePunch(context.Background()))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}

	c.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestRecorders(t *testing.T) {
	ctx := context.Background()
	rec := &recorded{}
	acq := &fakeAcquirer{}
	c := newTestController(t, acq, &fakeSubmitter{}, state.NewMemoryStore(), WithRecorder(rec))

	require.NoError(t, c.TogglePunch(ctx))
	acq.err = &models.CaptureCancelledError{Detail: "user backed out"}
	require.Error(t, c.TogglePunch(ctx))

	require.Len(t, rec.attempts, 2)
	assert.True(t, rec.attempts[0].Succeeded())
	assert.Equal(t, models.DirectionIn, rec.attempts[0].Direction)
	assert.NotEmpty(t, rec.attempts[0].ID)
	assert.False(t, rec.attempts[1].Succeeded())
	assert.Equal(t, models.DirectionOut, rec.attempts[1].Direction)
	assert.Equal(t, "capture_cancelled", rec.attempts[1].FailureKind())
	assert.NotEqual(t, rec.attempts[0].ID, rec.attempts[1].ID)
	assert.Equal(t, "user backed out", c.Snapshot().LastError)
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"none", nil, ""},
		{"camera denied", &models.PermissionDeniedError{Resource: models.ResourceCamera}, "permission_denied:camera"},
		{"capture", &models.CaptureCancelledError{}, "capture_cancelled"},
		{"location", &models.LocationUnavailableError{}, "location_unavailable"},
		{"rejected", &models.SubmissionError{Message: "no"}, "rejected"},
		{"transport", &models.TransportError{}, "transport"},
		{"context", context.Canceled, "cancelled"},
		{"other", errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Attempt{Err: tt.err}.FailureKind())
		})
	}
}
