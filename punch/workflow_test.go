package punch

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"fieldops.dev/punchclock/log"
	"fieldops.dev/punchclock/punch/broker"
	"fieldops.dev/punchclock/punch/hrclient"
	"fieldops.dev/punchclock/punch/models"
	"fieldops.dev/punchclock/punch/state"
	"fieldops.dev/punchclock/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSelfie leaves a fresh photo where the file camera expects one.
func writeSelfie(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

type backend struct {
	srv   *httptest.Server
	calls atomic.Int32
	paths chan string
	reply func(w http.ResponseWriter, r *http.Request)
}

func newBackend(t *testing.T) *backend {
	b := &backend{paths: make(chan string, 16)}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		b.paths <- r.URL.Path
		b.reply(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func newWorkflow(t *testing.T, perms broker.Permissions, b *backend, store state.Store) (*Controller, string) {
	t.Helper()
	photo := filepath.Join(t.TempDir(), "selfie.png")

	brk := broker.New(perms,
		&broker.FileCamera{Path: photo, Consume: true},
		&broker.StaticLocator{Latitude: 18.109581, Longitude: -77.297508},
		broker.WithLogger(log.Discard()),
	)

	client, err := hrclient.NewClient(b.srv.URL+"/api", session.StaticToken("1|tok"), hrclient.WithLogger(log.Discard()))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	c := New(context.Background(), brk, client, store, WithLogger(log.Discard()), WithNoticeTTL(time.Hour))
	t.Cleanup(c.Close)
	return c, photo
}

func TestWorkflowLocationDenied(t *testing.T) {
	b := newBackend(t)
	b.reply = func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}
	store := state.NewMemoryStore()
	c, photo := newWorkflow(t, broker.StaticPermissions{models.ResourceCamera: true}, b, store)
	writeSelfie(t, photo)

	err := c.TogglePunch(context.Background())
	require.Error(t, err)

	snap := c.Snapshot()
	assert.Equal(t, PunchedOut, snap.State)
	assert.Contains(t, snap.LastError, "Location")
	assert.Zero(t, b.calls.Load())
}

func TestWorkflowPunchInThenRejectedOut(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	store, err := state.NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	b.reply = func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"in_time":"08:00:00","attendance_id":91}}`))
	}
	c, photo := newWorkflow(t, broker.GrantAll(), b, store)

	writeSelfie(t, photo)
	require.NoError(t, c.TogglePunch(ctx))
	assert.Equal(t, "/api/punch/in", <-b.paths)

	snap := c.Snapshot()
	assert.Equal(t, PunchedIn, snap.State)
	assert.Equal(t, "Successfully punched in!", snap.Notice)
	rec, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "08:00:00", rec.InTime)

	_, err = os.Stat(photo)
	assert.ErrorIs(t, err, os.ErrNotExist, "the photo is consumed by the attempt")

	b.reply = func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"Duty already closed"}`))
	}
	writeSelfie(t, photo)
	require.Error(t, c.TogglePunch(ctx))
	assert.Equal(t, "/api/punch/out", <-b.paths)

	snap = c.Snapshot()
	assert.Equal(t, PunchedIn, snap.State)
	assert.Equal(t, "Duty already closed", snap.LastError)
	rec, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.JSONEq(t, `91`, string(rec.Extra["attendance_id"]))

	// without a new photo the retry stops at the camera
	require.Error(t, c.TogglePunch(ctx))
	assert.Equal(t, "no photo was taken", c.Snapshot().LastError)
	assert.Equal(t, int32(2), b.calls.Load())
}
