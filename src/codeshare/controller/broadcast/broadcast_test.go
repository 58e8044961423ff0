package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tally "github.com/uber-go/tally"
	"go.uber.org/config"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/codeshare/codeshare/src/codeshare/entity"
	"github.com/codeshare/codeshare/src/codeshare/gateway/viewer/viewermock"
	"github.com/codeshare/codeshare/src/codeshare/internal/debounce"
	"github.com/codeshare/codeshare/src/codeshare/repository/documents"
	"github.com/codeshare/codeshare/src/codeshare/wire"
)

const _testQuiet = 60 * time.Millisecond

// frameRecorder captures every broadcast frame in order.
type frameRecorder struct {
	mu     sync.Mutex
	frames []string
}

func (r *frameRecorder) add(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, text)
}

func (r *frameRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}

func (r *frameRecorder) envelopes(t *testing.T) []wire.Envelope {
	t.Helper()
	frames := r.snapshot()
	envs := make([]wire.Envelope, len(frames))
	for i, f := range frames {
		env, err := wire.Decode([]byte(f))
		require.NoError(t, err)
		envs[i] = env
	}
	return envs
}

func (r *frameRecorder) waitFor(t *testing.T, want int) []wire.Envelope {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.snapshot()) >= want
	}, 10*_testQuiet, time.Millisecond)
	return r.envelopes(t)
}

func newTestController(t *testing.T, perDocument bool) (*controller, *frameRecorder) {
	t.Helper()
	ctrl := gomock.NewController(t)
	rec := &frameRecorder{}

	g := viewermock.NewMockGateway(ctrl)
	g.EXPECT().Broadcast(gomock.Any()).Do(rec.add).AnyTimes()

	c := &controller{
		documents:        documents.New(tally.NewTestScope("testing", make(map[string]string, 0))),
		gateway:          g,
		logger:           zap.NewNop().Sugar(),
		stats:            tally.NewTestScope("testing", make(map[string]string, 0)),
		maxFileSizeBytes: 2000,
		pending:          make(map[entity.DocumentID]pendingChange),
	}
	c.debouncer = debounce.New(_testQuiet, perDocument, c.flushChange)
	t.Cleanup(c.debouncer.Stop)

	return c, rec
}

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	g := viewermock.NewMockGateway(ctrl)
	g.EXPECT().OnReceiveMessage(gomock.Any())

	cfg, err := config.NewStaticProvider(map[string]interface{}{
		_configKeyEngine: map[string]interface{}{
			"quietPeriodMs":    300,
			"maxFileSizeBytes": 2000,
		},
	})
	require.NoError(t, err)

	lc := fxtest.NewLifecycle(t)
	c, err := New(Params{
		Documents: documents.New(tally.NewTestScope("testing", make(map[string]string, 0))),
		Gateway:   g,
		Logger:    zap.NewNop().Sugar(),
		Stats:     tally.NewTestScope("testing", make(map[string]string, 0)),
		Config:    cfg,
		Lifecycle: lc,
	})
	require.NoError(t, err)
	require.NotNil(t, c)

	lc.RequireStart().RequireStop()
}

func TestDidOpen(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(t, false)

	require.NoError(t, c.DidOpen(ctx, "a.txt", "foo", "plaintext"))

	envs := rec.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, wire.KindOpen, envs[0].Type)
	assert.Equal(t, entity.DocumentID("a.txt"), envs[0].Filename)
	assert.Equal(t, "foo", envs[0].Content)
	assert.Equal(t, "plaintext", envs[0].Language)

	assert.Equal(t, "foo", c.documents.Baseline(ctx, "a.txt"))
}

func TestDidChangeCoalescesBurst(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(t, false)
	require.NoError(t, c.DidOpen(ctx, "a.txt", "foo", "plaintext"))

	// Three rapid edits inside one quiet window.
	require.NoError(t, c.DidChange(ctx, "a.txt", "fooX", "plaintext"))
	require.NoError(t, c.DidChange(ctx, "a.txt", "fooXY", "plaintext"))
	require.NoError(t, c.DidChange(ctx, "a.txt", "foobar", "plaintext"))

	envs := rec.waitFor(t, 2)
	require.Len(t, envs, 2)

	patch := envs[1]
	assert.Equal(t, wire.KindPatch, patch.Type)
	assert.Equal(t, "foobar", patch.Content)
	require.Len(t, patch.Diffs, 2)
	assert.Equal(t, wire.Diff{Op: wire.DiffUnchanged, Text: "foo"}, patch.Diffs[0])
	assert.Equal(t, wire.Diff{Op: wire.DiffAdded, Text: "bar"}, patch.Diffs[1])

	// Baseline advances only after the patch was handed off.
	assert.Equal(t, "foobar", c.documents.Baseline(ctx, "a.txt"))

	// No further messages from this burst.
	time.Sleep(2 * _testQuiet)
	assert.Len(t, rec.snapshot(), 2)
}

func TestDidChangeSharedTimerAbsorption(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(t, false)

	require.NoError(t, c.DidChange(ctx, "a.txt", "contents of a", "plaintext"))
	time.Sleep(_testQuiet / 4)
	require.NoError(t, c.DidChange(ctx, "b.txt", "contents of b", "plaintext"))

	rec.waitFor(t, 1)
	time.Sleep(2 * _testQuiet)

	// Only the most recent document is patched; the edit to a.txt is
	// absorbed until its next save or resync.
	envs := rec.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, entity.DocumentID("b.txt"), envs[0].Filename)
	assert.Equal(t, "", c.documents.Baseline(ctx, "a.txt"))
}

func TestDidChangePerDocumentTimers(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(t, true)

	require.NoError(t, c.DidChange(ctx, "a.txt", "contents of a", "plaintext"))
	time.Sleep(_testQuiet / 4)
	require.NoError(t, c.DidChange(ctx, "b.txt", "contents of b", "plaintext"))

	envs := rec.waitFor(t, 2)
	filenames := []entity.DocumentID{envs[0].Filename, envs[1].Filename}
	assert.ElementsMatch(t, []entity.DocumentID{"a.txt", "b.txt"}, filenames)
}

func TestDidChangeUnseenDocumentDiffsFromEmpty(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(t, false)

	require.NoError(t, c.DidChange(ctx, "new.txt", "hello", "plaintext"))

	envs := rec.waitFor(t, 1)
	require.Len(t, envs, 1)
	require.Len(t, envs[0].Diffs, 1)
	assert.Equal(t, wire.Diff{Op: wire.DiffAdded, Text: "hello"}, envs[0].Diffs[0])
}

func TestDidChangeSelection(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(t, false)
	require.NoError(t, c.DidOpen(ctx, "a.txt", "foobar", "plaintext"))

	sel := entity.Selection{
		Start: entity.Position{Row: 0, Col: 0},
		End:   entity.Position{Row: 0, Col: 3},
	}
	require.NoError(t, c.DidChangeSelection(ctx, "a.txt", sel))

	envs := rec.envelopes(t)
	require.Len(t, envs, 2)
	selMsg := envs[1]
	assert.Equal(t, wire.KindSelection, selMsg.Type)
	require.NotNil(t, selMsg.Selection)
	assert.Equal(t, sel, *selMsg.Selection)
	assert.Equal(t, []int{1}, selMsg.SelectedLines)
	assert.Equal(t, "foo", selMsg.SelectedText)
}

func TestDidChangeSelectionUsesPendingContent(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(t, false)
	require.NoError(t, c.DidOpen(ctx, "a.txt", "old", "plaintext"))
	require.NoError(t, c.DidChange(ctx, "a.txt", "new text", "plaintext"))

	sel := entity.Selection{
		Start: entity.Position{Row: 0, Col: 4},
		End:   entity.Position{Row: 0, Col: 8},
	}
	require.NoError(t, c.DidChangeSelection(ctx, "a.txt", sel))

	envs := rec.envelopes(t)
	require.Len(t, envs, 2)
	assert.Equal(t, "text", envs[1].SelectedText)
}

func TestDidSaveSupersedesPendingChange(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(t, false)

	require.NoError(t, c.DidChange(ctx, "a.txt", "typed but unsaved", "plaintext"))
	require.NoError(t, c.DidSave(ctx, "a.txt", "saved content", "plaintext"))

	time.Sleep(2 * _testQuiet)
	envs := rec.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, wire.KindOpen, envs[0].Type)
	assert.Equal(t, "saved content", envs[0].Content)
	assert.Equal(t, "saved content", c.documents.Baseline(ctx, "a.txt"))
}

func TestDidClose(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(t, false)
	require.NoError(t, c.DidOpen(ctx, "a.txt", "foo", "plaintext"))
	require.NoError(t, c.DidChange(ctx, "a.txt", "foo edited", "plaintext"))

	require.NoError(t, c.DidClose(ctx, "a.txt"))

	// The pending edit is discarded, so the debounce window produces nothing.
	time.Sleep(2 * _testQuiet)
	envs := rec.envelopes(t)
	require.Len(t, envs, 2)
	assert.Equal(t, wire.KindClose, envs[1].Type)
	assert.Equal(t, entity.DocumentID("a.txt"), envs[1].Filename)

	// The baseline is gone; reopening reseeds from empty.
	count, err := c.documents.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSyncAll(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(t, false)
	require.NoError(t, c.DidOpen(ctx, "a.txt", "aaa", "plaintext"))
	require.NoError(t, c.DidOpen(ctx, "b.go", "package b", "go"))

	require.NoError(t, c.SyncAll(ctx))

	envs := rec.envelopes(t)
	require.Len(t, envs, 4)
	replayed := []entity.DocumentID{envs[2].Filename, envs[3].Filename}
	assert.ElementsMatch(t, []entity.DocumentID{"a.txt", "b.go"}, replayed)
	for _, env := range envs[2:] {
		assert.Equal(t, wire.KindOpen, env.Type)
	}
}

func TestOnViewerFrame(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(t, false)
	require.NoError(t, c.DidOpen(ctx, "a.txt", "aaa", "plaintext"))

	t.Run("request_sync triggers replay", func(t *testing.T) {
		c.onViewerFrame([]byte(`{"type":"request_sync"}`))
		envs := rec.envelopes(t)
		require.Len(t, envs, 2)
		assert.Equal(t, wire.KindOpen, envs[1].Type)
	})

	t.Run("malformed frame is dropped", func(t *testing.T) {
		before := len(rec.snapshot())
		assert.NotPanics(t, func() { c.onViewerFrame([]byte(`{"type":`)) })
		assert.Len(t, rec.snapshot(), before)
	})

	t.Run("unknown kind is ignored", func(t *testing.T) {
		before := len(rec.snapshot())
		c.onViewerFrame([]byte(`{"type":"presence","user":"x"}`))
		assert.Len(t, rec.snapshot(), before)
	})
}

func TestOversizedDocumentSkipped(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(t, false)

	huge := make([]byte, 3000)
	for i := range huge {
		huge[i] = 'x'
	}

	require.NoError(t, c.DidOpen(ctx, "big.txt", string(huge), "plaintext"))
	require.NoError(t, c.DidChange(ctx, "big.txt", string(huge), "plaintext"))

	time.Sleep(2 * _testQuiet)
	assert.Empty(t, rec.snapshot())
	count, err := c.documents.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// TestSessionScenario follows a full editing session end to end.
func TestSessionScenario(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestController(t, false)

	require.NoError(t, c.DidOpen(ctx, "a.txt", "foo", "plaintext"))
	require.NoError(t, c.DidChange(ctx, "a.txt", "foobar", "plaintext"))
	envs := rec.waitFor(t, 2)

	require.NoError(t, c.SyncAll(ctx))
	require.NoError(t, c.DidClose(ctx, "a.txt"))

	envs = rec.envelopes(t)
	require.Len(t, envs, 4)

	assert.Equal(t, wire.KindOpen, envs[0].Type)
	assert.Equal(t, "foo", envs[0].Content)

	assert.Equal(t, wire.KindPatch, envs[1].Type)
	assert.Equal(t, "foobar", envs[1].Content)
	assert.Equal(t, []wire.Diff{
		{Op: wire.DiffUnchanged, Text: "foo"},
		{Op: wire.DiffAdded, Text: "bar"},
	}, envs[1].Diffs)

	assert.Equal(t, wire.KindOpen, envs[2].Type)
	assert.Equal(t, "foobar", envs[2].Content)

	assert.Equal(t, wire.KindClose, envs[3].Type)
}
