// Package broadcast is the document synchronization engine. It receives
// editor events from the integration shim, tracks per-document diff
// baselines, debounces change bursts, and fans the resulting protocol
// messages out to viewers through the viewer gateway.
package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	tally "github.com/uber-go/tally"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/codeshare/codeshare/src/codeshare/entity"
	"github.com/codeshare/codeshare/src/codeshare/gateway/viewer"
	"github.com/codeshare/codeshare/src/codeshare/internal/debounce"
	"github.com/codeshare/codeshare/src/codeshare/internal/errors"
	"github.com/codeshare/codeshare/src/codeshare/internal/textdiff"
	"github.com/codeshare/codeshare/src/codeshare/repository/documents"
	"github.com/codeshare/codeshare/src/codeshare/wire"
)

const (
	_nameKey         = "broadcast"
	_configKeyEngine = "engine"

	_defaultQuietPeriod = 400 * time.Millisecond
	_defaultMaxFileSize = 10 << 20
)

// Module is the fx module for this package.
var Module = fx.Provide(New)

// Controller is the surface the editor integration calls into. Every
// operation is safe to call whether or not the viewer gateway is running;
// with no listener active, messages are silently discarded.
type Controller interface {
	// DidOpen announces a newly opened document and seeds its baseline.
	DidOpen(ctx context.Context, id entity.DocumentID, content, language string) error

	// DidChange records a raw edit. Bursts are debounced; once the quiet
	// period elapses a single patch carrying the full content and a
	// character diff against the baseline is broadcast.
	DidChange(ctx context.Context, id entity.DocumentID, content, language string) error

	// DidChangeSelection broadcasts a cursor/selection move immediately.
	DidChangeSelection(ctx context.Context, id entity.DocumentID, sel entity.Selection) error

	// DidSave rebroadcasts the full document and resets its baseline.
	DidSave(ctx context.Context, id entity.DocumentID, content, language string) error

	// DidClose announces the close and stops tracking the document.
	DidClose(ctx context.Context, id entity.DocumentID) error

	// SyncAll replays an open message for every tracked document. Invoked
	// for each inbound request_sync so a viewer joining mid-session can
	// catch up; a deliberate full resync since no message log is retained.
	SyncAll(ctx context.Context) error
}

// Params are inbound parameters to construct the engine.
type Params struct {
	fx.In

	Documents documents.Repository
	Gateway   viewer.Gateway
	Logger    *zap.SugaredLogger
	Stats     tally.Scope
	Config    config.Provider
	Lifecycle fx.Lifecycle
}

type engineConfig struct {
	QuietPeriodMs       int   `yaml:"quietPeriodMs"`
	PerDocumentDebounce bool  `yaml:"perDocumentDebounce"`
	MaxFileSizeBytes    int64 `yaml:"maxFileSizeBytes"`
}

// pendingChange is the most recent raw edit for a document, held until the
// debouncer fires. Only content that has actually been broadcast ever
// reaches the baseline store.
type pendingChange struct {
	content  string
	language string
}

type controller struct {
	documents        documents.Repository
	gateway          viewer.Gateway
	logger           *zap.SugaredLogger
	stats            tally.Scope
	maxFileSizeBytes int64

	debouncer *debounce.Debouncer

	pendingMu sync.Mutex
	pending   map[entity.DocumentID]pendingChange
}

// New creates the broadcast engine and wires it to the viewer gateway's
// inbound message stream.
func New(p Params) (Controller, error) {
	var cfg engineConfig
	if err := p.Config.Get(_configKeyEngine).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyEngine, err)
	}

	quiet := _defaultQuietPeriod
	if cfg.QuietPeriodMs > 0 {
		quiet = time.Duration(cfg.QuietPeriodMs) * time.Millisecond
	}
	maxSize := cfg.MaxFileSizeBytes
	if maxSize == 0 {
		maxSize = _defaultMaxFileSize
	}

	c := &controller{
		documents:        p.Documents,
		gateway:          p.Gateway,
		logger:           p.Logger.With("component", _nameKey),
		stats:            p.Stats.SubScope(_nameKey),
		maxFileSizeBytes: maxSize,
		pending:          make(map[entity.DocumentID]pendingChange),
	}
	c.debouncer = debounce.New(quiet, cfg.PerDocumentDebounce, c.flushChange)

	p.Gateway.OnReceiveMessage(c.onViewerFrame)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			c.debouncer.Stop()
			return nil
		},
	})

	return c, nil
}

func (c *controller) DidOpen(ctx context.Context, id entity.DocumentID, content, language string) error {
	if err := c.validateSize(id, content); err != nil {
		// Oversized documents are expected occasionally; skip rather than fail the open.
		c.logger.Warnf("not tracking document %q: %v", id, err)
		return nil
	}

	doc := entity.Document{ID: id, Content: content, Language: language}
	if err := c.emit(wire.NewOpen(doc)); err != nil {
		return err
	}
	c.stats.Counter("opens").Inc(1)
	return c.documents.Set(ctx, &doc)
}

func (c *controller) DidChange(ctx context.Context, id entity.DocumentID, content, language string) error {
	if err := c.validateSize(id, content); err != nil {
		c.logger.Warnf("dropping change for document %q: %v", id, err)
		return nil
	}

	c.pendingMu.Lock()
	c.pending[id] = pendingChange{content: content, language: language}
	c.pendingMu.Unlock()

	c.debouncer.Trigger(id)
	return nil
}

func (c *controller) DidChangeSelection(ctx context.Context, id entity.DocumentID, sel entity.Selection) error {
	// Selections render against what the editor currently shows, which is
	// the pending edit when one is in flight, else the broadcast baseline.
	content := c.documents.Baseline(ctx, id)
	c.pendingMu.Lock()
	if p, ok := c.pending[id]; ok {
		content = p.content
	}
	c.pendingMu.Unlock()

	c.stats.Counter("selections").Inc(1)
	return c.emit(wire.NewSelection(id, sel, content))
}

func (c *controller) DidSave(ctx context.Context, id entity.DocumentID, content, language string) error {
	if err := c.validateSize(id, content); err != nil {
		c.logger.Warnf("not rebroadcasting document %q: %v", id, err)
		return nil
	}

	// A save supersedes any pending debounced edit for this document.
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()

	doc := entity.Document{ID: id, Content: content, Language: language}
	if err := c.emit(wire.NewOpen(doc)); err != nil {
		return err
	}
	c.stats.Counter("saves").Inc(1)
	return c.documents.Set(ctx, &doc)
}

func (c *controller) DidClose(ctx context.Context, id entity.DocumentID) error {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()

	if err := c.emit(wire.NewClose(id)); err != nil {
		return err
	}
	c.stats.Counter("closes").Inc(1)
	return c.documents.Delete(ctx, id)
}

func (c *controller) SyncAll(ctx context.Context) error {
	docs, err := c.documents.All(ctx)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if err := c.emit(wire.NewOpen(*doc)); err != nil {
			return err
		}
	}
	c.stats.Counter("resyncs").Inc(1)
	c.logger.Infow("resynced all open documents", zap.Int("count", len(docs)))
	return nil
}

// flushChange runs when the debounce quiet period elapses. It computes the
// diff against the baseline, broadcasts a patch with the full content, and
// only then advances the baseline.
func (c *controller) flushChange(id entity.DocumentID) {
	ctx := context.Background()

	c.pendingMu.Lock()
	p, ok := c.pending[id]
	delete(c.pending, id)
	c.pendingMu.Unlock()
	if !ok {
		// Closed or saved while the timer was pending.
		return
	}

	baseline := c.documents.Baseline(ctx, id)
	doc := entity.Document{ID: id, Content: p.content, Language: p.language}
	diffs := textdiff.Ops(baseline, p.content)

	if err := c.emit(wire.NewPatch(doc, diffs)); err != nil {
		c.logger.Errorw("broadcasting patch", zap.String("filename", string(id)), zap.Error(err))
		return
	}
	if err := c.documents.Set(ctx, &doc); err != nil {
		c.logger.Errorw("updating baseline", zap.String("filename", string(id)), zap.Error(err))
	}
	c.stats.Counter("patches").Inc(1)
}

// onViewerFrame handles one inbound frame from any viewer. Malformed
// frames are dropped and logged, never fatal.
func (c *controller) onViewerFrame(data []byte) {
	env, err := wire.Decode(data)
	if err != nil {
		c.logger.Warnw("dropping malformed viewer message", zap.Error(err))
		return
	}

	switch env.Type {
	case wire.KindRequestSync:
		if err := c.SyncAll(context.Background()); err != nil {
			c.logger.Errorw("resync failed", zap.Error(err))
		}
	default:
		// Viewers are read-only; anything else is a protocol extension we
		// do not know about and must ignore.
	}
}

// emit serializes a message and hands it to the gateway for fan-out.
// Delivery is fire-and-forget: this succeeds even with no viewer connected
// or the gateway stopped.
func (c *controller) emit(msg interface{}) error {
	text, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	c.gateway.Broadcast(text)
	return nil
}

func (c *controller) validateSize(id entity.DocumentID, content string) error {
	if size := int64(len(content)); size > c.maxFileSizeBytes {
		return &errors.DocumentSizeLimitError{ID: id, Size: size}
	}
	return nil
}
