// Package fswatcher drives the broadcast engine from on-disk file writes.
// It stands in for the editor integration in headless or demo setups: saved
// files under the watched root are tracked as open documents and every
// write is forwarded as a change event.
package fswatcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/codeshare/codeshare/src/codeshare/controller/broadcast"
	"github.com/codeshare/codeshare/src/codeshare/entity"
)

const _configKeyWatcher = "watcher"

// Module is the fx module for this package.
var Module = fx.Provide(New)

// Watcher mirrors a directory tree into the broadcast engine.
type Watcher interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Params are inbound parameters to construct the watcher.
type Params struct {
	fx.In

	Engine    broadcast.Controller
	Logger    *zap.SugaredLogger
	Config    config.Provider
	Lifecycle fx.Lifecycle
}

type watcherConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Root       string   `yaml:"root"`
	Extensions []string `yaml:"extensions"`
}

type watcher struct {
	engine     broadcast.Controller
	logger     *zap.SugaredLogger
	root       string
	extensions map[string]struct{}

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	tracked map[entity.DocumentID]struct{}
	done    chan struct{}
}

// New constructs the watcher. When disabled by config it is a no-op and
// the daemon relies solely on the editor integration for events.
func New(p Params) (Watcher, error) {
	var cfg watcherConfig
	if err := p.Config.Get(_configKeyWatcher).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyWatcher, err)
	}

	if !cfg.Enabled {
		return noopWatcher{}, nil
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("watcher is enabled but %q.root is not set", _configKeyWatcher)
	}

	w := newWatcher(p.Engine, p.Logger, cfg.Root, cfg.Extensions)
	p.Lifecycle.Append(fx.Hook{
		OnStart: w.Start,
		OnStop:  w.Stop,
	})
	return w, nil
}

func newWatcher(engine broadcast.Controller, logger *zap.SugaredLogger, root string, extensions []string) *watcher {
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.TrimPrefix(ext, ".")] = struct{}{}
	}
	return &watcher{
		engine:     engine,
		logger:     logger.With("component", "fswatcher"),
		root:       root,
		extensions: extSet,
		tracked:    make(map[entity.DocumentID]struct{}),
	}
}

func (w *watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}

	// Watch the whole tree; fsnotify is not recursive by itself.
	err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return fmt.Errorf("watching %q: %w", w.root, err)
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	go w.run(fsw, w.done)
	w.logger.Infow("watching workspace", zap.String("root", w.root))
	return nil
}

func (w *watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	fsw, done := w.fsw, w.done
	w.fsw = nil
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	if err := fsw.Close(); err != nil {
		return err
	}
	<-done
	return nil
}

func (w *watcher) run(fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	ctx := context.Background()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("watch error", zap.Error(err))
		}
	}
}

func (w *watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fsw.Add(event.Name); err != nil {
				w.logger.Warnw("watching new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}

	id, ok := w.documentID(event.Name)
	if !ok {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.mu.Lock()
		_, tracked := w.tracked[id]
		delete(w.tracked, id)
		w.mu.Unlock()
		if tracked {
			if err := w.engine.DidClose(ctx, id); err != nil {
				w.logger.Warnw("closing removed file", zap.String("filename", string(id)), zap.Error(err))
			}
		}

	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		content, err := os.ReadFile(event.Name)
		if err != nil {
			w.logger.Warnw("reading changed file", zap.String("path", event.Name), zap.Error(err))
			return
		}
		language := languageFor(event.Name)

		w.mu.Lock()
		_, seen := w.tracked[id]
		w.tracked[id] = struct{}{}
		w.mu.Unlock()

		if !seen {
			err = w.engine.DidOpen(ctx, id, string(content), language)
		} else {
			err = w.engine.DidChange(ctx, id, string(content), language)
		}
		if err != nil {
			w.logger.Warnw("forwarding file event", zap.String("filename", string(id)), zap.Error(err))
		}
	}
}

// documentID maps an absolute event path to a root-relative identifier,
// filtered by the configured extensions.
func (w *watcher) documentID(path string) (entity.DocumentID, bool) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", false
	}
	if len(w.extensions) > 0 {
		if _, ok := w.extensions[ext]; !ok {
			return "", false
		}
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return entity.DocumentID(filepath.ToSlash(rel)), true
}

var _languages = map[string]string{
	"go":   "go",
	"js":   "javascript",
	"jsx":  "javascriptreact",
	"ts":   "typescript",
	"tsx":  "typescriptreact",
	"py":   "python",
	"rb":   "ruby",
	"rs":   "rust",
	"java": "java",
	"c":    "c",
	"h":    "c",
	"cpp":  "cpp",
	"css":  "css",
	"html": "html",
	"json": "json",
	"md":   "markdown",
	"sh":   "shellscript",
	"yaml": "yaml",
	"yml":  "yaml",
}

func languageFor(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if lang, ok := _languages[ext]; ok {
		return lang
	}
	return "plaintext"
}

type noopWatcher struct{}

func (noopWatcher) Start(ctx context.Context) error { return nil }
func (noopWatcher) Stop(ctx context.Context) error  { return nil }
