// Package serverinfofile maintains a small JSON file describing the
// running daemon (viewer address, pid) so the editor plugin and its status
// indicator can find the server without any discovery protocol.
package serverinfofile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const _configKeyInfoFile = "serverInfoFilePath"

// Module is the fx module for this package.
var Module = fx.Provide(New)

// ServerInfoFile manages the contents of the info file. Fields are
// rewritten in full on every update; the file is removed at shutdown.
type ServerInfoFile interface {
	UpdateField(key string, value string) error
}

type module struct {
	infofile string
	logger   *zap.SugaredLogger

	mu       sync.Mutex
	contents map[string]string
}

// Params define values to be used by ServerInfoFile.
type Params struct {
	fx.In

	Config    config.Provider
	Lifecycle fx.Lifecycle
	Logger    *zap.SugaredLogger
}

// New creates a ServerInfoFile. If no path is configured the returned
// instance is a no-op, so the daemon runs fine without one.
func New(p Params) (ServerInfoFile, error) {
	m := &module{
		logger:   p.Logger,
		contents: map[string]string{"pid": strconv.Itoa(os.Getpid())},
	}

	if err := p.Config.Get(_configKeyInfoFile).Populate(&m.infofile); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyInfoFile, err)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: m.onStop,
	})

	return m, nil
}

func (m *module) UpdateField(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.infofile == "" {
		return nil
	}

	m.contents[key] = value
	out, err := json.Marshal(m.contents)
	if err != nil {
		return fmt.Errorf("marshalling info file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.infofile), 0755); err != nil {
		return fmt.Errorf("creating info file directory: %w", err)
	}
	if err := os.WriteFile(m.infofile, out, 0644); err != nil {
		return fmt.Errorf("writing info file: %w", err)
	}
	m.logger.Infow("server info saved", zap.String("file", m.infofile), zap.String(key, value))
	return nil
}

func (m *module) onStop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.infofile == "" {
		return nil
	}
	if err := os.Remove(m.infofile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
