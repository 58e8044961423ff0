package app

import (
	"context"
	"time"

	tally "github.com/uber-go/tally"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/codeshare/codeshare/src/codeshare/controller/broadcast"
	"github.com/codeshare/codeshare/src/codeshare/gateway/fswatcher"
	"github.com/codeshare/codeshare/src/codeshare/gateway/viewer"
	"github.com/codeshare/codeshare/src/codeshare/internal/core"
	"github.com/codeshare/codeshare/src/codeshare/internal/serverinfofile"
	"github.com/codeshare/codeshare/src/codeshare/repository/documents"
)

const _infoFieldViewerAddress = "viewer-address"

// Module defines the codeshare daemon application module.
var Module = fx.Options(
	viewer.Module,    // viewer-facing websocket hub
	broadcast.Module, // synchronization engine
	fswatcher.Module,
	serverinfofile.Module,
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(documents.New),
	fx.Provide(func(lc fx.Lifecycle) tally.Scope {
		rs, closer := tally.NewRootScope(tally.ScopeOptions{
			Tags: map[string]string{
				"service": "codeshare-daemon",
			},
		}, 1*time.Second)

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closer.Close()
			},
		})

		return rs
	}),
	fx.Invoke(registerDaemon),
)

type daemonParams struct {
	fx.In

	Gateway   viewer.Gateway
	Engine    broadcast.Controller
	Watcher   fswatcher.Watcher
	InfoFile  serverinfofile.ServerInfoFile
	Logger    *zap.SugaredLogger
	Lifecycle fx.Lifecycle
}

// registerDaemon ties the viewer hub to the application lifecycle. Pulling
// in the engine and the watcher here forces their construction, which is
// where they hook themselves into the gateway and the lifecycle.
func registerDaemon(p daemonParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			address, err := p.Gateway.Start(ctx)
			if err != nil {
				return err
			}
			p.Logger.Infow("viewer hub listening", zap.String("address", address))
			return p.InfoFile.UpdateField(_infoFieldViewerAddress, address)
		},
		OnStop: p.Gateway.Stop,
	})
}
