package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	dig_container "github.com/trezcool/classboard/apps/api/di/dig"
	echoapi "github.com/trezcool/classboard/apps/api/echo"
	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/session"
	appfs "github.com/trezcool/classboard/fs"
)

type appParams struct {
	dig.In

	Conf       *core.Config
	APILogger  core.Logger
	DBLogger   core.Logger `name:"dbLogger"`
	DB         *sqlx.DB
	SessionSvc *session.Service
	Server     *echoapi.Server
}

func startWithDig() {
	c := dig_container.New()

	must(c.Invoke(func(p appParams) {
		conf, apiLogger := p.Conf, p.APILogger

		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, apiLogger)

		if p.DB != nil {
			defer func() {
				if err := p.DB.Close(); err != nil {
					p.DBLogger.Fatal("Failed to close", err)
				}
			}()
		}
		defer apiLogger.Info("Application stopped")
		if closer, ok := apiLogger.(interface{ Close() }); ok {
			defer closer.Close()
		}

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Sweep expired sessions

		sweepCtx, stopSweep := context.WithCancel(context.Background())
		defer stopSweep()
		go sweepSessions(sweepCtx, p.SessionSvc, conf.Server.SessionIdleTimeout, apiLogger)

		// =========================================================================
		// Start API Service

		go func() {
			p.Server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-p.Server.Errors():
			apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

		case sig := <-p.Server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := p.Server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = p.Server.Close(); err != nil {
					apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func sweepSessions(ctx context.Context, svc *session.Service, every time.Duration, logger core.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.Sweep(ctx)
			if err != nil {
				logger.Warn("sweeping sessions", err)
				continue
			}
			if n > 0 {
				logger.Info(fmt.Sprintf("%d expired sessions removed", n))
			}
		}
	}
}
