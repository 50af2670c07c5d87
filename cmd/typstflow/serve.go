package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frankdugan3/typstflow/internal/cache"
	"github.com/frankdugan3/typstflow/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve render pipelines over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.close()

		// One world up front: fonts are discovered once and the startup
		// fails early if the engine is unusable.
		world, err := app.eng.NewWorld(app.engineOptions())
		if err != nil {
			return err
		}
		defer world.Close()

		var docCache *cache.Cache
		if app.cfg.Cache.Enabled {
			docCache, err = cache.Connect(ctx, app.cfg.Cache.URL, app.cfg.Cache.TTL)
			if err != nil {
				return err
			}
			defer docCache.Close()
		}

		handler := &web.Handler{
			Registry:     app.registry,
			FontFamilies: world.FontFamilies,
			Cache:        docCache,
			Logger:       app.log,
		}

		addr := fmt.Sprintf("%s:%d", app.cfg.Server.Host, app.cfg.Server.Port)
		config := web.DefaultServerConfig(addr, web.NewRouter(handler))
		config.Logger = app.log

		server, err := web.NewServer(config)
		if err != nil {
			return err
		}
		return server.Run(ctx)
	},
}
