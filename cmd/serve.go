package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/statmap/internal/api"
	"github.com/sells-group/statmap/internal/mapview"
	"github.com/sells-group/statmap/internal/tile"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the map API",
	Long:  "Starts the HTTP API immediately with the fallback region set and loads the boundary dataset in the background.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		src, cleanup, err := newSource(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		loader := mapview.NewLoader(src, newProjector(cfg.Map), cfg.Map.GridSize, mapview.NewMetrics(reg))
		cache := tile.NewCache(cfg.Server.TileCacheSize, time.Duration(cfg.Server.TileCacheTTLMins)*time.Minute)
		mapview.RegisterCacheMetrics(reg, cache)

		srv := api.NewServer(loader, cache, reg, api.Config{
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			ReloadPerMinute: cfg.Server.ReloadPerMinute,
			Session:         sessionOptions(cfg.Map),
		})

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		// A failed initial load leaves the fallback set in place; reload via the API.
		g.Go(func() error {
			if _, err := loader.Reload(gctx); err != nil {
				zap.L().Warn("initial boundary load failed", zap.Error(err))
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
