package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfgpkg "github.com/KaramelBytes/surveylens/internal/config"
	"github.com/KaramelBytes/surveylens/internal/metrics"
	"github.com/KaramelBytes/surveylens/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		applyServeOverrides(cmd, c)

		m := metrics.New()
		svc, err := newService(c, "", m)
		if err != nil {
			return err
		}
		handler := web.NewServer(svc, logger, m, webOptions(c)).Router()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Warm the cache so a broken source shows up in the logs right away.
		// A failure is not cached; the first visitor retries.
		if t, err := svc.Table(ctx); err != nil {
			logger.Warn("initial dataset load failed", zap.Error(err))
		} else {
			logger.Info("dataset ready", zap.Int("rows", t.Len()), zap.String("snapshot", t.ID))
		}

		if path, err := configPath(); err == nil {
			go func() {
				prepare := func(g *cfgpkg.Global) {
					applyOverrides(g)
					applyServeOverrides(cmd, g)
				}
				err := cfgpkg.Watch(ctx, path, logger, prepare, func(g *cfgpkg.Global) {
					svc.SetLayout(layoutFor(g))
					logger.Info("survey layout reloaded",
						zap.Int("scale_questions", len(g.ScaleQuestions)),
						zap.Int("category_questions", len(g.CategoryQuestions)))
				})
				if err != nil {
					logger.Warn("config watch disabled", zap.Error(err))
				}
			}()
		}

		srv := &http.Server{
			Addr:              c.ListenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			logger.Info("dashboard listening", zap.String("addr", c.ListenAddr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("listen: %w", err)
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func applyServeOverrides(cmd *cobra.Command, c *cfgpkg.Global) {
	if cmd.Flags().Changed("addr") && serveAddr != "" {
		c.ListenAddr = serveAddr
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
}
