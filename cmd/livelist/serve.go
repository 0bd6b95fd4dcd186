package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/livefir/livelist"
	"github.com/livefir/livelist/internal/broadcast"
	"github.com/livefir/livelist/internal/logger"
	"github.com/livefir/livelist/internal/metrics"
	"github.com/livefir/livelist/internal/render"
	"github.com/livefir/livelist/internal/token"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the list to browsers over WebSocket",
	Long: `serve follows the people table and streams every reconciliation pass to
the connected browsers. Open the address in a browser to see the list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup("")
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var a *app
		renderer := render.New(render.SourceFactory{
			Source: func() livelist.Source { return a.coord.Source() },
			Key:    "id",
			Title:  "name",
			Detail: "city",
		})
		collector := metrics.NewCollector()
		hubOpts := []broadcast.Option{
			broadcast.WithLogger(log),
			broadcast.WithMetrics(collector),
			broadcast.WithAction(func(ctx context.Context, action string) error {
				return a.handleAction(ctx, action)
			}),
		}
		if cfg.Server.Tokens {
			tokens, err := token.NewService(token.Config{TTL: cfg.Server.TokenTTL})
			if err != nil {
				return err
			}
			hubOpts = append(hubOpts, broadcast.WithTokens(tokens, "people"))
		}
		hub := broadcast.NewHub(renderer, hubOpts...)
		defer hub.Close()

		a, err = newApp(ctx, cfg, log, hub, collector)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := hub.Attach(a.coord); err != nil {
			return err
		}
		return serve(ctx, a, hub, cfg.Server.Address, log)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	serveCmd.Flags().String("group-by", "", "Group rows by this column")
	serveCmd.Flags().Bool("load-more", false, "Load rows a page at a time")
	serveCmd.PreRunE = bindOnRun(map[string]string{
		"addr":      "server.address",
		"group-by":  "list.grouping_key",
		"load-more": "list.load_more",
	})
}

// serve runs the HTTP server and the database watch until ctx is done.
func serve(ctx context.Context, a *app, hub *broadcast.Hub, addr string, log *zap.Logger) error {
	log = logger.Component(log, "server")
	server := &http.Server{
		Addr:              addr,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("listening", zap.String(logger.FieldAddress, addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(err, "http server failed")
		}
	}()
	go func() {
		if err := a.watch(ctx); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.CombineErrors(runErr, server.Shutdown(shutdownCtx))
}
