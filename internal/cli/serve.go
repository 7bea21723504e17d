package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/BrandonDHaskell/garita/internal/grpcapi"
	"github.com/BrandonDHaskell/garita/internal/httpapi"
	"github.com/BrandonDHaskell/garita/internal/platform/logger"
)

const shutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx, cfg, log)
			if err != nil {
				return WrapExitError(ExitCommandError, "start garita", err)
			}
			defer app.Close()

			return serve(ctx, app)
		},
	}
}

// serve runs the listeners until ctx is cancelled or one of them fails.
func serve(ctx context.Context, app *App) error {
	log := app.Logger

	httpSrv := httpapi.NewServer(httpapi.Dependencies{
		Logger:    log,
		Addr:      app.Config.HTTPAddr,
		Registrar: app.Registrar,
		Metrics:   app.Metrics,
	})

	var grpcSrv *grpcapi.Server
	var monitor *grpcapi.HealthMonitor
	if app.Config.GRPCAddr != "" {
		grpcSrv = grpcapi.NewServer(app.Config.GRPCAddr)
		monitor = grpcapi.NewHealthMonitor(app.Registrar, grpcSrv, grpcapi.MonitorConfig{}, log)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http listening", slog.String("addr", app.Config.HTTPAddr))
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if grpcSrv != nil {
		monitor.Start(ctx)
		g.Go(func() error {
			log.Info("grpc listening", slog.String("addr", app.Config.GRPCAddr))
			if err := grpcSrv.Start(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if monitor != nil {
			monitor.Stop()
		}
		var errs []error
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if grpcSrv != nil {
			if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
