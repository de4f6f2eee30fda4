package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"applicant-interview/internal/bootstrap"
	"applicant-interview/internal/shared/config"
	"applicant-interview/internal/shared/server"
	"applicant-interview/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd(config.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "applicant-interview",
		Short:         "Serve the applicant interview form and assistant conversation loop",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return fmt.Errorf("load env file %s: %w", envFile, err)
			}
			cfg := config.FromViper(v)
			if _, err := telemetry.Init(cfg.LogJSON, cfg.LogDebug); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer telemetry.Sync()

			if err := serve(cmd.Context(), cfg); err != nil {
				telemetry.Error("server.exit", map[string]any{"error": err})
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&envFile, "env-file", ".env", "optional KEY=VALUE file loaded before reading the environment")
	flags.String("vacancies", "", "path to the vacancy catalog (.json, .yaml)")
	flags.String("port", "", "listen port")
	flags.Bool("json", false, "log as JSON")
	flags.Bool("debug", false, "enable debug logging")

	bindFlag(v, "VACANCIES_PATH", cmd, "vacancies")
	bindFlag(v, "PORT", cmd, "port")
	bindFlag(v, "LOG_JSON", cmd, "json")
	bindFlag(v, "LOG_DEBUG", cmd, "debug")
	return cmd
}

// bindFlag lets an explicitly set flag override the environment.
func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
		panic(err)
	}
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		telemetry.Info("server.start", map[string]any{
			"addr":      srv.Addr,
			"env":       cfg.Env,
			"store":     cfg.TranscriptStore,
			"assistant": cfg.AssistantProvider,
			"vacancies": app.Catalog.Len(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	telemetry.Info("server.shutdown", map[string]any{"timeout": shutdownTimeout.String()})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := app.Service.Wait(shutdownCtx); err != nil {
		telemetry.Warn("server.background_pending", map[string]any{"error": err})
	}
	return nil
}
