package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callpilot/internal/auth"
	"callpilot/internal/campaign"
	"callpilot/internal/config"
	"callpilot/internal/rbac"
	"callpilot/migrations"
	"callpilot/pkg/logger"
	"callpilot/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(rootCtx); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "callpilot",
		Short:         "AI interview calling for ATS candidates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing env file is fine; real deployments set the environment directly.
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")

	root.AddCommand(serveCmd(), workerCmd(), schedulerCmd(), initiateCmd(), migrateCmd(), tokenCmd())
	return root
}

// setup loads configuration, installs the process logger and opens shared dependencies.
func setup(ctx context.Context, component string) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	log := logger.New(cfg.App.Env, component)
	slog.SetDefault(log)

	d, err := openDeps(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("dependency init failed: %w", err)
	}
	return d, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx, "api")
			if err != nil {
				return err
			}
			defer d.Close()

			if d.cfg.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}
			authManager, err := auth.NewManager(d.cfg.Auth)
			if err != nil {
				return fmt.Errorf("auth init failed: %w", err)
			}

			r := gin.New()
			r.Use(gin.Recovery())
			r.Use(logger.Middleware(d.log))
			registerRoutes(r, d, auth.RequireAccessToken(authManager))

			srv := &http.Server{
				Addr:              d.cfg.HTTPAddr(),
				Handler:           r,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				d.log.Info("api listening", "addr", srv.Addr, "env", d.cfg.App.Env)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				if err != nil {
					return fmt.Errorf("http server failed: %w", err)
				}
			case <-ctx.Done():
			}
			d.log.Info("shutdown initiated")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				d.log.Error("http shutdown failed", "err", err)
			}
			return nil
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume queued calls, status updates, campaign runs and SMS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := setup(cmd.Context(), "worker")
			if err != nil {
				return err
			}
			defer d.Close()

			d.log.Info("worker started", "concurrency", d.cfg.Queue.Workers, "queue", d.cfg.Queue.Key)
			if err := d.worker().Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			d.log.Info("worker stopped")
			return nil
		},
	}
}

func schedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Periodically queue a campaign run for every entitled organization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := setup(cmd.Context(), "scheduler")
			if err != nil {
				return err
			}
			defer d.Close()

			s := campaign.NewScheduler(d.orchestrator, d.locker, d.log)
			s.Interval = d.cfg.Campaign.Interval
			d.log.Info("scheduler started", "interval", s.Interval.String())
			if err := s.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func initiateCmd() *cobra.Command {
	var orgID int64
	cmd := &cobra.Command{
		Use:   "initiate",
		Short: "Run one campaign round now",
		Long:  "Without --org, queues a campaign run for every entitled organization. With --org, runs that organization inline and prints the summary.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx, "initiate")
			if err != nil {
				return err
			}
			defer d.Close()

			if orgID > 0 {
				sum, err := d.orchestrator.BulkInterviewCalls(ctx, orgID)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			n, err := d.orchestrator.InitiateAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued campaign runs for %d organizations\n", n)
			return nil
		},
	}
	cmd.Flags().Int64Var(&orgID, "org", 0, "organization id to run inline")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := setup(cmd.Context(), "migrate")
			if err != nil {
				return err
			}
			defer d.Close()

			applied, err := utils.Migrate(cmd.Context(), d.db, migrations.FS)
			if err != nil {
				return err
			}
			for _, name := range applied {
				d.log.Info("migration applied", "name", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migrations applied\n", len(applied))
			return nil
		},
	}
}

// tokenCmd mints a token pair for operators and scripts; it needs configuration only.
func tokenCmd() *cobra.Command {
	var (
		orgID  int64
		userID string
		role   string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access/refresh token pair for an organization member",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			m, err := auth.NewManager(cfg.Auth)
			if err != nil {
				return fmt.Errorf("auth init failed: %w", err)
			}
			pair, err := m.IssuePair(time.Now(), userID, orgID, role)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pair)
		},
	}
	cmd.Flags().Int64Var(&orgID, "org", 0, "organization id")
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", rbac.RoleAdmin, "organization role")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
