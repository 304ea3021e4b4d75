// Command stockhome runs the household stock tracking server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/stockhome/internal/alert"
	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/config"
	"github.com/dukerupert/stockhome/internal/database"
	"github.com/dukerupert/stockhome/internal/email"
	"github.com/dukerupert/stockhome/internal/logging"
	"github.com/dukerupert/stockhome/internal/metrics"
	"github.com/dukerupert/stockhome/internal/server"
	"github.com/dukerupert/stockhome/internal/stock"
	"github.com/dukerupert/stockhome/internal/store"
)

const (
	Version = "0.1.0"
	appName = "stockhome"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath, envFile string

	load := func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(configPath, envFile)
		if err != nil {
			return nil, nil, err
		}
		return cfg, logging.Setup(cfg.LogLevel, cfg.LogFormat), nil
	}

	serve := func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := load()
		if err != nil {
			return err
		}
		return run(cfg, logger)
	}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Household stock tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE:  serve,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			v, err := database.Version(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema at version %d\n", cfg.DBPath, v)
			return nil
		},
	})

	cmd.AddCommand(statusCmd())

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func statusCmd() *cobra.Command {
	var quantity, threshold int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Evaluate stock status for a quantity and threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			if quantity < 0 || threshold < 0 {
				return errors.New("quantity and threshold must not be negative")
			}
			status := stock.Evaluate(quantity, threshold)
			fmt.Fprintf(cmd.OutOrStdout(), "status: %s (%s)\nsuggested purchase: %d\n",
				status.Label(), status, stock.SuggestedPurchase(quantity, threshold))
			return nil
		},
	}
	cmd.Flags().IntVar(&quantity, "quantity", 0, "current quantity")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "low stock threshold")
	cmd.MarkFlagRequired("quantity")
	cmd.MarkFlagRequired("threshold")
	return cmd
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed := changefeed.New(logger.With("component", "changefeed"))
	m := metrics.New()
	defer m.Observe(feed)()

	if cfg.NATS.URL != "" {
		natsLogger := logger.With("component", "nats")
		nc, err := changefeed.ConnectNATS(cfg.NATS.URL, natsLogger)
		if err != nil {
			return err
		}
		defer nc.Drain()
		defer changefeed.Bridge(feed, nc, cfg.NATS.SubjectPrefix, natsLogger)()
		logger.Info("change feed bridged to nats", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	mailer := email.NewClient(cfg.Email.PostmarkToken, cfg.Email.From, cfg.BaseURL)
	if !mailer.Configured() {
		logger.Info("invitation email disabled, no postmark token")
	}

	srv := server.New(db, feed, m, mailer, server.Options{
		BaseURL:    cfg.BaseURL,
		SessionTTL: cfg.SessionTTL,
	}, logger)

	go srv.RateLimiter().RunCleanup(ctx, 5*time.Minute)

	scheduler := alert.NewScheduler(
		store.NewHouseStore(db),
		store.NewItemStore(db),
		store.NewNotificationStore(db),
		store.NewSessionStore(db, cfg.SessionTTL),
		feed, m, logger,
		alert.Options{Interval: cfg.Alerts.Interval, ExpiryWindowDays: cfg.Alerts.ExpiryWindowDays},
	)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("stockhome running", "addr", httpServer.Addr, "base_url", cfg.BaseURL, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
