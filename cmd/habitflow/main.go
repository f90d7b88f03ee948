package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/habitflow/internal/backup"
	"github.com/dukerupert/habitflow/internal/coach"
	"github.com/dukerupert/habitflow/internal/config"
	"github.com/dukerupert/habitflow/internal/database"
	"github.com/dukerupert/habitflow/internal/email"
	"github.com/dukerupert/habitflow/internal/logging"
	"github.com/dukerupert/habitflow/internal/push"
	"github.com/dukerupert/habitflow/internal/reminder"
	"github.com/dukerupert/habitflow/internal/server"
	"github.com/dukerupert/habitflow/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg    config.Config
	db     *sql.DB
	logger *slog.Logger
	close  func()
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "habitflow",
		Short:         "HabitFlow habit tracking API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newMigrateCmd(&configPath))
	root.AddCommand(newRemindCmd(&configPath))
	root.AddCommand(newBackupCmd(&configPath))
	root.AddCommand(newPushCmd())
	return root
}

func loadApp(configPath string) (*app, error) {
	config.LoadDotenv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, closeLog := logging.Setup(cfg.LogLevel, cfg.LogFile)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &app{
		cfg:    cfg,
		db:     db,
		logger: logger,
		close: func() {
			db.Close()
			closeLog()
		},
	}, nil
}

func (a *app) emailClient() *email.Client {
	return email.NewClient(a.cfg.PostmarkToken, a.cfg.FromEmail, a.cfg.ClientURL)
}

func (a *app) backupManager() *backup.Manager {
	b := a.cfg.Backup
	return backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  b.S3Endpoint,
			Bucket:    b.S3Bucket,
			Region:    b.S3Region,
			AccessKey: b.S3AccessKey,
			SecretKey: b.S3SecretKey,
		},
		Passphrase:    b.Passphrase,
		RetentionDays: b.RetentionDays,
		Interval:      b.Interval,
	}, a.db, store.NewBackupStore(a.db), a.logger)
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and reminder scheduler",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	a, err := loadApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.Validate(); err != nil {
		return err
	}

	logger := a.logger
	emailClient := a.emailClient()
	if !emailClient.Configured() {
		logger.Warn("postmark token not set, emails will not be sent")
	}
	coachClient := coach.NewClient(a.cfg.GeminiAPIKey, a.cfg.GeminiModel)
	if !coachClient.Configured() {
		logger.Warn("gemini api key not set, coach replies will fail")
	}

	srv := server.New(a.db, a.cfg, emailClient, coachClient, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sched *reminder.Scheduler
	if a.cfg.RemindersEnabled {
		sched = reminder.NewScheduler(reminder.SystemClock{}, srv.HabitStore(), emailClient, a.cfg.DefaultTimezone, logger)
		if a.cfg.Push.VAPIDPublicKey != "" {
			sched.SetPusher(srv.PushNotifier())
		}
		sched.Start(ctx)
		logger.Info("reminder scheduler started", "default_timezone", a.cfg.DefaultTimezone)
	}

	backups := a.backupManager()
	if backups.Enabled() {
		backups.Start(ctx)
		logger.Info("backup scheduler started", "bucket", a.cfg.Backup.S3Bucket, "interval", a.cfg.Backup.Interval)
	}

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.PasswordResetStore().DeleteExpired(time.Now()); err != nil {
					logger.Error("cleanup expired password resets", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired password resets", "count", n)
				}
				srv.CleanupRateLimits()
			case <-ctx.Done():
				return
			}
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("habitflow starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if sched != nil {
		sched.Stop()
	}
	backups.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	srv.Wait()
	return nil
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and print the schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			v, err := database.Version(a.db)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "database %s at version %d\n", a.cfg.DBPath, v)
			return nil
		},
	}
}

func newRemindCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Run a single reminder pass for the current minute",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			sched := reminder.NewScheduler(reminder.SystemClock{}, store.NewHabitStore(a.db), a.emailClient(), a.cfg.DefaultTimezone, a.logger)
			if a.cfg.Push.VAPIDPublicKey != "" {
				svc := push.NewService(a.cfg.Push.VAPIDPublicKey, a.cfg.Push.VAPIDPrivateKey, a.cfg.Push.Subscriber)
				sched.SetPusher(push.NewNotifier(svc, store.NewPushStore(a.db), a.logger))
			}
			res := sched.Tick(cmd.Context())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "candidates=%d fired=%d failed=%d pushed=%d\n", res.Candidates, res.Fired, res.Failed, res.Pushed)
			return nil
		},
	}
}

func newBackupCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage encrypted database backups",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Take a backup now and prune expired ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			m := a.backupManager()
			b, err := m.Run(cmd.Context())
			if err != nil {
				return err
			}
			pruned, err := m.Prune(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "backup %d uploaded to %s (%d bytes), pruned %d\n", b.ID, b.ObjectKey, b.SizeBytes, pruned)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recent backups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			backups, err := a.backupManager().List(50)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, b := range backups {
				_, _ = fmt.Fprintf(out, "%d\t%s\t%s\t%d\t%s\n", b.ID, b.CreatedAt.Format(time.RFC3339), b.Status, b.SizeBytes, b.ObjectKey)
			}
			return nil
		},
	})

	var output string
	restore := &cobra.Command{
		Use:   "restore <id>",
		Short: "Download, decrypt and verify a backup into a database file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid backup id %q", args[0])
			}

			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			dst := output
			if dst == "" {
				dst = a.cfg.DBPath + ".restored"
			}
			if err := a.backupManager().Restore(cmd.Context(), id, dst); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "backup %d restored to %s\n", id, dst)
			return nil
		},
	}
	restore.Flags().StringVarP(&output, "output", "o", "", "file to write the restored database to (default <db_path>.restored)")
	cmd.AddCommand(restore)

	return cmd
}

func newPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Web push utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "keys",
		Short: "Generate a VAPID key pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "HABITFLOW_VAPID_PUBLIC_KEY=%s\n", pub)
			_, _ = fmt.Fprintf(out, "HABITFLOW_VAPID_PRIVATE_KEY=%s\n", priv)
			return nil
		},
	})
	return cmd
}
