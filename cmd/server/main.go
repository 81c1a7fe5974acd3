package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"clinical-dashboard/internal/audit"
	"clinical-dashboard/internal/config"
	"clinical-dashboard/internal/patient"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Clinical dashboard API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(patientsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the notice journal schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			if err := audit.Migrate(dir, cfg.DatabaseURL); err != nil {
				return err
			}
			fmt.Println("Migrations applied successfully.")
			return nil
		},
	}
	cmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	return cmd
}

func patientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patients [term]",
		Short: "Search the patient directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := strings.Join(args, " ")
			dir := patient.NewDirectory(patient.Seed())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-4s %-18s %-4s %-18s %-8s %s\n", "ID", "NAME", "AGE", "CONDITION", "PRIORITY", "NEXT")
			for _, p := range dir.Search(term) {
				fmt.Fprintf(out, "%-4d %-18s %-4d %-18s %-8s %s\n", p.ID, p.Name, p.Age, p.Condition, p.Priority, p.NextAppointment)
			}
			return nil
		},
	}
}

func newLogger(out io.Writer, dev bool) zerolog.Logger {
	if dev {
		out = zerolog.ConsoleWriter{Out: out, NoColor: true}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := newLogger(os.Stdout, false)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(os.Stdout, cfg.IsDev())
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("provider", cfg.Provider).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	a.Close()
	logger.Info().Msg("server stopped")
	return nil
}
