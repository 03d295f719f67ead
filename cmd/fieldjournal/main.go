package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eringen/fieldjournal"
	"github.com/eringen/fieldjournal/backend"
	"github.com/eringen/fieldjournal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	debugFlag bool
	rootCmd   = &cobra.Command{
		Use:   "fieldjournal",
		Short: "A field journal: blog, photo essays and an admin area on a remote actor",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if debugFlag {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		SilenceUsage: true,
	}
)

func main() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the journal web client (FIELDJOURNAL_* variables)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "backend",
		Short: "Serve the reference actor backend (FIELDJOURNAL_BACKEND_* variables)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := backend.LoadConfig()
			if err != nil {
				return err
			}
			return backend.Run(cmd.Context(), cfg, logger.New("fieldjournal-backend"))
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the fieldjournal version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fieldjournal %s\n", version)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := fieldjournal.LoadConfig()
	if err != nil {
		return err
	}
	log := logger.New("fieldjournal")
	app := fieldjournal.New(cfg, fieldjournal.WithLogger(log))
	defer app.Close()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}
