package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Config holds backend settings, read from FIELDJOURNAL_BACKEND_* variables.
type Config struct {
	Addr         string `envconfig:"ADDR" default:":4000"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"data/journal.db"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("FIELDJOURNAL_BACKEND", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	return &cfg, nil
}

// Run opens the store and serves until ctx is done.
func Run(ctx context.Context, cfg *Config, log zerolog.Logger) error {
	store, err := OpenStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	log.Info().Str("addr", cfg.Addr).Str("database", cfg.DatabasePath).Msg("configuration loaded")

	srv := NewServer(NewService(store, log), log)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start(cfg.Addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
