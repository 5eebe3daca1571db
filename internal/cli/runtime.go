package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/naz-az/petpilot-local/internal/config"
	"github.com/naz-az/petpilot-local/internal/log"
	"github.com/naz-az/petpilot-local/internal/storage"
)

type runtimeOptions struct {
	dbPath     string
	configPath string
}

type runtime struct {
	cfg    config.Config
	logger *slog.Logger
	closer io.Closer
}

func (o *runtimeOptions) newRuntime() (*runtime, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigPath: o.configPath})
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.Database.Path = o.dbPath
	}

	logger, closer, err := log.New(log.Options{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, closer: closer}, nil
}

func (r *runtime) openStore() (*storage.Store, error) {
	return storage.Open(r.cfg.Database.Path, storage.Options{
		BusyTimeout: r.cfg.Database.BusyTimeout,
	})
}

func (r *runtime) close() {
	if r.closer != nil {
		_ = r.closer.Close()
	}
}
