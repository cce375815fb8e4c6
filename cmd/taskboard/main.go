package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/multierr"

	"github.com/nhle/taskboard/internal/app"
	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/logger"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
	"github.com/nhle/taskboard/internal/store"
	appsync "github.com/nhle/taskboard/internal/sync"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "taskboard:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("taskboard", flag.ContinueOnError)
	configPath := fs.String("config", model.DefaultConfigPath(), "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	if fs.Arg(0) == "init" {
		return runInit(cfg, *configPath, fs.Args()[1:])
	}
	return runDashboard(cfg, *configPath)
}

// backend bundles the store and push channel chosen by configuration.
type backend struct {
	store   *store.SQLStore
	channel realtime.Channel
	closers []func() error
}

func (b *backend) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i]())
	}
	return err
}

func openStore(cfg *model.AppConfig, opts ...store.Option) (*store.SQLStore, error) {
	if cfg.Store.Driver == store.DriverSQLite && cfg.Store.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	return store.Open(cfg.Store.Driver, cfg.Store.DSN, opts...)
}

// openBackend wires the store to the configured push channel. In local
// mode the store publishes its own writes to an in-process hub.
func openBackend(cfg *model.AppConfig, log *logger.Logger) (*backend, error) {
	b := &backend{}

	switch cfg.Realtime.Mode {
	case "local":
		hub := realtime.NewHub(log)
		s, err := openStore(cfg, store.WithPublisher(hub))
		if err != nil {
			hub.Close()
			return nil, err
		}
		b.store, b.channel = s, hub
		b.closers = append(b.closers, hub.Close, s.Close)

	case "postgres":
		if cfg.Store.Driver != store.DriverPostgres {
			return nil, fmt.Errorf("realtime mode postgres needs store.driver postgres, got %q", cfg.Store.Driver)
		}
		s, err := openStore(cfg)
		if err != nil {
			return nil, err
		}
		listener, err := realtime.NewPGListener(cfg.Store.DSN, cfg.Realtime.Channel, log)
		if err != nil {
			s.Close()
			return nil, err
		}
		b.store, b.channel = s, listener
		b.closers = append(b.closers, s.Close, listener.Close)

	case "websocket":
		key, err := credential.Lookup(os.Getenv("TASKBOARD_API_KEY"), credential.APIKeyName)
		if err != nil {
			return nil, fmt.Errorf("no relay API key (run `taskboard init` or set TASKBOARD_API_KEY): %w", err)
		}
		s, err := openStore(cfg)
		if err != nil {
			return nil, err
		}
		tokens := realtime.APIKeyTokenSource{BaseURL: cfg.Realtime.URL, APIKey: key}
		b.store, b.channel = s, realtime.NewWSChannel(cfg.Realtime.URL, tokens, log)
		b.closers = append(b.closers, s.Close)

	default:
		return nil, fmt.Errorf("unknown realtime mode %q", cfg.Realtime.Mode)
	}
	return b, nil
}

func runDashboard(cfg *model.AppConfig, configPath string) (err error) {
	if cfg.Subject.UserID == "" {
		return errors.New("no subject configured; run `taskboard init --user <id>` first")
	}

	log := logger.New("taskboard", logger.Options{
		File:       cfg.Log.File,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer log.Sync()

	b, err := openBackend(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, b.Close()) }()

	// Only the latest reloaded config matters; an unread one is replaced.
	changes := make(chan *model.AppConfig, 1)
	model.WatchConfig(configPath, func(c *model.AppConfig) {
		select {
		case <-changes:
		default:
		}
		changes <- c
	}, func(err error) {
		log.Warnw("ignoring invalid config change", "error", err)
	})

	m := app.New(b.store, b.channel, app.Options{
		Scope:         appsync.Scope{UserID: cfg.Subject.UserID, WorkspaceID: cfg.Subject.WorkspaceID},
		Filter:        model.ActivityFilter{Limit: cfg.Feed.Limit},
		ConfigChanges: changes,
		Sync: appsync.Options{
			Timeout: cfg.Store.Timeout,
			Limit:   cfg.Feed.Limit,
		},
		Log: log,
	})

	log.Infow("starting dashboard", "user_id", cfg.Subject.UserID, "workspace_id", cfg.Subject.WorkspaceID,
		"store", cfg.Store.Driver, "realtime", cfg.Realtime.Mode)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
