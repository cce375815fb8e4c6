package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/nhle/taskboard/internal/logger"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
	"github.com/nhle/taskboard/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "taskboard-relay:", err)
		os.Exit(1)
	}
}

// channelCloser is a push channel the relay owns.
type channelCloser interface {
	realtime.Channel
	Close() error
}

func run(args []string) (err error) {
	fs := flag.NewFlagSet("taskboard-relay", flag.ContinueOnError)
	configPath := fs.String("config", model.DefaultConfigPath(), "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Relay.JWTSecret == "" {
		return errors.New("relay.jwt_secret (TASKBOARD_RELAY_JWT_SECRET) must be set")
	}

	log := logger.New("taskboard-relay", logger.Options{Level: cfg.Log.Level, Format: "json"})
	defer log.Sync()

	var (
		s       *store.SQLStore
		channel channelCloser
	)
	if cfg.Store.Driver == store.DriverPostgres {
		s, err = store.Open(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return err
		}
		channel, err = realtime.NewPGListener(cfg.Store.DSN, cfg.Realtime.Channel, log)
		if err != nil {
			s.Close()
			return err
		}
	} else {
		log.Warnw("store has no server-side change feed; only writes made through this process are relayed",
			"driver", cfg.Store.Driver)
		hub := realtime.NewHub(log)
		s, err = store.Open(cfg.Store.Driver, cfg.Store.DSN, store.WithPublisher(hub))
		if err != nil {
			hub.Close()
			return err
		}
		channel = hub
	}
	defer func() { err = multierr.Append(err, multierr.Combine(channel.Close(), s.Close())) }()

	relay := realtime.NewServer(realtime.ServerConfig{
		Channel:  channel,
		Keys:     s,
		Members:  s,
		Secret:   []byte(cfg.Relay.JWTSecret),
		TokenTTL: cfg.Relay.TokenTTL,
		Log:      log,
	})

	srv := &http.Server{
		Addr:              cfg.Relay.Addr,
		Handler:           relay,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("starting relay", "addr", cfg.Relay.Addr, "driver", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serving relay: %w", err)
	case <-ctx.Done():
	}

	log.Infow("shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down relay: %w", err)
	}
	log.Infow("relay stopped")
	return nil
}
