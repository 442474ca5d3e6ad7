package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/homytech-sync/internal/device"
	"github.com/nerrad567/homytech-sync/internal/infrastructure/config"
	"github.com/nerrad567/homytech-sync/internal/infrastructure/logging"
	"github.com/nerrad567/homytech-sync/internal/remote"
	"github.com/nerrad567/homytech-sync/internal/session"
	"github.com/nerrad567/homytech-sync/internal/snapshot"
)

// backend bundles the REST client with the session it authenticates as.
type backend struct {
	client  *remote.Client
	session *session.Session
}

// connectBackend builds the REST client and session. When no token is
// configured but credentials are, it logs in first.
func connectBackend(ctx context.Context, cfg *config.Config, log *logging.Logger) (*backend, error) {
	sess, err := session.New(cfg.Session.User, cfg.Session.Token)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	client := remote.New(remote.Config{
		BaseURL:     cfg.Remote.BaseURL,
		Token:       cfg.Session.Token,
		UserAgent:   cfg.Remote.UserAgent + "/" + version,
		ReadTimeout: cfg.GetRemoteTimeout(),
		Logger:      log,
	})

	if cfg.Session.Token == "" && cfg.Session.Email != "" {
		if err := sess.Login(ctx, client, cfg.Session.Email, cfg.Session.Password); err != nil {
			return nil, fmt.Errorf("logging in: %w", err)
		}
		client.SetToken(sess.Token())
		log.Info("logged in", "user", sess.User(), "expires_at", sess.ExpiresAt())
	}
	if sess.Expired(time.Now()) {
		log.Warn("session token has expired; the backend may reject requests", "expired_at", sess.ExpiresAt())
	}

	return &backend{client: client, session: sess}, nil
}

// newLoader creates a snapshot loader for store using the configured retry policy.
func newLoader(cfg *config.Config, be *backend, store *device.Store, log *logging.Logger, observer snapshot.Observer) *snapshot.Loader {
	return snapshot.NewLoader(be.client, store, snapshot.Config{
		RetryAttempts: cfg.Snapshot.RetryAttempts,
		RetryDelay:    time.Duration(cfg.Snapshot.RetryDelay) * time.Second,
		Logger:        log,
		Observer:      observer,
	})
}

// loadState connects, loads one snapshot and returns the populated store.
// Used by the one-shot commands; the caller must call the returned close func.
func loadState(ctx context.Context, cfg *config.Config, log *logging.Logger) (*backend, *device.Store, func(), error) {
	be, err := connectBackend(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}

	store := device.NewStore()
	store.SetLogger(log)
	loader := newLoader(cfg, be, store, log, nil)
	closeFn := func() {
		loader.Close()
		store.Close()
	}

	if _, err := loader.Load(ctx); err != nil {
		closeFn()
		return nil, nil, nil, fmt.Errorf("loading device state: %w", err)
	}
	return be, store, closeFn, nil
}

// cliLogger returns a logger for one-shot commands. Logs go to stderr so
// stdout carries only the command output.
func cliLogger(cfg *config.Config) *logging.Logger {
	lc := cfg.Logging
	lc.Output = "stderr"
	if lc.Level == "" || lc.Level == "info" {
		lc.Level = "warn"
	}
	return logging.New(lc, version)
}

// errUsage marks an invalid command line.
var errUsage = errors.New("invalid arguments")
