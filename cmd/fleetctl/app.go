package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/fleetsync/internal/config"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/logging"
	"github.com/muurk/fleetsync/internal/reconcile"
	"github.com/muurk/fleetsync/internal/session"
)

// skipSetup marks commands that run without config or a session.
const skipSetup = "fleetctl/skip-setup"

// app is what every command works with once setup has run.
type app struct {
	cfg     *config.Config
	store   session.Store
	session *session.Session
	client  *fleetapi.Client
	stdout  io.Writer
	stderr  io.Writer
}

var current *app

func setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipSetup] == "true" {
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	level := logLevel
	if level == "" {
		level = cfg.Log.Level
	}
	if err := logging.Initialize(level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	a, err := newApp(cfg, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	current = a
	return nil
}

func newApp(cfg *config.Config, stdout, stderr io.Writer) (*app, error) {
	store, err := session.Open(cfg.Session.Backend, cfg.Session.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	sess := session.New(store)
	client := fleetapi.NewClient(cfg.API.BaseURL, sess)
	client.SetTimeout(cfg.API.Timeout)

	a := &app{
		cfg:     cfg,
		store:   store,
		session: sess,
		client:  client,
		stdout:  stdout,
		stderr:  stderr,
	}
	client.OnAuthFailure = func(err *fleetapi.APIError) {
		_, _ = fmt.Fprintln(a.stderr, "Session expired or was revoked. Run 'fleetctl login' to sign in again.")
	}

	logging.Debug("Client ready",
		zap.String("api", cfg.API.BaseURL),
		zap.String("session_backend", cfg.Session.Backend),
	)
	return a, nil
}

func teardown() {
	if current == nil {
		return
	}
	if closer, ok := current.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logging.Warn("Failed to close session store", zap.Error(err))
		}
	}
}

// engine builds a reconciliation engine with the configured timing.
func (a *app) engine() *reconcile.Engine {
	return reconcile.NewEngine(a.client, a.reconcileOptions())
}

func (a *app) reconcileOptions() reconcile.Options {
	return reconcile.Options{
		InitialDelay:   a.cfg.Reconcile.InitialDelay,
		DelayIncrement: a.cfg.Reconcile.DelayIncrement,
		MaxAttempts:    a.cfg.Reconcile.MaxAttempts,
	}
}

// requireSession fails early with a hint instead of letting the first
// request come back 401.
func (a *app) requireSession() error {
	if _, err := a.session.Require(); err != nil {
		return fmt.Errorf("%w: run 'fleetctl login' first", err)
	}
	return nil
}
