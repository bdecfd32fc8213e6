// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - composition root shared by every command.
package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleopantest/aleopantest/internal/catalog"
	"github.com/aleopantest/aleopantest/internal/config"
	"github.com/aleopantest/aleopantest/internal/detect"
	"github.com/aleopantest/aleopantest/internal/logging"
	"github.com/aleopantest/aleopantest/internal/redirect"
	"github.com/aleopantest/aleopantest/internal/security"
	"github.com/aleopantest/aleopantest/internal/session"
	"github.com/aleopantest/aleopantest/internal/storage"
	"github.com/aleopantest/aleopantest/internal/tools"
)

// memoryHistorySize bounds the fallback history when SQLite is unavailable.
const memoryHistorySize = 200

// App is one process worth of wired services. Every frontend drives the same
// orchestrator, so quota and audit state are shared across them.
type App struct {
	Config     *config.Config
	ConfigPath string
	Platform   detect.Platform

	Logs         *logging.Logs
	Logger       zerolog.Logger
	Audit        *security.AuditLogger
	Governor     *session.Governor
	Registry     *tools.Registry
	Orchestrator *tools.Orchestrator
	History      storage.History

	// Shortener persists its routes; Masker is in-memory only.
	Shortener *redirect.Service
	Masker    *redirect.Service

	Out    io.Writer
	ErrOut io.Writer
	JSON   bool

	// HTTPClient posts --report envelopes.
	HTTPClient *http.Client
	// NewPrompter opens the line editor used by run --interactive.
	NewPrompter func() (Prompter, error)
}

// NewApp loads configuration and wires every service. Close releases them.
func NewApp(args Args, out, errOut io.Writer) (*App, error) {
	path, err := resolveConfigPath(args.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if args.Quota > 0 {
		cfg.Session.QuotaSecs = args.Quota
	}
	if args.NoColor {
		cfg.UI.NoColor = true
	}
	if cfg.UI.NoColor {
		ForceColorsEnabled(false)
	}

	level := cfg.General.LogLevel
	if args.Verbose {
		level = "debug"
	}
	logs, err := logging.Setup(logging.Options{
		Dir:     cfg.General.LogDir,
		App:     cfg.General.AppName,
		Level:   level,
		Console: args.Verbose,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:      cfg,
		ConfigPath:  path,
		Platform:    detect.Detect(),
		Logs:        logs,
		Logger:      logs.Logger,
		Out:         out,
		ErrOut:      errOut,
		JSON:        args.JSON,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		NewPrompter: newLinePrompter,
	}

	if a.Audit, err = security.NewAuditLogger(cfg.AuditLogPath()); err != nil {
		a.Close()
		return nil, err
	}

	a.Governor = session.NewGovernor(session.Config{
		Quota:                  cfg.Quota(),
		InteractiveDurationCap: cfg.Session.InteractiveDurationCap,
		MaxThreads:             cfg.Session.MaxThreads,
	})

	a.History = openHistory(cfg.Storage, a.Logger)

	// never fails without a store
	a.Masker, _ = redirect.NewService(redirect.Options{Gate: a.Governor, Logger: a.Logger})
	a.Shortener = openShortener(cfg.Redirect, a.Governor, a.Masker, a.Logger)

	a.Registry = tools.NewRegistry(a.Logger)
	catalog.Register(a.Registry, catalog.Deps{
		Shortener:    a.Shortener,
		Masker:       a.Masker,
		OutputDir:    cfg.General.OutputDir,
		RedirectPort: cfg.Redirect.Port,
	})

	id := security.CurrentIdentity(os.Getenv, a.Platform.Release)
	if env := strings.TrimSpace(cfg.General.Environment); env != "" {
		id.Env = strings.ToLower(env)
	}

	a.Orchestrator = tools.NewOrchestrator(a.Registry, a.Governor, a.Audit, id, a.Logger)
	a.Orchestrator.LogOutput = logs.Output
	a.Orchestrator.History = a.History
	a.Orchestrator.MaxRetries = cfg.Orchestrator.MaxRetries
	a.Orchestrator.RetryDelay = cfg.RetryDelay()

	a.Logger.Debug().
		Str("config", path).
		Str("platform", a.Platform.String()).
		Str("session", a.Governor.SessionID()).
		Int("tools", a.Registry.Len()).
		Msg("application ready")
	return a, nil
}

// openHistory prefers SQLite and falls back to memory so a read-only
// working directory never blocks tool runs.
func openHistory(cfg config.StorageConfig, logger zerolog.Logger) storage.History {
	if cfg.InMemory || cfg.HistoryPath == "" {
		return storage.NewMemoryHistory(memoryHistorySize)
	}
	h, err := storage.OpenSQLite(cfg.HistoryPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.HistoryPath).Msg("history database unavailable, keeping results in memory")
		return storage.NewMemoryHistory(memoryHistorySize)
	}
	return h
}

// openShortener loads the persisted link table. The shortener listener also
// answers for masked links. An unreadable table leaves the shortener running
// in memory so the rest of the toolbox stays usable; the file is left alone.
func openShortener(cfg config.RedirectConfig, gate redirect.Gate, masker *redirect.Service, logger zerolog.Logger) *redirect.Service {
	opts := redirect.Options{
		Store:    redirect.NewJSONStore(cfg.StorePath),
		Gate:     gate,
		Fallback: masker,
		Logger:   logger,
	}
	svc, err := redirect.NewService(opts)
	if err == nil {
		return svc
	}
	logger.Warn().Err(err).Str("path", cfg.StorePath).Msg("shortener routes unreadable, keeping links in memory")
	opts.Store = nil
	svc, _ = redirect.NewService(opts)
	return svc
}

// resolveConfigPath returns the explicit path, or the first existing
// candidate, or "" for built-in defaults.
func resolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", &UsageError{Msg: fmt.Sprintf("config file %s: %v", explicit, errors.Unwrap(err))}
		}
		return explicit, nil
	}
	for _, c := range config.Candidates() {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", nil
}

// Close releases every service in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	if a.Governor != nil {
		a.Governor.Close()
	}
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	if a.Audit != nil {
		errs = append(errs, a.Audit.Close())
	}
	if a.Logs != nil {
		errs = append(errs, a.Logs.Close())
	}
	return errors.Join(errs...)
}
