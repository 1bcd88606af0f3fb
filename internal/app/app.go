// Package app wires the configured components into a runnable service.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/config"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/database"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/encryption"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/fingerprint"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/fs"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/quarantine"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/ratelimit"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/reputation"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/watch"
)

// GuardApp is the application layer between the CLI and GuardService.
// It constructs all dependencies from config and manages their lifecycle
// on Close.
type GuardApp struct {
	cfg     *config.Config
	db      guard.Database
	watcher guard.Watcher
	service *guard.GuardService
	logFile *os.File
}

// NewGuardApp creates a fully wired GuardApp from the given config.
// operation identifies the CLI command being run (e.g. "Scan", "Watch").
// The caller must call Close when done.
func NewGuardApp(cfg *config.Config, operation string) (*GuardApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID+"/"+operation)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	clock := guard.RealClock{}

	limiter := ratelimit.NewLimiter("reputation", ratelimit.Limits{
		MinInterval: time.Duration(cfg.RateLimit.MinIntervalSeconds) * time.Second,
		PerDay:      cfg.RateLimit.PerDay,
		PerMonth:    cfg.RateLimit.PerMonth,
	}, db, clock, logger)

	client := reputation.NewClient(
		cfg.Reputation.BaseURL,
		cfg.Reputation.APIKey,
		time.Duration(cfg.Reputation.TimeoutSeconds)*time.Second,
		logger,
	)

	encryptor, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	qstore, err := quarantine.NewFileSystemStore(cfg.Quarantine.Dir, encryptor, logger, clock)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating quarantine store: %w", err)
	}

	watcher, err := watch.NewFSWatcher(cfg.Scanner.EventQueueSize, logger, clock)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	service := guard.NewGuardService(guard.Options{
		WatchDirs:           cfg.Scanner.WatchDirs,
		AllowedExtensions:   cfg.Scanner.AllowedExtensions,
		Workers:             cfg.Scanner.Workers,
		SuspiciousThreshold: cfg.Reputation.SuspiciousThreshold,
	}, db, limiter, client, qstore, watcher, fs.NewOSFilesystemManager(),
		fingerprint.NewSHA256(), logger, clock, guard.UUIDGenerator{})

	return &GuardApp{
		cfg:     cfg,
		db:      db,
		watcher: watcher,
		service: service,
		logFile: logFile,
	}, nil
}

// Service returns the wired scan orchestrator.
func (a *GuardApp) Service() *guard.GuardService { return a.service }

// Config returns the config the app was built from.
func (a *GuardApp) Config() *config.Config { return a.cfg }

// Close stops watching and releases the database and log file.
func (a *GuardApp) Close() error {
	a.service.Stop()

	var firstErr error
	if err := a.watcher.Close(); err != nil {
		firstErr = err
	}
	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.logFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
