package guard

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Options holds the scan policy supplied by the configuration layer.
type Options struct {
	// WatchDirs is the set of directories to observe and sweep.
	WatchDirs []string

	// AllowedExtensions limits scanning to matching file types. Entries
	// are compared case-insensitively and may omit the leading dot.
	AllowedExtensions []string

	// Workers bounds the number of per-file pipelines running at once.
	Workers int

	// SuspiciousThreshold is the suspicious-detection count above which
	// a report without malicious detections is classified Suspicious.
	SuspiciousThreshold int
}

// DefaultAllowedExtensions covers the media types handled by default.
var DefaultAllowedExtensions = []string{".pdf", ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

const defaultWorkers = 4

// GuardService is the orchestration layer that wires the watcher, the
// fingerprinter, the verdict tiers, the quarantine store and the ledger
// into a per-file scan pipeline.
type GuardService struct {
	opts        Options
	allowedExts map[string]struct{}

	db          Database
	limiter     RateLimiter
	reputation  ReputationClient
	quarantine  QuarantineStore
	watcher     Watcher
	fsmgr       FilesystemManager
	fingerprint Fingerprinter
	logger      Logger
	clock       Clock
	idgen       IDGenerator

	// sem bounds concurrent per-file pipelines across sweeps and
	// watcher-driven scans alike.
	sem chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	inflightMu sync.Mutex
	// inflightPaths guarantees one active scan per path.
	inflightPaths map[string]struct{}
	// inflightHashes guarantees one verdict resolution per content hash;
	// later arrivals with the same hash await the first result.
	inflightHashes map[string]*inflightScan

	feedMu sync.Mutex
	subs   map[int]chan *ScanRecord
	nextID int
}

// inflightScan lets scans of identical content share one verdict.
type inflightScan struct {
	done    chan struct{}
	outcome scanOutcome
}

// scanOutcome is the resolved verdict for a single content hash.
type scanOutcome struct {
	verdict Verdict
	score   int
	source  Source
}

// NewGuardService creates a service with the provided dependencies.
func NewGuardService(opts Options, db Database, limiter RateLimiter, reputation ReputationClient, quarantine QuarantineStore, watcher Watcher, fsmgr FilesystemManager, fingerprint Fingerprinter, logger Logger, clock Clock, idgen IDGenerator) *GuardService {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if len(opts.AllowedExtensions) == 0 {
		opts.AllowedExtensions = DefaultAllowedExtensions
	}

	allowed := make(map[string]struct{}, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}

	return &GuardService{
		opts:           opts,
		allowedExts:    allowed,
		db:             db,
		limiter:        limiter,
		reputation:     reputation,
		quarantine:     quarantine,
		watcher:        watcher,
		fsmgr:          fsmgr,
		fingerprint:    fingerprint,
		logger:         logger,
		clock:          clock,
		idgen:          idgen,
		sem:            make(chan struct{}, opts.Workers),
		inflightPaths:  make(map[string]struct{}),
		inflightHashes: make(map[string]*inflightScan),
		subs:           make(map[int]chan *ScanRecord),
	}
}

// allowedFile reports whether the file type is in scope for scanning.
func (s *GuardService) allowedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	_, ok := s.allowedExts[ext]
	return ok
}

// RunOnce sweeps every watched directory through the scan pipeline and
// returns aggregate counts. Individual file failures are contained; the
// summary is produced even when some files errored. Safe to call
// repeatedly and concurrently with a running watcher.
func (s *GuardService) RunOnce(ctx context.Context) (*SweepSummary, error) {
	summary := &SweepSummary{}
	var sumMu sync.Mutex
	var wg sync.WaitGroup

	for _, dir := range s.opts.WatchDirs {
		resolved, err := s.fsmgr.Resolve(dir)
		if err != nil {
			s.logger.Warn("skipping unreadable watch directory", "dir", dir, "error", err)
			continue
		}
		if !resolved.IsDir() {
			s.logger.Warn("watch path is not a directory", "dir", dir)
			continue
		}

		files, err := s.fsmgr.FindFiles(resolved, true)
		if err != nil {
			s.logger.Warn("listing watch directory failed", "dir", dir, "error", err)
			continue
		}

		for _, f := range files {
			if !s.allowedFile(f.String()) {
				continue
			}
			if s.quarantine.Contains(f.String()) {
				continue
			}

			wg.Add(1)
			go func(p *Path) {
				defer wg.Done()

				select {
				case s.sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-s.sem }()

				record, err := s.scanFile(ctx, p)
				sumMu.Lock()
				defer sumMu.Unlock()
				switch {
				case err != nil:
					summary.Errors++
				case record == nil:
					// Duplicate of an active scan; nothing to count.
				default:
					summary.Scanned++
					if record.Verdict.IsThreat() {
						summary.Threats++
					}
				}
			}(f)
		}
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("sweep interrupted: %w", err)
	}

	s.logger.Info("sweep complete", "scanned", summary.Scanned, "threats", summary.Threats, "errors", summary.Errors)
	return summary, nil
}

// Start reconciles the watcher and begins draining its events into the
// worker pool. Calling Start on a running service is a no-op.
func (s *GuardService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if err := s.watcher.Reconcile(s.opts.WatchDirs); err != nil {
		return fmt.Errorf("reconciling watcher: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.dispatch(runCtx)

	s.logger.Info("watching started", "dirs", len(s.opts.WatchDirs), "workers", s.opts.Workers)
	return nil
}

// Stop halts observation and waits for in-flight scans to finish.
// Calling Stop on a stopped service is a no-op.
func (s *GuardService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if err := s.watcher.Reconcile(nil); err != nil {
		s.logger.Warn("stopping watcher observation", "error", err)
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("watching stopped")
}

// dispatch drains watcher events into per-file pipelines. A slow scan
// never stalls detection: events queue in the watcher's bounded channel
// while workers are busy.
func (s *GuardService) dispatch(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-s.watcher.Events():
			if !ok {
				return
			}
			if !s.allowedFile(path) {
				continue
			}
			if s.quarantine.Contains(path) {
				continue
			}

			s.wg.Add(1)
			go func(raw string) {
				defer s.wg.Done()

				select {
				case s.sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-s.sem }()

				resolved, err := s.fsmgr.Resolve(raw)
				if err != nil {
					// Created and removed before we got to it.
					s.logger.Debug("dropping vanished file", "path", raw, "error", err)
					return
				}
				if resolved.IsDir() {
					return
				}
				if _, err := s.scanFile(ctx, resolved); err != nil {
					s.logger.Warn("scan failed", "path", raw, "error", err)
				}
			}(path)
		}
	}
}
