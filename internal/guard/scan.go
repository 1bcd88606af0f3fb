package guard

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/metrics"
)

// scanFile runs the full pipeline for one file: fingerprint, tiered
// verdict resolution, quarantine for malicious content, ledger append.
// It returns the appended record, or (nil, nil) when the path is already
// being scanned. All per-file failures are contained here; the returned
// error only signals that this file could not be processed.
func (s *GuardService) scanFile(ctx context.Context, path *Path) (*ScanRecord, error) {
	if !s.beginPath(path.String()) {
		s.logger.Debug("scan already in flight for path", "path", path.String())
		return nil, nil
	}
	defer s.endPath(path.String())

	hash, err := s.fingerprint.Hash(path.String())
	if err != nil {
		// Best-effort audit entry: the file stays untouched and the
		// failure must not abort other scans.
		s.logger.Error("fingerprinting failed", "path", path.String(), "error", err)
		s.appendRecord(path, "", scanOutcome{verdict: VerdictUnknown, score: NeutralScore, source: SourceError})
		return nil, fmt.Errorf("hashing %s: %w", path.String(), err)
	}

	outcome, first := s.resolveOutcome(ctx, path, hash)
	if err := ctx.Err(); err != nil {
		// Abandoned mid-scan on shutdown; no record for this file.
		return nil, fmt.Errorf("scan abandoned: %w", err)
	}
	if !first {
		// Another scan of identical content resolved the verdict; reuse
		// it without a second remote call.
		outcome.source = SourceLocal
	}

	if outcome.verdict == VerdictMalicious {
		if qf, qerr := s.quarantine.Quarantine(path.String()); qerr != nil {
			// Quarantine failure does not erase detection; surfaced for
			// manual follow-up.
			s.logger.Error("quarantine failed", "path", path.String(), "error", qerr)
			metrics.RecordQuarantine("failed")
		} else {
			s.logger.Warn("malicious file quarantined", "path", path.String(), "quarantine", qf.QuarantinePath)
			metrics.RecordQuarantine("isolated")
		}
	}

	record := s.appendRecord(path, hash, outcome)
	return record, nil
}

// resolveOutcome determines the verdict for a hash through the tiered
// lookup: in-flight scans of the same content, then the signature cache,
// then the rate-limited remote service. The bool result reports whether
// this call performed the resolution (true) or reused another scan's.
func (s *GuardService) resolveOutcome(ctx context.Context, path *Path, hash string) (scanOutcome, bool) {
	s.inflightMu.Lock()
	if existing, ok := s.inflightHashes[hash]; ok {
		s.inflightMu.Unlock()
		select {
		case <-existing.done:
			return existing.outcome, false
		case <-ctx.Done():
			return scanOutcome{verdict: VerdictUnknown, score: NeutralScore, source: SourceError}, false
		}
	}
	flight := &inflightScan{done: make(chan struct{})}
	s.inflightHashes[hash] = flight
	s.inflightMu.Unlock()

	outcome := s.lookupVerdict(ctx, path, hash)

	flight.outcome = outcome
	close(flight.done)

	s.inflightMu.Lock()
	delete(s.inflightHashes, hash)
	s.inflightMu.Unlock()

	return outcome, true
}

// lookupVerdict checks the signature cache and falls back to the remote
// reputation service under the rate limiter.
func (s *GuardService) lookupVerdict(ctx context.Context, path *Path, hash string) scanOutcome {
	entry, err := s.db.LookupSignature(hash)
	if err != nil {
		s.logger.Error("signature lookup failed", "hash", hash, "error", err)
	}
	if entry != nil {
		verdict := VerdictFromLabel(entry.ThreatLabel)
		s.logger.Debug("signature cache hit", "hash", hash, "verdict", verdict)
		return scanOutcome{verdict: verdict, score: scoreForCachedVerdict(verdict), source: SourceLocal}
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrQuotaExhausted) {
			s.logger.Warn("request quota exhausted, skipping remote lookup", "hash", hash)
			metrics.RecordRateLimitDenial()
			return scanOutcome{verdict: VerdictUnknown, score: NeutralScore, source: SourceRateLimited}
		}
		// Context cancellation while waiting out the spacing interval.
		return scanOutcome{verdict: VerdictUnknown, score: NeutralScore, source: SourceError}
	}

	report, err := s.reputation.Lookup(ctx, hash)
	if err != nil {
		// Remote failures always degrade to Unknown; the pipeline never
		// blocks or invents a verdict. Server-side throttling is logged
		// under its own source so "didn't check" stays distinguishable.
		source := SourceError
		if errors.Is(err, ErrThrottled) {
			source = SourceRateLimited
			metrics.RecordRateLimitDenial()
		}
		s.logger.Error("reputation lookup failed", "hash", hash, "error", err)
		metrics.RecordRemoteLookup("error")
		return scanOutcome{verdict: VerdictUnknown, score: NeutralScore, source: source}
	}

	if err := s.limiter.RecordSuccess(); err != nil {
		s.logger.Error("recording quota consumption failed", "error", err)
	}
	metrics.RecordRemoteLookup("ok")

	verdict := report.Verdict(s.opts.SuspiciousThreshold)
	score := report.SafetyScore()

	if verdict != VerdictSafe {
		err := s.db.UpsertSignature(&SignatureEntry{
			Hash:        hash,
			ThreatLabel: report.ThreatLabel(s.opts.SuspiciousThreshold),
			Source:      string(SourceRemote),
			UpdatedAt:   s.clock.Now(),
		})
		if err != nil {
			s.logger.Error("signature upsert failed", "hash", hash, "error", err)
		}
	}

	return scanOutcome{verdict: verdict, score: score, source: SourceRemote}
}

// appendRecord writes the ledger entry and notifies subscribers. Ledger
// failures are logged and swallowed: the audit trail never fails a scan.
func (s *GuardService) appendRecord(path *Path, hash string, outcome scanOutcome) *ScanRecord {
	var size int64
	if info := path.Info(); info != nil {
		size = info.Size()
	}

	record := &ScanRecord{
		ID:        s.idgen.New(),
		FilePath:  path.String(),
		FileName:  filepath.Base(path.String()),
		FileSize:  size,
		Hash:      hash,
		Verdict:   outcome.verdict,
		Score:     outcome.score,
		Source:    outcome.source,
		CreatedAt: s.clock.Now(),
	}

	if err := s.db.AppendScanLog(record); err != nil {
		s.logger.Error("appending scan record failed", "path", record.FilePath, "error", err)
	}

	metrics.RecordScan(string(record.Verdict), string(record.Source))
	if record.Verdict.IsThreat() {
		metrics.RecordThreat()
	}

	s.publish(record)
	s.logger.Info("scan complete", "file", record.FileName, "verdict", record.Verdict, "score", record.Score, "source", record.Source)
	return record
}

// scoreForCachedVerdict maps a cached verdict to a display score. Cache
// entries carry no detection statistics, so threats score zero and
// anything else is neutral.
func scoreForCachedVerdict(v Verdict) int {
	if v.IsThreat() {
		return 0
	}
	return NeutralScore
}

// beginPath registers a path as actively scanning. Returns false when a
// scan for it is already in flight.
func (s *GuardService) beginPath(path string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflightPaths[path]; ok {
		return false
	}
	s.inflightPaths[path] = struct{}{}
	return true
}

func (s *GuardService) endPath(path string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflightPaths, path)
}
