package guard

import (
	"fmt"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/metrics"
)

// feedBuffer is the slack each subscriber gets beyond the history
// snapshot. Appends to a full subscriber are dropped, not blocked on.
const feedBuffer = 128

// Records returns the full scan history, newest first.
func (s *GuardService) Records(limit int) ([]*ScanRecord, error) {
	return s.db.ListScanLogs(limit)
}

// RecordsByVerdict returns the scan history filtered to one verdict,
// newest first.
func (s *GuardService) RecordsByVerdict(verdict Verdict, limit int) ([]*ScanRecord, error) {
	return s.db.ListScanLogsByVerdict(verdict, limit)
}

// Subscribe returns a live feed of scan records: the current history,
// newest first, followed by every subsequent append. The returned cancel
// function must be called to release the subscription; it closes the
// channel.
func (s *GuardService) Subscribe() (<-chan *ScanRecord, func(), error) {
	history, err := s.db.ListScanLogs(0)
	if err != nil {
		return nil, nil, fmt.Errorf("loading scan history: %w", err)
	}

	ch := make(chan *ScanRecord, len(history)+feedBuffer)
	for _, r := range history {
		ch <- r
	}

	s.feedMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.feedMu.Unlock()

	cancel := func() {
		s.feedMu.Lock()
		defer s.feedMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel, nil
}

// publish fans a freshly appended record out to all subscribers.
func (s *GuardService) publish(record *ScanRecord) {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	for id, sub := range s.subs {
		select {
		case sub <- record:
		default:
			s.logger.Warn("dropping scan record for slow subscriber", "subscriber", id)
		}
	}
}

// ThreatCount returns the number of ledger entries classified as threats,
// the aggregate signal surfaced for alerting.
func (s *GuardService) ThreatCount() (int64, error) {
	return s.db.CountThreats()
}

// IsQuarantined reports whether a path currently sits in quarantine.
func (s *GuardService) IsQuarantined(path string) bool {
	return s.quarantine.Contains(path)
}

// ListQuarantined returns the files currently held in quarantine.
func (s *GuardService) ListQuarantined() ([]*QuarantinedFile, error) {
	return s.quarantine.List()
}

// RestoreQuarantined returns an isolated file to its original location
// and reports the restored path.
func (s *GuardService) RestoreQuarantined(quarantinePath string) (string, error) {
	restored, err := s.quarantine.Restore(quarantinePath)
	if err != nil {
		return "", err
	}
	metrics.RecordQuarantine("restored")
	s.logger.Info("file restored from quarantine", "path", restored)
	return restored, nil
}

// DeleteQuarantined permanently removes an isolated file.
func (s *GuardService) DeleteQuarantined(quarantinePath string) error {
	if err := s.quarantine.Delete(quarantinePath); err != nil {
		return err
	}
	metrics.RecordQuarantine("deleted")
	s.logger.Info("quarantined file deleted", "path", quarantinePath)
	return nil
}

// DeleteRecord removes a single ledger entry. Independent of any file
// deletion performed by the quarantine store.
func (s *GuardService) DeleteRecord(id string) error {
	return s.db.DeleteScanLog(id)
}

// ClearHistory removes every ledger entry.
func (s *GuardService) ClearHistory() error {
	return s.db.ClearScanLogs()
}

// QuotaUsage returns the rate limiter's current counters.
func (s *GuardService) QuotaUsage() (Usage, error) {
	return s.limiter.Usage()
}

// ResetQuota zeroes the rate limiter's counters.
func (s *GuardService) ResetQuota() error {
	return s.limiter.Reset()
}
