package testutil

import (
	"context"
	"sync"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
)

// StubReputationClient serves canned reports from a map keyed by hash.
// Hashes with no entry get a neutral report, mirroring a 404 from the
// real service. Safe for concurrent use.
type StubReputationClient struct {
	mu      sync.Mutex
	reports map[string]*guard.ThreatReport
	err     error
	calls   int
}

func NewStubReputationClient() *StubReputationClient {
	return &StubReputationClient{reports: make(map[string]*guard.ThreatReport)}
}

// SetReport registers the report returned for hash.
func (c *StubReputationClient) SetReport(hash string, report *guard.ThreatReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[hash] = report
}

// SetError makes every Lookup fail with err until cleared.
func (c *StubReputationClient) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Calls returns how many lookups were attempted.
func (c *StubReputationClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *StubReputationClient) Lookup(ctx context.Context, hash string) (*guard.ThreatReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if report, ok := c.reports[hash]; ok {
		return report, nil
	}
	return &guard.ThreatReport{Hash: hash}, nil
}

// MaliciousReport builds a report that classifies as Malicious.
func MaliciousReport(hash string) *guard.ThreatReport {
	return &guard.ThreatReport{Hash: hash, Malicious: 12, Harmless: 3, Undetected: 40, HasAnalysis: true}
}

// SafeReport builds a report that classifies as Safe with a high score.
func SafeReport(hash string) *guard.ThreatReport {
	return &guard.ThreatReport{Hash: hash, Harmless: 60, Undetected: 10, HasAnalysis: true}
}
