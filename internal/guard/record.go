package guard

import "time"

// ScanRecord is the audit entry written for every completed scan.
// Records are immutable once appended and ordered newest first for display.
type ScanRecord struct {
	ID        string
	FilePath  string
	FileName  string
	FileSize  int64
	Hash      string
	Verdict   Verdict
	Score     int
	Source    Source
	CreatedAt time.Time
}

// SignatureEntry is a cached verdict for a content hash.
// At most one entry exists per hash; newer writes replace older ones.
type SignatureEntry struct {
	Hash        string
	ThreatLabel string
	Source      string
	UpdatedAt   time.Time
}

// RateLimitState holds the persisted request counters for the reputation
// service. Window keys identify the UTC calendar day and month the counts
// belong to; a key mismatch on read means the window rolled over.
type RateLimitState struct {
	DayKey        string
	DayCount      int
	MonthKey      string
	MonthCount    int
	LastGrantedAt time.Time
}

// Usage summarizes current quota consumption for display.
type Usage struct {
	DayCount   int
	DayLimit   int
	MonthCount int
	MonthLimit int
}

// DayRemaining returns how many requests are left in the day window.
func (u Usage) DayRemaining() int { return u.DayLimit - u.DayCount }

// MonthRemaining returns how many requests are left in the month window.
func (u Usage) MonthRemaining() int { return u.MonthLimit - u.MonthCount }

// QuarantinedFile describes an isolated copy held in the quarantine store.
type QuarantinedFile struct {
	QuarantinePath string    `json:"quarantine_path"`
	OriginalPath   string    `json:"original_path"`
	Hash           string    `json:"hash"`
	Size           int64     `json:"size"`
	QuarantinedAt  time.Time `json:"quarantined_at"`
}

// SweepSummary reports the outcome of a single directory sweep.
// Errored files are counted separately from scanned ones.
type SweepSummary struct {
	Scanned int
	Threats int
	Errors  int
}
