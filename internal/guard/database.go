package guard

// Database provides an interface for the durable stores: the signature
// cache, the scan log ledger, and the rate limiter counters. All methods
// must be safe for concurrent calls from multiple in-flight scans.
type Database interface {
	// Signature cache operations

	// LookupSignature returns the cached entry for a hash, or nil when
	// the hash has never been cached.
	LookupSignature(hash string) (*SignatureEntry, error)

	// UpsertSignature inserts or replaces the entry for entry.Hash.
	// Last write wins.
	UpsertSignature(entry *SignatureEntry) error

	// Scan log ledger operations

	// AppendScanLog inserts a completed scan record.
	AppendScanLog(record *ScanRecord) error

	// ListScanLogs returns records newest first. limit <= 0 means all.
	ListScanLogs(limit int) ([]*ScanRecord, error)

	// ListScanLogsByVerdict returns records with the given verdict,
	// newest first. limit <= 0 means all.
	ListScanLogsByVerdict(verdict Verdict, limit int) ([]*ScanRecord, error)

	// DeleteScanLog removes a single record by ID.
	DeleteScanLog(id string) error

	// ClearScanLogs removes every record.
	ClearScanLogs() error

	// CountThreats returns the number of records whose verdict is a threat.
	CountThreats() (int64, error)

	// Rate limiter state operations

	// LoadRateLimitState returns the persisted counters for a limiter
	// name, or nil when none have been saved yet.
	LoadRateLimitState(name string) (*RateLimitState, error)

	// SaveRateLimitState persists the counters for a limiter name,
	// replacing any previous state.
	SaveRateLimitState(name string, state *RateLimitState) error

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// Close closes the database connection.
	Close() error
}
