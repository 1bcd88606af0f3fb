package guard

import (
	"context"
	"io"
)

// RateLimiter gates calls to the reputation service.
type RateLimiter interface {
	// Acquire returns nil once a remote call may proceed. It blocks for
	// the minimum inter-request interval when needed and returns
	// ErrQuotaExhausted when the day or month ceiling is already spent,
	// a terminal condition for the current scan rather than a retryable one.
	Acquire(ctx context.Context) error

	// RecordSuccess consumes one unit of day and month quota. Call it
	// only after a remote request actually succeeded.
	RecordSuccess() error

	// Usage returns the current counters and ceilings.
	Usage() (Usage, error)

	// Reset zeroes all counters.
	Reset() error
}

// ReputationClient queries an external service for a hash's reputation.
type ReputationClient interface {
	Lookup(ctx context.Context, hash string) (*ThreatReport, error)
}

// QuarantineStore isolates malicious files into a protected area.
type QuarantineStore interface {
	// Quarantine copies the file into the store with a collision-free
	// name, verifies the copy, then removes the original. A failed
	// original removal after a verified copy is reported as success.
	Quarantine(path string) (*QuarantinedFile, error)

	// Restore copies the isolated file back to its original location and
	// removes the quarantine copy. Returns the restored path.
	Restore(quarantinePath string) (string, error)

	// Delete permanently removes the isolated copy.
	Delete(quarantinePath string) error

	// List returns the files currently held in quarantine.
	List() ([]*QuarantinedFile, error)

	// Contains reports whether path lies inside the quarantine area.
	Contains(path string) bool
}

// Watcher observes directories for newly created files.
type Watcher interface {
	// Reconcile diffs the desired directory set against the currently
	// watched one, stopping and starting observation as needed. Paths
	// that cannot be created or watched are skipped and retried on the
	// next call.
	Reconcile(paths []string) error

	// Events delivers absolute paths of created files. The channel is
	// bounded; events are dropped with a log line when consumers lag.
	Events() <-chan string

	// Close stops all observation and releases the underlying notifier.
	Close() error
}

// Fingerprinter computes a content hash for a file.
type Fingerprinter interface {
	// Hash streams the file and returns its digest as lowercase hex.
	Hash(path string) (string, error)
}

// Encryptor transforms content on the way into and out of quarantine.
type Encryptor interface {
	// Encrypt reads plaintext from r and writes ciphertext to w,
	// returning the number of plaintext bytes consumed.
	Encrypt(r io.Reader, w io.Writer) (int64, error)

	// Decrypt reads ciphertext from r and writes plaintext to w,
	// returning the number of plaintext bytes produced.
	Decrypt(r io.Reader, w io.Writer) (int64, error)
}
