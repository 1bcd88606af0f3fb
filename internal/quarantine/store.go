// Package quarantine isolates malicious files into a protected directory.
package quarantine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
)

// quarantineExt marks isolated copies so nothing opens them by type.
const quarantineExt = ".wgq"

// metaExt marks the sidecar describing each isolated copy.
const metaExt = ".meta.json"

// FileSystemStore implements guard.QuarantineStore on a dedicated
// directory outside the watched media paths. Each isolated copy is stored
// through the configured encryptor under a collision-free name, next to a
// JSON sidecar recording where it came from:
//
//	<root>/
//	  report.pdf.wgq            (isolated content)
//	  report.pdf.wgq.meta.json  (origin, size, hash, timestamp)
//	  report.pdf-1.wgq          (second file with the same original name)
//	  report.pdf-1.wgq.meta.json
type FileSystemStore struct {
	root      string
	encryptor guard.Encryptor
	logger    guard.Logger
	clock     guard.Clock
}

var _ guard.QuarantineStore = (*FileSystemStore)(nil)

// NewFileSystemStore creates a quarantine store rooted at root.
func NewFileSystemStore(root string, encryptor guard.Encryptor, logger guard.Logger, clock guard.Clock) (*FileSystemStore, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving quarantine root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0700); err != nil {
		return nil, fmt.Errorf("creating quarantine directory: %w", err)
	}
	return &FileSystemStore{
		root:      absRoot,
		encryptor: encryptor,
		logger:    logger,
		clock:     clock,
	}, nil
}

// Quarantine isolates the file at path. Each step is a checkpoint: the
// destination is created collision-free, the content is copied through
// the encryptor, the copy is verified against the source size, and only
// then is the original removed. A failed original removal after a
// verified copy is a logged partial success, never a scan failure.
func (s *FileSystemStore) Quarantine(path string) (*guard.QuarantinedFile, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving source path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("cannot quarantine a directory: %s", absPath)
	}

	dest, destFile, err := s.createDestination(filepath.Base(absPath))
	if err != nil {
		return nil, err
	}

	hash, written, err := s.copyIn(absPath, destFile)
	if err != nil {
		destFile.Close()
		os.Remove(dest)
		return nil, err
	}
	if err := destFile.Close(); err != nil {
		os.Remove(dest)
		return nil, fmt.Errorf("finalizing quarantine copy: %w", err)
	}

	// Verify before the original is touched.
	if written != info.Size() {
		os.Remove(dest)
		return nil, fmt.Errorf("copy verification failed: copied %d bytes, source has %d", written, info.Size())
	}

	qf := &guard.QuarantinedFile{
		QuarantinePath: dest,
		OriginalPath:   absPath,
		Hash:           hash,
		Size:           info.Size(),
		QuarantinedAt:  s.clock.Now(),
	}
	if err := s.writeMeta(qf); err != nil {
		os.Remove(dest)
		return nil, err
	}

	if err := os.Remove(absPath); err != nil {
		// The copy is verified, so the file is duplicated rather than
		// lost. Surfaced for manual follow-up.
		s.logger.Warn("original file removal failed after quarantine copy", "path", absPath, "error", err)
	}

	return qf, nil
}

// Restore copies the isolated file back to its original location and
// removes the quarantine copy. Returns the restored path, which may carry
// a suffix when the original location is occupied again.
func (s *FileSystemStore) Restore(quarantinePath string) (string, error) {
	qf, err := s.readMeta(quarantinePath)
	if err != nil {
		return "", err
	}

	src, err := os.Open(qf.QuarantinePath)
	if err != nil {
		return "", fmt.Errorf("opening quarantined file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(qf.OriginalPath), 0755); err != nil {
		return "", fmt.Errorf("creating restore directory: %w", err)
	}

	restorePath, out, err := exclusiveCreate(qf.OriginalPath)
	if err != nil {
		return "", fmt.Errorf("creating restored file: %w", err)
	}

	written, err := s.encryptor.Decrypt(src, out)
	if err != nil {
		out.Close()
		os.Remove(restorePath)
		return "", fmt.Errorf("restoring content: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(restorePath)
		return "", fmt.Errorf("finalizing restored file: %w", err)
	}

	if written != qf.Size {
		os.Remove(restorePath)
		return "", fmt.Errorf("restore verification failed: wrote %d bytes, expected %d", written, qf.Size)
	}

	if err := s.removeEntry(qf.QuarantinePath); err != nil {
		s.logger.Warn("removing quarantine copy after restore failed", "path", qf.QuarantinePath, "error", err)
	}

	return restorePath, nil
}

// Delete permanently removes an isolated copy and its sidecar.
func (s *FileSystemStore) Delete(quarantinePath string) error {
	if !s.Contains(quarantinePath) {
		return fmt.Errorf("path is not inside quarantine: %s", quarantinePath)
	}
	return s.removeEntry(quarantinePath)
}

// List returns the files currently held in quarantine, by sidecar.
func (s *FileSystemStore) List() ([]*guard.QuarantinedFile, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, "*"+metaExt))
	if err != nil {
		return nil, fmt.Errorf("listing quarantine: %w", err)
	}

	var files []*guard.QuarantinedFile
	for _, metaPath := range matches {
		qf, err := decodeMeta(metaPath)
		if err != nil {
			s.logger.Warn("skipping unreadable quarantine sidecar", "path", metaPath, "error", err)
			continue
		}
		files = append(files, qf)
	}
	return files, nil
}

// Contains reports whether path lies inside the quarantine area.
func (s *FileSystemStore) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Root returns the quarantine directory.
func (s *FileSystemStore) Root() string { return s.root }

// createDestination picks a collision-free destination name and opens it
// exclusively. Two different files sharing an original name never
// overwrite each other.
func (s *FileSystemStore) createDestination(originalName string) (string, *os.File, error) {
	path, f, err := exclusiveCreate(filepath.Join(s.root, originalName+quarantineExt))
	if err != nil {
		return "", nil, fmt.Errorf("creating quarantine destination: %w", err)
	}
	return path, f, nil
}

// copyIn streams the source through the encryptor into dest, hashing the
// plaintext on the way. Returns the content hash and plaintext byte count.
func (s *FileSystemStore) copyIn(srcPath string, dest io.Writer) (string, int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", 0, fmt.Errorf("opening source file: %w", err)
	}
	defer src.Close()

	h := sha256.New()
	written, err := s.encryptor.Encrypt(io.TeeReader(src, h), dest)
	if err != nil {
		return "", written, fmt.Errorf("copying into quarantine: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), written, nil
}

func (s *FileSystemStore) writeMeta(qf *guard.QuarantinedFile) error {
	data, err := json.MarshalIndent(qf, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding quarantine sidecar: %w", err)
	}
	if err := os.WriteFile(qf.QuarantinePath+metaExt, data, 0600); err != nil {
		return fmt.Errorf("writing quarantine sidecar: %w", err)
	}
	return nil
}

func (s *FileSystemStore) readMeta(quarantinePath string) (*guard.QuarantinedFile, error) {
	abs, err := filepath.Abs(quarantinePath)
	if err != nil {
		return nil, fmt.Errorf("resolving quarantine path: %w", err)
	}
	if !s.Contains(abs) {
		return nil, fmt.Errorf("path is not inside quarantine: %s", quarantinePath)
	}
	qf, err := decodeMeta(abs + metaExt)
	if err != nil {
		return nil, err
	}
	// Trust the store layout, not the sidecar content, for the source path.
	qf.QuarantinePath = abs
	return qf, nil
}

func decodeMeta(metaPath string) (*guard.QuarantinedFile, error) {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("reading quarantine sidecar: %w", err)
	}
	var qf guard.QuarantinedFile
	if err := json.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("decoding quarantine sidecar %s: %w", metaPath, err)
	}
	return &qf, nil
}

func (s *FileSystemStore) removeEntry(quarantinePath string) error {
	if err := os.Remove(quarantinePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing quarantined file: %w", err)
	}
	if err := os.Remove(quarantinePath + metaExt); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing quarantine sidecar: %w", err)
	}
	return nil
}

// exclusiveCreate opens path for writing, appending -1, -2, ... before
// the extension until an unoccupied name is found.
func exclusiveCreate(path string) (string, *os.File, error) {
	candidate := path
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)

	for suffix := 1; ; suffix++ {
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil {
			return candidate, f, nil
		}
		if !os.IsExist(err) {
			return "", nil, err
		}
		candidate = stem + "-" + strconv.Itoa(suffix) + ext
	}
}
