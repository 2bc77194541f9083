// Package fsstore implements the filesystem storage backend: one directory
// per document, one subdirectory per follow-up, JSON files for records and
// comments, and an imagenes folder for uploads. The directory tree is the
// only source of truth; nothing is cached between calls.
//
// There is no locking. Records and comment logs are replaced with an atomic
// rename, which keeps readers from seeing partial files but lets the last of
// two concurrent writers win.
package fsstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// Store implements types.Storage over a base directory.
type Store struct {
	base string
	now  func() time.Time
}

var _ types.Storage = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp comments.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open validates config and returns a Store rooted at config.DataDir.
// Returns ErrNotFound if the directory does not exist; a missing base
// directory is a startup failure, not something to repair per request.
func Open(config types.Config, opts ...Option) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	base := config.DataDir
	if base == "" {
		base = "."
	}
	info, err := os.Stat(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: storage directory %s", types.ErrNotFound, base)
		}
		return nil, ioErr("stat storage directory", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", types.ErrInvalidInput, base)
	}

	s := &Store{base: base, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Base returns the storage directory.
func (s *Store) Base() string {
	return s.base
}

func (s *Store) documentPath(id types.DocumentID) string {
	return DocumentPath(s.base, id)
}

// existingDocument validates id and returns its directory, or ErrNotFound.
func (s *Store) existingDocument(id types.DocumentID) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}
	path := s.documentPath(id)
	ok, err := isDir(path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: document %s", types.ErrNotFound, id)
	}
	return path, nil
}

// existingFollowUp returns the directory of follow-up n, or ErrNotFound.
func (s *Store) existingFollowUp(id types.DocumentID, n int) (string, error) {
	if err := types.ValidateFollowUp(n); err != nil {
		return "", err
	}
	docPath, err := s.existingDocument(id)
	if err != nil {
		return "", err
	}
	path := FollowUpPath(docPath, n)
	ok, err := isDir(path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s of document %s", types.ErrNotFound, types.FollowUpName(n), id)
	}
	return path, nil
}

// CreateDocument creates the document directory and provisions its
// follow-ups. The directory is created with a single mkdir, so a duplicate
// request fails before anything is written.
func (s *Store) CreateDocument(id types.DocumentID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	path := s.documentPath(id)
	if err := os.Mkdir(path, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: document %s", types.ErrAlreadyExists, id)
		}
		return ioErr("creating document directory", err)
	}
	return provision(path)
}

// Provision creates any missing follow-up directory, imagenes folder, or
// empty comment log of an existing document. Existing entries are left
// untouched, so running it twice changes nothing.
func (s *Store) Provision(id types.DocumentID) error {
	path, err := s.existingDocument(id)
	if err != nil {
		return err
	}
	return provision(path)
}

func provision(documentPath string) error {
	for n := 1; n <= types.FollowUpSlots; n++ {
		fu := FollowUpPath(documentPath, n)
		if err := os.MkdirAll(ImagesPath(fu), 0o755); err != nil {
			return ioErr("creating "+types.FollowUpName(n), err)
		}
		logPath := CommentLogPath(fu)
		exists, err := fileExists(logPath)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := writeJSONFile(logPath, []types.Comment{}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDocument removes a document and everything under it.
func (s *Store) DeleteDocument(id types.DocumentID) error {
	path, err := s.existingDocument(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return ioErr("removing document", err)
	}
	return nil
}

// DocumentExists reports whether the document directory exists.
func (s *Store) DocumentExists(id types.DocumentID) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, err
	}
	return isDir(s.documentPath(id))
}

// ListDocuments returns the documents under the base directory in directory
// name order. Entries that do not follow the naming convention are skipped.
func (s *Store) ListDocuments() ([]types.DocumentID, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: storage directory %s", types.ErrNotFound, s.base)
		}
		return nil, ioErr("listing documents", err)
	}

	ids := make([]types.DocumentID, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), types.DocumentPrefix) {
			continue
		}
		id, err := types.ParseDocumentID(e.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListFollowUps returns the follow-up directories of a document sorted by
// numeric ordinal, so seguimiento_10 comes after seguimiento_9.
func (s *Store) ListFollowUps(id types.DocumentID) ([]types.FollowUpSummary, error) {
	docPath, err := s.existingDocument(id)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(docPath)
	if err != nil {
		return nil, ioErr("listing follow-ups", err)
	}

	var out []types.FollowUpSummary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, ok := parseFollowUpDir(e.Name())
		if !ok {
			continue
		}
		submitted, err := fileExists(RecordPath(FollowUpPath(docPath, n)))
		if err != nil {
			return nil, err
		}
		out = append(out, types.FollowUpSummary{
			ID:        e.Name(),
			Number:    n,
			Submitted: submitted,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func isDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioErr("stat "+path, err)
	}
	return info.IsDir(), nil
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioErr("stat "+path, err)
	}
	return !info.IsDir(), nil
}
