package fsstore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// RecordPath returns the data file of a follow-up directory.
func RecordPath(followUpPath string) string {
	return filepath.Join(followUpPath, RecordFileName)
}

// LoadRecordFile reads the record of a follow-up directory. A follow-up that
// was never submitted has no data file and yields an empty record.
func LoadRecordFile(followUpPath string) (types.Record, error) {
	var r types.Record
	if err := readJSONFile(RecordPath(followUpPath), &r); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.EmptyRecord(), nil
		}
		return types.Record{}, err
	}
	return r.Normalize(), nil
}

// SaveRecordFile replaces the record of a follow-up directory in full.
func SaveRecordFile(followUpPath string, r types.Record) error {
	return writeJSONFile(RecordPath(followUpPath), r.Normalize())
}

// LoadRecord implements types.RecordStore.
func (s *Store) LoadRecord(id types.DocumentID, n int) (types.Record, error) {
	path, err := s.existingFollowUp(id, n)
	if err != nil {
		return types.Record{}, err
	}
	return LoadRecordFile(path)
}

// SaveRecord implements types.RecordStore. The follow-up directory is
// recreated if it went missing from an existing document.
func (s *Store) SaveRecord(id types.DocumentID, n int, r types.Record) error {
	if err := types.ValidateFollowUp(n); err != nil {
		return err
	}
	docPath, err := s.existingDocument(id)
	if err != nil {
		return err
	}
	path := FollowUpPath(docPath, n)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return ioErr("creating "+types.FollowUpName(n), err)
	}
	return SaveRecordFile(path, r)
}

// Submitted implements types.RecordStore.
func (s *Store) Submitted(id types.DocumentID, n int) (bool, error) {
	path, err := s.existingFollowUp(id, n)
	if err != nil {
		return false, err
	}
	return fileExists(RecordPath(path))
}
