package fsstore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// familyJSON is the content of familia_{lastname}.json.
type familyJSON struct {
	DocNumber string `json:"doc_number"`
	Apellido  string `json:"apellido"`
}

// SaveFamily implements types.DocumentStore.
func (s *Store) SaveFamily(id types.DocumentID, lastname string) error {
	lastname = strings.TrimSpace(lastname)
	if err := types.ValidateFamilyName(lastname); err != nil {
		return err
	}
	docPath, err := s.existingDocument(id)
	if err != nil {
		return err
	}
	return writeJSONFile(filepath.Join(docPath, FamilyFileName(lastname)), familyJSON{
		DocNumber: id.Number,
		Apellido:  lastname,
	})
}

// LoadFamily implements types.DocumentStore. When several family files
// exist the first in name order wins.
func (s *Store) LoadFamily(id types.DocumentID) (string, error) {
	docPath, err := s.existingDocument(id)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(docPath)
	if err != nil {
		return "", ioErr("listing document", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, FamilyFilePrefix) || !strings.HasSuffix(name, familyFileSuffix) {
			continue
		}
		var fam familyJSON
		if err := readJSONFile(filepath.Join(docPath, name), &fam); err == nil && fam.Apellido != "" {
			return fam.Apellido, nil
		}
		return strings.TrimSuffix(strings.TrimPrefix(name, FamilyFilePrefix), familyFileSuffix), nil
	}
	return "", nil
}
