package fsstore

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// File and directory names inside a document directory:
//
//	documento_{number}_{owner}/
//	  familia_{lastname}.json
//	  seguimiento_{n}/
//	    seguimiento.json
//	    comentarios.json
//	    imagenes/
const (
	ImagesDirName    = "imagenes"
	RecordFileName   = "seguimiento.json"
	CommentsFileName = "comentarios.json"
	FamilyFilePrefix = "familia_"
	familyFileSuffix = ".json"
)

// DocumentDirName returns "documento_{number}_{owner}".
func DocumentDirName(id types.DocumentID) string {
	return types.DocumentPrefix + id.String()
}

// DocumentPath returns the directory of a document under base.
func DocumentPath(base string, id types.DocumentID) string {
	return filepath.Join(base, DocumentDirName(id))
}

// FollowUpPath returns the directory of follow-up n inside a document directory.
func FollowUpPath(documentPath string, n int) string {
	return filepath.Join(documentPath, types.FollowUpName(n))
}

// ImagesPath returns the upload directory of a follow-up directory.
func ImagesPath(followUpPath string) string {
	return filepath.Join(followUpPath, ImagesDirName)
}

// FamilyFileName returns "familia_{lastname}.json".
func FamilyFileName(lastname string) string {
	return FamilyFilePrefix + lastname + familyFileSuffix
}

// parseFollowUpDir returns the ordinal of a "seguimiento_{n}" entry.
func parseFollowUpDir(name string) (int, bool) {
	if !strings.HasPrefix(name, types.FollowUpPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, types.FollowUpPrefix))
	if err != nil {
		return 0, false
	}
	return n, true
}
