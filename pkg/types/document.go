package types

import (
	"fmt"
	"strconv"
	"strings"
)

// FollowUpSlots is the number of follow-ups provisioned for every document.
const FollowUpSlots = 8

// FollowUpPrefix is the prefix of a follow-up directory and of the
// follow-up identifiers used in URLs ("seguimiento_3").
const FollowUpPrefix = "seguimiento_"

// DocumentPrefix is the prefix of a document directory name.
const DocumentPrefix = "documento_"

// DocumentID identifies a document by its number and owning user. Its
// string form "{number}_{owner}" is the folder key used in URLs.
type DocumentID struct {
	Number string `json:"doc_number"`
	Owner  string `json:"doc_adviser"`
}

// String returns the folder key "{number}_{owner}".
func (id DocumentID) String() string {
	return id.Number + "_" + id.Owner
}

// Validate rejects identifiers that cannot be mapped onto a single directory
// name. The owner is the segment after the last underscore, so it may not
// contain one.
func (id DocumentID) Validate() error {
	if err := ValidateOwner(id.Owner); err != nil {
		return err
	}
	if strings.TrimSpace(id.Number) == "" {
		return fmt.Errorf("%w: document number is required", ErrInvalidInput)
	}
	if strings.ContainsAny(id.Number, `/\`) {
		return fmt.Errorf("%w: %q is not a valid path segment", ErrInvalidInput, id.Number)
	}
	return nil
}

// ValidateOwner checks that a user id can own documents: it must be
// non-blank and free of '_' and path separators.
func ValidateOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if strings.Contains(owner, "_") {
		return fmt.Errorf("%w: owner %q must not contain '_'", ErrInvalidInput, owner)
	}
	if strings.ContainsAny(owner, `/\`) {
		return fmt.Errorf("%w: %q is not a valid path segment", ErrInvalidInput, owner)
	}
	return nil
}

// ValidateFamilyName checks that a family last name can be embedded in the
// familia_{lastname}.json file name.
func ValidateFamilyName(lastname string) error {
	lastname = strings.TrimSpace(lastname)
	if lastname == "" || strings.ContainsAny(lastname, `/\`) || strings.HasPrefix(lastname, ".") {
		return fmt.Errorf("%w: invalid family name %q", ErrInvalidInput, lastname)
	}
	return nil
}

// ParseDocumentID parses a folder key ("2024-01_user7") or a full directory
// name ("documento_2024-01_user7"). The owner is everything after the last
// underscore.
func ParseDocumentID(folder string) (DocumentID, error) {
	key := strings.TrimPrefix(strings.TrimSpace(folder), DocumentPrefix)
	i := strings.LastIndex(key, "_")
	if i <= 0 || i == len(key)-1 {
		return DocumentID{}, fmt.Errorf("%w: malformed document folder %q", ErrInvalidInput, folder)
	}
	id := DocumentID{Number: key[:i], Owner: key[i+1:]}
	if err := id.Validate(); err != nil {
		return DocumentID{}, err
	}
	return id, nil
}

// ParseFollowUp accepts "seguimiento_3" or "3" and returns the ordinal. It
// does not check the range; see ValidateFollowUp.
func ParseFollowUp(s string) (int, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), FollowUpPrefix)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed follow-up %q", ErrInvalidInput, s)
	}
	return n, nil
}

// ValidateFollowUp checks that n is one of the provisioned ordinals.
func ValidateFollowUp(n int) error {
	if n < 1 || n > FollowUpSlots {
		return fmt.Errorf("%w: follow-up %d out of range 1..%d", ErrInvalidInput, n, FollowUpSlots)
	}
	return nil
}

// FollowUpName returns the directory and URL name of follow-up n.
func FollowUpName(n int) string {
	return FollowUpPrefix + strconv.Itoa(n)
}

// FollowUpSummary is the dashboard view of one follow-up.
type FollowUpSummary struct {
	ID        string `json:"id"`
	Number    int    `json:"numero"`
	Submitted bool   `json:"enviado"`
}

// Document is a document visible to a requester together with the status of
// its follow-ups, ordered by ascending ordinal.
type Document struct {
	DocumentID
	Folder    string            `json:"folder"`
	Family    string            `json:"familia,omitempty"`
	FollowUps []FollowUpSummary `json:"seguimientos"`
}

// FollowUpView aggregates everything shown for a single follow-up.
type FollowUpView struct {
	Folder    string    `json:"folder"`
	Number    int       `json:"numero"`
	Submitted bool      `json:"enviado"`
	Images    []string  `json:"imagenes"`
	Record    Record    `json:"datos"`
	Comments  []Comment `json:"comentarios"`
}
