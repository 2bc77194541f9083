package types

import "io"

// DocumentStore manages the document directories and their follow-up slots.
type DocumentStore interface {
	// CreateDocument provisions a document with FollowUpSlots empty
	// follow-ups. Returns ErrAlreadyExists if the document exists and
	// ErrInvalidInput if the identifier is incomplete.
	CreateDocument(id DocumentID) error

	// Provision creates whatever part of the follow-up layout is missing.
	// Idempotent.
	Provision(id DocumentID) error

	// DeleteDocument removes the document and all its follow-ups.
	// Returns ErrNotFound if the document does not exist.
	DeleteDocument(id DocumentID) error

	// DocumentExists reports whether the document directory exists.
	DocumentExists(id DocumentID) (bool, error)

	// ListDocuments returns every document in the store.
	ListDocuments() ([]DocumentID, error)

	// ListFollowUps returns the follow-ups of a document sorted by ordinal.
	ListFollowUps(id DocumentID) ([]FollowUpSummary, error)

	// SaveFamily records the family last name of a document.
	SaveFamily(id DocumentID, lastname string) error

	// LoadFamily returns the family last name, or "" if none was recorded.
	LoadFamily(id DocumentID) (string, error)
}

// RecordStore reads and writes follow-up records.
type RecordStore interface {
	// LoadRecord returns the record of follow-up n, or an empty record if it
	// was never submitted. Returns ErrNotFound if the follow-up directory
	// does not exist.
	LoadRecord(id DocumentID, n int) (Record, error)

	// SaveRecord replaces the record of follow-up n.
	SaveRecord(id DocumentID, n int, r Record) error

	// Submitted reports whether follow-up n has a record.
	Submitted(id DocumentID, n int) (bool, error)
}

// CommentLog stores the append-only comments of a follow-up.
type CommentLog interface {
	// AppendComment stamps and appends a comment, returning the stored entry.
	AppendComment(id DocumentID, n int, userID, text string) (Comment, error)

	// LoadComments returns the comments in append order.
	LoadComments(id DocumentID, n int) ([]Comment, error)
}

// ImageStore stores files uploaded to a follow-up.
type ImageStore interface {
	// SaveImage stores the content under the base name of name and returns
	// the stored name.
	SaveImage(id DocumentID, n int, name string, content io.Reader) (string, error)

	// ListImages returns the stored file names in ascending order.
	ListImages(id DocumentID, n int) ([]string, error)

	// OpenImage opens a stored file. Returns ErrNotFound if it does not exist.
	OpenImage(id DocumentID, n int, name string) (io.ReadCloser, error)
}

// Storage is the complete storage backend.
type Storage interface {
	DocumentStore
	RecordStore
	CommentLog
	ImageStore
}
