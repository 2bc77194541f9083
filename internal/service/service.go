// Package service implements the document and follow-up operations behind
// the HTTP handlers and the CLI. It applies the access policy, merges the
// views the callers need from the storage primitives, and records a metric
// and a log line for every storage call.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mesh-intelligence/seguimientos/internal/logger"
	"github.com/mesh-intelligence/seguimientos/internal/metrics"
	"github.com/mesh-intelligence/seguimientos/internal/report"
	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// Service exposes the document operations for an authenticated requester.
type Service struct {
	store   types.Storage
	policy  AccessPolicy
	metrics *metrics.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records storage metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides the clock used for report file names and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service over store.
func New(store types.Storage, policy AccessPolicy, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: policy,
		log:    logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the access policy in force.
func (s *Service) Policy() AccessPolicy {
	return s.policy
}

// observe runs one storage call and records its outcome.
func (s *Service) observe(ctx context.Context, op string, id types.DocumentID, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordStorageOperation(op, err, d)
	}
	s.log.WithContext(ctx).LogStoreOperation(op, id.String(), d, err)
	return err
}

// ListVisible returns the documents who may see, each with its follow-ups
// in ascending ordinal order.
func (s *Service) ListVisible(ctx context.Context, who types.Identity) ([]types.Document, error) {
	if who.UserID == "" {
		return nil, types.ErrNotAuthenticated
	}

	var ids []types.DocumentID
	if err := s.observe(ctx, "list_documents", types.DocumentID{}, func() (err error) {
		ids, err = s.store.ListDocuments()
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SetDocuments(len(ids))
	}

	docs := make([]types.Document, 0, len(ids))
	for _, id := range ids {
		if !s.policy.CanAccess(who, id) {
			continue
		}
		doc, err := s.document(ctx, id)
		if errors.Is(err, types.ErrNotFound) {
			// Deleted after the listing.
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Document returns one document with its follow-ups.
func (s *Service) Document(ctx context.Context, who types.Identity, id types.DocumentID) (types.Document, error) {
	if err := s.policy.authorize(who, id); err != nil {
		return types.Document{}, err
	}
	return s.document(ctx, id)
}

func (s *Service) document(ctx context.Context, id types.DocumentID) (types.Document, error) {
	doc := types.Document{DocumentID: id, Folder: id.String()}
	if err := s.observe(ctx, "list_follow_ups", id, func() (err error) {
		doc.FollowUps, err = s.store.ListFollowUps(id)
		return err
	}); err != nil {
		return types.Document{}, fmt.Errorf("failed to list follow-ups of %s: %w", id, err)
	}
	if err := s.observe(ctx, "load_family", id, func() (err error) {
		doc.Family, err = s.store.LoadFamily(id)
		return err
	}); err != nil {
		return types.Document{}, fmt.Errorf("failed to load family of %s: %w", id, err)
	}
	return doc, nil
}

// CreateDocument creates a document owned by who and provisions its
// follow-ups. A non-empty lastname is recorded as the family name.
func (s *Service) CreateDocument(ctx context.Context, who types.Identity, number, lastname string) (types.Document, error) {
	if who.UserID == "" {
		return types.Document{}, types.ErrNotAuthenticated
	}
	id := types.DocumentID{Number: strings.TrimSpace(number), Owner: who.UserID}
	lastname = strings.TrimSpace(lastname)
	if lastname != "" {
		if err := types.ValidateFamilyName(lastname); err != nil {
			return types.Document{}, err
		}
	}

	if err := s.observe(ctx, "create_document", id, func() error {
		return s.store.CreateDocument(id)
	}); err != nil {
		return types.Document{}, fmt.Errorf("failed to create document: %w", err)
	}
	if lastname != "" {
		if err := s.observe(ctx, "save_family", id, func() error {
			return s.store.SaveFamily(id, lastname)
		}); err != nil {
			// Leave no partial document behind.
			if derr := s.store.DeleteDocument(id); derr != nil {
				s.log.WithContext(ctx).Error().Err(derr).
					Str("document", id.String()).
					Msg("rollback of partially created document failed")
			}
			return types.Document{}, fmt.Errorf("failed to save family: %w", err)
		}
	}

	s.log.WithContext(ctx).Info().
		Str("document", id.String()).
		Str("user", who.UserID).
		Msg("document created")
	return s.document(ctx, id)
}

// ProvisionDocument repairs the follow-up layout of an existing document.
func (s *Service) ProvisionDocument(ctx context.Context, who types.Identity, id types.DocumentID) error {
	if err := s.policy.authorize(who, id); err != nil {
		return err
	}
	if err := s.observe(ctx, "provision", id, func() error {
		return s.store.Provision(id)
	}); err != nil {
		return fmt.Errorf("failed to provision document: %w", err)
	}
	return nil
}

// DeleteDocument removes a document and all its follow-ups.
func (s *Service) DeleteDocument(ctx context.Context, who types.Identity, id types.DocumentID) error {
	if err := s.policy.authorize(who, id); err != nil {
		return err
	}
	if err := s.observe(ctx, "delete_document", id, func() error {
		return s.store.DeleteDocument(id)
	}); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	s.log.WithContext(ctx).Info().
		Str("document", id.String()).
		Str("user", who.UserID).
		Msg("document deleted")
	return nil
}

// FollowUp returns the detail view of follow-up n: its record, comments
// (embedded legacy comments first, then the comment log) and images.
func (s *Service) FollowUp(ctx context.Context, who types.Identity, id types.DocumentID, n int) (types.FollowUpView, error) {
	record, submitted, err := s.Record(ctx, who, id, n)
	if err != nil {
		return types.FollowUpView{}, err
	}

	var logged []types.Comment
	if err := s.observe(ctx, "load_comments", id, func() (err error) {
		logged, err = s.store.LoadComments(id, n)
		return err
	}); err != nil {
		return types.FollowUpView{}, fmt.Errorf("failed to load comments: %w", err)
	}

	var images []string
	if err := s.observe(ctx, "list_images", id, func() (err error) {
		images, err = s.store.ListImages(id, n)
		return err
	}); err != nil {
		return types.FollowUpView{}, fmt.Errorf("failed to list images: %w", err)
	}

	comments := make([]types.Comment, 0, len(record.Comentarios)+len(logged))
	comments = append(comments, record.Comentarios...)
	comments = append(comments, logged...)
	record.Comentarios = nil

	return types.FollowUpView{
		Folder:    id.String(),
		Number:    n,
		Submitted: submitted,
		Images:    images,
		Record:    record,
		Comments:  comments,
	}, nil
}

// Record returns the stored record of follow-up n and whether it was
// submitted. A follow-up that was never submitted yields an empty record.
func (s *Service) Record(ctx context.Context, who types.Identity, id types.DocumentID, n int) (types.Record, bool, error) {
	if err := s.policy.authorize(who, id); err != nil {
		return types.Record{}, false, err
	}
	var (
		record    types.Record
		submitted bool
	)
	if err := s.observe(ctx, "load_record", id, func() (err error) {
		if record, err = s.store.LoadRecord(id, n); err != nil {
			return err
		}
		submitted, err = s.store.Submitted(id, n)
		return err
	}); err != nil {
		return types.Record{}, false, fmt.Errorf("failed to load %s: %w", types.FollowUpName(n), err)
	}
	return record, submitted, nil
}

// SaveFollowUp replaces the record of follow-up n. Comments embedded in the
// stored record are carried over when r has none.
func (s *Service) SaveFollowUp(ctx context.Context, who types.Identity, id types.DocumentID, n int, r types.Record) error {
	if err := s.policy.authorize(who, id); err != nil {
		return err
	}
	if err := s.observe(ctx, "save_record", id, func() error {
		existing, err := s.store.LoadRecord(id, n)
		if err != nil {
			return err
		}
		if len(r.Comentarios) == 0 {
			r.Comentarios = existing.Comentarios
		}
		return s.store.SaveRecord(id, n, r)
	}); err != nil {
		return fmt.Errorf("failed to save %s: %w", types.FollowUpName(n), err)
	}
	s.log.WithContext(ctx).Info().
		Str("document", id.String()).
		Int("follow_up", n).
		Str("user", who.UserID).
		Msg("follow-up saved")
	return nil
}

// AddComment appends a comment by who to follow-up n.
func (s *Service) AddComment(ctx context.Context, who types.Identity, id types.DocumentID, n int, text string) (types.Comment, error) {
	if err := s.policy.authorize(who, id); err != nil {
		return types.Comment{}, err
	}
	var c types.Comment
	if err := s.observe(ctx, "append_comment", id, func() (err error) {
		c, err = s.store.AppendComment(id, n, who.UserID, strings.TrimSpace(text))
		return err
	}); err != nil {
		return types.Comment{}, fmt.Errorf("failed to add comment: %w", err)
	}
	return c, nil
}

// Upload is one file received for a follow-up.
type Upload struct {
	Name    string
	Content io.Reader
}

// UploadImages stores files under the images folder of follow-up n and
// returns the stored names. It stops at the first failure; files stored
// before it stay.
func (s *Service) UploadImages(ctx context.Context, who types.Identity, id types.DocumentID, n int, files []Upload) ([]string, error) {
	if err := s.policy.authorize(who, id); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files received", types.ErrInvalidInput)
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		var name string
		if err := s.observe(ctx, "save_image", id, func() (err error) {
			name, err = s.store.SaveImage(id, n, f.Name, f.Content)
			return err
		}); err != nil {
			return names, fmt.Errorf("failed to store %q: %w", f.Name, err)
		}
		names = append(names, name)
	}
	return names, nil
}

// OpenImage opens an uploaded file of follow-up n.
func (s *Service) OpenImage(ctx context.Context, who types.Identity, id types.DocumentID, n int, name string) (io.ReadCloser, error) {
	if err := s.policy.authorize(who, id); err != nil {
		return nil, err
	}
	var rc io.ReadCloser
	if err := s.observe(ctx, "open_image", id, func() (err error) {
		rc, err = s.store.OpenImage(id, n, name)
		return err
	}); err != nil {
		return nil, err
	}
	return rc, nil
}

// RenderReport writes the PDF report of follow-up n to w and returns its
// file name.
func (s *Service) RenderReport(ctx context.Context, who types.Identity, id types.DocumentID, n int, w io.Writer) (string, error) {
	record, _, err := s.Record(ctx, who, id, n)
	if err != nil {
		return "", err
	}
	var family string
	if err := s.observe(ctx, "load_family", id, func() (err error) {
		family, err = s.store.LoadFamily(id)
		return err
	}); err != nil {
		return "", fmt.Errorf("failed to load family: %w", err)
	}

	now := s.now()
	header := report.Header{Document: id, Family: family, FollowUp: n}
	if err := report.Render(w, header, record, now); err != nil {
		return "", err
	}
	return report.Filename(record, now), nil
}
