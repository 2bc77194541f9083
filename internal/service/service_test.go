package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/seguimientos/internal/fsstore"
	"github.com/mesh-intelligence/seguimientos/internal/metrics"
	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

var (
	owner = types.Identity{UserID: "user7", Name: "Usuario 7", Role: types.RoleAdmin}
	other = types.Identity{UserID: "1002", Name: "Otro", Role: types.RoleAdmin}
	super = types.Identity{UserID: "administrador", Name: "Administrador", Role: types.RoleSuperadmin}
	docID = types.DocumentID{Number: "2024-01", Owner: "user7"}
)

type fixture struct {
	svc     *Service
	store   *fsstore.Store
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 3, 15, 14, 5, 9, 0, time.UTC) }
	store, err := fsstore.Open(types.Config{Backend: types.BackendFilesystem, DataDir: t.TempDir()}, fsstore.WithClock(clock))
	require.NoError(t, err)
	m := metrics.New()
	return fixture{
		svc:     New(store, DefaultPolicy(), WithMetrics(m), WithClock(clock)),
		store:   store,
		metrics: m,
	}
}

func TestAccessPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.CanAccess(owner, docID))
	assert.False(t, p.CanAccess(other, docID))
	assert.True(t, p.CanAccess(super, docID))
	assert.False(t, p.CanAccess(types.Identity{}, docID))

	custom := AccessPolicy{ElevatedRoles: []string{"auditor"}}
	assert.True(t, custom.CanAccess(types.Identity{UserID: "x", Role: "auditor"}, docID))
	assert.False(t, custom.CanAccess(super, docID))
}

func TestCreateAndListVisible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.CreateDocument(ctx, owner, " 2024-01 ", "Pérez")
	require.NoError(t, err)
	assert.Equal(t, docID, doc.DocumentID)
	assert.Equal(t, "2024-01_user7", doc.Folder)
	assert.Equal(t, "Pérez", doc.Family)
	require.Len(t, doc.FollowUps, types.FollowUpSlots)

	_, err = f.svc.CreateDocument(ctx, other, "77", "")
	require.NoError(t, err)

	mine, err := f.svc.ListVisible(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, docID, mine[0].DocumentID)

	all, err := f.svc.ListVisible(ctx, super)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.DocumentsTotal))

	_, err = f.svc.ListVisible(ctx, types.Identity{})
	assert.ErrorIs(t, err, types.ErrNotAuthenticated)
}

func TestCreateDocumentTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateDocument(ctx, owner, "2024-01", "")
	require.NoError(t, err)
	_, err = f.svc.CreateDocument(ctx, owner, "2024-01", "")
	assert.ErrorIs(t, err, types.ErrAlreadyExists)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StorageOperationsTotal.WithLabelValues("create_document", metrics.StatusError)))
}

func TestCreateDocumentBadFamilyNameLeavesNoTrace(t *testing.T) {
	for _, lastname := range []string{"a/b", "..x", ".x", `a\b`} {
		t.Run(lastname, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.svc.CreateDocument(ctx, owner, "2024-01", lastname)
			require.ErrorIs(t, err, types.ErrInvalidInput)

			entries, err := os.ReadDir(f.store.Base())
			require.NoError(t, err)
			assert.Empty(t, entries)

			doc, err := f.svc.CreateDocument(ctx, owner, "2024-01", "Perez")
			require.NoError(t, err)
			assert.Equal(t, "Perez", doc.Family)
		})
	}
}

// failingFamilyStore fails every SaveFamily call.
type failingFamilyStore struct {
	*fsstore.Store
}

func (failingFamilyStore) SaveFamily(types.DocumentID, string) error {
	return fmt.Errorf("%w: disk full", types.ErrIO)
}

func TestCreateDocumentRollsBackWhenFamilyWriteFails(t *testing.T) {
	f := newFixture(t)
	svc := New(failingFamilyStore{f.store}, DefaultPolicy())

	_, err := svc.CreateDocument(context.Background(), owner, "2024-01", "Perez")
	require.ErrorIs(t, err, types.ErrIO)

	entries, err := os.ReadDir(f.store.Base())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// vanishingStore reports one document in the listing that is gone by the
// time its follow-ups are read.
type vanishingStore struct {
	*fsstore.Store
	gone types.DocumentID
}

func (s vanishingStore) ListDocuments() ([]types.DocumentID, error) {
	ids, err := s.Store.ListDocuments()
	return append(ids, s.gone), err
}

func TestListVisibleSkipsDocumentDeletedDuringListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateDocument(ctx, owner, "2024-01", "")
	require.NoError(t, err)

	svc := New(vanishingStore{Store: f.store, gone: types.DocumentID{Number: "99", Owner: "user7"}}, DefaultPolicy())
	docs, err := svc.ListVisible(ctx, super)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, docID, docs[0].DocumentID)
}

func TestCreateDocumentRequiresNumber(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateDocument(context.Background(), owner, "  ", "")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestForeignDocumentIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateDocument(ctx, owner, "2024-01", "")
	require.NoError(t, err)

	_, err = f.svc.FollowUp(ctx, other, docID, 1)
	assert.ErrorIs(t, err, types.ErrForbidden)
	err = f.svc.SaveFollowUp(ctx, other, docID, 1, types.Record{Objetivo: "x"})
	assert.ErrorIs(t, err, types.ErrForbidden)
	_, err = f.svc.AddComment(ctx, other, docID, 1, "hola")
	assert.ErrorIs(t, err, types.ErrForbidden)
	assert.ErrorIs(t, f.svc.DeleteDocument(ctx, other, docID), types.ErrForbidden)

	ok, err := f.store.Submitted(docID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.svc.SaveFollowUp(ctx, super, docID, 1, types.Record{Objetivo: "x"}))
}

func TestFollowUpView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateDocument(ctx, owner, "2024-01", "")
	require.NoError(t, err)

	view, err := f.svc.FollowUp(ctx, owner, docID, 2)
	require.NoError(t, err)
	assert.False(t, view.Submitted)
	assert.Equal(t, types.EmptyRecord(), view.Record)
	assert.Empty(t, view.Comments)
	assert.Empty(t, view.Images)

	require.NoError(t, f.svc.SaveFollowUp(ctx, owner, docID, 2, types.Record{Objetivo: "Reduce dropout"}))
	_, err = f.svc.AddComment(ctx, owner, docID, 2, "  primera visita  ")
	require.NoError(t, err)
	_, err = f.svc.UploadImages(ctx, owner, docID, 2, []Upload{{Name: "foto.png", Content: strings.NewReader("png")}})
	require.NoError(t, err)

	view, err = f.svc.FollowUp(ctx, owner, docID, 2)
	require.NoError(t, err)
	assert.True(t, view.Submitted)
	assert.Equal(t, 2, view.Number)
	assert.Equal(t, "Reduce dropout", view.Record.Objetivo)
	assert.Equal(t, []string{"foto.png"}, view.Images)
	require.Len(t, view.Comments, 1)
	assert.Equal(t, types.Comment{Fecha: "2024-03-15T14:05:09.000000", Usuario: "user7", Comentario: "primera visita"}, view.Comments[0])
}

func TestFollowUpViewMergesEmbeddedComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateDocument(ctx, owner, "2024-01", "")
	require.NoError(t, err)

	legacy := types.Comment{Fecha: "2023-01-01T00:00:00.000000", Usuario: "old", Comentario: "legacy"}
	require.NoError(t, f.store.SaveRecord(docID, 1, types.Record{Comentarios: []types.Comment{legacy}}))
	_, err = f.svc.AddComment(ctx, owner, docID, 1, "new")
	require.NoError(t, err)

	view, err := f.svc.FollowUp(ctx, owner, docID, 1)
	require.NoError(t, err)
	require.Len(t, view.Comments, 2)
	assert.Equal(t, "legacy", view.Comments[0].Comentario)
	assert.Equal(t, "new", view.Comments[1].Comentario)
	assert.Nil(t, view.Record.Comentarios)
}

func TestSaveFollowUpPreservesEmbeddedComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateDocument(ctx, owner, "2024-01", "")
	require.NoError(t, err)

	legacy := []types.Comment{{Fecha: "f", Usuario: "u", Comentario: "keep"}}
	require.NoError(t, f.store.SaveRecord(docID, 4, types.Record{Objetivo: "v1", Comentarios: legacy}))

	require.NoError(t, f.svc.SaveFollowUp(ctx, owner, docID, 4, types.Record{Objetivo: "v2"}))

	got, err := f.store.LoadRecord(docID, 4)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Objetivo)
	assert.Equal(t, legacy, got.Comentarios)
}

func TestSaveFollowUpOutOfRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateDocument(ctx, owner, "2024-01", "")
	require.NoError(t, err)

	err = f.svc.SaveFollowUp(ctx, owner, docID, 9, types.Record{})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	err = f.svc.SaveFollowUp(ctx, owner, types.DocumentID{Number: "nope", Owner: "user7"}, 1, types.Record{})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUploadAndOpenImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateDocument(ctx, owner, "2024-01", "")
	require.NoError(t, err)

	_, err = f.svc.UploadImages(ctx, owner, docID, 1, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	names, err := f.svc.UploadImages(ctx, owner, docID, 1, []Upload{
		{Name: "a.png", Content: strings.NewReader("A")},
		{Name: "..", Content: strings.NewReader("B")},
	})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Equal(t, []string{"a.png"}, names)

	rc, err := f.svc.OpenImage(ctx, owner, docID, 1, "a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))

	_, err = f.svc.OpenImage(ctx, other, docID, 1, "a.png")
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestDeleteDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateDocument(ctx, owner, "2024-01", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteDocument(ctx, owner, docID))
	_, err = os.Stat(filepath.Join(f.store.Base(), "documento_2024-01_user7"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.ErrorIs(t, f.svc.DeleteDocument(ctx, owner, docID), types.ErrNotFound)
}

func TestProvisionDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateDocument(ctx, owner, "2024-01", "")
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(f.store.Base(), "documento_2024-01_user7", "seguimiento_8")))

	require.NoError(t, f.svc.ProvisionDocument(ctx, owner, docID))
	doc, err := f.svc.Document(ctx, owner, docID)
	require.NoError(t, err)
	assert.Len(t, doc.FollowUps, types.FollowUpSlots)
}

func TestRenderReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateDocument(ctx, owner, "2024-01", "Pérez")
	require.NoError(t, err)
	require.NoError(t, f.svc.SaveFollowUp(ctx, owner, docID, 3, types.Record{Fecha: "2024-03-15", Objetivo: "Reduce dropout"}))

	var buf bytes.Buffer
	name, err := f.svc.RenderReport(ctx, owner, docID, 3, &buf)
	require.NoError(t, err)
	assert.Equal(t, "reporte_20240315_140509.pdf", name)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	_, err = f.svc.RenderReport(ctx, other, docID, 3, io.Discard)
	assert.ErrorIs(t, err, types.ErrForbidden)
}
