package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"docvault-backend/internal/shared/auth"
)

// fakeStore records object-store calls and can be programmed to fail.
type fakeStore struct {
	objects      map[string]string
	failUpload   bool
	failDelete   bool
	uploads      []string
	deletes      []string
	signedCalls  []string
	urlForKey    func(key string) string
	uploadErrMsg string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]string{}}
}

func (f *fakeStore) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	if f.failUpload {
		msg := f.uploadErrMsg
		if msg == "" {
			msg = "upload refused"
		}
		return "", errors.New(msg)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.objects[key] = string(data)
	f.uploads = append(f.uploads, key)
	return key, nil
}

func (f *fakeStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	f.signedCalls = append(f.signedCalls, key)
	if _, ok := f.objects[key]; !ok {
		return "", errors.New("missing key")
	}
	if f.urlForKey != nil {
		return f.urlForKey(key), nil
	}
	return "https://signed.example/" + key, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	if f.failDelete {
		return errors.New("delete refused")
	}
	delete(f.objects, key)
	f.deletes = append(f.deletes, key)
	return nil
}

var (
	owner   = auth.Identity{ID: 7, Roles: []string{auth.RoleViewer}}
	other   = auth.Identity{ID: 8, Roles: []string{auth.RoleEditor}}
	admin   = auth.Identity{ID: 1, Roles: []string{auth.RoleAdmin}}
	testCtx = context.Background()
)

func newTestService() (*Service, *fakeStore, *MemoryRepo) {
	store := newFakeStore()
	repo := NewMemoryRepo()
	svc := &Service{Repo: repo, Store: store, DocPrefix: "docs", SignedURLTTL: time.Minute}
	return svc, store, repo
}

func mustUpload(t *testing.T, svc *Service, caller auth.Identity, name, fileName string) Document {
	t.Helper()
	doc, err := svc.Upload(testCtx, caller, name, fileName, strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return doc
}

func TestUploadCreatesPendingRowWithOwnerScopedKey(t *testing.T) {
	svc, store, _ := newTestService()

	doc := mustUpload(t, svc, owner, "", "report.pdf")

	if doc.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", doc.Status)
	}
	if doc.Name != "report.pdf" {
		t.Fatalf("expected name defaulted to filename, got %q", doc.Name)
	}
	wantKey := fmt.Sprintf("docs/user_%d/report.pdf", owner.ID)
	if doc.Path != wantKey {
		t.Fatalf("expected path %q, got %q", wantKey, doc.Path)
	}
	if doc.UploadedBy != owner.ID {
		t.Fatalf("expected uploadedBy %d, got %d", owner.ID, doc.UploadedBy)
	}
	if _, ok := store.objects[wantKey]; !ok {
		t.Fatal("expected object stored at key")
	}
}

func TestUploadExplicitNameWins(t *testing.T) {
	svc, _, _ := newTestService()
	doc := mustUpload(t, svc, owner, "Quarterly Report", "report.pdf")
	if doc.Name != "Quarterly Report" {
		t.Fatalf("expected explicit name, got %q", doc.Name)
	}
}

func TestUploadStoreFailureCreatesNoRow(t *testing.T) {
	svc, store, repo := newTestService()
	store.failUpload = true
	store.uploadErrMsg = "bucket unreachable"

	_, err := svc.Upload(testCtx, owner, "", "report.pdf", strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected upload error")
	}
	if !strings.Contains(err.Error(), "bucket unreachable") {
		t.Fatalf("expected upstream message surfaced, got %v", err)
	}

	total, docs, err := repo.FindPage(testCtx, nil, Filter{}, 10, 0)
	if err != nil {
		t.Fatalf("FindPage: %v", err)
	}
	if total != 0 || len(docs) != 0 {
		t.Fatalf("expected no rows after failed store write, got total=%d", total)
	}
}

func TestUploadMetadataFailureLeavesOrphanedObject(t *testing.T) {
	svc, store, _ := newTestService()

	// First upload claims the path; a second upload of the same file for the
	// same owner collides on the unique path and fails after the store write.
	mustUpload(t, svc, owner, "", "report.pdf")
	_, err := svc.Upload(testCtx, owner, "", "report.pdf", strings.NewReader("y"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// Object store write is not undone.
	if _, ok := store.objects[fmt.Sprintf("docs/user_%d/report.pdf", owner.ID)]; !ok {
		t.Fatal("expected object to remain in store")
	}
}

func TestOwnershipInvariant(t *testing.T) {
	svc, _, _ := newTestService()
	doc := mustUpload(t, svc, owner, "", "report.pdf")

	if _, err := svc.Read(testCtx, other, doc.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Read by non-owner: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.ReplaceContent(testCtx, other, doc.ID, "new", "new.pdf", strings.NewReader("x")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("ReplaceContent by non-owner: expected ErrForbidden, got %v", err)
	}
	if err := svc.Remove(testCtx, other, doc.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Remove by non-owner: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.StatusFor(testCtx, other, doc.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("StatusFor by non-owner: expected ErrForbidden, got %v", err)
	}
}

func TestAdminBypassesOwnership(t *testing.T) {
	svc, _, _ := newTestService()
	doc := mustUpload(t, svc, owner, "", "report.pdf")

	if _, err := svc.Read(testCtx, admin, doc.ID); err != nil {
		t.Fatalf("Read by admin: %v", err)
	}
	if _, err := svc.StatusFor(testCtx, admin, doc.ID); err != nil {
		t.Fatalf("StatusFor by admin: %v", err)
	}
	if err := svc.Remove(testCtx, admin, doc.ID); err != nil {
		t.Fatalf("Remove by admin: %v", err)
	}
}

func TestListScopesToOwnerUnlessAdmin(t *testing.T) {
	svc, _, _ := newTestService()
	mustUpload(t, svc, owner, "", "a.pdf")
	mustUpload(t, svc, other, "", "b.pdf")

	total, docs, err := svc.List(testCtx, owner, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(docs) != 1 || docs[0].UploadedBy != owner.ID {
		t.Fatalf("expected owner to see only their document, got total=%d", total)
	}

	total, docs, err = svc.List(testCtx, admin, 10, 0)
	if err != nil {
		t.Fatalf("List admin: %v", err)
	}
	if total != 2 || len(docs) != 2 {
		t.Fatalf("expected admin to see all documents, got total=%d", total)
	}
}

func TestReadReturnsSignedURLAndName(t *testing.T) {
	svc, store, _ := newTestService()
	doc := mustUpload(t, svc, owner, "Report", "report.pdf")

	link, err := svc.Read(testCtx, owner, doc.ID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if link.Name != "Report" {
		t.Fatalf("expected name Report, got %q", link.Name)
	}
	if link.URL != "https://signed.example/"+doc.Path {
		t.Fatalf("unexpected url %q", link.URL)
	}
	if len(store.signedCalls) != 1 || store.signedCalls[0] != doc.Path {
		t.Fatalf("expected one signed url call for %q", doc.Path)
	}
}

func TestReplaceContentSwapsObjectAndUpdatesRow(t *testing.T) {
	svc, store, _ := newTestService()
	doc := mustUpload(t, svc, owner, "", "old.pdf")

	updated, err := svc.ReplaceContent(testCtx, owner, doc.ID, "", "new.pdf", strings.NewReader("new bytes"))
	if err != nil {
		t.Fatalf("ReplaceContent: %v", err)
	}

	wantKey := fmt.Sprintf("docs/user_%d/new.pdf", owner.ID)
	if updated.Path != wantKey {
		t.Fatalf("expected path %q, got %q", wantKey, updated.Path)
	}
	if updated.Name != "new.pdf" {
		t.Fatalf("expected name new.pdf, got %q", updated.Name)
	}
	if _, ok := store.objects[doc.Path]; ok {
		t.Fatal("expected old object deleted")
	}
	if _, ok := store.objects[wantKey]; !ok {
		t.Fatal("expected new object stored")
	}
}

func TestReplaceContentRollsBackRowOnUploadFailure(t *testing.T) {
	svc, store, repo := newTestService()
	doc := mustUpload(t, svc, owner, "", "old.pdf")

	store.failUpload = true
	_, err := svc.ReplaceContent(testCtx, owner, doc.ID, "", "new.pdf", strings.NewReader("new bytes"))
	if err == nil {
		t.Fatal("expected replace error")
	}

	after, err := repo.GetByID(testCtx, nil, doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Name != doc.Name || after.Path != doc.Path {
		t.Fatalf("expected row unchanged after rollback, got name=%q path=%q", after.Name, after.Path)
	}
}

func TestReplaceContentRenameOnly(t *testing.T) {
	svc, store, _ := newTestService()
	doc := mustUpload(t, svc, owner, "", "report.pdf")

	updated, err := svc.ReplaceContent(testCtx, owner, doc.ID, "Renamed", "", nil)
	if err != nil {
		t.Fatalf("ReplaceContent rename: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("expected name Renamed, got %q", updated.Name)
	}
	if updated.Path != doc.Path {
		t.Fatalf("expected path unchanged, got %q", updated.Path)
	}
	if len(store.deletes) != 0 {
		t.Fatal("rename must not touch the object store")
	}
}

func TestRemoveSoftDeletesAndHidesFromEveryone(t *testing.T) {
	svc, store, _ := newTestService()
	doc := mustUpload(t, svc, owner, "", "report.pdf")

	if err := svc.Remove(testCtx, owner, doc.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := store.objects[doc.Path]; ok {
		t.Fatal("expected backing object deleted")
	}
	if _, err := svc.Read(testCtx, owner, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read by owner after remove: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Read(testCtx, admin, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read by admin after remove: expected ErrNotFound, got %v", err)
	}
}

func TestRemoveKeepsRowWhenStoreDeleteFails(t *testing.T) {
	svc, store, _ := newTestService()
	doc := mustUpload(t, svc, owner, "", "report.pdf")

	store.failDelete = true
	if err := svc.Remove(testCtx, owner, doc.ID); err == nil {
		t.Fatal("expected remove error")
	}

	if _, err := svc.StatusFor(testCtx, owner, doc.ID); err != nil {
		t.Fatalf("expected row to survive failed remove, got %v", err)
	}
}

func TestSetStatusTransitionsAndTerminalGuard(t *testing.T) {
	svc, _, _ := newTestService()
	doc := mustUpload(t, svc, owner, "", "report.pdf")

	for _, status := range []Status{StatusProcessing, StatusCompleted} {
		if err := svc.SetStatus(testCtx, doc.ID, status); err != nil {
			t.Fatalf("SetStatus(%s): %v", status, err)
		}
	}

	got, err := svc.StatusFor(testCtx, owner, doc.ID)
	if err != nil {
		t.Fatalf("StatusFor: %v", err)
	}
	if got != StatusCompleted {
		t.Fatalf("expected completed, got %s", got)
	}

	// Repeating the terminal status is an idempotent no-op.
	if err := svc.SetStatus(testCtx, doc.ID, StatusCompleted); err != nil {
		t.Fatalf("idempotent SetStatus: %v", err)
	}

	// Leaving a terminal status is rejected.
	if err := svc.SetStatus(testCtx, doc.ID, StatusProcessing); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on terminal regression, got %v", err)
	}
}

func TestSetStatusUnknownDocument(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.SetStatus(testCtx, 404, StatusCompleted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPageByStatusScopesAndFilters(t *testing.T) {
	svc, _, _ := newTestService()
	d1 := mustUpload(t, svc, owner, "", "a.pdf")
	mustUpload(t, svc, owner, "", "b.pdf")
	d3 := mustUpload(t, svc, other, "", "c.pdf")

	if err := svc.SetStatus(testCtx, d1.ID, StatusProcessing); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := svc.SetStatus(testCtx, d3.ID, StatusProcessing); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	total, docs, err := svc.PageByStatus(testCtx, owner, StatusProcessing, 10, 0)
	if err != nil {
		t.Fatalf("PageByStatus: %v", err)
	}
	if total != 1 || len(docs) != 1 || docs[0].ID != d1.ID {
		t.Fatalf("expected only owner's processing document, got total=%d", total)
	}

	total, _, err = svc.PageByStatus(testCtx, admin, StatusProcessing, 10, 0)
	if err != nil {
		t.Fatalf("PageByStatus admin: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected admin to see both processing documents, got %d", total)
	}
}

func TestFindPageHonorsTransactionHandle(t *testing.T) {
	repo := NewMemoryRepo()

	tx, err := repo.Begin(testCtx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := repo.Create(testCtx, tx, Document{Name: "draft.pdf", Path: "docs/user_7/draft.pdf", Status: StatusPending, UploadedBy: 7}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The page must be readable on the open transaction's handle.
	total, docs, err := repo.FindPage(testCtx, tx, Filter{}, 10, 0)
	if err != nil {
		t.Fatalf("FindPage in tx: %v", err)
	}
	if total != 1 || len(docs) != 1 {
		t.Fatalf("expected uncommitted row visible inside tx, got total=%d", total)
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	total, _, err = repo.FindPage(testCtx, nil, Filter{}, 10, 0)
	if err != nil {
		t.Fatalf("FindPage after rollback: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected rollback to discard row, got total=%d", total)
	}
}
