package documents

import (
	"context"
	"fmt"
	"io"
	"time"

	"docvault-backend/internal/shared/auth"
	"docvault-backend/internal/shared/storage/object"
	"docvault-backend/internal/shared/telemetry"
	"docvault-backend/internal/shared/util"
)

// Service orchestrates document lifecycle operations against the repository
// and the object store, enforcing ownership and role authorization.
//
// Store and metadata writes are sequenced so that a partial failure leaves at
// worst an orphaned object, never an orphaned metadata row: uploads write the
// blob before the row, updates and deletes read the row before touching the
// blob. Orphaned objects are logged for a reconciliation sweep, not cleaned
// up inline.
type Service struct {
	Repo         Repo
	Store        object.Store
	DocPrefix    string
	SignedURLTTL time.Duration
}

func (s *Service) prefix() string {
	if s.DocPrefix == "" {
		return "docs"
	}
	return s.DocPrefix
}

func (s *Service) ttl() time.Duration {
	if s.SignedURLTTL <= 0 {
		return 15 * time.Minute
	}
	return s.SignedURLTTL
}

func (s *Service) storageKey(ownerID int64, fileName string) (string, error) {
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return fmt.Sprintf("%s/user_%d/%s", s.prefix(), ownerID, sanitized), nil
}

func canAccess(caller auth.Identity, doc Document) bool {
	return caller.IsAdmin() || doc.UploadedBy == caller.ID
}

// rollback releases a transaction after a failure. The triggering error
// already determines the outcome, so a rollback failure is only logged.
func rollback(tx Tx, op string) {
	if err := tx.Rollback(); err != nil {
		telemetry.Error("documents.rollback_failed", map[string]any{"op": op, "error": err.Error()})
	}
}

// Upload stores the file and creates the metadata row with status pending.
// The blob is written first; if the row insert then fails the object is left
// orphaned and logged.
func (s *Service) Upload(ctx context.Context, caller auth.Identity, name, fileName string, file io.Reader) (Document, error) {
	if file == nil {
		return Document{}, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}
	if caller.ID == 0 {
		return Document{}, fmt.Errorf("%w: missing ownership context", ErrInvalidInput)
	}

	key, err := s.storageKey(caller.ID, fileName)
	if err != nil {
		return Document{}, err
	}

	storedKey, err := s.Store.Upload(ctx, key, "", file)
	if err != nil {
		return Document{}, fmt.Errorf("store upload: %w", err)
	}

	if name == "" {
		name = fileName
	}

	doc, err := s.Repo.Create(ctx, nil, Document{
		Name:       name,
		Path:       storedKey,
		Status:     StatusPending,
		UploadedBy: caller.ID,
	})
	if err != nil {
		telemetry.Warn("documents.orphaned_object", map[string]any{
			"key":    storedKey,
			"reason": "metadata create failed after store write",
			"error":  err.Error(),
		})
		return Document{}, err
	}
	return doc, nil
}

// List returns the caller's page of documents; admins see everyone's.
func (s *Service) List(ctx context.Context, caller auth.Identity, limit, offset int) (int64, []Document, error) {
	filter := Filter{}
	if !caller.IsAdmin() {
		owner := caller.ID
		filter.UploadedBy = &owner
	}
	return s.Repo.FindPage(ctx, nil, filter, limit, offset)
}

// Read returns a signed URL and display name for the document.
func (s *Service) Read(ctx context.Context, caller auth.Identity, id int64) (FileLink, error) {
	doc, err := s.Repo.GetByID(ctx, nil, id)
	if err != nil {
		return FileLink{}, err
	}
	if !canAccess(caller, doc) {
		return FileLink{}, ErrForbidden
	}

	url, err := s.Store.SignedURL(ctx, doc.Path, s.ttl())
	if err != nil {
		return FileLink{}, fmt.Errorf("store signed url: %w", err)
	}
	return FileLink{URL: url, Name: doc.Name}, nil
}

// ReplaceContent swaps the backing blob and/or renames the document inside
// one transaction. A store delete or upload that already ran before a later
// failure is not undone; the metadata row is rolled back untouched.
func (s *Service) ReplaceContent(ctx context.Context, caller auth.Identity, id int64, newName, fileName string, file io.Reader) (Document, error) {
	tx, err := s.Repo.Begin(ctx)
	if err != nil {
		return Document{}, err
	}

	doc, err := s.Repo.GetByID(ctx, tx, id)
	if err != nil {
		rollback(tx, "replace")
		return Document{}, err
	}
	if !canAccess(caller, doc) {
		rollback(tx, "replace")
		return Document{}, ErrForbidden
	}

	fields := Fields{}
	if file != nil {
		if err := s.Store.Delete(ctx, doc.Path); err != nil {
			rollback(tx, "replace")
			return Document{}, fmt.Errorf("store delete: %w", err)
		}

		key, err := s.storageKey(caller.ID, fileName)
		if err != nil {
			rollback(tx, "replace")
			return Document{}, err
		}
		storedKey, err := s.Store.Upload(ctx, key, "", file)
		if err != nil {
			rollback(tx, "replace")
			return Document{}, fmt.Errorf("store upload: %w", err)
		}

		name := newName
		if name == "" {
			name = fileName
		}
		fields.Name = &name
		fields.Path = &storedKey
	} else if newName != "" {
		fields.Name = &newName
	}

	if fields.Name != nil || fields.Path != nil {
		if err := s.Repo.UpdateFields(ctx, tx, id, fields, nil); err != nil {
			rollback(tx, "replace")
			return Document{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Document{}, fmt.Errorf("commit replace: %w", err)
	}

	return s.Repo.GetByID(ctx, nil, id)
}

// Remove deletes the backing object and soft-deletes the row in one
// transaction.
func (s *Service) Remove(ctx context.Context, caller auth.Identity, id int64) error {
	tx, err := s.Repo.Begin(ctx)
	if err != nil {
		return err
	}

	doc, err := s.Repo.GetByID(ctx, tx, id)
	if err != nil {
		rollback(tx, "remove")
		return err
	}
	if !canAccess(caller, doc) {
		rollback(tx, "remove")
		return ErrForbidden
	}

	if err := s.Store.Delete(ctx, doc.Path); err != nil {
		rollback(tx, "remove")
		return fmt.Errorf("store delete: %w", err)
	}

	if err := s.Repo.SoftDelete(ctx, tx, id); err != nil {
		rollback(tx, "remove")
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove: %w", err)
	}
	return nil
}

// SetStatus applies an ingestion status transition. Terminal statuses are
// frozen: once completed or failed, further transitions fail with
// ErrConflict. Repeating the current status is an idempotent no-op.
func (s *Service) SetStatus(ctx context.Context, id int64, status Status) error {
	tx, err := s.Repo.Begin(ctx)
	if err != nil {
		return err
	}

	doc, err := s.Repo.GetByID(ctx, tx, id)
	if err != nil {
		rollback(tx, "set_status")
		return err
	}

	if doc.Status == status {
		return tx.Commit()
	}
	if doc.Status.Terminal() {
		rollback(tx, "set_status")
		return fmt.Errorf("%w: document %d already %s", ErrConflict, id, doc.Status)
	}

	if err := s.Repo.UpdateFields(ctx, tx, id, Fields{Status: &status}, nil); err != nil {
		rollback(tx, "set_status")
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

// StatusFor projects a document's status, ownership-scoped like Read.
func (s *Service) StatusFor(ctx context.Context, caller auth.Identity, id int64) (Status, error) {
	doc, err := s.Repo.GetByID(ctx, nil, id)
	if err != nil {
		return "", err
	}
	if !canAccess(caller, doc) {
		return "", ErrForbidden
	}
	return doc.Status, nil
}

// PageByStatus lists documents in a given status, ownership-scoped like List.
func (s *Service) PageByStatus(ctx context.Context, caller auth.Identity, status Status, limit, offset int) (int64, []Document, error) {
	filter := Filter{Status: &status}
	if !caller.IsAdmin() {
		owner := caller.ID
		filter.UploadedBy = &owner
	}
	return s.Repo.FindPage(ctx, nil, filter, limit, offset)
}
