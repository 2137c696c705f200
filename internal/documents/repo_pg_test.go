package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newPGRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func documentRows(doc Document) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "path", "status", "uploaded_by", "created_at", "updated_at"}).
		AddRow(doc.ID, doc.Name, doc.Path, string(doc.Status), doc.UploadedBy, doc.CreatedAt, doc.UpdatedAt)
}

func TestPGRepoCreateReturnsRow(t *testing.T) {
	repo, mock := newPGRepo(t)
	now := time.Now().UTC()
	want := Document{ID: 3, Name: "report.pdf", Path: "docs/user_7/report.pdf", Status: StatusPending, UploadedBy: 7, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs("report.pdf", "docs/user_7/report.pdf", string(StatusPending), int64(7)).
		WillReturnRows(documentRows(want))

	got, err := repo.Create(context.Background(), nil, Document{
		Name:       "report.pdf",
		Path:       "docs/user_7/report.pdf",
		Status:     StatusPending,
		UploadedBy: 7,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.ID != 3 || got.Status != StatusPending {
		t.Fatalf("unexpected document %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateMapsUniqueViolationToConflict(t *testing.T) {
	repo, mock := newPGRepo(t)

	mock.ExpectQuery("INSERT INTO documents").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), nil, Document{Name: "a", Path: "p", Status: StatusPending, UploadedBy: 1})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newPGRepo(t)

	mock.ExpectQuery("SELECT .+ FROM documents").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "path", "status", "uploaded_by", "created_at", "updated_at"}))

	_, err := repo.GetByID(context.Background(), nil, 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoFindPageFiltersAndCounts(t *testing.T) {
	repo, mock := newPGRepo(t)
	now := time.Now().UTC()
	ownerID := int64(7)
	status := StatusProcessing

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents").
		WithArgs(ownerID, string(status)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT .+ FROM documents .+ ORDER BY updated_at DESC").
		WithArgs(ownerID, string(status), 20, 0).
		WillReturnRows(documentRows(Document{ID: 5, Name: "a", Path: "p", Status: status, UploadedBy: ownerID, CreatedAt: now, UpdatedAt: now}))

	total, docs, err := repo.FindPage(context.Background(), nil, Filter{UploadedBy: &ownerID, Status: &status}, 0, 0)
	if err != nil {
		t.Fatalf("FindPage: %v", err)
	}
	if total != 1 || len(docs) != 1 || docs[0].ID != 5 {
		t.Fatalf("unexpected page total=%d docs=%+v", total, docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateFieldsScopedToOwner(t *testing.T) {
	repo, mock := newPGRepo(t)
	name := "renamed"
	ownerID := int64(7)

	mock.ExpectExec("UPDATE documents SET name").
		WithArgs(name, int64(3), ownerID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateFields(context.Background(), nil, 3, Fields{Name: &name}, &ownerID); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateFieldsZeroRowsIsNotFound(t *testing.T) {
	repo, mock := newPGRepo(t)
	status := StatusCompleted

	mock.ExpectExec("UPDATE documents SET status").
		WithArgs(string(status), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateFields(context.Background(), nil, 9, Fields{Status: &status}, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoTransactionCommitAndRollback(t *testing.T) {
	repo, mock := newPGRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM documents").
		WithArgs(int64(3)).
		WillReturnRows(documentRows(Document{ID: 3, Name: "a", Path: "p", Status: StatusPending, UploadedBy: 7, CreatedAt: now, UpdatedAt: now}))
	mock.ExpectExec("UPDATE documents").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := repo.GetByID(ctx, tx, 3); err != nil {
		t.Fatalf("GetByID in tx: %v", err)
	}
	status := StatusProcessing
	if err := repo.UpdateFields(ctx, tx, 3, Fields{Status: &status}, nil); err != nil {
		t.Fatalf("UpdateFields in tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx2, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx2.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSoftDelete(t *testing.T) {
	repo, mock := newPGRepo(t)

	mock.ExpectExec("UPDATE documents\\s+SET deleted_at = now\\(\\)").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SoftDelete(context.Background(), nil, 3); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
