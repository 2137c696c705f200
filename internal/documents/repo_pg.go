package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Commit() error   { return t.tx.Commit() }
func (t *pgTx) Rollback() error { return t.tx.Rollback() }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Begin opens a database transaction.
func (r *PGRepo) Begin(ctx context.Context) (Tx, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (r *PGRepo) q(tx Tx) querier {
	if tx == nil {
		return r.DB
	}
	if handle, ok := tx.(*pgTx); ok {
		return handle.tx
	}
	return r.DB
}

const documentColumns = "id, name, path, status, uploaded_by, created_at, updated_at"

// Create inserts a new document row and returns it with assigned id and
// timestamps.
func (r *PGRepo) Create(ctx context.Context, tx Tx, doc Document) (Document, error) {
	const query = `
INSERT INTO documents (name, path, status, uploaded_by)
VALUES ($1, $2, $3, $4)
RETURNING ` + documentColumns

	row := r.q(tx).QueryRowContext(ctx, query, doc.Name, doc.Path, doc.Status, doc.UploadedBy)
	created, err := scanDocument(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Document{}, fmt.Errorf("%w: path %q already exists", ErrConflict, doc.Path)
		}
		return Document{}, err
	}
	return created, nil
}

// GetByID fetches a live document by id.
func (r *PGRepo) GetByID(ctx context.Context, tx Tx, id int64) (Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE id = $1 AND deleted_at IS NULL`

	doc, err := scanDocument(r.q(tx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// FindPage returns the total count and one page of live documents matching
// the filter, newest update first.
func (r *PGRepo) FindPage(ctx context.Context, tx Tx, filter Filter, limit, offset int) (int64, []Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	where := []string{"deleted_at IS NULL"}
	args := []any{}
	if filter.UploadedBy != nil {
		args = append(args, *filter.UploadedBy)
		where = append(where, fmt.Sprintf("uploaded_by = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM documents WHERE " + whereClause
	if err := r.q(tx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count documents: %w", err)
	}

	pageQuery := fmt.Sprintf(
		"SELECT %s FROM documents WHERE %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d",
		documentColumns, whereClause, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.q(tx).QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return 0, nil, err
		}
		out = append(out, doc)
	}
	return total, out, rows.Err()
}

// UpdateFields patches the given columns on a live row. When ownerID is set
// the update only applies to rows owned by that user.
func (r *PGRepo) UpdateFields(ctx context.Context, tx Tx, id int64, fields Fields, ownerID *int64) error {
	set := []string{}
	args := []any{}
	if fields.Name != nil {
		args = append(args, *fields.Name)
		set = append(set, fmt.Sprintf("name = $%d", len(args)))
	}
	if fields.Path != nil {
		args = append(args, *fields.Path)
		set = append(set, fmt.Sprintf("path = $%d", len(args)))
	}
	if fields.Status != nil {
		args = append(args, *fields.Status)
		set = append(set, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = $%d AND deleted_at IS NULL", strings.Join(set, ", "), len(args))
	if ownerID != nil {
		args = append(args, *ownerID)
		query += fmt.Sprintf(" AND uploaded_by = $%d", len(args))
	}

	res, err := r.q(tx).ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: path already exists", ErrConflict)
		}
		return fmt.Errorf("update document %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks the row deleted; the row is retained.
func (r *PGRepo) SoftDelete(ctx context.Context, tx Tx, id int64) error {
	const query = `
UPDATE documents
SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND deleted_at IS NULL`

	res, err := r.q(tx).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("soft delete document %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var status string
	if err := row.Scan(&doc.ID, &doc.Name, &doc.Path, &status, &doc.UploadedBy, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	doc.Status = Status(status)
	return doc, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Repo = (*PGRepo)(nil)
