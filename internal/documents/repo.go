package documents

import "context"

// Tx is an explicit transaction handle. Every multi-step sequence acquires
// one at the top, passes it down, and releases it (commit or rollback) on
// every exit path. A nil Tx means autocommit.
type Tx interface {
	Commit() error
	Rollback() error
}

// Filter narrows FindPage results.
type Filter struct {
	UploadedBy *int64
	Status     *Status
}

// Fields lists the mutable columns for UpdateFields; nil members are left
// untouched.
type Fields struct {
	Name   *string
	Path   *string
	Status *Status
}

// Repo defines persistence operations for documents. Soft-deleted rows are
// excluded from every read.
type Repo interface {
	Begin(ctx context.Context) (Tx, error)
	Create(ctx context.Context, tx Tx, doc Document) (Document, error)
	GetByID(ctx context.Context, tx Tx, id int64) (Document, error)
	FindPage(ctx context.Context, tx Tx, filter Filter, limit, offset int) (int64, []Document, error)
	UpdateFields(ctx context.Context, tx Tx, id int64, fields Fields, ownerID *int64) error
	SoftDelete(ctx context.Context, tx Tx, id int64) error
}
