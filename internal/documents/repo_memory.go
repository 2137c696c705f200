package documents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo used when no database is
// configured (dev) and in service tests. Begin locks the repo for the whole
// transaction and snapshots the data so Rollback restores the pre-tx state.
type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	data   map[int64]Document
	now    func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		nextID: 1,
		data:   make(map[int64]Document),
		now:    time.Now,
	}
}

type memTx struct {
	repo     *MemoryRepo
	snapshot map[int64]Document
	prevID   int64
	done     bool
}

func (t *memTx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	t.repo.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	t.repo.data = t.snapshot
	t.repo.nextID = t.prevID
	t.repo.mu.Unlock()
	return nil
}

// Begin locks the repo and snapshots current state.
func (r *MemoryRepo) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	snapshot := make(map[int64]Document, len(r.data))
	for id, doc := range r.data {
		snapshot[id] = doc
	}
	return &memTx{repo: r, snapshot: snapshot, prevID: r.nextID}, nil
}

// lock acquires the repo mutex for non-transactional calls; within a
// transaction the mutex is already held by Begin.
func (r *MemoryRepo) lock(tx Tx) func() {
	if tx != nil {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, tx Tx, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	unlock := r.lock(tx)
	defer unlock()

	for _, existing := range r.data {
		if existing.DeletedAt == nil && existing.Path == doc.Path {
			return Document{}, fmt.Errorf("%w: path %q already exists", ErrConflict, doc.Path)
		}
	}

	doc.ID = r.nextID
	r.nextID++
	now := r.now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.DeletedAt = nil
	r.data[doc.ID] = doc
	return doc, nil
}

// GetByID returns a live document by id.
func (r *MemoryRepo) GetByID(ctx context.Context, tx Tx, id int64) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	unlock := r.lock(tx)
	defer unlock()

	doc, ok := r.data[id]
	if !ok || doc.DeletedAt != nil {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// FindPage filters, counts, and pages live documents newest-update-first.
func (r *MemoryRepo) FindPage(ctx context.Context, tx Tx, filter Filter, limit, offset int) (int64, []Document, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	unlock := r.lock(tx)
	var matched []Document
	for _, doc := range r.data {
		if doc.DeletedAt != nil {
			continue
		}
		if filter.UploadedBy != nil && doc.UploadedBy != *filter.UploadedBy {
			continue
		}
		if filter.Status != nil && doc.Status != *filter.Status {
			continue
		}
		matched = append(matched, doc)
	}
	unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return total, []Document{}, nil
	}
	end := len(matched)
	if offset+limit < end {
		end = offset + limit
	}
	return total, matched[offset:end], nil
}

// UpdateFields patches the given fields on a live row.
func (r *MemoryRepo) UpdateFields(ctx context.Context, tx Tx, id int64, fields Fields, ownerID *int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := r.lock(tx)
	defer unlock()

	doc, ok := r.data[id]
	if !ok || doc.DeletedAt != nil {
		return ErrNotFound
	}
	if ownerID != nil && doc.UploadedBy != *ownerID {
		return ErrNotFound
	}
	if fields.Path != nil {
		for otherID, other := range r.data {
			if otherID != id && other.DeletedAt == nil && other.Path == *fields.Path {
				return fmt.Errorf("%w: path already exists", ErrConflict)
			}
		}
		doc.Path = *fields.Path
	}
	if fields.Name != nil {
		doc.Name = *fields.Name
	}
	if fields.Status != nil {
		doc.Status = *fields.Status
	}
	doc.UpdatedAt = r.now().UTC()
	r.data[id] = doc
	return nil
}

// SoftDelete marks the row deleted.
func (r *MemoryRepo) SoftDelete(ctx context.Context, tx Tx, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := r.lock(tx)
	defer unlock()

	doc, ok := r.data[id]
	if !ok || doc.DeletedAt != nil {
		return ErrNotFound
	}
	now := r.now().UTC()
	doc.DeletedAt = &now
	doc.UpdatedAt = now
	r.data[id] = doc
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
