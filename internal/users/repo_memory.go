package users

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory user store for tests and local runs.
type MemoryRepo struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]User

	now func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		nextID: 1,
		users:  make(map[int64]User),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepo) Create(ctx context.Context, user User) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.DeletedAt == nil && strings.EqualFold(existing.Email, user.Email) {
			return User{}, fmt.Errorf("email %s: %w", user.Email, ErrConflict)
		}
	}

	now := r.now()
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.DeletedAt == nil && strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok || user.DeletedAt != nil {
		return User{}, ErrNotFound
	}
	return user, nil
}

var _ Repo = (*MemoryRepo)(nil)
