package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo is the Postgres-backed user store.
type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, username, email, password_hash, role, created_at, updated_at, deleted_at`

func (r *PGRepo) Create(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (username, email, password_hash, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
RETURNING ` + userColumns
	row := r.DB.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash, user.Role)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, fmt.Errorf("email %s: %w", user.Email, ErrConflict)
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	const query = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1 AND deleted_at IS NULL
LIMIT 1`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("select user by email: %w", err)
	}
	return user, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (User, error) {
	const query = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND deleted_at IS NULL
LIMIT 1`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("select user by id: %w", err)
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var deletedAt sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return User{}, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		user.DeletedAt = &t
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Repo = (*PGRepo)(nil)
