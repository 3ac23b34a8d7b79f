package users

import (
	"context"
	"database/sql"
	"errors"
)

// Repository reads debtor records. Writes happen only through the call
// session recorder's transaction.
type Repository interface {
	ByPhone(ctx context.Context, phone string) (User, error)
	ByID(ctx context.Context, id string) (User, error)
}

// SQLRepository is the Postgres-backed Repository.
type SQLRepository struct {
	DB *sql.DB
}

const userColumns = `id, phone_number, name, COALESCE(email, ''), total_debt, remaining_debt, created_at, updated_at`

func (r *SQLRepository) ByPhone(ctx context.Context, phone string) (User, error) {
	const q = `
SELECT ` + userColumns + `
FROM users
WHERE phone_number = $1
`
	return r.scanOne(r.DB.QueryRowContext(ctx, q, phone))
}

func (r *SQLRepository) ByID(ctx context.Context, id string) (User, error) {
	const q = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1
`
	return r.scanOne(r.DB.QueryRowContext(ctx, q, id))
}

func (r *SQLRepository) scanOne(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.PhoneNumber,
		&u.Name,
		&u.Email,
		&u.TotalDebt,
		&u.RemainingDebt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
