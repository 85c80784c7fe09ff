package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `
	id, name, username, hashed_password, pin, role, is_active, created_at,
	updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Name, &u.Username, &u.HashedPassword, &u.Pin, &u.Role,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

type CreateUserParams struct {
	Name           string
	Username       string
	HashedPassword string
	Pin            pgtype.Text
	Role           string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	const sql = `
		INSERT INTO users (name, username, hashed_password, pin, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING` + userColumns
	return scanUser(q.db.QueryRow(ctx, sql,
		arg.Name, arg.Username, arg.HashedPassword, arg.Pin, arg.Role))
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	const sql = `SELECT` + userColumns + ` FROM users WHERE id = $1 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, id))
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	const sql = `SELECT` + userColumns + ` FROM users WHERE username = $1 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, username))
}

func (q *Queries) GetUserByPin(ctx context.Context, pin string) (User, error) {
	const sql = `SELECT` + userColumns + ` FROM users WHERE pin = $1 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, pin))
}

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	const sql = `SELECT` + userColumns + ` FROM users WHERE is_active = true ORDER BY name`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type UpdateUserParams struct {
	ID   uuid.UUID
	Name string
	Pin  pgtype.Text
	Role string
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	const sql = `
		UPDATE users
		SET name = $2, pin = $3, role = $4, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING` + userColumns
	return scanUser(q.db.QueryRow(ctx, sql, arg.ID, arg.Name, arg.Pin, arg.Role))
}

func (q *Queries) DeactivateUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `
		UPDATE users SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING id
	`
	var deactivated uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&deactivated)
	return deactivated, err
}
