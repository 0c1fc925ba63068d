package repository

import (
	"context"
	"database/sql"

	"taskvault/internal/models"
	"taskvault/pkg/logger"
)

// UserRepo provides user account storage over Postgres.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user.
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		logger.Error(ctx, "Repository Create user failed", "error", err)
	}
	return err
}

// ByEmail returns the user with the given email, or sql.ErrNoRows.
// Emails are stored lowercased; callers normalize before lookup.
func (r *UserRepo) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, role, created_at, updated_at FROM users WHERE email = $1`,
		email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Error(ctx, "Repository ByEmail failed", "error", err)
		}
		return nil, err
	}
	return &u, nil
}
