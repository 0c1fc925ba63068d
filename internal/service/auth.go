package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskvault/internal/apierr"
	"taskvault/internal/auth"
	"taskvault/internal/models"
)

// UserStore is the storage collaborator contract for accounts.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	ByEmail(ctx context.Context, email string) (*models.User, error)
}

// RegisterInput is a shape-validated registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// AuthResult is a signed credential plus the account it identifies.
type AuthResult struct {
	Token string
	User  *models.User
}

// AuthService handles registration and login.
type AuthService struct {
	users      UserStore
	issuer     *auth.Issuer
	bcryptCost int
}

func NewAuthService(users UserStore, issuer *auth.Issuer, bcryptCost int) *AuthService {
	return &AuthService{users: users, issuer: issuer, bcryptCost: bcryptCost}
}

// Register creates an account and returns a freshly issued credential.
// A taken email is a Conflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.users.ByEmail(ctx, email); err == nil {
		return nil, apierr.Conflict("Email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.Internal(err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	now := time.Now().UTC()
	u := &models.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, apierr.Internal(err)
	}
	token, err := s.issuer.Issue(u.Principal())
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: u}, nil
}

// Login verifies credentials and issues a token. Unknown email and
// wrong password return the same Unauthenticated error so the endpoint
// cannot be used to enumerate accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.Unauthenticated("Invalid credentials")
		}
		return nil, apierr.Internal(err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, apierr.Unauthenticated("Invalid credentials")
	}
	token, err := s.issuer.Issue(u.Principal())
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: u}, nil
}
