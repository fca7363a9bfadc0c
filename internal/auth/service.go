package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrTokenRevoked is returned for refresh tokens that are revoked, expired or unknown.
	ErrTokenRevoked = errors.New("refresh token revoked")
	// ErrUserNotFound is returned when an account does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// UserStore is the persistence surface behind the service. *Repository
// implements it.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id uuid.UUID) (User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	SaveRefreshToken(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) error
	ConsumeRefreshToken(ctx context.Context, token string) (uuid.UUID, error)
	RevokeUserTokens(ctx context.Context, userID uuid.UUID) error
}

// Service owns account lifecycle and token issuance.
type Service struct {
	users      UserStore
	issuer     string
	signingKey string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService wires the auth service.
func NewService(users UserStore, issuer, signingKey string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		users:      users,
		issuer:     issuer,
		signingKey: signingKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Register creates a teacher-role account from a self-service signup.
func (s *Service) Register(ctx context.Context, email, password, name string) (User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         RoleTeacher,
		Name:         name,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// CreateAccount creates an account with an explicit role. Used when a school
// provisions teacher logins with generated credentials.
func (s *Service) CreateAccount(ctx context.Context, email, password, name, phone string, role Role) (User, error) {
	if !role.Valid() {
		return User{}, fmt.Errorf("create account: invalid role %d", role)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Name:         name,
		Phone:        phone,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Login checks credentials and issues a token pair. The refresh half is
// persisted so it can be rotated and revoked.
func (s *Service) Login(ctx context.Context, email, password string) (User, TokenPair, error) {
	u, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, TokenPair{}, ErrInvalidCredentials
		}
		return User{}, TokenPair{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return User{}, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.issueAndStore(ctx, u)
	if err != nil {
		return User{}, TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a fresh
// pair is issued. A replayed token fails with ErrTokenRevoked and kills every
// live token of the subject, since a replay means the chain leaked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := Parse(refreshToken, s.signingKey, s.issuer)
	if err != nil {
		return TokenPair{}, ErrTokenRevoked
	}
	userID, err := s.users.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			if id, parseErr := uuid.Parse(claims.Subject); parseErr == nil {
				if revokeErr := s.users.RevokeUserTokens(ctx, id); revokeErr != nil {
					log.Printf("auth: revoke tokens for %s: %v", id, revokeErr)
				}
			}
		}
		return TokenPair{}, err
	}
	u, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return TokenPair{}, err
	}
	return s.issueAndStore(ctx, u)
}

// DeleteAccount removes an account; dependent rows cascade.
func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return s.users.DeleteUser(ctx, id)
}

// Me returns the account behind a subject claim.
func (s *Service) Me(ctx context.Context, subject string) (User, error) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	return s.users.UserByID(ctx, id)
}

func (s *Service) issueAndStore(ctx context.Context, u User) (TokenPair, error) {
	pair, err := Issue(u.ID.String(), u.Role, s.issuer, s.signingKey, s.accessTTL, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.SaveRefreshToken(ctx, pair.RefreshToken, u.ID, pair.RefreshExp); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}
