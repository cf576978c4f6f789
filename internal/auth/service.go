package auth

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// SessionStore is the persistence the service needs. *Repository implements
// it against Postgres.
type SessionStore interface {
	FindActiveByEmail(ctx context.Context, email string) (Account, error)
	FindActiveByID(ctx context.Context, userID int64) (Account, error)
	GetSessionToken(ctx context.Context, userID int64) (string, bool, error)
	SetSessionToken(ctx context.Context, userID int64, token string) error
	ClearSessionToken(ctx context.Context, userID int64) error
	ClearAllSessionTokens(ctx context.Context) (int64, error)
}

type Service struct {
	store    SessionStore
	newToken func() string
}

func NewService(store SessionStore) *Service {
	return &Service{store: store, newToken: newSessionToken}
}

// dummyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy bcrypt hash: %v", err))
	}
	return hash
})

// Login verifies the credentials and replaces the user's session token.
// Unknown email and wrong password both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	account, err := s.store.FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token := s.newToken()
	if err := s.store.SetSessionToken(ctx, account.ID, token); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	return LoginResult{
		UserID:           account.ID,
		Email:            account.Email,
		Nickname:         account.Nickname,
		ProfileImagePath: account.ProfileImagePath,
		SessionToken:     token,
		CreatedAt:        account.CreatedAt,
		UpdatedAt:        account.UpdatedAt,
		DeletedAt:        account.DeletedAt,
	}, nil
}

// Logout clears the user's token. It succeeds when no session exists.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	return s.store.ClearSessionToken(ctx, userID)
}

// IsAuthenticated reports whether token is the user's current session token.
// Missing ids, missing tokens and lookup failures all deny.
func (s *Service) IsAuthenticated(ctx context.Context, userID int64, token string) (bool, error) {
	if userID <= 0 || token == "" {
		return false, nil
	}

	stored, ok, err := s.store.GetSessionToken(ctx, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}

func (s *Service) Status(ctx context.Context, userID int64) (AuthStatus, error) {
	account, err := s.store.FindActiveByID(ctx, userID)
	if err != nil {
		return AuthStatus{}, err
	}

	return AuthStatus{
		UserID:           account.ID,
		Email:            account.Email,
		Nickname:         account.Nickname,
		ProfileImagePath: account.ProfileImagePath,
		AuthStatus:       true,
	}, nil
}

// ResetSessions clears every stored token. It runs once at startup and from
// the maintenance endpoint.
func (s *Service) ResetSessions(ctx context.Context) (int64, error) {
	return s.store.ClearAllSessionTokens(ctx)
}

func newSessionToken() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
