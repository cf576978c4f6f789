package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryStore struct {
	mu       sync.Mutex
	accounts map[int64]Account
	tokens   map[int64]string
	failWith error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: map[int64]Account{}, tokens: map[int64]string{}}
}

func (m *memoryStore) add(t *testing.T, id int64, email, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = Account{
		ID:           id,
		Email:        email,
		Nickname:     "tester",
		PasswordHash: string(hash),
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryStore) FindActiveByEmail(_ context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return Account{}, m.failWith
	}
	for _, a := range m.accounts {
		if a.Email == email && a.DeletedAt == nil {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (m *memoryStore) FindActiveByID(_ context.Context, userID int64) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok || a.DeletedAt != nil {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (m *memoryStore) GetSessionToken(_ context.Context, userID int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return "", false, m.failWith
	}
	token, ok := m.tokens[userID]
	return token, ok && token != "", nil
}

func (m *memoryStore) SetSessionToken(_ context.Context, userID int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[userID]; !ok {
		return ErrAccountNotFound
	}
	m.tokens[userID] = token
	return nil
}

func (m *memoryStore) ClearSessionToken(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, userID)
	return nil
}

func (m *memoryStore) ClearAllSessionTokens(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.tokens))
	m.tokens = map[int64]string{}
	return n, nil
}

func TestService_LoginThenAuthenticate(t *testing.T) {
	store := newMemoryStore()
	store.add(t, 1, "user@example.com", "Passw0rd!")
	svc := NewService(store)
	ctx := context.Background()

	result, err := svc.Login(ctx, "user@example.com", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.UserID)
	assert.Len(t, result.SessionToken, 32)

	ok, err := svc.IsAuthenticated(ctx, 1, result.SessionToken)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_LogoutInvalidatesToken(t *testing.T) {
	store := newMemoryStore()
	store.add(t, 1, "user@example.com", "Passw0rd!")
	svc := NewService(store)
	ctx := context.Background()

	result, err := svc.Login(ctx, "user@example.com", "Passw0rd!")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, 1))
	require.NoError(t, svc.Logout(ctx, 1), "logout is idempotent")

	ok, err := svc.IsAuthenticated(ctx, 1, result.SessionToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_SecondLoginInvalidatesFirstToken(t *testing.T) {
	store := newMemoryStore()
	store.add(t, 1, "user@example.com", "Passw0rd!")
	svc := NewService(store)
	ctx := context.Background()

	first, err := svc.Login(ctx, "user@example.com", "Passw0rd!")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "user@example.com", "Passw0rd!")
	require.NoError(t, err)
	require.NotEqual(t, first.SessionToken, second.SessionToken)

	ok, err := svc.IsAuthenticated(ctx, 1, first.SessionToken)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsAuthenticated(ctx, 1, second.SessionToken)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_LoginFailuresAreIndistinguishable(t *testing.T) {
	store := newMemoryStore()
	store.add(t, 1, "user@example.com", "Passw0rd!")
	svc := NewService(store)
	ctx := context.Background()

	_, unknownErr := svc.Login(ctx, "nobody@example.com", "Passw0rd!")
	_, wrongErr := svc.Login(ctx, "user@example.com", "Wr0ngPass!")
	_, emptyErr := svc.Login(ctx, "user@example.com", "")

	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, ErrInvalidCredentials)
	assert.ErrorIs(t, emptyErr, ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestService_LoginPropagatesStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.failWith = errors.New("db down")
	svc := NewService(store)

	_, err := svc.Login(context.Background(), "user@example.com", "Passw0rd!")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_IsAuthenticatedFailsClosed(t *testing.T) {
	store := newMemoryStore()
	store.add(t, 1, "user@example.com", "Passw0rd!")
	store.tokens[1] = "abc"
	svc := NewService(store)
	ctx := context.Background()

	tests := []struct {
		name   string
		userID int64
		token  string
	}{
		{name: "zero user id", userID: 0, token: "abc"},
		{name: "negative user id", userID: -1, token: "abc"},
		{name: "empty token", userID: 1, token: ""},
		{name: "wrong token", userID: 1, token: "abd"},
		{name: "prefix token", userID: 1, token: "ab"},
		{name: "no stored session", userID: 2, token: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.IsAuthenticated(ctx, tt.userID, tt.token)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	store.failWith = errors.New("db down")
	ok, err := svc.IsAuthenticated(ctx, 1, "abc")
	require.Error(t, err)
	assert.False(t, ok)
}

func TestService_ResetSessions(t *testing.T) {
	store := newMemoryStore()
	store.add(t, 1, "a@example.com", "Passw0rd!")
	store.add(t, 2, "b@example.com", "Passw0rd!")
	svc := NewService(store)
	ctx := context.Background()

	first, err := svc.Login(ctx, "a@example.com", "Passw0rd!")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "b@example.com", "Passw0rd!")
	require.NoError(t, err)

	cleared, err := svc.ResetSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)

	ok, err := svc.IsAuthenticated(ctx, 1, first.SessionToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Status(t *testing.T) {
	store := newMemoryStore()
	store.add(t, 7, "user@example.com", "Passw0rd!")
	svc := NewService(store)

	status, err := svc.Status(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, status.AuthStatus)
	assert.Equal(t, "user@example.com", status.Email)

	_, err = svc.Status(context.Background(), 8)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
