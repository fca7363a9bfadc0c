package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	byID     map[uuid.UUID]User
	byEmail  map[string]User
	tokens   map[string]uuid.UUID
	revoked  []uuid.UUID
	consumed int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byID:    map[uuid.UUID]User{},
		byEmail: map[string]User{},
		tokens:  map[string]uuid.UUID{},
	}
}

func (f *fakeUsers) CreateUser(_ context.Context, u User) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUsers) UserByEmail(_ context.Context, email string) (User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) UserByID(_ context.Context, id uuid.UUID) (User, error) {
	u, ok := f.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) DeleteUser(_ context.Context, id uuid.UUID) error {
	u, ok := f.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(f.byEmail, u.Email)
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) SaveRefreshToken(_ context.Context, token string, userID uuid.UUID, _ time.Time) error {
	f.tokens[token] = userID
	return nil
}

func (f *fakeUsers) ConsumeRefreshToken(_ context.Context, token string) (uuid.UUID, error) {
	f.consumed++
	id, ok := f.tokens[token]
	if !ok {
		return uuid.Nil, ErrTokenRevoked
	}
	delete(f.tokens, token)
	return id, nil
}

func (f *fakeUsers) RevokeUserTokens(_ context.Context, userID uuid.UUID) error {
	f.revoked = append(f.revoked, userID)
	for tok, id := range f.tokens {
		if id == userID {
			delete(f.tokens, tok)
		}
	}
	return nil
}

func newTestService(f *fakeUsers) *Service {
	return NewService(f, "markbook", "secret", time.Minute, time.Hour)
}

func seedUser(t *testing.T, f *fakeUsers, email, password string, role Role) User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	u := User{ID: uuid.New(), Email: email, PasswordHash: hash, Role: role, Name: "Asha Verma"}
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u
	return u
}

func TestLoginIssuesPersistedPair(t *testing.T) {
	f := newFakeUsers()
	svc := newTestService(f)
	u := seedUser(t, f, "asha@school.test", "sesame", RoleTeacher)

	got, pair, err := svc.Login(context.Background(), "asha@school.test", "sesame")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	claims, err := Parse(pair.RefreshToken, "secret", "markbook")
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.Subject)
	assert.Equal(t, RoleTeacher, claims.Role)
	assert.Equal(t, u.ID, f.tokens[pair.RefreshToken], "refresh token not persisted")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFakeUsers()
	svc := newTestService(f)
	seedUser(t, f, "asha@school.test", "sesame", RoleTeacher)

	_, _, err := svc.Login(context.Background(), "asha@school.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// unknown email reads the same as a wrong password
	_, _, err = svc.Login(context.Background(), "nobody@school.test", "sesame")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotates(t *testing.T) {
	f := newFakeUsers()
	svc := newTestService(f)
	u := seedUser(t, f, "asha@school.test", "sesame", RoleTeacher)

	_, pair, err := svc.Login(context.Background(), "asha@school.test", "sesame")
	require.NoError(t, err)

	next, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	claims, err := Parse(next.RefreshToken, "secret", "markbook")
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.Subject)
	assert.Equal(t, u.ID, f.tokens[next.RefreshToken])
	assert.Empty(t, f.revoked)
}

func TestRefreshReplayRevokesAllTokens(t *testing.T) {
	f := newFakeUsers()
	svc := newTestService(f)
	u := seedUser(t, f, "asha@school.test", "sesame", RoleTeacher)

	// a valid signature over a token the store no longer holds is a replay
	pair, err := Issue(u.ID.String(), u.Role, "markbook", "secret", time.Minute, time.Hour)
	require.NoError(t, err)
	f.tokens["still-live-session"] = u.ID

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	require.Len(t, f.revoked, 1)
	assert.Equal(t, u.ID, f.revoked[0])
	assert.Empty(t, f.tokens, "live sessions should be revoked after a replay")
}

func TestRefreshRejectsGarbageWithoutStoreCalls(t *testing.T) {
	f := newFakeUsers()
	svc := newTestService(f)

	_, err := svc.Refresh(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.Zero(t, f.consumed)
	assert.Empty(t, f.revoked)
}

func TestRegisterCreatesTeacherAccount(t *testing.T) {
	f := newFakeUsers()
	svc := newTestService(f)

	u, err := svc.Register(context.Background(), "new@school.test", "sesame", "Asha Verma")
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, u.Role)
	assert.True(t, CheckPassword(u.PasswordHash, "sesame"))

	_, err = svc.Register(context.Background(), "new@school.test", "other", "Someone Else")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestCreateAccountRejectsUnknownRole(t *testing.T) {
	f := newFakeUsers()
	svc := newTestService(f)

	_, err := svc.CreateAccount(context.Background(), "x@school.test", "pw", "X", "", Role(9))
	assert.Error(t, err)
	assert.Empty(t, f.byEmail)
}

func TestMe(t *testing.T) {
	f := newFakeUsers()
	svc := newTestService(f)
	u := seedUser(t, f, "asha@school.test", "sesame", RoleSchool)

	got, err := svc.Me(context.Background(), u.ID.String())
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	_, err = svc.Me(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
