package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/medibook/clinic-api/internal/models"
	appErrors "github.com/medibook/clinic-api/pkg/errors"
)

type authRepoStub struct {
	usersByEmail  map[string]*models.User
	usersByID     map[string]*models.User
	tokens        map[string]*models.RefreshToken
	created       []*models.User
	createdTokens []*models.RefreshToken
	revoked       []string
	lastLoginSet  bool
	passwordSet   string
}

func (s *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := s.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.usersByID[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := s.usersByEmail[email]
	return ok, nil
}

func (s *authRepoStub) Create(ctx context.Context, user *models.User) error {
	s.created = append(s.created, user)
	return nil
}

func (s *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	s.lastLoginSet = true
	return nil
}

func (s *authRepoStub) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	s.passwordSet = passwordHash
	return nil
}

func (s *authRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	s.revoked = append(s.revoked, userID)
	return nil
}

func (s *authRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	s.createdTokens = append(s.createdTokens, token)
	return nil
}

func (s *authRepoStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := s.tokens[token]; ok {
		return stored, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	s.revoked = append(s.revoked, id)
	return nil
}

type auditStub struct {
	records []*models.AuditLog
}

func (s *auditStub) Record(log *models.AuditLog) {
	s.records = append(s.records, log)
}

func authTestConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "clinic-api-test",
	}
}

func activeUser(t *testing.T) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "jane@example.com",
		PasswordHash: string(hash),
		FullName:     "Jane Roe",
		Role:         models.RolePatient,
		Active:       true,
	}
}

func TestAuthServiceLogin(t *testing.T) {
	user := activeUser(t)
	repo := &authRepoStub{
		usersByEmail: map[string]*models.User{user.Email: user},
		usersByID:    map[string]*models.User{user.ID: user},
	}
	audit := &auditStub{}
	svc := NewAuthService(repo, audit, nil, nil, authTestConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, user.ID, resp.User.ID)
	require.Len(t, repo.createdTokens, 1)
	assert.True(t, repo.lastLoginSet)
	require.Len(t, audit.records, 1)
	assert.Equal(t, models.AuditActionLogin, audit.records[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RolePatient, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	user := activeUser(t)
	repo := &authRepoStub{usersByEmail: map[string]*models.User{user.Email: user}}
	svc := NewAuthService(repo, nil, nil, nil, authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := activeUser(t)
	user.Active = false
	repo := &authRepoStub{usersByEmail: map[string]*models.User{user.Email: user}}
	svc := NewAuthService(repo, nil, nil, nil, authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegister(t *testing.T) {
	repo := &authRepoStub{usersByEmail: map[string]*models.User{}}
	svc := NewAuthService(repo, nil, nil, nil, authTestConfig())

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "secret123",
		FullName: "New Patient",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RolePatient, info.Role)
	require.Len(t, repo.created, 1)
	assert.True(t, repo.created[0].Active)
	assert.NotEqual(t, "secret123", repo.created[0].PasswordHash)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	user := activeUser(t)
	repo := &authRepoStub{usersByEmail: map[string]*models.User{user.Email: user}}
	svc := NewAuthService(repo, nil, nil, nil, authTestConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    user.Email,
		Password: "secret123",
		FullName: "Other",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshTokenRotation(t *testing.T) {
	user := activeUser(t)
	stored := &models.RefreshToken{
		ID:        "token-1",
		UserID:    user.ID,
		Token:     "refresh-value",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	repo := &authRepoStub{
		usersByID: map[string]*models.User{user.ID: user},
		tokens:    map[string]*models.RefreshToken{stored.Token: stored},
	}
	svc := NewAuthService(repo, nil, nil, nil, authTestConfig())

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: stored.Token})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, stored.Token, resp.RefreshToken)
	assert.Contains(t, repo.revoked, stored.ID)
	require.Len(t, repo.createdTokens, 1)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	user := activeUser(t)
	stored := &models.RefreshToken{
		ID:        "token-1",
		UserID:    user.ID,
		Token:     "refresh-value",
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	repo := &authRepoStub{
		usersByID: map[string]*models.User{user.ID: user},
		tokens:    map[string]*models.RefreshToken{stored.Token: stored},
	}
	svc := NewAuthService(repo, nil, nil, nil, authTestConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: stored.Token})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	user := activeUser(t)
	repo := &authRepoStub{usersByID: map[string]*models.User{user.ID: user}}
	svc := NewAuthService(repo, nil, nil, nil, authTestConfig())

	err := svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "evenbetter",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, repo.passwordSet)
	assert.Contains(t, repo.revoked, user.ID)
}
