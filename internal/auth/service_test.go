package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campusmart/campusmart-backend/internal/users"
	pkgAuth "github.com/campusmart/campusmart-backend/pkg/auth"
	"github.com/campusmart/campusmart-backend/pkg/auth/session"
	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/db/models"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "campusmart",
	ExpirationMinutes: 30,
}

type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newStubUserRepo(seed ...*models.User) *stubUserRepo {
	repo := &stubUserRepo{users: map[string]*models.User{}}
	for _, u := range seed {
		repo.users[u.Email] = u
	}
	return repo
}

func (s *stubUserRepo) Create(_ context.Context, dto users.CreateUserDTO) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := dto.ToModel()
	s.users[user.Email] = user
	return user, nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			user.LastLoginAt = &at
		}
	}
	return nil
}

func (s *stubUserRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			user.PasswordHash = hash
		}
	}
	return nil
}

type stubSessionManager struct {
	sessions map[string]session.Issued
	revoked  []string
}

func newStubSessionManager() *stubSessionManager {
	return &stubSessionManager{sessions: map[string]session.Issued{}}
}

func (s *stubSessionManager) Start(_ context.Context, userID uuid.UUID) (session.Issued, error) {
	issued := session.Issued{AccessID: session.NewAccessID(), RefreshToken: uuid.NewString(), UserID: userID}
	s.sessions[issued.AccessID] = issued
	return issued, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (session.Issued, error) {
	current, ok := s.sessions[oldAccessID]
	if !ok || current.RefreshToken != provided {
		return session.Issued{}, session.ErrInvalidRefreshToken
	}
	delete(s.sessions, oldAccessID)
	return s.Start(ctx, current.UserID)
}

func (s *stubSessionManager) Revoke(_ context.Context, accessID string) error {
	delete(s.sessions, accessID)
	s.revoked = append(s.revoked, accessID)
	return nil
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.NewPasswordHasher(config.PasswordConfig{}).Hash(password)
	require.NoError(t, err)
	return hash
}

func buildTestService(t *testing.T, seed ...*models.User) (Service, *stubSessionManager) {
	t.Helper()
	sessions := newStubSessionManager()
	svc, err := NewService(ServiceParams{
		UserRepo:       newStubUserRepo(seed...),
		SessionManager: sessions,
		JWTConfig:      testJWT,
	})
	require.NoError(t, err)
	return svc, sessions
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, code), "expected %s, got %v", code, err)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{SessionManager: newStubSessionManager()})
	require.Error(t, err)
	_, err = NewService(ServiceParams{UserRepo: newStubUserRepo()})
	require.Error(t, err)
}

func TestRegisterIssuesTokensAndRejectsDuplicates(t *testing.T) {
	svc, sessions := buildTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Name:     " Grace ",
		Email:    "Grace@Campus.EDU ",
		Password: "correct horse",
		Campus:   strPtr("  "),
	})
	require.NoError(t, err)
	assert.Equal(t, "grace@campus.edu", resp.User.Email)
	assert.Equal(t, "Grace", resp.User.Name)
	assert.Nil(t, resp.User.Campus)
	assert.NotEmpty(t, resp.RefreshToken)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "grace@campus.edu", claims.Email)
	assert.Contains(t, sessions.sessions, claims.ID)

	_, err = svc.Register(ctx, RegisterRequest{Name: "Other", Email: "grace@campus.edu", Password: "another pass"})
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = svc.Register(ctx, RegisterRequest{Name: "Short", Email: "short@campus.edu", Password: "abc"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestLogin(t *testing.T) {
	password := "library-card"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "lin@campus.edu",
		PasswordHash: mustHashPassword(t, password),
		Name:         "Lin",
		IsActive:     true,
	}
	svc, _ := buildTestService(t, user)
	ctx := context.Background()

	resp, err := svc.Login(ctx, LoginRequest{Email: "LIN@campus.edu", Password: password})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	require.NotNil(t, resp.User.LastLoginAt)

	_, err = svc.Login(ctx, LoginRequest{Email: user.Email, Password: "wrong"})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@campus.edu", Password: password})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	user.IsActive = false
	_, err = svc.Login(ctx, LoginRequest{Email: user.Email, Password: password})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLoginUpgradesOutdatedHash(t *testing.T) {
	password := "lecture-notes"
	weak, err := security.NewPasswordHasher(config.PasswordConfig{ArgonTime: 1}).Hash(password)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "ade@campus.edu",
		PasswordHash: weak,
		Name:         "Ade",
		IsActive:     true,
	}
	svc, err := NewService(ServiceParams{
		UserRepo:       newStubUserRepo(user),
		SessionManager: newStubSessionManager(),
		JWTConfig:      testJWT,
		PasswordConfig: config.PasswordConfig{ArgonTime: 2},
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	require.NoError(t, err)
	assert.NotEqual(t, weak, user.PasswordHash)

	_, err = svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	require.NoError(t, err)
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	password := "library-card"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "sam@campus.edu",
		PasswordHash: mustHashPassword(t, password),
		Name:         "Sam",
		IsActive:     true,
	}
	svc, sessions := buildTestService(t, user)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: password})
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)

	_, err = svc.Refresh(ctx, RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = svc.Refresh(ctx, RefreshRequest{AccessToken: "garbage", RefreshToken: pair.RefreshToken})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	require.NoError(t, svc.Logout(ctx, pair.AccessToken))
	claims, err := pkgAuth.ParseAccessToken(testJWT, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{claims.ID}, sessions.revoked)
	assert.NotContains(t, sessions.sessions, claims.ID)

	requireCode(t, svc.Logout(ctx, "garbage"), pkgerrors.CodeUnauthorized)
}

type failingSessions struct{ *stubSessionManager }

func (f failingSessions) Rotate(context.Context, string, string) (session.Issued, error) {
	return session.Issued{}, errors.New("redis down")
}

func TestRefreshDependencyFailure(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "kai@campus.edu", Name: "Kai", IsActive: true}
	svc, err := NewService(ServiceParams{
		UserRepo:       newStubUserRepo(user),
		SessionManager: failingSessions{newStubSessionManager()},
		JWTConfig:      testJWT,
	})
	require.NoError(t, err)

	token, err := pkgAuth.MintAccessToken(testJWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: user.ID, JTI: "jti"})
	require.NoError(t, err)
	_, err = svc.Refresh(context.Background(), RefreshRequest{AccessToken: token, RefreshToken: "r"})
	requireCode(t, err, pkgerrors.CodeDependency)
}

func strPtr(v string) *string { return &v }
