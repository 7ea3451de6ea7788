package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail       *models.User
	userByID          *models.User
	findByEmailErr    error
	findByIDErr       error
	created           *models.User
	refreshTokens     map[string]*models.RefreshToken
	verificationCodes map[string]*models.VerificationCode
	verifiedChannels  []models.VerificationChannel
	lastLoginUpdated  bool
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		refreshTokens:     make(map[string]*models.RefreshToken),
		verificationCodes: make(map[string]*models.VerificationCode),
		findByEmailErr:    sql.ErrNoRows,
	}
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.userByEmail != nil {
		return m.userByEmail, nil
	}
	return nil, m.findByEmailErr
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail != nil {
		return m.userByEmail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	m.created = user
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) SetVerified(ctx context.Context, id string, channel models.VerificationChannel, verifiedAt time.Time) error {
	m.verifiedChannels = append(m.verifiedChannels, channel)
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateVerificationCode(ctx context.Context, code *models.VerificationCode) error {
	m.verificationCodes[string(code.Channel)] = code
	return nil
}

func (m *mockAuthRepo) FindActiveVerificationCode(ctx context.Context, userID string, channel models.VerificationChannel) (*models.VerificationCode, error) {
	code, ok := m.verificationCodes[string(channel)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return code, nil
}

func (m *mockAuthRepo) ConsumeVerificationCode(ctx context.Context, id string, consumedAt time.Time) error {
	for key, code := range m.verificationCodes {
		if code.ID == id {
			delete(m.verificationCodes, key)
		}
	}
	return nil
}

type recordingSender struct {
	channel   models.VerificationChannel
	recipient string
	code      string
}

func (r *recordingSender) Send(ctx context.Context, channel models.VerificationChannel, recipient, code string) error {
	r.channel = channel
	r.recipient = recipient
	r.code = code
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		CodeTTL:            10 * time.Minute,
		CodeLength:         6,
	}
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "student@example.com",
		Password: "password",
		FullName: "Test Student",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "password", user.PasswordHash)
	require.NotNil(t, repo.created)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo()
	repo.userByEmail = &models.User{ID: "u1", Email: "student@example.com"}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "student@example.com",
		Password: "password",
		FullName: "Test Student",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := newMockAuthRepo()
	repo.userByEmail = &models.User{ID: "u1", Email: "user@example.com", PasswordHash: string(password), Active: true, Role: models.RoleAdmin}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.True(t, repo.lastLoginUpdated)
	assert.NotEmpty(t, repo.refreshTokens)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := newMockAuthRepo()
	repo.userByEmail = &models.User{ID: "u1", Email: "user@example.com", PasswordHash: string(password), Active: false}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := newMockAuthRepo()
	repo.userByEmail = &models.User{ID: "u1", Email: "user@example.com", PasswordHash: string(password), Active: true}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceRefreshTokenRotation(t *testing.T) {
	repo := newMockAuthRepo()
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: "hash", Active: true, Role: models.RoleTutor}
	repo.userByID = user
	token := &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	repo.refreshTokens[token.Token] = token

	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := newMockAuthRepo()
	user := &models.User{ID: "u1", Active: true}
	repo.userByID = user
	token := &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(-time.Hour)}
	repo.refreshTokens[token.Token] = token

	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("oldpass"), bcrypt.DefaultCost)
	repo := newMockAuthRepo()
	repo.userByEmail = &models.User{ID: "u1", PasswordHash: string(oldHash), Active: true}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpass", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEqual(t, string(oldHash), repo.userByEmail.PasswordHash)
}

func TestAuthServiceVerificationFlow(t *testing.T) {
	phone := "+2348012345678"
	repo := newMockAuthRepo()
	repo.userByID = &models.User{ID: "u1", Email: "user@example.com", Phone: &phone, Active: true}
	sender := &recordingSender{}
	svc := NewAuthService(repo, sender, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.RequestVerification(context.Background(), "u1", models.RequestVerificationRequest{Channel: "sms"})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationChannelSMS, sender.channel)
	assert.Equal(t, phone, sender.recipient)
	assert.Len(t, sender.code, 6)

	err = svc.ConfirmVerification(context.Background(), "u1", models.ConfirmVerificationRequest{Channel: "sms", Code: sender.code})
	require.NoError(t, err)
	assert.Contains(t, repo.verifiedChannels, models.VerificationChannelSMS)
}

func TestAuthServiceVerificationReusesActiveCode(t *testing.T) {
	repo := newMockAuthRepo()
	repo.userByID = &models.User{ID: "u1", Email: "user@example.com", Active: true}
	sender := &recordingSender{}
	svc := NewAuthService(repo, sender, validator.New(), zap.NewNop(), testAuthConfig())

	require.NoError(t, svc.RequestVerification(context.Background(), "u1", models.RequestVerificationRequest{Channel: "email"}))
	first := sender.code
	require.NoError(t, svc.RequestVerification(context.Background(), "u1", models.RequestVerificationRequest{Channel: "email"}))
	assert.Equal(t, first, sender.code)
	assert.Len(t, repo.verificationCodes, 1)
}

func TestAuthServiceConfirmVerificationWrongCode(t *testing.T) {
	repo := newMockAuthRepo()
	repo.userByID = &models.User{ID: "u1", Email: "user@example.com", Active: true}
	sender := &recordingSender{}
	svc := NewAuthService(repo, sender, validator.New(), zap.NewNop(), testAuthConfig())

	require.NoError(t, svc.RequestVerification(context.Background(), "u1", models.RequestVerificationRequest{Channel: "email"}))

	err := svc.ConfirmVerification(context.Background(), "u1", models.ConfirmVerificationRequest{Channel: "email", Code: "000000x"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.verifiedChannels)
}

func TestValidateToken(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}
