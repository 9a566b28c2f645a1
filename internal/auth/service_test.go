package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalhandshake/dhs-backend/pkg/config"
	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/security"
)

type stubUserRepo struct {
	users  map[string]*models.User
	jurors map[string]*models.Juror
}

func (s *stubUserRepo) FindUser(ctx context.Context, account string) (*models.User, error) {
	return s.users[account], nil
}

func (s *stubUserRepo) FindJuror(ctx context.Context, account string) (*models.Juror, error) {
	return s.jurors[account], nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:    "test-secret-test-secret-test-secret",
		Issuer:    "dhs-backend-test",
		AccessTTL: 15 * time.Minute,
	}
}

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKiB:   8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLength:  16,
		ArgonKeyLength:   32,
	}
}

func newStubRepo(t *testing.T) *stubUserRepo {
	t.Helper()
	hash, err := security.HashPassword("correct horse battery", testPasswordConfig())
	require.NoError(t, err)
	return &stubUserRepo{
		users: map[string]*models.User{
			"dealer.one": {Account: "dealer.one", PasswordHash: hash},
		},
		jurors: map[string]*models.Juror{
			"juror.one": {Account: "juror.one", PasswordHash: hash},
		},
	}
}

func TestLoginMintsTokenForUser(t *testing.T) {
	repo := newStubRepo(t)
	svc := NewService(repo, testJWTConfig(), nil)

	resp, err := svc.Login(context.Background(), LoginRequest{Account: "dealer.one", Password: "correct horse battery"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "dealer.one", resp.Account)
	assert.Equal(t, enums.AccountRoleUser, resp.Role)
}

func TestLoginResolvesJurorRole(t *testing.T) {
	repo := newStubRepo(t)
	svc := NewService(repo, testJWTConfig(), nil)

	resp, err := svc.Login(context.Background(), LoginRequest{Account: "juror.one", Password: "correct horse battery"})
	require.NoError(t, err)
	assert.Equal(t, enums.AccountRoleJuror, resp.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := newStubRepo(t)
	svc := NewService(repo, testJWTConfig(), nil)

	_, err := svc.Login(context.Background(), LoginRequest{Account: "dealer.one", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestLoginRejectsUnknownAccount(t *testing.T) {
	repo := newStubRepo(t)
	svc := NewService(repo, testJWTConfig(), nil)

	_, err := svc.Login(context.Background(), LoginRequest{Account: "ghost", Password: "correct horse battery"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestLoginRejectsEmptyCredentials(t *testing.T) {
	repo := newStubRepo(t)
	svc := NewService(repo, testJWTConfig(), nil)

	_, err := svc.Login(context.Background(), LoginRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}
