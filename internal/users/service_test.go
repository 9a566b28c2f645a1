package users

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/config"
	dbpkg "github.com/digitalhandshake/dhs-backend/pkg/db"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
)

const testDigest = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS users (
  account TEXT PRIMARY KEY,
  rating INTEGER NOT NULL DEFAULT 0,
  external_data_hash TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
)`,
		`CREATE TABLE IF NOT EXISTS jurors (
  account TEXT PRIMARY KEY,
  external_data_hash TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at DATETIME
)`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	require.NoError(t, db.Exec(`DELETE FROM users`).Error)
	require.NoError(t, db.Exec(`DELETE FROM jurors`).Error)
	return db
}

func newUsersService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	cfg := config.PasswordConfig{
		ArgonMemoryKiB:    8192,
		ArgonTime:         1,
		ArgonParallelism:  1,
		ArgonSaltLength:   16,
		ArgonKeyLength:    32,
		MinPasswordLength: 10,
	}
	return NewService(dbpkg.NewFromConn(db), NewRepository(db), cfg, nil)
}

func TestSignupRegistersUser(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db)

	profile, err := svc.Signup(context.Background(), SignupInput{
		Account:          "dealer.one",
		Role:             enums.AccountRoleUser,
		ExternalDataHash: testDigest,
		Password:         "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "dealer.one", profile.Account)
	assert.Equal(t, enums.AccountRoleUser, profile.Role)
	assert.Equal(t, int64(0), profile.Rating)
}

func TestSignupRegistersJuror(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db)

	profile, err := svc.Signup(context.Background(), SignupInput{
		Account:          "juror.one",
		Role:             enums.AccountRoleJuror,
		ExternalDataHash: testDigest,
		Password:         "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AccountRoleJuror, profile.Role)

	// Jurors are not users and vice versa.
	repo := NewRepository(db)
	user, err := repo.FindUser(context.Background(), "juror.one")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSignupRejectsDuplicateAccount(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db)
	ctx := context.Background()

	input := SignupInput{
		Account:          "dealer.one",
		Role:             enums.AccountRoleUser,
		ExternalDataHash: testDigest,
		Password:         "correct horse battery",
	}
	_, err := svc.Signup(ctx, input)
	require.NoError(t, err)

	_, err = svc.Signup(ctx, input)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyDone))

	// Re-registering under the other role also fails.
	input.Role = enums.AccountRoleJuror
	_, err = svc.Signup(ctx, input)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyDone))
}

func TestSignupValidation(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db)
	ctx := context.Background()

	cases := []struct {
		name  string
		input SignupInput
	}{
		{"missing account", SignupInput{Role: enums.AccountRoleUser, ExternalDataHash: testDigest, Password: "correct horse battery"}},
		{"bad role", SignupInput{Account: "a", Role: enums.AccountRole("admin"), ExternalDataHash: testDigest, Password: "correct horse battery"}},
		{"short digest", SignupInput{Account: "a", Role: enums.AccountRoleUser, ExternalDataHash: "abc123", Password: "correct horse battery"}},
		{"uppercase digest", SignupInput{Account: "a", Role: enums.AccountRoleUser, ExternalDataHash: strings.ToUpper(testDigest), Password: "correct horse battery"}},
		{"short password", SignupInput{Account: "a", Role: enums.AccountRoleUser, ExternalDataHash: testDigest, Password: "short"}},
		{"account too long", SignupInput{Account: "dealer.number.one", Role: enums.AccountRoleUser, ExternalDataHash: testDigest, Password: "correct horse battery"}},
		{"uppercase account", SignupInput{Account: "Dealer.one", Role: enums.AccountRoleUser, ExternalDataHash: testDigest, Password: "correct horse battery"}},
		{"digit outside 1-5", SignupInput{Account: "dealer6", Role: enums.AccountRoleUser, ExternalDataHash: testDigest, Password: "correct horse battery"}},
		{"underscore in account", SignupInput{Account: "dealer_one", Role: enums.AccountRoleUser, ExternalDataHash: testDigest, Password: "correct horse battery"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tc.input)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
		})
	}
}

func TestSignupAcceptsChainAccountNames(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db)
	ctx := context.Background()

	// 1 to 12 characters of a-z, 1-5 and dot.
	for _, account := range []string{"a", "z1.5", "dealer.one12"} {
		profile, err := svc.Signup(ctx, SignupInput{
			Account:          account,
			Role:             enums.AccountRoleUser,
			ExternalDataHash: testDigest,
			Password:         "correct horse battery",
		})
		require.NoError(t, err, account)
		assert.Equal(t, account, profile.Account)
	}
}

func TestAdjustRatingFloorsAtZero(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{
		Account:          "dealer.one",
		Role:             enums.AccountRoleUser,
		ExternalDataHash: testDigest,
		Password:         "correct horse battery",
	})
	require.NoError(t, err)

	repo := NewRepository(db)
	require.NoError(t, repo.AdjustRating(ctx, "dealer.one", -1))

	user, err := repo.FindUser(ctx, "dealer.one")
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Rating)

	require.NoError(t, repo.AdjustRating(ctx, "dealer.one", 1))
	user, err = repo.FindUser(ctx, "dealer.one")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.Rating)
}

func TestGetProfileNotRegistered(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db)

	_, err := svc.GetProfile(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotRegistered))
}
