package auth

import (
	"context"
	"time"

	pkgauth "github.com/digitalhandshake/dhs-backend/pkg/auth"
	"github.com/digitalhandshake/dhs-backend/pkg/config"
	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
	"github.com/digitalhandshake/dhs-backend/pkg/security"
)

// usersRepository is the slice of the users repository the login flow needs.
type usersRepository interface {
	FindUser(ctx context.Context, account string) (*models.User, error)
	FindJuror(ctx context.Context, account string) (*models.Juror, error)
}

const invalidCredentialsMessage = "invalid credentials"

// LoginRequest carries the account credentials.
type LoginRequest struct {
	Account  string
	Password string
}

// LoginResponse holds the minted access token and the resolved identity.
type LoginResponse struct {
	Token     string            `json:"token"`
	Account   string            `json:"account"`
	Role      enums.AccountRole `json:"role"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Service authenticates registered accounts and mints access tokens.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type service struct {
	repo   usersRepository
	jwtCfg config.JWTConfig
	now    func() time.Time
	logg   *logger.Logger
}

// NewService wires the login service.
func NewService(repo usersRepository, jwtCfg config.JWTConfig, logg *logger.Logger) Service {
	return &service{repo: repo, jwtCfg: jwtCfg, now: time.Now, logg: logg}
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if req.Account == "" || req.Password == "" {
		return nil, apperrors.New(apperrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	role, passwordHash, err := s.lookup(ctx, req.Account)
	if err != nil {
		return nil, err
	}

	ok, err := security.VerifyPassword(req.Password, passwordHash)
	if err != nil || !ok {
		return nil, apperrors.New(apperrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := s.now()
	token, err := pkgauth.MintAccessToken(s.jwtCfg, now, pkgauth.AccessTokenPayload{
		Account: req.Account,
		Role:    role,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "minting access token")
	}

	if s.logg != nil {
		logCtx := s.logg.WithAccount(ctx, req.Account)
		s.logg.Info(logCtx, "account logged in")
	}

	return &LoginResponse{
		Token:     token,
		Account:   req.Account,
		Role:      role,
		ExpiresAt: now.Add(s.jwtCfg.AccessTTL),
	}, nil
}

func (s *service) lookup(ctx context.Context, account string) (enums.AccountRole, string, error) {
	user, err := s.repo.FindUser(ctx, account)
	if err != nil {
		return "", "", err
	}
	if user != nil {
		return enums.AccountRoleUser, user.PasswordHash, nil
	}
	juror, err := s.repo.FindJuror(ctx, account)
	if err != nil {
		return "", "", err
	}
	if juror != nil {
		return enums.AccountRoleJuror, juror.PasswordHash, nil
	}
	// Same rejection as a bad password so probes cannot enumerate accounts.
	return "", "", apperrors.New(apperrors.CodeUnauthorized, invalidCredentialsMessage)
}
