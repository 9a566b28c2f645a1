package users

import (
	"context"
	"regexp"

	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/config"
	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
	"github.com/digitalhandshake/dhs-backend/pkg/security"
)

var (
	digestRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

	// accountRe is the on-chain account grammar: 1 to 12 characters drawn
	// from lowercase letters, the digits 1-5 and the dot.
	accountRe = regexp.MustCompile(`^[a-z1-5.]{1,12}$`)
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service registers accounts and resolves profiles.
type Service interface {
	Signup(ctx context.Context, input SignupInput) (*Profile, error)
	GetProfile(ctx context.Context, account string) (*Profile, error)
}

type service struct {
	runner      txRunner
	repo        Repository
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// NewService wires the users service.
func NewService(runner txRunner, repo Repository, passwordCfg config.PasswordConfig, logg *logger.Logger) Service {
	return &service{runner: runner, repo: repo, passwordCfg: passwordCfg, logg: logg}
}

// Signup registers the account as either a user or a juror. The two roles
// are mutually exclusive for the lifetime of the account.
func (s *service) Signup(ctx context.Context, input SignupInput) (*Profile, error) {
	if input.Account == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "account is required")
	}
	if !accountRe.MatchString(input.Account) {
		return nil, apperrors.New(apperrors.CodeValidation, "account must be 1-12 characters of a-z, 1-5 and dot")
	}
	if !input.Role.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "role must be user or juror")
	}
	if !digestRe.MatchString(input.ExternalDataHash) {
		return nil, apperrors.New(apperrors.CodeValidation, "external data hash must be a 64-character hex digest")
	}
	if len(input.Password) < s.passwordCfg.MinPasswordLength {
		return nil, apperrors.New(apperrors.CodeValidation, "password is too short")
	}

	passwordHash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "hashing password")
	}

	var profile *Profile
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		exists, err := repo.AccountExists(ctx, input.Account)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.New(apperrors.CodeAlreadyDone, "account is already registered")
		}

		switch input.Role {
		case enums.AccountRoleJuror:
			juror := models.Juror{
				Account:          input.Account,
				ExternalDataHash: input.ExternalDataHash,
				PasswordHash:     passwordHash,
			}
			if err := repo.CreateJuror(ctx, &juror); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "creating juror")
			}
			profile = &Profile{Account: juror.Account, Role: enums.AccountRoleJuror, ExternalDataHash: juror.ExternalDataHash}
		default:
			user := models.User{
				Account:          input.Account,
				ExternalDataHash: input.ExternalDataHash,
				PasswordHash:     passwordHash,
			}
			if err := repo.CreateUser(ctx, &user); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "creating user")
			}
			profile = &Profile{Account: user.Account, Role: enums.AccountRoleUser, Rating: user.Rating, ExternalDataHash: user.ExternalDataHash}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"account": profile.Account, "role": profile.Role})
		s.logg.Info(logCtx, "account registered")
	}
	return profile, nil
}

func (s *service) GetProfile(ctx context.Context, account string) (*Profile, error) {
	if account == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "account is required")
	}
	user, err := s.repo.FindUser(ctx, account)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return &Profile{Account: user.Account, Role: enums.AccountRoleUser, Rating: user.Rating, ExternalDataHash: user.ExternalDataHash}, nil
	}
	juror, err := s.repo.FindJuror(ctx, account)
	if err != nil {
		return nil, err
	}
	if juror != nil {
		return &Profile{Account: juror.Account, Role: enums.AccountRoleJuror, ExternalDataHash: juror.ExternalDataHash}, nil
	}
	return nil, apperrors.New(apperrors.CodeNotRegistered, "account is not registered")
}
