package users

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
)

// Repository manages persistence for users and jurors. The two tables are
// disjoint: an account registers into exactly one of them at signup.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateUser(ctx context.Context, user *models.User) error
	CreateJuror(ctx context.Context, juror *models.Juror) error
	FindUser(ctx context.Context, account string) (*models.User, error)
	FindJuror(ctx context.Context, account string) (*models.Juror, error)
	AccountExists(ctx context.Context, account string) (bool, error)
	AdjustRating(ctx context.Context, account string, delta int64) error
	CountJurors(ctx context.Context) (int64, error)
	JurorAt(ctx context.Context, index int64) (*models.Juror, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a users repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *repository) CreateJuror(ctx context.Context, juror *models.Juror) error {
	return r.db.WithContext(ctx).Create(juror).Error
}

func (r *repository) FindUser(ctx context.Context, account string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("account = ?", account).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading user")
	}
	return &user, nil
}

func (r *repository) FindJuror(ctx context.Context, account string) (*models.Juror, error) {
	var juror models.Juror
	err := r.db.WithContext(ctx).Where("account = ?", account).First(&juror).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading juror")
	}
	return &juror, nil
}

// AccountExists reports whether the account is registered in either table.
func (r *repository) AccountExists(ctx context.Context, account string) (bool, error) {
	user, err := r.FindUser(ctx, account)
	if err != nil {
		return false, err
	}
	if user != nil {
		return true, nil
	}
	juror, err := r.FindJuror(ctx, account)
	if err != nil {
		return false, err
	}
	return juror != nil, nil
}

// AdjustRating moves the user's rating by delta. Negative deltas floor at
// zero instead of going negative.
func (r *repository) AdjustRating(ctx context.Context, account string, delta int64) error {
	user, err := r.FindUser(ctx, account)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.New(apperrors.CodeNotRegistered, "account is not a registered user")
	}
	next := user.Rating + delta
	if next < 0 {
		next = 0
	}
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("account = ?", account).
		Update("rating", next).Error
}

func (r *repository) CountJurors(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Juror{}).Count(&count).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "counting jurors")
	}
	return count, nil
}

// JurorAt returns the juror at the given position when the pool is ordered
// by account. The ordering is stable so a drawn index always resolves to the
// same juror within one selection round.
func (r *repository) JurorAt(ctx context.Context, index int64) (*models.Juror, error) {
	var juror models.Juror
	err := r.db.WithContext(ctx).
		Order("account ASC").
		Offset(int(index)).
		First(&juror).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading juror by index")
	}
	return &juror, nil
}
