package escrow

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
)

// Repository manages persistence for locked balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, account string) (*models.LockedBalance, error)
	Add(ctx context.Context, account string, amount int64) error
	DecrementCovered(ctx context.Context, account string, amount int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an escrow repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Find returns the locked balance row for the account, or nil when the
// account has never locked funds.
func (r *repository) Find(ctx context.Context, account string) (*models.LockedBalance, error) {
	var row models.LockedBalance
	err := r.db.WithContext(ctx).Where("account = ?", account).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading locked balance")
	}
	return &row, nil
}

// Add increases the account's locked funds, creating the row on first lock.
func (r *repository) Add(ctx context.Context, account string, amount int64) error {
	res := r.db.WithContext(ctx).Model(&models.LockedBalance{}).
		Where("account = ?", account).
		Update("funds", gorm.Expr("funds + ?", amount))
	if res.Error != nil {
		return apperrors.Wrap(apperrors.CodeInternal, res.Error, "adding locked funds")
	}
	if res.RowsAffected == 0 {
		row := models.LockedBalance{Account: account, Funds: amount}
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating locked balance")
		}
	}
	return nil
}

// DecrementCovered subtracts amount from the account's locked funds. The
// guard in the WHERE clause keeps funds from ever going negative.
func (r *repository) DecrementCovered(ctx context.Context, account string, amount int64) error {
	res := r.db.WithContext(ctx).Model(&models.LockedBalance{}).
		Where("account = ? AND funds >= ?", account, amount).
		Update("funds", gorm.Expr("funds - ?", amount))
	if res.Error != nil {
		return apperrors.Wrap(apperrors.CodeInternal, res.Error, "decrementing locked funds")
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeInsufficientFunds, "locked funds do not cover amount")
	}
	return nil
}
