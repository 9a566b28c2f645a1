package token

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
)

// gormLedger is the bundled reference ledger: one balance row per account in
// token_accounts. It shares the caller's transaction so ledger movements
// commit or roll back together with workflow state.
type gormLedger struct {
	db *gorm.DB
}

// NewGormLedger returns a Ledger backed by the token_accounts table.
func NewGormLedger(db *gorm.DB) Ledger {
	return &gormLedger{db: db}
}

func (l *gormLedger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	return &gormLedger{db: tx}
}

func (l *gormLedger) Transfer(ctx context.Context, from, to string, amount int64, memo string) error {
	if from == "" || to == "" {
		return apperrors.New(apperrors.CodeValidation, "transfer requires both accounts")
	}
	if from == to {
		return apperrors.New(apperrors.CodeValidation, "cannot transfer to self")
	}
	if amount <= 0 {
		return apperrors.New(apperrors.CodeValidation, "transfer amount must be positive")
	}

	var source models.TokenAccount
	err := l.db.WithContext(ctx).Where("account = ?", from).First(&source).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.CodeInsufficientFunds, "no token balance for account")
	}
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading token balance")
	}
	if source.Balance < amount {
		return apperrors.New(apperrors.CodeInsufficientFunds, "token balance does not cover transfer")
	}

	res := l.db.WithContext(ctx).Model(&models.TokenAccount{}).
		Where("account = ? AND balance >= ?", from, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return apperrors.Wrap(apperrors.CodeInternal, res.Error, "debiting token balance")
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeInsufficientFunds, "token balance does not cover transfer")
	}

	return l.Credit(ctx, to, amount)
}

func (l *gormLedger) BalanceOf(ctx context.Context, account string) (int64, error) {
	if account == "" {
		return 0, apperrors.New(apperrors.CodeValidation, "account is required")
	}
	var row models.TokenAccount
	err := l.db.WithContext(ctx).Where("account = ?", account).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "loading token balance")
	}
	return row.Balance, nil
}

func (l *gormLedger) Credit(ctx context.Context, account string, amount int64) error {
	if account == "" {
		return apperrors.New(apperrors.CodeValidation, "account is required")
	}
	if amount <= 0 {
		return apperrors.New(apperrors.CodeValidation, "credit amount must be positive")
	}

	res := l.db.WithContext(ctx).Model(&models.TokenAccount{}).
		Where("account = ?", account).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return apperrors.Wrap(apperrors.CodeInternal, res.Error, "crediting token balance")
	}
	if res.RowsAffected == 0 {
		row := models.TokenAccount{Account: account, Balance: amount}
		if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating token balance")
		}
	}
	return nil
}
