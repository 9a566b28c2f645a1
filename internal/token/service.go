package token

import (
	"context"

	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/config"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
)

// LockNotifier receives inbound transfers addressed to the workflow engine's
// account. The handshakes service implements it.
type LockNotifier interface {
	HandleLockNotification(ctx context.Context, tx *gorm.DB, from string, amount int64, memo string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TransferInput is a single token movement request.
type TransferInput struct {
	From   string
	To     string
	Amount int64
	Memo   string
}

// Service exposes the transfer surface of the token ledger. Transfers to the
// engine account double as escrow lock notifications and run in the same
// transaction as the workflow reaction.
type Service interface {
	Transfer(ctx context.Context, input TransferInput) error
	Balance(ctx context.Context, account string) (int64, error)
	Credit(ctx context.Context, account string, amount int64) error
}

type service struct {
	runner        txRunner
	ledger        Ledger
	notifier      LockNotifier
	engineAccount string
	logg          *logger.Logger
}

// NewService wires the transfer service.
func NewService(runner txRunner, ledger Ledger, notifier LockNotifier, cfg config.EscrowConfig, logg *logger.Logger) Service {
	return &service{
		runner:        runner,
		ledger:        ledger,
		notifier:      notifier,
		engineAccount: cfg.EngineAccount,
		logg:          logg,
	}
}

func (s *service) Transfer(ctx context.Context, input TransferInput) error {
	if input.From == "" || input.To == "" {
		return apperrors.New(apperrors.CodeValidation, "transfer requires both accounts")
	}
	if input.Amount <= 0 {
		return apperrors.New(apperrors.CodeValidation, "transfer amount must be positive")
	}

	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ledger.WithTx(tx).Transfer(ctx, input.From, input.To, input.Amount, input.Memo); err != nil {
			return err
		}
		if input.To == s.engineAccount && s.notifier != nil {
			return s.notifier.HandleLockNotification(ctx, tx, input.From, input.Amount, input.Memo)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"from":   input.From,
			"to":     input.To,
			"amount": input.Amount,
		})
		s.logg.Info(logCtx, "token transfer applied")
	}
	return nil
}

func (s *service) Balance(ctx context.Context, account string) (int64, error) {
	return s.ledger.BalanceOf(ctx, account)
}

func (s *service) Credit(ctx context.Context, account string, amount int64) error {
	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ledger.WithTx(tx).Credit(ctx, account, amount)
	})
}
