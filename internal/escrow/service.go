package escrow

import (
	"context"

	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/internal/token"
	"github.com/digitalhandshake/dhs-backend/pkg/config"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
)

// Service is the escrow ledger. It custodies locked funds per account and
// only releases them through the four operations below, each of which
// rejects callers other than the workflow engine's identity.
//
// Every method takes the workflow transaction: precondition checks, balance
// mutations and outbound token transfers commit or roll back as one unit.
type Service interface {
	Lock(ctx context.Context, tx *gorm.DB, caller, account string, amount int64) error
	Unlock(ctx context.Context, tx *gorm.DB, caller, account string, amount int64) error
	SettleAccepted(ctx context.Context, tx *gorm.DB, caller, dealer, bidder string, price int64) error
	SettleResolved(ctx context.Context, tx *gorm.DB, caller, dealer, bidder string, price int64, jurors []string, winner enums.Party) error
	LockedFunds(ctx context.Context, account string) (int64, error)
}

type service struct {
	repo          Repository
	ledger        token.Ledger
	engineAccount string
	escrowAccount string
	stake         int64
	logg          *logger.Logger
}

// NewService wires the escrow ledger with its privileged caller identity.
func NewService(repo Repository, ledger token.Ledger, cfg config.EscrowConfig, logg *logger.Logger) Service {
	return &service{
		repo:          repo,
		ledger:        ledger,
		engineAccount: cfg.EngineAccount,
		escrowAccount: cfg.EscrowAccount,
		stake:         cfg.StakeAmount(),
		logg:          logg,
	}
}

func (s *service) requireEngine(caller string) error {
	if caller != s.engineAccount {
		return apperrors.New(apperrors.CodeForbidden, "escrow operations are restricted to the workflow engine")
	}
	return nil
}

func (s *service) Lock(ctx context.Context, tx *gorm.DB, caller, account string, amount int64) error {
	if err := s.requireEngine(caller); err != nil {
		return err
	}
	if account == "" {
		return apperrors.New(apperrors.CodeValidation, "account is required")
	}
	if amount <= 0 {
		return apperrors.New(apperrors.CodeValidation, "lock amount must be positive")
	}
	return s.repo.WithTx(tx).Add(ctx, account, amount)
}

func (s *service) Unlock(ctx context.Context, tx *gorm.DB, caller, account string, amount int64) error {
	if err := s.requireEngine(caller); err != nil {
		return err
	}
	if amount <= 0 {
		return apperrors.New(apperrors.CodeValidation, "unlock amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	row, err := repo.Find(ctx, account)
	if err != nil {
		return err
	}
	if row == nil {
		return apperrors.New(apperrors.CodeInsufficientFunds, "no locked funds for account")
	}
	if row.Funds < amount {
		return apperrors.New(apperrors.CodeInsufficientFunds, "locked funds do not cover unlock")
	}

	if err := s.ledger.WithTx(tx).Transfer(ctx, s.escrowAccount, account, amount, "unlock"); err != nil {
		return err
	}
	return repo.DecrementCovered(ctx, account, amount)
}

func (s *service) SettleAccepted(ctx context.Context, tx *gorm.DB, caller, dealer, bidder string, price int64) error {
	if err := s.requireEngine(caller); err != nil {
		return err
	}
	if price <= 0 {
		return apperrors.New(apperrors.CodeValidation, "price must be positive")
	}

	repo := s.repo.WithTx(tx)
	if err := s.requireCovered(ctx, repo, dealer, price+s.stake); err != nil {
		return err
	}
	if err := s.requireCovered(ctx, repo, bidder, s.stake); err != nil {
		return err
	}

	if err := repo.DecrementCovered(ctx, dealer, price+s.stake); err != nil {
		return err
	}
	if err := repo.DecrementCovered(ctx, bidder, s.stake); err != nil {
		return err
	}

	ledger := s.ledger.WithTx(tx)
	if err := ledger.Transfer(ctx, s.escrowAccount, dealer, s.stake, "stake returned"); err != nil {
		return err
	}
	return ledger.Transfer(ctx, s.escrowAccount, bidder, s.stake+price, "job payment")
}

func (s *service) SettleResolved(ctx context.Context, tx *gorm.DB, caller, dealer, bidder string, price int64, jurors []string, winner enums.Party) error {
	if err := s.requireEngine(caller); err != nil {
		return err
	}
	if price <= 0 {
		return apperrors.New(apperrors.CodeValidation, "price must be positive")
	}
	if len(jurors) != 3 {
		return apperrors.New(apperrors.CodeValidation, "exactly three jurors are required")
	}
	if !winner.IsValid() {
		return apperrors.New(apperrors.CodeValidation, "winner must be dealer or bidder")
	}

	repo := s.repo.WithTx(tx)
	if err := s.requireCovered(ctx, repo, dealer, price+s.stake); err != nil {
		return err
	}
	if err := s.requireCovered(ctx, repo, bidder, s.stake); err != nil {
		return err
	}

	// Both parties' collateral drains fully, whatever the verdict.
	if err := repo.DecrementCovered(ctx, dealer, price+s.stake); err != nil {
		return err
	}
	if err := repo.DecrementCovered(ctx, bidder, s.stake); err != nil {
		return err
	}

	ledger := s.ledger.WithTx(tx)
	if winner == enums.PartyDealer {
		if err := ledger.Transfer(ctx, s.escrowAccount, dealer, price+s.stake, "dispute won"); err != nil {
			return err
		}
	} else {
		if err := ledger.Transfer(ctx, s.escrowAccount, bidder, s.stake, "dispute won"); err != nil {
			return err
		}
		if err := ledger.Transfer(ctx, s.escrowAccount, dealer, price, "price returned"); err != nil {
			return err
		}
	}

	jurorShare := s.stake / 3
	for _, juror := range jurors {
		if err := ledger.Transfer(ctx, s.escrowAccount, juror, jurorShare, "juror compensation"); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) LockedFunds(ctx context.Context, account string) (int64, error) {
	row, err := s.repo.Find(ctx, account)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, nil
	}
	return row.Funds, nil
}

func (s *service) requireCovered(ctx context.Context, repo Repository, account string, amount int64) error {
	row, err := repo.Find(ctx, account)
	if err != nil {
		return err
	}
	if row == nil || row.Funds < amount {
		return apperrors.New(apperrors.CodeInsufficientFunds, "locked funds do not cover settlement")
	}
	return nil
}
