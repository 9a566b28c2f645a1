package token

import (
	"context"

	"gorm.io/gorm"
)

// Ledger is the interface to the fungible-token system that custodies real
// balances. The escrow and workflow services only ever talk to this surface,
// so a production deployment can swap the bundled table-backed ledger for a
// client of the actual token platform.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Transfer(ctx context.Context, from, to string, amount int64, memo string) error
	BalanceOf(ctx context.Context, account string) (int64, error)
	Credit(ctx context.Context, account string, amount int64) error
}
