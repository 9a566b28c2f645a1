package token

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/config"
	dbpkg "github.com/digitalhandshake/dhs-backend/pkg/db"
	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
)

func setupTokenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS token_accounts (
  account TEXT PRIMARY KEY,
  balance INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	require.NoError(t, db.Exec(`DELETE FROM token_accounts`).Error)
	return db
}

type captureNotifier struct {
	from   string
	amount int64
	memo   string
	calls  int
	err    error
}

func (n *captureNotifier) HandleLockNotification(ctx context.Context, tx *gorm.DB, from string, amount int64, memo string) error {
	n.calls++
	n.from = from
	n.amount = amount
	n.memo = memo
	return n.err
}

func newTokenService(t *testing.T, db *gorm.DB, notifier LockNotifier) Service {
	t.Helper()
	client := dbpkg.NewFromConn(db)
	cfg := config.EscrowConfig{EngineAccount: "dhsservice", EscrowAccount: "dhsescrow"}
	return NewService(client, NewGormLedger(db), notifier, cfg, nil)
}

func mustBalance(t *testing.T, db *gorm.DB, account string) int64 {
	t.Helper()
	var row models.TokenAccount
	err := db.Where("account = ?", account).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0
	}
	require.NoError(t, err)
	return row.Balance
}

func TestTransferMovesBalance(t *testing.T) {
	db := setupTokenTestDB(t)
	svc := newTokenService(t, db, nil)
	ctx := context.Background()

	require.NoError(t, svc.Credit(ctx, "alice", 500000))

	err := svc.Transfer(ctx, TransferInput{From: "alice", To: "bob", Amount: 200000})
	require.NoError(t, err)

	assert.Equal(t, int64(300000), mustBalance(t, db, "alice"))
	assert.Equal(t, int64(200000), mustBalance(t, db, "bob"))
}

func TestTransferInsufficientFunds(t *testing.T) {
	db := setupTokenTestDB(t)
	svc := newTokenService(t, db, nil)
	ctx := context.Background()

	require.NoError(t, svc.Credit(ctx, "alice", 100))

	err := svc.Transfer(ctx, TransferInput{From: "alice", To: "bob", Amount: 200})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientFunds))
	assert.Equal(t, int64(100), mustBalance(t, db, "alice"))
	assert.Equal(t, int64(0), mustBalance(t, db, "bob"))
}

func TestTransferToEngineDispatchesNotifier(t *testing.T) {
	db := setupTokenTestDB(t)
	notifier := &captureNotifier{}
	svc := newTokenService(t, db, notifier)
	ctx := context.Background()

	require.NoError(t, svc.Credit(ctx, "dealer.one", 800000))

	err := svc.Transfer(ctx, TransferInput{From: "dealer.one", To: "dhsservice", Amount: 800000, Memo: "1"})
	require.NoError(t, err)

	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, "dealer.one", notifier.from)
	assert.Equal(t, int64(800000), notifier.amount)
	assert.Equal(t, "1", notifier.memo)
}

func TestTransferNotifierFailureRollsBackLedger(t *testing.T) {
	db := setupTokenTestDB(t)
	notifier := &captureNotifier{err: apperrors.New(apperrors.CodeValidation, "bad memo")}
	svc := newTokenService(t, db, notifier)
	ctx := context.Background()

	require.NoError(t, svc.Credit(ctx, "dealer.one", 800000))

	err := svc.Transfer(ctx, TransferInput{From: "dealer.one", To: "dhsservice", Amount: 800000, Memo: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	assert.Equal(t, int64(800000), mustBalance(t, db, "dealer.one"))
	assert.Equal(t, int64(0), mustBalance(t, db, "dhsservice"))
}

func TestTransferToOrdinaryAccountSkipsNotifier(t *testing.T) {
	db := setupTokenTestDB(t)
	notifier := &captureNotifier{}
	svc := newTokenService(t, db, notifier)
	ctx := context.Background()

	require.NoError(t, svc.Credit(ctx, "alice", 100))
	require.NoError(t, svc.Transfer(ctx, TransferInput{From: "alice", To: "bob", Amount: 100}))
	assert.Equal(t, 0, notifier.calls)
}

func TestTransferValidation(t *testing.T) {
	db := setupTokenTestDB(t)
	svc := newTokenService(t, db, nil)
	ctx := context.Background()

	err := svc.Transfer(ctx, TransferInput{From: "", To: "bob", Amount: 10})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	err = svc.Transfer(ctx, TransferInput{From: "alice", To: "bob", Amount: 0})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	err = svc.Transfer(ctx, TransferInput{From: "alice", To: "alice", Amount: 10})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
