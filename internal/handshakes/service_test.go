package handshakes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/internal/escrow"
	"github.com/digitalhandshake/dhs-backend/internal/token"
	"github.com/digitalhandshake/dhs-backend/internal/users"
	"github.com/digitalhandshake/dhs-backend/pkg/config"
	dbpkg "github.com/digitalhandshake/dhs-backend/pkg/db"
	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	dbtypes "github.com/digitalhandshake/dhs-backend/pkg/db/types"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/outbox"
)

const (
	testTermsHash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	altTermsHash  = "60303ae22b998861bce3b28f33eec1be758a213c86c93c076dbe9f558c11c752"

	testPrice = int64(500000) // 50.0000
	testStake = int64(300000) // 30.0000
)

func setupHandshakesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
  account TEXT PRIMARY KEY,
  rating INTEGER NOT NULL DEFAULT 0,
  external_data_hash TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL DEFAULT '',
  created_at DATETIME,
  updated_at DATETIME
)`,
		`CREATE TABLE IF NOT EXISTS jurors (
  account TEXT PRIMARY KEY,
  external_data_hash TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL DEFAULT '',
  created_at DATETIME
)`,
		`CREATE TABLE IF NOT EXISTS handshakes (
  id INTEGER PRIMARY KEY,
  dealer TEXT NOT NULL,
  bidder TEXT NOT NULL,
  price_amount INTEGER NOT NULL DEFAULT 0,
  deadline INTEGER NOT NULL DEFAULT 0,
  terms_hash TEXT,
  status TEXT NOT NULL,
  unlocked_by_dealer INTEGER NOT NULL DEFAULT 0,
  unlocked_by_bidder INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
)`,
		`CREATE TABLE IF NOT EXISTS negotiations (
  handshake_id INTEGER PRIMARY KEY,
  proposed_terms_hashes TEXT NOT NULL DEFAULT '[]',
  proposed_prices TEXT NOT NULL DEFAULT '[]',
  proposed_deadlines TEXT NOT NULL DEFAULT '[]',
  accepted_by_dealer INTEGER NOT NULL DEFAULT 0,
  accepted_by_bidder INTEGER NOT NULL DEFAULT 0,
  locked_by_dealer INTEGER NOT NULL DEFAULT 0,
  locked_by_bidder INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
)`,
		`CREATE TABLE IF NOT EXISTS locked_balances (
  account TEXT PRIMARY KEY,
  funds INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
)`,
		`CREATE TABLE IF NOT EXISTS token_accounts (
  account TEXT PRIMARY KEY,
  balance INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
)`,
	}
	for _, stmt := range stmts {
		require.NoError(t, db.Exec(stmt).Error)
	}
	for _, table := range []string{"users", "jurors", "handshakes", "negotiations", "locked_balances", "token_accounts"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubEmitter) has(eventType enums.OutboxEventType) bool {
	for _, event := range s.events {
		if event.EventType == eventType {
			return true
		}
	}
	return false
}

type fixture struct {
	t       *testing.T
	db      *gorm.DB
	svc     *service
	emitter *stubEmitter
	ledger  token.Ledger
	now     time.Time
}

func escrowTestConfig() config.EscrowConfig {
	return config.EscrowConfig{
		EngineAccount:   "dhsservice",
		EscrowAccount:   "dhsescrow",
		TokenPrecision:  4,
		FixedStakeWhole: 30,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupHandshakesTestDB(t)
	cfg := escrowTestConfig()
	emitter := &stubEmitter{}
	ledger := token.NewGormLedger(db)
	escrowSvc := escrow.NewService(escrow.NewRepository(db), ledger, cfg, nil)
	userRepo := users.NewRepository(db)
	svc := NewService(dbpkg.NewFromConn(db), NewRepository(db), escrowSvc, ledger, userRepo, emitter, cfg, nil).(*service)

	f := &fixture{t: t, db: db, svc: svc, emitter: emitter, ledger: ledger, now: time.Now()}
	svc.now = func() time.Time { return f.now }

	for _, account := range []string{"dealer.one", "bidder.one"} {
		require.NoError(t, db.Create(&models.User{Account: account, ExternalDataHash: testTermsHash}).Error)
	}
	return f
}

func (f *fixture) deadline() int64 {
	return f.now.Add(48 * time.Hour).Unix()
}

// seedHandshake inserts a handshake in NEGOTIATION with the request's
// original terms as proposal zero.
func (f *fixture) seedHandshake(id int64) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&models.Handshake{
		ID:     id,
		Dealer: "dealer.one",
		Bidder: "bidder.one",
		Status: enums.HandshakeStatusNegotiation,
	}).Error)
	require.NoError(f.t, f.db.Create(&models.Negotiation{
		HandshakeID:         id,
		ProposedTermsHashes: dbtypes.StringList{testTermsHash},
		ProposedPrices:      dbtypes.Int64List{testPrice},
		ProposedDeadlines:   dbtypes.Int64List{f.deadline()},
	}).Error)
}

func (f *fixture) fund(account string, amount int64) {
	f.t.Helper()
	require.NoError(f.t, f.ledger.Credit(context.Background(), account, amount))
}

// driveToLock accepts terms for both parties in turn order.
func (f *fixture) driveToLock(id int64) {
	f.t.Helper()
	ctx := context.Background()
	f.fund("dealer.one", testPrice+testStake)
	f.fund("bidder.one", testStake)
	// One proposal is on the table (the seed), so the bidder moves first.
	_, err := f.svc.AcceptTerms(ctx, id, "bidder.one")
	require.NoError(f.t, err)
	_, err = f.svc.AcceptTerms(ctx, id, "dealer.one")
	require.NoError(f.t, err)
}

// driveToExecution locks both parties' funds via transfer notifications.
func (f *fixture) driveToExecution(id int64) {
	f.t.Helper()
	f.driveToLock(id)
	f.transferToEngine("dealer.one", testPrice+testStake, "1")
	f.transferToEngine("bidder.one", testStake, "1")
}

// transferToEngine mimics the token service: ledger movement plus the lock
// notification in one transaction.
func (f *fixture) transferToEngine(from string, amount int64, memo string) {
	f.t.Helper()
	ctx := context.Background()
	client := dbpkg.NewFromConn(f.db)
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := f.ledger.WithTx(tx).Transfer(ctx, from, "dhsservice", amount, memo); err != nil {
			return err
		}
		return f.svc.HandleLockNotification(ctx, tx, from, amount, memo)
	})
	require.NoError(f.t, err)
}

func (f *fixture) handshake(id int64) *models.Handshake {
	f.t.Helper()
	row, err := f.svc.repo.FindByID(context.Background(), id)
	require.NoError(f.t, err)
	require.NotNil(f.t, row)
	return row
}

func (f *fixture) balance(account string) int64 {
	f.t.Helper()
	got, err := f.ledger.BalanceOf(context.Background(), account)
	require.NoError(f.t, err)
	return got
}

func (f *fixture) rating(account string) int64 {
	f.t.Helper()
	user, err := users.NewRepository(f.db).FindUser(context.Background(), account)
	require.NoError(f.t, err)
	require.NotNil(f.t, user)
	return user.Rating
}

func TestNegotiateAlternatesTurns(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	ctx := context.Background()

	// Seed proposal is the dealer's, so the dealer may not move twice.
	_, err := f.svc.Negotiate(ctx, NegotiateInput{
		HandshakeID: 1, Caller: "dealer.one",
		TermsHash: altTermsHash, PriceAmount: 450000, Deadline: f.deadline(),
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))

	negotiation, err := f.svc.Negotiate(ctx, NegotiateInput{
		HandshakeID: 1, Caller: "bidder.one",
		TermsHash: altTermsHash, PriceAmount: 600000, Deadline: f.deadline(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, negotiation.ProposalCount())

	// Now it is the dealer's turn again.
	_, err = f.svc.Negotiate(ctx, NegotiateInput{
		HandshakeID: 1, Caller: "bidder.one",
		TermsHash: altTermsHash, PriceAmount: 550000, Deadline: f.deadline(),
	})
	require.Error(t, err)

	_, err = f.svc.Negotiate(ctx, NegotiateInput{
		HandshakeID: 1, Caller: "dealer.one",
		TermsHash: altTermsHash, PriceAmount: 550000, Deadline: f.deadline(),
	})
	require.NoError(t, err)
}

func TestNegotiateRejectedAfterAcceptance(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	ctx := context.Background()
	f.fund("bidder.one", testStake)

	_, err := f.svc.AcceptTerms(ctx, 1, "bidder.one")
	require.NoError(t, err)

	_, err = f.svc.Negotiate(ctx, NegotiateInput{
		HandshakeID: 1, Caller: "dealer.one",
		TermsHash: altTermsHash, PriceAmount: 1, Deadline: f.deadline(),
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
}

func TestNegotiateRejectsOutsiders(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)

	_, err := f.svc.Negotiate(context.Background(), NegotiateInput{
		HandshakeID: 1, Caller: "mallory",
		TermsHash: altTermsHash, PriceAmount: 1, Deadline: f.deadline(),
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestAcceptTermsRequiresBalance(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	ctx := context.Background()

	// Bidder has no tokens, so the stake precondition fails.
	_, err := f.svc.AcceptTerms(ctx, 1, "bidder.one")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientFunds))
}

func TestAcceptTermsDoubleAcceptFails(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	ctx := context.Background()
	f.fund("bidder.one", testStake)

	_, err := f.svc.AcceptTerms(ctx, 1, "bidder.one")
	require.NoError(t, err)

	_, err = f.svc.AcceptTerms(ctx, 1, "bidder.one")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyDone))
}

func TestAcceptTermsFreezesLastProposal(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	f.driveToLock(1)

	handshake := f.handshake(1)
	assert.Equal(t, enums.HandshakeStatusLock, handshake.Status)
	assert.Equal(t, testTermsHash, handshake.TermsHash)
	assert.Equal(t, testPrice, handshake.PriceAmount)
	assert.True(t, f.emitter.has(enums.EventTermsAccepted))
}

func TestLockNotificationsReachExecution(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	f.driveToExecution(1)

	handshake := f.handshake(1)
	assert.Equal(t, enums.HandshakeStatusExecution, handshake.Status)
	assert.True(t, f.emitter.has(enums.EventHandshakeExecuting))

	// Scenario B balances: both parties' funds sit in escrow custody.
	assert.Equal(t, int64(0), f.balance("dealer.one"))
	assert.Equal(t, int64(0), f.balance("bidder.one"))
	assert.Equal(t, testPrice+2*testStake, f.balance("dhsescrow"))
}

func TestLockNotificationRejectsWrongAmount(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	f.driveToLock(1)
	ctx := context.Background()

	err := dbpkg.NewFromConn(f.db).WithTx(ctx, func(tx *gorm.DB) error {
		return f.svc.HandleLockNotification(ctx, tx, "dealer.one", testStake, "1")
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestLockNotificationRejectsBadMemo(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	f.driveToLock(1)
	ctx := context.Background()

	err := dbpkg.NewFromConn(f.db).WithTx(ctx, func(tx *gorm.DB) error {
		return f.svc.HandleLockNotification(ctx, tx, "dealer.one", testPrice+testStake, "not-a-number")
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestLockNotificationDuplicateFails(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	f.driveToLock(1)
	f.transferToEngine("dealer.one", testPrice+testStake, "1")
	ctx := context.Background()

	err := dbpkg.NewFromConn(f.db).WithTx(ctx, func(tx *gorm.DB) error {
		return f.svc.HandleLockNotification(ctx, tx, "dealer.one", testPrice+testStake, "1")
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyDone))
}

func TestEndJobTransitionsToConfirmation(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	f.driveToExecution(1)
	ctx := context.Background()

	handshake, err := f.svc.EndJob(ctx, 1, "bidder.one")
	require.NoError(t, err)
	assert.Equal(t, enums.HandshakeStatusConfirmation, handshake.Status)
	assert.True(t, f.emitter.has(enums.EventJobEnded))
}

func TestEndJobOnlyBidderBeforeDeadline(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	f.driveToExecution(1)
	ctx := context.Background()

	_, err := f.svc.EndJob(ctx, 1, "dealer.one")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	f.now = f.now.Add(72 * time.Hour)
	_, err = f.svc.EndJob(ctx, 1, "bidder.one")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
}

func TestDeadlineInstantStartsExpiry(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	f.driveToExecution(1)
	ctx := context.Background()

	// At exactly the agreed deadline the job can no longer be ended,
	// but expiry is already open.
	at := f.deadline()
	f.now = time.Unix(at, 0)

	_, err := f.svc.EndJob(ctx, 1, "bidder.one")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))

	_, err = f.svc.Expire(ctx, 1, "dealer.one")
	require.NoError(t, err)
}

func TestAcceptJobSettlesAndRates(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	f.driveToExecution(1)
	ctx := context.Background()

	_, err := f.svc.EndJob(ctx, 1, "bidder.one")
	require.NoError(t, err)

	handshake, err := f.svc.AcceptJob(ctx, 1, "dealer.one")
	require.NoError(t, err)
	assert.Equal(t, enums.HandshakeStatusAccepted, handshake.Status)

	// Scenario C: dealer gets the stake back, bidder gets stake+price.
	assert.Equal(t, testStake, f.balance("dealer.one"))
	assert.Equal(t, testStake+testPrice, f.balance("bidder.one"))
	assert.Equal(t, int64(1), f.rating("dealer.one"))
	assert.Equal(t, int64(1), f.rating("bidder.one"))
	assert.True(t, f.emitter.has(enums.EventHandshakeAccepted))
}

func TestAcceptJobOnlyDealerFromConfirmation(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	f.driveToExecution(1)
	ctx := context.Background()

	_, err := f.svc.AcceptJob(ctx, 1, "dealer.one")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))

	_, err = f.svc.EndJob(ctx, 1, "bidder.one")
	require.NoError(t, err)

	_, err = f.svc.AcceptJob(ctx, 1, "bidder.one")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestExpireUnlocksEachPartyOnce(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	f.driveToExecution(1)
	ctx := context.Background()

	// Scenario E: deadline passes while executing.
	f.now = f.now.Add(72 * time.Hour)

	handshake, err := f.svc.Expire(ctx, 1, "dealer.one")
	require.NoError(t, err)
	assert.Equal(t, enums.HandshakeStatusExecution, handshake.Status)
	assert.Equal(t, testPrice+testStake, f.balance("dealer.one"))

	handshake, err = f.svc.Expire(ctx, 1, "bidder.one")
	require.NoError(t, err)
	assert.Equal(t, enums.HandshakeStatusExpired, handshake.Status)
	assert.Equal(t, testStake, f.balance("bidder.one"))
	assert.True(t, f.emitter.has(enums.EventHandshakeExpired))

	_, err = f.svc.Expire(ctx, 1, "dealer.one")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
}

func TestExpireDuplicateWhileStillExecuting(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	f.driveToExecution(1)
	ctx := context.Background()

	f.now = f.now.Add(72 * time.Hour)

	_, err := f.svc.Expire(ctx, 1, "dealer.one")
	require.NoError(t, err)

	_, err = f.svc.Expire(ctx, 1, "dealer.one")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyDone))
}

func TestExpireRequiresPassedDeadline(t *testing.T) {
	f := newFixture(t)
	f.seedHandshake(1)
	f.driveToExecution(1)

	_, err := f.svc.Expire(context.Background(), 1, "dealer.one")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
}
