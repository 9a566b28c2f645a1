package requests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/digitalhandshake/dhs-backend/pkg/db"
	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/outbox"
)

const testTermsHash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func setupRequestsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS requests (
  id INTEGER PRIMARY KEY,
  dealer TEXT NOT NULL,
  summary TEXT NOT NULL,
  terms_hash TEXT NOT NULL,
  price_amount INTEGER NOT NULL,
  deadline INTEGER NOT NULL,
  status TEXT NOT NULL,
  bidders TEXT NOT NULL DEFAULT '[]',
  selected_bidder TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	require.NoError(t, db.Exec(`DELETE FROM requests`).Error)
	return db
}

type stubUserLookup struct {
	users map[string]bool
}

func (s *stubUserLookup) FindUser(ctx context.Context, account string) (*models.User, error) {
	if s.users[account] {
		return &models.User{Account: account}, nil
	}
	return nil, nil
}

type stubSeeder struct {
	handshakes   []*models.Handshake
	negotiations []*models.Negotiation
}

func (s *stubSeeder) CreateWithNegotiation(ctx context.Context, tx *gorm.DB, handshake *models.Handshake, negotiation *models.Negotiation) error {
	s.handshakes = append(s.handshakes, handshake)
	s.negotiations = append(s.negotiations, negotiation)
	return nil
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type requestsFixture struct {
	svc     Service
	db      *gorm.DB
	seeder  *stubSeeder
	emitter *stubEmitter
}

func newRequestsFixture(t *testing.T) *requestsFixture {
	t.Helper()
	db := setupRequestsTestDB(t)
	seeder := &stubSeeder{}
	emitter := &stubEmitter{}
	lookup := &stubUserLookup{users: map[string]bool{
		"dealer.one": true,
		"bidder.one": true,
		"bidder.two": true,
	}}
	svc := NewService(dbpkg.NewFromConn(db), NewRepository(db), lookup, seeder, emitter, nil)
	return &requestsFixture{svc: svc, db: db, seeder: seeder, emitter: emitter}
}

func futureDeadline() int64 {
	return time.Now().Add(48 * time.Hour).Unix()
}

func postTestRequest(t *testing.T, f *requestsFixture) *models.Request {
	t.Helper()
	request, err := f.svc.PostRequest(context.Background(), PostRequestInput{
		Dealer:      "dealer.one",
		Summary:     "build a deck",
		TermsHash:   testTermsHash,
		PriceAmount: 500000,
		Deadline:    futureDeadline(),
	})
	require.NoError(t, err)
	return request
}

func TestPostRequestAssignsSequentialIDs(t *testing.T) {
	f := newRequestsFixture(t)

	first := postTestRequest(t, f)
	second := postTestRequest(t, f)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, enums.RequestStatusOpen, first.Status)

	require.Len(t, f.emitter.events, 2)
	assert.Equal(t, enums.EventRequestPosted, f.emitter.events[0].EventType)
}

func TestPostRequestValidation(t *testing.T) {
	f := newRequestsFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input PostRequestInput
		code  apperrors.Code
	}{
		{"empty summary", PostRequestInput{Dealer: "dealer.one", TermsHash: testTermsHash, PriceAmount: 1, Deadline: futureDeadline()}, apperrors.CodeValidation},
		{"bad digest", PostRequestInput{Dealer: "dealer.one", Summary: "x", TermsHash: "zz", PriceAmount: 1, Deadline: futureDeadline()}, apperrors.CodeValidation},
		{"zero price", PostRequestInput{Dealer: "dealer.one", Summary: "x", TermsHash: testTermsHash, PriceAmount: 0, Deadline: futureDeadline()}, apperrors.CodeValidation},
		{"past deadline", PostRequestInput{Dealer: "dealer.one", Summary: "x", TermsHash: testTermsHash, PriceAmount: 1, Deadline: time.Now().Add(-time.Hour).Unix()}, apperrors.CodeValidation},
		{"unregistered dealer", PostRequestInput{Dealer: "ghost", Summary: "x", TermsHash: testTermsHash, PriceAmount: 1, Deadline: futureDeadline()}, apperrors.CodeNotRegistered},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.PostRequest(ctx, tc.input)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tc.code))
		})
	}
}

func TestProposeRecordsBidder(t *testing.T) {
	f := newRequestsFixture(t)
	ctx := context.Background()
	request := postTestRequest(t, f)

	updated, err := f.svc.Propose(ctx, request.ID, "bidder.one")
	require.NoError(t, err)
	assert.True(t, updated.Bidders.Contains("bidder.one"))

	_, err = f.svc.Propose(ctx, request.ID, "bidder.one")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyDone))
}

func TestProposeRejections(t *testing.T) {
	f := newRequestsFixture(t)
	ctx := context.Background()
	request := postTestRequest(t, f)

	_, err := f.svc.Propose(ctx, 999, "bidder.one")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.Propose(ctx, request.ID, "ghost")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotRegistered))

	_, err = f.svc.Propose(ctx, request.ID, "dealer.one")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestSelectBidderOpensHandshake(t *testing.T) {
	f := newRequestsFixture(t)
	ctx := context.Background()
	request := postTestRequest(t, f)

	_, err := f.svc.Propose(ctx, request.ID, "bidder.one")
	require.NoError(t, err)
	_, err = f.svc.Propose(ctx, request.ID, "bidder.two")
	require.NoError(t, err)

	handshake, err := f.svc.SelectBidder(ctx, request.ID, "dealer.one", "bidder.one")
	require.NoError(t, err)

	assert.Equal(t, request.ID, handshake.ID)
	assert.Equal(t, enums.HandshakeStatusNegotiation, handshake.Status)
	assert.Equal(t, "bidder.one", handshake.Bidder)

	require.Len(t, f.seeder.negotiations, 1)
	negotiation := f.seeder.negotiations[0]
	// The negotiation is seeded with the request's original terms.
	require.Equal(t, 1, negotiation.ProposalCount())
	assert.Equal(t, request.TermsHash, negotiation.ProposedTermsHashes[0])
	assert.Equal(t, request.PriceAmount, negotiation.ProposedPrices[0])
	assert.Equal(t, request.Deadline, negotiation.ProposedDeadlines[0])

	stored, err := f.svc.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RequestStatusClosed, stored.Status)
	assert.Equal(t, "bidder.one", stored.SelectedBidder)
}

func TestSelectBidderRejections(t *testing.T) {
	f := newRequestsFixture(t)
	ctx := context.Background()
	request := postTestRequest(t, f)
	_, err := f.svc.Propose(ctx, request.ID, "bidder.one")
	require.NoError(t, err)

	_, err = f.svc.SelectBidder(ctx, request.ID, "bidder.two", "bidder.one")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.SelectBidder(ctx, request.ID, "dealer.one", "bidder.two")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.SelectBidder(ctx, request.ID, "dealer.one", "bidder.one")
	require.NoError(t, err)

	_, err = f.svc.SelectBidder(ctx, request.ID, "dealer.one", "bidder.one")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
}

func TestListOpenSkipsClosed(t *testing.T) {
	f := newRequestsFixture(t)
	ctx := context.Background()

	first := postTestRequest(t, f)
	second := postTestRequest(t, f)

	_, err := f.svc.Propose(ctx, first.ID, "bidder.one")
	require.NoError(t, err)
	_, err = f.svc.SelectBidder(ctx, first.ID, "dealer.one", "bidder.one")
	require.NoError(t, err)

	open, err := f.svc.ListOpen(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)
}
