package requests

import (
	"context"
	"regexp"
	"time"

	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	dbtypes "github.com/digitalhandshake/dhs-backend/pkg/db/types"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
	"github.com/digitalhandshake/dhs-backend/pkg/outbox"
	"github.com/digitalhandshake/dhs-backend/pkg/outbox/payloads"
	"github.com/digitalhandshake/dhs-backend/pkg/pagination"
)

var digestRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// userLookup is the slice of the users repository this service needs.
type userLookup interface {
	FindUser(ctx context.Context, account string) (*models.User, error)
}

// handshakeSeeder creates the handshake and seeded negotiation records when
// a bidder is selected. The handshakes repository implements it.
type handshakeSeeder interface {
	CreateWithNegotiation(ctx context.Context, tx *gorm.DB, handshake *models.Handshake, negotiation *models.Negotiation) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PostRequestInput carries a new request's fields.
type PostRequestInput struct {
	Dealer      string
	Summary     string
	TermsHash   string
	PriceAmount int64
	Deadline    int64
}

// Service drives the bidding phase: posting requests, collecting proposals
// and selecting the bidder that opens a handshake.
type Service interface {
	PostRequest(ctx context.Context, input PostRequestInput) (*models.Request, error)
	Propose(ctx context.Context, requestID int64, bidder string) (*models.Request, error)
	SelectBidder(ctx context.Context, requestID int64, dealer, bidder string) (*models.Handshake, error)
	Get(ctx context.Context, id int64) (*models.Request, error)
	ListOpen(ctx context.Context, afterID int64, limit int) ([]models.Request, error)
	ListByDealer(ctx context.Context, dealer string, limit int) ([]models.Request, error)
}

type service struct {
	runner txRunner
	repo   Repository
	users  userLookup
	seeder handshakeSeeder
	events outboxEmitter
	now    func() time.Time
	logg   *logger.Logger
}

// NewService wires the requests service.
func NewService(runner txRunner, repo Repository, users userLookup, seeder handshakeSeeder, events outboxEmitter, logg *logger.Logger) Service {
	return &service{
		runner: runner,
		repo:   repo,
		users:  users,
		seeder: seeder,
		events: events,
		now:    time.Now,
		logg:   logg,
	}
}

func (s *service) PostRequest(ctx context.Context, input PostRequestInput) (*models.Request, error) {
	if input.Summary == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "summary is required")
	}
	if !digestRe.MatchString(input.TermsHash) {
		return nil, apperrors.New(apperrors.CodeValidation, "terms hash must be a 64-character hex digest")
	}
	if input.PriceAmount <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "price must be positive")
	}
	if input.Deadline <= s.now().Unix() {
		return nil, apperrors.New(apperrors.CodeValidation, "deadline must be in the future")
	}

	var request *models.Request
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.requireUser(ctx, input.Dealer); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		id, err := repo.NextID(ctx)
		if err != nil {
			return err
		}

		request = &models.Request{
			ID:          id,
			Dealer:      input.Dealer,
			Summary:     input.Summary,
			TermsHash:   input.TermsHash,
			PriceAmount: input.PriceAmount,
			Deadline:    input.Deadline,
			Status:      enums.RequestStatusOpen,
			Bidders:     dbtypes.StringList{},
		}
		if err := repo.Create(ctx, request); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating request")
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestPosted,
			AggregateType: enums.AggregateRequest,
			AggregateID:   id,
			Actor:         &outbox.ActorRef{Account: input.Dealer},
			Version:       1,
			Data: payloads.RequestPostedEvent{
				RequestID:   id,
				Dealer:      input.Dealer,
				PriceAmount: input.PriceAmount,
				Deadline:    input.Deadline,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"request_id": request.ID, "dealer": request.Dealer})
		s.logg.Info(logCtx, "request posted")
	}
	return request, nil
}

func (s *service) Propose(ctx context.Context, requestID int64, bidder string) (*models.Request, error) {
	var request *models.Request
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.requireUser(ctx, bidder); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		row, err := repo.FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if row == nil {
			return apperrors.New(apperrors.CodeNotFound, "request not found")
		}
		if row.Status != enums.RequestStatusOpen {
			return apperrors.New(apperrors.CodeStateConflict, "request is no longer open for proposals")
		}
		if row.Dealer == bidder {
			return apperrors.New(apperrors.CodeValidation, "dealer cannot bid on own request")
		}
		if row.Bidders.Contains(bidder) {
			return apperrors.New(apperrors.CodeAlreadyDone, "bidder already proposed")
		}

		row.Bidders = append(row.Bidders, bidder)
		if err := repo.Save(ctx, row); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "saving proposal")
		}
		request = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) SelectBidder(ctx context.Context, requestID int64, dealer, bidder string) (*models.Handshake, error) {
	var handshake *models.Handshake
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if row == nil {
			return apperrors.New(apperrors.CodeNotFound, "request not found")
		}
		if row.Dealer != dealer {
			return apperrors.New(apperrors.CodeForbidden, "only the posting dealer may select a bidder")
		}
		if row.Status != enums.RequestStatusOpen {
			return apperrors.New(apperrors.CodeStateConflict, "request is already closed")
		}
		if !row.Bidders.Contains(bidder) {
			return apperrors.New(apperrors.CodeNotFound, "bidder has not proposed on this request")
		}

		handshake = &models.Handshake{
			ID:     row.ID,
			Dealer: row.Dealer,
			Bidder: bidder,
			Status: enums.HandshakeStatusNegotiation,
		}
		negotiation := &models.Negotiation{
			HandshakeID:         row.ID,
			ProposedTermsHashes: dbtypes.StringList{row.TermsHash},
			ProposedPrices:      dbtypes.Int64List{row.PriceAmount},
			ProposedDeadlines:   dbtypes.Int64List{row.Deadline},
		}
		if err := s.seeder.CreateWithNegotiation(ctx, tx, handshake, negotiation); err != nil {
			return err
		}

		row.Status = enums.RequestStatusClosed
		row.SelectedBidder = bidder
		if err := repo.Save(ctx, row); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "closing request")
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestClosed,
			AggregateType: enums.AggregateRequest,
			AggregateID:   row.ID,
			Actor:         &outbox.ActorRef{Account: dealer},
			Version:       1,
			Data: payloads.RequestClosedEvent{
				RequestID:      row.ID,
				Dealer:         dealer,
				SelectedBidder: bidder,
			},
		}); err != nil {
			return err
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventHandshakeCreated,
			AggregateType: enums.AggregateHandshake,
			AggregateID:   row.ID,
			Actor:         &outbox.ActorRef{Account: dealer},
			Version:       1,
			Data: payloads.HandshakeCreatedEvent{
				HandshakeID: row.ID,
				Dealer:      dealer,
				Bidder:      bidder,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithHandshakeID(ctx, handshake.ID)
		s.logg.Info(logCtx, "bidder selected, handshake opened")
	}
	return handshake, nil
}

func (s *service) Get(ctx context.Context, id int64) (*models.Request, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "request not found")
	}
	return row, nil
}

func (s *service) ListOpen(ctx context.Context, afterID int64, limit int) ([]models.Request, error) {
	return s.repo.ListOpen(ctx, afterID, pagination.NormalizeLimit(limit))
}

func (s *service) ListByDealer(ctx context.Context, dealer string, limit int) ([]models.Request, error) {
	return s.repo.ListByDealer(ctx, dealer, pagination.NormalizeLimit(limit))
}

func (s *service) requireUser(ctx context.Context, account string) error {
	if account == "" {
		return apperrors.New(apperrors.CodeValidation, "account is required")
	}
	user, err := s.users.FindUser(ctx, account)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.New(apperrors.CodeNotRegistered, "account is not a registered user")
	}
	return nil
}
