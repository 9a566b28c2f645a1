package handshakes

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/internal/escrow"
	"github.com/digitalhandshake/dhs-backend/internal/token"
	"github.com/digitalhandshake/dhs-backend/internal/users"
	"github.com/digitalhandshake/dhs-backend/pkg/config"
	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
	"github.com/digitalhandshake/dhs-backend/pkg/outbox"
	"github.com/digitalhandshake/dhs-backend/pkg/outbox/payloads"
)

var digestRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// NegotiateInput is one counter-proposal.
type NegotiateInput struct {
	HandshakeID int64
	Caller      string
	TermsHash   string
	PriceAmount int64
	Deadline    int64
}

// Detail bundles a handshake with its negotiation record for reads.
type Detail struct {
	Handshake   models.Handshake   `json:"handshake"`
	Negotiation models.Negotiation `json:"negotiation"`
}

// Service drives a handshake from negotiation through execution to its
// terminal state. Dispute arbitration lives in the disputes service; this
// one hands off at the DISPUTE transition.
type Service interface {
	Negotiate(ctx context.Context, input NegotiateInput) (*models.Negotiation, error)
	AcceptTerms(ctx context.Context, handshakeID int64, caller string) (*models.Handshake, error)
	HandleLockNotification(ctx context.Context, tx *gorm.DB, from string, amount int64, memo string) error
	EndJob(ctx context.Context, handshakeID int64, caller string) (*models.Handshake, error)
	Expire(ctx context.Context, handshakeID int64, caller string) (*models.Handshake, error)
	AcceptJob(ctx context.Context, handshakeID int64, caller string) (*models.Handshake, error)
	Get(ctx context.Context, handshakeID int64) (*Detail, error)
	ListByParticipant(ctx context.Context, account string, limit int) ([]models.Handshake, error)
}

type service struct {
	runner        txRunner
	repo          Repository
	escrow        escrow.Service
	ledger        token.Ledger
	ratings       users.Repository
	events        outboxEmitter
	engineAccount string
	escrowAccount string
	stake         int64
	now           func() time.Time
	logg          *logger.Logger
}

// NewService wires the handshakes service.
func NewService(
	runner txRunner,
	repo Repository,
	escrowSvc escrow.Service,
	ledger token.Ledger,
	ratings users.Repository,
	events outboxEmitter,
	cfg config.EscrowConfig,
	logg *logger.Logger,
) Service {
	return &service{
		runner:        runner,
		repo:          repo,
		escrow:        escrowSvc,
		ledger:        ledger,
		ratings:       ratings,
		events:        events,
		engineAccount: cfg.EngineAccount,
		escrowAccount: cfg.EscrowAccount,
		stake:         cfg.StakeAmount(),
		now:           time.Now,
		logg:          logg,
	}
}

// Negotiate appends a counter-proposal. Turns strictly alternate: the seeded
// request proposal is the dealer's, so the bidder moves at odd proposal
// counts and the dealer at even ones.
func (s *service) Negotiate(ctx context.Context, input NegotiateInput) (*models.Negotiation, error) {
	if !digestRe.MatchString(input.TermsHash) {
		return nil, apperrors.New(apperrors.CodeValidation, "terms hash must be a 64-character hex digest")
	}
	if input.PriceAmount <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "price must be positive")
	}
	if input.Deadline <= s.now().Unix() {
		return nil, apperrors.New(apperrors.CodeValidation, "deadline must be in the future")
	}

	var negotiation *models.Negotiation
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		handshake, party, err := loadParticipant(ctx, repo, input.HandshakeID, input.Caller)
		if err != nil {
			return err
		}
		if handshake.Status != enums.HandshakeStatusNegotiation {
			return apperrors.New(apperrors.CodeStateConflict, "handshake is not negotiating")
		}

		row, err := repo.FindNegotiation(ctx, input.HandshakeID)
		if err != nil {
			return err
		}
		if row == nil {
			return apperrors.New(apperrors.CodeNotFound, "negotiation not found")
		}
		if row.AcceptedByDealer || row.AcceptedByBidder {
			return apperrors.New(apperrors.CodeStateConflict, "terms were already accepted, no further proposals")
		}
		if turnOf(row) != party {
			return apperrors.New(apperrors.CodeStateConflict, "not this party's turn to propose")
		}

		row.ProposedTermsHashes = append(row.ProposedTermsHashes, input.TermsHash)
		row.ProposedPrices = append(row.ProposedPrices, input.PriceAmount)
		row.ProposedDeadlines = append(row.ProposedDeadlines, input.Deadline)
		if err := repo.SaveNegotiation(ctx, row); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "saving proposal")
		}
		negotiation = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return negotiation, nil
}

// AcceptTerms records one party's acceptance of the latest proposal. When
// both sides have accepted, the last proposal is frozen into the handshake
// and the lifecycle moves to LOCK.
func (s *service) AcceptTerms(ctx context.Context, handshakeID int64, caller string) (*models.Handshake, error) {
	var result *models.Handshake
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		handshake, party, err := loadParticipant(ctx, repo, handshakeID, caller)
		if err != nil {
			return err
		}
		if handshake.Status != enums.HandshakeStatusNegotiation {
			return apperrors.New(apperrors.CodeStateConflict, "handshake is not negotiating")
		}

		negotiation, err := repo.FindNegotiation(ctx, handshakeID)
		if err != nil {
			return err
		}
		if negotiation == nil {
			return apperrors.New(apperrors.CodeNotFound, "negotiation not found")
		}

		accepted, counterpartAccepted := acceptanceOf(negotiation, party)
		if accepted {
			return apperrors.New(apperrors.CodeAlreadyDone, "terms already accepted by this party")
		}
		if !counterpartAccepted && turnOf(negotiation) != party {
			return apperrors.New(apperrors.CodeStateConflict, "not this party's turn to accept")
		}

		// The negotiation is seeded from the request on creation, so the
		// price history is never empty.
		price, _ := negotiation.ProposedPrices.Last()
		required := s.stake
		if party == enums.PartyDealer {
			required = price + s.stake
		}
		available, err := s.ledger.WithTx(tx).BalanceOf(ctx, caller)
		if err != nil {
			return err
		}
		if available < required {
			return apperrors.New(apperrors.CodeInsufficientFunds, "token balance does not cover the lock requirement")
		}

		if party == enums.PartyDealer {
			negotiation.AcceptedByDealer = true
		} else {
			negotiation.AcceptedByBidder = true
		}
		if err := repo.SaveNegotiation(ctx, negotiation); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "saving acceptance")
		}

		if negotiation.AcceptedByDealer && negotiation.AcceptedByBidder {
			last := negotiation.ProposalCount() - 1
			handshake.TermsHash = negotiation.ProposedTermsHashes[last]
			handshake.PriceAmount = negotiation.ProposedPrices[last]
			handshake.Deadline = negotiation.ProposedDeadlines[last]
			handshake.Status = enums.HandshakeStatusLock
			if err := repo.SaveHandshake(ctx, handshake); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "freezing terms")
			}
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventTermsAccepted,
				AggregateType: enums.AggregateHandshake,
				AggregateID:   handshake.ID,
				Actor:         &outbox.ActorRef{Account: caller},
				Version:       1,
				Data: payloads.TermsAcceptedEvent{
					HandshakeID: handshake.ID,
					TermsHash:   handshake.TermsHash,
					PriceAmount: handshake.PriceAmount,
					Deadline:    handshake.Deadline,
				},
			}); err != nil {
				return err
			}
		}
		result = handshake
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// HandleLockNotification reacts to an inbound token transfer addressed to
// the engine account. It runs inside the transfer's transaction: the memo
// names the handshake, the amount must exactly match the sender's lock
// requirement, and the funds are forwarded into escrow custody.
func (s *service) HandleLockNotification(ctx context.Context, tx *gorm.DB, from string, amount int64, memo string) error {
	handshakeID, err := strconv.ParseInt(memo, 10, 64)
	if err != nil || handshakeID <= 0 {
		return apperrors.New(apperrors.CodeValidation, "transfer memo must be a handshake identifier")
	}

	repo := s.repo.WithTx(tx)
	handshake, party, err := loadParticipant(ctx, repo, handshakeID, from)
	if err != nil {
		return err
	}
	if handshake.Status != enums.HandshakeStatusLock {
		return apperrors.New(apperrors.CodeStateConflict, "handshake is not awaiting locks")
	}

	negotiation, err := repo.FindNegotiation(ctx, handshakeID)
	if err != nil {
		return err
	}
	if negotiation == nil {
		return apperrors.New(apperrors.CodeNotFound, "negotiation not found")
	}

	expected := s.stake
	locked := negotiation.LockedByBidder
	if party == enums.PartyDealer {
		expected = handshake.PriceAmount + s.stake
		locked = negotiation.LockedByDealer
	}
	if locked {
		return apperrors.New(apperrors.CodeAlreadyDone, "party already locked funds")
	}
	if amount != expected {
		return apperrors.New(apperrors.CodeValidation, "transfer amount does not match the lock requirement")
	}

	// Forward the funds on to escrow custody and record the lock.
	if err := s.ledger.WithTx(tx).Transfer(ctx, s.engineAccount, s.escrowAccount, amount, memo); err != nil {
		return err
	}
	if err := s.escrow.Lock(ctx, tx, s.engineAccount, from, amount); err != nil {
		return err
	}

	if party == enums.PartyDealer {
		negotiation.LockedByDealer = true
	} else {
		negotiation.LockedByBidder = true
	}
	if err := repo.SaveNegotiation(ctx, negotiation); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "recording lock")
	}

	if negotiation.LockedByDealer && negotiation.LockedByBidder {
		handshake.Status = enums.HandshakeStatusExecution
		if err := repo.SaveHandshake(ctx, handshake); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "starting execution")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventHandshakeExecuting,
			AggregateType: enums.AggregateHandshake,
			AggregateID:   handshake.ID,
			Version:       1,
			Data:          payloads.HandshakeExecutingEvent{HandshakeID: handshake.ID},
		})
	}
	return nil
}

// EndJob is the bidder reporting the work done before the deadline.
func (s *service) EndJob(ctx context.Context, handshakeID int64, caller string) (*models.Handshake, error) {
	var result *models.Handshake
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		handshake, party, err := loadParticipant(ctx, repo, handshakeID, caller)
		if err != nil {
			return err
		}
		if party != enums.PartyBidder {
			return apperrors.New(apperrors.CodeForbidden, "only the bidder may end the job")
		}
		if handshake.Status != enums.HandshakeStatusExecution {
			return apperrors.New(apperrors.CodeStateConflict, "handshake is not executing")
		}
		// The deadline instant itself already belongs to expiry.
		if s.now().Unix() >= handshake.Deadline {
			return apperrors.New(apperrors.CodeStateConflict, "deadline has passed")
		}

		handshake.Status = enums.HandshakeStatusConfirmation
		if err := repo.SaveHandshake(ctx, handshake); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "ending job")
		}
		result = handshake

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventJobEnded,
			AggregateType: enums.AggregateHandshake,
			AggregateID:   handshake.ID,
			Actor:         &outbox.ActorRef{Account: caller},
			Version:       1,
			Data:          payloads.JobEndedEvent{HandshakeID: handshake.ID, Bidder: caller},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Expire lets either party reclaim its locked funds once the deadline has
// passed with the job still executing. Each party unlocks exactly once; the
// handshake closes when both have.
func (s *service) Expire(ctx context.Context, handshakeID int64, caller string) (*models.Handshake, error) {
	var result *models.Handshake
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		handshake, party, err := loadParticipant(ctx, repo, handshakeID, caller)
		if err != nil {
			return err
		}
		if handshake.Status != enums.HandshakeStatusExecution {
			return apperrors.New(apperrors.CodeStateConflict, "handshake is not executing")
		}
		// Expiry opens at the deadline instant itself.
		if s.now().Unix() < handshake.Deadline {
			return apperrors.New(apperrors.CodeStateConflict, "deadline has not passed")
		}

		amount := s.stake
		unlocked := handshake.UnlockedByBidder
		if party == enums.PartyDealer {
			amount = handshake.PriceAmount + s.stake
			unlocked = handshake.UnlockedByDealer
		}
		if unlocked {
			return apperrors.New(apperrors.CodeAlreadyDone, "party already unlocked")
		}

		if err := s.escrow.Unlock(ctx, tx, s.engineAccount, caller, amount); err != nil {
			return err
		}

		if party == enums.PartyDealer {
			handshake.UnlockedByDealer = true
		} else {
			handshake.UnlockedByBidder = true
		}
		if handshake.UnlockedByDealer && handshake.UnlockedByBidder {
			handshake.Status = enums.HandshakeStatusExpired
		}
		if err := repo.SaveHandshake(ctx, handshake); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "recording unlock")
		}
		result = handshake

		if handshake.Status == enums.HandshakeStatusExpired {
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventHandshakeExpired,
				AggregateType: enums.AggregateHandshake,
				AggregateID:   handshake.ID,
				Version:       1,
				Data: payloads.HandshakeExpiredEvent{
					HandshakeID: handshake.ID,
					ExpiredAt:   s.now().UTC(),
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AcceptJob is the dealer approving delivered work: escrow settles, both
// ratings rise and the handshake reaches its happy terminal state.
func (s *service) AcceptJob(ctx context.Context, handshakeID int64, caller string) (*models.Handshake, error) {
	var result *models.Handshake
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		handshake, party, err := loadParticipant(ctx, repo, handshakeID, caller)
		if err != nil {
			return err
		}
		if party != enums.PartyDealer {
			return apperrors.New(apperrors.CodeForbidden, "only the dealer may accept the job")
		}
		if handshake.Status != enums.HandshakeStatusConfirmation {
			return apperrors.New(apperrors.CodeStateConflict, "handshake is not awaiting confirmation")
		}

		if err := s.escrow.SettleAccepted(ctx, tx, s.engineAccount, handshake.Dealer, handshake.Bidder, handshake.PriceAmount); err != nil {
			return err
		}

		ratings := s.ratings.WithTx(tx)
		if err := ratings.AdjustRating(ctx, handshake.Dealer, 1); err != nil {
			return err
		}
		if err := ratings.AdjustRating(ctx, handshake.Bidder, 1); err != nil {
			return err
		}

		handshake.Status = enums.HandshakeStatusAccepted
		if err := repo.SaveHandshake(ctx, handshake); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "accepting job")
		}
		result = handshake

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventHandshakeAccepted,
			AggregateType: enums.AggregateHandshake,
			AggregateID:   handshake.ID,
			Actor:         &outbox.ActorRef{Account: caller},
			Version:       1,
			Data: payloads.HandshakeAcceptedEvent{
				HandshakeID: handshake.ID,
				PriceAmount: handshake.PriceAmount,
				StakeAmount: s.stake,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithHandshakeID(ctx, handshakeID)
		s.logg.Info(logCtx, "job accepted, escrow settled")
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, handshakeID int64) (*Detail, error) {
	handshake, err := s.repo.FindByID(ctx, handshakeID)
	if err != nil {
		return nil, err
	}
	if handshake == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "handshake not found")
	}
	negotiation, err := s.repo.FindNegotiation(ctx, handshakeID)
	if err != nil {
		return nil, err
	}
	if negotiation == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "negotiation not found")
	}
	return &Detail{Handshake: *handshake, Negotiation: *negotiation}, nil
}

func (s *service) ListByParticipant(ctx context.Context, account string, limit int) ([]models.Handshake, error) {
	return s.repo.ListByParticipant(ctx, account, limit)
}

// loadParticipant resolves the handshake and the caller's side of it.
func loadParticipant(ctx context.Context, repo Repository, handshakeID int64, caller string) (*models.Handshake, enums.Party, error) {
	handshake, err := repo.FindByID(ctx, handshakeID)
	if err != nil {
		return nil, "", err
	}
	if handshake == nil {
		return nil, "", apperrors.New(apperrors.CodeNotFound, "handshake not found")
	}
	party, ok := handshake.PartyOf(caller)
	if !ok {
		return nil, "", apperrors.New(apperrors.CodeForbidden, "caller is not a participant of this handshake")
	}
	return handshake, party, nil
}

// turnOf returns whose move it is. The seed proposal at index 0 belongs to
// the dealer, so an odd count means the bidder responds next.
func turnOf(negotiation *models.Negotiation) enums.Party {
	if negotiation.ProposalCount()%2 == 0 {
		return enums.PartyDealer
	}
	return enums.PartyBidder
}

func acceptanceOf(negotiation *models.Negotiation, party enums.Party) (own, counterpart bool) {
	if party == enums.PartyDealer {
		return negotiation.AcceptedByDealer, negotiation.AcceptedByBidder
	}
	return negotiation.AcceptedByBidder, negotiation.AcceptedByDealer
}
