package disputes

import (
	"context"
	"regexp"

	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/internal/escrow"
	"github.com/digitalhandshake/dhs-backend/internal/handshakes"
	"github.com/digitalhandshake/dhs-backend/internal/rng"
	"github.com/digitalhandshake/dhs-backend/internal/users"
	"github.com/digitalhandshake/dhs-backend/pkg/config"
	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
	"github.com/digitalhandshake/dhs-backend/pkg/outbox"
	"github.com/digitalhandshake/dhs-backend/pkg/outbox/payloads"
	"github.com/digitalhandshake/dhs-backend/pkg/pagination"
)

const (
	panelSize = 3

	// maxDrawAttempts bounds the rejection sampling loop when drawing a
	// distinct panel from the juror pool.
	maxDrawAttempts = 64
)

var digestRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service arbitrates disputed handshakes: the dealer opens a case, both
// parties file motivation digests, three randomly drawn jurors vote and the
// escrow settles on the majority verdict.
type Service interface {
	Open(ctx context.Context, handshakeID int64, caller string) (*models.Dispute, error)
	Motivate(ctx context.Context, handshakeID int64, caller, motivationHash string) (*models.Dispute, error)
	Vote(ctx context.Context, handshakeID int64, caller, preferred string) (*models.Dispute, error)
	Get(ctx context.Context, handshakeID int64) (*models.Dispute, error)
	ListForJuror(ctx context.Context, account string, limit int) ([]models.Dispute, error)
}

type service struct {
	runner        txRunner
	repo          Repository
	handshakes    handshakes.Repository
	pool          users.Repository
	escrow        escrow.Service
	random        rng.Source
	events        outboxEmitter
	engineAccount string
	logg          *logger.Logger
}

// NewService wires the disputes service.
func NewService(
	runner txRunner,
	repo Repository,
	handshakeRepo handshakes.Repository,
	pool users.Repository,
	escrowSvc escrow.Service,
	random rng.Source,
	events outboxEmitter,
	cfg config.EscrowConfig,
	logg *logger.Logger,
) Service {
	return &service{
		runner:        runner,
		repo:          repo,
		handshakes:    handshakeRepo,
		pool:          pool,
		escrow:        escrowSvc,
		random:        random,
		events:        events,
		engineAccount: cfg.EngineAccount,
		logg:          logg,
	}
}

// Open starts arbitration on a handshake awaiting confirmation. Only the
// dealer may open it: the bidder already stated its position by ending the
// job. The jury is drawn inside the same transaction so a rollback also
// rewinds the random seed.
func (s *service) Open(ctx context.Context, handshakeID int64, caller string) (*models.Dispute, error) {
	var result *models.Dispute
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		handshake, err := s.loadHandshake(ctx, tx, handshakeID)
		if err != nil {
			return err
		}
		if caller != handshake.Dealer {
			return apperrors.New(apperrors.CodeForbidden, "only the dealer may open a dispute")
		}
		if handshake.Status != enums.HandshakeStatusConfirmation {
			return apperrors.New(apperrors.CodeStateConflict, "handshake is not awaiting confirmation")
		}

		existing, err := s.repo.WithTx(tx).FindByHandshakeID(ctx, handshakeID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.New(apperrors.CodeAlreadyDone, "dispute already opened")
		}

		jurors, err := s.drawPanel(ctx, tx)
		if err != nil {
			return err
		}

		dispute := &models.Dispute{
			HandshakeID: handshakeID,
			Dealer:      handshake.Dealer,
			Bidder:      handshake.Bidder,
			Juror1:      jurors[0],
			Juror2:      jurors[1],
			Juror3:      jurors[2],
		}
		if err := s.repo.WithTx(tx).Create(ctx, dispute); err != nil {
			return err
		}

		handshake.Status = enums.HandshakeStatusDispute
		if err := s.handshakes.WithTx(tx).SaveHandshake(ctx, handshake); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "opening dispute")
		}
		result = dispute

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDisputeOpened,
			AggregateType: enums.AggregateDispute,
			AggregateID:   handshakeID,
			Actor:         &outbox.ActorRef{Account: caller},
			Version:       1,
			Data: payloads.DisputeOpenedEvent{
				HandshakeID: handshakeID,
				OpenedBy:    caller,
				Jurors:      jurors,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithHandshakeID(ctx, handshakeID)
		s.logg.Info(logCtx, "dispute opened, jury drawn")
	}
	return result, nil
}

// Motivate records one party's motivation digest. Voting opens once both
// sides have filed.
func (s *service) Motivate(ctx context.Context, handshakeID int64, caller, motivationHash string) (*models.Dispute, error) {
	if !digestRe.MatchString(motivationHash) {
		return nil, apperrors.New(apperrors.CodeValidation, "motivation hash must be a 64-character hex digest")
	}

	var result *models.Dispute
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		handshake, err := s.loadHandshake(ctx, tx, handshakeID)
		if err != nil {
			return err
		}
		if handshake.Status != enums.HandshakeStatusDispute {
			return apperrors.New(apperrors.CodeStateConflict, "dispute is not collecting motivations")
		}

		party, ok := handshake.PartyOf(caller)
		if !ok {
			return apperrors.New(apperrors.CodeForbidden, "caller is not a participant of this handshake")
		}

		dispute, err := s.repo.WithTx(tx).FindByHandshakeID(ctx, handshakeID)
		if err != nil {
			return err
		}
		if dispute == nil {
			return apperrors.New(apperrors.CodeNotFound, "dispute not found")
		}

		if party == enums.PartyDealer {
			if dispute.DealerMotivationHash != "" {
				return apperrors.New(apperrors.CodeAlreadyDone, "motivation already filed")
			}
			dispute.DealerMotivationHash = motivationHash
		} else {
			if dispute.BidderMotivationHash != "" {
				return apperrors.New(apperrors.CodeAlreadyDone, "motivation already filed")
			}
			dispute.BidderMotivationHash = motivationHash
		}
		if err := s.repo.WithTx(tx).Save(ctx, dispute); err != nil {
			return err
		}
		result = dispute

		if dispute.DealerMotivationHash != "" && dispute.BidderMotivationHash != "" {
			handshake.Status = enums.HandshakeStatusVoting
			if err := s.handshakes.WithTx(tx).SaveHandshake(ctx, handshake); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "opening voting")
			}
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDisputeVoting,
				AggregateType: enums.AggregateDispute,
				AggregateID:   handshakeID,
				Actor:         &outbox.ActorRef{Account: caller},
				Version:       1,
				Data:          payloads.DisputeVotingEvent{HandshakeID: handshakeID},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Vote records an assigned juror's preference for one of the parties. The
// third vote settles the case: the majority side wins, ratings move one
// point each way and escrow pays out.
func (s *service) Vote(ctx context.Context, handshakeID int64, caller, preferred string) (*models.Dispute, error) {
	var result *models.Dispute
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		handshake, err := s.loadHandshake(ctx, tx, handshakeID)
		if err != nil {
			return err
		}
		if handshake.Status != enums.HandshakeStatusVoting {
			return apperrors.New(apperrors.CodeStateConflict, "dispute is not open for voting")
		}

		dispute, err := s.repo.WithTx(tx).FindByHandshakeID(ctx, handshakeID)
		if err != nil {
			return err
		}
		if dispute == nil {
			return apperrors.New(apperrors.CodeNotFound, "dispute not found")
		}
		if !dispute.IsAssignedJuror(caller) {
			return apperrors.New(apperrors.CodeForbidden, "caller is not on this dispute's panel")
		}
		if preferred != dispute.Dealer && preferred != dispute.Bidder {
			return apperrors.New(apperrors.CodeValidation, "vote must name one of the parties")
		}

		switch caller {
		case dispute.Juror1:
			if dispute.Vote1 != "" {
				return apperrors.New(apperrors.CodeAlreadyDone, "juror already voted")
			}
			dispute.Vote1 = preferred
		case dispute.Juror2:
			if dispute.Vote2 != "" {
				return apperrors.New(apperrors.CodeAlreadyDone, "juror already voted")
			}
			dispute.Vote2 = preferred
		case dispute.Juror3:
			if dispute.Vote3 != "" {
				return apperrors.New(apperrors.CodeAlreadyDone, "juror already voted")
			}
			dispute.Vote3 = preferred
		}
		if err := s.repo.WithTx(tx).Save(ctx, dispute); err != nil {
			return err
		}
		result = dispute

		if !dispute.AllVotesIn() {
			return nil
		}
		return s.resolve(ctx, tx, handshake, dispute)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolve tallies the three votes and settles the handshake. With an odd
// panel a strict majority always exists.
func (s *service) resolve(ctx context.Context, tx *gorm.DB, handshake *models.Handshake, dispute *models.Dispute) error {
	votes := []string{dispute.Vote1, dispute.Vote2, dispute.Vote3}
	dealerVotes := 0
	for _, vote := range votes {
		if vote == dispute.Dealer {
			dealerVotes++
		}
	}

	winner := enums.PartyBidder
	winnerAccount, loserAccount := dispute.Bidder, dispute.Dealer
	if dealerVotes >= 2 {
		winner = enums.PartyDealer
		winnerAccount, loserAccount = dispute.Dealer, dispute.Bidder
	}

	ratings := s.pool.WithTx(tx)
	if err := ratings.AdjustRating(ctx, winnerAccount, 1); err != nil {
		return err
	}
	if err := ratings.AdjustRating(ctx, loserAccount, -1); err != nil {
		return err
	}

	if err := s.escrow.SettleResolved(ctx, tx, s.engineAccount, dispute.Dealer, dispute.Bidder, handshake.PriceAmount, dispute.Jurors(), winner); err != nil {
		return err
	}

	handshake.Status = enums.HandshakeStatusResolved
	if err := s.handshakes.WithTx(tx).SaveHandshake(ctx, handshake); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "resolving dispute")
	}

	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventDisputeResolved,
		AggregateType: enums.AggregateDispute,
		AggregateID:   handshake.ID,
		Version:       1,
		Data: payloads.DisputeResolvedEvent{
			HandshakeID: handshake.ID,
			Winner:      winner,
			Votes:       votes,
		},
	})
}

func (s *service) Get(ctx context.Context, handshakeID int64) (*models.Dispute, error) {
	dispute, err := s.repo.FindByHandshakeID(ctx, handshakeID)
	if err != nil {
		return nil, err
	}
	if dispute == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "dispute not found")
	}
	return dispute, nil
}

func (s *service) ListForJuror(ctx context.Context, account string, limit int) ([]models.Dispute, error) {
	return s.repo.ListForJuror(ctx, account, pagination.NormalizeLimit(limit))
}

// drawPanel selects three distinct jurors from the registered pool using the
// persisted random source, rejecting repeated indices.
func (s *service) drawPanel(ctx context.Context, tx *gorm.DB) ([]string, error) {
	pool := s.pool.WithTx(tx)
	count, err := pool.CountJurors(ctx)
	if err != nil {
		return nil, err
	}
	if count < panelSize {
		return nil, apperrors.New(apperrors.CodeStateConflict, "not enough registered jurors to form a panel")
	}

	picked := make([]string, 0, panelSize)
	seen := make(map[int64]struct{}, panelSize)
	for attempts := 0; len(picked) < panelSize; attempts++ {
		if attempts >= maxDrawAttempts {
			return nil, apperrors.New(apperrors.CodeInternal, "juror selection did not converge")
		}
		index, err := s.random.Draw(tx, count)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[index]; dup {
			continue
		}
		juror, err := pool.JurorAt(ctx, index)
		if err != nil {
			return nil, err
		}
		if juror == nil {
			return nil, apperrors.New(apperrors.CodeInternal, "juror pool changed during selection")
		}
		seen[index] = struct{}{}
		picked = append(picked, juror.Account)
	}
	return picked, nil
}

func (s *service) loadHandshake(ctx context.Context, tx *gorm.DB, handshakeID int64) (*models.Handshake, error) {
	handshake, err := s.handshakes.WithTx(tx).FindByID(ctx, handshakeID)
	if err != nil {
		return nil, err
	}
	if handshake == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "handshake not found")
	}
	return handshake, nil
}
