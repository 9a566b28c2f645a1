package handshakes

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
)

// Repository manages persistence for handshakes and their negotiation
// records. The two rows share the request's identifier.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWithNegotiation(ctx context.Context, tx *gorm.DB, handshake *models.Handshake, negotiation *models.Negotiation) error
	FindByID(ctx context.Context, id int64) (*models.Handshake, error)
	FindNegotiation(ctx context.Context, id int64) (*models.Negotiation, error)
	SaveHandshake(ctx context.Context, handshake *models.Handshake) error
	SaveNegotiation(ctx context.Context, negotiation *models.Negotiation) error
	ListByParticipant(ctx context.Context, account string, limit int) ([]models.Handshake, error)
	ListExecutionPastDeadline(ctx context.Context, nowUnix int64, limit int) ([]models.Handshake, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a handshakes repository bound to the provided
// database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateWithNegotiation inserts the handshake and its seeded negotiation in
// the caller's transaction.
func (r *repository) CreateWithNegotiation(ctx context.Context, tx *gorm.DB, handshake *models.Handshake, negotiation *models.Negotiation) error {
	if tx == nil {
		return apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	if err := tx.WithContext(ctx).Create(handshake).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "creating handshake")
	}
	if err := tx.WithContext(ctx).Create(negotiation).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "creating negotiation")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Handshake, error) {
	var handshake models.Handshake
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&handshake).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading handshake")
	}
	return &handshake, nil
}

func (r *repository) FindNegotiation(ctx context.Context, id int64) (*models.Negotiation, error) {
	var negotiation models.Negotiation
	err := r.db.WithContext(ctx).Where("handshake_id = ?", id).First(&negotiation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading negotiation")
	}
	return &negotiation, nil
}

func (r *repository) SaveHandshake(ctx context.Context, handshake *models.Handshake) error {
	return r.db.WithContext(ctx).Save(handshake).Error
}

func (r *repository) SaveNegotiation(ctx context.Context, negotiation *models.Negotiation) error {
	return r.db.WithContext(ctx).Save(negotiation).Error
}

func (r *repository) ListByParticipant(ctx context.Context, account string, limit int) ([]models.Handshake, error) {
	var rows []models.Handshake
	err := r.db.WithContext(ctx).
		Where("dealer = ? OR bidder = ?", account, account).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing handshakes")
	}
	return rows, nil
}

// ListExecutionPastDeadline returns executing handshakes whose deadline has
// elapsed; the cron sweep uses it to surface stuck funds.
func (r *repository) ListExecutionPastDeadline(ctx context.Context, nowUnix int64, limit int) ([]models.Handshake, error) {
	var rows []models.Handshake
	err := r.db.WithContext(ctx).
		Where("status = ? AND deadline < ?", enums.HandshakeStatusExecution, nowUnix).
		Order("deadline ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing expired executions")
	}
	return rows, nil
}
