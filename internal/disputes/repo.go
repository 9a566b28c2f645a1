package disputes

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
)

// Repository manages persistence for dispute records. Each dispute shares
// its handshake's identifier.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.Dispute) error
	FindByHandshakeID(ctx context.Context, handshakeID int64) (*models.Dispute, error)
	Save(ctx context.Context, dispute *models.Dispute) error
	ListForJuror(ctx context.Context, account string, limit int) ([]models.Dispute, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a disputes repository bound to the provided
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

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	if err := r.db.WithContext(ctx).Create(dispute).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "creating dispute")
	}
	return nil
}

func (r *repository) FindByHandshakeID(ctx context.Context, handshakeID int64) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).Where("handshake_id = ?", handshakeID).First(&dispute).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading dispute")
	}
	return &dispute, nil
}

func (r *repository) Save(ctx context.Context, dispute *models.Dispute) error {
	if err := r.db.WithContext(ctx).Save(dispute).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "saving dispute")
	}
	return nil
}

func (r *repository) ListForJuror(ctx context.Context, account string, limit int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var rows []models.Dispute
	err := r.db.WithContext(ctx).
		Where("juror1 = ? OR juror2 = ? OR juror3 = ?", account, account, account).
		Order("handshake_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing disputes for juror")
	}
	return rows, nil
}
