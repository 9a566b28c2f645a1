package requests

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
)

// Repository manages persistence for service requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.Request) error
	FindByID(ctx context.Context, id int64) (*models.Request, error)
	Save(ctx context.Context, request *models.Request) error
	NextID(ctx context.Context) (int64, error)
	ListOpen(ctx context.Context, afterID int64, limit int) ([]models.Request, error)
	ListByDealer(ctx context.Context, dealer string, limit int) ([]models.Request, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a requests repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.Request) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Request, error) {
	var request models.Request
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading request")
	}
	return &request, nil
}

func (r *repository) Save(ctx context.Context, request *models.Request) error {
	return r.db.WithContext(ctx).Save(request).Error
}

// NextID returns max(id)+1. Identifiers are assigned inside the posting
// transaction so they stay dense and shared with the handshake records.
func (r *repository) NextID(ctx context.Context) (int64, error) {
	var maxID int64
	err := r.db.WithContext(ctx).Model(&models.Request{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&maxID).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "computing next request id")
	}
	return maxID + 1, nil
}

func (r *repository) ListOpen(ctx context.Context, afterID int64, limit int) ([]models.Request, error) {
	var rows []models.Request
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.RequestStatusOpen).
		Order("id ASC").
		Limit(limit)
	if afterID > 0 {
		query = query.Where("id > ?", afterID)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing open requests")
	}
	return rows, nil
}

func (r *repository) ListByDealer(ctx context.Context, dealer string, limit int) ([]models.Request, error) {
	var rows []models.Request
	err := r.db.WithContext(ctx).
		Where("dealer = ?", dealer).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing dealer requests")
	}
	return rows, nil
}
