package rng

import (
	"time"

	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	apperrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
)

const (
	seedRowID   = 1
	seedModulus = 65537
)

// Source draws bounded pseudo-random numbers inside the caller's
// transaction. Juror selection depends on the draw being part of the dispute
// transaction so a rollback also rolls the seed back.
type Source interface {
	Draw(tx *gorm.DB, bound int64) (int64, error)
}

// SeededSource advances a single persisted seed on every draw. The
// recurrence folds the wall clock into the seed, so two draws in the same
// microsecond still differ because the first draw already moved the seed.
type SeededSource struct {
	now func() time.Time
}

// NewSeededSource builds a source on the real clock.
func NewSeededSource() *SeededSource {
	return &SeededSource{now: time.Now}
}

// NewSeededSourceWithClock builds a source on a supplied clock; tests use it
// to make draws deterministic.
func NewSeededSourceWithClock(now func() time.Time) *SeededSource {
	return &SeededSource{now: now}
}

// Draw returns a value in [0, bound) and persists the advanced seed.
func (s *SeededSource) Draw(tx *gorm.DB, bound int64) (int64, error) {
	if tx == nil {
		return 0, apperrors.New(apperrors.CodeInternal, "transaction required for random draw")
	}
	if bound <= 0 {
		return 0, apperrors.New(apperrors.CodeInternal, "random bound must be positive")
	}

	var row models.RandomSeed
	if err := tx.Where("id = ?", seedRowID).First(&row).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "loading random seed")
	}

	elapsed := s.now().UnixMicro()
	next := (row.Value + elapsed) % seedModulus
	if next < 0 {
		next += seedModulus
	}
	row.Value = next
	if err := tx.Save(&row).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "persisting random seed")
	}

	return next % bound, nil
}
