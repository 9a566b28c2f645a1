package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/digitalhandshake/dhs-backend/pkg/db/models"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
	"github.com/digitalhandshake/dhs-backend/pkg/metrics"
	"github.com/digitalhandshake/dhs-backend/pkg/outbox"
	"github.com/digitalhandshake/dhs-backend/pkg/outbox/payloads"
)

const deadlineSweepBatch = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type overdueReader interface {
	ListExecutionPastDeadline(ctx context.Context, nowUnix int64, limit int) ([]models.Handshake, error)
}

type dedupEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// DeadlineSweepJobParams configure the overdue handshake scheduler.
type DeadlineSweepJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Reader  overdueReader
	Outbox  dedupEmitter
	Metrics *metrics.CronJobMetrics
}

// NewDeadlineSweepJob builds the cron job that flags executing handshakes
// whose deadline elapsed without the bidder ending the job. Expiry itself
// stays with the parties; the sweep only emits the notification event, once
// per handshake.
func NewDeadlineSweepJob(params DeadlineSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("overdue reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &deadlineSweepJob{
		logg:    params.Logger,
		db:      params.DB,
		reader:  params.Reader,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

type deadlineSweepJob struct {
	logg    *logger.Logger
	db      txRunner
	reader  overdueReader
	outbox  dedupEmitter
	metrics *metrics.CronJobMetrics
	now     func() time.Time
}

func (j *deadlineSweepJob) Name() string { return "deadline-sweep" }

func (j *deadlineSweepJob) Run(ctx context.Context) error {
	overdue, err := j.reader.ListExecutionPastDeadline(ctx, j.now().Unix(), deadlineSweepBatch)
	if err != nil {
		return fmt.Errorf("query overdue handshakes: %w", err)
	}

	var errs []error
	swept := int64(0)
	for _, handshake := range overdue {
		if err := j.emitDeadlinePassed(ctx, handshake); err != nil {
			errs = append(errs, err)
			continue
		}
		swept++
	}
	if j.metrics != nil {
		j.metrics.AddSwept(j.Name(), swept)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"overdue": len(overdue), "swept": swept})
	j.logg.Info(logCtx, "deadline sweep complete")
	return multierr.Combine(errs...)
}

func (j *deadlineSweepJob) emitDeadlinePassed(ctx context.Context, handshake models.Handshake) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeadlinePassed,
			AggregateType: enums.AggregateHandshake,
			AggregateID:   handshake.ID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: payloads.DeadlinePassedEvent{
				HandshakeID: handshake.ID,
				Deadline:    handshake.Deadline,
			},
		})
	})
}
