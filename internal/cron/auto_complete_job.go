package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
)

const (
	autoCompleteJobName     = "order-auto-complete"
	defaultAutoCompleteAge  = 48 * time.Hour
	defaultAutoCompleteSize = 200
	maxAutoCompleteBatches  = 50
)

type autoCompleter interface {
	ListAutoCompletable(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	AutoComplete(ctx context.Context, orderID uuid.UUID, cutoff time.Time) (*models.Order, error)
}

// AutoCompleteJobParams configure the order auto-completion job.
type AutoCompleteJobParams struct {
	Logger    *logger.Logger
	Orders    autoCompleter
	Metrics   *metrics.CronJobMetrics
	After     time.Duration
	BatchSize int
}

// NewAutoCompleteJob builds the job that delivers orders the buyer never
// confirmed once they are older than After.
func NewAutoCompleteJob(params AutoCompleteJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	after := params.After
	if after <= 0 {
		after = defaultAutoCompleteAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultAutoCompleteSize
	}
	return &autoCompleteJob{
		logg:    params.Logger,
		orders:  params.Orders,
		metrics: params.Metrics,
		after:   after,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type autoCompleteJob struct {
	logg    *logger.Logger
	orders  autoCompleter
	metrics *metrics.CronJobMetrics
	after   time.Duration
	batch   int
	now     func() time.Time
}

func (j *autoCompleteJob) Name() string { return autoCompleteJobName }

// Run completes every eligible order, one transaction each. A failing order
// is logged and retried on the next run; it never blocks its siblings.
func (j *autoCompleteJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	attempted := map[uuid.UUID]struct{}{}
	var (
		errs      error
		completed int
		skipped   int
		failed    int
	)

	for i := 0; i < maxAutoCompleteBatches; i++ {
		// Orders that failed earlier in this run stay pending and sort first,
		// so widen the page by that many to keep making progress.
		limit := j.batch + skipped + failed
		batch, err := j.orders.ListAutoCompletable(ctx, cutoff, limit)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("list auto-completable orders: %w", err))
			break
		}
		fresh := 0
		for _, order := range batch {
			if _, seen := attempted[order.ID]; seen {
				continue
			}
			attempted[order.ID] = struct{}{}
			fresh++

			if _, err := j.orders.AutoComplete(ctx, order.ID, cutoff); err != nil {
				if pkgerrors.IsCode(err, pkgerrors.CodeInvalidOrderState) {
					skipped++
					continue
				}
				failed++
				orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
				j.logg.Error(orderCtx, "order auto-complete failed", err)
				errs = multierr.Append(errs, fmt.Errorf("auto-complete order %s: %w", order.ID, err))
				continue
			}
			completed++
		}
		if fresh == 0 || len(batch) < limit {
			break
		}
	}

	j.metrics.AddRows(autoCompleteJobName, "completed", completed)
	j.metrics.AddRows(autoCompleteJobName, "skipped", skipped)
	j.metrics.AddRows(autoCompleteJobName, "failed", failed)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"completed": completed,
		"skipped":   skipped,
		"failed":    failed,
	})
	j.logg.Info(logCtx, "order auto-complete loop complete")
	return errs
}
