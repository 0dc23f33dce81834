package service

import (
	"context"
	"fmt"
	"time"

	"go-material-store/internal/repository"
	"go-material-store/pkg/logger"

	"go.uber.org/multierr"
)

// SweepReport counts what one reconciliation pass did.
type SweepReport struct {
	Resubmitted int `json:"resubmitted"`
	Synced      int `json:"synced"`
	Cancelled   int `json:"cancelled"`
	Failed      int `json:"failed"`
}

// ReconcileService catches up on work the request path could not finish: gateway transactions
// that were never created, webhooks that never arrived and orders whose payment failed long ago.
// It is run from an external scheduler.
type ReconcileService struct {
	orders       repository.OrderRepository
	payments     repository.PaymentRepository
	checkout     CheckoutService
	reconciler   ReconcilerService
	cancellation CancellationService
	staleAfter   time.Duration
	batchSize    int
	logg         *logger.Logger
	now          func() time.Time
}

func NewReconcileService(orders repository.OrderRepository, payments repository.PaymentRepository,
	checkout CheckoutService, reconciler ReconcilerService, cancellation CancellationService,
	staleAfter time.Duration, batchSize int, logg *logger.Logger) *ReconcileService {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &ReconcileService{
		orders:       orders,
		payments:     payments,
		checkout:     checkout,
		reconciler:   reconciler,
		cancellation: cancellation,
		staleAfter:   staleAfter,
		batchSize:    batchSize,
		logg:         logg,
		now:          time.Now,
	}
}

// Sweep runs every step over its whole batch. A failing item is counted and reported in the
// combined error; it never stops the rest.
func (s *ReconcileService) Sweep(ctx context.Context) (SweepReport, error) {
	var (
		report SweepReport
		errs   error
	)
	cutoff := s.now().Add(-s.staleAfter)

	// 1. Payments that never reached the gateway
	missing, err := s.payments.FindMissingTransaction(ctx, s.now().Add(-time.Minute), s.batchSize)
	if err != nil {
		return report, internal(err, "list payments without gateway transaction")
	}
	for _, p := range missing {
		if ctx.Err() != nil {
			return report, multierr.Append(errs, ctx.Err())
		}
		if _, err := s.checkout.SubmitPayment(ctx, p.ID); err != nil {
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("submit payment %s: %w", p.ID, err))
			continue
		}
		report.Resubmitted++
	}

	// 2. Open payments the gateway has not told us about for a while
	stale, err := s.payments.FindStaleOpen(ctx, cutoff, s.batchSize)
	if err != nil {
		return report, multierr.Append(errs, internal(err, "list stale payments"))
	}
	for _, p := range stale {
		if ctx.Err() != nil {
			return report, multierr.Append(errs, ctx.Err())
		}
		if _, err := s.reconciler.SyncPayment(ctx, p.ID); err != nil {
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("sync payment %s: %w", p.ID, err))
			continue
		}
		report.Synced++
	}

	// 3. Orders left PENDING behind a failed payment release their stock
	abandoned, err := s.orders.FindStaleFailed(ctx, cutoff, s.batchSize)
	if err != nil {
		return report, multierr.Append(errs, internal(err, "list abandoned orders"))
	}
	for _, id := range abandoned {
		if ctx.Err() != nil {
			return report, multierr.Append(errs, ctx.Err())
		}
		if _, err := s.cancellation.Cancel(ctx, id, Actor{Kind: ActorSystem}, "payment failed and was not retried"); err != nil {
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("cancel order %s: %w", id, err))
			continue
		}
		report.Cancelled++
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"resubmitted": report.Resubmitted,
		"synced":      report.Synced,
		"cancelled":   report.Cancelled,
		"failed":      report.Failed,
	}), "reconciliation sweep finished")
	return report, errs
}
