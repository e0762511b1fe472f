package services

import (
	"context"
	"time"

	"invoicer-backend/models"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Regenerator periodically retries artifact generation for invoices whose
// last attempt failed or never completed.
type Regenerator struct {
	svc     *InvoiceService
	store   *InvoiceStore
	cron    *cron.Cron
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewRegenerator(svc *InvoiceService, store *InvoiceStore, log logrus.FieldLogger) *Regenerator {
	return &Regenerator{
		svc:     svc,
		store:   store,
		timeout: 5 * time.Minute,
		log:     log,
	}
}

// Start schedules RunOnce on a cron schedule. An empty schedule disables the job.
func (r *Regenerator) Start(schedule string) error {
	if schedule == "" {
		r.log.Info("document regeneration disabled")
		return nil
	}
	r.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.RunOnce(ctx)
	}); err != nil {
		return err
	}
	r.cron.Start()
	r.log.WithField("schedule", schedule).Info("document regeneration scheduler started")
	return nil
}

// Stop waits for a running pass to finish or ctx to expire.
func (r *Regenerator) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce regenerates every invoice with a failed or stale pending document.
// It returns how many artifacts were written.
func (r *Regenerator) RunOnce(ctx context.Context) int {
	ids, err := r.store.ListByDocumentStatus(ctx, models.DocumentFailed, models.DocumentPending)
	if err != nil {
		r.log.WithError(err).Error("failed to list invoices awaiting documents")
		return 0
	}

	done := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		inv, err := r.store.Get(ctx, id)
		if err != nil {
			continue
		}
		// A pending document younger than a minute is probably still being
		// produced by the request that created it.
		if inv.DocumentStatus == models.DocumentPending && time.Since(inv.UpdatedAt) < time.Minute {
			continue
		}
		if _, err := r.svc.RegenerateArtifact(ctx, id); err != nil {
			r.log.WithError(err).WithField("invoice_id", id).Warn("regeneration failed")
			continue
		}
		done++
	}
	if len(ids) > 0 {
		r.log.WithFields(logrus.Fields{"candidates": len(ids), "regenerated": done}).Info("document regeneration pass finished")
	}
	return done
}
