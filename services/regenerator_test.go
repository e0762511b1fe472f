package services

import (
	"context"
	"testing"
	"time"

	"invoicer-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegeneratorRetriesFailedAndStaleDocuments(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.docs.fail(errChromeGone)
	_, err := f.svc.CreateInvoice(ctx, sampleInput())
	var partial *PartialFailureError
	require.ErrorAs(t, err, &partial)
	failedID := partial.InvoiceID
	f.docs.fail(nil)

	staleID, err := f.store.Create(ctx, storedInvoice("stale"))
	require.NoError(t, err)
	require.NoError(t, f.store.db.Model(&models.Invoice{}).Where("id = ?", staleID).
		UpdateColumn("updated_at", time.Now().Add(-10*time.Minute)).Error)

	freshID, err := f.store.Create(ctx, storedInvoice("fresh"))
	require.NoError(t, err)

	r := NewRegenerator(f.svc, f.store, quietLogger())
	assert.Equal(t, 2, r.RunOnce(ctx))

	for id, want := range map[uint]models.DocumentStatus{
		failedID: models.DocumentGenerated,
		staleID:  models.DocumentGenerated,
		freshID:  models.DocumentPending,
	} {
		inv, err := f.store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, inv.DocumentStatus, "invoice %d", id)
	}
}

func TestRegeneratorKeepsFailureWhenRenderStillBroken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.docs.fail(errChromeGone)
	_, err := f.svc.CreateInvoice(ctx, sampleInput())
	require.Error(t, err)

	r := NewRegenerator(f.svc, f.store, quietLogger())
	assert.Zero(t, r.RunOnce(ctx))

	ids, err := f.store.ListByDocumentStatus(ctx, models.DocumentFailed)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestRegeneratorSchedule(t *testing.T) {
	f := newServiceFixture(t)
	r := NewRegenerator(f.svc, f.store, quietLogger())

	require.NoError(t, r.Start(""))
	assert.Nil(t, r.cron)

	assert.Error(t, r.Start("not a schedule"))

	r = NewRegenerator(f.svc, f.store, quietLogger())
	require.NoError(t, r.Start("@every 1h"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}
