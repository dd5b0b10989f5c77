package trade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/trade"
	"github.com/procurement/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOrderService_ConcurrentConfirm runs against PostgreSQL: two placed
// orders of six units each race to confirm against ten in stock. The full
// locking path runs, so a lock-order deadlock would surface as a timeout or
// as a database error on the losing side.
func TestOrderService_ConcurrentConfirm(t *testing.T) {
	pg := testutil.NewPostgresDB(t)
	f := newWorkflowFixtureOn(t, pg.DB, 10)

	second := identity.NewActor(uuid.New(), "second@example.com", identity.RoleBuyer)
	f.saveUser(t, second)
	orderIDs := []uuid.UUID{
		f.placeOrderAs(t, f.buyer, 6).ID,
		f.placeOrderAs(t, second, 6).ID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := make(chan struct{})
	errs := make([]error, len(orderIDs))
	var wg sync.WaitGroup
	for i, id := range orderIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = f.service.Confirm(ctx, f.admin, id)
		}()
	}
	close(start)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("confirmations did not finish")
	}

	var winner, loser int
	switch {
	case errs[0] == nil && errs[1] != nil:
		winner, loser = 0, 1
	case errs[1] == nil && errs[0] != nil:
		winner, loser = 1, 0
	default:
		t.Fatalf("want exactly one confirmation to succeed, got errors %v and %v", errs[0], errs[1])
	}

	require.ErrorIs(t, errs[loser], shared.ErrInsufficientStock)
	var stockErr *shared.InsufficientStockError
	require.True(t, errors.As(errs[loser], &stockErr))
	require.Len(t, stockErr.Shortages, 1)
	assert.Equal(t, f.offer.ID, stockErr.Shortages[0].ProductInfoID)
	assert.Equal(t, 6, stockErr.Shortages[0].Requested)
	assert.Equal(t, 4, stockErr.Shortages[0].Available)

	assert.Equal(t, 4, f.stock(t))

	bg := context.Background()
	confirmed, err := f.service.GetByID(bg, f.admin, orderIDs[winner])
	require.NoError(t, err)
	assert.Equal(t, "confirmed", confirmed.Status)
	rejected, err := f.service.GetByID(bg, f.admin, orderIDs[loser])
	require.NoError(t, err)
	assert.Equal(t, "placed", rejected.Status, "a rejected confirmation leaves the order placed")

	confirmations := 0
	for _, typ := range f.publisher.types() {
		if typ == trade.EventTypeOrderConfirmed {
			confirmations++
		}
	}
	assert.Equal(t, 1, confirmations)
}
