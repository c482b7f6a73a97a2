package embedded

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	misprint "github.com/Moriyan1307/misprint-demo"
	eventsmem "github.com/Moriyan1307/misprint-demo/events/memory"
	"github.com/Moriyan1307/misprint-demo/models"
	storemem "github.com/Moriyan1307/misprint-demo/store/memory"
)

func newTestService(t *testing.T) *Embedded {
	t.Helper()

	st := storemem.NewStore()
	require.NoError(t, st.SeedItem(context.Background(), &models.Item{
		ID:              "charizard-1st-ed",
		Name:            "1st Edition Charizard",
		Quantity:        1,
		InitialQuantity: 1,
	}))

	coordinator, err := misprint.New(misprint.Config{
		Store:     st,
		Publisher: eventsmem.NewBroker(64, nil),
	})
	require.NoError(t, err)

	svc, err := New(coordinator)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = svc.Close()
	})

	return svc
}

func TestNew_RequiresCoordinator(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestEmbedded_PurchaseAndStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	order, err := svc.Purchase(ctx, "charizard-1st-ed")
	require.NoError(t, err)
	assert.NotEmpty(t, order.OrderID)

	item, err := svc.Status(ctx, "charizard-1st-ed")
	require.NoError(t, err)
	assert.Equal(t, int64(0), item.Quantity)
}

func TestEmbedded_SubscribeAndReset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sub, snapshot, err := svc.Subscribe(ctx)
	require.NoError(t, err)
	defer svc.Unsubscribe(sub)

	require.Len(t, snapshot, 1)
	assert.Equal(t, int64(1), snapshot[0].Quantity)

	items, err := svc.Reset(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	update := <-sub.C
	assert.Equal(t, int64(1), update.Item.Quantity)
}
