package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/qs-lzh/cineportal/internal/model"
	"github.com/qs-lzh/cineportal/internal/service"
)

func TestCanWatchWindowBoundary(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t)
	id, err := f.manager(f.store).CreateMovie(ctx, f.fields("Heat"), nil)
	require.NoError(t, err)

	orderDate := time.Date(2024, 1, 1, 18, 30, 0, 0, time.UTC)
	_, err = f.store.InsertOrder("u1", orderDate, model.OrderItem{MovieID: id, Price: 9.99})
	require.NoError(t, err)

	svc := NewEntitlementService(f.store, zap.NewNop())

	access, err := svc.CanWatch(ctx, "u1", id, orderDate.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.True(t, access.Granted)
	assert.Equal(t, orderDate.Add(7*24*time.Hour), access.Watch.EndDate)

	access, err = svc.CanWatch(ctx, "u1", id, orderDate.Add(7*24*time.Hour+time.Second))
	require.NoError(t, err)
	assert.False(t, access.Granted)
	assert.Nil(t, access.Watch)

	access, err = svc.CanWatch(ctx, "u1", id, orderDate)
	require.NoError(t, err)
	assert.True(t, access.Granted)
}

func TestCanWatchWindowProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		f := newCatalogFixture(t)
		id, err := f.manager(f.store).CreateMovie(ctx, f.fields("Heat"), nil)
		require.NoError(t, err)

		orderDate := time.Unix(rapid.Int64Range(0, 4_000_000_000).Draw(t, "orderDate"), 0).UTC()
		offset := time.Duration(rapid.Int64Range(0, int64(14*24*time.Hour)).Draw(t, "offset"))
		_, err = f.store.InsertOrder("u1", orderDate, model.OrderItem{MovieID: id, Price: 5})
		require.NoError(t, err)

		access, err := NewEntitlementService(f.store, zap.NewNop()).CanWatch(ctx, "u1", id, orderDate.Add(offset))
		require.NoError(t, err)
		require.Equal(t, offset <= PurchaseWindow, access.Granted)
	})
}

func TestCanWatchDeniesOtherUsersAndMovies(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t)
	m := f.manager(f.store)
	heat, err := m.CreateMovie(ctx, f.fields("Heat"), nil)
	require.NoError(t, err)
	ronin, err := m.CreateMovie(ctx, f.fields("Ronin"), nil)
	require.NoError(t, err)

	orderDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.store.InsertOrder("u1", orderDate, model.OrderItem{MovieID: heat, Price: 9.99})
	require.NoError(t, err)

	svc := NewEntitlementService(f.store, zap.NewNop())
	now := orderDate.Add(time.Hour)

	for name, tc := range map[string]struct {
		user  string
		movie uint
	}{
		"other user":       {"u2", heat},
		"other movie":      {"u1", ronin},
		"anonymous":        {"", heat},
		"unknown movie id": {"u1", 9999},
	} {
		t.Run(name, func(t *testing.T) {
			access, err := svc.CanWatch(ctx, tc.user, tc.movie, now)
			require.NoError(t, err)
			assert.False(t, access.Granted)
		})
	}
}

func TestCanWatchReportsLatestValidPurchase(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t)
	id, err := f.manager(f.store).CreateMovie(ctx, f.fields("Heat"), nil)
	require.NoError(t, err)

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(3 * 24 * time.Hour)
	expired := first.Add(-30 * 24 * time.Hour)
	_, err = f.store.InsertOrder("u1", second, model.OrderItem{MovieID: id, Price: 7})
	require.NoError(t, err)
	_, err = f.store.InsertOrder("u1", first, model.OrderItem{MovieID: id, Price: 9.99})
	require.NoError(t, err)
	_, err = f.store.InsertOrder("u1", expired, model.OrderItem{MovieID: id, Price: 1})
	require.NoError(t, err)

	svc := NewEntitlementService(f.store, zap.NewNop())

	access, err := svc.CanWatch(ctx, "u1", id, first.Add(5*24*time.Hour))
	require.NoError(t, err)
	require.True(t, access.Granted)
	assert.Equal(t, second, access.Watch.OrderDate)
	assert.Equal(t, 7.0, access.Watch.Price)

	// only the second order is still open here
	access, err = svc.CanWatch(ctx, "u1", id, first.Add(9*24*time.Hour))
	require.NoError(t, err)
	require.True(t, access.Granted)
	assert.Equal(t, second.Add(PurchaseWindow), access.Watch.EndDate)
}

func TestCanWatchDetails(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t)
	fields := f.fields("Heat")
	fields.Category = model.CategoryAction
	id, err := f.manager(f.store).CreateMovie(ctx, fields, nil)
	require.NoError(t, err)

	orderDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.store.InsertOrder("u1", orderDate, model.OrderItem{MovieID: id, Price: 9.99})
	require.NoError(t, err)

	access, err := NewEntitlementService(f.store, zap.NewNop()).CanWatch(ctx, "u1", id, orderDate)
	require.NoError(t, err)
	require.True(t, access.Granted)
	assert.Equal(t, &WatchDetails{
		MovieID:      id,
		Name:         "Heat",
		Description:  "Heat description",
		ImageURL:     "/images/Heat.jpg",
		Price:        9.99,
		Category:     model.CategoryAction,
		StartDate:    fields.StartDate,
		OrderDate:    orderDate,
		PurchaseDate: orderDate,
		EndDate:      time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		Cinema:       f.cinemas[0].Name,
		Producer:     f.producers[0].FullName,
	}, access.Watch)
}

func TestCanWatchPriceIgnoresLaterCatalogEdits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		f := newCatalogFixture(t)
		m := f.manager(f.store)

		paid := float64(rapid.IntRange(0, 10_000).Draw(t, "paidCents")) / 100
		current := float64(rapid.IntRange(0, 10_000).Draw(t, "currentCents")) / 100

		fields := f.fields("Heat")
		fields.Price = paid
		id, err := m.CreateMovie(ctx, fields, nil)
		require.NoError(t, err)

		orderDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		_, err = f.store.InsertOrder("u1", orderDate, model.OrderItem{MovieID: id, Price: paid})
		require.NoError(t, err)

		fields.Price = current
		require.NoError(t, m.UpdateMovie(ctx, id, fields, nil))

		access, err := NewEntitlementService(f.store, zap.NewNop()).CanWatch(ctx, "u1", id, orderDate.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, access.Granted)
		require.Equal(t, paid, access.Watch.Price)
	})
}

func TestCanWatchSurfacesStoreFailure(t *testing.T) {
	f := newCatalogFixture(t)
	svc := NewEntitlementService(&brokenOrdersStore{Store: f.store}, zap.NewNop())

	access, err := svc.CanWatch(context.Background(), "u1", 1, time.Now())
	require.ErrorIs(t, err, service.ErrStore)
	assert.False(t, access.Granted)
}
