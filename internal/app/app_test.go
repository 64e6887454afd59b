package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qs-lzh/cineportal/config"
	"github.com/qs-lzh/cineportal/internal/service/domain"
)

func memoryConfig(seedFile string) *config.Config {
	return &config.Config{
		StoreDriver: config.StoreDriverMemory,
		SeedFile:    seedFile,
		CacheTTL:    time.Minute,
	}
}

func TestNewSeedsMemoryStore(t *testing.T) {
	ctx := context.Background()
	app, err := New(memoryConfig(filepath.Join("..", "..", "config", "seed.example.json")), nil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, app.Init())
	t.Cleanup(func() { app.Close() })

	movies, err := app.CatalogQueryService.ListMovies(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 2)

	dropdowns, err := app.CatalogManager.GetDropdownReferenceData(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, dropdowns.Cinemas)
	require.NotEmpty(t, dropdowns.Producers)

	id, err := app.CatalogManager.CreateMovie(ctx, domain.MovieFields{
		Name:        "Collateral",
		Description: "One night in LA",
		Price:       6,
		StartDate:   time.Date(2004, 8, 6, 0, 0, 0, 0, time.UTC),
		Category:    "Drama",
		CinemaID:    dropdowns.Cinemas[0].ID,
		ProducerID:  dropdowns.Producers[0].ID,
	}, []uint{dropdowns.Actors[0].ID})
	require.NoError(t, err)
	assert.NotZero(t, id)

	ledger, err := app.CatalogQueryService.ListPurchasedMovies(ctx, "demo-user")
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, "Heat", ledger[0].Name)

	access, err := app.EntitlementService.CanWatch(ctx, "demo-user", ledger[0].MovieID,
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, access.Granted)
}

func TestNewFailsOnBadSeedFile(t *testing.T) {
	_, err := New(memoryConfig(filepath.Join(t.TempDir(), "missing.json")), nil, nil, nil, zap.NewNop())
	require.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"movies":[{"name":"Heat","cinema":"Nowhere"}]}`), 0o600))
	_, err = New(memoryConfig(path), nil, nil, nil, zap.NewNop())
	require.ErrorContains(t, err, "unknown cinema")
}
