package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flip-estimator/internal/geo"
	"github.com/sells-group/flip-estimator/internal/model"
)

var testNow = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func testComparable(id string, lat, lon, pricePerArea float64, reformed bool, sold time.Time) model.Comparable {
	return model.Comparable{
		ID: id,
		Attributes: model.Attributes{
			Location:  &geo.Point{Lat: lat, Lon: lon},
			Surface:   90,
			Rooms:     model.IntPtr(3),
			Floor:     model.IntPtr(2),
			Exterior:  true,
			BuildYear: model.IntPtr(1975),
			Zone:      "RETIRO",
		},
		Price:        pricePerArea * 90,
		PricePerArea: pricePerArea,
		SaleDate:     sold,
		WasReformed:  reformed,
		Reliability:  0.9,
		Source:       "notary",
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("UpsertAndListComparables", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		comps := []model.Comparable{
			testComparable("b", 40.416, -3.684, 5000, true, testNow.AddDate(0, -1, 0)),
			testComparable("a", 40.417, -3.685, 5200, true, testNow.AddDate(0, -2, 0)),
			testComparable("c", 40.418, -3.686, 3900, false, testNow.AddDate(0, -3, 0)),
			testComparable("old", 40.416, -3.684, 4800, true, testNow.AddDate(-2, 0, 0)),
		}
		n, err := s.UpsertComparables(ctx, comps)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		got, err := s.ListComparables(ctx, ComparableFilter{
			ReformedOnly: true,
			SoldAfter:    testNow.AddDate(-1, 0, 0),
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "b", got[1].ID)

		b := got[1]
		require.NotNil(t, b.Location)
		assert.InDelta(t, 40.416, b.Location.Lat, 1e-9)
		assert.InDelta(t, -3.684, b.Location.Lon, 1e-9)
		require.NotNil(t, b.Rooms)
		assert.Equal(t, 3, *b.Rooms)
		assert.Nil(t, b.Bathrooms)
		assert.True(t, b.Exterior)
		assert.True(t, b.WasReformed)
		assert.True(t, testNow.AddDate(0, -1, 0).Equal(b.SaleDate))
		assert.Equal(t, "notary", b.Source)
	})

	t.Run("UpsertOverwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		c := testComparable("x", 40.4, -3.7, 5000, true, testNow)
		_, err := s.UpsertComparables(ctx, []model.Comparable{c})
		require.NoError(t, err)

		c.PricePerArea = 5500
		_, err = s.UpsertComparables(ctx, []model.Comparable{c})
		require.NoError(t, err)

		got, err := s.ListComparables(ctx, ComparableFilter{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 5500.0, got[0].PricePerArea)
	})

	t.Run("ZoneStats", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UpsertComparables(ctx, []model.Comparable{
			testComparable("r1", 40.41, -3.68, 5000, true, testNow),
			testComparable("r2", 40.41, -3.68, 6000, true, testNow),
			testComparable("u1", 40.41, -3.68, 4000, false, testNow),
		})
		require.NoError(t, err)

		zones, err := s.ZoneStats(ctx)
		require.NoError(t, err)
		z, ok := zones["RETIRO"]
		require.True(t, ok)
		assert.InDelta(t, 5000, z.AvgPricePerArea, 1e-6)
		assert.InDelta(t, 5500, z.AvgReformedPricePerArea, 1e-6)
		assert.InDelta(t, 4000, z.AvgUnreformedPricePerArea, 1e-6)
		assert.Equal(t, 4000.0, z.MinPricePerArea)
		assert.Equal(t, 6000.0, z.MaxPricePerArea)
		assert.Equal(t, 3, z.SampleSize)
	})

	t.Run("CostProfiles", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		profiles := []model.ReformCostProfile{
			{Category: model.ReformIntegral, Quality: model.QualityMedium, Zone: "RETIRO", CostPerArea: 950, Year: 2025, IncludedItems: []string{"cocina"}},
			{Category: model.ReformCosmetic, Quality: model.QualityBasic, CostPerArea: 160, Year: 2025},
		}
		n, err := s.ReplaceCostProfiles(ctx, profiles)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.ReplaceCostProfiles(ctx, profiles[:1])
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.CostProfiles(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, model.ReformIntegral, got[0].Category)
		assert.Equal(t, "RETIRO", got[0].Zone)
		assert.Equal(t, []string{"cocina"}, got[0].IncludedItems)
		assert.Empty(t, got[0].ExcludedItems)
	})

	t.Run("Estimations", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		empty, err := s.FindEstimationByHash(ctx, "abc")
		require.NoError(t, err)
		require.Nil(t, empty, "an empty store has no estimations")

		result := json.RawMessage(`{"sale":{"avg_price":450000}}`)
		id, err := s.SaveEstimation(ctx, EstimationRecord{Reference: "ref-1", InputHash: "abc", Result: result})
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		rec, err := s.GetEstimation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "ref-1", rec.Reference)
		assert.Equal(t, "abc", rec.InputHash)
		assert.JSONEq(t, string(result), string(rec.Result))
		assert.False(t, rec.CreatedAt.IsZero())

		found, err := s.FindEstimationByHash(ctx, "abc")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, id, found.ID)

		missing, err := s.FindEstimationByHash(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)

		_, err = s.GetEstimation(ctx, "does-not-exist")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestSQLiteStoreSuite(t *testing.T) {
	storeTestSuite(t, func(t *testing.T) Store { return newTestSQLiteStore(t) })
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
