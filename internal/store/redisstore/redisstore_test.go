package redisstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/mitchellmoss/package-tracker/internal/models"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	st := New(mr.Addr())
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	eta := now.Add(48 * time.Hour)
	lastErr := "shippo transport error: http 502"

	pkgs := []models.TrackedPackage{
		{
			TrackingNumber: "SHIPPO_TRANSIT",
			Carrier:        models.CarrierShippo,
			Status:         models.StatusTransit,
			Note:           "laptop",
			CreatedAt:      now,
			UpdatedAt:      now,
			Details: &models.TrackingSnapshot{
				Carrier: models.CarrierShippo,
				Status:  models.StatusTransit,
				ETA:     &eta,
				Events: []models.TrackingEvent{
					{Timestamp: now, Status: models.StatusTransit, Description: "Departed facility", Location: "San Francisco, CA 94103"},
				},
			},
		},
		{
			TrackingNumber:    "1Z999AA10123456784",
			Carrier:           models.CarrierUPS,
			Status:            models.StatusUnknown,
			Archived:          true,
			RetryCount:        2,
			LastUpdateAttempt: &now,
			LastError:         &lastErr,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
	}

	require.NoError(t, st.SaveAll(ctx, pkgs))

	loaded, err := st.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byNumber := map[string]models.TrackedPackage{}
	for _, p := range loaded {
		byNumber[p.TrackingNumber] = p
	}

	transit := byNumber["SHIPPO_TRANSIT"]
	require.Equal(t, models.StatusTransit, transit.Status)
	require.Equal(t, "laptop", transit.Note)
	require.NotNil(t, transit.Details)
	require.Len(t, transit.Details.Events, 1)
	require.NotNil(t, transit.Details.ETA)
	require.True(t, eta.Equal(*transit.Details.ETA))

	ups := byNumber["1Z999AA10123456784"]
	require.True(t, ups.Archived)
	require.Equal(t, int32(2), ups.RetryCount)
	require.NotNil(t, ups.LastError)
	require.Equal(t, lastErr, *ups.LastError)
}

func TestStore_SaveReplacesWholesale(t *testing.T) {
	mr := miniredis.RunT(t)
	st := New(mr.Addr())
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.SaveAll(ctx, []models.TrackedPackage{
		{TrackingNumber: "SHIPPO_TRANSIT", Status: models.StatusTransit},
		{TrackingNumber: "SHIPPO_DELIVERED", Status: models.StatusDelivered},
	}))

	// Removed packages must not survive the next save.
	require.NoError(t, st.SaveAll(ctx, []models.TrackedPackage{
		{TrackingNumber: "SHIPPO_DELIVERED", Status: models.StatusDelivered},
	}))

	loaded, err := st.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "SHIPPO_DELIVERED", loaded[0].TrackingNumber)
}

func TestStore_SaveAllEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	st := New(mr.Addr())
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.SaveAll(ctx, []models.TrackedPackage{
		{TrackingNumber: "SHIPPO_TRANSIT", Status: models.StatusTransit},
	}))
	require.NoError(t, st.SaveAll(ctx, nil))

	loaded, err := st.LoadAll(ctx)
	require.NoError(t, err)
	require.Empty(t, loaded)
}

func TestStore_LoadSkipsUnreadable(t *testing.T) {
	mr := miniredis.RunT(t)
	st := New(mr.Addr()).WithKey("test:packages")
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.SaveAll(ctx, []models.TrackedPackage{
		{TrackingNumber: "SHIPPO_TRANSIT", Status: models.StatusTransit},
	}))
	mr.HSet("test:packages", "corrupt", "{not json")
	mr.HSet("test:packages", "SHIPPO_DELIVERED", `{"carrier":"shippo"}`)

	loaded, err := st.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byNumber := map[string]models.TrackedPackage{}
	for _, p := range loaded {
		byNumber[p.TrackingNumber] = p
	}
	require.NotContains(t, byNumber, "corrupt")

	// Records without an embedded number or status fall back to the hash
	// field and UNKNOWN.
	delivered := byNumber["SHIPPO_DELIVERED"]
	require.Equal(t, models.StatusUnknown, delivered.Status)
}

func TestStore_LoadAllEmptyKey(t *testing.T) {
	mr := miniredis.RunT(t)
	st := New(mr.Addr())
	t.Cleanup(func() { _ = st.Close() })

	loaded, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, loaded)
}
