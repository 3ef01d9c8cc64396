package fake

import (
	"context"
	"testing"

	"github.com/mitchellmoss/package-tracker/internal/models"
	"github.com/mitchellmoss/package-tracker/internal/normalize"
	"github.com/stretchr/testify/require"
)

func TestGateway_SandboxNumbers(t *testing.T) {
	g := New()

	for _, status := range []string{
		models.StatusPreTransit,
		models.StatusTransit,
		models.StatusDelivered,
		models.StatusReturned,
		models.StatusFailure,
		models.StatusUnknown,
	} {
		payload, err := g.Fetch(context.Background(), "SHIPPO_"+status)
		require.NoError(t, err)

		snap, err := normalize.Shippo(payload)
		require.NoError(t, err)
		require.Equal(t, status, snap.Status)
		require.Len(t, snap.Events, 1)
		require.Equal(t, "San Francisco, CA 94103", snap.Events[0].Location)
	}
}

func TestGateway_Deterministic(t *testing.T) {
	g := New()

	first, err := g.Fetch(context.Background(), "1Z999AA10123456784")
	require.NoError(t, err)
	second, err := g.Fetch(context.Background(), "1Z999AA10123456784")
	require.NoError(t, err)

	a, err := normalize.Shippo(first)
	require.NoError(t, err)
	b, err := normalize.Shippo(second)
	require.NoError(t, err)

	require.Equal(t, a.Status, b.Status, "same number always maps to the same status")
	require.Contains(t, []string{models.StatusTransit, models.StatusDelivered}, a.Status)
}
