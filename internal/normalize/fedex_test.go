package normalize

import (
	"testing"
	"time"

	"github.com/mitchellmoss/package-tracker/internal/models"
	"github.com/stretchr/testify/require"
)

const fedexFixture = `{
	"output": {
		"completeTrackResults": [
			{
				"trackingNumber": "61299998820821171811",
				"trackResults": [
					{
						"trackingNumberInfo": {"trackingNumber": "61299998820821171811"},
						"latestStatusDetail": {"code": "DL", "description": "Delivered"},
						"estimatedDeliveryTimeWindow": {
							"window": {"begins": "2025-03-04T08:00:00-05:00", "ends": "2025-03-04T18:00:00-05:00"}
						},
						"scanEvents": [
							{
								"date": "2025-03-04T10:15:00-05:00",
								"eventType": "DL",
								"eventDescription": "Delivered",
								"scanLocation": {"city": "MEMPHIS", "stateOrProvinceCode": "TN"}
							},
							{
								"date": "2025-03-03T22:00:00-05:00",
								"eventType": "IT",
								"eventDescription": "In transit",
								"scanLocation": {}
							}
						]
					}
				]
			}
		]
	}
}`

func TestFedEx(t *testing.T) {
	snap, err := FedEx([]byte(fedexFixture))
	require.NoError(t, err)

	require.Equal(t, models.CarrierFedEx, snap.Carrier)
	require.Equal(t, models.StatusDelivered, snap.Status)
	require.Equal(t, "Delivered", snap.Substatus)

	require.NotNil(t, snap.ETA)
	require.Equal(t, time.Date(2025, 3, 4, 23, 0, 0, 0, time.UTC), *snap.ETA)

	require.Len(t, snap.Events, 2)
	require.Equal(t, models.StatusDelivered, snap.Events[0].Status)
	require.Equal(t, "MEMPHIS, TN", snap.Events[0].Location)
	require.Equal(t, time.Date(2025, 3, 4, 15, 15, 0, 0, time.UTC), snap.Events[0].Timestamp)
	require.Equal(t, models.StatusTransit, snap.Events[1].Status)
	require.Equal(t, "", snap.Events[1].Location)
}

func TestFedEx_StatusCodes(t *testing.T) {
	cases := map[string]string{
		"OC": models.StatusPreTransit,
		"PU": models.StatusPreTransit,
		"IT": models.StatusTransit,
		"OD": models.StatusTransit,
		"DL": models.StatusDelivered,
		"RS": models.StatusReturned,
		"DE": models.StatusFailure,
		"ZZ": models.StatusUnknown,
	}
	for code, want := range cases {
		snap, err := FedEx([]byte(`{"output":{"completeTrackResults":[{"trackResults":[{"latestStatusDetail":{"code":"` + code + `"}}]}]}}`))
		require.NoError(t, err, code)
		require.Equal(t, want, snap.Status, code)
	}
}

func TestFedEx_NotFound(t *testing.T) {
	_, err := FedEx([]byte(`{
		"output": {
			"completeTrackResults": [
				{
					"trackingNumber": "123456789012",
					"trackResults": [
						{
							"error": {
								"code": "TRACKING.TRACKINGNUMBER.NOTFOUND",
								"message": "Tracking number cannot be found."
							}
						}
					]
				}
			]
		}
	}`))
	var nerr *Error
	require.ErrorAs(t, err, &nerr)
	require.Contains(t, err.Error(), "Tracking number cannot be found")
}

func TestFedEx_Errors(t *testing.T) {
	var nerr *Error

	_, err := FedEx([]byte(`garbage`))
	require.ErrorAs(t, err, &nerr)

	_, err = FedEx([]byte(`{"errors":[{"code":"FORBIDDEN.ERROR"}]}`))
	require.ErrorAs(t, err, &nerr)
	require.Contains(t, err.Error(), "missing output")

	_, err = FedEx([]byte(`{"output":{"completeTrackResults":[]}}`))
	require.ErrorAs(t, err, &nerr)
	require.Contains(t, err.Error(), "no track results")
}
