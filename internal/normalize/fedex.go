package normalize

import (
	"encoding/json"
	"time"

	"github.com/mitchellmoss/package-tracker/internal/models"
)

// FedEx latestStatusDetail codes, per the Track API reference.
var fedexStatusTable = map[string]string{
	"OC": models.StatusPreTransit, // order created
	"PU": models.StatusPreTransit, // picked up
	"IT": models.StatusTransit,    // in transit
	"AR": models.StatusTransit,    // arrived at facility
	"DP": models.StatusTransit,    // departed facility
	"OD": models.StatusTransit,    // out for delivery
	"DL": models.StatusDelivered,
	"RS": models.StatusReturned, // return to shipper
	"DE": models.StatusFailure,  // delivery exception
	"CA": models.StatusFailure,  // shipment cancelled
	"SE": models.StatusFailure,  // shipment exception
}

type fedexScanEvent struct {
	Date             string `json:"date"` // RFC3339
	EventType        string `json:"eventType"`
	EventDescription string `json:"eventDescription"`
	ScanLocation     struct {
		City                string `json:"city"`
		StateOrProvinceCode string `json:"stateOrProvinceCode"`
	} `json:"scanLocation"`
}

type fedexTrackResult struct {
	TrackingNumberInfo struct {
		TrackingNumber string `json:"trackingNumber"`
	} `json:"trackingNumberInfo"`
	LatestStatusDetail *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"latestStatusDetail"`
	EstimatedDeliveryTimeWindow *struct {
		Window struct {
			Begins string `json:"begins"`
			Ends   string `json:"ends"`
		} `json:"window"`
	} `json:"estimatedDeliveryTimeWindow"`
	ScanEvents []fedexScanEvent `json:"scanEvents"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type fedexPayload struct {
	Output *struct {
		CompleteTrackResults []struct {
			TrackingNumber string             `json:"trackingNumber"`
			TrackResults   []fedexTrackResult `json:"trackResults"`
		} `json:"completeTrackResults"`
	} `json:"output"`
}

func FedEx(payload []byte) (models.TrackingSnapshot, error) {
	var p fedexPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.TrackingSnapshot{}, &Error{Carrier: models.CarrierFedEx, Reason: "not a JSON object"}
	}
	if p.Output == nil {
		return models.TrackingSnapshot{}, &Error{Carrier: models.CarrierFedEx, Reason: "missing output"}
	}
	if len(p.Output.CompleteTrackResults) == 0 || len(p.Output.CompleteTrackResults[0].TrackResults) == 0 {
		return models.TrackingSnapshot{}, &Error{Carrier: models.CarrierFedEx, Reason: "no track results"}
	}

	tr := p.Output.CompleteTrackResults[0].TrackResults[0]
	// TRACKING.TRACKINGNUMBER.NOTFOUND comes back inside an otherwise valid
	// container.
	if tr.Error != nil {
		return models.TrackingSnapshot{}, &Error{Carrier: models.CarrierFedEx, Reason: tr.Error.Message}
	}

	snap := models.TrackingSnapshot{
		Carrier: models.CarrierFedEx,
		Status:  models.StatusUnknown,
	}
	if tr.LatestStatusDetail != nil {
		snap.Status = mapStatus(fedexStatusTable, tr.LatestStatusDetail.Code)
		snap.Substatus = tr.LatestStatusDetail.Description
	}
	if tr.EstimatedDeliveryTimeWindow != nil {
		if t, err := time.Parse(time.RFC3339, tr.EstimatedDeliveryTimeWindow.Window.Ends); err == nil {
			utc := t.UTC()
			snap.ETA = &utc
		}
	}

	for _, ev := range tr.ScanEvents {
		e := models.TrackingEvent{
			Status:      mapStatus(fedexStatusTable, ev.EventType),
			Description: ev.EventDescription,
		}
		city := ev.ScanLocation.City
		state := ev.ScanLocation.StateOrProvinceCode
		switch {
		case city != "" && state != "":
			e.Location = city + ", " + state
		case city != "":
			e.Location = city
		default:
			e.Location = state
		}
		if t, err := time.Parse(time.RFC3339, ev.Date); err == nil {
			e.Timestamp = t.UTC()
		}
		snap.Events = append(snap.Events, e)
	}

	return snap, nil
}
