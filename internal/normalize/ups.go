package normalize

import (
	"encoding/json"
	"time"

	"github.com/mitchellmoss/package-tracker/internal/models"
)

// UPS currentStatus.type codes, per the Track API reference.
var upsStatusTable = map[string]string{
	"M":  models.StatusPreTransit, // billing information received
	"P":  models.StatusPreTransit, // pickup
	"I":  models.StatusTransit,    // in transit
	"O":  models.StatusTransit,    // out for delivery
	"D":  models.StatusDelivered,
	"DO": models.StatusDelivered, // delivered origin CFS
	"DD": models.StatusDelivered, // delivered destination CFS
	"RS": models.StatusReturned,  // returned to shipper
	"X":  models.StatusFailure,   // exception
	"MV": models.StatusFailure,   // delivery voided
	"NA": models.StatusUnknown,
}

type upsActivity struct {
	Date   string `json:"date"` // 20060102
	Time   string `json:"time"` // 150405
	Status struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"status"`
	Location struct {
		Address struct {
			City          string `json:"city"`
			StateProvince string `json:"stateProvince"`
		} `json:"address"`
	} `json:"location"`
}

type upsPayload struct {
	TrackResponse *struct {
		Shipment []struct {
			TrackingNumber string `json:"trackingNumber"`
			CurrentStatus  *struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			} `json:"currentStatus"`
			DeliveryDate *struct {
				Date string `json:"date"` // 20060102
			} `json:"deliveryDate"`
			Activity []upsActivity `json:"activity"`
		} `json:"shipment"`
	} `json:"trackResponse"`
}

func UPS(payload []byte) (models.TrackingSnapshot, error) {
	var p upsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.TrackingSnapshot{}, &Error{Carrier: models.CarrierUPS, Reason: "not a JSON object"}
	}
	if p.TrackResponse == nil {
		return models.TrackingSnapshot{}, &Error{Carrier: models.CarrierUPS, Reason: "missing trackResponse"}
	}
	if len(p.TrackResponse.Shipment) == 0 {
		return models.TrackingSnapshot{}, &Error{Carrier: models.CarrierUPS, Reason: "no shipment data"}
	}

	sh := p.TrackResponse.Shipment[0]
	snap := models.TrackingSnapshot{
		Carrier: models.CarrierUPS,
		Status:  models.StatusUnknown,
	}

	if sh.CurrentStatus != nil {
		snap.Status = mapStatus(upsStatusTable, sh.CurrentStatus.Type)
		snap.Substatus = sh.CurrentStatus.Description
	}
	if sh.DeliveryDate != nil {
		if t, err := time.Parse("20060102", sh.DeliveryDate.Date); err == nil {
			snap.ETA = &t
		}
	}

	for _, a := range sh.Activity {
		ev := models.TrackingEvent{
			Status:      mapStatus(upsStatusTable, a.Status.Type),
			Description: a.Status.Description,
		}
		city := a.Location.Address.City
		state := a.Location.Address.StateProvince
		switch {
		case city != "" && state != "":
			ev.Location = city + ", " + state
		case city != "":
			ev.Location = city
		default:
			ev.Location = state
		}
		if t, err := time.Parse("20060102150405", a.Date+a.Time); err == nil {
			ev.Timestamp = t.UTC()
		}
		snap.Events = append(snap.Events, ev)
	}

	return snap, nil
}
