package normalize

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mitchellmoss/package-tracker/internal/models"
)

// Shippo's status vocabulary is our internal one, so the table is an
// identity map; it still exists so that a new upstream value degrades to
// UNKNOWN instead of leaking through.
var shippoStatusTable = map[string]string{
	"PRE_TRANSIT": models.StatusPreTransit,
	"TRANSIT":     models.StatusTransit,
	"DELIVERED":   models.StatusDelivered,
	"RETURNED":    models.StatusReturned,
	"FAILURE":     models.StatusFailure,
	"UNKNOWN":     models.StatusUnknown,
}

type shippoAddress struct {
	City  string `json:"city"`
	State string `json:"state"`
	Zip   string `json:"zip"`
}

type shippoStatus struct {
	Status        string         `json:"status"`
	Substatus     *string        `json:"substatus"`
	StatusDate    string         `json:"status_date"`
	StatusDetails string         `json:"status_details"`
	Location      *shippoAddress `json:"location"`
}

type shippoPayload struct {
	TrackingNumber  string         `json:"tracking_number"`
	Carrier         string         `json:"carrier"`
	ETA             *string        `json:"eta"`
	TrackingStatus  *shippoStatus  `json:"tracking_status"`
	TrackingHistory []shippoStatus `json:"tracking_history"`
	ServiceLevel    *struct {
		Name string `json:"name"`
	} `json:"servicelevel"`
	AddressFrom *shippoAddress `json:"address_from"`
	AddressTo   *shippoAddress `json:"address_to"`
}

func Shippo(payload []byte) (models.TrackingSnapshot, error) {
	var p shippoPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.TrackingSnapshot{}, &Error{Carrier: models.CarrierShippo, Reason: "not a JSON object"}
	}
	// Shippo answers an unknown number with an object that has neither a
	// tracking_number nor a tracking_status.
	if p.TrackingNumber == "" && p.TrackingStatus == nil {
		return models.TrackingSnapshot{}, &Error{Carrier: models.CarrierShippo, Reason: "no such package"}
	}

	snap := models.TrackingSnapshot{
		Carrier: models.CarrierShippo,
		Status:  models.StatusUnknown,
	}
	if p.Carrier != "" {
		snap.Carrier = p.Carrier
	}

	if p.TrackingStatus != nil {
		snap.Status = mapStatus(shippoStatusTable, p.TrackingStatus.Status)
		if p.TrackingStatus.Substatus != nil {
			snap.Substatus = *p.TrackingStatus.Substatus
		}
	}

	if p.ETA != nil {
		if t, err := time.Parse(time.RFC3339, *p.ETA); err == nil {
			utc := t.UTC()
			snap.ETA = &utc
		}
	}
	if p.ServiceLevel != nil {
		snap.ServiceLevel = p.ServiceLevel.Name
	}
	snap.FromLocation = joinShippoAddress(p.AddressFrom)
	snap.ToLocation = joinShippoAddress(p.AddressTo)

	for _, h := range p.TrackingHistory {
		ev := models.TrackingEvent{
			Status:      mapStatus(shippoStatusTable, h.Status),
			Description: h.StatusDetails,
			Location:    joinShippoAddress(h.Location),
		}
		if h.Substatus != nil {
			ev.Substatus = *h.Substatus
		}
		if t, err := time.Parse(time.RFC3339, h.StatusDate); err == nil {
			ev.Timestamp = t.UTC()
		}
		snap.Events = append(snap.Events, ev)
	}

	return snap, nil
}

func joinShippoAddress(a *shippoAddress) string {
	if a == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	if a.City != "" {
		parts = append(parts, a.City)
	}
	tail := strings.TrimSpace(a.State + " " + a.Zip)
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}

func mapStatus(table map[string]string, raw string) string {
	if s, ok := table[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return s
	}
	return models.StatusUnknown
}
