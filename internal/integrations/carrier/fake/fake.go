package fake

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"strings"
	"time"

	"github.com/mitchellmoss/package-tracker/internal/models"
)

// Gateway is a local stand-in carrier for development and tests. It emits
// Shippo-shaped payloads with a deterministic status per tracking number,
// so no credentials or network are needed.
type Gateway struct{}

func New() *Gateway { return &Gateway{} }

type payload struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
	TrackingStatus struct {
		Status        string `json:"status"`
		Substatus     string `json:"substatus,omitempty"`
		StatusDate    string `json:"status_date"`
		StatusDetails string `json:"status_details"`
	} `json:"tracking_status"`
	TrackingHistory []historyItem `json:"tracking_history"`
}

type historyItem struct {
	Status        string `json:"status"`
	StatusDate    string `json:"status_date"`
	StatusDetails string `json:"status_details"`
	Location      struct {
		City  string `json:"city"`
		State string `json:"state"`
		Zip   string `json:"zip"`
	} `json:"location"`
}

func (g *Gateway) Fetch(ctx context.Context, trackingNumber string) ([]byte, error) {
	now := time.Now().UTC()

	status := statusFor(trackingNumber)

	var p payload
	p.TrackingNumber = trackingNumber
	p.Carrier = models.CarrierShippo
	p.TrackingStatus.Status = status
	p.TrackingStatus.StatusDate = now.Format(time.RFC3339)
	p.TrackingStatus.StatusDetails = "fake carrier update"

	var h historyItem
	h.Status = status
	h.StatusDate = now.Format(time.RFC3339)
	h.StatusDetails = "fake carrier update"
	h.Location.City = "San Francisco"
	h.Location.State = "CA"
	h.Location.Zip = "94103"
	p.TrackingHistory = []historyItem{h}

	return json.Marshal(p)
}

// statusFor: sandbox numbers carry their status in the suffix; everything
// else gets a stable fnv-hash bucket (one in five delivered).
func statusFor(trackingNumber string) string {
	if models.IsTestTrackingNumber(trackingNumber) {
		suffix := strings.TrimPrefix(trackingNumber, "SHIPPO_")
		if models.KnownStatus(suffix) {
			return suffix
		}
		return models.StatusUnknown
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(trackingNumber))
	if h.Sum32()%5 == 0 {
		return models.StatusDelivered
	}
	return models.StatusTransit
}
