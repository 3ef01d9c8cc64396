// Package normalize maps raw carrier payloads onto the internal snapshot
// model. Everything here is pure: same payload in, same snapshot out, no
// network, so fixtures cover it completely.
package normalize

import (
	"fmt"

	"github.com/mitchellmoss/package-tracker/internal/models"
)

// Error means the payload could not be read as the expected container
// structure, or the provider signalled "no such package". Missing optional
// fields are never an Error; an unmapped status normalizes to UNKNOWN.
type Error struct {
	Carrier string
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize %s payload: %s", e.Carrier, e.Reason)
}

// Snapshot dispatches on the carrier code. Unregistered carriers fall back
// to the Shippo shape, which is also what the fake gateway emits.
func Snapshot(carrierCode string, payload []byte) (models.TrackingSnapshot, error) {
	switch carrierCode {
	case models.CarrierUPS:
		return UPS(payload)
	case models.CarrierFedEx:
		return FedEx(payload)
	default:
		return Shippo(payload)
	}
}
