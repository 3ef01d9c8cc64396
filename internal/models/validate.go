package models

import (
	"strings"

	"github.com/pkg/errors"
)

// Shippo reserves the SHIPPO_ namespace for sandbox tracking numbers; only
// the six status suffixes are real, anything else gets a 404 from the API.
const testTrackingPrefix = "SHIPPO_"

var testTrackingSuffixes = map[string]struct{}{
	StatusPreTransit: {},
	StatusTransit:    {},
	StatusDelivered:  {},
	StatusReturned:   {},
	StatusFailure:    {},
	StatusUnknown:    {},
}

func ValidateTrackingNumber(trackingNumber string) error {
	if strings.TrimSpace(trackingNumber) == "" {
		return errors.New("tracking number is required")
	}
	if strings.HasPrefix(trackingNumber, testTrackingPrefix) {
		suffix := strings.TrimPrefix(trackingNumber, testTrackingPrefix)
		if _, ok := testTrackingSuffixes[suffix]; !ok {
			return errors.Errorf("unknown test tracking number %q", trackingNumber)
		}
	}
	return nil
}

// IsTestTrackingNumber reports whether the number belongs to the reserved
// sandbox namespace (these are created via POST /tracks/, not GET).
func IsTestTrackingNumber(trackingNumber string) bool {
	return strings.HasPrefix(trackingNumber, testTrackingPrefix)
}
