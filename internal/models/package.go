package models

import "time"

// Нормализованные статусы (фиксированный словарь, Shippo-style).
const (
	StatusPreTransit = "PRE_TRANSIT"
	StatusTransit    = "TRANSIT"
	StatusDelivered  = "DELIVERED"
	StatusReturned   = "RETURNED"
	StatusFailure    = "FAILURE"
	StatusUnknown    = "UNKNOWN"
)

const (
	CarrierShippo = "shippo"
	CarrierUPS    = "ups"
	CarrierFedEx  = "fedex"
)

// MaxRetries is the consecutive-failure ceiling per update cycle. A package
// that exhausts it stays tracked; only a later success resets the count.
const MaxRetries = 3

type TrackedPackage struct {
	TrackingNumber    string            `json:"tracking_number"`
	Carrier           string            `json:"carrier"`
	Status            string            `json:"status"`
	Substatus         string            `json:"substatus,omitempty"`
	Note              string            `json:"note,omitempty"`
	Archived          bool              `json:"archived"`
	RetryCount        int32             `json:"retry_count"`
	LastUpdateAttempt *time.Time        `json:"last_update_attempt,omitempty"`
	LastError         *string           `json:"last_error,omitempty"`
	Details           *TrackingSnapshot `json:"details,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// TrackingSnapshot is the normalized result of one carrier fetch. It is
// immutable once built and replaces the previous snapshot wholesale.
type TrackingSnapshot struct {
	Carrier      string          `json:"carrier"`
	Status       string          `json:"status"`
	Substatus    string          `json:"substatus,omitempty"`
	ETA          *time.Time      `json:"eta,omitempty"`
	ServiceLevel string          `json:"service_level,omitempty"`
	FromLocation string          `json:"from_location,omitempty"`
	ToLocation   string          `json:"to_location,omitempty"`
	Events       []TrackingEvent `json:"events,omitempty"`
}

type TrackingEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status,omitempty"`
	Substatus   string    `json:"substatus,omitempty"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
}

// KnownStatus reports whether s belongs to the normalized vocabulary.
func KnownStatus(s string) bool {
	switch s {
	case StatusPreTransit, StatusTransit, StatusDelivered, StatusReturned, StatusFailure, StatusUnknown:
		return true
	}
	return false
}
