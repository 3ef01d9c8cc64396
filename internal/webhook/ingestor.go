// Package webhook folds asynchronous carrier pushes into the registry
// through the same apply path a successful poll uses.
package webhook

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mitchellmoss/package-tracker/internal/models"
	"github.com/mitchellmoss/package-tracker/internal/normalize"
	"github.com/pkg/errors"
)

// EventTrackUpdated is the only event kind we act on; everything else is
// logged and dropped.
const EventTrackUpdated = "track_updated"

// Event is the Shippo-style push envelope: an event kind plus the tracking
// object as it would come back from a poll.
type Event struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Test  bool            `json:"test,omitempty"`
	Data  json.RawMessage `json:"data"`
}

type Applier interface {
	Apply(trackingNumber string, snap models.TrackingSnapshot) bool
	Get(trackingNumber string) (models.TrackedPackage, bool)
}

type Ingestor struct {
	registry Applier
}

func New(registry Applier) *Ingestor {
	return &Ingestor{registry: registry}
}

// Ingest applies a pushed tracking update. Pushes carry no sequence number,
// so a stale one still wins as "latest known"; see the design notes for the
// trade-off. Events for untracked numbers are a silent no-op.
func (i *Ingestor) Ingest(ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	if ev.Event != EventTrackUpdated {
		slog.Info("ignore webhook event", "event_id", ev.ID, "kind", ev.Event)
		return nil
	}
	if len(ev.Data) == 0 {
		return errors.New("webhook event has no data")
	}

	var head struct {
		TrackingNumber string `json:"tracking_number"`
	}
	if err := json.Unmarshal(ev.Data, &head); err != nil || head.TrackingNumber == "" {
		return errors.New("webhook data has no tracking number")
	}

	snap, err := normalize.Shippo(ev.Data)
	if err != nil {
		return errors.Wrap(err, "normalize webhook data")
	}

	if _, tracked := i.registry.Get(head.TrackingNumber); !tracked {
		slog.Info("webhook for untracked package", "event_id", ev.ID, "tracking_number", head.TrackingNumber)
		return nil
	}

	changed := i.registry.Apply(head.TrackingNumber, snap)
	slog.Info("webhook applied",
		"event_id", ev.ID,
		"tracking_number", head.TrackingNumber,
		"status", snap.Status,
		"status_changed", changed,
	)
	return nil
}

// IngestRaw decodes the envelope first; used by the Kafka intake where the
// message value is the whole envelope.
func (i *Ingestor) IngestRaw(payload []byte) error {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return errors.Wrap(err, "decode webhook envelope")
	}
	return i.Ingest(ev)
}
