package redisstore

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mitchellmoss/package-tracker/internal/models"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultKey = "tracker:packages"

// Store keeps the whole registry in one Redis hash: field = tracking
// number, value = the package as JSON. This mirrors the settings-store
// shape the registry expects: load everything at startup, save wholesale.
type Store struct {
	c   *redis.Client
	key string
}

func New(addr string) *Store {
	return &Store{
		c:   redis.NewClient(&redis.Options{Addr: addr}),
		key: defaultKey,
	}
}

func (s *Store) WithKey(key string) *Store {
	if key != "" {
		s.key = key
	}
	return s
}

func (s *Store) Close() error { return s.c.Close() }

func (s *Store) LoadAll(ctx context.Context) ([]models.TrackedPackage, error) {
	fields, err := s.c.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis hgetall")
	}

	out := make([]models.TrackedPackage, 0, len(fields))
	for trackingNumber, raw := range fields {
		var p models.TrackedPackage
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			// Один битый элемент не должен ронять весь реестр.
			slog.Warn("skip unreadable stored package", "tracking_number", trackingNumber, "error", err.Error())
			continue
		}
		// Older records may predate some fields; default them.
		if p.TrackingNumber == "" {
			p.TrackingNumber = trackingNumber
		}
		if p.Status == "" {
			p.Status = models.StatusUnknown
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) SaveAll(ctx context.Context, pkgs []models.TrackedPackage) error {
	pipe := s.c.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(pkgs) > 0 {
		vals := make([]any, 0, len(pkgs)*2)
		for _, p := range pkgs {
			b, err := json.Marshal(p)
			if err != nil {
				return errors.Wrap(err, "marshal package")
			}
			vals = append(vals, p.TrackingNumber, b)
		}
		pipe.HSet(ctx, s.key, vals...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redis save")
	}
	return nil
}
