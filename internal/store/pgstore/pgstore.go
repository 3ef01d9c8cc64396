package pgstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mitchellmoss/package-tracker/internal/models"
	"github.com/pkg/errors"
)

// Store is the Postgres persistence backend, for deployments that already
// run a database instead of Redis. The snapshot lands in a JSONB column;
// the registry only ever loads and saves wholesale.
type Store struct {
	db *pgxpool.Pool
}

func New(connString string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	db, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	s := &Store{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *Store) LoadAll(ctx context.Context) ([]models.TrackedPackage, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  tracking_number, carrier, status, substatus, note, archived,
  retry_count, last_update_attempt, last_error, details,
  created_at, updated_at
FROM packages
`)
	if err != nil {
		return nil, errors.Wrap(err, "select packages")
	}
	defer rows.Close()

	var out []models.TrackedPackage
	for rows.Next() {
		var p models.TrackedPackage
		var lastAttempt *time.Time
		var lastError *string
		var details []byte
		if err := rows.Scan(
			&p.TrackingNumber, &p.Carrier, &p.Status, &p.Substatus, &p.Note, &p.Archived,
			&p.RetryCount, &lastAttempt, &lastError, &details,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan package")
		}
		p.LastUpdateAttempt = lastAttempt
		p.LastError = lastError
		if len(details) > 0 {
			var snap models.TrackingSnapshot
			if json.Unmarshal(details, &snap) == nil {
				p.Details = &snap
			}
		}
		if p.Status == "" {
			p.Status = models.StatusUnknown
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Store) SaveAll(ctx context.Context, pkgs []models.TrackedPackage) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM packages`); err != nil {
		return errors.Wrap(err, "clear packages")
	}

	for _, p := range pkgs {
		var details []byte
		if p.Details != nil {
			details, err = json.Marshal(p.Details)
			if err != nil {
				return errors.Wrap(err, "marshal details")
			}
		}
		_, err := tx.Exec(ctx, `
INSERT INTO packages (
  tracking_number, carrier, status, substatus, note, archived,
  retry_count, last_update_attempt, last_error, details,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`, p.TrackingNumber, p.Carrier, p.Status, p.Substatus, p.Note, p.Archived,
			p.RetryCount, p.LastUpdateAttempt, p.LastError, details,
			p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "insert package")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}
