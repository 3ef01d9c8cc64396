package store

import (
	"context"

	"github.com/mitchellmoss/package-tracker/internal/models"
)

// Store is the bulk persistence contract for the package registry. LoadAll
// must tolerate an empty store and partially-filled records; SaveAll
// replaces the stored set wholesale.
type Store interface {
	LoadAll(ctx context.Context) ([]models.TrackedPackage, error)
	SaveAll(ctx context.Context, pkgs []models.TrackedPackage) error
}
