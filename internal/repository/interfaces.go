package repository

import (
	"robodash/internal/models"
)

// SceneRepository defines the persistence contract for scene context records.
// Records are keyed by scene name; the full table is enumerable so the
// resolver can run its fuzzy fallback scan.
type SceneRepository interface {
	// Get returns the record for an exact scene name, or nil if absent.
	Get(name string) (*models.SceneContext, error)

	// All returns every stored record ordered by scene name.
	All() ([]models.SceneContext, error)

	// Upsert inserts the record or overwrites classes (and model, when
	// non-empty) for an existing name.
	Upsert(scene models.SceneContext) error

	// InsertIgnore inserts records in one transaction, skipping names that
	// already exist (first write wins). Used by seeding.
	InsertIgnore(scenes []models.SceneContext) error

	// Count returns the number of stored records.
	Count() (int, error)
}
