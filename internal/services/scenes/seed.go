package scenes

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"robodash/internal/models"
)

// fallbackScenes keeps the demo-critical scenes available when the taxonomy
// file is missing or unreadable, so the table is never left empty.
var fallbackScenes = []models.SceneContext{
	{Name: "living_room", Classes: []string{"person", "chair", "couch", "tv", "potted plant", "cat", "dog"}},
	{Name: "bedroom", Classes: []string{"person", "bed", "book", "clock", "cell phone"}},
	{Name: "kitchen", Classes: []string{"person", "bottle", "cup", "bowl", "sink", "oven", "refrigerator"}},
	{Name: "office", Classes: []string{"person", "chair", "laptop", "mouse", "keyboard", "cell phone"}},
}

// EnsureSeeded populates the scene table from the taxonomy CSV on first run
// (table empty). supported is the class set of the startup detector; nil
// means the stock COCO set.
func (r *Resolver) EnsureSeeded(csvPath string, supported []string) error {
	count, err := r.repo.Count()
	if err != nil {
		return fmt.Errorf("failed to check scene table: %w", err)
	}
	if count > 0 {
		return nil
	}
	return r.Seed(csvPath, supported)
}

// Seed derives a vocabulary for every scene in the taxonomy CSV and inserts
// the raw and normalized names as separate keys (duplicates ignored, first
// write wins). When the CSV cannot be read, the hand-authored fallback set is
// inserted instead.
func (r *Resolver) Seed(csvPath string, supported []string) error {
	records, err := r.readTaxonomy(csvPath, supported)
	if err != nil {
		r.logger.Warning("Scene taxonomy unavailable (%v) - seeding fallback scenes", err)
		records = r.fallbackRecords()
	}

	if err := r.repo.InsertIgnore(records); err != nil {
		return fmt.Errorf("failed to seed scene table: %w", err)
	}

	r.cache.Purge()
	r.logger.Info("🌱 Seeded %d scene mappings", len(records))
	return nil
}

func (r *Resolver) readTaxonomy(csvPath string, supported []string) ([]models.SceneContext, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", csvPath, err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("taxonomy %s has no data rows", csvPath)
	}

	var records []models.SceneContext
	for _, row := range rows[1:] { // skip header
		if len(row) == 0 {
			continue
		}
		// Taxonomy rows are category paths or plain names: "/a/airfield"
		// or "airfield".
		raw := strings.TrimSpace(row[0])
		if raw == "" {
			continue
		}

		classes := DeriveVocabulary(raw, supported)
		records = append(records, models.SceneContext{Name: raw, Classes: classes})

		if normalized := Normalize(raw); normalized != raw {
			records = append(records, models.SceneContext{Name: normalized, Classes: classes})
		}
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("taxonomy %s yielded no scenes", csvPath)
	}
	return records, nil
}

func (r *Resolver) fallbackRecords() []models.SceneContext {
	records := make([]models.SceneContext, 0, 2*len(fallbackScenes))
	for _, scene := range fallbackScenes {
		records = append(records, scene)
		if normalized := Normalize(scene.Name); normalized != scene.Name {
			records = append(records, models.SceneContext{
				Name:    normalized,
				Classes: scene.Classes,
			})
		}
	}
	return records
}
