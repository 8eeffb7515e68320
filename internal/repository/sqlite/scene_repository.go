package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"robodash/internal/models"
)

// SceneRepository implements repository.SceneRepository for SQLite.
// Class vocabularies are stored as JSON arrays, matching the order they
// were derived in.
type SceneRepository struct {
	db *DB
}

// NewSceneRepository creates a new SQLite scene context repository.
func NewSceneRepository(db *DB) *SceneRepository {
	return &SceneRepository{db: db}
}

// Get returns the record for an exact scene name, or nil if absent.
func (r *SceneRepository) Get(name string) (*models.SceneContext, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`
		SELECT scene_name, classes, model_id FROM scene_context WHERE scene_name = ?
	`, name)

	scene, err := scanScene(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scene %q: %w", name, err)
	}
	return scene, nil
}

// All returns every stored record ordered by scene name.
func (r *SceneRepository) All() ([]models.SceneContext, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT scene_name, classes, model_id FROM scene_context ORDER BY scene_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenes: %w", err)
	}
	defer rows.Close()

	var scenes []models.SceneContext
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		scenes = append(scenes, *scene)
	}

	return scenes, rows.Err()
}

// Upsert inserts the record or overwrites classes (and model, when non-empty)
// for an existing name.
func (r *SceneRepository) Upsert(scene models.SceneContext) error {
	r.db.Lock()
	defer r.db.Unlock()

	classes, err := json.Marshal(scene.Classes)
	if err != nil {
		return fmt.Errorf("failed to encode classes: %w", err)
	}

	if scene.Model != "" {
		_, err = r.db.Conn().Exec(`
			INSERT INTO scene_context (scene_name, classes, model_id)
			VALUES (?, ?, ?)
			ON CONFLICT(scene_name) DO UPDATE SET
				classes = excluded.classes,
				model_id = excluded.model_id,
				updated_at = CURRENT_TIMESTAMP
		`, scene.Name, string(classes), scene.Model)
	} else {
		_, err = r.db.Conn().Exec(`
			INSERT INTO scene_context (scene_name, classes, model_id)
			VALUES (?, ?, '')
			ON CONFLICT(scene_name) DO UPDATE SET
				classes = excluded.classes,
				updated_at = CURRENT_TIMESTAMP
		`, scene.Name, string(classes))
	}
	if err != nil {
		return fmt.Errorf("failed to upsert scene %q: %w", scene.Name, err)
	}

	return nil
}

// InsertIgnore inserts records in one transaction, skipping names that already
// exist.
func (r *SceneRepository) InsertIgnore(scenes []models.SceneContext) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO scene_context (scene_name, classes, model_id)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, scene := range scenes {
		classes, err := json.Marshal(scene.Classes)
		if err != nil {
			return fmt.Errorf("failed to encode classes for %q: %w", scene.Name, err)
		}
		if _, err := stmt.Exec(scene.Name, string(classes), scene.Model); err != nil {
			return fmt.Errorf("failed to insert scene %q: %w", scene.Name, err)
		}
	}

	return tx.Commit()
}

// Count returns the number of stored records.
func (r *SceneRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM scene_context`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count scenes: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScene(row rowScanner) (*models.SceneContext, error) {
	var scene models.SceneContext
	var classes string

	if err := row.Scan(&scene.Name, &classes, &scene.Model); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(classes), &scene.Classes); err != nil {
		return nil, fmt.Errorf("corrupt classes for %q: %w", scene.Name, err)
	}
	return &scene, nil
}
