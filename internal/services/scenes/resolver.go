package scenes

import (
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"robodash/internal/logger"
	"robodash/internal/models"
	"robodash/internal/repository"
)

const resolverCacheSize = 256

// ErrNoClasses is returned when a save is attempted with an empty vocabulary.
var ErrNoClasses = errors.New("classes must not be empty")

// Resolver maps an operator-supplied scene name to the scene context (class
// vocabulary and model id) that should become active. Lookups go exact ->
// normalized -> fuzzy -> default; an unknown scene is never an error, it
// resolves to the default context.
//
// Resolutions are cached in an LRU in front of the fuzzy full-table scan;
// the cache is purged on every update so writers never race stale reads.
type Resolver struct {
	repo         repository.SceneRepository
	cache        *lru.Cache[string, models.SceneContext]
	defaultModel string
	logger       *logger.Logger
}

// NewResolver creates a resolver over the persisted scene table.
// defaultModel fills records saved without an explicit model and the
// default fallback context.
func NewResolver(repo repository.SceneRepository, defaultModel string, log *logger.Logger) (*Resolver, error) {
	cache, err := lru.New[string, models.SceneContext](resolverCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver cache: %w", err)
	}
	return &Resolver{
		repo:         repo,
		cache:        cache,
		defaultModel: defaultModel,
		logger:       log,
	}, nil
}

// Default returns the context used when nothing matches: the base class only,
// on the default model.
func (r *Resolver) Default(name string) models.SceneContext {
	return models.SceneContext{
		Name:    name,
		Classes: []string{baseClass},
		Model:   r.defaultModel,
	}
}

// Resolve returns the scene context for name. The error is non-nil only when
// the underlying store fails; a scene with no record resolves to the default
// context, never an error.
//
// Fuzzy fallback matches a record when either name contains the other as a
// substring. When several records match, the longest stored name wins, with
// ties broken lexicographically, so iteration order never decides.
func (r *Resolver) Resolve(name string) (models.SceneContext, error) {
	if cached, ok := r.cache.Get(name); ok {
		return cached, nil
	}

	scene, err := r.lookup(name)
	if err != nil {
		return models.SceneContext{}, err
	}

	if scene == nil {
		def := r.Default(name)
		r.cache.Add(name, def)
		return def, nil
	}

	resolved := *scene
	resolved.Name = name
	if resolved.Model == "" {
		resolved.Model = r.defaultModel
	}
	r.cache.Add(name, resolved)
	return resolved, nil
}

func (r *Resolver) lookup(name string) (*models.SceneContext, error) {
	// 1. Exact match on the raw name.
	scene, err := r.repo.Get(name)
	if err != nil {
		return nil, fmt.Errorf("scene lookup %q: %w", name, err)
	}
	if scene != nil {
		return scene, nil
	}

	// 2. Exact match on the normalized form.
	if normalized := Normalize(name); normalized != name {
		scene, err = r.repo.Get(normalized)
		if err != nil {
			return nil, fmt.Errorf("scene lookup %q: %w", normalized, err)
		}
		if scene != nil {
			return scene, nil
		}
	}

	// 3. Fuzzy substring scan over the full table.
	all, err := r.repo.All()
	if err != nil {
		return nil, fmt.Errorf("scene scan: %w", err)
	}

	query := strings.ToLower(name)
	normalized := Normalize(name)

	var best *models.SceneContext
	for i := range all {
		rec := strings.ToLower(all[i].Name)
		if !fuzzyMatch(query, rec) && !fuzzyMatch(normalized, rec) {
			continue
		}
		if best == nil || betterMatch(all[i].Name, best.Name) {
			best = &all[i]
		}
	}
	return best, nil
}

func fuzzyMatch(query, record string) bool {
	if query == "" || record == "" {
		return false
	}
	return strings.Contains(query, record) || strings.Contains(record, query)
}

// betterMatch implements the deterministic tie-break: longest stored name
// first, then lexicographic order.
func betterMatch(candidate, current string) bool {
	if len(candidate) != len(current) {
		return len(candidate) > len(current)
	}
	return candidate < current
}

// UpdateScene upserts a scene record: inserted if absent, otherwise classes
// (and model, when non-empty) are overwritten. Safe to call concurrently
// with Resolve.
func (r *Resolver) UpdateScene(name string, classes []string, model string) error {
	if name == "" {
		return fmt.Errorf("scene name must not be empty")
	}
	if len(classes) == 0 {
		return fmt.Errorf("scene %q: %w", name, ErrNoClasses)
	}

	err := r.repo.Upsert(models.SceneContext{
		Name:    name,
		Classes: classes,
		Model:   model,
	})
	if err != nil {
		return err
	}

	// Drop every cached resolution: a new record can change fuzzy results
	// for names that never matched it before.
	r.cache.Purge()
	return nil
}

// All lists every stored scene record.
func (r *Resolver) All() ([]models.SceneContext, error) {
	return r.repo.All()
}
