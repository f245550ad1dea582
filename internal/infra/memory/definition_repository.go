package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"dental-quest-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DefinitionLoader fetches assessment definitions from a backing store.
type DefinitionLoader interface {
	LoadDefinition(ctx context.Context, assessmentID string) (domain.Definition, error)
	ListDefinitions(ctx context.Context) ([]domain.Definition, error)
}

// DefinitionRepository caches definitions with TTL to avoid repeated DB hits.
type DefinitionRepository struct {
	loader DefinitionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedDefinition
}

type cachedDefinition struct {
	def       domain.Definition
	expiresAt time.Time
}

func NewDefinitionRepository(loader DefinitionLoader, ttl time.Duration) *DefinitionRepository {
	return &DefinitionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedDefinition),
	}
}

func (r *DefinitionRepository) GetDefinition(ctx context.Context, assessmentID string) (domain.Definition, error) {
	if def, ok := r.cached(assessmentID); ok {
		return def, nil
	}

	result, err, _ := r.sf.Do(assessmentID, func() (interface{}, error) {
		if def, ok := r.cached(assessmentID); ok {
			return def, nil
		}

		def, err := r.loader.LoadDefinition(ctx, assessmentID)
		if err != nil {
			return domain.Definition{}, err
		}

		r.mu.Lock()
		r.cache[assessmentID] = cachedDefinition{
			def:       def,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return def, nil
	})
	if err != nil {
		return domain.Definition{}, err
	}
	return result.(domain.Definition), nil
}

// ListDefinitions always reads through to the loader.
func (r *DefinitionRepository) ListDefinitions(ctx context.Context) ([]domain.Definition, error) {
	return r.loader.ListDefinitions(ctx)
}

func (r *DefinitionRepository) cached(assessmentID string) (domain.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[assessmentID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Definition{}, false
	}
	return entry.def, true
}

func (r *DefinitionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticDefinitionLoader is a loader backed by an in-memory map (catalog, tests, demos).
type StaticDefinitionLoader struct {
	defs map[string]domain.Definition
}

func NewStaticDefinitionLoader(defs map[string]domain.Definition) *StaticDefinitionLoader {
	return &StaticDefinitionLoader{defs: defs}
}

func (l *StaticDefinitionLoader) LoadDefinition(_ context.Context, assessmentID string) (domain.Definition, error) {
	if def, ok := l.defs[assessmentID]; ok {
		return def, nil
	}
	return domain.Definition{}, domain.ErrAssessmentNotFound
}

func (l *StaticDefinitionLoader) ListDefinitions(_ context.Context) ([]domain.Definition, error) {
	out := make([]domain.Definition, 0, len(l.defs))
	for _, def := range l.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
