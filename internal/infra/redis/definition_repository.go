package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"dental-quest-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefinitionLoader fetches assessment definitions from a backing store.
type DefinitionLoader interface {
	LoadDefinition(ctx context.Context, assessmentID string) (domain.Definition, error)
	ListDefinitions(ctx context.Context) ([]domain.Definition, error)
}

// DefinitionRepository caches definitions in Redis and falls back to a loader on cache miss.
// Definitions are stored as JSON: SET assessment:{id}:definition {json} EX ttl
type DefinitionRepository struct {
	client *redis.Client
	loader DefinitionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewDefinitionRepository(client *redis.Client, loader DefinitionLoader, ttl time.Duration) *DefinitionRepository {
	return &DefinitionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *DefinitionRepository) GetDefinition(ctx context.Context, assessmentID string) (domain.Definition, error) {
	if def, ok := r.fromCache(ctx, assessmentID); ok {
		return def, nil
	}

	result, err, _ := r.sf.Do(assessmentID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if def, ok := r.fromCache(ctx, assessmentID); ok {
			return def, nil
		}

		def, err := r.loader.LoadDefinition(ctx, assessmentID)
		if err != nil {
			return domain.Definition{}, err
		}

		if raw, err := json.Marshal(def); err == nil {
			// best-effort; a failed write only costs a reload
			_ = r.client.Set(ctx, r.key(assessmentID), raw, r.ttlWithJitter()).Err()
		}
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

// Invalidate drops a cached definition, e.g. after reseeding content.
func (r *DefinitionRepository) Invalidate(ctx context.Context, assessmentID string) error {
	return r.client.Del(ctx, r.key(assessmentID)).Err()
}

func (r *DefinitionRepository) fromCache(ctx context.Context, assessmentID string) (domain.Definition, bool) {
	raw, err := r.client.Get(ctx, r.key(assessmentID)).Bytes()
	if err != nil {
		// redis.Nil on a miss; other errors fall back to the loader too
		return domain.Definition{}, false
	}
	var def domain.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return domain.Definition{}, false
	}
	return def, true
}

func (r *DefinitionRepository) key(assessmentID string) string {
	return "assessment:" + assessmentID + ":definition"
}

func (r *DefinitionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
