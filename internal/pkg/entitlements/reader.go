package entitlements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix  = "entitlements:org:"
	genKeySuffix    = ":gen"
	DefaultCacheTTL = 5 * time.Minute
)

// errGenerationMoved aborts a cache fill that raced with a write.
var errGenerationMoved = errors.New("entitlement generation moved")

// Reader serves entitlement lookups for the rest of the application.
// Results are cached in Redis when a client is configured.
type Reader struct {
	catalog *Catalog
	store   Store
	client  *redis.Client
	ttl     time.Duration
}

// NewReader creates a reader. client may be nil to disable caching.
func NewReader(catalog *Catalog, store Store, client *redis.Client) *Reader {
	return &Reader{
		catalog: catalog,
		store:   store,
		client:  client,
		ttl:     DefaultCacheTTL,
	}
}

// Entitlements returns the stored set of an org. Orgs without a stored set
// resolve to the default plan.
func (r *Reader) Entitlements(ctx context.Context, orgID string) (Set, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return Set{}, errors.New("org_id is required")
	}

	if set, ok := r.fromCache(ctx, orgID); ok {
		return set, nil
	}

	// The generation is read before the rows so a write that lands in
	// between keeps the rows we read out of the cache.
	gen, genOK := r.generation(ctx, orgID)

	rows, err := r.store.ListEntitlements(ctx, orgID)
	if err != nil {
		return Set{}, err
	}
	set, ok := SetFromRows(rows)
	if !ok {
		set = r.catalog.Default(1)
	}

	if genOK {
		r.toCache(ctx, orgID, set, gen)
	}
	return set, nil
}

// HasEntitlement reports whether the org is granted capability.
func (r *Reader) HasEntitlement(ctx context.Context, orgID, capability string) (bool, error) {
	set, err := r.Entitlements(ctx, orgID)
	if err != nil {
		return false, err
	}
	return set.Allows(strings.TrimSpace(capability)), nil
}

// Invalidate bumps the org's cache generation and drops its cached set.
// Reads that started before the bump can no longer fill the cache.
func (r *Reader) Invalidate(ctx context.Context, orgID string) error {
	if r.client == nil {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, cacheKeyPrefix+orgID+genKeySuffix)
		p.Del(ctx, cacheKeyPrefix+orgID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate entitlement cache for org %s: %w", orgID, err)
	}
	return nil
}

func (r *Reader) generation(ctx context.Context, orgID string) (int64, bool) {
	if r.client == nil {
		return 0, false
	}
	gen, err := r.client.Get(ctx, cacheKeyPrefix+orgID+genKeySuffix).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, true
	case err != nil:
		log.Warnf("[Entitlements] Cache generation read failed for org %s: %v", orgID, err)
		return 0, false
	}
	return gen, true
}

func (r *Reader) fromCache(ctx context.Context, orgID string) (Set, bool) {
	if r.client == nil {
		return Set{}, false
	}
	raw, err := r.client.Get(ctx, cacheKeyPrefix+orgID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("[Entitlements] Cache read failed for org %s: %v", orgID, err)
		}
		return Set{}, false
	}
	var set Set
	if err := json.Unmarshal(raw, &set); err != nil {
		return Set{}, false
	}
	return set, true
}

// toCache stores set only while the org's generation still equals gen.
func (r *Reader) toCache(ctx context.Context, orgID string, set Set, gen int64) {
	raw, err := json.Marshal(set)
	if err != nil {
		return
	}
	genKey := cacheKeyPrefix + orgID + genKeySuffix
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errGenerationMoved
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, cacheKeyPrefix+orgID, raw, r.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errGenerationMoved), errors.Is(err, redis.TxFailedErr):
		log.Debugf("[Entitlements] Skipped cache fill for org %s: set changed during read", orgID)
	default:
		log.Warnf("[Entitlements] Cache write failed for org %s: %v", orgID, err)
	}
}
