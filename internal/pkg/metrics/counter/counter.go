package counter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	webhookOutcomesKey = "billing:counters:webhook_outcomes"
	webhookTypesKey    = "billing:counters:webhook_types"
)

// Store keeps webhook outcome counters in Redis hashes.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Count is one counter field and its value.
type Count struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Stats is a point-in-time copy of the counters, sorted by name.
type Stats struct {
	Outcomes   []Count `json:"outcomes"`
	EventTypes []Count `json:"event_types"`
}

// AddWebhookOutcome increments the outcome and event type counters.
func (s *Store) AddWebhookOutcome(ctx context.Context, eventType, outcome string) error {
	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, webhookOutcomesKey, outcome, 1)
	if eventType = strings.TrimSpace(eventType); eventType != "" {
		pipe.HIncrBy(ctx, webhookTypesKey, eventType, 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Snapshot reads the counters without resetting them.
func (s *Store) Snapshot(ctx context.Context) (Stats, error) {
	outcomes, err := s.client.HGetAll(ctx, webhookOutcomesKey).Result()
	if err != nil {
		return Stats{}, err
	}
	types, err := s.client.HGetAll(ctx, webhookTypesKey).Result()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Outcomes: toCounts(outcomes), EventTypes: toCounts(types)}, nil
}

// Drain returns the counters and resets them. Each hash is renamed to a
// temporary key first so increments that race the drain land in a fresh hash.
func (s *Store) Drain(ctx context.Context) (Stats, error) {
	outcomes, err := s.drainHash(ctx, webhookOutcomesKey)
	if err != nil {
		return Stats{}, err
	}
	types, err := s.drainHash(ctx, webhookTypesKey)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Outcomes: outcomes, EventTypes: types}, nil
}

func (s *Store) drainHash(ctx context.Context, redisKey string) ([]Count, error) {
	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := s.client.Rename(ctx, redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to drain
		if errors.Is(err, redis.Nil) || strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return []Count{}, nil
		}
		return nil, err
	}
	defer s.client.Del(ctx, tmpKey)

	data, err := s.client.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return nil, err
	}
	return toCounts(data), nil
}

func toCounts(data map[string]string) []Count {
	out := make([]Count, 0, len(data))
	for name, raw := range data {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v == 0 {
			continue
		}
		out = append(out, Count{Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
