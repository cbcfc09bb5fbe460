package billing

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PromptForge/app/models"
)

const (
	processedKeyPrefix = "billing:events:processed:"
	// ProcessedCacheTTL bounds how long Redis remembers a processed event.
	// The database record is the authority; the cache only saves a query.
	ProcessedCacheTTL = 72 * time.Hour
)

type eventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, event *models.BillingProcessedEvent) error
}

// Guard answers "was this event already fully applied" and records that it was.
type Guard struct {
	ledger eventLedger
	client *redis.Client
}

// NewGuard creates a guard. client may be nil.
func NewGuard(ledger eventLedger, client *redis.Client) *Guard {
	return &Guard{ledger: ledger, client: client}
}

// AlreadyProcessed reports whether eventID has a processed record.
// Redis errors fall through to the database.
func (g *Guard) AlreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	if g.client != nil {
		n, err := g.client.Exists(ctx, processedKeyPrefix+eventID).Result()
		if err != nil {
			log.Warnf("[Billing] Redis lookup for event %s failed: %v", eventID, err)
		} else if n > 0 {
			return true, nil
		}
	}

	done, err := g.ledger.IsEventProcessed(ctx, eventID)
	if err != nil {
		return false, err
	}
	if done {
		g.remember(ctx, eventID)
	}
	return done, nil
}

// MarkProcessed writes the processed record. Losing an insert race to a
// concurrent delivery of the same event is not an error.
func (g *Guard) MarkProcessed(ctx context.Context, eventID, eventType string, outcome Outcome) error {
	err := g.ledger.MarkEventProcessed(ctx, &models.BillingProcessedEvent{
		EventID:     eventID,
		EventType:   eventType,
		Outcome:     string(outcome),
		ProcessedAt: time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, ErrEventAlreadyProcessed) {
		return err
	}
	if err != nil {
		log.Infof("[Billing] Event %s was marked processed by a concurrent delivery", eventID)
	}
	g.remember(ctx, eventID)
	return nil
}

func (g *Guard) remember(ctx context.Context, eventID string) {
	if g.client == nil {
		return
	}
	if err := g.client.Set(ctx, processedKeyPrefix+eventID, 1, ProcessedCacheTTL).Err(); err != nil {
		log.Warnf("[Billing] Failed to cache processed event %s: %v", eventID, err)
	}
}
