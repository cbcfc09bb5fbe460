package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PromptForge/app/models"
	"github.com/ManuelReschke/PromptForge/internal/pkg/entitlements"
)

// OrgMetadataKey is the subscription metadata key that carries the org id.
const OrgMetadataKey = "org_id"

// Telemetry receives one record per handled delivery. Implementations must
// not block; the service calls them outside the request path.
type Telemetry interface {
	RecordWebhook(ctx context.Context, eventType string, outcome Outcome, duration time.Duration)
}

// Deps bundles the collaborators of a Service.
type Deps struct {
	Verifier  *Verifier
	Guard     *Guard
	Projector *Projector
	Repo      Repository
	Applier   *entitlements.Applier
	Telemetry Telemetry
}

// Service turns verified webhook deliveries into subscription and
// entitlement state.
type Service struct {
	verifier  *Verifier
	guard     *Guard
	projector *Projector
	repo      Repository
	applier   *entitlements.Applier
	telemetry Telemetry
}

// NewService creates a billing service from injected collaborators.
func NewService(d Deps) *Service {
	return &Service{
		verifier:  d.Verifier,
		guard:     d.Guard,
		projector: d.Projector,
		repo:      d.Repo,
		applier:   d.Applier,
		telemetry: d.Telemetry,
	}
}

// HandleWebhook verifies and processes one raw delivery. A
// *VerificationError means the delivery must be rejected; any other error
// is transient and the provider should retry.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (Result, error) {
	start := time.Now()

	ev, err := s.verifier.Verify(payload, signatureHeader)
	if err != nil {
		log.Warnf("[Billing] Rejected webhook delivery: %v", err)
		s.emit("", OutcomeRejected, start)
		return Result{Outcome: OutcomeRejected}, err
	}

	res, err := s.Process(ctx, ev)
	if err != nil {
		log.Errorf("[Billing] Failed to process event %s (%s): %v", ev.EventID(), ev.ProviderType(), err)
		s.emit(ev.ProviderType(), OutcomeFailed, start)
		return res, err
	}
	s.emit(ev.ProviderType(), res.Outcome, start)
	return res, nil
}

// Process applies a verified event at most once. The processed record is
// written only after every state change succeeded, so a failure anywhere
// leaves the event eligible for redelivery.
func (s *Service) Process(ctx context.Context, ev Event) (Result, error) {
	res := Result{EventID: ev.EventID(), EventType: ev.ProviderType()}

	done, err := s.guard.AlreadyProcessed(ctx, ev.EventID())
	if err != nil {
		return res, fmt.Errorf("check processed event %s: %w", ev.EventID(), err)
	}
	if done {
		log.Infof("[Billing] Event %s already processed, skipping", ev.EventID())
		res.Outcome = OutcomeDuplicate
		return res, nil
	}

	var outcome Outcome
	switch e := ev.(type) {
	case *SubscriptionEvent:
		outcome, res.OrgID, err = s.applySubscription(ctx, e)
	case *InvoiceEvent:
		outcome, res.OrgID, err = s.applyInvoice(ctx, e)
	default:
		outcome = OutcomeIgnored
	}
	if err != nil {
		return res, err
	}

	if err := s.guard.MarkProcessed(ctx, ev.EventID(), ev.ProviderType(), outcome); err != nil {
		return res, fmt.Errorf("mark event %s processed: %w", ev.EventID(), err)
	}
	res.Outcome = outcome
	return res, nil
}

func (s *Service) applySubscription(ctx context.Context, e *SubscriptionEvent) (Outcome, string, error) {
	orgID, err := s.resolveOrg(ctx, e.Subscription)
	if err != nil {
		return "", "", err
	}
	if orgID == "" {
		log.Warnf("[Billing] Event %s: subscription %s has no org_id metadata and no stored row", e.EventID(), e.Subscription.ID)
		return OutcomeUnresolvedOrg, "", nil
	}

	proj := s.projector.Project(e, orgID)

	// A created event may switch the org to a new subscription. Updates and
	// cancels for any other subscription than the live one are late.
	if proj.Fallback || e.Type() == EventSubscriptionUpdated {
		stale, err := s.isSuperseded(ctx, proj.Subscription)
		if err != nil {
			return "", orgID, err
		}
		if stale {
			log.Infof("[Billing] Event %s: ignoring %s of superseded subscription %s for org %s", e.EventID(), e.Type(), e.Subscription.ID, orgID)
			return OutcomeStale, orgID, nil
		}
	}

	sub := proj.Subscription
	if err := s.repo.UpsertSubscription(ctx, &sub, proj.Plan.Resolved); err != nil {
		return "", orgID, fmt.Errorf("upsert subscription for org %s: %w", orgID, err)
	}

	if !proj.Plan.Resolved {
		log.Warnf("[Billing] Event %s: unknown price %q on subscription %s, entitlements of org %s left unchanged",
			e.EventID(), e.Subscription.PriceID, e.Subscription.ID, orgID)
		return OutcomeUnresolvedPrice, orgID, nil
	}

	if proj.Fallback {
		_, err = s.applier.ApplyFallback(ctx, orgID)
	} else {
		_, err = s.applier.Apply(ctx, orgID, proj.Plan.Code, proj.Seats)
	}
	if err != nil {
		return "", orgID, fmt.Errorf("apply entitlements for org %s: %w", orgID, err)
	}
	log.Infof("[Billing] Event %s: org %s is %s on plan %s", e.EventID(), orgID, sub.Status, proj.Plan.Code)
	return OutcomeApplied, orgID, nil
}

func (s *Service) applyInvoice(ctx context.Context, e *InvoiceEvent) (Outcome, string, error) {
	if e.SubscriptionID == "" {
		return OutcomeIgnored, "", nil
	}

	sub, err := s.repo.FindSubscriptionByProviderID(ctx, e.SubscriptionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[Billing] Event %s: no stored subscription %s for invoice %s", e.EventID(), e.SubscriptionID, e.InvoiceID)
		return OutcomeUnresolvedOrg, "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("find subscription %s: %w", e.SubscriptionID, err)
	}

	next := invoiceTransition(sub.Status, e.Type())
	if next == sub.Status {
		return OutcomeIgnored, sub.OrgID, nil
	}

	occurred := e.OccurredAt()
	sub.Status = next
	sub.LastEventID = e.EventID()
	sub.LastEventAt = &occurred
	if err := s.repo.UpsertSubscription(ctx, sub, false); err != nil {
		return "", sub.OrgID, fmt.Errorf("update subscription status for org %s: %w", sub.OrgID, err)
	}

	if sub.PlanCode == "" {
		return OutcomeUnresolvedPrice, sub.OrgID, nil
	}
	if _, err := s.applier.Apply(ctx, sub.OrgID, sub.PlanCode, sub.Seats); err != nil {
		return "", sub.OrgID, fmt.Errorf("apply entitlements for org %s: %w", sub.OrgID, err)
	}
	log.Infof("[Billing] Event %s: org %s moved to %s", e.EventID(), sub.OrgID, next)
	return OutcomeApplied, sub.OrgID, nil
}

// invoiceTransition only moves between active and past_due. Trials and
// canceled subscriptions are never touched by payment events.
func invoiceTransition(status string, kind EventType) string {
	switch {
	case kind == EventInvoicePaymentFailed && status == models.BillingStatusActive:
		return models.BillingStatusPastDue
	case kind == EventInvoicePaymentSucceeded && status == models.BillingStatusPastDue:
		return models.BillingStatusActive
	default:
		return status
	}
}

// resolveOrg prefers the org id in subscription metadata and falls back to
// the row that already tracks the provider subscription.
func (s *Service) resolveOrg(ctx context.Context, snap SubscriptionSnapshot) (string, error) {
	if orgID := strings.TrimSpace(snap.Metadata[OrgMetadataKey]); orgID != "" {
		return orgID, nil
	}
	sub, err := s.repo.FindSubscriptionByProviderID(ctx, snap.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find subscription %s: %w", snap.ID, err)
	}
	return sub.OrgID, nil
}

// isSuperseded reports whether incoming targets a subscription the org has
// already replaced with another live one.
func (s *Service) isSuperseded(ctx context.Context, incoming models.BillingSubscription) (bool, error) {
	current, err := s.repo.FindSubscriptionByOrg(ctx, incoming.OrgID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find subscription for org %s: %w", incoming.OrgID, err)
	}
	return current.ProviderSubscriptionID != incoming.ProviderSubscriptionID && current.IsEntitling(), nil
}

func (s *Service) emit(eventType string, outcome Outcome, start time.Time) {
	if s.telemetry == nil {
		return
	}
	d := time.Since(start)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.telemetry.RecordWebhook(ctx, eventType, outcome, d)
	}()
}
