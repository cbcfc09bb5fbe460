package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
)

// EventType is the provider-neutral kind of a billing event.
type EventType string

const (
	EventSubscriptionCreated     EventType = "subscription.created"
	EventSubscriptionUpdated     EventType = "subscription.updated"
	EventSubscriptionDeleted     EventType = "subscription.deleted"
	EventInvoicePaymentFailed    EventType = "invoice.payment_failed"
	EventInvoicePaymentSucceeded EventType = "invoice.payment_succeeded"
	EventUnknown                 EventType = "unknown"
)

var stripeEventTypes = map[stripe.EventType]EventType{
	stripe.EventTypeCustomerSubscriptionCreated:      EventSubscriptionCreated,
	stripe.EventTypeCustomerSubscriptionUpdated:      EventSubscriptionUpdated,
	stripe.EventTypeCustomerSubscriptionTrialWillEnd: EventSubscriptionUpdated,
	stripe.EventTypeCustomerSubscriptionPaused:       EventSubscriptionUpdated,
	stripe.EventTypeCustomerSubscriptionResumed:      EventSubscriptionUpdated,
	stripe.EventTypeCustomerSubscriptionDeleted:      EventSubscriptionDeleted,
	stripe.EventTypeInvoicePaymentFailed:             EventInvoicePaymentFailed,
	stripe.EventTypeInvoicePaymentSucceeded:          EventInvoicePaymentSucceeded,
	stripe.EventTypeInvoicePaid:                      EventInvoicePaymentSucceeded,
}

// Event is a verified provider event. The concrete type is one of
// *SubscriptionEvent, *InvoiceEvent or *UnknownEvent.
type Event interface {
	EventID() string
	Type() EventType
	ProviderType() string
	OccurredAt() time.Time
	isEvent()
}

type eventHeader struct {
	ID       string
	Kind     EventType
	RawType  string
	Occurred time.Time
}

func (h eventHeader) EventID() string       { return h.ID }
func (h eventHeader) Type() EventType       { return h.Kind }
func (h eventHeader) ProviderType() string  { return h.RawType }
func (h eventHeader) OccurredAt() time.Time { return h.Occurred }
func (eventHeader) isEvent()                {}

// SubscriptionSnapshot is the provider's current view of a subscription as
// carried by a subscription event.
type SubscriptionSnapshot struct {
	ID                string
	CustomerID        string
	ProviderStatus    string
	PriceID           string
	Quantity          *int64
	TrialEnd          *time.Time
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
	Metadata          map[string]string
}

// SubscriptionEvent carries a full subscription snapshot.
type SubscriptionEvent struct {
	eventHeader
	Subscription SubscriptionSnapshot
}

// InvoiceEvent reports a payment outcome for a subscription invoice.
type InvoiceEvent struct {
	eventHeader
	InvoiceID      string
	SubscriptionID string
	CustomerID     string
}

// UnknownEvent is any event type this service does not act on.
type UnknownEvent struct {
	eventHeader
}

// expandableID decodes a Stripe field that is either an id string or an
// expanded object with an "id" member.
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type stripeSubscriptionItem struct {
	Price struct {
		ID string `json:"id"`
	} `json:"price"`
	Plan struct {
		ID string `json:"id"`
	} `json:"plan"`
	Quantity           *int64 `json:"quantity"`
	CurrentPeriodStart *int64 `json:"current_period_start"`
	CurrentPeriodEnd   *int64 `json:"current_period_end"`
}

// stripeSubscriptionObject covers both the pre-2025 layout (period bounds on
// the subscription) and the newer one (period bounds on each item).
type stripeSubscriptionObject struct {
	ID                 string            `json:"id"`
	Customer           expandableID      `json:"customer"`
	Status             string            `json:"status"`
	Metadata           map[string]string `json:"metadata"`
	TrialEnd           *int64            `json:"trial_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart *int64            `json:"current_period_start"`
	CurrentPeriodEnd   *int64            `json:"current_period_end"`
	Items              struct {
		Data []stripeSubscriptionItem `json:"data"`
	} `json:"items"`
}

type stripeInvoiceObject struct {
	ID           string       `json:"id"`
	Customer     expandableID `json:"customer"`
	Subscription expandableID `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription expandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func decodeStripeEvent(ev stripe.Event) (Event, error) {
	header := eventHeader{
		ID:       strings.TrimSpace(ev.ID),
		RawType:  string(ev.Type),
		Occurred: time.Unix(ev.Created, 0).UTC(),
	}
	if header.ID == "" {
		return nil, errors.New("event id is missing")
	}

	kind, ok := stripeEventTypes[ev.Type]
	if !ok {
		header.Kind = EventUnknown
		return &UnknownEvent{eventHeader: header}, nil
	}
	header.Kind = kind

	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return nil, fmt.Errorf("event %s has no data object", header.ID)
	}

	switch kind {
	case EventInvoicePaymentFailed, EventInvoicePaymentSucceeded:
		var inv stripeInvoiceObject
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		subID := strings.TrimSpace(string(inv.Subscription))
		if subID == "" {
			subID = strings.TrimSpace(string(inv.Parent.SubscriptionDetails.Subscription))
		}
		return &InvoiceEvent{
			eventHeader:    header,
			InvoiceID:      strings.TrimSpace(inv.ID),
			SubscriptionID: subID,
			CustomerID:     strings.TrimSpace(string(inv.Customer)),
		}, nil
	default:
		var sub stripeSubscriptionObject
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		if strings.TrimSpace(sub.ID) == "" {
			return nil, fmt.Errorf("event %s: subscription id is missing", header.ID)
		}
		return &SubscriptionEvent{eventHeader: header, Subscription: sub.snapshot()}, nil
	}
}

func (s stripeSubscriptionObject) snapshot() SubscriptionSnapshot {
	snap := SubscriptionSnapshot{
		ID:                strings.TrimSpace(s.ID),
		CustomerID:        strings.TrimSpace(string(s.Customer)),
		ProviderStatus:    strings.ToLower(strings.TrimSpace(s.Status)),
		TrialEnd:          unixTime(s.TrialEnd),
		PeriodStart:       unixTime(s.CurrentPeriodStart),
		PeriodEnd:         unixTime(s.CurrentPeriodEnd),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Metadata:          s.Metadata,
	}
	if len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		snap.PriceID = strings.TrimSpace(item.Price.ID)
		if snap.PriceID == "" {
			snap.PriceID = strings.TrimSpace(item.Plan.ID)
		}
		snap.Quantity = item.Quantity
		if snap.PeriodStart == nil {
			snap.PeriodStart = unixTime(item.CurrentPeriodStart)
		}
		if snap.PeriodEnd == nil {
			snap.PeriodEnd = unixTime(item.CurrentPeriodEnd)
		}
	}
	return snap
}

func unixTime(ts *int64) *time.Time {
	if ts == nil || *ts <= 0 {
		return nil
	}
	t := time.Unix(*ts, 0).UTC()
	return &t
}
