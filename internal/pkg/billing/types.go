package billing

// Outcome describes what processing did with a verified event.
type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeIgnored         Outcome = "ignored"
	OutcomeUnresolvedPrice Outcome = "unresolved_price"
	OutcomeUnresolvedOrg   Outcome = "unresolved_org"
	OutcomeStale           Outcome = "stale"
	OutcomeRejected        Outcome = "rejected"
	OutcomeFailed          Outcome = "failed"
)

// Result is returned for every handled delivery.
type Result struct {
	EventID   string  `json:"event_id,omitempty"`
	EventType string  `json:"event_type,omitempty"`
	OrgID     string  `json:"org_id,omitempty"`
	Outcome   Outcome `json:"outcome"`
}
