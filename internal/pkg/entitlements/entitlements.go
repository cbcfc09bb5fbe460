package entitlements

import (
	"sort"
	"strings"

	"github.com/ManuelReschke/PromptForge/app/models"
)

type Plan string

const (
	PlanPilot      Plan = "pilot"
	PlanCreator    Plan = "creator"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// NormalizePlan lower-cases and trims a plan code.
func NormalizePlan(plan string) Plan {
	return Plan(strings.ToLower(strings.TrimSpace(plan)))
}

// Set is the complete entitlement state of an organization, derived from a
// plan code and a seat count.
type Set struct {
	PlanCode string           `json:"plan_code"`
	Seats    int              `json:"seats"`
	Flags    map[string]bool  `json:"flags"`
	Limits   map[string]int64 `json:"limits"`
}

// Allows reports whether a capability is granted. Flags must be true,
// limits must be non-zero (unlimited counts as granted).
func (s Set) Allows(capability string) bool {
	if on, ok := s.Flags[capability]; ok {
		return on
	}
	if v, ok := s.Limits[capability]; ok {
		return v != 0
	}
	return false
}

// Limit returns the numeric limit for a capability. -1 means unlimited.
func (s Set) Limit(capability string) (int64, bool) {
	v, ok := s.Limits[capability]
	return v, ok
}

// IsEmpty reports whether the set carries no capabilities at all.
func (s Set) IsEmpty() bool {
	return len(s.Flags) == 0 && len(s.Limits) == 0
}

// Rows converts the set into storage rows for orgID, ordered by capability.
func (s Set) Rows(orgID string) []models.OrgEntitlement {
	rows := make([]models.OrgEntitlement, 0, len(s.Flags)+len(s.Limits))
	for name, on := range s.Flags {
		rows = append(rows, models.OrgEntitlement{
			OrgID:      orgID,
			Capability: name,
			Kind:       models.EntitlementKindFlag,
			Enabled:    on,
			PlanCode:   s.PlanCode,
			Seats:      s.Seats,
		})
	}
	for name, v := range s.Limits {
		rows = append(rows, models.OrgEntitlement{
			OrgID:      orgID,
			Capability: name,
			Kind:       models.EntitlementKindLimit,
			Enabled:    v != 0,
			LimitValue: v,
			PlanCode:   s.PlanCode,
			Seats:      s.Seats,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Capability < rows[j].Capability })
	return rows
}

// SetFromRows rebuilds a set from stored rows. ok is false when rows is empty.
func SetFromRows(rows []models.OrgEntitlement) (Set, bool) {
	if len(rows) == 0 {
		return Set{}, false
	}
	s := Set{
		PlanCode: rows[0].PlanCode,
		Seats:    rows[0].Seats,
		Flags:    make(map[string]bool),
		Limits:   make(map[string]int64),
	}
	for _, row := range rows {
		switch row.Kind {
		case models.EntitlementKindLimit:
			s.Limits[row.Capability] = row.LimitValue
		default:
			s.Flags[row.Capability] = row.Enabled
		}
	}
	return s, true
}

func normalizeSeats(seats int) int {
	if seats < 1 {
		return 1
	}
	return seats
}
