package billing

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ManuelReschke/PromptForge/app/models"
	"github.com/ManuelReschke/PromptForge/internal/pkg/entitlements"
)

//go:embed prices.yaml
var pricesYAML []byte

// PlanResolution is the result of mapping a provider price to a plan.
// Resolved is false for unknown prices; Code is empty in that case.
type PlanResolution struct {
	Code     string
	Resolved bool
}

type priceTable struct {
	Prices map[string]string `yaml:"prices" validate:"required,min=1,dive,keys,required,endkeys,required"`
}

// PriceResolver maps provider price ids to internal plan codes.
type PriceResolver struct {
	prices map[string]string
}

// DefaultPriceResolver loads the price table shipped with the binary.
func DefaultPriceResolver(catalog *entitlements.Catalog) (*PriceResolver, error) {
	return NewPriceResolver(pricesYAML, catalog)
}

// NewPriceResolver parses a price table. Every target plan must exist in
// catalog, so a resolved plan always has an entitlement set.
func NewPriceResolver(data []byte, catalog *entitlements.Catalog) (*PriceResolver, error) {
	var t priceTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode price table: %w", err)
	}
	if err := validator.New().Struct(&t); err != nil {
		return nil, fmt.Errorf("invalid price table: %w", err)
	}

	prices := make(map[string]string, len(t.Prices))
	for priceID, plan := range t.Prices {
		code := string(entitlements.NormalizePlan(plan))
		if catalog != nil && !catalog.HasPlan(code) {
			return nil, fmt.Errorf("invalid price table: price %q maps to unknown plan %q", priceID, plan)
		}
		prices[strings.TrimSpace(priceID)] = code
	}
	return &PriceResolver{prices: prices}, nil
}

// Resolve returns the plan for priceID. Lookups are exact; no prefix or
// case folding is applied to provider ids.
func (r *PriceResolver) Resolve(priceID string) PlanResolution {
	code, ok := r.prices[strings.TrimSpace(priceID)]
	if !ok {
		return PlanResolution{}
	}
	return PlanResolution{Code: code, Resolved: true}
}

// normalizeStatus folds a provider subscription status into the four
// statuses stored locally.
func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "", "active":
		return models.BillingStatusActive
	case "trialing":
		return models.BillingStatusTrialing
	case "canceled", "cancelled", "incomplete_expired", "paused", "ended":
		return models.BillingStatusCanceled
	default:
		// past_due, unpaid, incomplete and anything new from the provider.
		return models.BillingStatusPastDue
	}
}
