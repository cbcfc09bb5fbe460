package entitlements

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ManuelReschke/PromptForge/app/models"
)

//go:embed catalog.yaml
var catalogYAML []byte

// ErrUnknownPlan is returned when a plan code is not part of the catalog.
var ErrUnknownPlan = errors.New("unknown plan code")

// LimitRule resolves to Base + PerSeat*seats, or unlimited.
type LimitRule struct {
	Base      int64 `yaml:"base" validate:"gte=0"`
	PerSeat   int64 `yaml:"per_seat" validate:"gte=0"`
	Unlimited bool  `yaml:"unlimited"`
}

// PlanRule lists the capabilities granted by one plan.
type PlanRule struct {
	Flags  map[string]bool      `yaml:"flags" validate:"required"`
	Limits map[string]LimitRule `yaml:"limits" validate:"dive"`
}

// Catalog is the static plan -> capability table.
type Catalog struct {
	DefaultPlan Plan              `yaml:"default_plan" validate:"required"`
	Plans       map[Plan]PlanRule `yaml:"plans" validate:"required,min=1,dive"`
}

// DefaultCatalog parses the catalog shipped with the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog decodes and validates a catalog document. Every plan must
// declare the same capability names so that switching plans never leaves a
// capability undefined.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode entitlement catalog: %w", err)
	}
	if err := validator.New().Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid entitlement catalog: %w", err)
	}

	c.DefaultPlan = NormalizePlan(string(c.DefaultPlan))
	plans := make(map[Plan]PlanRule, len(c.Plans))
	for code, rule := range c.Plans {
		plans[NormalizePlan(string(code))] = rule
	}
	c.Plans = plans

	if _, ok := c.Plans[c.DefaultPlan]; !ok {
		return nil, fmt.Errorf("invalid entitlement catalog: default plan %q is not defined", c.DefaultPlan)
	}

	want := c.Plans[c.DefaultPlan].capabilities()
	for code, rule := range c.Plans {
		got := rule.capabilities()
		if len(got) != len(want) {
			return nil, fmt.Errorf("invalid entitlement catalog: plan %q declares %d capabilities, default plan declares %d", code, len(got), len(want))
		}
		for name := range want {
			if _, ok := got[name]; !ok {
				return nil, fmt.Errorf("invalid entitlement catalog: plan %q is missing capability %q", code, name)
			}
		}
	}
	return &c, nil
}

func (r PlanRule) capabilities() map[string]struct{} {
	out := make(map[string]struct{}, len(r.Flags)+len(r.Limits))
	for name := range r.Flags {
		out[name] = struct{}{}
	}
	for name := range r.Limits {
		out[name] = struct{}{}
	}
	return out
}

// HasPlan reports whether code names a catalog plan.
func (c *Catalog) HasPlan(code string) bool {
	_, ok := c.Plans[NormalizePlan(code)]
	return ok
}

// PlanCodes returns the catalog plan codes in sorted order.
func (c *Catalog) PlanCodes() []string {
	out := make([]string, 0, len(c.Plans))
	for code := range c.Plans {
		out = append(out, string(code))
	}
	sort.Strings(out)
	return out
}

// Compute derives the entitlement set for a plan and seat count.
func (c *Catalog) Compute(plan string, seats int) (Set, error) {
	code := NormalizePlan(plan)
	rule, ok := c.Plans[code]
	if !ok {
		return Set{}, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	seats = normalizeSeats(seats)

	s := Set{
		PlanCode: string(code),
		Seats:    seats,
		Flags:    make(map[string]bool, len(rule.Flags)),
		Limits:   make(map[string]int64, len(rule.Limits)),
	}
	for name, on := range rule.Flags {
		s.Flags[name] = on
	}
	for name, lr := range rule.Limits {
		if lr.Unlimited {
			s.Limits[name] = models.UnlimitedEntitlement
			continue
		}
		s.Limits[name] = lr.Base + lr.PerSeat*int64(seats)
	}
	return s, nil
}

// Default returns the entitlement set of the default plan. It is the state
// of every org without a subscription.
func (c *Catalog) Default(seats int) Set {
	s, err := c.Compute(string(c.DefaultPlan), seats)
	if err != nil {
		// ParseCatalog guarantees the default plan exists.
		panic(err)
	}
	return s
}
