package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PromptForge/app/models"
)

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := DefaultCatalog()
	require.NoError(t, err)
	return c
}

func TestDefaultCatalog(t *testing.T) {
	c := mustCatalog(t)
	assert.Equal(t, PlanPilot, c.DefaultPlan)
	assert.Equal(t, []string{"creator", "enterprise", "pilot", "pro"}, c.PlanCodes())
	assert.True(t, c.HasPlan(" PRO "))
	assert.False(t, c.HasPlan("platinum"))
}

func TestCatalogCompute(t *testing.T) {
	c := mustCatalog(t)

	tests := []struct {
		name       string
		plan       string
		seats      int
		capability string
		want       int64
	}{
		{name: "pilot runs", plan: "pilot", seats: 1, capability: "maxRunsPerDay", want: 10},
		{name: "pro runs scale with seats", plan: "pro", seats: 3, capability: "maxRunsPerDay", want: 300},
		{name: "pro exports base plus seats", plan: "pro", seats: 2, capability: "maxExportsPerMonth", want: 300},
		{name: "zero seats count as one", plan: "pro", seats: 0, capability: "maxTeamMembers", want: 1},
		{name: "enterprise unlimited exports", plan: "enterprise", seats: 5, capability: "maxExportsPerMonth", want: models.UnlimitedEntitlement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := c.Compute(tt.plan, tt.seats)
			require.NoError(t, err)
			got, ok := set.Limit(tt.capability)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalogCompute_Flags(t *testing.T) {
	c := mustCatalog(t)

	pro, err := c.Compute("pro", 1)
	require.NoError(t, err)
	assert.True(t, pro.Allows("canExportPDF"))
	assert.False(t, pro.Allows("hasAPI"))
	assert.False(t, pro.Allows("doesNotExist"))

	ent, err := c.Compute("enterprise", 1)
	require.NoError(t, err)
	assert.True(t, ent.Allows("hasAPI"))
	assert.True(t, ent.Allows("maxExportsPerMonth"))

	_, err = c.Compute("platinum", 1)
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not yaml", doc: "plans: ["},
		{name: "no plans", doc: "default_plan: pilot\n"},
		{name: "missing default", doc: "default_plan: gold\nplans:\n  pilot:\n    flags: {a: true}\n"},
		{
			name: "capability drift",
			doc: "default_plan: pilot\nplans:\n" +
				"  pilot:\n    flags: {a: true}\n" +
				"  pro:\n    flags: {a: true, b: true}\n",
		},
		{
			name: "negative limit",
			doc:  "default_plan: pilot\nplans:\n  pilot:\n    flags: {a: true}\n    limits:\n      runs: {base: -1}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestSetRowsRoundTrip(t *testing.T) {
	c := mustCatalog(t)
	set, err := c.Compute("pro", 4)
	require.NoError(t, err)

	rows := set.Rows("org_1")
	require.Len(t, rows, len(set.Flags)+len(set.Limits))
	for i := 1; i < len(rows); i++ {
		assert.Less(t, rows[i-1].Capability, rows[i].Capability)
	}
	for _, row := range rows {
		assert.Equal(t, "org_1", row.OrgID)
		assert.Equal(t, "pro", row.PlanCode)
		assert.Equal(t, 4, row.Seats)
	}

	back, ok := SetFromRows(rows)
	require.True(t, ok)
	assert.Equal(t, set, back)

	_, ok = SetFromRows(nil)
	assert.False(t, ok)
}
