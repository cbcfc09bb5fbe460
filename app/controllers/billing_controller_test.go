package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/PromptForge/internal/pkg/billing"
	"github.com/ManuelReschke/PromptForge/internal/pkg/database"
	"github.com/ManuelReschke/PromptForge/internal/pkg/entitlements"
)

const controllerSecret = "whsec_controller"

func newBillingApp(t *testing.T, migrate bool) *fiber.App {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if migrate {
		require.NoError(t, database.AutoMigrate(db))
	}

	catalog, err := entitlements.DefaultCatalog()
	require.NoError(t, err)
	prices, err := billing.DefaultPriceResolver(catalog)
	require.NoError(t, err)
	repo := billing.NewRepository(db)

	svc := billing.NewService(billing.Deps{
		Verifier:  billing.NewVerifier(controllerSecret, 0),
		Guard:     billing.NewGuard(repo, nil),
		Projector: billing.NewProjector(prices, string(catalog.DefaultPlan)),
		Repo:      repo,
		Applier:   entitlements.NewApplier(catalog, repo, nil),
	})

	app := fiber.New()
	app.Post("/webhooks/stripe", NewBillingController(svc, time.Second).HandleStripeWebhook)
	return app
}

func stripeRequest(t *testing.T, secret string) (*bytes.Reader, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      "evt_ctrl",
		"object":  "event",
		"type":    "invoice.payment_failed",
		"created": time.Now().Unix(),
		"data": map[string]any{"object": map[string]any{
			"id":           "in_1",
			"object":       "invoice",
			"subscription": "sub_unknown",
		}},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return bytes.NewReader(signed.Payload), signed.Header
}

func TestHandleStripeWebhook_StatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		migrate bool
		secret  string
		want    int
	}{
		{name: "acknowledged", migrate: true, secret: controllerSecret, want: fiber.StatusOK},
		{name: "forged", migrate: true, secret: "whsec_forged", want: fiber.StatusBadRequest},
		{name: "database down", migrate: false, secret: controllerSecret, want: fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newBillingApp(t, tt.migrate)
			body, header := stripeRequest(t, tt.secret)

			req := httptest.NewRequest(fiber.MethodPost, "/webhooks/stripe", body)
			req.Header.Set(billing.SignatureHeader, header)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get(DeliveryIDHeader))
		})
	}
}
