package billing

import (
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// SignatureHeader is the header Stripe signs webhook deliveries with.
const SignatureHeader = "Stripe-Signature"

// Verifier authenticates raw webhook bodies against the endpoint secret.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier creates a verifier. A zero tolerance uses Stripe's default
// timestamp window.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{secret: strings.TrimSpace(secret), tolerance: tolerance}
}

// Verify checks the signature over the unparsed payload and only then
// decodes it. Every failure is a *VerificationError.
func (v *Verifier) Verify(payload []byte, signatureHeader string) (Event, error) {
	sig := strings.TrimSpace(signatureHeader)
	if v.secret == "" {
		return nil, &VerificationError{Reason: "webhook secret is not configured"}
	}
	if sig == "" {
		return nil, &VerificationError{Reason: "missing signature header"}
	}

	ev, err := webhook.ConstructEventWithOptions(payload, sig, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, &VerificationError{Reason: "invalid signature or payload", Err: err}
	}

	out, err := decodeStripeEvent(ev)
	if err != nil {
		return nil, &VerificationError{Reason: "malformed event", Err: err}
	}
	return out, nil
}
