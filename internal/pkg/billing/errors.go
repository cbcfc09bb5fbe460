package billing

import (
	"errors"
	"fmt"
)

// ErrEventAlreadyProcessed is returned by the repository when the processed
// record for an event already exists.
var ErrEventAlreadyProcessed = errors.New("billing event already processed")

// VerificationError marks a webhook delivery that failed authentication or
// could not be decoded. It is terminal: a retry of the same bytes fails again.
type VerificationError struct {
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err == nil {
		return "webhook verification failed: " + e.Reason
	}
	return fmt.Sprintf("webhook verification failed: %s: %v", e.Reason, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// IsVerificationError reports whether err is or wraps a *VerificationError.
func IsVerificationError(err error) bool {
	var ve *VerificationError
	return errors.As(err, &ve)
}
