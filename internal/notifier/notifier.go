package notifier

import (
	"context"
	"fmt"

	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/pkg/errors"
)

// ErrTokenUnregistered means the device token is no longer valid and the
// recipient record should be removed.
var ErrTokenUnregistered = errors.New("notification token is no longer registered")

// PermanentError is a delivery failure that retrying will not fix.
type PermanentError struct {
	Reason string
	Cause  error
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("permanent delivery failure (%s): %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("permanent delivery failure (%s)", e.Reason)
}

func (e *PermanentError) Unwrap() error { return e.Cause }

// Gateway delivers one notification to one device. A nil error means the
// provider accepted the message. Errors other than ErrTokenUnregistered and
// *PermanentError are transient.
type Gateway interface {
	Send(ctx context.Context, token string, n models.Notification) error
}

type Outcome string

const (
	OutcomeDelivered    Outcome = "delivered"
	OutcomeUnregistered Outcome = "unregistered"
	OutcomePermanent    Outcome = "permanent_failure"
	OutcomeTransient    Outcome = "transient_failure"
)

func Classify(err error) Outcome {
	var perm *PermanentError
	switch {
	case err == nil:
		return OutcomeDelivered
	case errors.Is(err, ErrTokenUnregistered):
		return OutcomeUnregistered
	case errors.As(err, &perm):
		return OutcomePermanent
	default:
		return OutcomeTransient
	}
}
