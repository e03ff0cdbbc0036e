package notifier

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeDelivered, Classify(nil))
	assert.Equal(t, OutcomeUnregistered, Classify(ErrTokenUnregistered))
	assert.Equal(t, OutcomeUnregistered, Classify(errors.Wrap(ErrTokenUnregistered, "fcm send")))
	assert.Equal(t, OutcomePermanent, Classify(&PermanentError{Reason: "invalid-argument"}))
	assert.Equal(t, OutcomePermanent, Classify(errors.Wrap(&PermanentError{Reason: "sender-id-mismatch"}, "fcm send")))
	assert.Equal(t, OutcomeTransient, Classify(errors.New("connection reset")))
	assert.Equal(t, OutcomeTransient, Classify(context.DeadlineExceeded))
}

func TestPermanentError(t *testing.T) {
	cause := errors.New("bad payload")
	err := &PermanentError{Reason: "invalid-argument", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "invalid-argument")
	assert.Contains(t, (&PermanentError{Reason: "x"}).Error(), "x")
}
