package cerrors

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAppError_CopiesDoNotMutateSentinel(t *testing.T) {
	cause := errors.New("connection refused")
	e := ErrRecipientStoreFailed.WithCause(cause)

	assert.ErrorIs(t, e, cause)
	assert.Nil(t, ErrRecipientStoreFailed.Cause)

	m := ErrUnknownAlertTopic.WithMessage("unknown alert topic: %s", "x/y")
	assert.Equal(t, "unknown alert topic: x/y", m.Error())
	assert.Equal(t, "unknown alert topic", ErrUnknownAlertTopic.Message)
	assert.Equal(t, ErrUnknownAlertTopic.Code, m.Code)
}

func TestHTTPStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatusOf(nil))
	assert.Equal(t, http.StatusNotFound, HTTPStatusOf(ErrRecipientNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusOf(&AppError{Code: "x"}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusOf(errors.New("plain")))
}

func TestNilAppError(t *testing.T) {
	var e *AppError
	assert.Equal(t, "OK", e.Error())
	assert.Nil(t, e.WithCause(errors.New("x")))
	assert.Nil(t, e.WithMessage("x"))
}
