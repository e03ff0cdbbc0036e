package alerting

import "github.com/pkg/errors"

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnknownTopic     = errors.New("unknown topic")
)
