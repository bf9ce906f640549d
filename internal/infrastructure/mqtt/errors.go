package mqtt

import "errors"

// Session errors. Callers match them with errors.Is; the wrapped message
// carries the broker URL or topic.
var (
	ErrNotConnected     = errors.New("mqtt: session not connected")
	ErrClosed           = errors.New("mqtt: session closed")
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrCertificate means the stored PEM bundle holds no usable certificate.
	ErrCertificate = errors.New("mqtt: unusable certificate bundle")

	ErrPublishFailed   = errors.New("mqtt: publish failed")
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
