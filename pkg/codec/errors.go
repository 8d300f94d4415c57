package codec

import "errors"

// Codec errors. All of them mark permanently bad data on the caller's
// side; none are retryable. Registry errors pass through from the
// registry package unchanged.
var (
	// ErrMalformedEnvelope is returned when encoded data lacks the
	// leading format marker or is shorter than the envelope header.
	ErrMalformedEnvelope = errors.New("malformed wire envelope")

	// ErrTruncatedPayload is returned when the payload ends before all
	// schema fields could be decoded.
	ErrTruncatedPayload = errors.New("truncated payload")

	// ErrTrailingData is returned when bytes remain after the last
	// schema field has been decoded.
	ErrTrailingData = errors.New("trailing data after payload")

	// ErrMissingRequiredField is returned when a record omits a field
	// that declares no default.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrFieldTypeMismatch is returned when a record value cannot be
	// represented as its field's declared type.
	ErrFieldTypeMismatch = errors.New("field value type mismatch")
)
