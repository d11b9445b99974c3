package entity

import "errors"

var (
	// ErrObjectNotFound means the referenced blob does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrObjectTooLarge means the blob exceeds the worker's download bound.
	ErrObjectTooLarge = errors.New("object exceeds size limit")

	// ErrUnsupportedImage means the blob is not a decodable image.
	ErrUnsupportedImage = errors.New("unsupported image content")

	// ErrJobNotFound means no job record exists for the image id.
	ErrJobNotFound = errors.New("job not found")
)

// PermanentError marks a failure that redelivery cannot fix. Consumers route
// such messages to the dead-letter queue instead of requeueing them.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as non-retryable. Wrapping nil returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is marked non-retryable anywhere in its
// chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
