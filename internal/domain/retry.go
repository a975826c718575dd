package domain

import "errors"

// RetryableError is implemented by errors that know whether the underlying
// failure is transient.
type RetryableError interface {
	Retryable() bool
}

// IsRetryable reports whether err is a transient failure worth retrying.
// Errors that do not implement RetryableError are treated as permanent.
func IsRetryable(err error) bool {
	var re RetryableError
	return errors.As(err, &re) && re.Retryable()
}
