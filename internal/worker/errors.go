package worker

import "errors"

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// permanent marks an error that will not go away on redelivery.
func permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func isPermanentError(err error) bool {
	var pe permanentError
	return errors.As(err, &pe)
}
