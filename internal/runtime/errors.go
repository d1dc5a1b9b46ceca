package runtime

import "errors"

// fatalError marks an error that retrying cannot fix, such as a missing
// credential or malformed model output. The runtime gives up on the
// invocation immediately instead of burning its retry budget.
type fatalError struct {
	err error
}

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// Fatal wraps err so the runtime will not retry the invocation.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err (anywhere in its chain) was marked fatal.
func IsFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}
