package errs

import "fmt"

type InternalError struct {
	message string
}

func (i *InternalError) Error() string {
	return i.message
}

func InternalErrorf(format string, args ...any) *InternalError {
	return &InternalError{
		message: fmt.Sprintf(format, args...),
	}
}

var _ error = &InternalError{}
