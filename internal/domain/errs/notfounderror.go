package errs

import "fmt"

type NotFoundError struct {
	message string
}

func (n *NotFoundError) Error() string {
	return n.message
}

func NotFoundErrorf(format string, args ...any) *NotFoundError {
	return &NotFoundError{
		message: fmt.Sprintf(format, args...),
	}
}

var _ error = &NotFoundError{}
