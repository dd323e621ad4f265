package errs

import "fmt"

type CanceledError struct {
	message string
}

func (c *CanceledError) Error() string {
	return c.message
}

func CanceledErrorf(format string, args ...any) *CanceledError {
	return &CanceledError{
		message: fmt.Sprintf(format, args...),
	}
}

var _ error = &CanceledError{}
