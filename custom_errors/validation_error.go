package custom_errors

import (
	"errors"
	"fmt"
)

type ValidationError struct {
	Errors []error `json:"errors"`
}

func (c *ValidationError) Add(err error) {
	if err != nil {
		c.Errors = append(c.Errors, err)
	}
}

func (c *ValidationError) HasError() bool {
	return len(c.Errors) > 0
}

// ErrOrNil returns c when it holds at least one error.
func (c *ValidationError) ErrOrNil() error {
	if c.HasError() {
		return c
	}
	return nil
}

func (c *ValidationError) Error() string {
	if len(c.Errors) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", errors.Join(c.Errors...))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (c *ValidationError) Unwrap() []error {
	return c.Errors
}
