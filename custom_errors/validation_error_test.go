package custom_errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	v := &ValidationError{}
	assert.False(t, v.HasError())
	assert.NoError(t, v.ErrOrNil())
	assert.Equal(t, "", v.Error())

	v.Add(nil)
	assert.False(t, v.HasError())

	v.Add(ErrUnknownQueue)
	v.Add(errors.New("batch size must be positive"))
	assert.True(t, v.HasError())
	assert.ErrorIs(t, v.ErrOrNil(), ErrUnknownQueue)
	assert.Contains(t, v.Error(), "batch size must be positive")
}
