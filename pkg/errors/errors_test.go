package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Message(t *testing.T) {
	err := NotFound("playlist %s", "PL1")
	assert.Equal(t, "NOT_FOUND: playlist PL1", err.Error())

	wrapped := IO("failed to write catalog", fmt.Errorf("disk full"))
	assert.Equal(t, "IO: failed to write catalog: disk full", wrapped.Error())
}

func TestAppError_TypeChecks(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", Conflict("playlist %s already exists", "PL1"))

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, ErrorTypeConflict, TypeOf(wrapped))

	assert.True(t, IsBadRequest(BadRequest("bad quality")))
	assert.True(t, IsIO(IO("write", nil)))
	assert.Equal(t, ErrorTypeInternal, TypeOf(fmt.Errorf("plain")))
}
