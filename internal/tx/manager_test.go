package tx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsSerializationError(t *testing.T) {
	assert.True(t, isSerializationError(&pq.Error{Code: "40001"}))
	assert.True(t, isSerializationError(fmt.Errorf("save: %w", &pq.Error{Code: "40P01"})))
	assert.True(t, isSerializationError(errors.New("pq: could not serialize access")))
	assert.False(t, isSerializationError(&pq.Error{Code: "23505"}))
	assert.False(t, isSerializationError(errors.New("boom")))
	assert.False(t, isSerializationError(nil))
}
