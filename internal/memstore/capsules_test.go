package memstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFindByOwner_RejectsNegativeWindow(t *testing.T) {
	s := NewCapsules()
	_, _, err := s.FindByOwner(context.Background(), uuid.New(), -10, 10)
	assert.Error(t, err)
	_, _, err = s.FindByOwner(context.Background(), uuid.New(), 0, -1)
	assert.Error(t, err)
}
