package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs(t *testing.T) {
	gen := NewSequentialIDs(0xa1)

	assert.Equal(t, "a1000000-0000-0000-0000-000000000001", gen.NewID().String())
	assert.Equal(t, "a1000000-0000-0000-0000-000000000002", gen.NewID().String())
	assert.Equal(t, SeqID(0xa1, 3), gen.NewID())
}

func TestSequentialIDs_PrefixesDoNotCollide(t *testing.T) {
	a := NewSequentialIDs(1)
	b := NewSequentialIDs(2)
	assert.NotEqual(t, a.NewID(), b.NewID())
}
