package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, production := range []bool{false, true} {
		logger, err := New(production)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}

func TestNewNop(t *testing.T) {
	assert.NotPanics(t, func() { NewNop().Info("discarded") })
}
