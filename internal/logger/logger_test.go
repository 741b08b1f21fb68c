package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, dev := range []bool{true, false} {
		l, err := New(dev)
		require.NoError(t, err)
		assert.NotNil(t, l)
		assert.Equal(t, dev, l.Core().Enabled(-1), "debug level enabled only in dev")
	}
}
