package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_EmptyDSN(t *testing.T) {
	err := Run("", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is not set")
}

func TestRun_InvalidDirection(t *testing.T) {
	testCases := []struct {
		name      string
		direction string
	}{
		{"empty", ""},
		{"invalid", "invalid"},
		{"sideways", "sideways"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Run("postgres://localhost/db", tc.direction)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "direction must be up or down")
		})
	}
}
