package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorsRoundTrip(t *testing.T) {
	for _, format := range []string{"", FormatUUID, FormatNanoID, FormatULID, FormatKSUID} {
		t.Run("format="+format, func(t *testing.T) {
			g, err := New(format)
			require.NoError(t, err)

			seen := make(map[string]struct{})
			for i := 0; i < 50; i++ {
				id, err := g.Generate()
				require.NoError(t, err)
				require.NoError(t, g.Validate(id), id)
				_, dup := seen[id]
				require.False(t, dup, "duplicate id %s", id)
				seen[id] = struct{}{}
			}
		})
	}
}

func TestValidateRejectsForeignIDs(t *testing.T) {
	assert.Error(t, Must(FormatUUID).Validate("not-a-uuid"))
	assert.Error(t, Must(FormatNanoID).Validate("0000000000OO"))
	assert.Error(t, Must(FormatULID).Validate("short"))
	assert.Error(t, Must(FormatKSUID).Validate("short"))
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New("snowflake")
	assert.Error(t, err)
	assert.Panics(t, func() { Must("snowflake") })
}
