package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveName(t *testing.T) {
	assert.Equal(t, "Anchor_7", ResolveName(7, ""))
	assert.Equal(t, "Anchor_7", ResolveName(7, "   \t"))
	assert.Equal(t, "Kitchen", ResolveName(7, "  Kitchen "))
}

func TestNormalizeName_NFC(t *testing.T) {
	decomposed := "Cafe\u0301"
	composed := "Caf\u00e9"
	assert.Equal(t, composed, NormalizeName(decomposed))
}

func TestParseCloudIDs(t *testing.T) {
	ids, err := ParseCloudIDs(" ua-123 , ,ua_456,ua-123")
	require.NoError(t, err)
	assert.Equal(t, []string{"ua-123", "ua_456"}, ids)
}

func TestParseCloudIDs_Empty(t *testing.T) {
	ids, err := ParseCloudIDs("  , ")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestParseCloudIDs_InvalidCharacters(t *testing.T) {
	_, err := ParseCloudIDs("ok,bad id!")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid characters")
}
