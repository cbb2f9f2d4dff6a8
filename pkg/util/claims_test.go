package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaim(t *testing.T) {
	claims := map[string]any{
		"preferred_username": "alice",
		"policies": map[string]any{
			"transfer": map[string]any{
				"role": "editor",
			},
		},
	}

	v, err := Claim(claims, ".preferred_username")
	require.NoError(t, err)
	assert.Equal(t, "alice", v)

	v, err = Claim(claims, "policies.transfer.role")
	require.NoError(t, err)
	assert.Equal(t, "editor", v)

	_, err = Claim(claims, ".missing")
	assert.Error(t, err)

	_, err = Claim(claims, ".preferred_username.nested")
	assert.Error(t, err)

	_, err = Claim(nil, ".x")
	assert.Error(t, err)
}

func TestClaimString(t *testing.T) {
	claims := map[string]any{"sub": "u1", "exp": 12345}

	s, err := ClaimString(claims, ".sub")
	require.NoError(t, err)
	assert.Equal(t, "u1", s)

	_, err = ClaimString(claims, ".exp")
	assert.Error(t, err)
}
