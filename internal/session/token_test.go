package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	codec := tokenCodec{signingKey: []byte("test-signing-key"), ttl: time.Minute}

	principalID := uuid.New()
	orgID := uuid.New()

	raw, err := codec.issue(principalID, orgID, time.Now().UTC())
	require.NoError(t, err)

	claims, err := codec.parse(raw)
	require.NoError(t, err)

	assert.Equal(t, orgID, claims.OrganizationID)

	parsed, err := claims.principalID()
	require.NoError(t, err)
	assert.Equal(t, principalID, parsed)
}

func TestTokenParse(t *testing.T) {
	codec := tokenCodec{signingKey: []byte("test-signing-key"), ttl: time.Minute}

	t.Run("Should reject an expired token", func(t *testing.T) {
		raw, err := codec.issue(uuid.New(), uuid.New(), time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)

		_, err = codec.parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Should reject a token signed with another key", func(t *testing.T) {
		other := tokenCodec{signingKey: []byte("other-key"), ttl: time.Minute}

		raw, err := other.issue(uuid.New(), uuid.New(), time.Now().UTC())
		require.NoError(t, err)

		_, err = codec.parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Should reject garbage", func(t *testing.T) {
		_, err := codec.parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
