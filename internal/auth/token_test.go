// internal/auth/token_test.go
package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	Init()

	acc := uuid.New()
	in := Claims{
		RoomSlug:  "frosty-tundra-1234",
		CID:       uuid.New(),
		Spectator: true,
		Monitor:   false,
		PlayerKey: "player-key-abc",
		AccountID: &acc,
	}
	tok, err := CreateToken(in)
	require.NoError(t, err)

	out, err := ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, in.RoomSlug, out.RoomSlug)
	assert.Equal(t, in.CID, out.CID)
	assert.True(t, out.Spectator)
	assert.False(t, out.Monitor)
	assert.Equal(t, in.PlayerKey, out.PlayerKey)
	require.NotNil(t, out.AccountID)
	assert.Equal(t, acc, *out.AccountID)
}

func TestParseGarbageToken(t *testing.T) {
	Init()
	_, err := ParseToken("not-a-jwt")
	assert.Error(t, err)
}

func TestTokenStoreRevocationIsPermanent(t *testing.T) {
	store := NewTokenStore()
	cid := uuid.New()

	assert.False(t, store.Valid(cid), "unregistered id is invalid")
	store.Register(cid)
	assert.True(t, store.Valid(cid))

	store.Invalidate(cid)
	assert.False(t, store.Valid(cid))

	// Invalidation is idempotent and the set only shrinks explicitly.
	store.Invalidate(cid)
	assert.False(t, store.Valid(cid))
}
