// internal/race/local_test.go
package race

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAdapterLifecycle(t *testing.T) {
	ctx := context.Background()
	a := NewLocalAdapter()
	require.NoError(t, a.Connect(ctx, ""))

	ok, err := a.JoinPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Joining twice is rejected, not an error.
	ok, err = a.JoinPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = a.JoinPlayer(ctx, "p2")
	assert.True(t, ok)

	st, found := a.GetPlayer("p1")
	require.True(t, found)
	assert.Equal(t, StatusEntered, st.Status)

	_, found = a.GetPlayer("ghost")
	assert.False(t, found)

	ok, _ = a.ReadyPlayer(ctx, "p1")
	assert.True(t, ok)
	ok, _ = a.ReadyPlayer(ctx, "p1")
	assert.False(t, ok, "already ready")

	ok, _ = a.UnreadyPlayer(ctx, "p1")
	assert.True(t, ok)
	ok, _ = a.ReadyPlayer(ctx, "p1")
	assert.True(t, ok)
	ok, _ = a.ReadyPlayer(ctx, "p2")
	assert.True(t, ok)

	_, started := a.GetStartTime()
	assert.False(t, started)

	require.NoError(t, a.StartTimer(ctx))
	_, started = a.GetStartTime()
	assert.True(t, started)

	st, _ = a.GetPlayer("p1")
	assert.Equal(t, StatusPlaying, st.Status)

	assert.True(t, a.AllPlayersNotFinished())
	assert.False(t, a.AllPlayersFinished())

	ok, _ = a.PlayerFinished(ctx, "p1")
	assert.True(t, ok)
	assert.False(t, a.AllPlayersFinished())
	assert.False(t, a.AllPlayersNotFinished())

	ok, _ = a.PlayerFinished(ctx, "p2")
	assert.True(t, ok)
	assert.True(t, a.AllPlayersFinished())

	_, ended := a.GetEndTime()
	assert.True(t, ended, "end time stamps when the last player finishes")

	ok, _ = a.PlayerUnfinished(ctx, "p2")
	assert.True(t, ok)
	_, ended = a.GetEndTime()
	assert.False(t, ended, "undoing a finish clears the end time")

	require.NoError(t, a.Disconnect())
	_, found = a.GetPlayer("p1")
	assert.False(t, found)
}

func TestLocalAdapterEmptyRace(t *testing.T) {
	a := NewLocalAdapter()
	assert.False(t, a.AllPlayersFinished(), "no entrants means not finished")
	assert.True(t, a.AllPlayersNotFinished())
}
