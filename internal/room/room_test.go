// internal/room/room_test.go
package room

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedbingo/bingo-service/internal/auth"
	"github.com/speedbingo/bingo-service/internal/generator"
	"github.com/speedbingo/bingo-service/internal/models"
)

func init() {
	auth.Init()
}

func testGoalPool(n int) []models.Goal {
	goals := make([]models.Goal, n)
	for i := range goals {
		goals[i] = models.Goal{
			ID:         uuid.New(),
			Text:       fmt.Sprintf("goal %02d", i),
			Difficulty: i%25 + 1,
		}
	}
	return goals
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// newTestRoom builds a room without starting its loop; tests drive handlers
// synchronously through handle.
func newTestRoom(t *testing.T, mutate func(*Options)) *Room {
	t.Helper()
	opts := Options{
		Settings: models.RoomSettings{
			ID:            uuid.New(),
			Slug:          "test-room",
			Name:          "Test Room",
			GameSlug:      "testgame",
			WinMode:       models.WinModeLines,
			LineThreshold: 1,
		},
		Config: generator.Config{
			Layout: generator.LayoutConfig{Mode: generator.LayoutRandom},
			Seed:   42,
		},
		Pool:   testGoalPool(40),
		Logger: quietLogger(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	r, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func newConn() *Connection {
	return &Connection{ID: uuid.New(), Out: make(chan ServerMessage, 64)}
}

func claimsFor(r *Room, key string, spectator, monitor bool) *auth.Claims {
	return &auth.Claims{
		RoomSlug:  r.settings.Slug,
		CID:       uuid.New(),
		PlayerKey: key,
		Spectator: spectator,
		Monitor:   monitor,
	}
}

func join(r *Room, conn *Connection, claims *auth.Claims, nickname string) {
	r.handle(Action{
		Name:    ActionJoin,
		Conn:    conn,
		Claims:  claims,
		Payload: Payload{Nickname: nickname},
	})
}

func drain(conn *Connection) []ServerMessage {
	var out []ServerMessage
	for {
		select {
		case m := <-conn.Out:
			out = append(out, m)
		default:
			return out
		}
	}
}

func lastOfType(msgs []ServerMessage, kind string) *ServerMessage {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == kind {
			return &msgs[i]
		}
	}
	return nil
}

func intp(v int) *int { return &v }

func TestJoinBuildsRosterAndSendsSnapshot(t *testing.T) {
	r := newTestRoom(t, nil)
	conn := newConn()
	join(r, conn, claimsFor(r, "alice-key", false, false), "alice")

	require.Len(t, r.players, 1)
	p := r.players["alice-key"]
	require.NotNil(t, p)
	assert.Equal(t, "alice", p.Nickname)
	assert.Equal(t, models.DefaultColor, p.Color)

	msgs := drain(conn)
	snap := lastOfType(msgs, MsgConnected)
	require.NotNil(t, snap)
	assert.Len(t, snap.Board, models.BoardCells)
	assert.NotNil(t, snap.Room)
	assert.Equal(t, "test-room", snap.Room.Slug)

	joined := lastOfType(msgs, MsgChat)
	require.NotNil(t, joined)
	assert.True(t, joined.Chat.System)
	assert.Contains(t, joined.Chat.Text, "alice joined")
}

func TestJoinTwiceSameKeyAttachesSecondConnection(t *testing.T) {
	r := newTestRoom(t, nil)
	c1, c2 := newConn(), newConn()
	join(r, c1, claimsFor(r, "k", false, false), "alice")
	drain(c1)
	join(r, c2, claimsFor(r, "k", false, false), "alice")

	assert.Len(t, r.players, 1)
	assert.Len(t, r.conns, 2)

	roster := r.rosterSnapshot()
	require.Len(t, roster, 1)
	assert.Equal(t, 2, roster[0].Connected)

	// Attaching an extra socket is not announced again.
	assert.Nil(t, lastOfType(drain(c1), MsgChat))
}

func TestMarkIsIdempotent(t *testing.T) {
	r := newTestRoom(t, nil)
	conn := newConn()
	claims := claimsFor(r, "k", false, false)
	join(r, conn, claims, "alice")
	drain(conn)

	mark := Action{Name: ActionMark, Conn: conn, Claims: claims,
		Payload: Payload{Row: intp(1), Col: intp(2)}}
	r.handle(mark)

	msgs := drain(conn)
	upd := lastOfType(msgs, MsgCellUpdate)
	require.NotNil(t, upd)
	assert.Equal(t, 1, upd.Cell.Row)
	assert.Equal(t, 2, upd.Cell.Col)
	assert.Equal(t, []string{"red"}, upd.Cell.Colors)
	indexAfterFirst := r.actionIndex

	// Marking the same cell again changes nothing and emits nothing.
	r.handle(mark)
	assert.Empty(t, drain(conn))
	assert.Equal(t, indexAfterFirst, r.actionIndex)
	assert.Equal(t, []string{"red"}, r.board.At(1, 2).Colors)
}

func TestUnmarkCleanCellIsNoOp(t *testing.T) {
	r := newTestRoom(t, nil)
	conn := newConn()
	claims := claimsFor(r, "k", false, false)
	join(r, conn, claims, "alice")
	drain(conn)

	before := r.actionIndex
	r.handle(Action{Name: ActionUnmark, Conn: conn, Claims: claims,
		Payload: Payload{Row: intp(0), Col: intp(0)}})

	assert.Empty(t, drain(conn))
	assert.Equal(t, before, r.actionIndex)
}

func TestMarkRejectsOutOfRangeAndMissingFields(t *testing.T) {
	r := newTestRoom(t, nil)
	conn := newConn()
	claims := claimsFor(r, "k", false, false)
	join(r, conn, claims, "alice")
	drain(conn)

	r.handle(Action{Name: ActionMark, Conn: conn, Claims: claims,
		Payload: Payload{Row: intp(5), Col: intp(0)}})
	r.handle(Action{Name: ActionMark, Conn: conn, Claims: claims,
		Payload: Payload{Row: intp(-1), Col: intp(0)}})
	r.handle(Action{Name: ActionMark, Conn: conn, Claims: claims,
		Payload: Payload{Col: intp(0)}})

	assert.Empty(t, drain(conn))
}

func TestSpectatorMarkIgnored(t *testing.T) {
	r := newTestRoom(t, nil)
	conn := newConn()
	claims := claimsFor(r, "spec", true, false)
	join(r, conn, claims, "watcher")
	drain(conn)

	r.handle(Action{Name: ActionMark, Conn: conn, Claims: claims,
		Payload: Payload{Row: intp(0), Col: intp(0)}})

	assert.Empty(t, drain(conn))
	assert.Empty(t, r.board.At(0, 0).Colors)
}

func TestLockoutMarksAreExclusive(t *testing.T) {
	r := newTestRoom(t, func(o *Options) {
		o.Settings.WinMode = models.WinModeLockout
	})
	c1, c2 := newConn(), newConn()
	cl1 := claimsFor(r, "p1", false, false)
	cl2 := claimsFor(r, "p2", false, false)
	join(r, c1, cl1, "one")
	join(r, c2, cl2, "two")
	r.handle(Action{Name: ActionChangeColor, Conn: c2, Claims: cl2,
		Payload: Payload{Color: "blue"}})
	drain(c1)
	drain(c2)

	r.handle(Action{Name: ActionMark, Conn: c1, Claims: cl1,
		Payload: Payload{Row: intp(0), Col: intp(0)}})
	r.handle(Action{Name: ActionMark, Conn: c2, Claims: cl2,
		Payload: Payload{Row: intp(0), Col: intp(0)}})

	assert.Equal(t, []string{"red"}, r.board.At(0, 0).Colors)
}

func TestWinningMarkReportsWinners(t *testing.T) {
	r := newTestRoom(t, nil) // lines mode, threshold 1
	conn := newConn()
	claims := claimsFor(r, "k", false, false)
	join(r, conn, claims, "alice")

	for col := 0; col < models.BoardSize; col++ {
		drain(conn)
		r.handle(Action{Name: ActionMark, Conn: conn, Claims: claims,
			Payload: Payload{Row: intp(2), Col: intp(col)}})
	}

	upd := lastOfType(drain(conn), MsgCellUpdate)
	require.NotNil(t, upd)
	assert.Equal(t, []string{"red"}, upd.Winners)
	assert.Equal(t, map[string]int{"red": 1}, upd.LineCounts)
}

func TestJoinWithoutNicknameRejectedForNewPlayer(t *testing.T) {
	r := newTestRoom(t, nil)
	conn := newConn()
	join(r, conn, claimsFor(r, "k", false, false), "  ")

	assert.Empty(t, r.players)
	assert.Empty(t, r.conns)
	msg := lastOfType(drain(conn), MsgUnauthorized)
	require.NotNil(t, msg)

	// With a roster entry in place the nickname may be omitted.
	join(r, conn, claimsFor(r, "k", false, false), "alice")
	conn2 := newConn()
	join(r, conn2, claimsFor(r, "k", false, false), "")
	assert.Len(t, r.conns, 2)
}

func TestLeaveLastConnectionRemovesPlayerAndRevokesToken(t *testing.T) {
	r := newTestRoom(t, nil)
	_, claims, err := r.Authorize(AuthorizeRequest{PlayerKey: "k"})
	require.NoError(t, err)
	conn := newConn()
	join(r, conn, claims, "alice")
	require.True(t, r.Tokens().Valid(claims.CID))
	drain(conn)

	r.handle(Action{Name: ActionLeave, Conn: conn, Claims: claims})

	assert.Empty(t, r.conns)
	assert.Empty(t, r.players)
	assert.False(t, r.Tokens().Valid(claims.CID))
}

func TestLeaveKeepsPlayerWhileOtherConnectionsRemain(t *testing.T) {
	r := newTestRoom(t, nil)
	c1, c2 := newConn(), newConn()
	join(r, c1, claimsFor(r, "k", false, false), "alice")
	join(r, c2, claimsFor(r, "k", false, false), "alice")
	drain(c2)

	r.handle(Action{Name: ActionLeave, Conn: c1})

	assert.Len(t, r.conns, 1)
	require.Len(t, r.players, 1)
	roster := r.rosterSnapshot()
	require.Len(t, roster, 1)
	assert.Equal(t, 1, roster[0].Connected)

	// Dropping one of several sockets is silent for everyone else.
	assert.Empty(t, drain(c2))
}

func TestChatAppendsAndBroadcasts(t *testing.T) {
	r := newTestRoom(t, nil)
	c1, c2 := newConn(), newConn()
	cl1 := claimsFor(r, "p1", false, false)
	join(r, c1, cl1, "alice")
	join(r, c2, claimsFor(r, "p2", false, false), "bob")
	drain(c1)
	drain(c2)

	transcriptBefore := len(r.chat)
	r.handle(Action{Name: ActionChat, Conn: c1, Claims: cl1,
		Payload: Payload{Text: "  good luck  "}})

	assert.Len(t, r.chat, transcriptBefore+1)
	for _, conn := range []*Connection{c1, c2} {
		m := lastOfType(drain(conn), MsgChat)
		require.NotNil(t, m)
		assert.Equal(t, "good luck", m.Chat.Text)
		assert.Equal(t, "alice", m.Chat.Nickname)
	}

	// Blank chat is dropped.
	r.handle(Action{Name: ActionChat, Conn: c1, Claims: cl1,
		Payload: Payload{Text: "   "}})
	assert.Len(t, r.chat, transcriptBefore+1)
}

func TestChangeColorValidatesPalette(t *testing.T) {
	r := newTestRoom(t, nil)
	conn := newConn()
	claims := claimsFor(r, "k", false, false)
	join(r, conn, claims, "alice")
	drain(conn)

	r.handle(Action{Name: ActionChangeColor, Conn: conn, Claims: claims,
		Payload: Payload{Color: "chartreuse"}})
	assert.Equal(t, models.DefaultColor, r.players["k"].Color)

	r.handle(Action{Name: ActionChangeColor, Conn: conn, Claims: claims,
		Payload: Payload{Color: "teal"}})
	assert.Equal(t, "teal", r.players["k"].Color)
}

func TestNewCardResetsMarksAndReveals(t *testing.T) {
	r := newTestRoom(t, func(o *Options) {
		o.Settings.HideCard = true
	})
	conn := newConn()
	claims := claimsFor(r, "k", false, true)
	join(r, conn, claims, "alice")
	r.handle(Action{Name: ActionRevealCard, Conn: conn, Claims: claims})
	r.handle(Action{Name: ActionMark, Conn: conn, Claims: claims,
		Payload: Payload{Row: intp(0), Col: intp(0)}})
	require.NotZero(t, r.players["k"].Mask)
	oldGoals := r.board.Cells
	drain(conn)

	r.handle(Action{Name: ActionNewCard, Conn: conn, Claims: claims})

	assert.Zero(t, r.players["k"].Mask)
	assert.Empty(t, r.revealed)
	assert.Empty(t, r.board.At(0, 0).Colors)
	assert.NotEqual(t, oldGoals, r.board.Cells)

	// The hidden board goes back to the placeholder for everyone.
	sync := lastOfType(drain(conn), MsgSyncBoard)
	require.NotNil(t, sync)
	assert.True(t, sync.Hidden)
	assert.Nil(t, sync.Board)
}

func TestNewCardOptionsInheritLastModes(t *testing.T) {
	r := newTestRoom(t, func(o *Options) {
		o.Config = generator.Config{
			Layout:   generator.LayoutConfig{Mode: generator.LayoutMagic},
			Grouping: generator.GroupingConfig{Mode: generator.GroupRandom},
			Seed:     42,
		}
	})
	conn := newConn()
	claims := claimsFor(r, "k", false, true)
	join(r, conn, claims, "alice")
	drain(conn)

	// Options carrying only a seed keep the room's last layout and grouping.
	r.handle(Action{Name: ActionNewCard, Conn: conn, Claims: claims,
		Payload: Payload{Options: &generator.Config{Seed: 777}}})

	assert.Equal(t, generator.LayoutMagic, r.lastCfg.Layout.Mode)
	assert.Equal(t, generator.GroupRandom, r.lastCfg.Grouping.Mode)
	assert.Equal(t, int64(777), r.lastCfg.Seed)
	require.NotNil(t, lastOfType(drain(conn), MsgSyncBoard))

	// An explicit mode still wins.
	r.handle(Action{Name: ActionNewCard, Conn: conn, Claims: claims,
		Payload: Payload{Options: &generator.Config{
			Layout: generator.LayoutConfig{Mode: generator.LayoutRandom},
			Seed:   778,
		}}})
	assert.Equal(t, generator.LayoutRandom, r.lastCfg.Layout.Mode)
}

func TestNewCardGenerationFailureKeepsBoard(t *testing.T) {
	r := newTestRoom(t, nil)
	conn := newConn()
	claims := claimsFor(r, "k", false, true)
	join(r, conn, claims, "alice")
	drain(conn)
	oldBoard := r.board

	// The static layout wants eight difficulty-1 goals; this pool holds two,
	// so the placement loop runs bucket 1 dry.
	r.handle(Action{Name: ActionNewCard, Conn: conn, Claims: claims,
		Payload: Payload{Options: &generator.Config{
			Layout: generator.LayoutConfig{Mode: generator.LayoutStatic},
			Grouping: generator.GroupingConfig{
				Mode: generator.GroupDifficulty,
			},
			Seed: 7,
		}}})

	assert.Same(t, oldBoard, r.board)
	m := lastOfType(drain(conn), MsgChat)
	require.NotNil(t, m)
	assert.Contains(t, m.Chat.Text, "generation failed")
}

func TestRevealCardIsPerPlayer(t *testing.T) {
	r := newTestRoom(t, func(o *Options) {
		o.Settings.HideCard = true
	})
	c1, c2 := newConn(), newConn()
	cl1 := claimsFor(r, "p1", false, false)
	join(r, c1, cl1, "alice")
	join(r, c2, claimsFor(r, "p2", false, false), "bob")
	drain(c1)
	drain(c2)

	r.handle(Action{Name: ActionRevealCard, Conn: c1, Claims: cl1})

	sync := lastOfType(drain(c1), MsgSyncBoard)
	require.NotNil(t, sync)
	assert.False(t, sync.Hidden)
	assert.Len(t, sync.Board, models.BoardCells)

	cells, hidden := r.boardView("p2")
	assert.True(t, hidden)
	assert.Nil(t, cells)
}

func TestCloseIsIdempotentAndNotifies(t *testing.T) {
	r := newTestRoom(t, nil)
	conn := newConn()
	join(r, conn, claimsFor(r, "k", false, false), "alice")
	drain(conn)

	r.Close()
	r.Close()

	assert.True(t, r.Closed())
	assert.False(t, r.Submit(Action{Name: ActionChat}))
	m := lastOfType(drain(conn), MsgDisconnected)
	require.NotNil(t, m)
	assert.Equal(t, "room closed", m.Reason)
}

func TestIdleTimersWarnThenClose(t *testing.T) {
	r := newTestRoom(t, func(o *Options) {
		o.WarnAfter = 20 * time.Millisecond
		o.CloseAfterWarn = 20 * time.Millisecond
	})
	conn := newConn()
	r.Start()
	require.True(t, r.Submit(Action{
		Name:    ActionJoin,
		Conn:    conn,
		Claims:  claimsFor(r, "k", false, false),
		Payload: Payload{Nickname: "alice"},
	}))

	require.Eventually(t, r.Closed, 2*time.Second, 5*time.Millisecond)

	msgs := drain(conn)
	warn := lastOfType(msgs, MsgChat)
	require.NotNil(t, warn)
	assert.Contains(t, warn.Chat.Text, "inactivity")
}

func TestAuthorizeChecksPasswordAndRegistersToken(t *testing.T) {
	r := newTestRoom(t, func(o *Options) {
		o.Settings.Password = "hunter2"
	})

	_, _, err := r.Authorize(AuthorizeRequest{Password: "wrong"})
	assert.ErrorIs(t, err, ErrBadPassword)

	token, claims, err := r.Authorize(AuthorizeRequest{Password: "hunter2", WantMonitor: true})
	require.NoError(t, err)
	assert.True(t, claims.Monitor)
	assert.True(t, r.Tokens().Valid(claims.CID))

	parsed, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, claims.CID, parsed.CID)
	assert.Equal(t, "test-room", parsed.RoomSlug)

	r.Tokens().Invalidate(claims.CID)
	assert.False(t, r.Tokens().Valid(claims.CID))
}

func TestRaceEligibleJoinEntersRace(t *testing.T) {
	r := newTestRoom(t, func(o *Options) {
		o.Settings.RaceEligible = true
	})
	conn := newConn()
	claims := claimsFor(r, "k", false, true)
	join(r, conn, claims, "alice")

	require.Eventually(t, func() bool {
		_, ok := r.race.GetPlayer("k")
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	// Resetting the timer rebuilds the adapter from scratch.
	r.handle(Action{Name: ActionResetTimer, Conn: conn, Claims: claims})
	_, ok := r.race.GetPlayer("k")
	assert.False(t, ok)
}

func TestReplayActionRebuildsState(t *testing.T) {
	r := newTestRoom(t, nil)

	r.ReplayAction(ActionJoin, "p1", map[string]interface{}{"nickname": "alice"})
	r.ReplayAction(ActionChangeColor, "p1", map[string]interface{}{"color": "blue"})
	r.ReplayAction(ActionChat, "p1", map[string]interface{}{"text": "glhf"})
	r.ReplayAction(ActionMark, "p1", map[string]interface{}{
		"row": float64(1), "col": float64(1), "color": "blue"})
	r.ReplayAction(ActionMark, "p1", map[string]interface{}{
		"row": float64(1), "col": float64(1), "color": "blue"}) // duplicate row survives
	r.ReplayAction(ActionUnmark, "p1", map[string]interface{}{
		"row": float64(1), "col": float64(1), "color": "blue"})
	r.ReplayAction(ActionMark, "p1", map[string]interface{}{
		"row": float64(2), "col": float64(3), "color": "blue"})

	p := r.players["p1"]
	require.NotNil(t, p)
	assert.Equal(t, "alice", p.Nickname)
	assert.Equal(t, "blue", p.Color)
	require.Len(t, r.chat, 1)
	assert.Equal(t, "glhf", r.chat[0].Text)
	assert.Empty(t, r.board.At(1, 1).Colors)
	assert.Equal(t, []string{"blue"}, r.board.At(2, 3).Colors)
	assert.Equal(t, uint32(1)<<uint(2*models.BoardSize+3), p.Mask)
}
