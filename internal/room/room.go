// internal/room/room.go
//
// Room is the single authoritative mutator of one live match. All accepted
// actions funnel through an inbox channel drained by one goroutine, so every
// handler runs to completion before the next starts and board/roster state
// needs no locks. Handlers never block: persistence and race-adapter calls
// are handed off to a bounded queue or background goroutines.
package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/speedbingo/bingo-service/internal/auth"
	"github.com/speedbingo/bingo-service/internal/cache"
	"github.com/speedbingo/bingo-service/internal/generator"
	"github.com/speedbingo/bingo-service/internal/models"
	"github.com/speedbingo/bingo-service/internal/race"
)

// Default timer knobs, overridable per room for tests.
const (
	DefaultWarnAfter      = 4 * time.Hour
	DefaultCloseAfterWarn = 10 * time.Minute
	defaultAuditDepth     = 128
)

// Payload carries the optional per-action fields of an inbound envelope.
// Missing fields on actions that need them are ignored silently to tolerate
// protocol drift.
type Payload struct {
	Nickname string            `json:"nickname,omitempty"`
	Row      *int              `json:"row,omitempty"`
	Col      *int              `json:"col,omitempty"`
	Text     string            `json:"text,omitempty"`
	Color    string            `json:"color,omitempty"`
	Options  *generator.Config `json:"options,omitempty"`
	RaceKind string            `json:"raceKind,omitempty"`
	RaceURL  string            `json:"raceUrl,omitempty"`
}

// Action is one inbound message already admitted by the gateway.
type Action struct {
	Name    string
	Conn    *Connection
	Claims  *auth.Claims
	Payload Payload
}

// Internal actions the room posts to itself.
const (
	actionIdleWarn  = "_idleWarn"
	actionIdleClose = "_idleClose"
	actionRaceSync  = "_raceSync"
)

// Options configures a new or rehydrated room.
type Options struct {
	Settings   models.RoomSettings
	Config     generator.Config
	Pool       []models.Goal
	Categories []models.Category
	Variants   map[string]*models.Variant

	Logger *logrus.Logger
	Tokens *auth.TokenStore

	// Rehydration state; a nil Board triggers initial generation.
	Board       *models.Board
	Chat        []models.ChatMessage
	Players     map[string]*models.Player
	ActionIndex int

	RaceKind string
	RaceURL  string

	WarnAfter      time.Duration
	CloseAfterWarn time.Duration

	// Publish appends one audit record; nil disables auditing (tests).
	Publish func(context.Context, cache.RoomActionRecord) error
	// PersistBoard replaces the persisted board; nil disables (tests).
	PersistBoard func(context.Context, uuid.UUID, *models.Board) error
	// PersistConfig replaces the room's stored generation options after a
	// regeneration; nil disables (tests).
	PersistConfig func(context.Context, uuid.UUID, generator.Config) error
	// OnClose runs once after the room shuts down (registry eviction).
	OnClose func(*Room)
}

// Room owns one live match: board, roster, transcript, race binding.
type Room struct {
	settings models.RoomSettings
	logger   *logrus.Logger
	tokens   *auth.TokenStore

	board      *models.Board
	lastCfg    generator.Config
	pool       []models.Goal
	categories []models.Category
	variants   map[string]*models.Variant

	players  map[string]*models.Player
	chat     []models.ChatMessage
	revealed map[string]bool

	connMu sync.Mutex
	conns  map[uuid.UUID]*Connection

	raceKind string
	raceURL  string
	race     race.Adapter

	inbox     chan Action
	done      chan struct{}
	closeOnce sync.Once

	warnAfter      time.Duration
	closeAfterWarn time.Duration
	idleTimer      *time.Timer
	timerMu        sync.Mutex
	warned         bool

	actionIndex   int
	audit         *auditQueue
	publish       func(context.Context, cache.RoomActionRecord) error
	persistBoard  func(context.Context, uuid.UUID, *models.Board) error
	persistConfig func(context.Context, uuid.UUID, generator.Config) error
	onClose       func(*Room)
}

// New builds a room. When no board is supplied (explicit room creation) the
// generator runs once with the given config; a generation failure fails room
// creation outright.
func New(opts Options) (*Room, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	warnAfter := opts.WarnAfter
	if warnAfter == 0 {
		warnAfter = DefaultWarnAfter
	}
	closeAfterWarn := opts.CloseAfterWarn
	if closeAfterWarn == 0 {
		closeAfterWarn = DefaultCloseAfterWarn
	}
	players := opts.Players
	if players == nil {
		players = make(map[string]*models.Player)
	}
	raceKind := opts.RaceKind
	if raceKind == "" {
		raceKind = race.KindLocal
	}

	r := &Room{
		settings:       opts.Settings,
		logger:         logger,
		tokens:         opts.Tokens,
		lastCfg:        opts.Config,
		pool:           opts.Pool,
		categories:     opts.Categories,
		variants:       opts.Variants,
		board:          opts.Board,
		chat:           opts.Chat,
		players:        players,
		revealed:       make(map[string]bool),
		conns:          make(map[uuid.UUID]*Connection),
		raceKind:       raceKind,
		raceURL:        opts.RaceURL,
		inbox:          make(chan Action, 64),
		done:           make(chan struct{}),
		warnAfter:      warnAfter,
		closeAfterWarn: closeAfterWarn,
		actionIndex:    opts.ActionIndex,
		publish:        opts.Publish,
		persistBoard:   opts.PersistBoard,
		persistConfig:  opts.PersistConfig,
		onClose:        opts.OnClose,
	}
	if r.tokens == nil {
		r.tokens = auth.NewTokenStore()
	}
	r.audit = newAuditQueue(defaultAuditDepth, logger)

	if r.settings.RaceEligible {
		r.race = race.New(r.raceKind)
	}

	if r.board == nil {
		res, err := r.generate(r.lastCfg)
		if err != nil {
			return nil, err
		}
		r.lastCfg.Seed = res.Seed
		r.board = models.NewBoardFromGoals(res.Goals[:])
		r.enqueueBoardPersist()
		r.enqueueConfigPersist()
	}
	return r, nil
}

// Seed reports the seed of the current board's generation.
func (r *Room) Seed() int64 { return r.lastCfg.Seed }

// Start launches the room loop and arms the inactivity timer.
func (r *Room) Start() {
	r.resetIdleTimer()
	go r.run()
}

// Slug returns the room's routable slug.
func (r *Room) Slug() string { return r.settings.Slug }

// ID returns the room's persisted id.
func (r *Room) ID() uuid.UUID { return r.settings.ID }

// Tokens exposes the room's revocable token set to the gateway.
func (r *Room) Tokens() *auth.TokenStore { return r.tokens }

// Submit hands an action to the room loop. Returns false once the room has
// closed; callers treat that as the room being gone.
func (r *Room) Submit(a Action) bool {
	select {
	case <-r.done:
		return false
	case r.inbox <- a:
		return true
	}
}

// submitInternal posts a room-generated action without ever blocking a timer
// callback; a full inbox on a closing room just drops the tick.
func (r *Room) submitInternal(name string) {
	select {
	case <-r.done:
	case r.inbox <- Action{Name: name}:
	default:
	}
}

func (r *Room) run() {
	for {
		select {
		case <-r.done:
			return
		case a := <-r.inbox:
			r.handle(a)
		}
	}
}

// AuthorizeRequest is the HTTP-side input to token minting.
type AuthorizeRequest struct {
	Password    string
	PlayerKey   string
	Spectator   bool
	WantMonitor bool
	AccountID   *uuid.UUID
}

// ErrBadPassword rejects an authorize attempt with a wrong room password.
var ErrBadPassword = fmt.Errorf("incorrect room password")

// Authorize checks the room password (plain comparison) and mints a fresh
// access token registered in the revocable set. Monitor is granted only when
// requested and the password matched; the password gates everything.
func (r *Room) Authorize(req AuthorizeRequest) (string, *auth.Claims, error) {
	if r.settings.Password != "" && req.Password != r.settings.Password {
		return "", nil, ErrBadPassword
	}
	key := req.PlayerKey
	if key == "" {
		key = uuid.NewString()
	}
	claims := auth.Claims{
		RoomSlug:  r.settings.Slug,
		CID:       uuid.New(),
		Spectator: req.Spectator,
		Monitor:   req.WantMonitor,
		PlayerKey: key,
		AccountID: req.AccountID,
	}
	token, err := auth.CreateToken(claims)
	if err != nil {
		return "", nil, fmt.Errorf("mint access token: %w", err)
	}
	r.tokens.Register(claims.CID)
	return token, &claims, nil
}

// Close shuts the room down: stops the loop, synchronously closes every open
// connection, and drains the audit queue. Idempotent.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.stopIdleTimer()

		r.connMu.Lock()
		for _, c := range r.conns {
			c.Send(ServerMessage{Type: MsgDisconnected, Reason: "room closed"})
			if c.Cancel != nil {
				c.Cancel()
			}
		}
		r.conns = make(map[uuid.UUID]*Connection)
		r.connMu.Unlock()

		r.audit.close()
		if r.onClose != nil {
			r.onClose(r)
		}
		r.logger.WithField("room", r.settings.Slug).Info("room closed")
	})
}

// Closed reports whether Close has run.
func (r *Room) Closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// generate runs the pipeline with the room's cached pool and category
// metadata, resolving the config's variant name if set.
func (r *Room) generate(cfg generator.Config) (*generator.Result, error) {
	var variant *models.Variant
	if cfg.Variant != "" {
		variant = r.variants[cfg.Variant]
		if variant == nil {
			return nil, fmt.Errorf("unknown difficulty variant %q", cfg.Variant)
		}
	}
	return generator.Generate(r.pool, r.categories, variant, cfg)
}

// --- timers ---

func (r *Room) resetIdleTimer() {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if r.idleTimer != nil {
		r.idleTimer.Stop()
	}
	r.warned = false
	r.idleTimer = time.AfterFunc(r.warnAfter, func() { r.submitInternal(actionIdleWarn) })
}

func (r *Room) armCloseTimer() {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if r.idleTimer != nil {
		r.idleTimer.Stop()
	}
	r.warned = true
	r.idleTimer = time.AfterFunc(r.closeAfterWarn, func() { r.submitInternal(actionIdleClose) })
}

func (r *Room) stopIdleTimer() {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if r.idleTimer != nil {
		r.idleTimer.Stop()
		r.idleTimer = nil
	}
}

// --- audit ---

// recordAction appends one audit record via the bounded queue. Failures are
// logged and swallowed: audit persistence is best-effort by design.
func (r *Room) recordAction(actionType, playerKey string, payload map[string]interface{}) {
	r.actionIndex++
	if r.publish == nil {
		return
	}
	record := cache.RoomActionRecord{
		RoomID:      r.settings.ID,
		RoomSlug:    r.settings.Slug,
		ActionIndex: r.actionIndex,
		PlayerKey:   playerKey,
		ActionType:  actionType,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	publish := r.publish
	logger := r.logger
	slug := r.settings.Slug
	r.audit.enqueue(func(ctx context.Context) {
		if err := publish(ctx, record); err != nil {
			logger.WithError(err).WithField("room", slug).Warn("audit publish failed")
		}
	})
}

// enqueueBoardPersist replaces the persisted flat cell list, best-effort.
func (r *Room) enqueueBoardPersist() {
	if r.persistBoard == nil {
		return
	}
	boardCopy := *r.board
	persist := r.persistBoard
	logger := r.logger
	id := r.settings.ID
	slug := r.settings.Slug
	r.audit.enqueue(func(ctx context.Context) {
		if err := persist(ctx, id, &boardCopy); err != nil {
			logger.WithError(err).WithField("room", slug).Warn("board persist failed")
		}
	})
}

// enqueueConfigPersist stores the latest generation options, best-effort.
func (r *Room) enqueueConfigPersist() {
	if r.persistConfig == nil {
		return
	}
	cfg := r.lastCfg
	persist := r.persistConfig
	logger := r.logger
	id := r.settings.ID
	slug := r.settings.Slug
	r.audit.enqueue(func(ctx context.Context) {
		if err := persist(ctx, id, cfg); err != nil {
			logger.WithError(err).WithField("room", slug).Warn("config persist failed")
		}
	})
}

// --- broadcast helpers ---

// broadcast sends msg (with a fresh roster) to every joined connection.
func (r *Room) broadcast(msg ServerMessage) {
	msg.Players = r.rosterSnapshot()
	r.connMu.Lock()
	defer r.connMu.Unlock()
	for _, c := range r.conns {
		if c.Joined {
			c.Send(msg)
		}
	}
}

// sendTo delivers msg (with a fresh roster) to a single connection.
func (r *Room) sendTo(c *Connection, msg ServerMessage) {
	msg.Players = r.rosterSnapshot()
	c.Send(msg)
}

// systemChat appends a system line to the transcript and broadcasts it.
func (r *Room) systemChat(text string) models.ChatMessage {
	m := models.ChatMessage{Text: text, System: true, Timestamp: time.Now().Unix()}
	r.chat = append(r.chat, m)
	r.broadcast(ServerMessage{Type: MsgChat, Chat: &m})
	return m
}

// broadcastBoard sends each joined connection its own board view; hidden
// rooms keep the placeholder for viewers who haven't revealed.
func (r *Room) broadcastBoard(seed int64) {
	roster := r.rosterSnapshot()
	r.connMu.Lock()
	defer r.connMu.Unlock()
	for _, c := range r.conns {
		if !c.Joined {
			continue
		}
		cells, hidden := r.boardView(c.PlayerKey)
		c.Send(ServerMessage{
			Type:    MsgSyncBoard,
			Players: roster,
			Board:   cells,
			Hidden:  hidden,
			Seed:    seed,
		})
	}
}
