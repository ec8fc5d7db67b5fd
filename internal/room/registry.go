// internal/room/registry.go
package room

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/speedbingo/bingo-service/internal/cache"
	"github.com/speedbingo/bingo-service/internal/database"
	"github.com/speedbingo/bingo-service/internal/models"
)

// ErrRoomNotFound reports a slug with neither a live room nor a persisted row.
var ErrRoomNotFound = errors.New("room not found")

// Registry maps slugs to live rooms. It is an explicit dependency handed to
// the HTTP layer, never a package global, so tests can run isolated
// registries side by side.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	logger *logrus.Logger
}

func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		rooms:  make(map[string]*Room),
		logger: logger,
	}
}

// Get returns the live room for slug, or nil.
func (reg *Registry) Get(slug string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[slug]
}

// Add registers a freshly created room and starts its loop. Fails when the
// slug is already live.
func (reg *Registry) Add(r *Room) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[r.Slug()]; ok {
		return fmt.Errorf("room slug %q already live", r.Slug())
	}
	reg.rooms[r.Slug()] = r
	r.Start()
	return nil
}

// Remove drops a room from the map. Called from the room's OnClose hook.
func (reg *Registry) Remove(slug string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, slug)
}

// CloseAll shuts every live room down, for server shutdown.
func (reg *Registry) CloseAll() {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.Unlock()
	for _, r := range rooms {
		r.Close()
	}
}

// GetOrLoad returns the live room for slug, rehydrating it from the database
// when only a persisted row exists. Concurrent loads of the same slug are
// serialized by the registry lock; the loser reuses the winner's room.
func (reg *Registry) GetOrLoad(ctx context.Context, slug string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[slug]; ok {
		return r, nil
	}

	r, err := reg.rehydrate(ctx, slug)
	if err != nil {
		return nil, err
	}
	reg.rooms[slug] = r
	r.Start()
	return r, nil
}

// rehydrate rebuilds a room from its persisted row, board, and audit trail.
func (reg *Registry) rehydrate(ctx context.Context, slug string) (*Room, error) {
	settings, cfg, err := database.LoadRoom(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	board, err := database.LoadBoard(ctx, settings.ID)
	if err != nil {
		return nil, err
	}

	pool, err := database.FetchGoalPool(ctx, settings.GameSlug)
	if err != nil {
		return nil, err
	}
	categories, err := database.FetchCategories(ctx, settings.GameSlug)
	if err != nil {
		return nil, err
	}
	variantList, err := database.ListVariants(ctx, settings.GameSlug)
	if err != nil {
		return nil, err
	}
	variants := make(map[string]*models.Variant, len(variantList))
	for i := range variantList {
		variants[variantList[i].Name] = &variantList[i]
	}

	lastIndex, err := database.LastAuditIndex(ctx, settings.ID)
	if err != nil {
		return nil, err
	}

	r, err := New(Options{
		Settings:    *settings,
		Config:      *cfg,
		Pool:        pool,
		Categories:  categories,
		Variants:    variants,
		Logger:      reg.logger,
		Board:       board,
		ActionIndex: lastIndex,
		Publish:       cache.PublishRoomAction,
		PersistBoard:  database.SaveBoard,
		PersistConfig: database.UpdateRoomConfig,
		OnClose:       func(closed *Room) { reg.Remove(closed.Slug()) },
	})
	if err != nil {
		return nil, fmt.Errorf("rehydrate room %q: %w", slug, err)
	}

	entries, err := database.ReplayAuditEntries(ctx, settings.ID)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		r.ReplayAction(e.ActionType, e.PlayerKey, e.Payload)
	}

	reg.logger.WithFields(logrus.Fields{
		"room":    slug,
		"actions": len(entries),
	}).Info("room rehydrated")
	return r, nil
}
