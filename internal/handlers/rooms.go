// internal/handlers/rooms.go
//
// HTTP endpoints for room lifecycle: creation and token minting. Everything
// in-match goes over the WebSocket gateway instead.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/speedbingo/bingo-service/internal/auth"
	"github.com/speedbingo/bingo-service/internal/cache"
	"github.com/speedbingo/bingo-service/internal/database"
	"github.com/speedbingo/bingo-service/internal/generator"
	"github.com/speedbingo/bingo-service/internal/models"
	"github.com/speedbingo/bingo-service/internal/room"
)

type createRoomRequest struct {
	Slug          string           `json:"slug,omitempty"`
	Name          string           `json:"name"`
	GameSlug      string           `json:"gameSlug"`
	Password      string           `json:"password,omitempty"`
	HideCard      bool             `json:"hideCard,omitempty"`
	WinMode       string           `json:"winMode,omitempty"`
	LineThreshold int              `json:"lineThreshold,omitempty"`
	RaceEligible  bool             `json:"raceEligible,omitempty"`
	RaceKind      string           `json:"raceKind,omitempty"`
	RaceURL       string           `json:"raceUrl,omitempty"`
	Config        generator.Config `json:"config"`
}

type createRoomResponse struct {
	ID   uuid.UUID `json:"id"`
	Slug string    `json:"slug"`
	Seed int64     `json:"seed"`
}

// CreateRoomHandler builds a room from scratch: loads the game's goal pool,
// runs the first generation, persists the room row, and registers the live
// room. A generation failure fails the whole request.
func CreateRoomHandler(logger *logrus.Logger, reg *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.GameSlug == "" {
			http.Error(w, "gameSlug is required", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		pool, err := database.FetchGoalPool(ctx, req.GameSlug)
		if err != nil {
			logger.WithError(err).Warn("goal pool fetch failed")
			http.Error(w, "failed to load goal pool", http.StatusInternalServerError)
			return
		}
		if len(pool) == 0 {
			http.Error(w, "unknown game or empty goal pool", http.StatusBadRequest)
			return
		}
		categories, err := database.FetchCategories(ctx, req.GameSlug)
		if err != nil {
			logger.WithError(err).Warn("category fetch failed")
			http.Error(w, "failed to load categories", http.StatusInternalServerError)
			return
		}
		variantList, err := database.ListVariants(ctx, req.GameSlug)
		if err != nil {
			logger.WithError(err).Warn("variant fetch failed")
			http.Error(w, "failed to load variants", http.StatusInternalServerError)
			return
		}
		variants := make(map[string]*models.Variant, len(variantList))
		for i := range variantList {
			variants[variantList[i].Name] = &variantList[i]
		}

		settings := models.RoomSettings{
			ID:            uuid.New(),
			Slug:          req.Slug,
			Name:          req.Name,
			GameSlug:      req.GameSlug,
			Password:      req.Password,
			HideCard:      req.HideCard,
			WinMode:       req.WinMode,
			LineThreshold: req.LineThreshold,
			RaceEligible:  req.RaceEligible,
		}
		if settings.Slug == "" {
			settings.Slug = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		}
		if settings.WinMode == "" {
			settings.WinMode = models.WinModeLines
		}
		if settings.LineThreshold < 1 {
			settings.LineThreshold = 1
		}

		rm, err := room.New(room.Options{
			Settings:      settings,
			Config:        req.Config,
			Pool:          pool,
			Categories:    categories,
			Variants:      variants,
			Logger:        logger,
			RaceKind:      req.RaceKind,
			RaceURL:       req.RaceURL,
			Publish:       cache.PublishRoomAction,
			PersistBoard:  database.SaveBoard,
			PersistConfig: database.UpdateRoomConfig,
			OnClose:       func(closed *room.Room) { reg.Remove(closed.Slug()) },
		})
		if err != nil {
			http.Error(w, "card generation failed: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}

		cfg := req.Config
		cfg.Seed = rm.Seed()
		if err := database.InsertRoom(ctx, settings, cfg); err != nil {
			rm.Close()
			logger.WithError(err).Warn("room insert failed")
			http.Error(w, "failed to persist room", http.StatusInternalServerError)
			return
		}
		if err := reg.Add(rm); err != nil {
			rm.Close()
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		logger.WithFields(logrus.Fields{
			"room": settings.Slug,
			"game": settings.GameSlug,
		}).Info("room created")
		writeJSON(w, http.StatusCreated, createRoomResponse{
			ID:   settings.ID,
			Slug: settings.Slug,
			Seed: rm.Seed(),
		})
	}
}

type authorizeRequest struct {
	Password  string `json:"password,omitempty"`
	PlayerKey string `json:"playerKey,omitempty"`
	Spectator bool   `json:"spectator,omitempty"`
	Monitor   bool   `json:"monitor,omitempty"`
}

type authorizeResponse struct {
	Token     string `json:"token"`
	PlayerKey string `json:"playerKey"`
}

// AuthorizeRoomHandler mints an access token for /rooms/{slug}/authorize.
// The room is rehydrated if it only exists in the database.
func AuthorizeRoomHandler(logger *logrus.Logger, reg *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		slug := pathSegment(r.URL.Path, "/rooms/", "/authorize")
		if slug == "" {
			http.Error(w, "missing room slug", http.StatusBadRequest)
			return
		}
		var req authorizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		rm, err := reg.GetOrLoad(r.Context(), slug)
		if err != nil {
			if errors.Is(err, room.ErrRoomNotFound) {
				http.Error(w, "room not found", http.StatusNotFound)
				return
			}
			logger.WithError(err).WithField("room", slug).Warn("room load failed")
			http.Error(w, "failed to load room", http.StatusInternalServerError)
			return
		}

		var accountID *uuid.UUID
		if claims, err := auth.ParseToken(bearerToken(r)); err == nil {
			accountID = claims.AccountID
		}

		token, claims, err := rm.Authorize(room.AuthorizeRequest{
			Password:    req.Password,
			PlayerKey:   req.PlayerKey,
			Spectator:   req.Spectator,
			WantMonitor: req.Monitor,
			AccountID:   accountID,
		})
		if err != nil {
			if errors.Is(err, room.ErrBadPassword) {
				http.Error(w, "incorrect password", http.StatusForbidden)
				return
			}
			logger.WithError(err).WithField("room", slug).Warn("authorize failed")
			http.Error(w, "authorization failed", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, authorizeResponse{
			Token:     token,
			PlayerKey: claims.PlayerKey,
		})
	}
}

// VariantsHandler serves named difficulty variants for a game:
// GET lists (or fetches one by ?name=), PUT upserts.
func VariantsHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameSlug := pathSegment(r.URL.Path, "/games/", "/variants")
		if gameSlug == "" {
			http.Error(w, "missing game slug", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodGet:
			if name := r.URL.Query().Get("name"); name != "" {
				v, err := database.FetchVariant(r.Context(), gameSlug, name)
				if err != nil {
					http.Error(w, "variant not found", http.StatusNotFound)
					return
				}
				writeJSON(w, http.StatusOK, v)
				return
			}
			list, err := database.ListVariants(r.Context(), gameSlug)
			if err != nil {
				logger.WithError(err).Warn("variant list failed")
				http.Error(w, "failed to list variants", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPut:
			var v models.Variant
			if err := json.NewDecoder(r.Body).Decode(&v); err != nil || v.Name == "" {
				http.Error(w, "invalid variant body", http.StatusBadRequest)
				return
			}
			if err := database.UpsertVariant(r.Context(), gameSlug, v); err != nil {
				logger.WithError(err).Warn("variant upsert failed")
				http.Error(w, "failed to store variant", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, v)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// RoomRouter dispatches the /rooms/{slug}/... subpaths.
func RoomRouter(logger *logrus.Logger, reg *room.Registry) http.HandlerFunc {
	authorize := AuthorizeRoomHandler(logger, reg)
	ws := RoomWSHandler(logger, reg)
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/authorize"):
			authorize(w, r)
		case strings.HasSuffix(r.URL.Path, "/ws"):
			ws(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

// pathSegment extracts the middle segment of prefix{seg}suffix paths.
func pathSegment(path, prefix, suffix string) string {
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return ""
	}
	seg := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if strings.Contains(seg, "/") {
		return ""
	}
	return seg
}

// bearerToken pulls the Authorization bearer token, empty when absent.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	return strings.TrimPrefix(h, "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
