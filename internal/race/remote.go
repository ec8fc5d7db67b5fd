// internal/race/remote.go
package race

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// RemoteAdapter fronts an external racing-coordination service with a small
// JSON-over-HTTP client. State queries answer from the snapshot pulled by the
// last Refresh, so the room never blocks on the network for reads.
type RemoteAdapter struct {
	mu       sync.Mutex
	client   *http.Client
	baseURL  string
	players  map[string]PlayerStatus
	startAt  time.Time
	finishAt time.Time
}

func NewRemoteAdapter() *RemoteAdapter {
	return &RemoteAdapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		players: make(map[string]PlayerStatus),
	}
}

type remoteState struct {
	Players   map[string]PlayerStatus `json:"players"`
	StartTime *time.Time              `json:"startTime,omitempty"`
	EndTime   *time.Time              `json:"endTime,omitempty"`
}

type remoteCommand struct {
	Action string `json:"action"`
	Player string `json:"player,omitempty"`
}

type remoteResult struct {
	OK bool `json:"ok"`
}

func (a *RemoteAdapter) Connect(ctx context.Context, url string) error {
	a.mu.Lock()
	a.baseURL = url
	a.mu.Unlock()
	return a.Refresh(ctx)
}

func (a *RemoteAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.baseURL = ""
	a.players = make(map[string]PlayerStatus)
	a.startAt = time.Time{}
	a.finishAt = time.Time{}
	return nil
}

func (a *RemoteAdapter) post(ctx context.Context, cmd remoteCommand) (bool, error) {
	a.mu.Lock()
	url := a.baseURL
	a.mu.Unlock()
	if url == "" {
		return false, fmt.Errorf("race adapter not connected")
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/command", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("race command %s: %w", cmd.Action, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("race command %s: status %d", cmd.Action, resp.StatusCode)
	}

	var res remoteResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return false, err
	}
	return res.OK, nil
}

func (a *RemoteAdapter) JoinPlayer(ctx context.Context, key string) (bool, error) {
	return a.post(ctx, remoteCommand{Action: "join", Player: key})
}

func (a *RemoteAdapter) LeavePlayer(ctx context.Context, key string) (bool, error) {
	return a.post(ctx, remoteCommand{Action: "leave", Player: key})
}

func (a *RemoteAdapter) ReadyPlayer(ctx context.Context, key string) (bool, error) {
	return a.post(ctx, remoteCommand{Action: "ready", Player: key})
}

func (a *RemoteAdapter) UnreadyPlayer(ctx context.Context, key string) (bool, error) {
	return a.post(ctx, remoteCommand{Action: "unready", Player: key})
}

func (a *RemoteAdapter) PlayerFinished(ctx context.Context, key string) (bool, error) {
	return a.post(ctx, remoteCommand{Action: "finish", Player: key})
}

func (a *RemoteAdapter) PlayerUnfinished(ctx context.Context, key string) (bool, error) {
	return a.post(ctx, remoteCommand{Action: "unfinish", Player: key})
}

func (a *RemoteAdapter) StartTimer(ctx context.Context) error {
	_, err := a.post(ctx, remoteCommand{Action: "start"})
	return err
}

// Refresh pulls the full race state snapshot.
func (a *RemoteAdapter) Refresh(ctx context.Context) error {
	a.mu.Lock()
	url := a.baseURL
	a.mu.Unlock()
	if url == "" {
		return fmt.Errorf("race adapter not connected")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/state", nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("race refresh: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("race refresh: status %d", resp.StatusCode)
	}

	var state remoteState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.players = state.Players
	if a.players == nil {
		a.players = make(map[string]PlayerStatus)
	}
	a.startAt, a.finishAt = time.Time{}, time.Time{}
	if state.StartTime != nil {
		a.startAt = *state.StartTime
	}
	if state.EndTime != nil {
		a.finishAt = *state.EndTime
	}
	return nil
}

func (a *RemoteAdapter) GetPlayer(key string) (PlayerStatus, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.players[key]
	return p, ok
}

func (a *RemoteAdapter) GetStartTime() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startAt, !a.startAt.IsZero()
}

func (a *RemoteAdapter) GetEndTime() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finishAt, !a.finishAt.IsZero()
}

func (a *RemoteAdapter) AllPlayersFinished() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.players) == 0 {
		return false
	}
	for _, p := range a.players {
		if p.Status != StatusFinished {
			return false
		}
	}
	return true
}

func (a *RemoteAdapter) AllPlayersNotFinished() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.players {
		if p.Status == StatusFinished {
			return false
		}
	}
	return true
}
