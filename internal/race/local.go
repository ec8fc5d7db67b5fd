// internal/race/local.go
package race

import (
	"context"
	"sync"
	"time"
)

// LocalAdapter is an in-process race timer: it tracks entrants, a shared
// start time, and per-player finish times without any external service.
type LocalAdapter struct {
	mu        sync.Mutex
	players   map[string]*PlayerStatus
	startTime time.Time
	endTime   time.Time
}

func NewLocalAdapter() *LocalAdapter {
	return &LocalAdapter{players: make(map[string]*PlayerStatus)}
}

// Connect is a no-op for the local variant; there is nothing to reach.
func (a *LocalAdapter) Connect(ctx context.Context, url string) error { return nil }

func (a *LocalAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.players = make(map[string]*PlayerStatus)
	a.startTime = time.Time{}
	a.endTime = time.Time{}
	return nil
}

func (a *LocalAdapter) JoinPlayer(ctx context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.players[key]; ok {
		return false, nil
	}
	a.players[key] = &PlayerStatus{Status: StatusEntered}
	return true, nil
}

func (a *LocalAdapter) LeavePlayer(ctx context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.players[key]; !ok {
		return false, nil
	}
	delete(a.players, key)
	return true, nil
}

func (a *LocalAdapter) ReadyPlayer(ctx context.Context, key string) (bool, error) {
	return a.setStatus(key, StatusEntered, StatusReady)
}

func (a *LocalAdapter) UnreadyPlayer(ctx context.Context, key string) (bool, error) {
	return a.setStatus(key, StatusReady, StatusEntered)
}

func (a *LocalAdapter) setStatus(key, from, to string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.players[key]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	return true, nil
}

// Refresh has no external state to pull.
func (a *LocalAdapter) Refresh(ctx context.Context) error { return nil }

func (a *LocalAdapter) GetPlayer(key string) (PlayerStatus, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.players[key]
	if !ok {
		return PlayerStatus{}, false
	}
	return *p, true
}

func (a *LocalAdapter) GetStartTime() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startTime, !a.startTime.IsZero()
}

func (a *LocalAdapter) GetEndTime() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.endTime, !a.endTime.IsZero()
}

// StartTimer flips every ready entrant to playing and stamps the start time.
func (a *LocalAdapter) StartTimer(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startTime = time.Now()
	a.endTime = time.Time{}
	for _, p := range a.players {
		p.Status = StatusPlaying
		p.FinishTime = nil
	}
	return nil
}

func (a *LocalAdapter) PlayerFinished(ctx context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.players[key]
	if !ok || p.Status != StatusPlaying {
		return false, nil
	}
	now := time.Now()
	p.Status = StatusFinished
	p.FinishTime = &now
	if a.allFinishedLocked() {
		a.endTime = now
	}
	return true, nil
}

func (a *LocalAdapter) PlayerUnfinished(ctx context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.players[key]
	if !ok || p.Status != StatusFinished {
		return false, nil
	}
	p.Status = StatusPlaying
	p.FinishTime = nil
	a.endTime = time.Time{}
	return true, nil
}

func (a *LocalAdapter) AllPlayersFinished() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allFinishedLocked()
}

func (a *LocalAdapter) AllPlayersNotFinished() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.players {
		if p.Status == StatusFinished {
			return false
		}
	}
	return true
}

func (a *LocalAdapter) allFinishedLocked() bool {
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
