// internal/race/race.go
//
// Uniform interface to a race-timing service. The room only ever holds the
// Adapter interface; whether timing is an in-process timer or an external
// coordination service is invisible to callers.
package race

import (
	"context"
	"time"
)

// Player statuses reported by an adapter.
const (
	StatusEntered  = "entered"
	StatusReady    = "ready"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// PlayerStatus is one player's view of the race.
type PlayerStatus struct {
	Status     string     `json:"status"`
	FinishTime *time.Time `json:"finishTime,omitempty"`
}

// Adapter is the race contract the room depends on. The boolean results
// report whether the underlying service accepted the transition; an error
// means the adapter couldn't reach the service at all.
type Adapter interface {
	Connect(ctx context.Context, url string) error
	Disconnect() error

	JoinPlayer(ctx context.Context, key string) (bool, error)
	LeavePlayer(ctx context.Context, key string) (bool, error)
	ReadyPlayer(ctx context.Context, key string) (bool, error)
	UnreadyPlayer(ctx context.Context, key string) (bool, error)

	// Refresh re-pulls external state. It is externally triggered, never
	// polled by the room.
	Refresh(ctx context.Context) error

	GetPlayer(key string) (PlayerStatus, bool)
	GetStartTime() (time.Time, bool)
	GetEndTime() (time.Time, bool)

	StartTimer(ctx context.Context) error

	PlayerFinished(ctx context.Context, key string) (bool, error)
	PlayerUnfinished(ctx context.Context, key string) (bool, error)
	AllPlayersFinished() bool
	AllPlayersNotFinished() bool
}

// Kind discriminates adapter construction; rooms rebuild their adapter
// through a factory instead of branching on concrete types.
const (
	KindLocal  = "local"
	KindRemote = "remote"
)

// New builds an adapter of the given kind. Remote adapters still need
// Connect before use.
func New(kind string) Adapter {
	if kind == KindRemote {
		return NewRemoteAdapter()
	}
	return NewLocalAdapter()
}

var (
	_ Adapter = (*LocalAdapter)(nil)
	_ Adapter = (*RemoteAdapter)(nil)
)
