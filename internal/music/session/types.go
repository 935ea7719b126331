// Package session implements the per-guild playback state machine and the
// registry that owns one session per guild.
package session

import "context"

// Track is a queued song reference plus its display title.
type Track struct {
	Ref   string
	Title string
}

// State is the externally observable state of a guild session.
type State int

const (
	StateIdle State = iota
	StateConnected
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// EventKind identifies a lifecycle signal raised by a Player.
type EventKind int

const (
	EventTrackStarted EventKind = iota
	EventTrackFinished
	EventTrackFailed
)

func (k EventKind) String() string {
	switch k {
	case EventTrackStarted:
		return "track_started"
	case EventTrackFinished:
		return "track_finished"
	case EventTrackFailed:
		return "track_failed"
	default:
		return "unknown"
	}
}

// Event is a single-track lifecycle signal. Seq is the sequence number the
// session handed to Player.Play for that track.
type Event struct {
	Kind  EventKind
	Seq   uint64
	Title string
	Err   error
}

// NoticeKind identifies an asynchronous user-facing notification.
type NoticeKind int

const (
	NoticeNowPlaying NoticeKind = iota
	NoticeTrackFailed
	NoticeQueueEmpty
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeNowPlaying:
		return "now_playing"
	case NoticeTrackFailed:
		return "track_failed"
	case NoticeQueueEmpty:
		return "queue_empty"
	default:
		return "unknown"
	}
}

// Notice is emitted by the session while it drives the queue.
type Notice struct {
	Kind  NoticeKind
	Track Track
	Err   error
}

// Notifier receives notices for the session it was bound to by Play.
type Notifier func(Notice)

// Connection is an open voice transport owned by one session.
type Connection interface {
	ChannelID() string
	Disconnect() error
}

// Connector opens voice connections.
type Connector interface {
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Player plays one track at a time over a connection. Play must return
// without waiting for the track; lifecycle events are reported through the
// emit function given to the PlayerFactory. Stop cancels the current track
// and must not raise any event for it. No method may block on event delivery.
type Player interface {
	Play(seq uint64, t Track) error
	Pause() error
	Resume() error
	Stop()
}

// PlayerFactory creates a Player bound to conn.
type PlayerFactory func(conn Connection, emit func(Event)) (Player, error)
