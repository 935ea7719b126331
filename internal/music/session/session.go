package session

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const eventBuffer = 16

// Session is the playback state of one guild: the voice connection, the
// active player, the queue and the playing/paused flags.
type Session struct {
	mu sync.Mutex

	id        string
	guildID   string
	connector Connector
	newPlayer PlayerFactory
	log       zerolog.Logger

	conn    Connection
	joining bool
	player  Player
	queue   []Track
	current *Track
	seq     uint64
	playing bool
	paused  bool
	notify  Notifier

	destroyed bool
	events    chan Event
	pending   []pendingNotice
	wake      chan struct{}
	done      chan struct{}
}

// pendingNotice keeps the notifier that was bound when the notice was
// produced.
type pendingNotice struct {
	notify Notifier
	notice Notice
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID        string
	GuildID   string
	State     State
	Connected bool
	HasPlayer bool
	Playing   bool
	Paused    bool
	Current   *Track
	Queue     []Track
}

func newSession(guildID string, connector Connector, newPlayer PlayerFactory, log zerolog.Logger) *Session {
	id := uuid.NewString()
	s := &Session{
		id:        id,
		guildID:   guildID,
		connector: connector,
		newPlayer: newPlayer,
		log:       log.With().Str("guild_id", guildID).Str("session_id", id).Logger(),
		events:    make(chan Event, eventBuffer),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// ID returns the instance identifier.
func (s *Session) ID() string { return s.id }

// GuildID returns the guild this session belongs to.
func (s *Session) GuildID() string { return s.guildID }

// Join opens the voice connection. The session lock is not held while the
// connector is awaited; a concurrent Join on the same instance is rejected.
func (s *Session) Join(ctx context.Context, channelID string) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.conn != nil || s.joining {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.joining = true
	s.mu.Unlock()

	conn, err := s.connector.Connect(ctx, s.guildID, channelID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.joining = false

	if err != nil {
		s.log.Warn().Err(err).Str("channel_id", channelID).Msg("voice connect failed")
		return &ProviderError{Op: "connect", Err: err}
	}
	if s.destroyed {
		if derr := conn.Disconnect(); derr != nil {
			s.log.Warn().Err(derr).Msg("disconnect after destroy failed")
		}
		return ErrDestroyed
	}

	s.conn = conn
	s.log.Info().Str("channel_id", channelID).Msg("joined voice channel")
	return nil
}

// Enqueue appends t to the queue. It is allowed in every live state.
func (s *Session) Enqueue(t Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return ErrDestroyed
	}
	s.queue = append(s.queue, t)
	s.log.Debug().Str("ref", t.Ref).Int("queue_len", len(s.queue)).Msg("track enqueued")
	return nil
}

// Play creates a player on the open connection and starts draining the
// queue. Notices produced while the queue is driven go to notify.
func (s *Session) Play(notify Notifier) error {
	s.mu.Lock()

	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.playing {
		s.mu.Unlock()
		return ErrAlreadyPlaying
	}
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return ErrQueueEmpty
	}

	p, err := s.newPlayer(s.conn, s.emit)
	if err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("create player failed")
		return &ProviderError{Op: "player", Err: err}
	}

	s.player = p
	s.playing = true
	s.paused = false
	s.notify = notify
	s.log.Info().Int("queue_len", len(s.queue)).Msg("playback started")

	s.postLocked(s.advanceLocked())
	s.mu.Unlock()
	return nil
}

// Pause pauses the current track.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return ErrDestroyed
	}
	if !s.playing {
		return ErrNothingPlaying
	}
	if s.paused {
		return ErrAlreadyPaused
	}
	if err := s.player.Pause(); err != nil {
		return &ProviderError{Op: "pause", Err: err}
	}
	s.paused = true
	s.log.Info().Msg("playback paused")
	return nil
}

// Resume resumes a paused track.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return ErrDestroyed
	}
	if !s.paused {
		return ErrNotPaused
	}
	if err := s.player.Resume(); err != nil {
		return &ProviderError{Op: "resume", Err: err}
	}
	s.paused = false
	s.log.Info().Msg("playback resumed")
	return nil
}

// Skip stops the current track and moves on to the next queued one, or to
// the connected state when the queue is exhausted.
func (s *Session) Skip() error {
	s.mu.Lock()

	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if !s.playing {
		s.mu.Unlock()
		return ErrNothingPlaying
	}
	if s.paused {
		s.mu.Unlock()
		return ErrPaused
	}

	s.player.Stop()
	if s.current != nil {
		s.log.Info().Str("ref", s.current.Ref).Msg("track skipped")
	}
	s.postLocked(s.advanceLocked())
	s.mu.Unlock()
	return nil
}

// Close tears the session down: the player is stopped, the connection is
// released and the queue is dropped. Close is safe in every state and only
// the first call has an effect.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return nil
	}
	s.destroyed = true
	s.stopPlaybackLocked()
	s.queue = nil
	s.notify = nil
	s.pending = nil
	close(s.done)

	var err error
	if s.conn != nil {
		if derr := s.conn.Disconnect(); derr != nil {
			err = &ProviderError{Op: "disconnect", Err: derr}
		}
		s.conn = nil
	}

	s.log.Info().Err(err).Msg("session closed")
	return err
}

// State reports the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Queue returns a copy of the pending tracks, front first.
func (s *Session) Queue() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.queue)
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.id,
		GuildID:   s.guildID,
		State:     s.stateLocked(),
		Connected: s.conn != nil,
		HasPlayer: s.player != nil,
		Playing:   s.playing,
		Paused:    s.paused,
		Queue:     slices.Clone(s.queue),
	}
	if s.current != nil {
		cur := *s.current
		snap.Current = &cur
	}
	return snap
}

func (s *Session) stateLocked() State {
	switch {
	case s.destroyed || s.conn == nil:
		return StateIdle
	case s.paused:
		return StatePaused
	case s.playing:
		return StatePlaying
	default:
		return StateConnected
	}
}

// advanceLocked pops the queue until a track is handed to the player or the
// queue runs out. Tracks the player refuses synchronously are reported and
// passed over. Every new track starts unpaused, as the player starts it.
func (s *Session) advanceLocked() []Notice {
	var notices []Notice
	for {
		next, rest, ok := nextTrack(s.queue)
		if !ok {
			s.stopPlaybackLocked()
			s.log.Info().Msg("queue exhausted")
			return append(notices, Notice{Kind: NoticeQueueEmpty})
		}

		s.queue = rest
		s.seq++
		s.current = &next
		s.paused = false

		if err := s.player.Play(s.seq, next); err != nil {
			s.log.Warn().Err(err).Str("ref", next.Ref).Msg("player refused track")
			notices = append(notices, Notice{Kind: NoticeTrackFailed, Track: next, Err: err})
			continue
		}
		s.log.Debug().Str("ref", next.Ref).Uint64("seq", s.seq).Msg("track handed to player")
		return notices
	}
}

func (s *Session) stopPlaybackLocked() {
	if s.player != nil {
		s.player.Stop()
	}
	s.player = nil
	s.current = nil
	s.playing = false
	s.paused = false
	s.seq++
}

// emit is handed to the player. It never blocks past session teardown.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// postLocked queues notices for the run loop, so they reach the notifier
// in the order they were produced whichever goroutine produced them.
func (s *Session) postLocked(notices []Notice) {
	if s.notify == nil || len(notices) == 0 {
		return
	}
	for _, n := range notices {
		s.pending = append(s.pending, pendingNotice{notify: s.notify, notice: n})
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) run() {
	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
			s.flush()
		case <-s.wake:
			s.flush()
		case <-s.done:
			return
		}
	}
}

func (s *Session) flush() {
	s.mu.Lock()
	out := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, p := range out {
		p.notify(p.notice)
	}
}

func (s *Session) handle(ev Event) {
	s.mu.Lock()

	if s.destroyed || !s.playing || ev.Seq != s.seq || s.current == nil {
		s.mu.Unlock()
		s.log.Debug().Stringer("kind", ev.Kind).Uint64("seq", ev.Seq).Msg("stale event ignored")
		return
	}

	var notices []Notice
	switch ev.Kind {
	case EventTrackStarted:
		if s.current.Title == "" && ev.Title != "" {
			s.current.Title = ev.Title
		}
		s.log.Info().Str("ref", s.current.Ref).Str("title", s.current.Title).Msg("now playing")
		notices = append(notices, Notice{Kind: NoticeNowPlaying, Track: *s.current})
	case EventTrackFinished:
		notices = s.advanceLocked()
	case EventTrackFailed:
		s.log.Warn().Err(ev.Err).Str("ref", s.current.Ref).Msg("track failed")
		notices = append(notices, Notice{Kind: NoticeTrackFailed, Track: *s.current, Err: ev.Err})
		notices = append(notices, s.advanceLocked()...)
	}
	s.postLocked(notices)
	s.mu.Unlock()
}
