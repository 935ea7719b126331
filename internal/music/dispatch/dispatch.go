// Package dispatch routes music commands to guild sessions and the
// provider adapters, and turns every outcome into a Reply. It knows
// nothing about the chat transport.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"guild-jukebox/internal/music/resolve"
	"guild-jukebox/internal/music/search"
	"guild-jukebox/internal/music/session"

	"github.com/rs/zerolog"
)

// MaxResults caps a search listing.
const MaxResults = 25

const (
	CmdJoin   = "join"
	CmdLeave  = "leave"
	CmdSearch = "search"
	CmdAdd    = "add"
	CmdPlay   = "play"
	CmdPause  = "pause"
	CmdResume = "resume"
	CmdSkip   = "skip"
	CmdQueue  = "queue"
)

// Catalog searches for tracks by keyword.
type Catalog interface {
	Search(ctx context.Context, keyword string) ([]search.Result, error)
}

// Resolver looks up track metadata by reference.
type Resolver interface {
	Lookup(ctx context.Context, ref string) (resolve.Metadata, error)
}

type Dispatcher struct {
	sessions *session.Registry
	catalog  Catalog
	resolver Resolver
	log      zerolog.Logger
}

func New(sessions *session.Registry, catalog Catalog, resolver Resolver, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		catalog:  catalog,
		resolver: resolver,
		log:      log.With().Str("component", "dispatch").Logger(),
	}
}

// Join creates the guild session and connects it to channelID, the voice
// channel the caller is in. An empty channelID means the caller is not in
// a voice channel. A failed connect leaves no session behind.
func (d *Dispatcher) Join(ctx context.Context, guildID, channelID string) Reply {
	if _, ok := d.sessions.Get(guildID); ok {
		return rejected(CmdJoin, ReasonAlreadyConnected)
	}
	if channelID == "" {
		return rejected(CmdJoin, ReasonNotInChannel)
	}

	s, err := d.sessions.Create(guildID)
	if err != nil {
		return d.sessionError(CmdJoin, err)
	}

	if err := s.Join(ctx, channelID); err != nil {
		var perr *session.ProviderError
		if errors.As(err, &perr) {
			if derr := d.sessions.Discard(s); derr != nil {
				d.log.Warn().Err(derr).Str("guild_id", guildID).Msg("discard after failed join")
			}
		}
		return d.sessionError(CmdJoin, err)
	}
	return success(CmdJoin, "joined voice channel")
}

// Leave destroys the guild session.
func (d *Dispatcher) Leave(guildID string) Reply {
	existed, err := d.sessions.Destroy(guildID)
	if !existed {
		return rejected(CmdLeave, ReasonNotConnected)
	}
	if err != nil {
		return failed(CmdLeave, "left, but releasing the voice connection failed", err)
	}
	return success(CmdLeave, "left voice channel")
}

// Search lists up to MaxResults catalog entries in provider order.
func (d *Dispatcher) Search(ctx context.Context, keyword string) Reply {
	results, err := d.catalog.Search(ctx, keyword)
	switch {
	case errors.Is(err, search.ErrEmptyKeyword):
		return rejected(CmdSearch, ReasonEmptyKeyword)
	case errors.Is(err, search.ErrNotFound):
		return failed(CmdSearch, fmt.Sprintf("no results for %q", keyword), err)
	case err != nil:
		d.log.Warn().Err(err).Str("keyword", keyword).Msg("search failed")
		return failed(CmdSearch, "search failed", err)
	}

	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return Reply{Kind: KindResults, Command: CmdSearch, Keyword: strings.TrimSpace(keyword), Results: results}
}

// Add looks ref up and appends it to the guild queue. Nothing is enqueued
// when the lookup fails.
func (d *Dispatcher) Add(ctx context.Context, guildID, ref string) Reply {
	s, ok := d.sessions.Get(guildID)
	if !ok || s.State() == session.StateIdle {
		return rejected(CmdAdd, ReasonNotConnected)
	}

	meta, err := d.resolver.Lookup(ctx, ref)
	if err != nil {
		if errors.Is(err, resolve.ErrInvalidReference) {
			return rejected(CmdAdd, ReasonInvalidRef)
		}
		d.log.Warn().Err(err).Str("guild_id", guildID).Str("ref", ref).Msg("lookup failed")
		return failed(CmdAdd, "could not look the track up", err)
	}

	if err := s.Enqueue(session.Track{Ref: meta.Ref, Title: meta.Title}); err != nil {
		return d.sessionError(CmdAdd, err)
	}
	r := success(CmdAdd, fmt.Sprintf("added %s to the queue", meta.Title))
	r.Title = meta.Title
	return r
}

// Play starts draining the guild queue. Asynchronous notices go to notify.
func (d *Dispatcher) Play(guildID string, notify session.Notifier) Reply {
	s, ok := d.sessions.Get(guildID)
	if !ok {
		return rejected(CmdPlay, ReasonNotConnected)
	}
	if err := s.Play(notify); err != nil {
		return d.sessionError(CmdPlay, err)
	}
	return success(CmdPlay, "playback started")
}

func (d *Dispatcher) Pause(guildID string) Reply {
	s, ok := d.sessions.Get(guildID)
	if !ok {
		return rejected(CmdPause, ReasonNothingPlaying)
	}
	snap := s.Snapshot()
	if !snap.Playing {
		return rejected(CmdPause, ReasonNothingPlaying)
	}
	if snap.Paused {
		return rejected(CmdPause, ReasonAlreadyPaused)
	}
	if err := s.Pause(); err != nil {
		return d.sessionError(CmdPause, err)
	}
	return success(CmdPause, "paused")
}

func (d *Dispatcher) Resume(guildID string) Reply {
	s, ok := d.sessions.Get(guildID)
	if !ok || !s.Snapshot().Paused {
		return rejected(CmdResume, ReasonNotPaused)
	}
	if err := s.Resume(); err != nil {
		return d.sessionError(CmdResume, err)
	}
	return success(CmdResume, "resumed")
}

func (d *Dispatcher) Skip(guildID string) Reply {
	s, ok := d.sessions.Get(guildID)
	if !ok {
		return rejected(CmdSkip, ReasonNothingPlaying)
	}
	snap := s.Snapshot()
	if !snap.Playing {
		return rejected(CmdSkip, ReasonNothingPlaying)
	}
	if snap.Paused {
		return rejected(CmdSkip, ReasonIsPaused)
	}
	if err := s.Skip(); err != nil {
		return d.sessionError(CmdSkip, err)
	}
	return success(CmdSkip, "skipped")
}

// Queue lists the pending tracks, front first.
func (d *Dispatcher) Queue(guildID string) Reply {
	s, ok := d.sessions.Get(guildID)
	if !ok {
		return rejected(CmdQueue, ReasonNoQueue)
	}
	return Reply{Kind: KindQueue, Command: CmdQueue, Queue: s.Queue()}
}

// sessionError maps a session error to a reply. Precondition errors
// become rejections, provider errors become failures.
func (d *Dispatcher) sessionError(cmd string, err error) Reply {
	switch {
	case errors.Is(err, session.ErrAlreadyExists), errors.Is(err, session.ErrAlreadyConnected):
		return rejected(cmd, ReasonAlreadyConnected)
	case errors.Is(err, session.ErrNotConnected), errors.Is(err, session.ErrDestroyed),
		errors.Is(err, session.ErrNotFound):
		return rejected(cmd, ReasonNotConnected)
	case errors.Is(err, session.ErrAlreadyPlaying):
		return rejected(cmd, ReasonAlreadyPlaying)
	case errors.Is(err, session.ErrQueueEmpty):
		return rejected(cmd, ReasonNothingToPlay)
	case errors.Is(err, session.ErrNothingPlaying):
		return rejected(cmd, ReasonNothingPlaying)
	case errors.Is(err, session.ErrAlreadyPaused):
		return rejected(cmd, ReasonAlreadyPaused)
	case errors.Is(err, session.ErrNotPaused):
		return rejected(cmd, ReasonNotPaused)
	case errors.Is(err, session.ErrPaused):
		return rejected(cmd, ReasonIsPaused)
	}

	d.log.Warn().Err(err).Str("command", cmd).Msg("command failed")
	var perr *session.ProviderError
	if errors.As(err, &perr) {
		return failed(cmd, fmt.Sprintf("%s failed", perr.Op), err)
	}
	return failed(cmd, "command failed", err)
}
