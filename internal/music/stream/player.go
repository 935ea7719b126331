package stream

import (
	"context"
	"errors"
	"sync"

	"guild-jukebox/internal/music/resolve"
	"guild-jukebox/internal/music/session"

	"github.com/rs/zerolog"
)

// Resolver turns a track reference into playable audio.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (*resolve.Audio, error)
}

// Player plays one track at a time on a Sink and reports progress through
// emit. Every method returns without waiting for the audio goroutine.
type Player struct {
	resolver   Resolver
	decoder    Decoder
	newEncoder func() (Encoder, error)
	sink       Sink
	emit       func(session.Event)
	log        zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	active bool
	paused bool
	gate   chan struct{}
}

func NewPlayer(resolver Resolver, decoder Decoder, sink Sink, emit func(session.Event), log zerolog.Logger) *Player {
	return &Player{
		resolver:   resolver,
		decoder:    decoder,
		newEncoder: newOpusEncoder,
		sink:       sink,
		emit:       emit,
		log:        log,
	}
}

// NewFactory returns a session.PlayerFactory building players on
// connections that implement Sink.
func NewFactory(resolver Resolver, decoder Decoder, log zerolog.Logger) session.PlayerFactory {
	log = log.With().Str("component", "stream").Logger()
	return func(conn session.Connection, emit func(session.Event)) (session.Player, error) {
		sink, ok := conn.(Sink)
		if !ok {
			return nil, ErrNoSink
		}
		return NewPlayer(resolver, decoder, sink, emit, log.With().Str("channel_id", conn.ChannelID()).Logger()), nil
	}
}

// Play stops whatever is playing and starts t. Progress is reported with
// seq attached.
func (p *Player) Play(seq uint64, t session.Track) error {
	if t.Ref == "" {
		return resolve.ErrInvalidReference
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	p.gen++
	p.cancel = cancel
	p.active = true
	p.paused = false
	p.gate = make(chan struct{})
	close(p.gate)

	go p.run(ctx, p.gen, seq, t)
	return nil
}

// Pause holds the frame pump until Resume.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return ErrNoTrack
	}
	if p.paused {
		return nil
	}
	p.paused = true
	p.gate = make(chan struct{})
	if err := p.sink.Speaking(false); err != nil {
		p.log.Debug().Err(err).Msg("speaking off failed")
	}
	return nil
}

func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return ErrNoTrack
	}
	if !p.paused {
		return nil
	}
	p.paused = false
	close(p.gate)
	if err := p.sink.Speaking(true); err != nil {
		p.log.Debug().Err(err).Msg("speaking on failed")
	}
	return nil
}

// Stop cancels the current track. A stopped track raises no event.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.active = false
	p.paused = false
}

func (p *Player) wait(ctx context.Context) error {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()

	select {
	case <-gate:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Player) run(ctx context.Context, gen, seq uint64, t session.Track) {
	log := p.log.With().Str("ref", t.Ref).Uint64("seq", seq).Logger()

	frames, err := p.play(ctx, seq, t, log)
	if ctx.Err() != nil {
		log.Debug().Int("frames", frames).Msg("track stopped")
		return
	}

	p.mu.Lock()
	if p.gen == gen {
		p.active = false
		p.paused = false
		p.cancel = nil
	}
	p.mu.Unlock()

	if err == nil && frames == 0 {
		err = ErrNoAudio
	}
	if err != nil {
		log.Warn().Err(err).Int("frames", frames).Msg("track failed")
		p.emit(session.Event{Kind: session.EventTrackFailed, Seq: seq, Err: err})
		return
	}

	log.Debug().Int("frames", frames).Msg("track finished")
	p.emit(session.Event{Kind: session.EventTrackFinished, Seq: seq})
}

func (p *Player) play(ctx context.Context, seq uint64, t session.Track, log zerolog.Logger) (int, error) {
	audio, err := p.resolver.Resolve(ctx, t.Ref)
	if err != nil {
		return 0, err
	}

	pcm, err := p.decoder.Decode(ctx, audio)
	if err != nil {
		if audio.Body != nil {
			audio.Body.Close()
		}
		return 0, err
	}
	defer pcm.Close()

	enc, err := p.newEncoder()
	if err != nil {
		return 0, err
	}

	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	title := t.Title
	if title == "" {
		title = audio.Title
	}
	log.Info().Str("title", title).Msg("streaming track")
	p.emit(session.Event{Kind: session.EventTrackStarted, Seq: seq, Title: title})

	if err := p.sink.Speaking(true); err != nil {
		log.Debug().Err(err).Msg("speaking on failed")
	}
	defer func() {
		if err := p.sink.Speaking(false); err != nil && !errors.Is(err, context.Canceled) {
			log.Debug().Err(err).Msg("speaking off failed")
		}
	}()

	return pump(ctx, pcm, enc, p.sink, p.wait)
}
