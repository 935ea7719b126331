package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"guild-jukebox/internal/music/resolve"
	"guild-jukebox/internal/music/session"

	"github.com/rs/zerolog"
)

type fakeResolver struct {
	err error
}

func (r *fakeResolver) Resolve(ctx context.Context, ref string) (*resolve.Audio, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &resolve.Audio{Metadata: resolve.Metadata{Ref: ref, Title: "resolved " + ref}, URL: "http://audio/" + ref}, nil
}

type fakeDecoder struct {
	frames  int // PCM frames to produce; ignored when endless
	endless bool
	err     error
}

func (d *fakeDecoder) Decode(ctx context.Context, audio *resolve.Audio) (io.ReadCloser, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.endless {
		return io.NopCloser(zeroReader{}), nil
	}
	return io.NopCloser(bytes.NewReader(make([]byte, d.frames*pcmFrameBytes))), nil
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	time.Sleep(time.Millisecond)
	clear(p)
	return len(p), nil
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error) {
	return []byte{0xf8, 0xff, 0xfe}, nil
}

type fakeSink struct {
	mu       sync.Mutex
	frames   int
	speaking bool
}

func (s *fakeSink) Speaking(b bool) error {
	s.mu.Lock()
	s.speaking = b
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) SendOpus(ctx context.Context, frame []byte) error {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func newTestPlayer(r Resolver, d Decoder, sink Sink) (*Player, chan session.Event) {
	events := make(chan session.Event, 8)
	p := NewPlayer(r, d, sink, func(ev session.Event) { events <- ev }, zerolog.Nop())
	p.newEncoder = func() (Encoder, error) { return fakeEncoder{}, nil }
	return p, events
}

func nextEvent(t *testing.T, events <-chan session.Event) session.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return session.Event{}
	}
}

func noEvent(t *testing.T, events <-chan session.Event) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPlayer_PlaysToEnd(t *testing.T) {
	sink := &fakeSink{}
	p, events := newTestPlayer(&fakeResolver{}, &fakeDecoder{frames: 5}, sink)

	if err := p.Play(3, session.Track{Ref: "abc"}); err != nil {
		t.Fatalf("Play: %v", err)
	}

	ev := nextEvent(t, events)
	if ev.Kind != session.EventTrackStarted || ev.Seq != 3 || ev.Title != "resolved abc" {
		t.Errorf("unexpected start event %+v", ev)
	}
	ev = nextEvent(t, events)
	if ev.Kind != session.EventTrackFinished || ev.Seq != 3 {
		t.Errorf("unexpected end event %+v", ev)
	}
	if sink.count() != 5 {
		t.Errorf("expected 5 frames, got %d", sink.count())
	}
	if err := p.Pause(); !errors.Is(err, ErrNoTrack) {
		t.Errorf("expected ErrNoTrack after finish, got %v", err)
	}
}

func TestPlayer_KeepsKnownTitle(t *testing.T) {
	p, events := newTestPlayer(&fakeResolver{}, &fakeDecoder{frames: 1}, &fakeSink{})
	p.Play(1, session.Track{Ref: "abc", Title: "Known"})

	if ev := nextEvent(t, events); ev.Title != "Known" {
		t.Errorf("expected title Known, got %q", ev.Title)
	}
}

func TestPlayer_Failures(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name    string
		res     *fakeResolver
		dec     *fakeDecoder
		started bool
		want    error
	}{
		{"resolve", &fakeResolver{err: boom}, &fakeDecoder{frames: 1}, false, boom},
		{"decode", &fakeResolver{}, &fakeDecoder{err: boom}, false, boom},
		{"no audio", &fakeResolver{}, &fakeDecoder{}, true, ErrNoAudio},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, events := newTestPlayer(c.res, c.dec, &fakeSink{})
			p.Play(7, session.Track{Ref: "abc"})

			ev := nextEvent(t, events)
			if c.started {
				if ev.Kind != session.EventTrackStarted {
					t.Fatalf("expected start, got %+v", ev)
				}
				ev = nextEvent(t, events)
			}
			if ev.Kind != session.EventTrackFailed || ev.Seq != 7 || !errors.Is(ev.Err, c.want) {
				t.Errorf("expected failure with %v, got %+v", c.want, ev)
			}
		})
	}
}

func TestPlayer_RejectsEmptyRef(t *testing.T) {
	p, events := newTestPlayer(&fakeResolver{}, &fakeDecoder{}, &fakeSink{})
	if err := p.Play(1, session.Track{}); !errors.Is(err, resolve.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	noEvent(t, events)
}

func TestPlayer_StopRaisesNothing(t *testing.T) {
	sink := &fakeSink{}
	p, events := newTestPlayer(&fakeResolver{}, &fakeDecoder{endless: true}, sink)
	p.Play(1, session.Track{Ref: "abc"})

	if ev := nextEvent(t, events); ev.Kind != session.EventTrackStarted {
		t.Fatalf("expected start, got %+v", ev)
	}
	p.Stop()
	noEvent(t, events)

	stopped := sink.count()
	time.Sleep(20 * time.Millisecond)
	if sink.count() > stopped+1 {
		t.Errorf("frames still flowing after stop: %d -> %d", stopped, sink.count())
	}
}

func TestPlayer_PauseHoldsFrames(t *testing.T) {
	sink := &fakeSink{}
	p, events := newTestPlayer(&fakeResolver{}, &fakeDecoder{endless: true}, sink)
	p.Play(1, session.Track{Ref: "abc"})
	nextEvent(t, events)

	if err := p.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	held := sink.count()
	time.Sleep(30 * time.Millisecond)
	if sink.count() != held {
		t.Errorf("frames sent while paused: %d -> %d", held, sink.count())
	}

	if err := p.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for sink.count() == held && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.count() == held {
		t.Error("frames did not resume")
	}

	p.Stop()
	noEvent(t, events)
}

func TestPlayer_PlayReplacesCurrent(t *testing.T) {
	p, events := newTestPlayer(&fakeResolver{}, &fakeDecoder{endless: true}, &fakeSink{})
	p.Play(1, session.Track{Ref: "one"})
	nextEvent(t, events)

	p.Play(2, session.Track{Ref: "two"})
	ev := nextEvent(t, events)
	if ev.Kind != session.EventTrackStarted || ev.Seq != 2 {
		t.Errorf("expected start of seq 2, got %+v", ev)
	}
	p.Stop()
	noEvent(t, events)
}

type plainConn struct{}

func (plainConn) ChannelID() string { return "c1" }
func (plainConn) Disconnect() error { return nil }

type sinkConn struct {
	plainConn
	fakeSink
}

func TestNewFactory(t *testing.T) {
	factory := NewFactory(&fakeResolver{}, &fakeDecoder{}, zerolog.Nop())

	if _, err := factory(plainConn{}, func(session.Event) {}); !errors.Is(err, ErrNoSink) {
		t.Errorf("expected ErrNoSink, got %v", err)
	}
	player, err := factory(&sinkConn{}, func(session.Event) {})
	if err != nil || player == nil {
		t.Errorf("expected player, got %v %v", player, err)
	}
}

type slowFailResolver struct {
	fail  string
	delay time.Duration
}

func (r slowFailResolver) Resolve(ctx context.Context, ref string) (*resolve.Audio, error) {
	if ref != r.fail {
		return &resolve.Audio{Metadata: resolve.Metadata{Ref: ref}, URL: "http://audio/" + ref}, nil
	}
	select {
	case <-time.After(r.delay):
		return nil, errors.New("video unavailable")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type sinkConnector struct {
	conn *sinkConn
}

func (c sinkConnector) Connect(context.Context, string, string) (session.Connection, error) {
	return c.conn, nil
}

func TestSession_TrackFailingWhilePausedPlaysNextUnpaused(t *testing.T) {
	conn := &sinkConn{}
	resolver := slowFailResolver{fail: "a", delay: 50 * time.Millisecond}
	factory := func(c session.Connection, emit func(session.Event)) (session.Player, error) {
		p := NewPlayer(resolver, &fakeDecoder{endless: true}, c.(Sink), emit, zerolog.Nop())
		p.newEncoder = func() (Encoder, error) { return fakeEncoder{}, nil }
		return p, nil
	}
	reg := session.NewRegistry(sinkConnector{conn: conn}, factory, zerolog.Nop())
	defer reg.CloseAll()

	s, _ := reg.Create("g1")
	if err := s.Join(context.Background(), "voice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	_ = s.Enqueue(session.Track{Ref: "a", Title: "A"})
	_ = s.Enqueue(session.Track{Ref: "b", Title: "B"})
	if err := s.Play(nil); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := s.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for conn.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if conn.count() == 0 {
		t.Fatal("next track never started")
	}

	snap := s.Snapshot()
	if snap.State != session.StatePlaying || snap.Current == nil || snap.Current.Ref != "b" {
		t.Fatalf("expected b playing, got %+v", snap)
	}
	if err := s.Skip(); err != nil {
		t.Errorf("skip: %v", err)
	}
}

func TestFFmpegArgs(t *testing.T) {
	link := ffmpegArgs(&resolve.Audio{URL: "http://x/a"})
	if link[0] != "-reconnect" || !contains(link, "http://x/a") {
		t.Errorf("unexpected link args %v", link)
	}

	pipe := ffmpegArgs(&resolve.Audio{Body: io.NopCloser(bytes.NewReader(nil))})
	if !contains(pipe, "pipe:0") || contains(pipe, "-reconnect") {
		t.Errorf("unexpected pipe args %v", pipe)
	}
	if pipe[len(pipe)-1] != "pipe:1" {
		t.Errorf("expected output to stdout, got %v", pipe)
	}
}

func contains(args []string, s string) bool {
	for _, a := range args {
		if a == s {
			return true
		}
	}
	return false
}
