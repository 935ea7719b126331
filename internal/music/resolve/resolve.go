// Package resolve turns a video reference into track metadata and a
// streamable audio source.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"guild-jukebox/pkg/retrylimit"

	youtube "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
)

// Mode selects how audio reaches the decoder.
type Mode string

const (
	// ModeLink hands the decoder a direct media URL.
	ModeLink Mode = "link"
	// ModePipe downloads through the resolver's HTTP client and hands the
	// decoder a body to read from.
	ModePipe Mode = "pipe"
)

const watchURL = "https://www.youtube.com/watch?v="

var (
	ErrInvalidReference = errors.New("invalid video reference")
	ErrNoAudio          = errors.New("no audio formats available")
)

// ProviderError reports a failed provider call.
type ProviderError struct {
	Op  string
	Ref string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("resolve %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Metadata describes a video without opening its audio.
type Metadata struct {
	Ref      string
	Title    string
	Duration time.Duration
}

// URL returns the watch page of the video.
func (m Metadata) URL() string { return watchURL + m.Ref }

// Audio is a streamable source. Exactly one of URL and Body is set.
type Audio struct {
	Metadata
	URL  string
	Body io.ReadCloser
}

// Options configures a Resolver.
type Options struct {
	Mode    Mode
	Proxy   string
	Timeout time.Duration
	Limiter *retrylimit.AdaptiveLimiter
}

// Resolver looks videos up through kkdai/youtube.
type Resolver struct {
	client  *youtube.Client
	mode    Mode
	limiter *retrylimit.AdaptiveLimiter
	retry   retrylimit.Config
	log     zerolog.Logger
}

// New builds a resolver. The proxy, when set, is used for every provider
// request made by the resolver, including piped downloads.
func New(opts Options, log zerolog.Logger) (*Resolver, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	switch opts.Mode {
	case "":
		opts.Mode = ModeLink
	case ModeLink, ModePipe:
	default:
		return nil, fmt.Errorf("unknown stream mode %q", opts.Mode)
	}

	httpClient, err := NewHTTPClient(opts.Proxy, opts.Timeout)
	if err != nil {
		return nil, err
	}
	if opts.Mode == ModePipe {
		// Piped downloads outlive any sensible request timeout.
		httpClient.Timeout = 0
	}

	log = log.With().Str("component", "resolve").Logger()
	retry := retrylimit.DefaultConfig()
	retry.Logger = log

	return &Resolver{
		client:  &youtube.Client{HTTPClient: httpClient},
		mode:    opts.Mode,
		limiter: opts.Limiter,
		retry:   retry,
		log:     log,
	}, nil
}

// Mode reports the configured stream mode.
func (r *Resolver) Mode() Mode { return r.mode }

// Lookup fetches the title and duration of ref.
func (r *Resolver) Lookup(ctx context.Context, ref string) (Metadata, error) {
	video, err := r.video(ctx, ref)
	if err != nil {
		return Metadata{}, err
	}
	return metadataOf(video), nil
}

// Resolve fetches ref and opens its best audio format.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Audio, error) {
	video, err := r.video(ctx, ref)
	if err != nil {
		return nil, err
	}

	format, err := pickFormat(video.Formats)
	if err != nil {
		return nil, &ProviderError{Op: "format", Ref: video.ID, Err: err}
	}

	audio := &Audio{Metadata: metadataOf(video)}
	switch r.mode {
	case ModePipe:
		body, _, err := r.client.GetStreamContext(ctx, video, format)
		if err != nil {
			return nil, &ProviderError{Op: "stream", Ref: video.ID, Err: err}
		}
		audio.Body = body
	default:
		link, err := r.client.GetStreamURLContext(ctx, video, format)
		if err != nil {
			return nil, &ProviderError{Op: "stream url", Ref: video.ID, Err: err}
		}
		audio.URL = link
	}

	r.log.Debug().
		Str("ref", video.ID).
		Str("mime", format.MimeType).
		Int("bitrate", format.Bitrate).
		Str("mode", string(r.mode)).
		Msg("audio resolved")
	return audio, nil
}

func (r *Resolver) video(ctx context.Context, ref string) (*youtube.Video, error) {
	id, err := VideoID(ref)
	if err != nil {
		return nil, err
	}

	var video *youtube.Video
	err = retrylimit.Do(ctx, r.limiter, r.retry, func(ctx context.Context) error {
		var err error
		video, err = r.client.GetVideoContext(ctx, id)
		return classify(err)
	})
	if errors.Is(err, ErrInvalidReference) {
		r.log.Debug().Err(err).Str("ref", id).Msg("video unavailable")
		return nil, err
	}
	if err != nil {
		r.log.Warn().Err(err).Str("ref", id).Msg("video lookup failed")
		return nil, &ProviderError{Op: "lookup", Ref: id, Err: err}
	}
	return video, nil
}

// classify marks videos that can never be played as invalid references and
// turns provider status codes into errors the limiter understands.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var playability *youtube.ErrPlayabiltyStatus
	var status youtube.ErrUnexpectedStatusCode
	switch {
	case errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrNotPlayableInEmbed),
		errors.As(err, &playability):
		return &retrylimit.Permanent{Err: fmt.Errorf("%w: %v", ErrInvalidReference, err)}
	case errors.As(err, &status):
		serr := &retrylimit.StatusError{Code: int(status), Op: "youtube"}
		if retrylimit.Overload(serr) {
			return serr
		}
		return &retrylimit.Permanent{Err: serr}
	}
	return err
}

// VideoID normalises a bare id or a watch URL into a video id.
func VideoID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrInvalidReference
	}
	id, err := youtube.ExtractVideoID(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	return id, nil
}

func metadataOf(v *youtube.Video) Metadata {
	return Metadata{Ref: v.ID, Title: v.Title, Duration: v.Duration}
}

// pickFormat prefers audio-only formats, then the highest bitrate.
func pickFormat(formats youtube.FormatList) (*youtube.Format, error) {
	candidates := formats.WithAudioChannels()
	if len(candidates) == 0 {
		return nil, ErrNoAudio
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ai := strings.HasPrefix(candidates[i].MimeType, "audio/")
		aj := strings.HasPrefix(candidates[j].MimeType, "audio/")
		if ai != aj {
			return ai
		}
		return candidates[i].Bitrate > candidates[j].Bitrate
	})
	return &candidates[0], nil
}

// DefaultHTTPClient is used when no proxy is configured.
func DefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
