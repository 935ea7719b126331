// Package stream turns a resolved track into Opus frames on a voice
// connection. Audio is decoded to 48 kHz stereo PCM by ffmpeg and encoded
// frame by frame.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"guild-jukebox/internal/music/resolve"

	"github.com/rs/zerolog"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz

	pcmFrameBytes = frameSize * channels * 2
)

var (
	ErrNoSink  = errors.New("connection cannot carry audio")
	ErrNoTrack = errors.New("no track loaded")
	ErrNoAudio = errors.New("decoder produced no audio")
)

// Decoder turns resolved audio into raw s16le PCM.
type Decoder interface {
	Decode(ctx context.Context, audio *resolve.Audio) (io.ReadCloser, error)
}

// FFmpeg decodes through an ffmpeg child process. In link mode ffmpeg
// fetches the stream URL itself; in pipe mode the resolver body is fed to
// its stdin.
type FFmpeg struct {
	Path string
	Log  zerolog.Logger
}

func (f FFmpeg) Decode(ctx context.Context, audio *resolve.Audio) (io.ReadCloser, error) {
	path := f.Path
	if path == "" {
		path = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, path, ffmpegArgs(audio)...)
	if audio.Body != nil {
		cmd.Stdin = audio.Body
	}

	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	f.Log.Debug().Str("ref", audio.Ref).Bool("pipe", audio.Body != nil).Int("pid", cmd.Process.Pid).Msg("ffmpeg started")
	return &process{ReadCloser: out, cmd: cmd, body: audio.Body}, nil
}

func ffmpegArgs(audio *resolve.Audio) []string {
	var args []string
	if audio.Body != nil {
		args = append(args, "-i", "pipe:0")
	} else {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
			"-i", audio.URL,
		)
	}
	return append(args,
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "warning",
		"pipe:1",
	)
}

type process struct {
	io.ReadCloser
	cmd  *exec.Cmd
	body io.Closer
}

func (p *process) Close() error {
	if p.body != nil {
		p.body.Close()
	}
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.cmd.Wait()
	return nil
}
