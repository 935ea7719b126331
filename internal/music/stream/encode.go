package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"layeh.com/gopus"
)

// Encoder encodes one PCM frame to Opus.
type Encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

// Sink is the audio side of a voice connection.
type Sink interface {
	Speaking(speaking bool) error
	SendOpus(ctx context.Context, frame []byte) error
}

func newOpusEncoder() (Encoder, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}
	return enc, nil
}

// pump copies pcm to the sink until the decoder runs dry. wait is consulted
// before every frame and blocks while playback is paused.
func pump(ctx context.Context, pcm io.Reader, enc Encoder, sink Sink, wait func(context.Context) error) (int, error) {
	pcmBuf := make([]byte, pcmFrameBytes)
	intBuf := make([]int16, frameSize*channels)

	frames := 0
	for {
		if err := wait(ctx); err != nil {
			return frames, err
		}

		if _, err := io.ReadFull(pcm, pcmBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return frames, nil
			}
			if ctx.Err() != nil {
				return frames, ctx.Err()
			}
			return frames, fmt.Errorf("read error: %w", err)
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, err := enc.Encode(intBuf, frameSize, pcmFrameBytes)
		if err != nil {
			return frames, fmt.Errorf("encode error: %w", err)
		}

		if err := sink.SendOpus(ctx, opus); err != nil {
			return frames, err
		}
		frames++
	}
}
