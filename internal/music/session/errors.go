package session

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyExists    = errors.New("session already exists")
	ErrNotFound         = errors.New("session not found")
	ErrDestroyed        = errors.New("session destroyed")
	ErrNotConnected     = errors.New("not connected to a voice channel")
	ErrAlreadyConnected = errors.New("already connected to a voice channel")
	ErrAlreadyPlaying   = errors.New("already playing")
	ErrNothingPlaying   = errors.New("nothing is playing")
	ErrAlreadyPaused    = errors.New("already paused")
	ErrNotPaused        = errors.New("not paused")
	ErrPaused           = errors.New("playback is paused")
	ErrQueueEmpty       = errors.New("queue is empty")
)

// ProviderError reports a failed call into an external collaborator.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
