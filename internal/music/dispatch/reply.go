package dispatch

import (
	"guild-jukebox/internal/music/search"
	"guild-jukebox/internal/music/session"
)

// Kind is the category of a reply.
type Kind int

const (
	KindOK Kind = iota
	KindRejected
	KindFailed
	KindResults
	KindQueue
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindRejected:
		return "rejected"
	case KindFailed:
		return "failed"
	case KindResults:
		return "results"
	case KindQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// Reason is the user-facing cause of a rejected command.
type Reason string

const (
	ReasonAlreadyConnected Reason = "already connected"
	ReasonNotInChannel     Reason = "not in a channel"
	ReasonNotConnected     Reason = "not connected"
	ReasonAlreadyPlaying   Reason = "already playing"
	ReasonNothingToPlay    Reason = "nothing to play"
	ReasonNothingPlaying   Reason = "nothing playing"
	ReasonAlreadyPaused    Reason = "already paused"
	ReasonNotPaused        Reason = "not paused"
	ReasonIsPaused         Reason = "is paused"
	ReasonNoQueue          Reason = "no queue"
	ReasonEmptyKeyword     Reason = "empty keyword"
	ReasonInvalidRef       Reason = "invalid reference"
)

// Reply is the outcome of one command. Exactly one of Message, Results or
// Queue is meaningful, depending on Kind.
type Reply struct {
	Kind    Kind
	Command string
	Reason  Reason
	Message string
	Title   string
	Keyword string
	Results []search.Result
	Queue   []session.Track
	Err     error
}

func success(cmd, msg string) Reply {
	return Reply{Kind: KindOK, Command: cmd, Message: msg}
}

func rejected(cmd string, reason Reason) Reply {
	return Reply{Kind: KindRejected, Command: cmd, Reason: reason, Message: string(reason)}
}

func failed(cmd, msg string, err error) Reply {
	return Reply{Kind: KindFailed, Command: cmd, Message: msg, Err: err}
}
