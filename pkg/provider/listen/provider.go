// Package listen defines the Listener interface for one-shot speech capture.
//
// A Listener wraps whatever actually hears the trainee — the browser's
// SpeechRecognition API bridged over a websocket, or a server-side
// transcriber fed recorded clips — and presents a single-resolution
// "listen once" contract: start capturing, return the heard text and the
// reason capture ended. Restart-until-pause loops, silence cutoffs, and
// recognizer quirks are internal details of the implementation, never the
// session engine's concern.
package listen

import (
	"context"
	"time"
)

// EndReason explains why a listen operation stopped.
type EndReason string

const (
	// EndFinal means the recognizer produced a final transcript.
	EndFinal EndReason = "final"

	// EndInterim means capture stopped with only an interim transcript
	// available (e.g. the silence cutoff fired mid-utterance).
	EndInterim EndReason = "interim"

	// EndTimeout means the maximum listen duration elapsed.
	EndTimeout EndReason = "timeout"

	// EndError means the recognizer failed. The session engine treats this
	// as fatal to the current attempt.
	EndError EndReason = "error"

	// EndUnsupported means speech capture is unavailable on this client
	// ("nosr" in the wire protocol). The session engine switches the turn
	// to manual text entry and continues.
	EndUnsupported EndReason = "nosr"
)

// Options tunes a single listen operation.
type Options struct {
	// MinDuration is the minimum capture time before a natural pause may
	// end the listen. Zero means no minimum.
	MinDuration time.Duration

	// MaxDuration bounds the total capture time. Zero means the
	// implementation's default applies.
	MaxDuration time.Duration

	// SilenceCutoff is the pause length that ends capture once MinDuration
	// has elapsed. Zero means the implementation's default applies.
	SilenceCutoff time.Duration
}

// Result is the outcome of one listen operation.
type Result struct {
	// FinalText is the authoritative transcript, empty when none was
	// produced.
	FinalText string

	// InterimText is the last interim transcript, useful when Ended is
	// EndInterim or EndTimeout.
	InterimText string

	// Ended reports why capture stopped.
	Ended EndReason
}

// Text returns the best available transcript: FinalText when present,
// otherwise InterimText.
func (r Result) Text() string {
	if r.FinalText != "" {
		return r.FinalText
	}
	return r.InterimText
}

// Listener is the abstraction over any speech capture backend.
//
// ListenOnce blocks until capture ends or ctx is cancelled. Cancellation is
// reported as ctx.Err(); all capture-side conditions — including recognizer
// errors and "unsupported" — are reported in the Result, not as Go errors,
// so callers can distinguish "the operation was abandoned" from "the
// operation finished badly".
type Listener interface {
	ListenOnce(ctx context.Context, opts Options) (Result, error)
}
