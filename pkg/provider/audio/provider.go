// Package audio defines the Player interface for audio-cue playback.
//
// The session engine never touches audio itself: Captain turns name a
// pre-recorded cue, and a Player — typically the trainee's browser, bridged
// over a websocket — is asked to play it and report completion. Playback
// failures are deliberately soft; the engine treats a failed cue as complete
// and moves on rather than blocking the drill.
package audio

import "context"

// Player is the abstraction over any cue playback backend.
//
// Implementations must be safe for concurrent use, although the session
// engine issues at most one Play at a time per run.
type Player interface {
	// Play requests playback of the named cue and blocks until playback
	// completes, fails, or ctx is cancelled. A nil error means the cue
	// finished; cancellation is reported as ctx.Err().
	Play(ctx context.Context, cue string) error

	// Stop halts any in-flight playback. Safe to call when nothing is
	// playing.
	Stop()
}
