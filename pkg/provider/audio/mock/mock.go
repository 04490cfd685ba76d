// Package mock provides a test double for the audio package interfaces.
//
// Use Player to verify which cues the session engine requested and to
// inject playback failures.
package mock

import (
	"context"
	"sync"

	"github.com/coldsoak/readback/pkg/provider/audio"
)

// Compile-time interface check.
var _ audio.Player = (*Player)(nil)

// Player is a mock implementation of audio.Player.
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned from every Play call.
	PlayErr error

	// PlayDelay blocks Play for the given duration (respecting ctx) before
	// returning, to simulate cue length.
	PlayDelay func(ctx context.Context) error

	// PlayCalls records every cue passed to Play, in order.
	PlayCalls []string

	// StopCalls counts Stop invocations.
	StopCalls int
}

// Play records the cue and returns PlayErr after the optional delay.
func (p *Player) Play(ctx context.Context, cue string) error {
	p.mu.Lock()
	p.PlayCalls = append(p.PlayCalls, cue)
	delay := p.PlayDelay
	err := p.PlayErr
	p.mu.Unlock()

	if delay != nil {
		if derr := delay(ctx); derr != nil {
			return derr
		}
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

// Stop records the invocation.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StopCalls++
}

// Cues returns a copy of the recorded Play cues. Thread-safe.
func (p *Player) Cues() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.PlayCalls))
	copy(out, p.PlayCalls)
	return out
}
