// Package mock provides a test double for the listen package interfaces.
//
// Use Listener to script the results of successive ListenOnce calls and to
// inspect the options the session engine requested.
package mock

import (
	"context"
	"sync"

	"github.com/coldsoak/readback/pkg/provider/listen"
)

// Compile-time interface check.
var _ listen.Listener = (*Listener)(nil)

// ListenOnceCall records a single invocation of Listener.ListenOnce.
type ListenOnceCall struct {
	// Ctx is the context passed to ListenOnce.
	Ctx context.Context
	// Opts is the Options value passed to ListenOnce.
	Opts listen.Options
}

// Listener is a mock implementation of listen.Listener. Results are consumed
// from the Results queue in order; when the queue is exhausted, ListenOnce
// blocks until ctx is cancelled (simulating a listener that hears nothing).
type Listener struct {
	mu sync.Mutex

	// Results is the scripted queue of results returned by successive
	// ListenOnce calls.
	Results []listen.Result

	// Err, if non-nil, is returned as the error from every ListenOnce call.
	Err error

	// Calls records every invocation.
	Calls []ListenOnceCall
}

// ListenOnce records the call and pops the next scripted result.
func (l *Listener) ListenOnce(ctx context.Context, opts listen.Options) (listen.Result, error) {
	l.mu.Lock()
	l.Calls = append(l.Calls, ListenOnceCall{Ctx: ctx, Opts: opts})
	if l.Err != nil {
		err := l.Err
		l.mu.Unlock()
		return listen.Result{}, err
	}
	if len(l.Results) == 0 {
		l.mu.Unlock()
		<-ctx.Done()
		return listen.Result{}, ctx.Err()
	}
	r := l.Results[0]
	l.Results = l.Results[1:]
	l.mu.Unlock()
	return r, nil
}

// CallCount returns the number of recorded ListenOnce calls. Thread-safe.
func (l *Listener) CallCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Calls)
}
