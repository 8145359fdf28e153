// Package fetch defines how the inspector obtains event specs from the
// schema service. The network call itself belongs to the host; this package
// only fixes the request parameters and the single-shot result type.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/randalmurphal/inspector/pkg/inspector/spec"
)

var (
	// ErrNoFetcher is returned by a Fetcher that cannot reach the service.
	ErrNoFetcher = errors.New("no event spec fetcher configured")

	// ErrFetchPanic wraps a panic raised by a fetch function.
	ErrFetchPanic = errors.New("event spec fetch panicked")
)

// Params identifies the spec being requested.
type Params struct {
	APIKey    string
	StreamID  string
	EventName string
}

// Fetcher starts an asynchronous fetch of one event spec.
//
// The returned Future resolves exactly once. A nil response with a nil
// error means the service has no spec for the event.
type Fetcher interface {
	FetchEventSpec(ctx context.Context, params Params) *Future
}

// Future is the single-shot result of a fetch.
type Future struct {
	done chan struct{}
	once sync.Once
	resp *spec.Response
	err  error
}

// NewFuture returns an unresolved future and the function that resolves it.
// Only the first call to resolve has an effect.
func NewFuture() (*Future, func(*spec.Response, error)) {
	f := &Future{done: make(chan struct{})}
	return f, f.resolve
}

// Resolved returns an already resolved future.
func Resolved(resp *spec.Response, err error) *Future {
	f, resolve := NewFuture()
	resolve(resp, err)
	return f
}

func (f *Future) resolve(resp *spec.Response, err error) {
	f.once.Do(func() {
		f.resp, f.err = resp, err
		close(f.done)
	})
}

// Done is closed once the future resolves.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (*spec.Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Func adapts a synchronous fetch function to a Fetcher. Each call runs on
// its own goroutine.
type Func func(ctx context.Context, params Params) (*spec.Response, error)

// FetchEventSpec implements Fetcher.
func (fn Func) FetchEventSpec(ctx context.Context, params Params) *Future {
	f, resolve := NewFuture()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resolve(nil, fmt.Errorf("%w: %v", ErrFetchPanic, r))
			}
		}()
		resp, err := fn(ctx, params)
		resolve(resp, err)
	}()
	return f
}

// Unavailable is a Fetcher that always fails with ErrNoFetcher.
type Unavailable struct{}

// FetchEventSpec implements Fetcher.
func (Unavailable) FetchEventSpec(context.Context, Params) *Future {
	return Resolved(nil, ErrNoFetcher)
}
