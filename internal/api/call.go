package api

import (
	"context"
	"sync"
)

// Call represents an in-flight backend request. It follows the net/rpc
// call pattern: the transport resolves it exactly once, callers either
// block on Await or attach a completion callback with Then.
type Call struct {
	mu       sync.Mutex
	done     chan struct{}
	resp     *Response
	err      error
	settled  bool
	callback func(*Response, error)
}

func newCall() *Call {
	return &Call{done: make(chan struct{})}
}

// resolvedCall returns an already-settled Call. Used for pre-flight
// rejections that must never touch the network.
func resolvedCall(resp *Response, err error) *Call {
	c := newCall()
	c.settle(resp, err)
	return c
}

// settle resolves the call. A response is delivered at most once; later
// settles are ignored.
func (c *Call) settle(resp *Response, err error) {
	c.mu.Lock()
	if c.settled {
		c.mu.Unlock()
		return
	}
	c.settled = true
	c.resp = resp
	c.err = err
	cb := c.callback
	c.callback = nil
	c.mu.Unlock()

	close(c.done)
	if cb != nil {
		cb(resp, err)
	}
}

// Done returns a channel closed when the call has settled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Await blocks until the call settles or the context is cancelled.
func (c *Call) Await(ctx context.Context) (*Response, error) {
	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.resp, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Then attaches a completion callback. If the call has already settled
// the callback runs immediately on the calling goroutine; otherwise it
// runs on the goroutine that settles the call. Only one callback is held.
func (c *Call) Then(fn func(*Response, error)) *Call {
	c.mu.Lock()
	if c.settled {
		resp, err := c.resp, c.err
		c.mu.Unlock()
		fn(resp, err)
		return c
	}
	c.callback = fn
	c.mu.Unlock()
	return c
}
