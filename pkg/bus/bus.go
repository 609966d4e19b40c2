package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Actions accepted over the wire.
const (
	ActionSavePrompt     = "savePrompt"
	ActionGetLastPrompts = "getLastPrompts"
	ActionGetTopK        = "getTopKMemories"
	ActionDeleteMemory   = "deleteMemory"
)

// Request is one client command. Reply, when set, receives exactly one
// Response.
type Request struct {
	Action       string `json:"action"`
	Prompt       string `json:"prompt,omitempty"`
	Origin       string `json:"origin,omitempty"`
	Query        string `json:"query,omitempty"`
	N            int    `json:"n,omitempty"`
	K            int    `json:"k,omitempty"`
	RefID        string `json:"id,omitempty"`
	RefTimestamp string `json:"timestamp,omitempty"`

	Reply chan Response `json:"-"`
}

// Response mirrors the statuses the memory service reports.
type Response struct {
	Status  string `json:"status"`
	Payload any    `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`
}

const publishTimeout = 100 * time.Millisecond

// Dispatcher is a bounded request queue between transports and the worker
// that executes requests. Publishing to a full queue blocks briefly, then
// drops and counts.
type Dispatcher struct {
	requests chan Request
	closed   bool
	dropped  atomic.Uint64
	mu       sync.RWMutex
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		requests: make(chan Request, 100),
	}
}

// Publish enqueues a request. It reports false when the request was
// dropped, so transports can answer the caller instead of hanging.
func (d *Dispatcher) Publish(req Request) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.requests <- req:
		return true
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case d.requests <- req:
			return true
		case <-timer.C:
			d.dropped.Add(1)
			return false
		}
	}
}

// Consume blocks for the next request. It reports false when the
// dispatcher is closed or the context is done.
func (d *Dispatcher) Consume(ctx context.Context) (Request, bool) {
	select {
	case req, ok := <-d.requests:
		if !ok {
			return Request{}, false
		}
		return req, true
	case <-ctx.Done():
		return Request{}, false
	}
}

func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.requests)
}

func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}
