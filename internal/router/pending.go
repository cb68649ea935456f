package router

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

// State is the lifecycle position of a pending request.
type State int

const (
	Sent State = iota
	AwaitingChunks
	Completed
	TimedOut
	Canceled
	Failed
)

var stateNames = [...]string{"Sent", "AwaitingChunks", "Completed", "TimedOut", "Canceled", "Failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool { return s >= Completed }

// Request is one outbound command.
type Request struct {
	Opcode protocol.Opcode
	// Tag distinguishes concurrent requests for the same opcode.
	Tag    string
	Record protocol.Payload
	// Timeout applies to the whole response and is re-armed per chunk.
	// Zero uses the router default.
	Timeout time.Duration
}

// Result is the outcome of a completed request.
type Result struct {
	Opcode protocol.Opcode
	Chunks []protocol.DeviceData
}

// Record returns the payload of the first chunk.
func (r Result) Record() protocol.Payload {
	if len(r.Chunks) == 0 {
		return nil
	}
	return r.Chunks[0].Payload
}

// Data concatenates the raw bytes of every chunk in order.
func (r Result) Data() []byte {
	var buf bytes.Buffer
	for _, c := range r.Chunks {
		if raw, ok := c.Payload.(protocol.RawFields); ok {
			buf.Write(raw.Bytes())
		}
	}
	return buf.Bytes()
}

// Pending tracks one in-flight request. All mutable fields are guarded by the
// owning router's mutex.
type Pending struct {
	Opcode protocol.Opcode
	Tag    string

	r       *Router
	timeout time.Duration
	timer   *time.Timer
	gen     int
	state   State
	chunks  []protocol.DeviceData
	result  Result
	err     error
	done    chan struct{}
}

// State returns the current state.
func (p *Pending) State() State {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	return p.state
}

// Done is closed once the request reaches a terminal state.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the request settles or ctx ends. Giving up through ctx
// cancels the request.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		p.Cancel()
		<-p.done
	}
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	return p.result, p.err
}

// Cancel removes the request. A frame that arrives later is treated as
// unsolicited.
func (p *Pending) Cancel() {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	p.r.settle(p, Canceled, Result{}, ErrCanceled)
}

// arm starts or restarts the timeout. Caller holds r.mu.
func (p *Pending) arm() {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	gen := p.gen
	p.timer = time.AfterFunc(p.timeout, func() { p.r.expire(p, gen) })
}
