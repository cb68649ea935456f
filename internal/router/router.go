// Package router correlates outbound commands with inbound device frames.
//
// Every inbound frame goes through OnFrame in arrival order. A frame
// completes the oldest pending request for its opcode; otherwise it is handed
// to subscribers of that opcode, and otherwise dropped.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/vitaminmoo/braceletctl/internal/config"
	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

var (
	ErrTimeout   = errors.New("request timed out")
	ErrCanceled  = errors.New("request canceled")
	ErrDuplicate = errors.New("request already in flight")
	ErrTransport = errors.New("transport error")
	ErrClosed    = errors.New("router closed")
)

// DefaultTimeout applies to requests that set none.
const DefaultTimeout = 5 * time.Second

// Transport moves opaque frames to and from the device.
type Transport interface {
	SendFrame(frame []byte) error
	// OnReceive installs the callback for inbound frames. Frames must be
	// delivered one at a time in arrival order.
	OnReceive(fn func(frame []byte)) error
}

// Handler receives frames nobody asked for.
type Handler func(protocol.DeviceData)

// Subscription identifies a registered handler.
type Subscription struct {
	ID     uuid.UUID
	Opcode protocol.Opcode
}

type subscriber struct {
	id uuid.UUID
	fn Handler
}

type key struct {
	op  protocol.Opcode
	tag string
}

type Router struct {
	transport Transport
	log       logrus.FieldLogger
	metrics   *Metrics
	timeout   time.Duration
	unknown   Handler

	// frameMu serializes OnFrame so handlers observe arrival order.
	frameMu sync.Mutex

	mu      sync.Mutex
	pending map[key]*Pending
	queue   map[protocol.Opcode][]*Pending // submission order
	subs    map[protocol.Opcode][]subscriber
	closed  bool
}

type Option func(*Router)

func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Router) { r.log = log }
}

func WithMetrics(m *Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithUnknownHandler receives frames whose code has no registry entry.
func WithUnknownHandler(h Handler) Option {
	return func(r *Router) { r.unknown = h }
}

// WithTimeout sets the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) { r.timeout = d }
}

// New creates a router and installs its receive callback on t.
func New(t Transport, opts ...Option) (*Router, error) {
	r := &Router{
		transport: t,
		log:       config.Log,
		timeout:   DefaultTimeout,
		pending:   map[key]*Pending{},
		queue:     map[protocol.Opcode][]*Pending{},
		subs:      map[protocol.Opcode][]subscriber{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := t.OnReceive(r.OnFrame); err != nil {
		return nil, errors.Wrap(ErrTransport, err.Error())
	}
	return r, nil
}

// Submit registers req, sends it and arms its timeout. Canceling ctx before
// the request settles cancels it.
func (r *Router) Submit(ctx context.Context, req Request) (*Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame, err := protocol.Encode(req.Opcode, req.Record)
	if err != nil {
		return nil, err
	}

	p := &Pending{
		Opcode:  req.Opcode,
		Tag:     req.Tag,
		r:       r,
		timeout: req.Timeout,
		done:    make(chan struct{}),
	}
	if p.timeout <= 0 {
		p.timeout = r.timeout
	}

	k := key{req.Opcode, req.Tag}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if _, dup := r.pending[k]; dup {
		r.mu.Unlock()
		return nil, errors.Wrapf(ErrDuplicate, "%s tag %q", req.Opcode, req.Tag)
	}
	r.pending[k] = p
	r.queue[req.Opcode] = append(r.queue[req.Opcode], p)
	p.arm()
	r.metrics.pending(1)
	r.mu.Unlock()

	log := r.log.WithFields(logrus.Fields{"opcode": req.Opcode, "tag": req.Tag})
	log.Debugf("send %X", frame)
	if err := r.transport.SendFrame(frame); err != nil {
		err = errors.Wrapf(ErrTransport, "%s: %v", req.Opcode, err)
		r.mu.Lock()
		r.settle(p, Failed, Result{}, err)
		r.mu.Unlock()
		return nil, err
	}

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				p.Cancel()
			case <-p.done:
			}
		}()
	}
	return p, nil
}

// Do submits req and waits for its result.
func (r *Router) Do(ctx context.Context, req Request) (Result, error) {
	p, err := r.Submit(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return p.Wait(ctx)
}

// Send transmits a frame without tracking a response, for opcodes the
// device never answers.
func (r *Router) Send(op protocol.Opcode, record protocol.Payload) error {
	frame, err := protocol.Encode(op, record)
	if err != nil {
		return err
	}
	r.log.WithField("opcode", op).Debugf("send %X", frame)
	if err := r.transport.SendFrame(frame); err != nil {
		return errors.Wrapf(ErrTransport, "%s: %v", op, err)
	}
	return nil
}

// Subscribe registers fn for unsolicited frames of op. Handlers run on the
// receive path in registration order and must not block.
func (r *Router) Subscribe(op protocol.Opcode, fn Handler) Subscription {
	sub := Subscription{ID: uuid.New(), Opcode: op}
	r.mu.Lock()
	r.subs[op] = append(r.subs[op], subscriber{id: sub.ID, fn: fn})
	r.mu.Unlock()
	return sub
}

// Unsubscribe removes sub and reports whether it was registered.
func (r *Router) Unsubscribe(sub Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.subs[sub.Opcode]
	for i, s := range list {
		if s.id == sub.ID {
			r.subs[sub.Opcode] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// InFlight returns the number of pending requests.
func (r *Router) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close fails every pending request with ErrClosed and refuses new ones.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, p := range r.pending {
		r.settle(p, Failed, Result{}, ErrClosed)
	}
}

// OnFrame processes one inbound frame.
func (r *Router) OnFrame(frame []byte) {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()

	code, payload, err := protocol.ParseFrame(frame)
	if err != nil {
		r.metrics.decodeError()
		r.log.WithError(err).Warnf("drop frame %X", frame)
		return
	}

	if op, ok := protocol.IsRejection(code); ok {
		r.metrics.frame(op)
		if !r.fail(op, errors.Wrapf(protocol.ErrDeviceRejected, "%s", op)) {
			r.metrics.dropped()
			r.log.WithField("opcode", op).Debug("rejection with nothing pending")
		}
		return
	}

	op := protocol.Resolve(code)
	r.metrics.frame(op)
	if op == protocol.DataError {
		dd := protocol.DeviceData{
			Opcode:  protocol.DataError,
			Payload: protocol.RawFields{"code": int(code), "data": append([]byte(nil), payload...)},
			Final:   true,
		}
		if r.unknown != nil {
			r.unknown(dd)
			return
		}
		r.metrics.dropped()
		r.log.Debugf("unknown code 0x%02X: %X", code, payload)
		return
	}

	dd, err := protocol.Decode(op, payload)
	if err != nil {
		// Pending requests keep their chunks and their timer.
		r.metrics.decodeError()
		r.log.WithError(err).WithField("opcode", op).Debug("drop undecodable frame")
		return
	}

	if r.deliver(dd) {
		return
	}

	e, _ := protocol.Lookup(op)
	if e.Fails != protocol.DataError && r.fail(e.Fails, errors.Wrapf(protocol.ErrDeviceRejected, "%s", op)) {
		return
	}

	r.mu.Lock()
	subs := append([]subscriber(nil), r.subs[op]...)
	r.mu.Unlock()
	if len(subs) == 0 {
		r.metrics.dropped()
		r.log.WithField("opcode", op).Debug("drop unsolicited frame")
		return
	}
	for _, s := range subs {
		s.fn(dd)
	}
}

func (r *Router) oldest(op protocol.Opcode) *Pending {
	if q := r.queue[op]; len(q) > 0 {
		return q[0]
	}
	return nil
}

// deliver hands dd to the oldest pending request for its opcode.
func (r *Router) deliver(dd protocol.DeviceData) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.oldest(dd.Opcode)
	if p == nil {
		return false
	}
	p.chunks = append(p.chunks, dd)
	if !dd.Final {
		p.state = AwaitingChunks
		p.arm()
		r.log.WithFields(logrus.Fields{"opcode": p.Opcode, "tag": p.Tag}).Debugf("chunk %d", len(p.chunks))
		return true
	}
	r.settle(p, Completed, Result{Opcode: p.Opcode, Chunks: p.chunks}, nil)
	return true
}

// fail settles the oldest pending request for op with err.
func (r *Router) fail(op protocol.Opcode, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.oldest(op)
	if p == nil {
		return false
	}
	r.settle(p, Failed, Result{}, err)
	return true
}

func (r *Router) expire(p *Pending, gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.gen != gen || p.state.Terminal() {
		return
	}
	r.metrics.timeout()
	r.log.WithFields(logrus.Fields{"opcode": p.Opcode, "tag": p.Tag}).Debugf("timed out after %s", p.timeout)
	r.settle(p, TimedOut, Result{}, errors.Wrapf(ErrTimeout, "%s after %s", p.Opcode, p.timeout))
}

// settle moves p to a terminal state and unregisters it. Caller holds r.mu.
func (r *Router) settle(p *Pending, s State, res Result, err error) {
	if p.state.Terminal() {
		return
	}
	p.state, p.result, p.err = s, res, err
	if p.timer != nil {
		p.timer.Stop()
	}
	delete(r.pending, key{p.Opcode, p.Tag})
	q := r.queue[p.Opcode]
	for i, other := range q {
		if other == p {
			q = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	if len(q) == 0 {
		delete(r.queue, p.Opcode)
	} else {
		r.queue[p.Opcode] = q
	}
	r.metrics.pending(-1)
	close(p.done)
}
