package api

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/vitaminmoo/braceletctl/internal/protocol"
	"github.com/vitaminmoo/braceletctl/internal/router"
)

// ErrUnexpectedPayload means the device answered with a record of the wrong
// type for the request.
var ErrUnexpectedPayload = errors.New("unexpected payload")

// Client provides a high-level API for communicating with the bracelet.
// It wraps the router and provides typed methods for each operation.
type Client struct {
	router         *router.Router
	timeout        time.Duration
	historyTimeout time.Duration
}

// New creates a new API client on top of r.
func New(r *router.Router) *Client {
	return &Client{
		router:         r,
		timeout:        5 * time.Second,
		historyTimeout: 30 * time.Second,
	}
}

// SetTimeout sets the default request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SetHistoryTimeout sets the timeout for chunked transfers. It is re-armed
// on every chunk.
func (c *Client) SetHistoryTimeout(d time.Duration) {
	c.historyTimeout = d
}

// Router returns the underlying router for subscriptions and direct access.
func (c *Client) Router() *router.Router {
	return c.router
}

// --- Low-level send methods ---

// RequestOptions configures how a request is sent.
type RequestOptions struct {
	Timeout time.Duration // Request timeout (default: client timeout)
	Tag     string        // Correlation tag for concurrent same-opcode requests
}

// Send sends a request and waits for the complete response.
func (c *Client) Send(ctx context.Context, op protocol.Opcode, record protocol.Payload, opts *RequestOptions) (router.Result, error) {
	req := router.Request{Opcode: op, Record: record, Timeout: c.timeout}
	if opts != nil {
		if opts.Timeout > 0 {
			req.Timeout = opts.Timeout
		}
		req.Tag = opts.Tag
	}
	res, err := c.router.Do(ctx, req)
	if err != nil {
		return router.Result{}, errors.Wrap(err, op.String())
	}
	return res, nil
}

// Exec sends a command and waits for the device to acknowledge it.
func (c *Client) Exec(ctx context.Context, op protocol.Opcode, record protocol.Payload) error {
	_, err := c.Send(ctx, op, record, nil)
	return err
}

// get sends op and returns the response record as T.
func get[T protocol.Payload](ctx context.Context, c *Client, op protocol.Opcode, record protocol.Payload) (T, error) {
	var zero T
	res, err := c.Send(ctx, op, record, nil)
	if err != nil {
		return zero, err
	}
	v, ok := res.Record().(T)
	if !ok {
		return zero, errors.Wrapf(ErrUnexpectedPayload, "%s: %T", op, res.Record())
	}
	return v, nil
}

// all returns every chunk payload of a chunked response as T.
func all[T protocol.Payload](res router.Result) ([]T, error) {
	out := make([]T, 0, len(res.Chunks))
	for _, c := range res.Chunks {
		v, ok := c.Payload.(T)
		if !ok {
			return nil, errors.Wrapf(ErrUnexpectedPayload, "%s chunk: %T", c.Opcode, c.Payload)
		}
		out = append(out, v)
	}
	return out, nil
}
