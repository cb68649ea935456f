package api

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/vitaminmoo/braceletctl/internal/protocol"
	"github.com/vitaminmoo/braceletctl/internal/router"
)

// ErrUnknownMeasurement is returned for measurement kinds with no opcode.
var ErrUnknownMeasurement = errors.New("unknown measurement kind")

var measurements = map[string]protocol.Opcode{
	"hr":          protocol.MeasurementHR,
	"hrv":         protocol.MeasurementHRV,
	"spo2":        protocol.MeasurementSpo2,
	"temperature": protocol.MeasurementTemperature,
}

// MeasurementKinds returns the names accepted by StartMeasurement, sorted.
func MeasurementKinds() []string {
	out := make([]string, 0, len(measurements))
	for k := range measurements {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func measurementOp(kind string) (protocol.Opcode, error) {
	op, ok := measurements[kind]
	if !ok {
		return protocol.DataError, errors.Wrap(ErrUnknownMeasurement, kind)
	}
	return op, nil
}

// StartRealTime enables the step stream. The first sample doubles as the
// acknowledgement and is returned.
func (c *Client) StartRealTime(ctx context.Context, temperature bool) (protocol.RealTimeActivity, error) {
	return get[protocol.RealTimeActivity](ctx, c, protocol.RealTimeStep, protocol.RealTimeControl{Enabled: true, Temperature: temperature})
}

// StopRealTime disables the step stream. Samples already in flight still
// reach subscribers.
func (c *Client) StopRealTime() error {
	return c.router.Send(protocol.RealTimeStep, protocol.RealTimeControl{})
}

// StartMeasurement starts a timed manual measurement of kind and returns the
// first reading.
func (c *Client) StartMeasurement(ctx context.Context, kind string, d time.Duration) (protocol.Measurement, error) {
	op, err := measurementOp(kind)
	if err != nil {
		return protocol.Measurement{}, err
	}
	return get[protocol.Measurement](ctx, c, op, protocol.MeasurementRequest{Enabled: true, Duration: int(d / time.Second)})
}

func (c *Client) StopMeasurement(kind string) error {
	op, err := measurementOp(kind)
	if err != nil {
		return err
	}
	return c.router.Send(op, protocol.MeasurementRequest{})
}

// StartECG starts an ECG session. A failed start is reported by the device as
// ECGFailed and surfaces as protocol.ErrDeviceRejected.
func (c *Client) StartECG(ctx context.Context) error {
	return c.Exec(ctx, protocol.StartECG, nil)
}

func (c *Client) StopECG(ctx context.Context) error {
	return c.Exec(ctx, protocol.StopECG, nil)
}

// StartPPG starts a PPG session.
func (c *Client) StartPPG(ctx context.Context) error {
	return c.Exec(ctx, protocol.PPGStartSucceeded, protocol.PPGRequest{Mode: 1})
}

func (c *Client) StopPPG(ctx context.Context) error {
	return c.Exec(ctx, protocol.PPGStop, nil)
}

// QuitPPG leaves the PPG screen on the device.
func (c *Client) QuitPPG(ctx context.Context) error {
	return c.Exec(ctx, protocol.PPGQuit, nil)
}

func (c *Client) OpenRRInterval(ctx context.Context) error {
	return c.Exec(ctx, protocol.OpenRRInterval, nil)
}

func (c *Client) CloseRRInterval(ctx context.Context) error {
	return c.Exec(ctx, protocol.CloseRRInterval, nil)
}

// --- Subscriptions ---

// SubscribeRealTimeStep calls fn for every unsolicited step sample.
func (c *Client) SubscribeRealTimeStep(fn func(protocol.RealTimeActivity)) router.Subscription {
	return c.router.Subscribe(protocol.RealTimeStep, func(dd protocol.DeviceData) {
		if v, ok := dd.Payload.(protocol.RealTimeActivity); ok {
			fn(v)
		}
	})
}

func (c *Client) subscribeSamples(op protocol.Opcode, fn func([]int)) router.Subscription {
	return c.router.Subscribe(op, func(dd protocol.DeviceData) {
		f, ok := dd.Payload.(protocol.RawFields)
		if !ok {
			return
		}
		if s, ok := f["samples"].([]int); ok {
			fn(s)
		}
	})
}

// SubscribeECGRaw calls fn with each batch of raw ECG samples.
func (c *Client) SubscribeECGRaw(fn func([]int)) router.Subscription {
	return c.subscribeSamples(protocol.ECGRawData, fn)
}

// SubscribePPGRaw calls fn with each batch of raw PPG samples.
func (c *Client) SubscribePPGRaw(fn func([]int)) router.Subscription {
	return c.subscribeSamples(protocol.PPGData, fn)
}

// SubscribeRRInterval calls fn with each batch of RR intervals in ms.
func (c *Client) SubscribeRRInterval(fn func([]int)) router.Subscription {
	return c.subscribeSamples(protocol.RRIntervalData, fn)
}

// SubscribeMeasurement calls fn with each reading of the kind measurement.
func (c *Client) SubscribeMeasurement(kind string, fn func(protocol.Measurement)) (router.Subscription, error) {
	op, err := measurementOp(kind)
	if err != nil {
		return router.Subscription{}, err
	}
	return c.router.Subscribe(op, func(dd protocol.DeviceData) {
		if v, ok := dd.Payload.(protocol.Measurement); ok {
			fn(v)
		}
	}), nil
}

// SubscribeEvents registers fn for every event-class opcode not listed in
// except.
func (c *Client) SubscribeEvents(fn router.Handler, except ...protocol.Opcode) []router.Subscription {
	var subs []router.Subscription
	for _, e := range protocol.Entries() {
		if e.Class == protocol.Event && !slices.Contains(except, e.Opcode) {
			subs = append(subs, c.router.Subscribe(e.Opcode, fn))
		}
	}
	return subs
}

// Unsubscribe removes every subscription in subs.
func (c *Client) Unsubscribe(subs ...router.Subscription) {
	for _, s := range subs {
		c.router.Unsubscribe(s)
	}
}
