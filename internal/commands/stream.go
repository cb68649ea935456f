package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/vitaminmoo/braceletctl/internal/api"
	"github.com/vitaminmoo/braceletctl/internal/config"
	"github.com/vitaminmoo/braceletctl/internal/protocol"
	"github.com/vitaminmoo/braceletctl/internal/router"
)

// Publisher receives every streamed frame. *publish.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, dd protocol.DeviceData) error
}

// StreamOptions configures Stream.
type StreamOptions struct {
	// Duration bounds the stream; zero streams until ctx is done. For
	// measurements it is also the measurement length sent to the device.
	Duration time.Duration
	// Temperature adds skin temperature to step samples.
	Temperature bool
	Publisher   Publisher
}

const (
	publishQueueLen = 256
	stopTimeout     = 5 * time.Second
)

type streamKind struct {
	ops   []protocol.Opcode // forwarded to the publisher
	start func(ctx context.Context, c *api.Client, o StreamOptions) (protocol.Payload, error)
	stop  func(ctx context.Context, c *api.Client) error
	watch func(c *api.Client, out *streamOutput) []router.Subscription
}

func subscribeAll(c *api.Client, fn router.Handler, ops ...protocol.Opcode) []router.Subscription {
	subs := make([]router.Subscription, 0, len(ops))
	for _, op := range ops {
		subs = append(subs, c.Router().Subscribe(op, fn))
	}
	return subs
}

func measurementKind(kind string, op protocol.Opcode) streamKind {
	return streamKind{
		ops: []protocol.Opcode{op},
		start: func(ctx context.Context, c *api.Client, o StreamOptions) (protocol.Payload, error) {
			m, err := c.StartMeasurement(ctx, kind, o.Duration)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		stop: func(_ context.Context, c *api.Client) error { return c.StopMeasurement(kind) },
		watch: func(c *api.Client, out *streamOutput) []router.Subscription {
			sub, err := c.SubscribeMeasurement(kind, func(m protocol.Measurement) { out.record(op, m) })
			if err != nil {
				return nil
			}
			return []router.Subscription{sub}
		},
	}
}

var streamKinds = map[string]streamKind{
	"steps": {
		ops: []protocol.Opcode{protocol.RealTimeStep},
		start: func(ctx context.Context, c *api.Client, o StreamOptions) (protocol.Payload, error) {
			a, err := c.StartRealTime(ctx, o.Temperature)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
		stop: func(_ context.Context, c *api.Client) error { return c.StopRealTime() },
		watch: func(c *api.Client, out *streamOutput) []router.Subscription {
			return []router.Subscription{
				c.SubscribeRealTimeStep(func(a protocol.RealTimeActivity) { out.record(protocol.RealTimeStep, a) }),
			}
		},
	},
	"ecg": {
		ops: []protocol.Opcode{protocol.ECGRawData, protocol.ECGStatusEvent, protocol.ECGSuccessResult},
		start: func(ctx context.Context, c *api.Client, _ StreamOptions) (protocol.Payload, error) {
			return nil, c.StartECG(ctx)
		},
		stop: func(ctx context.Context, c *api.Client) error { return c.StopECG(ctx) },
		watch: func(c *api.Client, out *streamOutput) []router.Subscription {
			subs := []router.Subscription{
				c.SubscribeECGRaw(func(s []int) { out.samples(protocol.ECGRawData, s) }),
			}
			return append(subs, subscribeAll(c, out.data, protocol.ECGStatusEvent, protocol.ECGSuccessResult)...)
		},
	},
	"ppg": {
		ops: []protocol.Opcode{protocol.PPGData, protocol.PPGMeasurementProgress, protocol.PPGResult},
		start: func(ctx context.Context, c *api.Client, _ StreamOptions) (protocol.Payload, error) {
			return nil, c.StartPPG(ctx)
		},
		stop: func(ctx context.Context, c *api.Client) error { return c.StopPPG(ctx) },
		watch: func(c *api.Client, out *streamOutput) []router.Subscription {
			subs := []router.Subscription{
				c.SubscribePPGRaw(func(s []int) { out.samples(protocol.PPGData, s) }),
			}
			return append(subs, subscribeAll(c, out.data, protocol.PPGMeasurementProgress, protocol.PPGResult)...)
		},
	},
	"rr": {
		ops: []protocol.Opcode{protocol.RRIntervalData, protocol.PPIData},
		start: func(ctx context.Context, c *api.Client, _ StreamOptions) (protocol.Payload, error) {
			return nil, c.OpenRRInterval(ctx)
		},
		stop: func(ctx context.Context, c *api.Client) error { return c.CloseRRInterval(ctx) },
		watch: func(c *api.Client, out *streamOutput) []router.Subscription {
			subs := []router.Subscription{
				c.SubscribeRRInterval(func(s []int) { out.samples(protocol.RRIntervalData, s) }),
			}
			return append(subs, subscribeAll(c, out.data, protocol.PPIData)...)
		},
	},
	"hr":          measurementKind("hr", protocol.MeasurementHR),
	"hrv":         measurementKind("hrv", protocol.MeasurementHRV),
	"spo2":        measurementKind("spo2", protocol.MeasurementSpo2),
	"temperature": measurementKind("temperature", protocol.MeasurementTemperature),
}

// StreamKindNames returns the accepted stream kinds, sorted.
func StreamKindNames() []string {
	names := make([]string, 0, len(streamKinds))
	for k := range streamKinds {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// streamOutput prints one line per frame. Handlers run on the receive path,
// so writes are serialized here.
type streamOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *streamOutput) line(op protocol.Opcode, format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ts := styles.Muted.Render(timeNow().Format("15:04:05.000"))
	fmt.Fprintf(o.w, "%s %s %s\n", ts, styles.Title.Render(op.String()), fmt.Sprintf(format, args...))
}

func (o *streamOutput) record(op protocol.Opcode, p protocol.Payload) {
	if raw, ok := p.(protocol.RawFields); ok {
		o.line(op, "%X", raw.Bytes())
		return
	}
	o.line(op, "%+v", p)
}

func (o *streamOutput) samples(op protocol.Opcode, s []int) {
	o.line(op, "%d samples %v", len(s), s)
}

func (o *streamOutput) data(dd protocol.DeviceData) {
	o.record(dd.Opcode, dd.Payload)
}

// forwarder hands frames to a Publisher off the receive path.
type forwarder struct {
	pub   Publisher
	queue chan protocol.DeviceData
	stop  chan struct{}
	wg    sync.WaitGroup
}

func newForwarder(pub Publisher) *forwarder {
	f := &forwarder{
		pub:   pub,
		queue: make(chan protocol.DeviceData, publishQueueLen),
		stop:  make(chan struct{}),
	}
	f.wg.Add(1)
	go f.run()
	return f
}

func (f *forwarder) forward(dd protocol.DeviceData) {
	select {
	case f.queue <- dd:
	default:
		config.Log.WithField("opcode", dd.Opcode).Warn("publish queue full, dropping frame")
	}
}

func (f *forwarder) run() {
	defer f.wg.Done()
	for {
		select {
		case dd := <-f.queue:
			f.publish(dd)
		case <-f.stop:
			for {
				select {
				case dd := <-f.queue:
					f.publish(dd)
				default:
					return
				}
			}
		}
	}
}

func (f *forwarder) publish(dd protocol.DeviceData) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := f.pub.Publish(ctx, dd); err != nil {
		config.Log.WithError(err).WithField("opcode", dd.Opcode).Warn("publish failed")
	}
}

// close drains the queue and waits for the worker.
func (f *forwarder) close() {
	close(f.stop)
	f.wg.Wait()
}

// Stream starts a real-time stream of kind, prints every frame until ctx is
// done or the duration passes, then stops the stream on the device.
// Device events are printed as they arrive.
func Stream(ctx context.Context, c *api.Client, w io.Writer, kind string, o StreamOptions) error {
	k, ok := streamKinds[kind]
	if !ok {
		return errors.Errorf("unknown stream %q", kind)
	}
	if o.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Duration)
		defer cancel()
	}

	out := &streamOutput{w: w}
	subs := k.watch(c, out)
	// The kind's own opcodes are already watched.
	subs = append(subs, c.SubscribeEvents(out.data, k.ops...)...)

	var fwd *forwarder
	if o.Publisher != nil {
		fwd = newForwarder(o.Publisher)
		subs = append(subs, subscribeAll(c, fwd.forward, k.ops...)...)
		subs = append(subs, c.SubscribeEvents(fwd.forward, k.ops...)...)
	}
	cleanup := func() {
		c.Unsubscribe(subs...)
		if fwd != nil {
			fwd.close()
		}
	}

	first, err := k.start(ctx, c, o)
	if err != nil {
		cleanup()
		return errors.Wrapf(err, "start %s stream", kind)
	}
	if first != nil {
		out.record(k.ops[0], first)
		if fwd != nil {
			fwd.forward(protocol.DeviceData{Opcode: k.ops[0], Payload: first, Final: true})
		}
	}
	fmt.Fprintln(w, styles.Muted.Render("Streaming, press Ctrl-C to stop"))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	err = k.stop(stopCtx, c)
	cleanup()
	if err != nil {
		return errors.Wrapf(err, "stop %s stream", kind)
	}
	return nil
}
