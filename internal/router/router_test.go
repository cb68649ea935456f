package router

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

type fakeTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	recv    func([]byte)
	sendErr error
}

func (f *fakeTransport) SendFrame(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeTransport) OnReceive(fn func([]byte)) error {
	f.recv = fn
	return nil
}

func (f *fakeTransport) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRouter(t *testing.T, opts ...Option) (*Router, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	r, err := New(ft, append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Close)
	return r, ft
}

func mustEncode(t *testing.T, op protocol.Opcode, record protocol.Payload) []byte {
	t.Helper()
	frame, err := protocol.Encode(op, record)
	if err != nil {
		t.Fatal(err)
	}
	return frame
}

func mustChunk(t *testing.T, op protocol.Opcode, seq byte, data []byte, final bool) []byte {
	t.Helper()
	frame, err := protocol.EncodeChunk(op, seq, protocol.RawFields{"data": data}, final)
	if err != nil {
		t.Fatal(err)
	}
	return frame
}

// gathered sums every sample of the named metric family.
func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return sum
}

func TestSubmitComplete(t *testing.T) {
	r, ft := newTestRouter(t)
	p, err := r.Submit(context.Background(), Request{Opcode: protocol.GetDeviceBattery})
	if err != nil {
		t.Fatal(err)
	}
	if got := p.State(); got != Sent {
		t.Errorf("state = %s, want Sent", got)
	}
	if n := len(ft.frames()); n != 1 {
		t.Fatalf("sent %d frames, want 1", n)
	}

	r.OnFrame(mustEncode(t, protocol.GetDeviceBattery, protocol.Battery{Level: 64}))

	res, err := p.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(protocol.Battery{Level: 64}, res.Record()); diff != "" {
		t.Errorf("record diff -want +got\n%s", diff)
	}
	if got := p.State(); got != Completed {
		t.Errorf("state = %s, want Completed", got)
	}
	if n := r.InFlight(); n != 0 {
		t.Errorf("%d requests still in flight", n)
	}
}

func TestTimeoutThenLateFrameDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r, _ := newTestRouter(t, WithMetrics(m))

	var late []protocol.DeviceData
	r.Subscribe(protocol.GetDeviceTime, func(dd protocol.DeviceData) { late = append(late, dd) })

	p, err := r.Submit(context.Background(), Request{Opcode: protocol.GetDeviceTime, Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Wait(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if got := p.State(); got != TimedOut {
		t.Errorf("state = %s, want TimedOut", got)
	}
	if n := r.InFlight(); n != 0 {
		t.Errorf("%d requests still in flight", n)
	}

	// The late answer reaches the subscriber, not the expired request.
	r.OnFrame(mustEncode(t, protocol.GetDeviceTime, protocol.DeviceTime{Year: 2024, Month: 1, Day: 2}))
	if len(late) != 1 {
		t.Errorf("subscriber saw %d frames, want 1", len(late))
	}
	if got := p.State(); got != TimedOut {
		t.Errorf("state after late frame = %s", got)
	}
	if got := gathered(t, reg, "braceletctl_request_timeouts_total"); got != 1 {
		t.Errorf("timeouts = %v, want 1", got)
	}
	if got := gathered(t, reg, "braceletctl_pending_requests"); got != 0 {
		t.Errorf("pending gauge = %v, want 0", got)
	}
}

func TestLateFrameWithoutSubscriberDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r, _ := newTestRouter(t, WithMetrics(m))

	p, err := r.Submit(context.Background(), Request{Opcode: protocol.GetDeviceVersion, Timeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	<-p.Done()
	r.OnFrame(mustEncode(t, protocol.GetDeviceVersion, protocol.FirmwareVersion{Major: 1}))
	if got := gathered(t, reg, "braceletctl_dropped_frames_total"); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
}

var sleepQuery = protocol.HistoryQuery{
	Mode:  protocol.HistoryLatest,
	Since: protocol.DeviceTime{Year: 2024, Month: 1, Day: 1},
}

func TestChunkedMerge(t *testing.T) {
	r, _ := newTestRouter(t)
	p, err := r.Submit(context.Background(), Request{
		Opcode: protocol.DetailSleepData,
		Record: sleepQuery,
	})
	if err != nil {
		t.Fatal(err)
	}

	r.OnFrame(mustChunk(t, protocol.DetailSleepData, 0, []byte{1, 2}, false))
	if got := p.State(); got != AwaitingChunks {
		t.Fatalf("state = %s, want AwaitingChunks", got)
	}
	r.OnFrame(mustChunk(t, protocol.DetailSleepData, 1, []byte{3, 4}, false))
	select {
	case <-p.Done():
		t.Fatal("completed before the final chunk")
	default:
	}
	r.OnFrame(mustChunk(t, protocol.DetailSleepData, 0, []byte{5}, true))

	res, err := p.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []protocol.DeviceData{
		{Opcode: protocol.DetailSleepData, Payload: protocol.RawFields{"data": []byte{1, 2}, "seq": 0}},
		{Opcode: protocol.DetailSleepData, Payload: protocol.RawFields{"data": []byte{3, 4}, "seq": 1}},
		{Opcode: protocol.DetailSleepData, Payload: protocol.RawFields{"data": []byte{5}}, Final: true},
	}
	if diff := cmp.Diff(want, res.Chunks); diff != "" {
		t.Errorf("chunks diff -want +got\n%s", diff)
	}
	if diff := cmp.Diff([]byte{1, 2, 3, 4, 5}, res.Data()); diff != "" {
		t.Errorf("data diff -want +got\n%s", diff)
	}
}

func TestChunkRearmsTimeout(t *testing.T) {
	r, _ := newTestRouter(t)
	p, err := r.Submit(context.Background(), Request{Opcode: protocol.StaticHR, Timeout: 150 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		time.Sleep(50 * time.Millisecond)
		r.OnFrame(mustChunk(t, protocol.StaticHR, byte(i), []byte{byte(i)}, false))
	}
	if got := p.State(); got != AwaitingChunks {
		t.Fatalf("state = %s, want AwaitingChunks", got)
	}
	r.OnFrame(mustChunk(t, protocol.StaticHR, 0, nil, true))
	res, err := p.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 5 {
		t.Errorf("got %d chunks, want 5", len(res.Chunks))
	}
}

func TestFIFOByOpcode(t *testing.T) {
	r, _ := newTestRouter(t)
	first, err := r.Submit(context.Background(), Request{Opcode: protocol.GetDeviceBattery, Tag: "a"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Submit(context.Background(), Request{Opcode: protocol.GetDeviceBattery, Tag: "b"})
	if err != nil {
		t.Fatal(err)
	}
	other, err := r.Submit(context.Background(), Request{Opcode: protocol.GetDeviceVersion})
	if err != nil {
		t.Fatal(err)
	}

	r.OnFrame(mustEncode(t, protocol.GetDeviceBattery, protocol.Battery{Level: 10}))
	r.OnFrame(mustEncode(t, protocol.GetDeviceBattery, protocol.Battery{Level: 20}))

	for _, tc := range []struct {
		p    *Pending
		want int
	}{{first, 10}, {second, 20}} {
		res, err := tc.p.Wait(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(protocol.Battery{Level: tc.want}, res.Record()); diff != "" {
			t.Errorf("tag %s diff -want +got\n%s", tc.p.Tag, diff)
		}
	}
	if got := other.State(); got != Sent {
		t.Errorf("unrelated request state = %s, want Sent", got)
	}
}

func TestDuplicate(t *testing.T) {
	r, _ := newTestRouter(t)
	req := Request{Opcode: protocol.GetDeviceName, Tag: "x"}
	if _, err := r.Submit(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Submit(context.Background(), req); !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestCancel(t *testing.T) {
	r, _ := newTestRouter(t)
	p, err := r.Submit(context.Background(), Request{Opcode: protocol.GetDeviceGoal})
	if err != nil {
		t.Fatal(err)
	}
	p.Cancel()
	if _, err := p.Wait(context.Background()); !errors.Is(err, ErrCanceled) {
		t.Errorf("err = %v, want ErrCanceled", err)
	}
	if n := r.InFlight(); n != 0 {
		t.Errorf("%d requests still in flight", n)
	}
	// same key can be reused
	if _, err := r.Submit(context.Background(), Request{Opcode: protocol.GetDeviceGoal}); err != nil {
		t.Errorf("resubmit: %v", err)
	}
}

func TestContextCancel(t *testing.T) {
	r, _ := newTestRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	p, err := r.Submit(ctx, Request{Opcode: protocol.GetDeviceGoal, Timeout: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("request not canceled")
	}
	if got := p.State(); got != Canceled {
		t.Errorf("state = %s, want Canceled", got)
	}
}

func TestTransportError(t *testing.T) {
	r, ft := newTestRouter(t)
	ft.sendErr = errors.New("link lost")
	_, err := r.Submit(context.Background(), Request{Opcode: protocol.GetDeviceBattery})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if n := r.InFlight(); n != 0 {
		t.Errorf("%d requests still in flight", n)
	}
	if err := r.Send(protocol.FactoryReset, nil); !errors.Is(err, ErrTransport) {
		t.Errorf("Send err = %v, want ErrTransport", err)
	}
}

func TestRejection(t *testing.T) {
	r, _ := newTestRouter(t)
	p, err := r.Submit(context.Background(), Request{Opcode: protocol.SetAlarmClock, Record: protocol.AlarmClock{Hour: 7}})
	if err != nil {
		t.Fatal(err)
	}
	frame, err := protocol.EncodeRejection(protocol.SetAlarmClock)
	if err != nil {
		t.Fatal(err)
	}
	r.OnFrame(frame)
	if _, err := p.Wait(context.Background()); !errors.Is(err, protocol.ErrDeviceRejected) {
		t.Errorf("err = %v, want ErrDeviceRejected", err)
	}
	if got := p.State(); got != Failed {
		t.Errorf("state = %s, want Failed", got)
	}
}

func TestFailureEvent(t *testing.T) {
	r, _ := newTestRouter(t)
	p, err := r.Submit(context.Background(), Request{Opcode: protocol.StartECG})
	if err != nil {
		t.Fatal(err)
	}
	r.OnFrame(mustEncode(t, protocol.ECGFailed, nil))
	if _, err := p.Wait(context.Background()); !errors.Is(err, protocol.ErrDeviceRejected) {
		t.Errorf("err = %v, want ErrDeviceRejected", err)
	}
}

func TestMalformedFrames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r, _ := newTestRouter(t, WithMetrics(m))

	p, err := r.Submit(context.Background(), Request{Opcode: protocol.GetDeviceTime})
	if err != nil {
		t.Fatal(err)
	}

	// bad checksum leaves the pending request alone
	bad := mustEncode(t, protocol.GetDeviceTime, protocol.DeviceTime{Year: 2024, Month: 1, Day: 1})
	bad[len(bad)-1] ^= 0xFF
	r.OnFrame(bad)
	if got := p.State(); got != Sent {
		t.Fatalf("state after bad checksum = %s", got)
	}

	// a frame that parses but does not decode is dropped
	short := []byte{0x41, 0x24, 0x00}
	short[2] = protocol.Checksum(short[:2])
	r.OnFrame(short)
	if got := p.State(); got != Sent {
		t.Fatalf("state after short payload = %s", got)
	}
	if got := gathered(t, reg, "braceletctl_decode_errors_total"); got != 2 {
		t.Errorf("decode errors = %v, want 2", got)
	}

	want := protocol.DeviceTime{Year: 2024, Month: 1, Day: 1}
	r.OnFrame(mustEncode(t, protocol.GetDeviceTime, want))
	res, err := p.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, res.Record()); diff != "" {
		t.Errorf("record diff -want +got\n%s", diff)
	}
}

func TestMalformedChunkKeepsChunks(t *testing.T) {
	r, _ := newTestRouter(t, WithTimeout(time.Second))
	p, err := r.Submit(context.Background(), Request{Opcode: protocol.DetailSleepData, Record: sleepQuery})
	if err != nil {
		t.Fatal(err)
	}
	r.OnFrame(mustChunk(t, protocol.DetailSleepData, 0, []byte{1}, false))
	r.OnFrame(mustChunk(t, protocol.DetailSleepData, 1, []byte{2}, false))

	// no chunk marker
	e, _ := protocol.Lookup(protocol.DetailSleepData)
	empty := []byte{e.Code, e.Code}
	r.OnFrame(empty)
	if got := p.State(); got != AwaitingChunks {
		t.Fatalf("state after malformed chunk = %s, want AwaitingChunks", got)
	}

	r.OnFrame(mustChunk(t, protocol.DetailSleepData, 0, []byte{3}, true))
	res, err := p.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, res.Data()); diff != "" {
		t.Errorf("data diff -want +got\n%s", diff)
	}
}

func TestUnknownHandler(t *testing.T) {
	var got []protocol.DeviceData
	r, _ := newTestRouter(t, WithUnknownHandler(func(dd protocol.DeviceData) { got = append(got, dd) }))
	frame := []byte{0x7F, 0x01, 0x00}
	frame[2] = protocol.Checksum(frame[:2])
	r.OnFrame(frame)

	want := []protocol.DeviceData{{
		Opcode:  protocol.DataError,
		Payload: protocol.RawFields{"code": 0x7F, "data": []byte{0x01}},
		Final:   true,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diff -want +got\n%s", diff)
	}
}

func TestSubscribers(t *testing.T) {
	r, _ := newTestRouter(t)
	var order []string
	a := r.Subscribe(protocol.RealTimeStep, func(protocol.DeviceData) { order = append(order, "a") })
	r.Subscribe(protocol.RealTimeStep, func(protocol.DeviceData) { order = append(order, "b") })

	frame := mustEncode(t, protocol.RealTimeStep, protocol.RealTimeActivity{Steps: 100})
	r.OnFrame(frame)
	if !r.Unsubscribe(a) {
		t.Error("Unsubscribe returned false")
	}
	if r.Unsubscribe(a) {
		t.Error("second Unsubscribe returned true")
	}
	r.OnFrame(frame)

	if diff := cmp.Diff([]string{"a", "b", "b"}, order); diff != "" {
		t.Errorf("delivery diff -want +got\n%s", diff)
	}
}

func TestClose(t *testing.T) {
	r, _ := newTestRouter(t)
	p, err := r.Submit(context.Background(), Request{Opcode: protocol.GetDeviceBattery})
	if err != nil {
		t.Fatal(err)
	}
	r.Close()
	if _, err := p.Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if _, err := r.Submit(context.Background(), Request{Opcode: protocol.GetDeviceBattery}); !errors.Is(err, ErrClosed) {
		t.Errorf("submit after close: err = %v", err)
	}
}

func TestFramesMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r, _ := newTestRouter(t, WithMetrics(m))
	r.OnFrame(mustEncode(t, protocol.GetDeviceBattery, protocol.Battery{Level: 1}))
	r.OnFrame(mustEncode(t, protocol.GetDeviceBattery, protocol.Battery{Level: 2}))
	if got := gathered(t, reg, "braceletctl_frames_total"); got != 2 {
		t.Errorf("frames = %v, want 2", got)
	}
}
