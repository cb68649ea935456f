package api

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

// ErrNotHistory is returned when a history call names an opcode that is not
// a history transfer.
var ErrNotHistory = errors.New("not a history opcode")

var historyKinds = map[string]protocol.Opcode{
	"activity-total":  protocol.TotalActivityData,
	"activity-detail": protocol.DetailActivityData,
	"sleep":           protocol.DetailSleepData,
	"heart-rate":      protocol.DynamicHR,
	"resting-hr":      protocol.StaticHR,
	"activity-mode":   protocol.ActivityModeData,
	"hrv":             protocol.HRVData,
	"gps":             protocol.GPSData,
	"spo2":            protocol.AutomaticSpo2Data,
	"spo2-manual":     protocol.ManualSpo2Data,
	"temperature":     protocol.TemperatureData,
	"temperature-ax":  protocol.AxillaryTemperatureData,
	"ecg":             protocol.ECGHistoryData,
}

// HistoryKinds maps the CLI names of history transfers to their opcodes.
func HistoryKinds() map[string]protocol.Opcode {
	out := make(map[string]protocol.Opcode, len(historyKinds))
	for k, v := range historyKinds {
		out[k] = v
	}
	return out
}

// IsHistory reports whether op is a chunked history transfer.
func IsHistory(op protocol.Opcode) bool {
	e, ok := protocol.Lookup(op)
	return ok && e.Chunked && e.HasRequestShape
}

// SinceMidnight is the default history query: everything recorded today.
func SinceMidnight(now time.Time) protocol.HistoryQuery {
	y, m, d := now.Date()
	return protocol.HistoryQuery{
		Mode:  protocol.HistoryLatest,
		Since: protocol.TimeOf(time.Date(y, m, d, 0, 0, 0, 0, now.Location())),
	}
}

// History runs a chunked history transfer and returns every chunk in arrival
// order. Chunk payloads are RawFields; continuation chunks carry "seq".
func (c *Client) History(ctx context.Context, op protocol.Opcode, q protocol.HistoryQuery) ([]protocol.DeviceData, error) {
	if !IsHistory(op) {
		return nil, errors.Wrap(ErrNotHistory, op.String())
	}
	res, err := c.Send(ctx, op, q, &RequestOptions{Timeout: c.historyTimeout})
	if err != nil {
		return nil, err
	}
	return res.Chunks, nil
}

// HistoryBytes concatenates the chunk data of a history transfer.
func HistoryBytes(chunks []protocol.DeviceData) []byte {
	var out []byte
	for _, c := range chunks {
		if f, ok := c.Payload.(protocol.RawFields); ok {
			out = append(out, f.Bytes()...)
		}
	}
	return out
}

// DeleteHistory asks the device to drop the stored records for op.
func (c *Client) DeleteHistory(ctx context.Context, op protocol.Opcode) error {
	if !IsHistory(op) {
		return errors.Wrap(ErrNotHistory, op.String())
	}
	q := SinceMidnight(time.Now())
	q.Mode = protocol.HistoryDelete
	_, err := c.Send(ctx, op, q, &RequestOptions{Timeout: c.historyTimeout})
	return err
}

// ClearHistory wipes every history store on the device.
func (c *Client) ClearHistory(ctx context.Context) error {
	return c.Exec(ctx, protocol.ClearAllHistoryData, nil)
}
