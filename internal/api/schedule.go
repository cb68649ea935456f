package api

import (
	"context"

	"github.com/pkg/errors"

	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

// Monitored data types for automatic monitoring.
const (
	MonitorHeartRate   = 1
	MonitorSpo2        = 2
	MonitorTemperature = 3
	MonitorHRV         = 4
)

// GetAutomaticMonitoring returns the schedule for one monitored data type.
// Each call gets its own tag, so queries for several types may overlap.
// Replies are matched oldest first.
func (c *Client) GetAutomaticMonitoring(ctx context.Context, dataType int) (protocol.AutomaticMonitoring, error) {
	res, err := c.Send(ctx, protocol.GetAutomaticMonitoring, protocol.MonitoringQuery{DataType: dataType}, &RequestOptions{Tag: protocol.NextTag()})
	if err != nil {
		return protocol.AutomaticMonitoring{}, err
	}
	m, ok := res.Record().(protocol.AutomaticMonitoring)
	if !ok {
		return protocol.AutomaticMonitoring{}, errors.Wrapf(ErrUnexpectedPayload, "%s: %T", protocol.GetAutomaticMonitoring, res.Record())
	}
	return m, nil
}

func (c *Client) SetAutomaticMonitoring(ctx context.Context, m protocol.AutomaticMonitoring) error {
	return c.Exec(ctx, protocol.SetAutomaticMonitoring, m)
}

// GetAlarmClocks reads every configured alarm. The device sends one alarm
// per chunk.
func (c *Client) GetAlarmClocks(ctx context.Context) ([]protocol.AlarmClock, error) {
	res, err := c.Send(ctx, protocol.GetAlarmClock, nil, &RequestOptions{Timeout: c.historyTimeout})
	if err != nil {
		return nil, err
	}
	return all[protocol.AlarmClock](res)
}

func (c *Client) SetAlarmClock(ctx context.Context, alarm protocol.AlarmClock) error {
	return c.Exec(ctx, protocol.SetAlarmClock, alarm)
}

func (c *Client) DeleteAllAlarmClocks(ctx context.Context) error {
	return c.Exec(ctx, protocol.DeleteAllAlarmClock, nil)
}

func (c *Client) GetSedentaryReminder(ctx context.Context) (protocol.SedentaryReminder, error) {
	return get[protocol.SedentaryReminder](ctx, c, protocol.GetSedentaryReminder, nil)
}

func (c *Client) SetSedentaryReminder(ctx context.Context, r protocol.SedentaryReminder) error {
	return c.Exec(ctx, protocol.SetSedentaryReminder, r)
}

func (c *Client) GetSocialDistanceReminder(ctx context.Context) (protocol.SocialDistanceReminder, error) {
	return get[protocol.SocialDistanceReminder](ctx, c, protocol.GetSocialDistanceReminder, nil)
}

func (c *Client) SetSocialDistanceReminder(ctx context.Context, r protocol.SocialDistanceReminder) error {
	return c.Exec(ctx, protocol.SetSocialDistanceReminder, r)
}
