package api

import (
	"context"
	"time"

	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

// GetDeviceTime returns the bracelet's clock.
func (c *Client) GetDeviceTime(ctx context.Context) (protocol.DeviceTime, error) {
	return get[protocol.DeviceTime](ctx, c, protocol.GetDeviceTime, nil)
}

// SetDeviceTime sets the bracelet's clock to t, in t's location.
func (c *Client) SetDeviceTime(ctx context.Context, t time.Time) error {
	return c.Exec(ctx, protocol.SetDeviceTime, protocol.TimeOf(t))
}

func (c *Client) GetPersonalInfo(ctx context.Context) (protocol.PersonalInfo, error) {
	return get[protocol.PersonalInfo](ctx, c, protocol.GetPersonalInfo, nil)
}

func (c *Client) SetPersonalInfo(ctx context.Context, info protocol.PersonalInfo) error {
	return c.Exec(ctx, protocol.SetPersonalInfo, info)
}

func (c *Client) GetDeviceInfo(ctx context.Context) (protocol.DeviceInfo, error) {
	return get[protocol.DeviceInfo](ctx, c, protocol.GetDeviceInfo, nil)
}

func (c *Client) SetDeviceInfo(ctx context.Context, info protocol.DeviceInfo) error {
	return c.Exec(ctx, protocol.SetDeviceInfo, info)
}

func (c *Client) SetDeviceID(ctx context.Context, id string) error {
	return c.Exec(ctx, protocol.SetDeviceID, protocol.DeviceID{ID: id})
}

func (c *Client) GetGoal(ctx context.Context) (protocol.DeviceGoal, error) {
	return get[protocol.DeviceGoal](ctx, c, protocol.GetDeviceGoal, nil)
}

func (c *Client) SetGoal(ctx context.Context, goal protocol.DeviceGoal) error {
	return c.Exec(ctx, protocol.SetDeviceGoal, goal)
}

// GetBattery returns the battery level in percent.
func (c *Client) GetBattery(ctx context.Context) (int, error) {
	b, err := get[protocol.Battery](ctx, c, protocol.GetDeviceBattery, nil)
	return b.Level, err
}

// GetMacAddress returns the address as AA:BB:CC:DD:EE:FF.
func (c *Client) GetMacAddress(ctx context.Context) (string, error) {
	m, err := get[protocol.MacAddress](ctx, c, protocol.GetDeviceMacAddress, nil)
	return m.Address, err
}

func (c *Client) GetVersion(ctx context.Context) (protocol.FirmwareVersion, error) {
	return get[protocol.FirmwareVersion](ctx, c, protocol.GetDeviceVersion, nil)
}

func (c *Client) GetDeviceName(ctx context.Context) (string, error) {
	n, err := get[protocol.DeviceName](ctx, c, protocol.GetDeviceName, nil)
	return n.Name, err
}

func (c *Client) SetDeviceName(ctx context.Context, name string) error {
	return c.Exec(ctx, protocol.SetDeviceName, protocol.DeviceName{Name: name})
}

// FactoryReset wipes settings and history. The device acknowledges before
// it resets.
func (c *Client) FactoryReset(ctx context.Context) error {
	return c.Exec(ctx, protocol.FactoryReset, nil)
}

// MCUReset reboots the bracelet. The link drops immediately, so no
// acknowledgement is awaited.
func (c *Client) MCUReset() error {
	return c.router.Send(protocol.MCUReset, nil)
}

// Vibrate runs the motor count times.
func (c *Client) Vibrate(ctx context.Context, count int) error {
	return c.Exec(ctx, protocol.MotorVibration, protocol.Vibration{Count: count})
}
