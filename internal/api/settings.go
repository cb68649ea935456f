package api

import (
	"context"

	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

func (c *Client) SetWeather(ctx context.Context, w protocol.WeatherParameter) error {
	return c.Exec(ctx, protocol.SetWeather, w)
}

// EnterActivityMode starts an exercise session. breath only matters for the
// Breath mode.
func (c *Client) EnterActivityMode(ctx context.Context, mode protocol.ActivityMode, breath protocol.BreathParameter) error {
	return c.Exec(ctx, protocol.EnterActivityMode, protocol.ActivityModeRequest{Mode: mode, Breath: breath})
}

func (c *Client) QuitActivityMode(ctx context.Context) error {
	return c.Exec(ctx, protocol.QuitActivityMode, nil)
}

func (c *Client) GetBPCalibration(ctx context.Context) (protocol.BPCalibrationParameter, error) {
	return get[protocol.BPCalibrationParameter](ctx, c, protocol.GetBPCalibration, nil)
}

func (c *Client) SetBPCalibration(ctx context.Context, p protocol.BPCalibrationParameter) error {
	return c.Exec(ctx, protocol.SetBPCalibration, p)
}

func (c *Client) SetMenstruationInfo(ctx context.Context, info protocol.MenstruationInfo) error {
	return c.Exec(ctx, protocol.SetMenstruationInfo, info)
}

func (c *Client) SetPregnancyInfo(ctx context.Context, info protocol.PregnancyInfo) error {
	return c.Exec(ctx, protocol.SetPregnancyInfo, info)
}

// LockScreen enables or disables the PIN lock.
func (c *Client) LockScreen(ctx context.Context, enabled bool, pin int) error {
	return c.Exec(ctx, protocol.LockScreenOp, protocol.LockScreen{Enabled: enabled, PIN: pin})
}

// EnterCameraMode switches the bracelet to remote shutter mode. Shutter
// presses arrive as StartTakePhoto and StopTakePhoto events.
func (c *Client) EnterCameraMode(ctx context.Context) error {
	return c.Exec(ctx, protocol.EnterTakePhotoMode, nil)
}
