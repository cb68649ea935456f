package commands

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/vitaminmoo/braceletctl/internal/api"
	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

// Weather condition codes shown on the watch face.
var WeatherTypes = map[string]int{
	"sunny":  0,
	"cloudy": 1,
	"rain":   2,
	"snow":   3,
	"fog":    4,
	"storm":  5,
}

func Weather(ctx context.Context, c *api.Client, w io.Writer, p protocol.WeatherParameter) error {
	if err := c.SetWeather(ctx, p); err != nil {
		return err
	}
	success(w, "Weather for %s set: %d°C (%d..%d)", p.City, p.Current, p.Lowest, p.Highest)
	return nil
}

// Activity starts an exercise session on the bracelet, or ends it when mode
// is empty.
func Activity(ctx context.Context, c *api.Client, w io.Writer, mode string, breath protocol.BreathParameter) error {
	if mode == "" {
		if err := c.QuitActivityMode(ctx); err != nil {
			return err
		}
		success(w, "Activity ended")
		return nil
	}
	m, ok := protocol.ParseActivityMode(mode)
	if !ok {
		return errors.Errorf("unknown activity mode %q", mode)
	}
	if err := c.EnterActivityMode(ctx, m, breath); err != nil {
		return err
	}
	success(w, "Activity %s started", m)
	return nil
}

// LockScreen enables the PIN lock, or disables it when pin is negative.
func LockScreen(ctx context.Context, c *api.Client, w io.Writer, pin int) error {
	enabled := pin >= 0
	if !enabled {
		pin = 0
	}
	if err := c.LockScreen(ctx, enabled, pin); err != nil {
		return err
	}
	if enabled {
		success(w, "Screen lock enabled")
	} else {
		success(w, "Screen lock disabled")
	}
	return nil
}

// BPCalibration prints the blood pressure calibration, or replaces it when
// set is not nil.
func BPCalibration(ctx context.Context, c *api.Client, w io.Writer, set *protocol.BPCalibrationParameter) error {
	if set != nil {
		if err := c.SetBPCalibration(ctx, *set); err != nil {
			return err
		}
		success(w, "Blood pressure calibration updated")
		return nil
	}
	p, err := c.GetBPCalibration(ctx)
	if err != nil {
		return err
	}
	title(w, "Blood pressure calibration")
	printRecord(w, p)
	return nil
}

func Menstruation(ctx context.Context, c *api.Client, w io.Writer, info protocol.MenstruationInfo) error {
	if err := c.SetMenstruationInfo(ctx, info); err != nil {
		return err
	}
	success(w, "Cycle tracking updated")
	return nil
}

func Pregnancy(ctx context.Context, c *api.Client, w io.Writer, info protocol.PregnancyInfo) error {
	if err := c.SetPregnancyInfo(ctx, info); err != nil {
		return err
	}
	success(w, "Pregnancy mode updated")
	return nil
}

func SetDeviceID(ctx context.Context, c *api.Client, w io.Writer, id string) error {
	if err := c.SetDeviceID(ctx, id); err != nil {
		return err
	}
	success(w, "Device ID set to %q", id)
	return nil
}

// Camera puts the bracelet in remote shutter mode.
func Camera(ctx context.Context, c *api.Client, w io.Writer) error {
	if err := c.EnterCameraMode(ctx); err != nil {
		return err
	}
	success(w, "Camera mode on; shutter presses appear as events")
	return nil
}
