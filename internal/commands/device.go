package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vitaminmoo/braceletctl/internal/api"
	"github.com/vitaminmoo/braceletctl/internal/ble"
	"github.com/vitaminmoo/braceletctl/internal/protocol"
	"github.com/vitaminmoo/braceletctl/internal/util"
)

// DeviceTime prints the bracelet clock and its drift from the host.
func DeviceTime(ctx context.Context, c *api.Client, w io.Writer) error {
	t, err := c.GetDeviceTime(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	title(w, "Device time")
	field(w, "Device", t)
	field(w, "Host", protocol.TimeOf(now))
	field(w, "Drift", t.Time(now.Location()).Sub(now).Round(time.Second))
	return nil
}

// SetTime sets the bracelet clock to t.
func SetTime(ctx context.Context, c *api.Client, w io.Writer, t time.Time) error {
	if err := c.SetDeviceTime(ctx, t); err != nil {
		return err
	}
	success(w, "Clock set to %s", protocol.TimeOf(t))
	return nil
}

// Info prints everything the bracelet reports about itself.
func Info(ctx context.Context, c *api.Client, w io.Writer) error {
	name, err := c.GetDeviceName(ctx)
	if err != nil {
		return err
	}
	version, err := c.GetVersion(ctx)
	if err != nil {
		return err
	}
	mac, err := c.GetMacAddress(ctx)
	if err != nil {
		return err
	}
	battery, err := c.GetBattery(ctx)
	if err != nil {
		return err
	}
	info, err := c.GetDeviceInfo(ctx)
	if err != nil {
		return err
	}

	title(w, "Device")
	field(w, "Name", name)
	field(w, "Firmware", version)
	field(w, "MAC", mac)
	field(w, "Battery", fmt.Sprintf("%d%%", battery))
	fmt.Fprintln(w)
	title(w, "Settings")
	printRecord(w, info)
	return nil
}

func Battery(ctx context.Context, c *api.Client, w io.Writer) error {
	level, err := c.GetBattery(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d%%\n", level)
	return nil
}

func MacAddress(ctx context.Context, c *api.Client, w io.Writer) error {
	mac, err := c.GetMacAddress(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, mac)
	return nil
}

func Version(ctx context.Context, c *api.Client, w io.Writer) error {
	v, err := c.GetVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, v)
	return nil
}

// Name prints the device name, or sets it when name is not empty.
func Name(ctx context.Context, c *api.Client, w io.Writer, name string) error {
	if name != "" {
		if err := c.SetDeviceName(ctx, name); err != nil {
			return err
		}
		success(w, "Name set to %q", name)
		return nil
	}
	got, err := c.GetDeviceName(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, got)
	return nil
}

// Goal prints the daily goals, or replaces them when goal is not nil.
func Goal(ctx context.Context, c *api.Client, w io.Writer, goal *protocol.DeviceGoal) error {
	if goal != nil {
		if err := c.SetGoal(ctx, *goal); err != nil {
			return err
		}
		success(w, "Goals updated")
		return nil
	}
	g, err := c.GetGoal(ctx)
	if err != nil {
		return err
	}
	title(w, "Daily goals")
	printRecord(w, g)
	return nil
}

func Vibrate(ctx context.Context, c *api.Client, w io.Writer, count int) error {
	if err := c.Vibrate(ctx, count); err != nil {
		return err
	}
	success(w, "Vibrated %d time(s)", count)
	return nil
}

// Reboot restarts the bracelet. The link drops right after.
func Reboot(c *api.Client, w io.Writer) error {
	if err := c.MCUReset(); err != nil {
		return err
	}
	success(w, "Reboot requested")
	return nil
}

// FactoryReset erases the bracelet after confirmation unless force is set.
func FactoryReset(ctx context.Context, c *api.Client, w io.Writer, force bool) error {
	if !force && !ConfirmAction(w, "This erases all settings and history. Type 'yes' to continue: ") {
		fmt.Fprintln(w, "Aborted")
		return nil
	}
	if err := c.FactoryReset(ctx); err != nil {
		return err
	}
	success(w, "Factory reset done")
	return nil
}

// Explore prints every service and characteristic of the bracelet.
func Explore(w io.Writer, services []ble.ServiceInfo) {
	fmt.Fprintf(w, "\nFound %d services:\n\n", len(services))
	for i, svc := range services {
		fmt.Fprintf(w, "Service #%d: %s\n", i+1, svc.UUID)
		if svc.Err != nil {
			fmt.Fprintf(w, "  Error: %v\n\n", svc.Err)
			continue
		}
		for j, char := range svc.Characteristics {
			fmt.Fprintf(w, "  [%d] %s\n", j+1, char.UUID)
			if len(char.Value) > 0 {
				fmt.Fprintf(w, "      Value: %s\n", util.Printable(char.Value))
			}
		}
		fmt.Fprintln(w)
	}
}
