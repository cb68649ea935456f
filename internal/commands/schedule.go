package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/vitaminmoo/braceletctl/internal/api"
	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

var monitorNames = map[int]string{
	api.MonitorHeartRate:   "heart rate",
	api.MonitorSpo2:        "SpO2",
	api.MonitorTemperature: "temperature",
	api.MonitorHRV:         "HRV",
}

// Monitoring prints the automatic monitoring schedule for dataType, or
// replaces it when set is not nil.
func Monitoring(ctx context.Context, c *api.Client, w io.Writer, dataType int, set *protocol.AutomaticMonitoring) error {
	if set != nil {
		set.DataType = dataType
		if err := c.SetAutomaticMonitoring(ctx, *set); err != nil {
			return err
		}
		success(w, "Monitoring schedule for %s updated", monitorNames[dataType])
		return nil
	}
	m, err := c.GetAutomaticMonitoring(ctx, dataType)
	if err != nil {
		return err
	}
	title(w, "Automatic monitoring: "+monitorNames[dataType])
	printRecord(w, m)
	return nil
}

func Sedentary(ctx context.Context, c *api.Client, w io.Writer, set *protocol.SedentaryReminder) error {
	if set != nil {
		if err := c.SetSedentaryReminder(ctx, *set); err != nil {
			return err
		}
		success(w, "Sedentary reminder updated")
		return nil
	}
	r, err := c.GetSedentaryReminder(ctx)
	if err != nil {
		return err
	}
	title(w, "Sedentary reminder")
	printRecord(w, r)
	return nil
}

func SocialDistance(ctx context.Context, c *api.Client, w io.Writer, set *protocol.SocialDistanceReminder) error {
	if set != nil {
		if err := c.SetSocialDistanceReminder(ctx, *set); err != nil {
			return err
		}
		success(w, "Social distance reminder updated")
		return nil
	}
	r, err := c.GetSocialDistanceReminder(ctx)
	if err != nil {
		return err
	}
	title(w, "Social distance reminder")
	printRecord(w, r)
	return nil
}

// Alarms lists every alarm on the bracelet.
func Alarms(ctx context.Context, c *api.Client, w io.Writer) error {
	alarms, err := c.GetAlarmClocks(ctx)
	if err != nil {
		return err
	}
	if len(alarms) == 0 {
		fmt.Fprintln(w, "No alarms set.")
		return nil
	}
	title(w, fmt.Sprintf("%d alarm(s)", len(alarms)))
	for _, a := range alarms {
		state := styles.Success.Render("on ")
		if !a.Enabled {
			state = styles.Muted.Render("off")
		}
		fmt.Fprintf(w, "  #%d  %s  %02d:%02d  %s", a.Index, state, a.Hour, a.Minute, a.Weeks)
		if a.Interval > 0 {
			fmt.Fprintf(w, "  snooze %dm", a.Interval)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func SetAlarm(ctx context.Context, c *api.Client, w io.Writer, alarm protocol.AlarmClock) error {
	if err := c.SetAlarmClock(ctx, alarm); err != nil {
		return err
	}
	success(w, "Alarm #%d set for %02d:%02d", alarm.Index, alarm.Hour, alarm.Minute)
	return nil
}

func DeleteAlarms(ctx context.Context, c *api.Client, w io.Writer) error {
	if err := c.DeleteAllAlarmClocks(ctx); err != nil {
		return err
	}
	success(w, "All alarms deleted")
	return nil
}
