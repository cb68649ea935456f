package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitaminmoo/braceletctl/internal/api"
	"github.com/vitaminmoo/braceletctl/internal/ble"
	"github.com/vitaminmoo/braceletctl/internal/commands"
	"github.com/vitaminmoo/braceletctl/internal/config"
	"github.com/vitaminmoo/braceletctl/internal/protocol"
	"github.com/vitaminmoo/braceletctl/internal/publish"
	"github.com/vitaminmoo/braceletctl/internal/router"
)

// CLI is the root command structure for braceletctl.
type CLI struct {
	Verbose bool          `short:"v" help:"Enable verbose debug output"`
	Config  string        `short:"c" type:"existingfile" help:"YAML configuration file"`
	Timeout time.Duration `help:"Per-request timeout (overrides config)"`
	Name    string        `short:"n" help:"Bracelet name filter (overrides config)"`

	Device   DeviceCmd   `cmd:"" help:"Device info and control"`
	Profile  ProfileCmd  `cmd:"" help:"User profile kept on the bracelet"`
	Schedule ScheduleCmd `cmd:"" help:"Alarms, reminders and automatic monitoring"`
	History  HistoryCmd  `cmd:"" help:"Stored history download"`
	Stream   StreamCmd   `cmd:"" help:"Real-time data streams"`
	Weather  WeatherCmd  `cmd:"" help:"Push the weather forecast"`
	Settings SettingsCmd `cmd:"" help:"Other bracelet settings"`
	Debug    DebugCmd    `cmd:"" help:"Debug and development tools"`
}

// load builds the configuration from the defaults, the config file and the
// global flags, in that order.
func (g *CLI) load() (*config.Config, error) {
	config.SetVerbose(g.Verbose)
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.Name != "" {
		cfg.Device.Name = g.Name
	}
	if g.Timeout > 0 {
		cfg.Timeouts.Request = g.Timeout
		if cfg.Timeouts.History < g.Timeout {
			cfg.Timeouts.History = g.Timeout
		}
	}
	return cfg, cfg.Validate()
}

// run opens a session and calls fn with a context cancelled on SIGINT or
// SIGTERM.
func (g *CLI) run(opts commands.SessionOptions, fn func(ctx context.Context, s *commands.Session) error) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := commands.Open(*cfg, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// client is run for commands that only need the typed client.
func (g *CLI) client(fn func(ctx context.Context, c *api.Client) error) error {
	return g.run(commands.SessionOptions{}, func(ctx context.Context, s *commands.Session) error {
		return fn(ctx, s.Client)
	})
}

// --- Device Commands ---

type DeviceCmd struct {
	Time         DeviceTimeCmd    `cmd:"" help:"Show the bracelet clock"`
	SetTime      DeviceSetTimeCmd `cmd:"" name:"set-time" help:"Set the bracelet clock to local time"`
	Info         DeviceInfoCmd    `cmd:"" help:"Show device summary"`
	Battery      BatteryCmd       `cmd:"" help:"Show battery level"`
	Mac          MacCmd           `cmd:"" help:"Show MAC address"`
	Version      VersionCmd       `cmd:"" help:"Show firmware version"`
	Name         NameCmd          `cmd:"" help:"Show or set the advertised name"`
	Goal         GoalCmd          `cmd:"" help:"Show or set daily goals"`
	ID           DeviceIDCmd      `cmd:"" name:"id" help:"Set the device ID"`
	Vibrate      VibrateCmd       `cmd:"" help:"Vibrate the motor"`
	Reboot       RebootCmd        `cmd:"" help:"Restart the bracelet MCU"`
	FactoryReset FactoryResetCmd  `cmd:"" name:"factory-reset" help:"Erase all data and settings"`
}

type DeviceTimeCmd struct{}

func (c *DeviceTimeCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.DeviceTime(ctx, cl, os.Stdout)
	})
}

type DeviceSetTimeCmd struct {
	At string `arg:"" optional:"" help:"Time to set, RFC3339 (default now)"`
}

func (c *DeviceSetTimeCmd) Run(globals *CLI) error {
	t := time.Now()
	if c.At != "" {
		var err error
		if t, err = time.Parse(time.RFC3339, c.At); err != nil {
			return errors.Wrap(err, "time")
		}
	}
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.SetTime(ctx, cl, os.Stdout, t)
	})
}

type DeviceInfoCmd struct{}

func (c *DeviceInfoCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Info(ctx, cl, os.Stdout)
	})
}

type BatteryCmd struct{}

func (c *BatteryCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Battery(ctx, cl, os.Stdout)
	})
}

type MacCmd struct{}

func (c *MacCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.MacAddress(ctx, cl, os.Stdout)
	})
}

type VersionCmd struct{}

func (c *VersionCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Version(ctx, cl, os.Stdout)
	})
}

type NameCmd struct {
	Name string `arg:"" optional:"" help:"New name; omit to show the current one"`
}

func (c *NameCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Name(ctx, cl, os.Stdout, c.Name)
	})
}

type GoalCmd struct {
	Set      bool `help:"Write the goals instead of reading them"`
	Steps    int  `help:"Daily steps"`
	Calories int  `help:"Daily kcal"`
	Distance int  `help:"Daily distance, km"`
	Sleep    int  `help:"Sleep, minutes"`
}

func (c *GoalCmd) Run(globals *CLI) error {
	var goal *protocol.DeviceGoal
	if c.Set {
		goal = &protocol.DeviceGoal{Steps: c.Steps, Calories: c.Calories, Distance: c.Distance, SleepMinutes: c.Sleep}
	}
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Goal(ctx, cl, os.Stdout, goal)
	})
}

type DeviceIDCmd struct {
	ID string `arg:"" help:"Device ID, up to 6 characters"`
}

func (c *DeviceIDCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.SetDeviceID(ctx, cl, os.Stdout, c.ID)
	})
}

type VibrateCmd struct {
	Count int `arg:"" optional:"" default:"1" help:"Number of pulses"`
}

func (c *VibrateCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Vibrate(ctx, cl, os.Stdout, c.Count)
	})
}

type RebootCmd struct{}

func (c *RebootCmd) Run(globals *CLI) error {
	return globals.client(func(_ context.Context, cl *api.Client) error {
		return commands.Reboot(cl, os.Stdout)
	})
}

type FactoryResetCmd struct {
	Force bool `short:"f" help:"Skip confirmation prompt"`
}

func (c *FactoryResetCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.FactoryReset(ctx, cl, os.Stdout, c.Force)
	})
}

// --- Profile Commands ---

type ProfileCmd struct {
	Show ProfileShowCmd `cmd:"" default:"1" help:"Show the stored profile"`
	Set  ProfileSetCmd  `cmd:"" help:"Write the profile from flags or a YAML file"`
}

type ProfileShowCmd struct{}

func (c *ProfileShowCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.ShowProfile(ctx, cl, os.Stdout)
	})
}

type ProfileSetCmd struct {
	File   string `short:"f" type:"existingfile" help:"YAML profile; flags are ignored when set"`
	Gender string `enum:"female,male" default:"female" help:"female or male"`
	Age    int    `help:"Age, years"`
	Height int    `help:"Height, cm"`
	Weight int    `help:"Weight, kg"`
	Stride int    `help:"Stride length, cm"`
}

func (c *ProfileSetCmd) Run(globals *CLI) error {
	p := commands.Profile{Gender: c.Gender, Age: c.Age, Height: c.Height, Weight: c.Weight, Stride: c.Stride}
	if c.File != "" {
		var err error
		if p, err = commands.LoadProfile(c.File); err != nil {
			return err
		}
	}
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.SetProfile(ctx, cl, os.Stdout, p)
	})
}

// --- Schedule Commands ---

type ScheduleCmd struct {
	Monitoring     MonitoringCmd     `cmd:"" help:"Show or set automatic monitoring"`
	Sedentary      SedentaryCmd      `cmd:"" help:"Show or set the sedentary reminder"`
	SocialDistance SocialDistanceCmd `cmd:"" name:"social-distance" help:"Show or set the social distance reminder"`
	Alarms         AlarmsCmd         `cmd:"" help:"List alarms"`
	SetAlarm       SetAlarmCmd       `cmd:"" name:"set-alarm" help:"Add or replace an alarm"`
	DeleteAlarms   DeleteAlarmsCmd   `cmd:"" name:"delete-alarms" help:"Delete all alarms"`
}

// Window holds the flags shared by schedules with an active time window.
type Window struct {
	Start string `default:"08:00" help:"Window start, HH:MM"`
	End   string `default:"22:00" help:"Window end, HH:MM"`
	Days  string `default:"all" help:"all, weekdays, weekend, none or e.g. mon,wed,fri"`
}

func (w Window) parse() (sh, sm, eh, em int, days protocol.WeekDaySet, err error) {
	if sh, sm, err = commands.ParseClock(w.Start); err != nil {
		return
	}
	if eh, em, err = commands.ParseClock(w.End); err != nil {
		return
	}
	days, err = commands.ParseWeekDays(w.Days)
	return
}

var monitorTypes = map[string]int{
	"hr":          api.MonitorHeartRate,
	"spo2":        api.MonitorSpo2,
	"temperature": api.MonitorTemperature,
	"hrv":         api.MonitorHRV,
}

type MonitoringCmd struct {
	Type     string `arg:"" enum:"hr,spo2,temperature,hrv" help:"hr, spo2, temperature or hrv"`
	Set      bool   `help:"Write the schedule instead of reading it"`
	Mode     int    `default:"2" help:"0 off, 1 window, 2 interval within window"`
	Interval int    `default:"30" help:"Sampling interval, minutes"`
	Window `embed:""`
}

func (c *MonitoringCmd) Run(globals *CLI) error {
	var set *protocol.AutomaticMonitoring
	if c.Set {
		sh, sm, eh, em, days, err := c.Window.parse()
		if err != nil {
			return err
		}
		set = &protocol.AutomaticMonitoring{
			Mode:      c.Mode,
			StartHour: sh, StartMinute: sm,
			EndHour: eh, EndMinute: em,
			Weeks:    days,
			Interval: c.Interval,
		}
	}
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Monitoring(ctx, cl, os.Stdout, monitorTypes[c.Type], set)
	})
}

type SedentaryCmd struct {
	Set      bool `help:"Write the reminder instead of reading it"`
	Interval int  `default:"60" help:"Reminder interval, minutes"`
	Steps    int  `default:"50" help:"Steps that reset the timer"`
	Off      bool `help:"Disable the reminder"`
	Window `embed:""`
}

func (c *SedentaryCmd) Run(globals *CLI) error {
	var set *protocol.SedentaryReminder
	if c.Set {
		sh, sm, eh, em, days, err := c.Window.parse()
		if err != nil {
			return err
		}
		set = &protocol.SedentaryReminder{
			StartHour: sh, StartMinute: sm,
			EndHour: eh, EndMinute: em,
			Weeks:      days,
			Interval:   c.Interval,
			LeastSteps: c.Steps,
			Mode:       1,
		}
		if c.Off {
			set.Mode = 0
		}
	}
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Sedentary(ctx, cl, os.Stdout, set)
	})
}

type SocialDistanceCmd struct {
	Set      bool `help:"Write the reminder instead of reading it"`
	Interval int  `default:"5" help:"Scan interval, minutes"`
	Duration int  `default:"10" help:"Scan duration, seconds"`
	RSSI     int  `name:"rssi" default:"-60" help:"Signal threshold, dBm"`
}

func (c *SocialDistanceCmd) Run(globals *CLI) error {
	var set *protocol.SocialDistanceReminder
	if c.Set {
		set = &protocol.SocialDistanceReminder{ScanInterval: c.Interval, ScanDuration: c.Duration, SignalStrength: c.RSSI}
	}
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.SocialDistance(ctx, cl, os.Stdout, set)
	})
}

type AlarmsCmd struct{}

func (c *AlarmsCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Alarms(ctx, cl, os.Stdout)
	})
}

type SetAlarmCmd struct {
	Index  int    `arg:"" help:"Alarm slot"`
	At     string `arg:"" help:"Alarm time, HH:MM"`
	Days   string `default:"all" help:"all, weekdays, weekend, none or e.g. mon,wed,fri"`
	Snooze int    `default:"0" help:"Snooze interval, minutes"`
	Type   int    `default:"0" help:"Alarm type shown on the watch"`
	Off    bool   `help:"Store the alarm disabled"`
}

func (c *SetAlarmCmd) Run(globals *CLI) error {
	h, m, err := commands.ParseClock(c.At)
	if err != nil {
		return err
	}
	days, err := commands.ParseWeekDays(c.Days)
	if err != nil {
		return err
	}
	alarm := protocol.AlarmClock{
		Index:    c.Index,
		Enabled:  !c.Off,
		Type:     c.Type,
		Hour:     h,
		Minute:   m,
		Weeks:    days,
		Interval: c.Snooze,
	}
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.SetAlarm(ctx, cl, os.Stdout, alarm)
	})
}

type DeleteAlarmsCmd struct{}

func (c *DeleteAlarmsCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.DeleteAlarms(ctx, cl, os.Stdout)
	})
}

// --- History Commands ---

type HistoryCmd struct {
	Get    HistoryGetCmd    `cmd:"" default:"withargs" help:"Download one history store"`
	Delete HistoryDeleteCmd `cmd:"" help:"Delete one history store, or all"`
	Kinds  HistoryKindsCmd  `cmd:"" help:"List history kinds"`
}

type HistoryGetCmd struct {
	Kind     string `arg:"" help:"History kind (see 'history kinds')"`
	Since    string `help:"Start time, YYYY-MM-DD or YYYY-MM-DDTHH:MM (default today)"`
	Continue bool   `help:"Continue from the last download"`
	JSON     bool   `name:"json" help:"Print every chunk as a JSON envelope"`
	Publish  bool   `help:"Publish the downloaded chunks to Redis"`
}

func (c *HistoryGetCmd) query(now time.Time) (protocol.HistoryQuery, error) {
	q := api.SinceMidnight(now)
	if c.Since != "" {
		t, err := time.ParseInLocation("2006-01-02T15:04", c.Since, time.Local)
		if err != nil {
			if t, err = time.ParseInLocation("2006-01-02", c.Since, time.Local); err != nil {
				return q, errors.Errorf("since %q: want YYYY-MM-DD or YYYY-MM-DDTHH:MM", c.Since)
			}
		}
		q.Since = protocol.TimeOf(t)
	}
	if c.Continue {
		q.Mode = protocol.HistoryContinue
	}
	return q, nil
}

func (c *HistoryGetCmd) Run(globals *CLI) error {
	q, err := c.query(time.Now())
	if err != nil {
		return err
	}
	o := commands.HistoryOptions{JSON: c.JSON}
	if c.Publish {
		cfg, err := globals.load()
		if err != nil {
			return err
		}
		pub, err := connectPublisher(cfg)
		if err != nil {
			return err
		}
		defer pub.Close()
		o.Publisher = pub
	}
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.History(ctx, cl, os.Stdout, c.Kind, q, o)
	})
}

type HistoryDeleteCmd struct {
	Kind  string `arg:"" help:"History kind, or all"`
	Force bool   `short:"f" help:"Skip confirmation prompt"`
}

func (c *HistoryDeleteCmd) Run(globals *CLI) error {
	if !c.Force && !commands.ConfirmAction(os.Stdout, "Delete "+c.Kind+" history? Type 'yes' to continue: ") {
		return errors.New("aborted")
	}
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.DeleteHistory(ctx, cl, os.Stdout, c.Kind)
	})
}

type HistoryKindsCmd struct{}

func (c *HistoryKindsCmd) Run(globals *CLI) error {
	for _, k := range commands.HistoryKindNames() {
		os.Stdout.WriteString(k + "\n")
	}
	return nil
}

// --- Stream Commands ---

type StreamCmd struct {
	Kind        string        `arg:"" enum:"steps,ecg,ppg,rr,hr,hrv,spo2,temperature" help:"steps, ecg, ppg, rr, hr, hrv, spo2 or temperature"`
	Duration    time.Duration `short:"d" help:"Stop after this long (default until Ctrl-C)"`
	Temperature bool          `help:"Include skin temperature in step samples"`
	Redis       bool          `help:"Publish every frame to Redis"`
	Capture     bool          `help:"Record frames to the capture directory"`
	MetricsAddr string        `name:"metrics-addr" help:"Serve Prometheus metrics on this address"`
}

func (c *StreamCmd) Run(globals *CLI) error {
	cfg, err := globals.load()
	if err != nil {
		return err
	}

	opts := commands.SessionOptions{}
	if c.Capture {
		opts.CaptureDir = cfg.Capture.Dir
	}
	if c.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts.Metrics = router.NewMetrics(reg)
		srv := serveMetrics(c.MetricsAddr, reg)
		defer srv.Close()
	}

	so := commands.StreamOptions{Duration: c.Duration, Temperature: c.Temperature}
	if c.Redis {
		pub, err := connectPublisher(cfg)
		if err != nil {
			return err
		}
		defer pub.Close()
		so.Publisher = pub
	}

	return globals.run(opts, func(ctx context.Context, s *commands.Session) error {
		return commands.Stream(ctx, s.Client, os.Stdout, c.Kind, so)
	})
}

func connectPublisher(cfg *config.Config) (*publish.Publisher, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return publish.New(ctx, cfg.Redis, config.Log)
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		config.Log.Infof("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			config.Log.WithError(err).Error("metrics server")
		}
	}()
	return srv
}

// --- Settings Commands ---

type WeatherCmd struct {
	Type    string `arg:"" enum:"sunny,cloudy,rain,snow,fog,storm" help:"sunny, cloudy, rain, snow, fog or storm"`
	Current int    `arg:"" help:"Current temperature, °C"`
	Low     int    `help:"Lowest temperature, °C"`
	High    int    `help:"Highest temperature, °C"`
	City    string `default:"" help:"City name"`
}

func (c *WeatherCmd) Run(globals *CLI) error {
	p := protocol.WeatherParameter{
		Type:    commands.WeatherTypes[c.Type],
		Current: c.Current,
		Lowest:  c.Low,
		Highest: c.High,
		City:    c.City,
	}
	if p.Lowest == 0 && p.Highest == 0 {
		p.Lowest, p.Highest = c.Current, c.Current
	}
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Weather(ctx, cl, os.Stdout, p)
	})
}

type SettingsCmd struct {
	Activity     ActivityCmd     `cmd:"" help:"Start or end an exercise session"`
	Lock         LockCmd         `cmd:"" help:"Set or clear the screen lock PIN"`
	BP           BPCmd           `cmd:"" name:"bp" help:"Show or set blood pressure calibration"`
	Menstruation MenstruationCmd `cmd:"" help:"Configure cycle tracking"`
	Pregnancy    PregnancyCmd    `cmd:"" help:"Configure pregnancy mode"`
	Camera       CameraCmd       `cmd:"" help:"Enter remote shutter mode"`
}

type ActivityCmd struct {
	Mode          string `arg:"" optional:"" help:"Exercise type, e.g. run or cycling; omit to end the session"`
	BreathMode    int    `help:"Breathing exercise mode"`
	BreathMinutes int    `help:"Breathing exercise length, minutes"`
}

func (c *ActivityCmd) Run(globals *CLI) error {
	breath := protocol.BreathParameter{Mode: c.BreathMode, Duration: c.BreathMinutes}
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Activity(ctx, cl, os.Stdout, c.Mode, breath)
	})
}

type LockCmd struct {
	PIN int `arg:"" optional:"" default:"-1" help:"Four digit PIN; omit to disable the lock"`
}

func (c *LockCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.LockScreen(ctx, cl, os.Stdout, c.PIN)
	})
}

type BPCmd struct {
	Set       bool   `help:"Write the calibration instead of reading it"`
	Gender    string `enum:"female,male" default:"female" help:"female or male"`
	Age       int    `help:"Age, years"`
	Height    int    `help:"Height, cm"`
	Weight    int    `help:"Weight, kg"`
	Systolic  int    `help:"Reference systolic pressure, mmHg"`
	Diastolic int    `help:"Reference diastolic pressure, mmHg"`
	HeartRate int    `help:"Reference heart rate, bpm"`
}

func (c *BPCmd) Run(globals *CLI) error {
	var set *protocol.BPCalibrationParameter
	if c.Set {
		set = &protocol.BPCalibrationParameter{
			Age: c.Age, Height: c.Height, Weight: c.Weight,
			Systolic: c.Systolic, Diastolic: c.Diastolic, HeartRate: c.HeartRate,
		}
		if c.Gender == "male" {
			set.Gender = 1
		}
	}
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.BPCalibration(ctx, cl, os.Stdout, set)
	})
}

type MenstruationCmd struct {
	Off      bool   `help:"Disable cycle tracking"`
	Cycle    int    `default:"28" help:"Cycle length, days"`
	Period   int    `default:"5" help:"Period length, days"`
	Last     string `help:"First day of the last period, YYYY-MM-DD"`
	Reminder string `default:"08:00" help:"Reminder time, HH:MM"`
}

func (c *MenstruationCmd) Run(globals *CLI) error {
	info := protocol.MenstruationInfo{Enabled: !c.Off, CycleDays: c.Cycle, PeriodDays: c.Period}
	last := time.Now()
	if c.Last != "" {
		var err error
		if last, err = time.Parse("2006-01-02", c.Last); err != nil {
			return errors.Wrap(err, "last")
		}
	}
	info.LastYear, info.LastMonth, info.LastDay = last.Year(), int(last.Month()), last.Day()
	h, m, err := commands.ParseClock(c.Reminder)
	if err != nil {
		return err
	}
	info.ReminderHour, info.ReminderMinute = h, m
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Menstruation(ctx, cl, os.Stdout, info)
	})
}

type PregnancyCmd struct {
	Mode int    `default:"1" help:"0 off, 1 pregnancy, 2 preparation"`
	Due  string `required:"" help:"Due date, YYYY-MM-DD"`
}

func (c *PregnancyCmd) Run(globals *CLI) error {
	due, err := time.Parse("2006-01-02", c.Due)
	if err != nil {
		return errors.Wrap(err, "due")
	}
	info := protocol.PregnancyInfo{Mode: c.Mode, DueYear: due.Year(), DueMonth: int(due.Month()), DueDay: due.Day()}
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Pregnancy(ctx, cl, os.Stdout, info)
	})
}

type CameraCmd struct{}

func (c *CameraCmd) Run(globals *CLI) error {
	return globals.client(func(ctx context.Context, cl *api.Client) error {
		return commands.Camera(ctx, cl, os.Stdout)
	})
}

// --- Debug Commands ---

type DebugCmd struct {
	Explore ExploreCmd `cmd:"" help:"List all BLE services and characteristics"`
	Opcodes OpcodesCmd `cmd:"" help:"List the opcode registry"`
	Encode  EncodeCmd  `cmd:"" help:"Build a request frame without connecting"`
	Replay  ReplayCmd  `cmd:"" help:"Decode a capture file"`
}

type ExploreCmd struct{}

func (c *ExploreCmd) Run(globals *CLI) error {
	cfg, err := globals.load()
	if err != nil {
		return err
	}
	device, err := ble.Connect(cfg.Device)
	if err != nil {
		return err
	}
	defer device.Disconnect()
	services, err := ble.Explore(device)
	if err != nil {
		return err
	}
	commands.Explore(os.Stdout, services)
	return nil
}

type OpcodesCmd struct{}

func (c *OpcodesCmd) Run(globals *CLI) error {
	commands.Opcodes(os.Stdout)
	return nil
}

type EncodeCmd struct {
	Opcode  string `arg:"" help:"Opcode name, e.g. SetDeviceTime"`
	Payload string `arg:"" optional:"" help:"Request body as hex"`
}

func (c *EncodeCmd) Run(globals *CLI) error {
	config.SetVerbose(globals.Verbose)
	return commands.Encode(os.Stdout, c.Opcode, c.Payload)
}

type ReplayCmd struct {
	File  string `arg:"" type:"existingfile" help:"Capture file"`
	Route bool   `help:"Also route RX frames and count what would reach subscribers"`
}

func (c *ReplayCmd) Run(globals *CLI) error {
	config.SetVerbose(globals.Verbose)
	return commands.Replay(os.Stdout, c.File, c.Route)
}
