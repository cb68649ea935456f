package cli

import (
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/go-cmp/cmp"

	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var c CLI
	p, err := kong.New(&c, kong.Name("braceletctl"), kong.Exit(func(int) { t.Fatal("exit called") }))
	if err != nil {
		t.Fatal(err)
	}
	ctx, err := p.Parse(args)
	if err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return &c, ctx
}

func TestCommandTree(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"device", "battery"}, "device battery"},
		{[]string{"device", "set-time"}, "device set-time"},
		{[]string{"device", "name", "Runner"}, "device name <name>"},
		{[]string{"history", "get", "heart-rate", "--json"}, "history get <kind>"},
		{[]string{"history", "get", "sleep", "--publish"}, "history get <kind>"},
		{[]string{"stream", "ecg", "-d", "30s", "--redis"}, "stream <kind>"},
		{[]string{"schedule", "monitoring", "spo2", "--set", "--start", "09:00"}, "schedule monitoring <type>"},
		{[]string{"schedule", "set-alarm", "0", "06:30", "--days", "weekdays"}, "schedule set-alarm <index> <at>"},
		{[]string{"weather", "rain", "12", "--city", "Oslo"}, "weather <type> <current>"},
		{[]string{"debug", "encode", "MotorVibration", "03"}, "debug encode <opcode> <payload>"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			_, ctx := parse(t, tt.args...)
			if got := ctx.Command(); got != tt.want {
				t.Errorf("Command() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStreamFlags(t *testing.T) {
	c, _ := parse(t, "-v", "stream", "hr", "-d", "90s", "--metrics-addr", ":9100")
	if !c.Verbose {
		t.Error("verbose not set")
	}
	if c.Stream.Kind != "hr" || c.Stream.Duration != 90*time.Second || c.Stream.MetricsAddr != ":9100" {
		t.Errorf("stream flags = %+v", c.Stream)
	}
}

func TestGlobalOverrides(t *testing.T) {
	c, _ := parse(t, "--name", "J2208", "--timeout", "45s", "device", "info")
	cfg, err := c.load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Device.Name != "J2208" {
		t.Errorf("name = %q", cfg.Device.Name)
	}
	if cfg.Timeouts.Request != 45*time.Second {
		t.Errorf("request timeout = %s", cfg.Timeouts.Request)
	}
	// History timeout is raised so it never undercuts the request timeout.
	if cfg.Timeouts.History != 45*time.Second {
		t.Errorf("history timeout = %s", cfg.Timeouts.History)
	}
}

func TestHistoryQuery(t *testing.T) {
	now := time.Date(2025, 6, 7, 15, 4, 5, 0, time.Local)
	tests := []struct {
		name    string
		cmd     HistoryGetCmd
		want    protocol.HistoryQuery
		wantErr bool
	}{
		{
			name: "default is today",
			want: protocol.HistoryQuery{Since: protocol.DeviceTime{Year: 2025, Month: 6, Day: 7}},
		},
		{
			name: "date",
			cmd:  HistoryGetCmd{Since: "2025-03-04"},
			want: protocol.HistoryQuery{Since: protocol.DeviceTime{Year: 2025, Month: 3, Day: 4}},
		},
		{
			name: "date and time with continue",
			cmd:  HistoryGetCmd{Since: "2025-03-04T21:30", Continue: true},
			want: protocol.HistoryQuery{
				Mode:  protocol.HistoryContinue,
				Since: protocol.DeviceTime{Year: 2025, Month: 3, Day: 4, Hour: 21, Minute: 30},
			},
		},
		{
			name:    "bad date",
			cmd:     HistoryGetCmd{Since: "yesterday"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.query(now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("query() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("query mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWindowParse(t *testing.T) {
	sh, sm, eh, em, days, err := Window{Start: "07:15", End: "21:45", Days: "weekend"}.parse()
	if err != nil {
		t.Fatal(err)
	}
	if sh != 7 || sm != 15 || eh != 21 || em != 45 {
		t.Errorf("window = %02d:%02d-%02d:%02d", sh, sm, eh, em)
	}
	if days.Byte() != 0x41 {
		t.Errorf("days = %#x, want 0x41", days.Byte())
	}
	if _, _, _, _, _, err := (Window{Start: "7", End: "21:45", Days: "all"}).parse(); err == nil {
		t.Error("expected error for bad start")
	}
}
