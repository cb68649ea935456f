package protocol

import (
	"fmt"
	"time"
)

// Payload is the decoded body of a frame: either one of the typed records in
// this file or RawFields for opcodes whose layout is not fixed.
type Payload interface {
	payload()
}

// RawFields carries ad hoc payloads. The "data" key holds the raw bytes after
// any chunk marker; some opcodes add derived keys (see registry.go).
type RawFields map[string]any

func (RawFields) payload() {}

// Bytes returns the "data" entry, or nil.
func (f RawFields) Bytes() []byte {
	b, _ := f["data"].([]byte)
	return b
}

// DeviceData is one decoded frame.
type DeviceData struct {
	Opcode  Opcode
	Payload Payload
	Final   bool // last chunk of a multi-part response
}

type DeviceTime struct {
	Year   int `wire:"bcd,2000"`
	Month  int `wire:"bcd"`
	Day    int `wire:"bcd"`
	Hour   int `wire:"bcd"`
	Minute int `wire:"bcd"`
	Second int `wire:"bcd"`
}

func (DeviceTime) payload() {}

// TimeOf converts t to a DeviceTime in t's location.
func TimeOf(t time.Time) DeviceTime {
	return DeviceTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// Time interprets t in loc. Out-of-range fields normalize the way
// time.Date does.
func (t DeviceTime) Time(loc *time.Location) time.Time {
	return time.Date(t.Year, time.Month(t.Month), t.Day, t.Hour, t.Minute, t.Second, 0, loc)
}

func (t DeviceTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

type PersonalInfo struct {
	Gender int `wire:"u8"` // 0 female, 1 male
	Age    int `wire:"u8"`
	Height int `wire:"u8"` // cm
	Weight int `wire:"u8"` // kg
	Stride int `wire:"u8"` // cm
}

func (PersonalInfo) payload() {}

// NotificationType selects which phone notifications are forwarded.
type NotificationType struct {
	Call      bool
	SMS       bool
	WeChat    bool
	Facebook  bool
	Instagram bool
	Skype     bool
	Telegram  bool
	Twitter   bool
	VKClient  bool
	WhatsApp  bool
	QQ        bool
	LinkedIn  bool
}

type DeviceInfo struct {
	ANCS          bool             `wire:"bool"`
	Notifications NotificationType `wire:"bits"`
	BaseHeartRate int              `wire:"u8"`
}

func (DeviceInfo) payload() {}

// WeekDaySet is packed one bit per day, Sunday in bit 0.
type WeekDaySet struct {
	Sunday    bool
	Monday    bool
	Tuesday   bool
	Wednesday bool
	Thursday  bool
	Friday    bool
	Saturday  bool
}

// Byte returns the packed form.
func (w WeekDaySet) Byte() byte {
	var b byte
	for i, on := range w.days() {
		if on {
			b |= 1 << i
		}
	}
	return b
}

// WeekDaysFromByte unpacks b; bit 7 is ignored.
func WeekDaysFromByte(b byte) WeekDaySet {
	bit := func(i uint) bool { return b&(1<<i) != 0 }
	return WeekDaySet{
		Sunday:    bit(0),
		Monday:    bit(1),
		Tuesday:   bit(2),
		Wednesday: bit(3),
		Thursday:  bit(4),
		Friday:    bit(5),
		Saturday:  bit(6),
	}
}

func (w WeekDaySet) days() [7]bool {
	return [7]bool{w.Sunday, w.Monday, w.Tuesday, w.Wednesday, w.Thursday, w.Friday, w.Saturday}
}

func (w WeekDaySet) String() string {
	const letters = "SMTWTFS"
	out := []byte("-------")
	for i, on := range w.days() {
		if on {
			out[i] = letters[i]
		}
	}
	return string(out)
}

// AutomaticMonitoring schedules background sampling of one data type.
type AutomaticMonitoring struct {
	Mode        int        `wire:"u8"` // 0 off, 1 window, 2 interval within window
	StartHour   int        `wire:"bcd"`
	StartMinute int        `wire:"bcd"`
	EndHour     int        `wire:"bcd"`
	EndMinute   int        `wire:"bcd"`
	Weeks       WeekDaySet `wire:"bits"`
	Interval    int        `wire:"u16le"` // minutes
	DataType    int        `wire:"u8"`    // 1 HR, 2 SpO2, 3 temperature, 4 HRV
}

func (AutomaticMonitoring) payload() {}

type SedentaryReminder struct {
	StartHour   int        `wire:"bcd"`
	StartMinute int        `wire:"bcd"`
	EndHour     int        `wire:"bcd"`
	EndMinute   int        `wire:"bcd"`
	Weeks       WeekDaySet `wire:"bits"`
	Interval    int        `wire:"u8"`
	LeastSteps  int        `wire:"u8"`
	Mode        int        `wire:"u8"`
}

func (SedentaryReminder) payload() {}

type AlarmClock struct {
	Index    int        `wire:"u8"`
	Enabled  bool       `wire:"bool"`
	Type     int        `wire:"u8"`
	Hour     int        `wire:"bcd"`
	Minute   int        `wire:"bcd"`
	Weeks    WeekDaySet `wire:"bits"`
	Interval int        `wire:"u8"`
}

func (AlarmClock) payload() {}

type BPCalibrationParameter struct {
	Gender    int `wire:"u8"`
	Age       int `wire:"u8"`
	Height    int `wire:"u8"`
	Weight    int `wire:"u8"`
	Systolic  int `wire:"u8"`
	Diastolic int `wire:"u8"`
	HeartRate int `wire:"u8"`
}

func (BPCalibrationParameter) payload() {}

type WeatherParameter struct {
	Type    int    `wire:"u8"`
	Current int    `wire:"i8"`
	Highest int    `wire:"i8"`
	Lowest  int    `wire:"i8"`
	City    string `wire:"str,24"`
}

func (WeatherParameter) payload() {}

type BreathParameter struct {
	Mode     int `wire:"u8"`
	Duration int `wire:"u8"` // minutes
}

type SocialDistanceReminder struct {
	ScanInterval   int `wire:"u8"`
	ScanDuration   int `wire:"u8"`
	SignalStrength int `wire:"i8"` // RSSI threshold, dBm
}

func (SocialDistanceReminder) payload() {}

type DeviceGoal struct {
	Steps        int `wire:"u32le"`
	Calories     int `wire:"u16le"`
	Distance     int `wire:"u16le"` // km
	SleepMinutes int `wire:"u16le"`
}

func (DeviceGoal) payload() {}

type Battery struct {
	Level int `wire:"u8"`
}

func (Battery) payload() {}

type MacAddress struct {
	Address string `wire:"mac"`
}

func (MacAddress) payload() {}

type FirmwareVersion struct {
	Major int `wire:"u8"`
	Minor int `wire:"u8"`
	Patch int `wire:"u8"`
	Build int `wire:"u8"`
}

func (FirmwareVersion) payload() {}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
}

type DeviceName struct {
	Name string `wire:"str,14"`
}

func (DeviceName) payload() {}

type DeviceID struct {
	ID string `wire:"str,6"`
}

func (DeviceID) payload() {}

type Vibration struct {
	Count int `wire:"u8"`
}

func (Vibration) payload() {}

// RealTimeControl toggles the RealTimeStep stream.
type RealTimeControl struct {
	Enabled     bool `wire:"bool"`
	Temperature bool `wire:"bool"`
}

func (RealTimeControl) payload() {}

// RealTimeActivity is one sample of the RealTimeStep stream.
type RealTimeActivity struct {
	Steps         int `wire:"u32le"`
	Calories      int `wire:"u16le"` // 0.01 kcal
	Distance      int `wire:"u16le"` // 0.01 km
	ActiveMinutes int `wire:"u16le"`
	HeartRate     int `wire:"u8"`
	Temperature   int `wire:"u16le"` // 0.1 °C
}

func (RealTimeActivity) payload() {}

// History query modes.
const (
	HistoryLatest   = 0x00
	HistoryContinue = 0x02
	HistoryDelete   = 0x99
)

type HistoryQuery struct {
	Mode  int        `wire:"u8"`
	Since DeviceTime `wire:"struct"`
}

func (HistoryQuery) payload() {}

type MonitoringQuery struct {
	DataType int `wire:"u8"`
}

func (MonitoringQuery) payload() {}

type ActivityModeRequest struct {
	Mode   ActivityMode    `wire:"u8"`
	Breath BreathParameter `wire:"struct"`
}

func (ActivityModeRequest) payload() {}

type MeasurementRequest struct {
	Enabled  bool `wire:"bool"`
	Duration int  `wire:"u16le"` // seconds
}

func (MeasurementRequest) payload() {}

type Measurement struct {
	HeartRate   int `wire:"u8"`
	BloodOxygen int `wire:"u8"`
	HRV         int `wire:"u8"`
	Stress      int `wire:"u8"`
	Systolic    int `wire:"u8"`
	Diastolic   int `wire:"u8"`
}

func (Measurement) payload() {}

type Progress struct {
	Percent int `wire:"u8"`
}

func (Progress) payload() {}

type ECGStatus struct {
	Status int `wire:"u8"`
}

func (ECGStatus) payload() {}

type PPGRequest struct {
	Mode   int `wire:"u8"`
	Status int `wire:"u8"`
}

func (PPGRequest) payload() {}

type LockScreen struct {
	Enabled bool `wire:"bool"`
	PIN     int  `wire:"u16le"`
}

func (LockScreen) payload() {}

type MenstruationInfo struct {
	Enabled        bool `wire:"bool"`
	CycleDays      int  `wire:"u8"`
	PeriodDays     int  `wire:"u8"`
	LastYear       int  `wire:"bcd,2000"`
	LastMonth      int  `wire:"bcd"`
	LastDay        int  `wire:"bcd"`
	ReminderHour   int  `wire:"bcd"`
	ReminderMinute int  `wire:"bcd"`
}

func (MenstruationInfo) payload() {}

type PregnancyInfo struct {
	Mode     int `wire:"u8"`
	DueYear  int `wire:"bcd,2000"`
	DueMonth int `wire:"bcd"`
	DueDay   int `wire:"bcd"`
}

func (PregnancyInfo) payload() {}
