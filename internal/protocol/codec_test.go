package protocol

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var weekdays = WeekDaySet{Monday: true, Tuesday: true, Wednesday: true, Thursday: true, Friday: true}

// sampleRecords holds one populated record per schema in the registry.
var sampleRecords = map[reflect.Type]Payload{}

func init() {
	for _, p := range []Payload{
		DeviceTime{Year: 2024, Month: 3, Day: 15, Hour: 13, Minute: 45, Second: 9},
		PersonalInfo{Gender: 1, Age: 34, Height: 178, Weight: 72, Stride: 75},
		DeviceInfo{ANCS: true, Notifications: NotificationType{Call: true, WhatsApp: true, LinkedIn: true}, BaseHeartRate: 62},
		DeviceID{ID: "A1B2C3"},
		DeviceGoal{Steps: 12000, Calories: 450, Distance: 8, SleepMinutes: 480},
		Battery{Level: 87},
		MacAddress{Address: "C4:7C:8D:6A:01:FE"},
		FirmwareVersion{Major: 1, Minor: 4, Patch: 2, Build: 17},
		Vibration{Count: 3},
		DeviceName{Name: "J2208A"},
		AutomaticMonitoring{Mode: 2, StartHour: 8, EndHour: 22, EndMinute: 30, Weeks: weekdays, Interval: 300, DataType: 1},
		AlarmClock{Index: 2, Enabled: true, Type: 1, Hour: 7, Minute: 15, Weeks: WeekDaySet{Saturday: true, Sunday: true}, Interval: 10},
		SedentaryReminder{StartHour: 9, EndHour: 18, Weeks: weekdays, Interval: 60, LeastSteps: 100, Mode: 1},
		RealTimeActivity{Steps: 70123, Calories: 31250, Distance: 512, ActiveMinutes: 43, HeartRate: 88, Temperature: 365},
		ActivityModeRequest{Mode: Yoga, Breath: BreathParameter{Mode: 1, Duration: 5}},
		SocialDistanceReminder{ScanInterval: 10, ScanDuration: 5, SignalStrength: -70},
		Measurement{HeartRate: 72, BloodOxygen: 98, HRV: 45, Stress: 30, Systolic: 120, Diastolic: 80},
		ECGStatus{Status: 2},
		LockScreen{Enabled: true, PIN: 1234},
		WeatherParameter{Type: 2, Current: -3, Highest: 4, Lowest: -8, City: "Reykjavík"},
		Progress{Percent: 55},
		MenstruationInfo{Enabled: true, CycleDays: 28, PeriodDays: 5, LastYear: 2024, LastMonth: 2, LastDay: 29, ReminderHour: 8, ReminderMinute: 30},
		PregnancyInfo{Mode: 1, DueYear: 2025, DueMonth: 1, DueDay: 15},
		BPCalibrationParameter{Gender: 1, Age: 40, Height: 175, Weight: 80, Systolic: 120, Diastolic: 80, HeartRate: 70},
		HistoryQuery{Mode: HistoryContinue, Since: DeviceTime{Year: 2024, Month: 6, Day: 30}},
		MonitoringQuery{DataType: 2},
		RealTimeControl{Enabled: true, Temperature: true},
		MeasurementRequest{Enabled: true, Duration: 60},
		PPGRequest{Mode: 1},
	} {
		sampleRecords[reflect.TypeOf(p)] = p
	}
}

func TestRoundTrip(t *testing.T) {
	for _, e := range Entries() {
		if !e.HasShape {
			continue
		}
		t.Run(e.Name(), func(t *testing.T) {
			record, ok := sampleRecords[e.Shape.Type()]
			if !ok {
				t.Fatalf("no sample for %s", e.Shape.Name)
			}
			frame, err := Encode(e.Opcode, record)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if len(frame) < minFrameLen {
				t.Errorf("frame is %d bytes, want at least %d", len(frame), minFrameLen)
			}
			got, err := DecodeFrame(frame)
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			want := DeviceData{Opcode: e.Opcode, Payload: record, Final: true}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip diff -want +got\n%s", diff)
			}
		})
	}
}

func TestRequestRoundTrip(t *testing.T) {
	for _, e := range Entries() {
		if !e.HasRequestShape {
			continue
		}
		t.Run(e.Name(), func(t *testing.T) {
			record, ok := sampleRecords[e.RequestShape.Type()]
			if !ok {
				t.Fatalf("no sample for %s", e.RequestShape.Name)
			}
			frame, err := Encode(e.Opcode, record)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			code, payload, err := ParseFrame(frame)
			if err != nil {
				t.Fatal(err)
			}
			if got := Resolve(code); got != e.Opcode {
				t.Fatalf("Resolve = %s", got)
			}
			got, err := DecodeRequest(e.Opcode, payload)
			if err != nil {
				t.Fatalf("DecodeRequest: %v", err)
			}
			want := DeviceData{Opcode: e.Opcode, Payload: record, Final: true}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip diff -want +got\n%s", diff)
			}
		})
	}
}

func TestDeviceTimeConversion(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2024, time.February, 29, 23, 59, 1, 0, loc)
	dt := TimeOf(now)
	if diff := cmp.Diff(DeviceTime{Year: 2024, Month: 2, Day: 29, Hour: 23, Minute: 59, Second: 1}, dt); diff != "" {
		t.Errorf("TimeOf diff -want +got\n%s", diff)
	}
	if got := dt.Time(loc); !got.Equal(now) {
		t.Errorf("Time = %s, want %s", got, now)
	}
	if got := dt.String(); got != "2024-02-29 23:59:01" {
		t.Errorf("String = %q", got)
	}
}

func TestShortPayload(t *testing.T) {
	for _, e := range Entries() {
		if !e.HasShape {
			continue
		}
		t.Run(e.Name(), func(t *testing.T) {
			for n := 0; n < e.Shape.Width; n++ {
				payload := make([]byte, n)
				if e.Chunked {
					payload = append([]byte{FinalChunk}, payload...)
				}
				got, err := Decode(e.Opcode, payload)
				if !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("%d bytes: err = %v, want ErrMalformedPayload", n, err)
				}
				if got.Payload != nil {
					t.Errorf("%d bytes: partial record %#v", n, got.Payload)
				}
			}
		})
	}
}

func TestTrailingBytesIgnored(t *testing.T) {
	payload := []byte{0x87, 0xAA, 0xBB, 0xCC}
	got, err := Decode(GetDeviceBattery, payload)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Battery{Level: 0x87}, got.Payload); diff != "" {
		t.Errorf("diff -want +got\n%s", diff)
	}
}

func TestResolve(t *testing.T) {
	known := map[byte]bool{}
	for _, e := range Entries() {
		if e.Code&rejectBit != 0 {
			t.Errorf("%s: code 0x%02X has the reject bit", e.Name(), e.Code)
		}
		if known[e.Code] {
			t.Errorf("%s: code 0x%02X registered twice", e.Name(), e.Code)
		}
		known[e.Code] = true
		if got := Resolve(e.Code); got != e.Opcode {
			t.Errorf("Resolve(0x%02X) = %s, want %s", e.Code, got, e.Opcode)
		}
	}
	for c := 0; c < 256; c++ {
		if known[byte(c)] {
			continue
		}
		if got := Resolve(byte(c)); got != DataError {
			t.Errorf("Resolve(0x%02X) = %s, want DataError", c, got)
		}
	}
	if n := len(Entries()); n != 79 {
		t.Errorf("registry has %d opcodes, want 79", n)
	}
}

func TestOpcodeNames(t *testing.T) {
	for _, e := range Entries() {
		op, ok := ParseOpcode(e.Name())
		if !ok || op != e.Opcode {
			t.Errorf("ParseOpcode(%q) = %s, %v", e.Name(), op, ok)
		}
	}
	if got := Opcode(200).String(); got != "Opcode(200)" {
		t.Errorf("String() = %q", got)
	}
}

func TestWeekDayPacking(t *testing.T) {
	for b := 0; b < 128; b++ {
		days := WeekDaysFromByte(byte(b))
		if got := days.Byte(); got != byte(b) {
			t.Fatalf("WeekDaysFromByte(0x%02X).Byte() = 0x%02X", b, got)
		}

		alarm := AlarmClock{Index: 1, Hour: 6, Weeks: days}
		frame, err := Encode(SetAlarmClock, alarm)
		if err != nil {
			t.Fatal(err)
		}
		// code, index, enabled, type, hour, minute, weeks
		if frame[6] != byte(b) {
			t.Fatalf("weeks byte = 0x%02X, want 0x%02X", frame[6], b)
		}
		got, err := DecodeFrame(frame)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(alarm, got.Payload); diff != "" {
			t.Fatalf("0x%02X diff -want +got\n%s", b, diff)
		}
	}
	if got := (WeekDaySet{Sunday: true, Tuesday: true}).String(); got != "S-T----" {
		t.Errorf("String() = %q", got)
	}
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		op     Opcode
		record Payload
		want   error
	}{
		{"byte overflow", SetPersonalInfo, PersonalInfo{Age: 300}, ErrFieldRange},
		{"negative unsigned", SetPersonalInfo, PersonalInfo{Weight: -1}, ErrFieldRange},
		{"year before offset", SetDeviceTime, DeviceTime{Year: 1999, Month: 1, Day: 1}, ErrFieldRange},
		{"bcd overflow", SetDeviceTime, DeviceTime{Year: 2024, Month: 1, Day: 1, Hour: 100}, ErrFieldRange},
		{"signed overflow", SetWeather, WeatherParameter{Current: 128}, ErrFieldRange},
		{"long city", SetWeather, WeatherParameter{City: "Llanfairpwllgwyngyllgogerychwyrn"}, ErrFieldRange},
		{"wrong record", SetDeviceTime, Battery{Level: 1}, ErrRecordMismatch},
		{"raw on typed opcode", SetDeviceTime, RawFields{"data": []byte{1}}, ErrRecordMismatch},
		{"unregistered", Opcode(150), nil, ErrUnknownOpcode},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(tc.op, tc.record)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestFrameLayout(t *testing.T) {
	frame, err := Encode(FactoryReset, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := make([]byte, minFrameLen)
	want[0], want[15] = 0x12, 0x12
	if diff := cmp.Diff(want, frame); diff != "" {
		t.Errorf("frame diff -want +got\n%s", diff)
	}

	frame, err = Encode(SetDeviceTime, DeviceTime{Year: 2024, Month: 12, Day: 31, Hour: 23, Minute: 59, Second: 58})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x01, 0x24, 0x12, 0x31, 0x23, 0x59, 0x58}, frame[:7]); diff != "" {
		t.Errorf("BCD diff -want +got\n%s", diff)
	}

	frame, err = Encode(SetDeviceGoal, DeviceGoal{Steps: 0x01020304, Calories: 0x0506})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x0B, 0x04, 0x03, 0x02, 0x01, 0x06, 0x05}, frame[:7]); diff != "" {
		t.Errorf("little-endian diff -want +got\n%s", diff)
	}
}

func TestParseFrame(t *testing.T) {
	good, err := Encode(GetDeviceBattery, nil)
	if err != nil {
		t.Fatal(err)
	}
	bad := append([]byte(nil), good...)
	bad[len(bad)-1]++

	for name, frame := range map[string][]byte{"empty": nil, "one byte": {0x13}, "bad checksum": bad} {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ParseFrame(frame); !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("err = %v, want ErrMalformedPayload", err)
			}
		})
	}

	code, payload, err := ParseFrame(good)
	if err != nil {
		t.Fatal(err)
	}
	if code != 0x13 || len(payload) != minFrameLen-2 {
		t.Errorf("ParseFrame = 0x%02X, %d bytes", code, len(payload))
	}
}

func TestDecodeFrameRejection(t *testing.T) {
	frame, err := EncodeRejection(SetAlarmClock)
	if err != nil {
		t.Fatal(err)
	}
	if frame[0] != 0x23|rejectBit {
		t.Errorf("code = 0x%02X", frame[0])
	}
	got, err := DecodeFrame(frame)
	if !errors.Is(err, ErrDeviceRejected) {
		t.Fatalf("err = %v, want ErrDeviceRejected", err)
	}
	if got.Opcode != SetAlarmClock {
		t.Errorf("opcode = %s, want SetAlarmClock", got.Opcode)
	}
}

func TestDecodeFrameUnknown(t *testing.T) {
	frame := []byte{0x7F, 0xAB, 0x00}
	frame[2] = Checksum(frame[:2])
	got, err := DecodeFrame(frame)
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Fatalf("err = %v, want ErrUnknownOpcode", err)
	}
	want := DeviceData{Opcode: DataError, Payload: RawFields{"code": 0x7F, "data": []byte{0xAB}}, Final: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diff -want +got\n%s", diff)
	}
}

func TestChunks(t *testing.T) {
	frame, err := EncodeChunk(TotalActivityData, 3, RawFields{"data": []byte{1, 2, 3}}, false)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	want := DeviceData{Opcode: TotalActivityData, Payload: RawFields{"data": []byte{1, 2, 3}, "seq": 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("continuation diff -want +got\n%s", diff)
	}

	frame, err = EncodeChunk(GetAlarmClock, 0, sampleRecords[reflect.TypeOf(AlarmClock{})], true)
	if err != nil {
		t.Fatal(err)
	}
	got, err = DecodeFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Final {
		t.Error("final chunk decoded as continuation")
	}

	if _, err := EncodeChunk(TotalActivityData, FinalChunk, nil, false); !errors.Is(err, ErrFieldRange) {
		t.Errorf("seq 0xFF: err = %v, want ErrFieldRange", err)
	}
	if _, err := EncodeChunk(GetDeviceTime, 0, nil, true); err == nil {
		t.Error("EncodeChunk accepted a single-frame opcode")
	}
	if _, err := Decode(TotalActivityData, nil); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("missing marker: err = %v", err)
	}
}

func TestHistoryQuery(t *testing.T) {
	q := HistoryQuery{Mode: HistoryContinue, Since: DeviceTime{Year: 2024, Month: 5, Day: 1}}
	frame, err := Encode(DetailSleepData, q)
	if err != nil {
		t.Fatal(err)
	}
	// requests carry no chunk marker
	if diff := cmp.Diff([]byte{0x53, HistoryContinue, 0x24, 0x05, 0x01}, frame[:5]); diff != "" {
		t.Errorf("diff -want +got\n%s", diff)
	}
}

func TestSamples(t *testing.T) {
	got, err := Decode(ECGRawData, []byte{0x01, 0x00, 0xFF, 0xFF, 0x10})
	if err != nil {
		t.Fatal(err)
	}
	want := RawFields{"data": []byte{0x01, 0x00, 0xFF, 0xFF, 0x10}, "samples": []int{1, -1}}
	if diff := cmp.Diff(want, got.Payload); diff != "" {
		t.Errorf("diff -want +got\n%s", diff)
	}
}

func TestInvalidBCD(t *testing.T) {
	_, err := Decode(GetDeviceTime, []byte{0x24, 0x1A, 0x01, 0x00, 0x00, 0x00})
	if !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("err = %v, want ErrMalformedPayload", err)
	}
}

func TestNextTag(t *testing.T) {
	a, b := NextTag(), NextTag()
	if a == b {
		t.Errorf("NextTag repeated %q", a)
	}
}
