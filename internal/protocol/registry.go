package protocol

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"sort"
)

// Class describes who initiates traffic for an opcode.
type Class int

const (
	// Command opcodes are sent by the host; the device answers with the same code.
	Command Class = iota
	// Stream opcodes are enabled by a command and then pushed repeatedly.
	Stream
	// Event opcodes are pushed by the device unprompted.
	Event
)

func (c Class) String() string {
	switch c {
	case Command:
		return "command"
	case Stream:
		return "stream"
	case Event:
		return "event"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Entry is the registry record for one opcode.
type Entry struct {
	Opcode  Opcode
	Code    byte
	Class   Class
	Chunked bool

	// Shape is the layout of the record the opcode carries. Zero for
	// signal-only and ad hoc opcodes.
	Shape    Schema
	HasShape bool

	// RequestShape is set when the outbound record differs from Shape
	// (history queries, stream toggles).
	RequestShape    Schema
	HasRequestShape bool

	// Fails names the request opcode this event terminates with
	// ErrDeviceRejected, or DataError if none.
	Fails Opcode

	raw func(data []byte) RawFields
}

// Name is the opcode name.
func (e Entry) Name() string { return e.Opcode.String() }

// RawFields builds the ad hoc payload for data.
func (e Entry) RawFields(data []byte) RawFields {
	if e.raw != nil {
		return e.raw(data)
	}
	return RawFields{"data": data}
}

type row struct {
	op      Opcode
	code    byte
	class   Class
	chunked bool
	shape   Payload
	request Payload
	fails   Opcode
	raw     func([]byte) RawFields
}

func cmd(op Opcode, code byte, shape Payload) row {
	return row{op: op, code: code, class: Command, shape: shape, fails: DataError}
}

func query(op Opcode, code byte, shape, request Payload) row {
	return row{op: op, code: code, class: Command, shape: shape, request: request, fails: DataError}
}

func history(op Opcode, code byte) row {
	return row{op: op, code: code, class: Command, chunked: true, request: HistoryQuery{}, fails: DataError}
}

func stream(op Opcode, code byte, shape Payload) row {
	return row{op: op, code: code, class: Stream, shape: shape, fails: DataError}
}

func samples(op Opcode, code byte) row {
	return row{op: op, code: code, class: Stream, fails: DataError, raw: int16Samples}
}

func event(op Opcode, code byte, shape Payload) row {
	return row{op: op, code: code, class: Event, shape: shape, fails: DataError}
}

func failure(op Opcode, code byte, fails Opcode) row {
	return row{op: op, code: code, class: Event, fails: fails}
}

var table = []row{
	cmd(GetDeviceTime, 0x41, DeviceTime{}),
	cmd(SetDeviceTime, 0x01, DeviceTime{}),
	cmd(GetPersonalInfo, 0x42, PersonalInfo{}),
	cmd(SetPersonalInfo, 0x02, PersonalInfo{}),
	cmd(GetDeviceInfo, 0x04, DeviceInfo{}),
	cmd(SetDeviceInfo, 0x03, DeviceInfo{}),
	cmd(SetDeviceID, 0x05, DeviceID{}),
	cmd(GetDeviceGoal, 0x4B, DeviceGoal{}),
	cmd(SetDeviceGoal, 0x0B, DeviceGoal{}),
	cmd(GetDeviceBattery, 0x13, Battery{}),
	cmd(GetDeviceMacAddress, 0x22, MacAddress{}),
	cmd(GetDeviceVersion, 0x27, FirmwareVersion{}),
	cmd(FactoryReset, 0x12, nil),
	cmd(MCUReset, 0x2E, nil),
	cmd(MotorVibration, 0x36, Vibration{}),
	cmd(GetDeviceName, 0x3E, DeviceName{}),
	cmd(SetDeviceName, 0x3D, DeviceName{}),
	query(GetAutomaticMonitoring, 0x2B, AutomaticMonitoring{}, MonitoringQuery{}),
	cmd(SetAutomaticMonitoring, 0x2A, AutomaticMonitoring{}),
	{op: GetAlarmClock, code: 0x57, class: Command, chunked: true, shape: AlarmClock{}, fails: DataError},
	cmd(SetAlarmClock, 0x23, AlarmClock{}),
	cmd(DeleteAllAlarmClock, 0x24, nil),
	cmd(GetSedentaryReminder, 0x26, SedentaryReminder{}),
	cmd(SetSedentaryReminder, 0x25, SedentaryReminder{}),
	{op: RealTimeStep, code: 0x09, class: Stream, shape: RealTimeActivity{}, request: RealTimeControl{}, fails: DataError},
	history(TotalActivityData, 0x51),
	history(DetailActivityData, 0x52),
	history(DetailSleepData, 0x53),
	history(DynamicHR, 0x54),
	history(StaticHR, 0x55),
	history(ActivityModeData, 0x5C),
	cmd(EnterActivityMode, 0x19, ActivityModeRequest{}),
	cmd(QuitActivityMode, 0x1A, nil),
	event(DeviceSendDataToApp, 0x18, nil),
	cmd(EnterTakePhotoMode, 0x20, nil),
	event(StartTakePhoto, 0x21, nil),
	event(StopTakePhoto, 0x1E, nil),
	event(BackHomeView, 0x1D, nil),
	history(HRVData, 0x56),
	history(GPSData, 0x5A),
	cmd(SetSocialDistanceReminder, 0x64, SocialDistanceReminder{}),
	cmd(GetSocialDistanceReminder, 0x65, SocialDistanceReminder{}),
	history(AutomaticSpo2Data, 0x66),
	history(ManualSpo2Data, 0x60),
	event(FindMobilePhone, 0x7D, nil),
	history(TemperatureData, 0x62),
	history(AxillaryTemperatureData, 0x67),
	event(SOS, 0x7E, nil),
	history(ECGHistoryData, 0x71),
	cmd(StartECG, 0x6A, nil),
	cmd(StopECG, 0x6B, nil),
	samples(ECGRawData, 0x6C),
	event(ECGSuccessResult, 0x6D, Measurement{}),
	stream(ECGStatusEvent, 0x6E, ECGStatus{}),
	failure(ECGFailed, 0x6F, StartECG),
	{op: MeasurementHR, code: 0x28, class: Stream, shape: Measurement{}, request: MeasurementRequest{}, fails: DataError},
	{op: MeasurementHRV, code: 0x2C, class: Stream, shape: Measurement{}, request: MeasurementRequest{}, fails: DataError},
	{op: MeasurementSpo2, code: 0x2D, class: Stream, shape: Measurement{}, request: MeasurementRequest{}, fails: DataError},
	{op: MeasurementTemperature, code: 0x2F, class: Stream, shape: Measurement{}, request: MeasurementRequest{}, fails: DataError},
	cmd(LockScreenOp, 0x37, LockScreen{}),
	event(UnlockConfirmed, 0x38, nil),
	event(UnlockRejected, 0x39, nil),
	{op: SetWeather, code: 0x15, class: Command, request: WeatherParameter{}, fails: DataError},
	cmd(OpenRRInterval, 0x3A, nil),
	cmd(CloseRRInterval, 0x3B, nil),
	samples(RRIntervalData, 0x3C),
	samples(PPIData, 0x3F),
	samples(PPGData, 0x40),
	{op: PPGStartSucceeded, code: 0x74, class: Command, request: PPGRequest{}, fails: DataError},
	failure(PPGStartFailed, 0x75, PPGStartSucceeded),
	event(PPGResult, 0x76, Measurement{}),
	cmd(PPGStop, 0x77, nil),
	cmd(PPGQuit, 0x79, nil),
	stream(PPGMeasurementProgress, 0x7A, Progress{}),
	cmd(ClearAllHistoryData, 0x61, nil),
	cmd(SetMenstruationInfo, 0x68, MenstruationInfo{}),
	cmd(SetPregnancyInfo, 0x69, PregnancyInfo{}),
	cmd(SetBPCalibration, 0x58, BPCalibrationParameter{}),
	cmd(GetBPCalibration, 0x59, BPCalibrationParameter{}),
}

var (
	byOpcode = map[Opcode]*Entry{}
	byCode   = map[byte]*Entry{}
	byType   = map[reflect.Type]Schema{}
)

func init() {
	for _, s := range table {
		e := &Entry{Opcode: s.op, Code: s.code, Class: s.class, Chunked: s.chunked, Fails: s.fails, raw: s.raw}
		if s.code&rejectBit != 0 {
			panic(fmt.Sprintf("protocol: %s code 0x%02X collides with the reject bit", s.op, s.code))
		}
		if s.shape != nil {
			e.Shape, e.HasShape = mustSchema(s.shape), true
		}
		if s.request != nil {
			e.RequestShape, e.HasRequestShape = mustSchema(s.request), true
		}
		if prev, dup := byCode[s.code]; dup {
			panic(fmt.Sprintf("protocol: code 0x%02X used by %s and %s", s.code, prev.Opcode, s.op))
		}
		if _, dup := byOpcode[s.op]; dup {
			panic(fmt.Sprintf("protocol: %s registered twice", s.op))
		}
		byOpcode[s.op] = e
		byCode[s.code] = e
	}
}

func mustSchema(p Payload) Schema {
	t := reflect.TypeOf(p)
	if s, ok := byType[t]; ok {
		return s
	}
	s, err := schemaOf(t)
	if err != nil {
		panic("protocol: " + err.Error())
	}
	byType[t] = s
	return s
}

// Resolve maps a wire code to its opcode. Unregistered codes, including
// rejection codes, resolve to DataError.
func Resolve(code byte) Opcode {
	if e, ok := byCode[code]; ok {
		return e.Opcode
	}
	return DataError
}

// Lookup returns the registry entry for op.
func Lookup(op Opcode) (Entry, bool) {
	e, ok := byOpcode[op]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// PayloadShapeFor returns the record layout carried by op. The second result
// is false for opcodes without a structured payload.
func PayloadShapeFor(op Opcode) (Schema, bool) {
	e, ok := byOpcode[op]
	if !ok || !e.HasShape {
		return Schema{}, false
	}
	return e.Shape, true
}

// Entries returns every registered opcode in opcode order.
func Entries() []Entry {
	out := make([]Entry, 0, len(byOpcode))
	for _, e := range byOpcode {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Opcode < out[j].Opcode })
	return out
}

// int16Samples decodes little-endian signed 16-bit samples; an odd trailing
// byte is dropped.
func int16Samples(data []byte) RawFields {
	n := len(data) / 2
	samples := make([]int, n)
	for i := 0; i < n; i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	return RawFields{"data": data, "samples": samples}
}
