package protocol

import (
	"fmt"
	"strings"
)

// Opcode identifies a logical command, response or event. The numeric values
// are stable: they are what callers persist and compare, independent of the
// wire code used to carry them (see registry.go).
type Opcode int

const (
	GetDeviceTime Opcode = iota
	SetDeviceTime
	GetPersonalInfo
	SetPersonalInfo
	GetDeviceInfo
	SetDeviceInfo
	SetDeviceID
	GetDeviceGoal
	SetDeviceGoal
	GetDeviceBattery
	GetDeviceMacAddress
	GetDeviceVersion
	FactoryReset
	MCUReset
	MotorVibration
	GetDeviceName
	SetDeviceName
	GetAutomaticMonitoring
	SetAutomaticMonitoring
	GetAlarmClock
	SetAlarmClock
	DeleteAllAlarmClock
	GetSedentaryReminder
	SetSedentaryReminder
	RealTimeStep
	TotalActivityData
	DetailActivityData
	DetailSleepData
	DynamicHR
	StaticHR
	ActivityModeData
	EnterActivityMode
	QuitActivityMode
	DeviceSendDataToApp
	EnterTakePhotoMode
	StartTakePhoto
	StopTakePhoto
	BackHomeView
	HRVData
	GPSData
	SetSocialDistanceReminder
	GetSocialDistanceReminder
	AutomaticSpo2Data
	ManualSpo2Data
	FindMobilePhone
	TemperatureData
	AxillaryTemperatureData
	SOS
	ECGHistoryData
	StartECG
	StopECG
	ECGRawData
	ECGSuccessResult
	ECGStatusEvent
	ECGFailed
	MeasurementHR
	MeasurementHRV
	MeasurementSpo2
	MeasurementTemperature
	LockScreenOp
	UnlockConfirmed
	UnlockRejected
	SetWeather
	OpenRRInterval
	CloseRRInterval
	RRIntervalData
	PPIData
	PPGData
	PPGStartSucceeded
	PPGStartFailed
	PPGResult
	PPGStop
	PPGQuit
	PPGMeasurementProgress
	ClearAllHistoryData
	SetMenstruationInfo
	SetPregnancyInfo
	SetBPCalibration
	GetBPCalibration

	// DataError is the sentinel for frames whose code has no registry entry.
	DataError Opcode = 255
)

var opcodeNames = map[Opcode]string{
	GetDeviceTime:             "GetDeviceTime",
	SetDeviceTime:             "SetDeviceTime",
	GetPersonalInfo:           "GetPersonalInfo",
	SetPersonalInfo:           "SetPersonalInfo",
	GetDeviceInfo:             "GetDeviceInfo",
	SetDeviceInfo:             "SetDeviceInfo",
	SetDeviceID:               "SetDeviceID",
	GetDeviceGoal:             "GetDeviceGoal",
	SetDeviceGoal:             "SetDeviceGoal",
	GetDeviceBattery:          "GetDeviceBattery",
	GetDeviceMacAddress:       "GetDeviceMacAddress",
	GetDeviceVersion:          "GetDeviceVersion",
	FactoryReset:              "FactoryReset",
	MCUReset:                  "MCUReset",
	MotorVibration:            "MotorVibration",
	GetDeviceName:             "GetDeviceName",
	SetDeviceName:             "SetDeviceName",
	GetAutomaticMonitoring:    "GetAutomaticMonitoring",
	SetAutomaticMonitoring:    "SetAutomaticMonitoring",
	GetAlarmClock:             "GetAlarmClock",
	SetAlarmClock:             "SetAlarmClock",
	DeleteAllAlarmClock:       "DeleteAllAlarmClock",
	GetSedentaryReminder:      "GetSedentaryReminder",
	SetSedentaryReminder:      "SetSedentaryReminder",
	RealTimeStep:              "RealTimeStep",
	TotalActivityData:         "TotalActivityData",
	DetailActivityData:        "DetailActivityData",
	DetailSleepData:           "DetailSleepData",
	DynamicHR:                 "DynamicHR",
	StaticHR:                  "StaticHR",
	ActivityModeData:          "ActivityModeData",
	EnterActivityMode:         "EnterActivityMode",
	QuitActivityMode:          "QuitActivityMode",
	DeviceSendDataToApp:       "DeviceSendDataToApp",
	EnterTakePhotoMode:        "EnterTakePhotoMode",
	StartTakePhoto:            "StartTakePhoto",
	StopTakePhoto:             "StopTakePhoto",
	BackHomeView:              "BackHomeView",
	HRVData:                   "HRVData",
	GPSData:                   "GPSData",
	SetSocialDistanceReminder: "SetSocialDistanceReminder",
	GetSocialDistanceReminder: "GetSocialDistanceReminder",
	AutomaticSpo2Data:         "AutomaticSpo2Data",
	ManualSpo2Data:            "ManualSpo2Data",
	FindMobilePhone:           "FindMobilePhone",
	TemperatureData:           "TemperatureData",
	AxillaryTemperatureData:   "AxillaryTemperatureData",
	SOS:                       "SOS",
	ECGHistoryData:            "ECGHistoryData",
	StartECG:                  "StartECG",
	StopECG:                   "StopECG",
	ECGRawData:                "ECGRawData",
	ECGSuccessResult:          "ECGSuccessResult",
	ECGStatusEvent:            "ECGStatus",
	ECGFailed:                 "ECGFailed",
	MeasurementHR:             "MeasurementHR",
	MeasurementHRV:            "MeasurementHRV",
	MeasurementSpo2:           "MeasurementSpo2",
	MeasurementTemperature:    "MeasurementTemperature",
	LockScreenOp:              "LockScreen",
	UnlockConfirmed:           "UnlockConfirmed",
	UnlockRejected:            "UnlockRejected",
	SetWeather:                "SetWeather",
	OpenRRInterval:            "OpenRRInterval",
	CloseRRInterval:           "CloseRRInterval",
	RRIntervalData:            "RRIntervalData",
	PPIData:                   "PPIData",
	PPGData:                   "PPGData",
	PPGStartSucceeded:         "PPGStartSucceeded",
	PPGStartFailed:            "PPGStartFailed",
	PPGResult:                 "PPGResult",
	PPGStop:                   "PPGStop",
	PPGQuit:                   "PPGQuit",
	PPGMeasurementProgress:    "PPGMeasurementProgress",
	ClearAllHistoryData:       "ClearAllHistoryData",
	SetMenstruationInfo:       "SetMenstruationInfo",
	SetPregnancyInfo:          "SetPregnancyInfo",
	SetBPCalibration:          "SetBPCalibration",
	GetBPCalibration:          "GetBPCalibration",
	DataError:                 "DataError",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// ParseOpcode looks an opcode up by name, case-sensitive.
func ParseOpcode(name string) (Opcode, bool) {
	for op, n := range opcodeNames {
		if n == name {
			return op, true
		}
	}
	return DataError, false
}

// ActivityMode selects an exercise type for EnterActivityMode.
type ActivityMode uint8

const (
	Run ActivityMode = iota
	Cycling
	Badminton
	Football
	Tennis
	Yoga
	Breath
	Dance
	Basketball
	Walk
	Workout
	Cricket
	Hiking
	Aerobics
	PingPong
	RopeJump
	SitUps
	Volleyball
)

var activityModeNames = [...]string{
	"Run", "Cycling", "Badminton", "Football", "Tennis", "Yoga",
	"Breath", "Dance", "Basketball", "Walk", "Workout", "Cricket",
	"Hiking", "Aerobics", "PingPong", "RopeJump", "SitUps", "Volleyball",
}

func (m ActivityMode) String() string {
	if int(m) < len(activityModeNames) {
		return activityModeNames[m]
	}
	return fmt.Sprintf("ActivityMode(%d)", uint8(m))
}

// ParseActivityMode is the case-insensitive inverse of String.
func ParseActivityMode(name string) (ActivityMode, bool) {
	for i, n := range activityModeNames {
		if strings.EqualFold(n, name) {
			return ActivityMode(i), true
		}
	}
	return 0, false
}
