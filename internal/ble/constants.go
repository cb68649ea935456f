package ble

const (
	// ServiceUUID is the bracelet's vendor data service
	ServiceUUID = "0000FFF0-0000-1000-8000-00805F9B34FB"

	// WriteCharUUID is the characteristic commands are written to
	WriteCharUUID = "0000FFF6-0000-1000-8000-00805F9B34FB"

	// NotifyCharUUID is the characteristic responses and events arrive on
	NotifyCharUUID = "0000FFF7-0000-1000-8000-00805F9B34FB"
)
