package ble

import (
	"github.com/pkg/errors"
	"tinygo.org/x/bluetooth"
)

type CharacteristicInfo struct {
	UUID  string
	Value []byte // nil when the characteristic is not readable
}

type ServiceInfo struct {
	UUID            string
	Characteristics []CharacteristicInfo
	Err             error
}

// Explore lists all services and characteristics and reads whatever is
// readable. It writes nothing.
func Explore(device bluetooth.Device) ([]ServiceInfo, error) {
	allServices, err := device.DiscoverServices(nil)
	if err != nil {
		return nil, errors.Wrap(err, "discover services")
	}

	out := make([]ServiceInfo, 0, len(allServices))
	for _, svc := range allServices {
		info := ServiceInfo{UUID: svc.UUID().String()}
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			info.Err = err
			out = append(out, info)
			continue
		}
		for _, char := range chars {
			ci := CharacteristicInfo{UUID: char.UUID().String()}
			buf := make([]byte, 256)
			if n, err := char.Read(buf); err == nil && n > 0 {
				ci.Value = buf[:n]
			}
			info.Characteristics = append(info.Characteristics, ci)
		}
		out = append(out, info)
	}
	return out, nil
}
