package ble

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"tinygo.org/x/bluetooth"

	"github.com/vitaminmoo/braceletctl/internal/config"
	"github.com/vitaminmoo/braceletctl/internal/util"
)

// Link is the frame transport over the bracelet's write and notify
// characteristics.
type Link struct {
	device     bluetooth.Device
	writeChar  *bluetooth.DeviceCharacteristic
	notifyChar *bluetooth.DeviceCharacteristic
	// maxWrite is the largest frame one write carries; zero when the
	// platform does not report an MTU.
	maxWrite   int

	writeMu sync.Mutex
}

// ErrFrameTooLarge is returned for frames longer than one ATT write.
var ErrFrameTooLarge = errors.New("frame exceeds ATT payload")

// attHeader is the ATT opcode and handle preceding every write payload.
const attHeader = 3

// maxPayload is the usable write length for an ATT MTU, or zero if unknown.
func maxPayload(mtu uint16) int {
	if int(mtu) <= attHeader {
		return 0
	}
	return int(mtu) - attHeader
}

// checkFrame rejects frames the link would truncate.
func checkFrame(frame []byte, limit int) error {
	if limit > 0 && len(frame) > limit {
		return errors.Wrapf(ErrFrameTooLarge, "%d bytes, limit %d", len(frame), limit)
	}
	return nil
}

// Open discovers the data service and its characteristics on device.
func Open(device bluetooth.Device, cfg config.DeviceConfig) (*Link, error) {
	config.Debugf("Discovering services...")

	allServices, err := device.DiscoverServices(nil)
	if err != nil {
		return nil, errors.Wrap(err, "discover services")
	}

	var service *bluetooth.DeviceService
	for i := range allServices {
		uuidStr := allServices[i].UUID().String()
		if strings.EqualFold(uuidStr, cfg.Service) {
			service = &allServices[i]
			config.Debugf("Found data service: %s", uuidStr)
			break
		}
	}
	if service == nil {
		return nil, errors.Errorf("service %s not found", cfg.Service)
	}

	chars, err := service.DiscoverCharacteristics(nil)
	if err != nil {
		return nil, errors.Wrap(err, "discover characteristics")
	}

	link := &Link{device: device}
	for i := range chars {
		uuidStr := chars[i].UUID().String()
		config.Debugf("Found characteristic: %s", uuidStr)
		if strings.EqualFold(uuidStr, cfg.WriteChar) {
			link.writeChar = &chars[i]
		}
		if strings.EqualFold(uuidStr, cfg.NotifyChar) {
			link.notifyChar = &chars[i]
		}
	}

	if link.writeChar == nil {
		return nil, errors.Errorf("write characteristic %s not found", cfg.WriteChar)
	}
	if link.notifyChar == nil {
		return nil, errors.Errorf("notify characteristic %s not found", cfg.NotifyChar)
	}
	if mtu, err := link.writeChar.GetMTU(); err != nil {
		config.Debugf("MTU unavailable: %v", err)
	} else {
		link.maxWrite = maxPayload(mtu)
		config.Debugf("ATT MTU %d, frames up to %d bytes", mtu, link.maxWrite)
	}
	return link, nil
}

// SendFrame writes one frame without response.
// NOTE: tinygo bluetooth on Linux only supports WriteWithoutResponse.
func (l *Link) SendFrame(frame []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if err := checkFrame(frame, l.maxWrite); err != nil {
		return err
	}
	if config.Verbose {
		util.PrintHexDump(frame)
	}
	if _, err := l.writeChar.WriteWithoutResponse(frame); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return nil
}

// OnReceive enables notifications and passes a copy of each one to fn.
func (l *Link) OnReceive(fn func(frame []byte)) error {
	err := l.notifyChar.EnableNotifications(func(buf []byte) {
		config.Debugf("Notification received: %d bytes", len(buf))
		frame := make([]byte, len(buf))
		copy(frame, buf)
		fn(frame)
	})
	if err != nil {
		return errors.Wrap(err, "enable notifications")
	}
	return nil
}

// Close disconnects from the device.
func (l *Link) Close() error {
	return l.device.Disconnect()
}
