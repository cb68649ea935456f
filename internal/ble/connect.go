package ble

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/vitaminmoo/braceletctl/internal/config"
)

// ErrNotFound is returned when no advertisement matched before the scan
// timeout.
var ErrNotFound = errors.New("bracelet not found")

// MatchName reports whether an advertised local name passes filter.
func MatchName(name, filter string) bool {
	return name != "" && strings.Contains(strings.ToLower(name), strings.ToLower(filter))
}

// Connect scans for a bracelet whose local name contains cfg.Name and
// connects to the first match.
func Connect(cfg config.DeviceConfig) (bluetooth.Device, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return bluetooth.Device{}, errors.Wrap(err, "enable bluetooth")
	}

	config.Log.Infof("Scanning for %q...", cfg.Name)

	var deviceResult bluetooth.ScanResult
	var found bool

	if cfg.ScanTimeout > 0 {
		stop := time.AfterFunc(cfg.ScanTimeout, func() { adapter.StopScan() })
		defer stop.Stop()
	}

	err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		name := result.LocalName()

		if config.Verbose && name != "" {
			address, _ := result.Address.MarshalText()
			config.Log.WithFields(logrus.Fields{"name": name, "rssi": result.RSSI}).Debugf("found %s", address)
		}

		if MatchName(name, cfg.Name) {
			deviceResult = result
			found = true
			adapter.StopScan()
		}
	})
	if err != nil {
		return bluetooth.Device{}, errors.Wrap(err, "scan")
	}

	if !found {
		return bluetooth.Device{}, errors.Wrapf(ErrNotFound, "no name containing %q", cfg.Name)
	}

	address, _ := deviceResult.Address.MarshalText()
	config.Log.Infof("Connecting to %s (%s)...", deviceResult.LocalName(), address)

	device, err := adapter.Connect(deviceResult.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return bluetooth.Device{}, errors.Wrap(err, "connect")
	}

	config.Log.Info("Connected")
	return device, nil
}
