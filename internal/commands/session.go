package commands

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/vitaminmoo/braceletctl/internal/api"
	"github.com/vitaminmoo/braceletctl/internal/ble"
	"github.com/vitaminmoo/braceletctl/internal/capture"
	"github.com/vitaminmoo/braceletctl/internal/config"
	"github.com/vitaminmoo/braceletctl/internal/protocol"
	"github.com/vitaminmoo/braceletctl/internal/router"
)

// Session is an open connection to one bracelet.
type Session struct {
	Router *router.Router
	Client *api.Client

	link    *ble.Link
	capture *os.File
}

type SessionOptions struct {
	// CaptureDir, when set, records every frame to a new file there.
	CaptureDir string
	Metrics    *router.Metrics
}

// Open scans for the configured bracelet, connects and sets up the router.
func Open(cfg config.Config, opts SessionOptions) (*Session, error) {
	device, err := ble.Connect(cfg.Device)
	if err != nil {
		return nil, err
	}
	link, err := ble.Open(device, cfg.Device)
	if err != nil {
		device.Disconnect()
		return nil, err
	}
	s, err := newSession(link, cfg, opts)
	if err != nil {
		link.Close()
		return nil, err
	}
	s.link = link
	return s, nil
}

func newSession(t router.Transport, cfg config.Config, opts SessionOptions) (*Session, error) {
	s := &Session{}
	if opts.CaptureDir != "" {
		f, err := capture.Create(opts.CaptureDir)
		if err != nil {
			return nil, err
		}
		config.Log.Infof("Capturing frames to %s", f.Name())
		s.capture = f
		t = capture.NewTap(t, capture.NewWriter(f))
	}

	r, err := router.New(t,
		router.WithTimeout(cfg.Timeouts.Request),
		router.WithMetrics(opts.Metrics),
		router.WithUnknownHandler(func(dd protocol.DeviceData) {
			raw, _ := dd.Payload.(protocol.RawFields)
			config.Log.WithFields(logrus.Fields{"code": raw["code"]}).Warnf("unknown frame: %X", raw.Bytes())
		}),
	)
	if err != nil {
		s.closeCapture()
		return nil, errors.Wrap(err, "start router")
	}

	s.Router = r
	s.Client = api.New(r)
	s.Client.SetTimeout(cfg.Timeouts.Request)
	s.Client.SetHistoryTimeout(cfg.Timeouts.History)
	return s, nil
}

func (s *Session) closeCapture() {
	if s.capture != nil {
		if err := s.capture.Close(); err != nil {
			config.Log.WithError(err).Warn("close capture")
		}
		s.capture = nil
	}
}

// Close fails anything still pending and disconnects.
func (s *Session) Close() error {
	s.Router.Close()
	s.closeCapture()
	if s.link != nil {
		return s.link.Close()
	}
	return nil
}
