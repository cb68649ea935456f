// Package capture records raw link traffic to TSV files and reads it back.
//
// Each line is one frame: sequence number, direction (TX or RX), an
// RFC3339Nano timestamp and the frame in hex.
package capture

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/vitaminmoo/braceletctl/internal/config"
	"github.com/vitaminmoo/braceletctl/internal/protocol"
	"github.com/vitaminmoo/braceletctl/internal/router"
)

// ErrMalformedLine is returned by Read for lines that are not a capture record.
var ErrMalformedLine = errors.New("malformed capture line")

type Direction string

const (
	TX Direction = "TX" // host to device
	RX Direction = "RX" // device to host
)

// Record is one captured frame.
type Record struct {
	Seq       int
	Direction Direction
	Time      time.Time
	Frame     []byte
}

// Writer appends records to an io.Writer. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	seq int
	now func() time.Time
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, now: time.Now}
}

// Write appends one frame and returns its record.
func (w *Writer) Write(dir Direction, frame []byte) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	rec := Record{Seq: w.seq, Direction: dir, Time: w.now(), Frame: append([]byte(nil), frame...)}
	_, err := fmt.Fprintf(w.w, "%d\t%s\t%s\t%X\n", rec.Seq, rec.Direction, rec.Time.Format(time.RFC3339Nano), rec.Frame)
	return rec, err
}

// Create opens a new timestamped capture file in dir.
func Create(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create capture dir")
	}
	name := filepath.Join(dir, "capture-"+time.Now().Format("20060102-150405")+".tsv")
	f, err := os.Create(name)
	if err != nil {
		return nil, errors.Wrap(err, "create capture file")
	}
	return f, nil
}

// Tap is a router.Transport that records every frame passing through it.
// A failed capture write is logged and never fails the link.
type Tap struct {
	inner router.Transport
	w     *Writer
	log   logrus.FieldLogger
}

func NewTap(inner router.Transport, w *Writer) *Tap {
	return &Tap{inner: inner, w: w, log: config.Log}
}

func (t *Tap) SendFrame(frame []byte) error {
	t.record(TX, frame)
	return t.inner.SendFrame(frame)
}

func (t *Tap) OnReceive(fn func(frame []byte)) error {
	return t.inner.OnReceive(func(frame []byte) {
		t.record(RX, frame)
		fn(frame)
	})
}

func (t *Tap) record(dir Direction, frame []byte) {
	if _, err := t.w.Write(dir, frame); err != nil {
		t.log.WithError(err).Warn("capture write failed")
	}
}

// ReadFile reads every record in the capture at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses capture lines from r. Blank lines and lines starting with #
// are skipped.
func Read(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, 64*1024)

	var out []Record
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := parseLine(line)
		if err != nil {
			return out, errors.Wrapf(err, "line %d", lineNum)
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}

func parseLine(line string) (Record, error) {
	parts := strings.Split(line, "\t")
	if len(parts) != 4 {
		return Record{}, errors.Wrapf(ErrMalformedLine, "expected 4 columns, got %d", len(parts))
	}
	seq, err := strconv.Atoi(parts[0])
	if err != nil {
		return Record{}, errors.Wrapf(ErrMalformedLine, "seq %q", parts[0])
	}
	dir := Direction(parts[1])
	if dir != TX && dir != RX {
		return Record{}, errors.Wrapf(ErrMalformedLine, "direction %q", parts[1])
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[2])
	if err != nil {
		return Record{}, errors.Wrapf(ErrMalformedLine, "timestamp %q", parts[2])
	}
	frame, err := hex.DecodeString(parts[3])
	if err != nil {
		return Record{}, errors.Wrapf(ErrMalformedLine, "hex: %v", err)
	}
	return Record{Seq: seq, Direction: dir, Time: ts, Frame: frame}, nil
}

// Decode decodes a captured frame from the side that received it. TX frames
// are read with the request layout, RX frames as device data.
func Decode(rec Record) (protocol.DeviceData, error) {
	if rec.Direction == RX {
		return protocol.DecodeFrame(rec.Frame)
	}
	code, payload, err := protocol.ParseFrame(rec.Frame)
	if err != nil {
		return protocol.DeviceData{Opcode: protocol.DataError}, err
	}
	op := protocol.Resolve(code)
	if op == protocol.DataError {
		return protocol.DeviceData{Opcode: protocol.DataError, Payload: protocol.RawFields{"code": int(code), "data": payload}, Final: true},
			errors.Wrapf(protocol.ErrUnknownOpcode, "code 0x%02X", code)
	}
	return protocol.DecodeRequest(op, payload)
}

// Replay feeds every RX record to fn in order, as a Transport would. It is
// used to drive a router from a capture.
func Replay(records []Record, fn func(frame []byte)) int {
	n := 0
	for _, rec := range records {
		if rec.Direction == RX {
			fn(rec.Frame)
			n++
		}
	}
	return n
}
