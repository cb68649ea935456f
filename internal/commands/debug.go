package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/vitaminmoo/braceletctl/internal/capture"
	"github.com/vitaminmoo/braceletctl/internal/protocol"
	"github.com/vitaminmoo/braceletctl/internal/router"
)

// Opcodes prints the opcode registry.
func Opcodes(w io.Writer) {
	fmt.Fprintf(w, "%-4s  %-26s  %-7s  %-7s  %s\n", "CODE", "OPCODE", "CLASS", "CHUNKED", "PAYLOAD")
	for _, e := range protocol.Entries() {
		shape := styles.Muted.Render("-")
		if e.HasShape {
			shape = e.Shape.Name
		}
		if e.HasRequestShape {
			shape += " <- " + e.RequestShape.Name
		}
		chunked := ""
		if e.Chunked {
			chunked = "yes"
		}
		fmt.Fprintf(w, "0x%02X  %-26s  %-7s  %-7s  %s\n", e.Code, e.Name(), e.Class, chunked, shape)
	}
}

// Encode builds the outbound frame for opcode name with payloadHex as the
// request body. The body is checked against the opcode's request layout.
func Encode(w io.Writer, name, payloadHex string) error {
	op, ok := protocol.ParseOpcode(name)
	if !ok {
		return errors.Wrap(protocol.ErrUnknownOpcode, name)
	}
	payload, err := hex.DecodeString(strings.ReplaceAll(payloadHex, " ", ""))
	if err != nil {
		return errors.Wrap(err, "payload hex")
	}

	var record protocol.Payload
	if len(payload) > 0 {
		dd, err := protocol.DecodeRequest(op, payload)
		if err != nil {
			return err
		}
		record = dd.Payload
		if _, raw := record.(protocol.RawFields); !raw {
			fmt.Fprintf(w, "Record: %+v\n", record)
		}
	}
	frame, err := protocol.Encode(op, record)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Frame (%d bytes): %X\n", len(frame), frame)
	return nil
}

// Replay decodes every frame of a capture file. With route set, RX frames are
// also fed through a router with nothing pending, so the summary shows what
// a live session would have dropped.
func Replay(w io.Writer, filename string, route bool) error {
	records, err := capture.ReadFile(filename)
	if err != nil {
		return err
	}

	successCount := 0
	failCount := 0
	for _, rec := range records {
		dd, err := capture.Decode(rec)
		ts := rec.Time.Format("15:04:05.000")
		if err != nil {
			fmt.Fprintf(w, "Frame %d [%s] %s: %s\n", rec.Seq, rec.Direction, ts, styles.Error.Render(err.Error()))
			failCount++
			continue
		}
		marker := ""
		if !dd.Final {
			marker = " (more)"
		}
		fmt.Fprintf(w, "Frame %d [%s] %s: %s%s %s\n", rec.Seq, rec.Direction, ts, dd.Opcode, marker, summarize(dd.Payload))
		successCount++
	}

	fmt.Fprintf(w, "\n--- Summary ---\n")
	fmt.Fprintf(w, "Total frames: %d\n", len(records))
	fmt.Fprintf(w, "Success: %d\n", successCount)
	fmt.Fprintf(w, "Failed: %d\n", failCount)

	if route {
		counts, err := routeCapture(records)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Unsolicited by opcode:\n")
		for _, e := range protocol.Entries() {
			if n := counts[e.Opcode]; n > 0 {
				fmt.Fprintf(w, "  %-26s %d\n", e.Opcode, n)
			}
		}
	}
	return nil
}

func summarize(p protocol.Payload) string {
	switch v := p.(type) {
	case nil:
		return ""
	case protocol.RawFields:
		b := v.Bytes()
		if s, ok := v["samples"].([]int); ok {
			return fmt.Sprintf("samples=%v", s)
		}
		if seq, ok := v["seq"].(int); ok {
			return fmt.Sprintf("seq=%d data=%X", seq, b)
		}
		if len(b) == 0 {
			return ""
		}
		return fmt.Sprintf("data=%X", b)
	default:
		return fmt.Sprintf("%+v", v)
	}
}

type replayTransport struct {
	recv func([]byte)
}

func (t *replayTransport) SendFrame([]byte) error { return nil }

func (t *replayTransport) OnReceive(fn func([]byte)) error {
	t.recv = fn
	return nil
}

// routeCapture replays RX records through a router and counts the frames
// that reach subscribers, by opcode.
func routeCapture(records []capture.Record) (map[protocol.Opcode]int, error) {
	t := &replayTransport{}
	r, err := router.New(t)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	counts := map[protocol.Opcode]int{}
	for _, e := range protocol.Entries() {
		r.Subscribe(e.Opcode, func(dd protocol.DeviceData) { counts[dd.Opcode]++ })
	}
	capture.Replay(records, t.recv)
	return counts, nil
}
