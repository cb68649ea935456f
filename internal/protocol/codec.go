package protocol

import (
	"encoding/binary"
	"math"
	"net"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

const (
	rejectBit   = 0x80
	minFrameLen = 16

	// FinalChunk is the marker byte of the last chunk of a chunked response.
	FinalChunk = 0xFF
)

// Checksum is the low byte of the sum of b.
func Checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return sum
}

// Encode builds an outbound frame for op. record may be nil for a bare
// command; otherwise its type must be the opcode's Shape or RequestShape.
func Encode(op Opcode, record Payload) ([]byte, error) {
	e, ok := byOpcode[op]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownOpcode, "encode %s", op)
	}
	body, isShape, err := encodeRecord(e, record)
	if err != nil {
		return nil, err
	}
	if e.Chunked && isShape {
		body = append([]byte{FinalChunk}, body...)
	}
	return frame(e.Code, body, minFrameLen), nil
}

// EncodeChunk builds one unpadded chunk of a chunked response, as the device
// sends it. seq is the continuation number and must not be FinalChunk; it is
// replaced by FinalChunk when final is set.
func EncodeChunk(op Opcode, seq byte, record Payload, final bool) ([]byte, error) {
	e, ok := byOpcode[op]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownOpcode, "encode %s", op)
	}
	if !e.Chunked {
		return nil, errors.Errorf("%s is not chunked", op)
	}
	marker := seq
	if final {
		marker = FinalChunk
	} else if seq == FinalChunk {
		return nil, errors.Wrapf(ErrFieldRange, "%s: continuation seq 0x%02X", op, seq)
	}
	body, _, err := encodeRecord(e, record)
	if err != nil {
		return nil, err
	}
	return frame(e.Code, append([]byte{marker}, body...), 0), nil
}

// EncodeRejection builds the frame a device sends when it refuses op.
func EncodeRejection(op Opcode) ([]byte, error) {
	e, ok := byOpcode[op]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownOpcode, "encode %s", op)
	}
	return frame(e.Code|rejectBit, nil, 0), nil
}

func frame(code byte, body []byte, min int) []byte {
	n := len(body) + 2
	if n < min {
		n = min
	}
	out := make([]byte, n)
	out[0] = code
	copy(out[1:], body)
	out[n-1] = Checksum(out[:n-1])
	return out
}

func encodeRecord(e *Entry, record Payload) ([]byte, bool, error) {
	if record == nil {
		return nil, false, nil
	}
	if raw, ok := record.(RawFields); ok {
		if e.HasShape {
			return nil, false, errors.Wrapf(ErrRecordMismatch, "%s carries %s, not raw fields", e.Opcode, e.Shape.Name)
		}
		return raw.Bytes(), true, nil
	}
	v := reflect.ValueOf(record)
	var s Schema
	isShape := false
	switch {
	case e.HasShape && v.Type() == e.Shape.typ:
		s, isShape = e.Shape, true
	case e.HasRequestShape && v.Type() == e.RequestShape.typ:
		s = e.RequestShape
	default:
		return nil, false, errors.Wrapf(ErrRecordMismatch, "%s does not take %T", e.Opcode, record)
	}
	buf := make([]byte, s.Width)
	if err := encodeFields(buf, v, s.Fields); err != nil {
		return nil, false, errors.Wrapf(err, "encode %s", e.Opcode)
	}
	return buf, isShape, nil
}

// ParseFrame splits a frame into code and payload after checking its
// length and checksum.
func ParseFrame(frame []byte) (byte, []byte, error) {
	if len(frame) < 2 {
		return 0, nil, errors.Wrapf(ErrMalformedPayload, "frame of %d bytes", len(frame))
	}
	last := len(frame) - 1
	if sum := Checksum(frame[:last]); sum != frame[last] {
		return 0, nil, errors.Wrapf(ErrMalformedPayload, "checksum 0x%02X, want 0x%02X", frame[last], sum)
	}
	return frame[0], frame[1:last], nil
}

// IsRejection reports whether code is the rejected form of a registered
// opcode, and which one.
func IsRejection(code byte) (Opcode, bool) {
	if code&rejectBit == 0 {
		return DataError, false
	}
	op := Resolve(code &^ rejectBit)
	return op, op != DataError
}

// Decode decodes one payload of op. Chunked opcodes have their marker
// stripped; everything else is reported as Final.
func Decode(op Opcode, payload []byte) (DeviceData, error) {
	e, ok := byOpcode[op]
	if !ok {
		return DeviceData{Opcode: DataError, Payload: RawFields{"data": clone(payload)}, Final: true},
			errors.Wrapf(ErrUnknownOpcode, "decode %s", op)
	}
	dd := DeviceData{Opcode: op, Final: true}
	seq := -1
	if e.Chunked {
		if len(payload) == 0 {
			return dd, errors.Wrapf(ErrMalformedPayload, "%s: missing chunk marker", op)
		}
		dd.Final = payload[0] == FinalChunk
		if !dd.Final {
			seq = int(payload[0])
		}
		payload = payload[1:]
	}
	if !e.HasShape {
		raw := e.RawFields(clone(payload))
		if seq >= 0 {
			raw["seq"] = seq
		}
		dd.Payload = raw
		return dd, nil
	}
	if len(payload) < e.Shape.Width {
		return dd, errors.Wrapf(ErrMalformedPayload, "%s: %d bytes, need %d", op, len(payload), e.Shape.Width)
	}
	v := reflect.New(e.Shape.typ).Elem()
	if err := decodeFields(payload, v, e.Shape.Fields); err != nil {
		return dd, errors.Wrapf(err, "decode %s", op)
	}
	dd.Payload = v.Interface().(Payload)
	return dd, nil
}

// DecodeRequest decodes an outbound payload of op, the way the device reads
// it: with the request layout when the opcode has one, and without a chunk
// marker.
func DecodeRequest(op Opcode, payload []byte) (DeviceData, error) {
	e, ok := byOpcode[op]
	if !ok {
		return DeviceData{Opcode: DataError, Payload: RawFields{"data": clone(payload)}, Final: true},
			errors.Wrapf(ErrUnknownOpcode, "decode %s", op)
	}
	dd := DeviceData{Opcode: op, Final: true}
	var s Schema
	switch {
	case e.HasRequestShape:
		s = e.RequestShape
	case e.HasShape && !e.Chunked:
		s = e.Shape
	default:
		dd.Payload = RawFields{"data": clone(payload)}
		return dd, nil
	}
	if len(payload) < s.Width {
		return dd, errors.Wrapf(ErrMalformedPayload, "%s request: %d bytes, need %d", op, len(payload), s.Width)
	}
	v := reflect.New(s.typ).Elem()
	if err := decodeFields(payload, v, s.Fields); err != nil {
		return dd, errors.Wrapf(err, "decode %s request", op)
	}
	dd.Payload = v.Interface().(Payload)
	return dd, nil
}

// DecodeFrame parses, resolves and decodes a whole frame. A rejection frame
// yields the rejected opcode together with ErrDeviceRejected; an unknown code
// yields DataError with the raw payload and ErrUnknownOpcode.
func DecodeFrame(frame []byte) (DeviceData, error) {
	code, payload, err := ParseFrame(frame)
	if err != nil {
		return DeviceData{Opcode: DataError}, err
	}
	if op, ok := IsRejection(code); ok {
		return DeviceData{Opcode: op, Payload: RawFields{"data": clone(payload)}, Final: true},
			errors.Wrapf(ErrDeviceRejected, "%s", op)
	}
	op := Resolve(code)
	if op == DataError {
		return DeviceData{Opcode: DataError, Payload: RawFields{"code": int(code), "data": clone(payload)}, Final: true},
			errors.Wrapf(ErrUnknownOpcode, "code 0x%02X", code)
	}
	return Decode(op, payload)
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

func encodeFields(buf []byte, v reflect.Value, fields []Field) error {
	pos := 0
	for _, f := range fields {
		fv := v.Field(f.index)
		out := buf[pos : pos+f.Width]
		if err := encodeField(out, fv, f); err != nil {
			return err
		}
		pos += f.Width
	}
	return nil
}

func encodeField(out []byte, fv reflect.Value, f Field) error {
	switch f.Kind {
	case KindU8, KindI8, KindBCD, KindU16LE, KindU32LE:
		n := intOf(fv)
		lo, hi := intRange(f)
		if n < lo || n > hi {
			return errors.Wrapf(ErrFieldRange, "%s=%d not in [%d, %d]", f.Name, n, lo, hi)
		}
		switch f.Kind {
		case KindU8, KindI8:
			out[0] = byte(n)
		case KindBCD:
			n -= int64(f.Offset)
			out[0] = byte(n/10)<<4 | byte(n%10)
		case KindU16LE:
			binary.LittleEndian.PutUint16(out, uint16(n))
		case KindU32LE:
			binary.LittleEndian.PutUint32(out, uint32(n))
		}
	case KindBool:
		if fv.Bool() {
			out[0] = 1
		}
	case KindBits:
		for i, m := range f.Fields {
			if fv.Field(m.index).Bool() {
				out[i/8] |= 1 << (i % 8)
			}
		}
	case KindString:
		s := fv.String()
		if len(s) > f.Width {
			return errors.Wrapf(ErrFieldRange, "%s is %d bytes, max %d", f.Name, len(s), f.Width)
		}
		copy(out, s)
	case KindMAC:
		hw, err := net.ParseMAC(fv.String())
		if err != nil || len(hw) != 6 {
			return errors.Wrapf(ErrFieldRange, "%s: bad address %q", f.Name, fv.String())
		}
		copy(out, hw)
	case KindStruct:
		return encodeFields(out, fv, f.Fields)
	default:
		return errors.Errorf("unhandled kind %s", f.Kind)
	}
	return nil
}

func intRange(f Field) (int64, int64) {
	switch f.Kind {
	case KindI8:
		return math.MinInt8, math.MaxInt8
	case KindBCD:
		return int64(f.Offset), int64(f.Offset) + 99
	case KindU16LE:
		return 0, math.MaxUint16
	case KindU32LE:
		return 0, math.MaxUint32
	}
	return 0, math.MaxUint8
}

func decodeFields(buf []byte, v reflect.Value, fields []Field) error {
	pos := 0
	for _, f := range fields {
		if err := decodeField(buf[pos:pos+f.Width], v.Field(f.index), f); err != nil {
			return err
		}
		pos += f.Width
	}
	return nil
}

func decodeField(in []byte, fv reflect.Value, f Field) error {
	switch f.Kind {
	case KindU8:
		setInt(fv, int64(in[0]))
	case KindI8:
		setInt(fv, int64(int8(in[0])))
	case KindBCD:
		hi, lo := in[0]>>4, in[0]&0x0F
		if hi > 9 || lo > 9 {
			return errors.Wrapf(ErrMalformedPayload, "%s: 0x%02X is not BCD", f.Name, in[0])
		}
		setInt(fv, int64(hi)*10+int64(lo)+int64(f.Offset))
	case KindU16LE:
		setInt(fv, int64(binary.LittleEndian.Uint16(in)))
	case KindU32LE:
		setInt(fv, int64(binary.LittleEndian.Uint32(in)))
	case KindBool:
		fv.SetBool(in[0] != 0)
	case KindBits:
		for i, m := range f.Fields {
			fv.Field(m.index).SetBool(in[i/8]&(1<<(i%8)) != 0)
		}
	case KindString:
		s := string(in)
		if i := strings.IndexByte(s, 0); i >= 0 {
			s = s[:i]
		}
		fv.SetString(s)
	case KindMAC:
		fv.SetString(strings.ToUpper(net.HardwareAddr(in).String()))
	case KindStruct:
		return decodeFields(in, fv, f.Fields)
	default:
		return errors.Errorf("unhandled kind %s", f.Kind)
	}
	return nil
}

func intOf(v reflect.Value) int64 {
	if v.CanInt() {
		return v.Int()
	}
	u := v.Uint()
	if u > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(u)
}

func setInt(v reflect.Value, n int64) {
	if v.CanInt() {
		v.SetInt(n)
		return
	}
	v.SetUint(uint64(n))
}
