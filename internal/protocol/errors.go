package protocol

import "github.com/pkg/errors"

var (
	// ErrUnknownOpcode is returned for wire codes with no registry entry.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrMalformedPayload covers short frames, bad checksums and payloads
	// shorter than the opcode's schema.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrFieldRange is returned when a record value does not fit its wire field.
	ErrFieldRange = errors.New("field out of range")
	// ErrRecordMismatch is returned when a record type does not belong to the opcode.
	ErrRecordMismatch = errors.New("record does not match opcode")
	// ErrDeviceRejected means the device NAKed a command or reported failure.
	ErrDeviceRejected = errors.New("device rejected request")
)
