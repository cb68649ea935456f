package protocol

import (
	"fmt"
	"sync/atomic"
)

// tagCounter is used to generate incrementing correlation tags
var tagCounter uint64

// NextTag returns the next correlation tag for requests that may be in flight
// more than once for the same opcode.
func NextTag() string {
	id := atomic.AddUint64(&tagCounter, 1)
	return fmt.Sprintf("req-%06d", id)
}
