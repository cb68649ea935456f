package util

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// IsTextData checks if a byte slice contains only printable ASCII text
func IsTextData(data []byte) bool {
	for _, b := range data {
		if b < 32 && b != 9 && b != 10 && b != 13 || b > 126 {
			return false
		}
	}
	return true
}

// PrintHexDump prints data in hex dump format
func PrintHexDump(data []byte) {
	HexDump(os.Stdout, data)
}

// HexDump writes data to w, 16 bytes per line with an ASCII column.
func HexDump(w io.Writer, data []byte) {
	for i := 0; i < len(data); i += 16 {
		var line strings.Builder

		// Address
		fmt.Fprintf(&line, "%04x  ", i)

		// Hex bytes
		for j := 0; j < 16; j++ {
			if i+j < len(data) {
				fmt.Fprintf(&line, "%02x ", data[i+j])
			} else {
				line.WriteString("   ")
			}
			if j == 7 {
				line.WriteString(" ")
			}
		}

		// ASCII
		line.WriteString(" |")
		for j := 0; j < 16 && i+j < len(data); j++ {
			b := data[i+j]
			if b >= 32 && b < 127 {
				line.WriteByte(b)
			} else {
				line.WriteByte('.')
			}
		}
		line.WriteString("|\n")
		io.WriteString(w, line.String())
	}
}

// Printable returns data as text when it is printable, otherwise as hex.
func Printable(data []byte) string {
	if IsTextData(data) {
		return string(data)
	}
	return fmt.Sprintf("%X", data)
}
