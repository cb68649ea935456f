package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

var (
	stdin   io.Reader = os.Stdin
	timeNow           = time.Now
)

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// ConfirmAction prompts the user to type 'yes' to continue.
// Returns true if confirmed, false otherwise.
func ConfirmAction(w io.Writer, prompt string) bool {
	fmt.Fprint(w, prompt)

	reader := bufio.NewReader(stdin)
	confirm, _ := reader.ReadString('\n')
	confirm = strings.TrimSpace(confirm)

	return confirm == "yes"
}

// ParseClock parses HH:MM.
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, errors.Errorf("time %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, errors.Errorf("time %q: bad hour", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, errors.Errorf("time %q: bad minute", s)
	}
	return hour, minute, nil
}

var dayNames = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// ParseWeekDays accepts "all", "weekdays", "weekend" or a comma separated
// list of three letter day names.
func ParseWeekDays(s string) (protocol.WeekDaySet, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return protocol.WeekDaysFromByte(0x7F), nil
	case "weekdays":
		return protocol.WeekDaysFromByte(0x3E), nil
	case "weekend":
		return protocol.WeekDaysFromByte(0x41), nil
	case "none":
		return protocol.WeekDaySet{}, nil
	}
	var b byte
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		found := false
		for i, name := range dayNames {
			if part == name {
				b |= 1 << i
				found = true
				break
			}
		}
		if !found {
			return protocol.WeekDaySet{}, errors.Errorf("unknown day %q", part)
		}
	}
	return protocol.WeekDaysFromByte(b), nil
}
