package commands

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

// Styles contains the lipgloss styles for command output.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
}

// DefaultStyles returns the default color scheme.
func DefaultStyles() Styles {
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special := lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	muted := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}

	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight),

		Label: lipgloss.NewStyle().
			Foreground(muted).
			Width(16),

		Value: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#343433", Dark: "#C1C6B2"}),

		Muted: lipgloss.NewStyle().
			Foreground(muted),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")),

		Success: lipgloss.NewStyle().
			Foreground(special),

		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFCC00")),
	}
}

var styles = DefaultStyles()

func title(w io.Writer, s string) {
	fmt.Fprintln(w, styles.Title.Render(s))
}

func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %s\n", styles.Label.Render(label+":"), styles.Value.Render(fmt.Sprint(value)))
}

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styles.Success.Render(fmt.Sprintf(format, args...)))
}

// printRecord prints one field per line. Nested records are flattened with
// dotted labels; types with a String method print through it.
func printRecord(w io.Writer, p protocol.Payload) {
	if raw, ok := p.(protocol.RawFields); ok {
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if b, ok := raw[k].([]byte); ok {
				field(w, k, fmt.Sprintf("%X", b))
				continue
			}
			field(w, k, raw[k])
		}
		return
	}
	printStruct(w, "", reflect.ValueOf(p))
}

func printStruct(w io.Writer, prefix string, v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		fv := v.Field(i)
		label := prefix + sf.Name
		if s, ok := fv.Interface().(fmt.Stringer); ok {
			field(w, label, s.String())
			continue
		}
		if fv.Kind() == reflect.Struct {
			if allBools(fv) {
				field(w, label, enabledNames(fv))
				continue
			}
			printStruct(w, label+".", fv)
			continue
		}
		field(w, label, fv.Interface())
	}
}

func allBools(v reflect.Value) bool {
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).Kind() != reflect.Bool {
			return false
		}
	}
	return v.NumField() > 0
}

// enabledNames lists the set members of a struct of flags.
func enabledNames(v reflect.Value) string {
	var on []string
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).Bool() {
			on = append(on, v.Type().Field(i).Name)
		}
	}
	if len(on) == 0 {
		return "none"
	}
	return strings.Join(on, ", ")
}
