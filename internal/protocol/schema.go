package protocol

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Kind is the wire representation of a single field.
type Kind int

const (
	KindU8 Kind = iota
	KindI8
	KindBCD
	KindU16LE
	KindU32LE
	KindBool
	KindBits
	KindString
	KindMAC
	KindStruct
)

var kindNames = map[string]Kind{
	"u8":     KindU8,
	"i8":     KindI8,
	"bcd":    KindBCD,
	"u16le":  KindU16LE,
	"u32le":  KindU32LE,
	"bool":   KindBool,
	"bits":   KindBits,
	"str":    KindString,
	"mac":    KindMAC,
	"struct": KindStruct,
}

func (k Kind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Field describes one entry of a Schema.
type Field struct {
	Name   string
	Kind   Kind
	Width  int     // bytes on the wire
	Offset int     // subtracted before BCD encoding
	Fields []Field // members of KindStruct and KindBits fields

	index int // struct field index
}

// Schema is the ordered wire layout of a record type.
type Schema struct {
	Name   string
	Fields []Field
	Width  int

	typ reflect.Type
}

// Type returns the Go type the schema was derived from.
func (s Schema) Type() reflect.Type { return s.typ }

func (s Schema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d bytes)", s.Name, s.Width)
	for _, f := range s.Fields {
		fmt.Fprintf(&b, " %s:%s", f.Name, f.Kind)
	}
	return b.String()
}

// schemaOf derives a schema from the wire tags of a struct type.
func schemaOf(t reflect.Type) (Schema, error) {
	fields, width, err := fieldsOf(t)
	if err != nil {
		return Schema{}, fmt.Errorf("%s: %w", t.Name(), err)
	}
	return Schema{Name: t.Name(), Fields: fields, Width: width, typ: t}, nil
}

func fieldsOf(t reflect.Type) ([]Field, int, error) {
	if t.Kind() != reflect.Struct {
		return nil, 0, fmt.Errorf("not a struct: %s", t)
	}
	var fields []Field
	width := 0
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup("wire")
		if !ok {
			continue
		}
		f, err := parseField(sf, tag)
		if err != nil {
			return nil, 0, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		f.index = i
		width += f.Width
		fields = append(fields, f)
	}
	return fields, width, nil
}

func parseField(sf reflect.StructField, tag string) (Field, error) {
	name, arg, _ := strings.Cut(tag, ",")
	kind, ok := kindNames[name]
	if !ok {
		return Field{}, fmt.Errorf("unknown wire kind %q", name)
	}
	f := Field{Name: sf.Name, Kind: kind}

	goKind := sf.Type.Kind()
	isInt := goKind >= reflect.Int && goKind <= reflect.Uint64

	switch kind {
	case KindU8, KindI8, KindBCD, KindU16LE, KindU32LE:
		if !isInt {
			return Field{}, fmt.Errorf("%s needs an integer, have %s", name, sf.Type)
		}
		switch kind {
		case KindU16LE:
			f.Width = 2
		case KindU32LE:
			f.Width = 4
		default:
			f.Width = 1
		}
		if kind == KindBCD && arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return Field{}, fmt.Errorf("bad bcd offset %q", arg)
			}
			f.Offset = n
		}
	case KindBool:
		if goKind != reflect.Bool {
			return Field{}, fmt.Errorf("bool needs a bool, have %s", sf.Type)
		}
		f.Width = 1
	case KindString:
		if goKind != reflect.String {
			return Field{}, fmt.Errorf("str needs a string, have %s", sf.Type)
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return Field{}, fmt.Errorf("str needs a width, have %q", arg)
		}
		f.Width = n
	case KindMAC:
		if goKind != reflect.String {
			return Field{}, fmt.Errorf("mac needs a string, have %s", sf.Type)
		}
		f.Width = 6
	case KindBits:
		if goKind != reflect.Struct {
			return Field{}, fmt.Errorf("bits needs a struct, have %s", sf.Type)
		}
		n := sf.Type.NumField()
		for i := 0; i < n; i++ {
			m := sf.Type.Field(i)
			if m.Type.Kind() != reflect.Bool {
				return Field{}, fmt.Errorf("bits member %s is not a bool", m.Name)
			}
			f.Fields = append(f.Fields, Field{Name: m.Name, Kind: KindBool, index: i})
		}
		f.Width = (n + 7) / 8
	case KindStruct:
		sub, width, err := fieldsOf(sf.Type)
		if err != nil {
			return Field{}, err
		}
		f.Fields = sub
		f.Width = width
	}
	return f, nil
}
