package types

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Type is the value domain of a column. Every type serializes to a fixed
// number of bytes so that heap rows and index keys have a fixed width.
type Type uint8

const (
	IntType Type = iota + 1
	StringType
)

// StringMaxLen is the number of payload bytes stored for a StringField.
// TableSchema.Validate rejects longer strings; Serialize still truncates them,
// on a rune boundary.
const StringMaxLen = 32

// Len returns the serialized width of a value of this type.
func (t Type) Len() int {
	switch t {
	case IntType:
		return 4
	case StringType:
		return 4 + StringMaxLen
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// ParseType maps a schema type name to a Type.
func ParseType(name string) (Type, error) {
	switch name {
	case "int", "INT", "integer":
		return IntType, nil
	case "string", "STRING", "text", "varchar":
		return StringType, nil
	}
	return 0, errors.Errorf("unknown column type %q", name)
}

// Parse decodes one value of this type from buf, which must hold at least Len() bytes.
func (t Type) Parse(buf []byte) (Field, error) {
	if len(buf) < t.Len() {
		return nil, errors.Wrapf(ErrCorruptPage, "parse %s: need %d bytes, have %d", t, t.Len(), len(buf))
	}
	switch t {
	case IntType:
		return IntField(int32(binary.BigEndian.Uint32(buf))), nil
	case StringType:
		n := int(binary.BigEndian.Uint32(buf))
		if n > StringMaxLen {
			return nil, errors.Wrapf(ErrCorruptPage, "parse string: length %d exceeds %d", n, StringMaxLen)
		}
		return StringField(string(buf[4 : 4+n])), nil
	}
	return nil, errors.Wrapf(ErrTypeMismatch, "parse: unsupported type %s", t)
}

// Field is one ordered, fixed-width column value.
type Field interface {
	Type() Type
	// Compare returns -1, 0 or +1. Fields of different types order by type.
	Compare(other Field) int
	// Serialize writes exactly Type().Len() bytes into buf.
	Serialize(buf []byte)
	String() string
}

type IntField int32

func (f IntField) Type() Type { return IntType }

func (f IntField) Compare(other Field) int {
	o, ok := other.(IntField)
	if !ok {
		return compareTypes(f, other)
	}
	switch {
	case f < o:
		return -1
	case f > o:
		return 1
	}
	return 0
}

func (f IntField) Serialize(buf []byte) {
	binary.BigEndian.PutUint32(buf, uint32(f))
}

func (f IntField) String() string { return strconv.Itoa(int(f)) }

type StringField string

func (f StringField) Type() Type { return StringType }

func (f StringField) Compare(other Field) int {
	o, ok := other.(StringField)
	if !ok {
		return compareTypes(f, other)
	}
	a, b := f.truncated(), o.truncated()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (f StringField) Serialize(buf []byte) {
	s := f.truncated()
	binary.BigEndian.PutUint32(buf, uint32(len(s)))
	n := copy(buf[4:4+StringMaxLen], s)
	clear(buf[4+n : 4+StringMaxLen])
}

func (f StringField) String() string { return string(f) }

// Fits reports whether the value is stored without truncation.
func (f StringField) Fits() bool { return len(f) <= StringMaxLen }

// truncated is the value as it survives a round trip through a page. It is cut
// on a rune boundary so the stored bytes stay valid UTF-8.
func (f StringField) truncated() string {
	if f.Fits() {
		return string(f)
	}
	n := StringMaxLen
	for n > 0 && !utf8.RuneStart(f[n]) {
		n--
	}
	return string(f[:n])
}

func compareTypes(a, b Field) int {
	if b == nil {
		return 1
	}
	switch {
	case a.Type() < b.Type():
		return -1
	case a.Type() > b.Type():
		return 1
	}
	// same Type, different Go type: fall back to the printed form
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}
