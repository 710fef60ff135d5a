// Package codec implements the 4D value codec: pure functions mapping host
// scalar values to/from the server's little-endian binary representation,
// keyed by a closed enumeration of server type tags (spec §4.2).
//
// Dispatch is table-driven rather than reflective method lookup, the same
// closed-set-polymorphism shape the teacher repo uses for its own
// binary-protocol value decoding (proxy/mysql/conn.go's readBinaryValue
// switches on a type byte; readLenEncInt switches on a leading length
// marker). encoding/binary.LittleEndian is used throughout, matching that
// file's use of binary.LittleEndian for every MySQL wire value.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"time"
	"unicode/utf16"

	"github.com/mbertoldi/go-fourd/fourderr"
)

// Tag is the closed set of server type tags used on the wire (spec §4.2).
type Tag int

const (
	TagUnknown Tag = iota
	TagBoolean
	TagWord
	TagLong
	TagLong8
	TagReal
	TagFloat
	TagTimestamp
	TagTime // alias of TagTimestamp
	TagDuration
	TagString
	TagBlob
	TagImage
)

var tagNames = map[Tag]string{
	TagUnknown:   "VK_UNKNOWN",
	TagBoolean:   "VK_BOOLEAN",
	TagWord:      "VK_WORD",
	TagLong:      "VK_LONG",
	TagLong8:     "VK_LONG8",
	TagReal:      "VK_REAL",
	TagFloat:     "VK_FLOAT",
	TagTimestamp: "VK_TIMESTAMP",
	TagTime:      "VK_TIME",
	TagDuration:  "VK_DURATION",
	TagString:    "VK_STRING",
	TagBlob:      "VK_BLOB",
	TagImage:     "VK_IMAGE",
}

var namesToTag = func() map[string]Tag {
	m := make(map[string]Tag, len(tagNames))
	for t, n := range tagNames {
		m[n] = t
	}
	return m
}()

// String returns the wire name for the tag (e.g. "VK_LONG8").
func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return "VK_UNKNOWN"
}

// ParseTag resolves a wire type name to a Tag. An unrecognized name is a
// ProgrammingError per spec §7 ("unknown type tag on the wire").
func ParseTag(name string) (Tag, error) {
	if t, ok := namesToTag[name]; ok {
		return t, nil
	}
	return TagUnknown, fourderr.ProgrammingError(fmt.Sprintf("unknown type tag %q on the wire", name))
}

// InferTag maps a host value to the server tag used to bind it as a
// parameter (spec §4.2's host-to-tag inference table).
func InferTag(v any) Tag {
	if v == nil {
		return TagUnknown
	}
	switch v.(type) {
	case bool:
		return TagBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TagLong8
	case float32, float64:
		return TagReal
	case time.Time:
		return TagTimestamp
	case Duration:
		return TagDuration
	case string:
		return TagString
	case []byte:
		return TagBlob
	default:
		return TagString
	}
}

// Duration represents a time-of-day value bound as VK_DURATION: elapsed
// milliseconds since midnight, independent of any calendar date.
type Duration time.Duration

// HostType returns the Go type a decoded value of the given tag surfaces
// as, used to populate Cursor.Description()'s host-type field (spec §6.2).
func HostType(t Tag) reflect.Type {
	switch t {
	case TagBoolean:
		return reflect.TypeOf(false)
	case TagWord, TagLong, TagLong8:
		return reflect.TypeOf(int64(0))
	case TagReal, TagFloat:
		return reflect.TypeOf(float64(0))
	case TagTimestamp, TagTime:
		return reflect.TypeOf(time.Time{})
	case TagDuration:
		return reflect.TypeOf(Duration(0))
	case TagString:
		return reflect.TypeOf("")
	case TagBlob, TagImage:
		return reflect.TypeOf([]byte(nil))
	default:
		return nil
	}
}

// Reader is the minimal interface the codec needs to pull bytes off the
// wire; *wire.Conn satisfies it without codec importing wire directly,
// keeping the dependency direction one-way (wire has no knowledge of value
// tags at all).
type Reader interface {
	RecvExact(n int) ([]byte, error)
}

// Encode renders v in the wire format for tag. Callers are expected to have
// already matched v's type to tag (via InferTag or an explicit BoundParam);
// a Go type that does not fit tag is rejected with a ProgrammingError.
func Encode(tag Tag, v any) ([]byte, error) {
	switch tag {
	case TagBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, typeMismatch(tag, v)
		}
		buf := make([]byte, 2)
		if b {
			binary.LittleEndian.PutUint16(buf, 1)
		}
		return buf, nil

	case TagWord:
		n, err := asInt64(tag, v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(int16(n)))
		return buf, nil

	case TagLong:
		n, err := asInt64(tag, v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(int32(n)))
		return buf, nil

	case TagLong8:
		n, err := asInt64(tag, v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(n))
		return buf, nil

	case TagReal, TagFloat:
		f, err := asFloat64(tag, v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
		return buf, nil

	case TagTimestamp, TagTime:
		ts, ok := v.(time.Time)
		if !ok {
			return nil, typeMismatch(tag, v)
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint16(buf[0:2], uint16(ts.Year()))
		buf[2] = byte(ts.Month())
		buf[3] = byte(ts.Day())
		ms := uint32((ts.Hour()*3600+ts.Minute()*60+ts.Second())*1000 + ts.Nanosecond()/1_000_000)
		binary.LittleEndian.PutUint32(buf[4:8], ms)
		return buf, nil

	case TagDuration:
		ms, err := durationMillis(v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, ms)
		return buf, nil

	case TagString:
		s, ok := v.(string)
		if !ok {
			return nil, typeMismatch(tag, v)
		}
		units := utf16.Encode([]rune(s))
		buf := make([]byte, 4+2*len(units))
		binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(-len(units))))
		for i, u := range units {
			binary.LittleEndian.PutUint16(buf[4+2*i:6+2*i], u)
		}
		return buf, nil

	case TagBlob, TagImage:
		b, err := asBytes(tag, v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 4+len(b))
		binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(len(b))))
		copy(buf[4:], b)
		return buf, nil

	case TagUnknown:
		return nil, nil

	default:
		return nil, fourderr.ProgrammingError(fmt.Sprintf("encode: unsupported tag %s", tag))
	}
}

// Decode reads one value of the given tag from r.
func Decode(tag Tag, r Reader) (any, error) {
	switch tag {
	case TagBoolean:
		b, err := r.RecvExact(2)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint16(b) != 0, nil

	case TagWord:
		b, err := r.RecvExact(2)
		if err != nil {
			return nil, err
		}
		return int64(int16(binary.LittleEndian.Uint16(b))), nil

	case TagLong:
		b, err := r.RecvExact(4)
		if err != nil {
			return nil, err
		}
		return int64(int32(binary.LittleEndian.Uint32(b))), nil

	case TagLong8:
		b, err := r.RecvExact(8)
		if err != nil {
			return nil, err
		}
		return int64(binary.LittleEndian.Uint64(b)), nil

	case TagReal, TagFloat:
		b, err := r.RecvExact(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil

	case TagTimestamp, TagTime:
		b, err := r.RecvExact(8)
		if err != nil {
			return nil, err
		}
		year := binary.LittleEndian.Uint16(b[0:2])
		month := b[2]
		day := b[3]
		ms := binary.LittleEndian.Uint32(b[4:8])
		if year == 0 {
			return nil, nil
		}
		sec := ms / 1000
		ms %= 1000
		minute := sec / 60
		sec %= 60
		hour := minute / 60
		minute %= 60
		return time.Date(int(year), time.Month(month), int(day),
			int(hour), int(minute), int(sec), int(ms)*1_000_000, time.UTC), nil

	case TagDuration:
		b, err := r.RecvExact(8)
		if err != nil {
			return nil, err
		}
		total := binary.LittleEndian.Uint64(b)
		return Duration(time.Duration(total) * time.Millisecond), nil

	case TagString:
		b, err := r.RecvExact(4)
		if err != nil {
			return nil, err
		}
		n := int32(binary.LittleEndian.Uint32(b))
		charCount := -int(n)
		if charCount < 0 {
			return nil, fourderr.ProgrammingError("VK_STRING: non-negative length not supported")
		}
		raw, err := r.RecvExact(charCount * 2)
		if err != nil {
			return nil, err
		}
		units := make([]uint16, charCount)
		for i := range units {
			units[i] = binary.LittleEndian.Uint16(raw[2*i : 2*i+2])
		}
		return string(utf16.Decode(units)), nil

	case TagBlob, TagImage:
		b, err := r.RecvExact(4)
		if err != nil {
			return nil, err
		}
		n := int32(binary.LittleEndian.Uint32(b))
		if n < 0 {
			return nil, fourderr.ProgrammingError("blob: negative length")
		}
		return r.RecvExact(int(n))

	case TagUnknown:
		return nil, nil

	default:
		return nil, fourderr.ProgrammingError(fmt.Sprintf("decode: unsupported tag %s", tag))
	}
}

func typeMismatch(tag Tag, v any) error {
	return fourderr.ProgrammingError(fmt.Sprintf("cannot encode %T as %s", v, tag))
}

func asInt64(tag Tag, v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	}
	return 0, typeMismatch(tag, v)
}

func asFloat64(tag Tag, v any) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	}
	return 0, typeMismatch(tag, v)
}

func asBytes(tag Tag, v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, typeMismatch(tag, v)
	}
	return b, nil
}

func durationMillis(v any) (uint64, error) {
	switch d := v.(type) {
	case Duration:
		return uint64(time.Duration(d) / time.Millisecond), nil
	case time.Duration:
		return uint64(d / time.Millisecond), nil
	}
	return 0, typeMismatch(TagDuration, v)
}
