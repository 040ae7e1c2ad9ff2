package logger

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
	kindBool
	kindError
	kindAny
)

// Field is one structured key/value pair.
type Field struct {
	Key  string
	kind fieldKind
	str  string
	num  int64
	flt  float64
	val  interface{}
}

// Value returns the field value in a JSON-friendly form. Errors become their
// message.
func (f Field) Value() interface{} {
	switch f.kind {
	case kindString:
		return f.str
	case kindInt:
		return f.num
	case kindFloat:
		return f.flt
	case kindBool:
		return f.num != 0
	case kindError:
		if f.val == nil {
			return nil
		}
		return f.val.(error).Error()
	default:
		return f.val
	}
}

func (f Field) addTo(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.Key, f.str)
	case kindInt:
		e.Int64(f.Key, f.num)
	case kindFloat:
		e.Float64(f.Key, f.flt)
	case kindBool:
		e.Bool(f.Key, f.num != 0)
	case kindError:
		if f.val != nil {
			e.Err(f.val.(error))
		}
	default:
		e.Interface(f.Key, f.val)
	}
}

func String(key, value string) Field { return Field{Key: key, kind: kindString, str: value} }

func Strings(key string, value []string) Field { return String(key, strings.Join(value, ", ")) }

func Int(key string, value int) Field { return Int64(key, int64(value)) }

func Int64(key string, value int64) Field { return Field{Key: key, kind: kindInt, num: value} }

func Float64(key string, value float64) Field { return Field{Key: key, kind: kindFloat, flt: value} }

func Bool(key string, value bool) Field {
	f := Field{Key: key, kind: kindBool}
	if value {
		f.num = 1
	}
	return f
}

// Duration logs d in whole milliseconds.
func Duration(key string, d time.Duration) Field { return Int64(key, d.Milliseconds()) }

// Error logs err under "error". A nil error is omitted from the entry.
func Error(err error) Field {
	f := Field{Key: "error", kind: kindError}
	if err != nil {
		f.val = err
	}
	return f
}

func Any(key string, value interface{}) Field { return Field{Key: key, kind: kindAny, val: value} }
