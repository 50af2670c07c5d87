package typst

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// stringEscaper rewrites the five characters Typst string literals reserve.
// A single simultaneous pass keeps the backslash rule first: replacements
// never reprocess each other's output, so escaping is stable under the
// engine's own unescaping.
var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Encode renders v as literal Typst source text. ctx may be nil for
// defaults. Unsupported types return an error rather than being coerced;
// new composite kinds hook in by implementing Encoder.
func Encode(v any, ctx *Context) (string, error) {
	switch val := v.(type) {
	case nil:
		return "none", nil
	case Encoder:
		return val.EncodeTypst(ctx)
	case unloaded:
		return "none", nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case int:
		return encodeInt(int64(val)), nil
	case int8:
		return encodeInt(int64(val)), nil
	case int16:
		return encodeInt(int64(val)), nil
	case int32:
		return encodeInt(int64(val)), nil
	case int64:
		return encodeInt(val), nil
	case uint:
		return encodeUint(uint64(val)), nil
	case uint8:
		return encodeUint(uint64(val)), nil
	case uint16:
		return encodeUint(uint64(val)), nil
	case uint32:
		return encodeUint(uint64(val)), nil
	case uint64:
		return encodeUint(val), nil
	case float32:
		return encodeFloat(float64(val)), nil
	case float64:
		return encodeFloat(val), nil
	case decimal.Decimal:
		return `decimal("` + val.String() + `")`, nil
	case string:
		return EncodeString(val), nil
	case time.Time:
		return encodeDatetime(val, ctx)
	case Date:
		return fmt.Sprintf("datetime(year: %d, month: %d, day: %d)",
			val.Year, val.Month, val.Day), nil
	case TimeOfDay:
		return fmt.Sprintf("datetime(hour: %d, minute: %d, second: %d)",
			val.Hour, val.Minute, val.Second), nil
	case Dict:
		return encodeEntries([]Entry(val), ctx)
	case map[string]any:
		return encodeMap(val, ctx)
	case []any:
		return EncodeSequence(val, ctx)
	}

	return encodeReflect(v, ctx)
}

// EncodeString renders s as a quoted Typst string literal.
func EncodeString(s string) string {
	return `"` + stringEscaper.Replace(s) + `"`
}

// EncodeSequence renders values as a Typst array literal. A single element
// keeps a trailing comma so the result parses as an array rather than a
// parenthesized scalar.
func EncodeSequence(values []any, ctx *Context) (string, error) {
	switch len(values) {
	case 0:
		return "()", nil
	case 1:
		elem, err := Encode(values[0], ctx)
		if err != nil {
			return "", err
		}
		return "(" + elem + ",)", nil
	}

	parts := make([]string, len(values))
	for i, v := range values {
		elem, err := Encode(v, ctx)
		if err != nil {
			return "", err
		}
		parts[i] = elem
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}

func encodeInt(i int64) string {
	return "int(" + strconv.FormatInt(i, 10) + ")"
}

func encodeUint(u uint64) string {
	return "int(" + strconv.FormatUint(u, 10) + ")"
}

func encodeFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "float.nan"
	case math.IsInf(f, 1):
		return "float.inf"
	case math.IsInf(f, -1):
		return "-float.inf"
	}
	return "float(" + strconv.FormatFloat(f, 'g', -1, 64) + ")"
}

func encodeDatetime(t time.Time, ctx *Context) (string, error) {
	loc, err := time.LoadLocation(ctx.timezone())
	if err != nil {
		return "", fmt.Errorf("typst: invalid timezone %q: %w", ctx.timezone(), err)
	}
	t = t.In(loc)
	return fmt.Sprintf("datetime(year: %d, month: %d, day: %d, hour: %d, minute: %d, second: %d)",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second()), nil
}

func encodeMap(m map[string]any, ctx *Context) (string, error) {
	// Go maps have no intrinsic order; sort keys so output is stable.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, len(keys))
	for i, k := range keys {
		entries[i] = Entry{Key: k, Value: m[k]}
	}
	return encodeEntries(entries, ctx)
}

func encodeEntries(entries []Entry, ctx *Context) (string, error) {
	if len(entries) == 0 {
		return "(:)", nil
	}

	parts := make([]string, len(entries))
	for i, e := range entries {
		val, err := Encode(e.Value, ctx)
		if err != nil {
			return "", fmt.Errorf("typst: key %q: %w", e.Key, err)
		}
		parts[i] = EncodeString(e.Key) + ": " + val
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}

// encodeReflect handles slices, arrays, and string-keyed maps of concrete
// element types, e.g. []string or map[string]int. Anything else fails fast.
func encodeReflect(v any, ctx *Context) (string, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		values := make([]any, rv.Len())
		for i := range values {
			values[i] = rv.Index(i).Interface()
		}
		return EncodeSequence(values, ctx)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return encodeMap(m, ctx)
		}
	}
	return "", fmt.Errorf("typst: cannot encode value of type %T", v)
}
