package typst

// Encoder is the extension point of the encoding protocol. Types that know
// how to render themselves as Typst source implement it; everything else
// must be one of the core kinds accepted by Encode.
type Encoder interface {
	EncodeTypst(ctx *Context) (string, error)
}

// Date is a calendar date with no time component. It encodes as a
// datetime constructor carrying only year, month, and day.
type Date struct {
	Year  int
	Month int
	Day   int
}

// TimeOfDay is a wall-clock time with no date component. It encodes as a
// datetime constructor carrying only hour, minute, and second.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// Entry is one key/value pair of a Dict.
type Entry struct {
	Key   string
	Value any
}

// Dict is an ordered string-keyed mapping. Unlike a Go map it preserves
// insertion order, which carries through to the encoded dictionary.
type Dict []Entry

// Set appends or overwrites the entry for key, keeping the position of an
// existing key.
func (d Dict) Set(key string, value any) Dict {
	for i := range d {
		if d[i].Key == key {
			d[i].Value = value
			return d
		}
	}
	return append(d, Entry{Key: key, Value: value})
}

type unloaded struct{}

// Unloaded marks a record field whose value was never fetched. It encodes
// as the `none` literal rather than failing.
var Unloaded unloaded
