// Package typst converts Go values into literal Typst source text.
//
// The encoder covers a closed set of core kinds (nil, booleans, integers,
// floats, exact decimals, strings, dates and times, sequences, and string
// keyed mappings) and is open to extension through the Encoder interface.
// Partially loaded records are modeled by Record, which filters its fields
// for visibility before being encoded as a dictionary.
package typst

// DefaultTimezone is the zone used for datetime encoding when the context
// does not name one.
const DefaultTimezone = "UTC"

// Context carries the options threaded unchanged through every recursive
// encode call. A nil *Context is valid and means defaults: UTC datetimes
// and no struct-key overrides.
type Context struct {
	// Timezone is an IANA zone identifier. Zone-aware datetimes are
	// shifted into this zone before their components are read.
	Timezone string

	// StructKeys maps a composite kind identifier to an explicit field
	// allowlist, bypassing the default visibility filtering for records
	// of that kind.
	StructKeys map[string][]string
}

func (c *Context) timezone() string {
	if c == nil || c.Timezone == "" {
		return DefaultTimezone
	}
	return c.Timezone
}

func (c *Context) structKeys(kind string) ([]string, bool) {
	if c == nil || c.StructKeys == nil {
		return nil, false
	}
	keys, ok := c.StructKeys[kind]
	return keys, ok
}
