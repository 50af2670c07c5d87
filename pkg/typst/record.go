package typst

// Synthetic record fields that survive visibility filtering regardless of
// the selected-field marker.
const (
	fieldCalculations = "calculations"
	fieldAggregates   = "aggregates"
)

// Field is one named value of a Record, in declaration order.
type Field struct {
	Name  string
	Value any
}

// Record is an opaque composite: a structured host value carrying its own
// field set, identified by a kind string. Records modeling a queryable
// resource (Queryable true) may be partially loaded; the Selected marker
// lists which attribute fields were actually fetched.
//
// Records encode as dictionaries after visibility filtering, see
// EncodeTypst.
type Record struct {
	// Kind identifies the composite kind, e.g. "Billing.Invoice". It is
	// carried outside the field list and never encoded.
	Kind string

	// Fields are the declared fields in order.
	Fields []Field

	// Queryable marks records that model a queryable resource and opt in
	// to selected-field filtering.
	Queryable bool

	// Selected lists the attribute fields that are loaded. nil means all
	// attributes are loaded; an empty non-nil slice means none are.
	Selected []string

	// Relationships names the relationship fields, which are always kept
	// for queryable records.
	Relationships []string
}

// NewRecord builds a queryable record from ordered fields with every
// attribute selected.
func NewRecord(kind string, fields ...Field) Record {
	return Record{Kind: kind, Fields: fields, Queryable: true}
}

// EncodeTypst filters the record's fields for visibility and encodes the
// survivors as a dictionary.
//
// Resolution order: an explicit allowlist in ctx.StructKeys for this kind
// wins outright. Otherwise queryable records keep selected attributes, all
// relationship fields, and the synthetic calculations/aggregates fields;
// any other composite keeps every field. Unloaded values encode as none.
func (r Record) EncodeTypst(ctx *Context) (string, error) {
	var keep func(name string) bool

	if allow, ok := ctx.structKeys(r.Kind); ok {
		allowed := make(map[string]struct{}, len(allow))
		for _, name := range allow {
			allowed[name] = struct{}{}
		}
		keep = func(name string) bool {
			_, ok := allowed[name]
			return ok
		}
	} else if r.Queryable {
		selected := map[string]struct{}(nil)
		if r.Selected != nil {
			selected = make(map[string]struct{}, len(r.Selected))
			for _, name := range r.Selected {
				selected[name] = struct{}{}
			}
		}
		related := make(map[string]struct{}, len(r.Relationships))
		for _, name := range r.Relationships {
			related[name] = struct{}{}
		}
		keep = func(name string) bool {
			if name == fieldCalculations || name == fieldAggregates {
				return true
			}
			if _, ok := related[name]; ok {
				return true
			}
			if selected == nil {
				return true
			}
			_, ok := selected[name]
			return ok
		}
	} else {
		keep = func(string) bool { return true }
	}

	entries := make([]Entry, 0, len(r.Fields))
	for _, f := range r.Fields {
		if keep(f.Name) {
			entries = append(entries, Entry{Key: f.Name, Value: f.Value})
		}
	}
	return encodeEntries(entries, ctx)
}
