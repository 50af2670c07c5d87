package session

// Cursor yields successive values from a possibly unbounded source, such
// as a database result set. Next returns ok=false once the source is
// exhausted; a non-nil error ends iteration.
type Cursor interface {
	Next() (value any, ok bool, err error)
	Close() error
}

// SliceCursor is a Cursor over an in-memory slice.
type SliceCursor struct {
	values []any
	pos    int
}

// NewSliceCursor returns a cursor over values.
func NewSliceCursor(values []any) *SliceCursor {
	return &SliceCursor{values: values}
}

func (c *SliceCursor) Next() (any, bool, error) {
	if c.pos >= len(c.values) {
		return nil, false, nil
	}
	v := c.values[c.pos]
	c.pos++
	return v, true, nil
}

func (c *SliceCursor) Close() error { return nil }
