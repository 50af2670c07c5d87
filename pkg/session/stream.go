package session

import (
	"fmt"
	"strings"

	"github.com/frankdugan3/typstflow/pkg/typst"
)

// DefaultBatchSize is the number of values encoded per append when
// streaming a sequence into a virtual file.
const DefaultBatchSize = 100

// StreamOptions configures WriteSequence.
type StreamOptions struct {
	// BatchSize is how many values are encoded per AppendVirtualFile
	// call. It only affects call granularity, never the resulting bytes.
	// Zero means DefaultBatchSize.
	BatchSize int

	// Encoding is the context threaded through every element encode.
	Encoding *typst.Context
}

// WriteSequence serializes the cursor's values into the virtual file at
// path as a single Typst array bound to variable, holding at most one
// batch in memory at a time. The produced bytes are identical to encoding
// the whole sequence at once:
//
//	#let <variable> = (
//	<elem>,
//	<elem>,
//	)
//
// Every element keeps a trailing comma, so the text parses as an array for
// any element count. The initial SetVirtualFile invalidates the cached
// artifact; the subsequent appends do not invalidate it further.
func (s *Session) WriteSequence(path, variable string, src Cursor, opts StreamOptions) error {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	if err := s.SetVirtualFile(path, []byte(fmt.Sprintf("#let %s = (\n", variable))); err != nil {
		return err
	}

	batch := make([]string, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		chunk := strings.Join(batch, ",\n") + ",\n"
		batch = batch[:0]
		return s.AppendVirtualFile(path, []byte(chunk))
	}

	for {
		value, ok, err := src.Next()
		if err != nil {
			return fmt.Errorf("session: reading sequence: %w", err)
		}
		if !ok {
			break
		}

		encoded, err := typst.Encode(value, opts.Encoding)
		if err != nil {
			return fmt.Errorf("session: encoding sequence element: %w", err)
		}
		batch = append(batch, encoded)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}
	return s.AppendVirtualFile(path, []byte(")"))
}
