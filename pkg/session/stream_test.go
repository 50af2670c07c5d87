package session_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankdugan3/typstflow/pkg/engine"
	"github.com/frankdugan3/typstflow/pkg/engine/enginetest"
	"github.com/frankdugan3/typstflow/pkg/session"
)

// observedFile compiles the session through a recording world and returns
// the named virtual file from the snapshot the engine saw.
func observedFile(t *testing.T, populate func(*session.Session), path string) string {
	t.Helper()

	eng := enginetest.New()
	var world *enginetest.World
	eng.NewWorldFunc = func(opts engine.Options) (engine.World, error) {
		world = &enginetest.World{Opts: opts, Families: eng.Families}
		return world, nil
	}

	sess, err := session.New(eng, session.Options{})
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.SetMarkup("#import \"data.typ\": records"))
	populate(sess)
	compile(t, sess)

	require.NotEmpty(t, world.Snapshots)
	snap := world.Snapshots[len(world.Snapshots)-1]
	content, ok := snap.Files[path]
	require.True(t, ok, "virtual file %q missing", path)
	return string(content)
}

func TestWriteSequenceFormat(t *testing.T) {
	got := observedFile(t, func(sess *session.Session) {
		src := session.NewSliceCursor([]any{1, "two", true})
		require.NoError(t, sess.WriteSequence("data.typ", "records", src, session.StreamOptions{}))
	}, "data.typ")

	assert.Equal(t, "#let records = (\nint(1),\n\"two\",\ntrue,\n)", got)
}

func TestWriteSequenceEmpty(t *testing.T) {
	got := observedFile(t, func(sess *session.Session) {
		src := session.NewSliceCursor(nil)
		require.NoError(t, sess.WriteSequence("data.typ", "records", src, session.StreamOptions{}))
	}, "data.typ")

	assert.Equal(t, "#let records = (\n)", got)
}

func TestWriteSequenceSingleton(t *testing.T) {
	got := observedFile(t, func(sess *session.Session) {
		src := session.NewSliceCursor([]any{42})
		require.NoError(t, sess.WriteSequence("data.typ", "records", src, session.StreamOptions{}))
	}, "data.typ")

	// The trailing comma keeps a one-element file parsing as an array.
	assert.Equal(t, "#let records = (\nint(42),\n)", got)
}

func TestWriteSequenceBatchSizeDoesNotChangeOutput(t *testing.T) {
	values := make([]any, 23)
	for i := range values {
		values[i] = map[string]any{"id": i, "name": fmt.Sprintf("row %d", i)}
	}

	var reference string
	for _, batchSize := range []int{0, 1, 7, 23, 100} {
		got := observedFile(t, func(sess *session.Session) {
			src := session.NewSliceCursor(values)
			opts := session.StreamOptions{BatchSize: batchSize}
			require.NoError(t, sess.WriteSequence("data.typ", "records", src, opts))
		}, "data.typ")

		if reference == "" {
			reference = got
			continue
		}
		assert.Equal(t, reference, got, "batch size %d", batchSize)
	}
}

func TestWriteSequenceReplacesPreviousContent(t *testing.T) {
	got := observedFile(t, func(sess *session.Session) {
		require.NoError(t, sess.SetVirtualFile("data.typ", []byte("stale")))
		src := session.NewSliceCursor([]any{1})
		require.NoError(t, sess.WriteSequence("data.typ", "records", src, session.StreamOptions{}))
	}, "data.typ")

	assert.Equal(t, "#let records = (\nint(1),\n)", got)
}

type failingCursor struct {
	values []any
	pos    int
	err    error
}

func (c *failingCursor) Next() (any, bool, error) {
	if c.pos >= len(c.values) {
		return nil, false, c.err
	}
	v := c.values[c.pos]
	c.pos++
	return v, true, nil
}

func (c *failingCursor) Close() error { return nil }

func TestWriteSequenceCursorError(t *testing.T) {
	sess := newSession(t)
	require.NoError(t, sess.SetMarkup("= x"))

	boom := errors.New("connection reset")
	src := &failingCursor{values: []any{1, 2}, err: boom}
	err := sess.WriteSequence("data.typ", "records", src, session.StreamOptions{BatchSize: 10})
	require.ErrorIs(t, err, boom)
}

func TestWriteSequenceEncodeError(t *testing.T) {
	sess := newSession(t)
	require.NoError(t, sess.SetMarkup("= x"))

	src := session.NewSliceCursor([]any{make(chan int)})
	err := sess.WriteSequence("data.typ", "records", src, session.StreamOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot encode")
}
