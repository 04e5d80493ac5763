package reactive

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireViolation runs fn and returns the ProtocolError it panics with.
func requireViolation(t *testing.T, fn func()) *ProtocolError {
	t.Helper()
	var got *ProtocolError
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected a protocol violation")
			err, ok := r.(error)
			require.True(t, ok)
			require.True(t, IsProtocolError(err))
			got = r.(*ProtocolError)
		}()
		fn()
	}()
	return got
}

// ===== Single =====

func TestSingleDoublePullViolatesProtocol(t *testing.T) {
	reg := NewSingle[string]()
	assert.False(t, reg.AddReceiver("consumer"))

	reg.RecordPull("consumer")
	pe := requireViolation(t, func() { reg.RecordPull("consumer") })
	assert.Equal(t, "RecordPull", pe.Op)
	assert.Equal(t, "consumer", pe.Receiver)
}

func TestSinglePullAfterDelivery(t *testing.T) {
	reg := NewSingle[string]()
	reg.AddReceiver("consumer")

	reg.RecordPull("consumer")
	assert.True(t, reg.AnyPulling())
	assert.Equal(t, []string{"consumer"}, reg.Pulling())

	reg.SetNotPulling("consumer")
	assert.False(t, reg.AnyPulling())
	assert.Empty(t, reg.Pulling())

	assert.NotPanics(t, func() { reg.RecordPull("consumer") })
}

func TestSingleRejectsUnknownReceiver(t *testing.T) {
	reg := NewSingle[string]()
	requireViolation(t, func() { reg.RecordPull("stranger") })

	reg.AddReceiver("consumer")
	assert.True(t, reg.AddReceiver("consumer"))
	requireViolation(t, func() { reg.AddReceiver("other") })
}

// ===== Multi =====

func TestMultiDoublePullIsNoOp(t *testing.T) {
	reg := NewMulti[string]()
	reg.AddReceiver("a")
	reg.AddReceiver("b")

	reg.RecordPull("a")
	assert.NotPanics(t, func() { reg.RecordPull("a") })
	assert.Equal(t, []string{"a"}, reg.Pulling())

	reg.SetNotPulling("a")
	assert.False(t, reg.AnyPulling())
}

func TestMultiTracksReceiversIndependently(t *testing.T) {
	reg := NewMulti[string]()
	assert.False(t, reg.AddReceiver("a"))
	assert.True(t, reg.AddReceiver("a"))
	reg.AddReceiver("b")

	reg.RecordPull("b")
	reg.RecordPull("a")
	assert.Equal(t, []string{"a", "b"}, reg.Pulling(), "registration order")

	reg.SetNotPullingAll()
	assert.False(t, reg.AnyPulling())
	assert.Equal(t, []string{"a", "b"}, reg.Receivers())
}

func TestMultiRejectsUnknownReceiver(t *testing.T) {
	reg := NewMulti[string]()
	requireViolation(t, func() { reg.RecordPull("stranger") })
}

// ===== Buffer =====

// counting yields n integers and records how many were produced.
func counting(n int, produced *int) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		for i := range n {
			*produced++
			if !yield(i, nil) {
				return
			}
		}
	}
}

func TestBufferIsLazy(t *testing.T) {
	produced := 0
	buf := NewBuffer(counting(100, &produced))
	defer buf.Close()

	assert.Equal(t, 0, produced, "nothing is read before a pull")

	c := buf.Cursor()
	v, ok, err := c.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, v)
	assert.Equal(t, 1, buf.Pulled())
}

func TestBufferSharesUpstreamBetweenReaders(t *testing.T) {
	produced := 0
	buf := NewBuffer(counting(3, &produced))

	a, b := buf.Cursor(), buf.Cursor()
	var gotA, gotB []int
	for {
		v, ok, err := a.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		gotA = append(gotA, v)
	}
	for {
		v, ok, err := b.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		gotB = append(gotB, v)
	}

	assert.Equal(t, []int{0, 1, 2}, gotA)
	assert.Equal(t, gotA, gotB)
	assert.Equal(t, 3, produced, "each item is produced once")
	assert.True(t, buf.Done())
}

func TestBufferSurfacesUpstreamError(t *testing.T) {
	boom := errors.New("boom")
	buf := NewBuffer(func(yield func(int, error) bool) {
		if !yield(1, nil) {
			return
		}
		yield(0, boom)
	})

	items, err := buf.Drain()
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, items)
	assert.Equal(t, []int{1}, buf.Snapshot())
}

func TestCompletedBuffer(t *testing.T) {
	buf := Completed([]string{"a", "b"})
	items, err := buf.Drain()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, items)
}

func TestBufferCloseStopsUpstream(t *testing.T) {
	produced := 0
	buf := NewBuffer(counting(10, &produced))
	c := buf.Cursor()
	_, _, _ = c.Next()

	buf.Close()
	_, ok, err := c.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, produced)
}
