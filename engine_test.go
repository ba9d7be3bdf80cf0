package hwdecode

import (
	"errors"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCodec holds back delay packets before producing frames, one per
// packet, like a decoder with reordering.
type fakeCodec struct {
	delay    int
	sent     int
	received int
	draining bool
	sendErr  error
	recvErr  error
	payloads [][]byte
}

func (c *fakeCodec) SendPacket(p *astiav.Packet) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	if p == nil {
		if c.draining {
			return astiav.ErrEof
		}
		c.draining = true
		return nil
	}
	c.payloads = append(c.payloads, append([]byte(nil), p.Data()...))
	c.sent++
	return nil
}

func (c *fakeCodec) ReceiveFrame(f *astiav.Frame) error {
	if c.recvErr != nil {
		return c.recvErr
	}
	available := c.sent - c.delay
	if c.draining {
		available = c.sent
	}
	if c.received >= available {
		if c.draining {
			return astiav.ErrEof
		}
		return astiav.ErrEagain
	}
	c.received++
	f.SetWidth(16)
	f.SetHeight(16)
	f.SetPixelFormat(astiav.PixelFormatYuv420P)
	return nil
}

func newTestEngine(t *testing.T, cc codecContext, reuse bool) *engine {
	e := newEngine(cc, reuse, zerolog.Nop())
	t.Cleanup(e.Free)
	return e
}

func TestEngineBuffersBeforeFirstFrame(t *testing.T) {
	cc := &fakeCodec{delay: 2}
	e := newTestEngine(t, cc, false)

	frames := 0
	for i := 0; i < 5; i++ {
		require.NoError(t, e.submit([]byte{0, 0, 1, byte(i)}))
		assert.Equal(t, stateSent, e.state)

		f, err := e.receive()
		if i < 2 {
			assert.ErrorIs(t, err, ErrNeedMoreInput)
			assert.Nil(t, f)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, stateReady, e.state)
		assert.Equal(t, 16, f.Width())
		f.Release()
		frames++
		assert.LessOrEqual(t, frames, i+1, "never more frames than packets")
	}
	assert.Equal(t, 3, frames)
	assert.Equal(t, []byte{0, 0, 1, 4}, cc.payloads[4])
}

func TestEngineDrainYieldsBufferedFrames(t *testing.T) {
	cc := &fakeCodec{delay: 2}
	e := newTestEngine(t, cc, false)

	for i := 0; i < 3; i++ {
		require.NoError(t, e.submit([]byte{byte(i + 1)}))
	}
	f, err := e.receive()
	require.NoError(t, err)
	f.Release()

	require.NoError(t, e.drain())
	assert.Equal(t, stateDraining, e.state)
	require.NoError(t, e.drain(), "a second drain is a no-op")

	drained := 0
	for {
		f, err := e.receive()
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		require.NoError(t, err)
		f.Release()
		drained++
	}
	assert.Equal(t, 2, drained)
	assert.Equal(t, stateDraining, e.state)

	_, err = e.receive()
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestEngineRejectsEmptyPacket(t *testing.T) {
	cc := &fakeCodec{}
	e := newTestEngine(t, cc, false)

	err := e.submit(nil)
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.Equal(t, stateFailed, e.state)
	assert.Zero(t, cc.sent)

	assert.ErrorIs(t, e.submit([]byte{}), ErrSubmitFailed)
}

func TestEngineSubmitFailure(t *testing.T) {
	e := newTestEngine(t, &fakeCodec{sendErr: astiav.ErrEagain}, false)

	err := e.submit([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.ErrorIs(t, err, astiav.ErrEagain)

	var herr *Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, int(astiav.ErrEagain), herr.Code)
	assert.Equal(t, stateFailed, e.state)
}

func TestEngineDecodeFailure(t *testing.T) {
	cc := &fakeCodec{recvErr: errors.New("invalid data found when processing input")}
	e := newTestEngine(t, cc, false)

	require.NoError(t, e.submit([]byte{1}))
	f, err := e.receive()
	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrDecodeFailed)
	assert.Equal(t, stateFailed, e.state)

	e.reset()
	assert.Equal(t, stateIdle, e.state)
}

func TestEngineFramePolicy(t *testing.T) {
	t.Run("fresh", func(t *testing.T) {
		e := newTestEngine(t, &fakeCodec{}, false)
		require.NoError(t, e.submit([]byte{1}))
		require.NoError(t, e.submit([]byte{2}))

		a, err := e.receive()
		require.NoError(t, err)
		b, err := e.receive()
		require.NoError(t, err)
		assert.NotSame(t, a, b)
		assert.True(t, a.owned)

		a.Release()
		assert.Nil(t, a.Frame)
		a.Release()
		b.Release()
	})

	t.Run("reuse", func(t *testing.T) {
		e := newTestEngine(t, &fakeCodec{}, true)
		require.NoError(t, e.submit([]byte{1}))
		require.NoError(t, e.submit([]byte{2}))

		a, err := e.receive()
		require.NoError(t, err)
		a.Release()
		assert.NotNil(t, a.Frame, "a borrowed frame survives Release")

		b, err := e.receive()
		require.NoError(t, err)
		assert.Same(t, a, b)
		assert.False(t, b.owned)
	})
}
