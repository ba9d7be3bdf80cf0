package hwdecode

import (
	"errors"

	"github.com/asticode/go-astiav"
	"github.com/rs/zerolog"
)

// codecContext is the send/receive half of *astiav.CodecContext.
type codecContext interface {
	SendPacket(p *astiav.Packet) error
	ReceiveFrame(f *astiav.Frame) error
}

type engineState int

const (
	stateIdle engineState = iota
	stateSent
	stateReady
	stateDraining
	stateFailed
)

func (s engineState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSent:
		return "sent"
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// engine submits packets and drains frames. Submission and retrieval stay
// separate calls because the codec pipelines internally: a packet in does
// not mean a frame out.
type engine struct {
	cc    codecContext
	pkt   *astiav.Packet
	reuse *Frame // nil unless frames are reused in place
	state engineState
	log   zerolog.Logger
}

func newEngine(cc codecContext, reuseFrame bool, log zerolog.Logger) *engine {
	e := &engine{cc: cc, pkt: astiav.AllocPacket(), log: log}
	if reuseFrame {
		e.reuse = &Frame{Frame: astiav.AllocFrame()}
	}
	return e
}

func (e *engine) Free() {
	if e.reuse != nil {
		e.reuse.Frame.Free()
		e.reuse.Frame = nil
		e.reuse = nil
	}
	if e.pkt != nil {
		e.pkt.Free()
		e.pkt = nil
	}
}

// submit hands one compressed unit to the decoder. The data is copied into
// a libav packet and not retained past the call.
func (e *engine) submit(data []byte) error {
	if len(data) == 0 {
		e.state = stateFailed
		return newErrorf(KindSubmitFailed, "empty packet")
	}
	defer e.pkt.Unref()

	if err := e.pkt.FromData(data); err != nil {
		e.state = stateFailed
		return newError(KindAllocationFailed, err)
	}
	if err := e.cc.SendPacket(e.pkt); err != nil {
		e.state = stateFailed
		return newError(KindSubmitFailed, err)
	}
	e.state = stateSent
	return nil
}

// drain submits the end-of-stream marker; receive then yields the frames
// still buffered in the codec followed by ErrEndOfStream.
func (e *engine) drain() error {
	if e.state == stateDraining {
		return nil
	}
	if err := e.cc.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		e.state = stateFailed
		return newError(KindSubmitFailed, err)
	}
	e.state = stateDraining
	return nil
}

func (e *engine) receive() (*Frame, error) {
	f := e.reuse
	if f == nil {
		f = newOwnedFrame()
	}

	if err := e.cc.ReceiveFrame(f.Frame); err != nil {
		if e.reuse == nil {
			f.Release()
		}
		switch {
		case errors.Is(err, astiav.ErrEagain):
			return nil, ErrNeedMoreInput
		case errors.Is(err, astiav.ErrEof):
			e.state = stateDraining
			return nil, ErrEndOfStream
		default:
			e.state = stateFailed
			return nil, newError(KindDecodeFailed, err)
		}
	}

	if e.state != stateDraining {
		e.state = stateReady
	}
	e.log.Trace().
		Int("width", f.Width()).
		Int("height", f.Height()).
		Str("pixel_format", f.PixelFormat().String()).
		Msg("frame ready")
	return f, nil
}

func (e *engine) reset() {
	e.state = stateIdle
}
