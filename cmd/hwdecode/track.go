package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/kfatehi/hwdecode"
	"github.com/rs/zerolog"
)

type frameDecoder interface {
	Submit(packet []byte) error
	Decode(packet []byte) (*hwdecode.Image, error)
	Receive() (*hwdecode.Image, error)
	Flush() error
	Reset() error
}

type imageWriter interface {
	Write(img *hwdecode.Image) error
}

// track feeds one packet source through one decoder. It waits for a
// keyframe before decoding, notes sequence gaps, and after a decode failure
// resets the decoder and waits for the next keyframe.
type track struct {
	dec      frameDecoder
	sink     imageWriter
	recorder io.Writer
	log      zerolog.Logger

	lastSeq      int64
	seenKeyframe bool

	packets int
	frames  int
	dropped int
	resets  int
	started time.Time
}

func newTrack(dec frameDecoder, sink imageWriter, log zerolog.Logger) *track {
	return &track{dec: dec, sink: sink, log: log, lastSeq: -1}
}

func (t *track) run(ctx context.Context, src PacketSource) error {
	t.started = time.Now()
	defer t.report()

	for {
		p, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return t.finish()
		}
		if err != nil {
			return err
		}
		if t.recorder != nil {
			if err := writeCapture(t.recorder, []Packet{p}); err != nil {
				return err
			}
		}
		if err := t.handle(p); err != nil {
			return err
		}
	}
}

func (t *track) handle(p Packet) error {
	t.packets++
	if t.lastSeq >= 0 && p.Seq != uint32(t.lastSeq+1) {
		t.dropped++
		t.log.Warn().Int64("expected", t.lastSeq+1).Uint32("got", p.Seq).Msg("packet dropped")
	}
	t.lastSeq = int64(p.Seq)

	if p.Header {
		return t.recover(t.dec.Submit(p.Data))
	}
	if !t.seenKeyframe && !p.Keyframe {
		t.log.Debug().Uint32("seq", p.Seq).Msg("waiting for keyframe")
		return nil
	}
	t.seenKeyframe = true

	img, err := t.dec.Decode(p.Data)
	if errors.Is(err, hwdecode.ErrNeedMoreInput) {
		return nil
	}
	if err != nil {
		return t.recover(err)
	}
	if err := t.emit(img); err != nil {
		return err
	}
	return t.drain()
}

// drain collects frames the codec produced beyond the first for the same
// packet.
func (t *track) drain() error {
	for {
		img, err := t.dec.Receive()
		if errors.Is(err, hwdecode.ErrNeedMoreInput) || errors.Is(err, hwdecode.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return t.recover(err)
		}
		if err := t.emit(img); err != nil {
			return err
		}
	}
}

// recover turns stream-level decode failures into a reset. Anything else
// ends the track.
func (t *track) recover(err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, hwdecode.ErrDecodeFailed) && !errors.Is(err, hwdecode.ErrSubmitFailed) {
		return err
	}
	t.log.Warn().Err(err).Msg("decode failed, resetting and waiting for keyframe")
	if rerr := t.dec.Reset(); rerr != nil {
		return rerr
	}
	t.seenKeyframe = false
	t.resets++
	return nil
}

func (t *track) finish() error {
	if err := t.dec.Flush(); err != nil {
		return err
	}
	for {
		img, err := t.dec.Receive()
		if errors.Is(err, hwdecode.ErrEndOfStream) || errors.Is(err, hwdecode.ErrNeedMoreInput) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := t.emit(img); err != nil {
			return err
		}
	}
}

func (t *track) emit(img *hwdecode.Image) error {
	t.frames++
	if t.sink == nil {
		return nil
	}
	return t.sink.Write(img)
}

func (t *track) report() {
	elapsed := time.Since(t.started)
	fps := 0.0
	if elapsed > 0 {
		fps = float64(t.frames) / elapsed.Seconds()
	}
	t.log.Info().
		Int("packets", t.packets).
		Int("frames", t.frames).
		Int("dropped", t.dropped).
		Int("resets", t.resets).
		Dur("elapsed", elapsed).
		Float64("fps", fps).
		Msg("track finished")
}
