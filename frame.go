package hwdecode

import (
	"image"

	"github.com/asticode/go-astiav"
)

// Frame is a decoded picture handed out by the engine. Frames retrieved
// under the reuse policy are borrowed: they are overwritten by the next
// retrieval and Release only drops their buffers.
type Frame struct {
	*astiav.Frame
	owned bool
}

func newOwnedFrame() *Frame {
	return &Frame{Frame: astiav.AllocFrame(), owned: true}
}

// Release gives the frame's buffers back. It is safe to call more than once.
func (f *Frame) Release() {
	if f == nil || f.Frame == nil {
		return
	}
	if f.owned {
		f.Frame.Free()
		f.Frame = nil
		return
	}
	f.Frame.Unref()
}

// HostResident reports whether the frame's planes are addressable from the
// CPU.
func (f *Frame) HostResident() bool {
	return !isHardwarePixelFormat(f.PixelFormat())
}

// YCbCr copies a host-resident yuv420p or yuvj420p frame into an
// *image.YCbCr without colour conversion.
func (f *Frame) YCbCr() (*image.YCbCr, error) {
	switch f.PixelFormat() {
	case astiav.PixelFormatYuv420P, astiav.PixelFormatYuvj420P:
	default:
		return nil, newErrorf(KindUnsupportedSourceFormat, "no YCbCr view of %s", f.PixelFormat())
	}
	img, err := f.Data().GuessImageFormat()
	if err != nil {
		return nil, newError(KindConvertFailed, err)
	}
	ycc, ok := img.(*image.YCbCr)
	if !ok {
		return nil, newErrorf(KindConvertFailed, "unexpected image type %T", img)
	}
	if err := f.Data().ToImage(ycc); err != nil {
		return nil, newError(KindConvertFailed, err)
	}
	return ycc, nil
}
