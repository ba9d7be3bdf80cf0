package hwdecode

import (
	"github.com/asticode/go-astiav"
	"github.com/rs/zerolog"
)

type scaler interface {
	ScaleFrame(src, dst *astiav.Frame) error
	Free()
}

type scalerFactory func(srcW, srcH int, srcFormat astiav.PixelFormat, dstW, dstH int, dstFormat astiav.PixelFormat) (scaler, error)

func newSoftwareScaler(srcW, srcH int, srcFormat astiav.PixelFormat, dstW, dstH int, dstFormat astiav.PixelFormat) (scaler, error) {
	ssc, err := astiav.CreateSoftwareScaleContext(
		srcW, srcH, srcFormat,
		dstW, dstH, dstFormat,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return nil, err
	}
	return ssc, nil
}

type conversionKey struct {
	width, height int
	src, dst      astiav.PixelFormat
}

// Image is a packed frame. Data aliases the converter's output buffer and
// stays valid until the next Convert on the same stream.
type Image struct {
	Data   []byte
	Width  int
	Height int
	Stride int
	Format OutputFormat
}

func (i *Image) Len() int {
	return len(i.Data)
}

// Converter turns host-resident planar frames into a packed format. The
// conversion context and output buffer are built on first use and reused
// for every following frame with the same geometry and formats.
type Converter struct {
	format    OutputFormat
	newScaler scalerFactory
	log       zerolog.Logger

	key    conversionKey
	scaler scaler
	dst    *astiav.Frame
	buf    []byte
	builds int
}

func NewConverter(format OutputFormat, log zerolog.Logger) *Converter {
	return &Converter{format: format, newScaler: newSoftwareScaler, log: log}
}

func (c *Converter) Format() OutputFormat {
	return c.format
}

// Builds is the number of conversion contexts built so far.
func (c *Converter) Builds() int {
	return c.builds
}

// Invalidate drops the conversion context so the next Convert rebuilds it.
// The output buffer is kept.
func (c *Converter) Invalidate() {
	if c.scaler != nil {
		c.scaler.Free()
		c.scaler = nil
	}
	if c.dst != nil {
		c.dst.Free()
		c.dst = nil
	}
	c.key = conversionKey{}
}

func (c *Converter) Close() {
	c.Invalidate()
	c.buf = nil
}

func (c *Converter) ensure(key conversionKey) error {
	if c.scaler != nil && key == c.key {
		return nil
	}
	c.Invalidate()

	s, err := c.newScaler(key.width, key.height, key.src, key.width, key.height, key.dst)
	if err != nil {
		return newError(KindConvertFailed, err)
	}

	dst := astiav.AllocFrame()
	dst.SetWidth(key.width)
	dst.SetHeight(key.height)
	dst.SetPixelFormat(key.dst)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		s.Free()
		return newError(KindAllocationFailed, err)
	}

	size := key.width * key.height * c.format.BytesPerPixel()
	if len(c.buf) != size {
		// Go zeroes new slices, so every format starts from a blank buffer.
		c.buf = make([]byte, size)
	}

	c.scaler, c.dst, c.key = s, dst, key
	c.builds++
	c.log.Debug().
		Int("width", key.width).
		Int("height", key.height).
		Str("src", key.src.String()).
		Str("dst", key.dst.String()).
		Int("builds", c.builds).
		Msg("conversion context built")
	return nil
}

// Convert rewrites f into the packed output buffer. f must be host-resident.
func (c *Converter) Convert(f *Frame) (*Image, error) {
	src := f.PixelFormat()
	if !convertibleSourceFormats[src] {
		return nil, newErrorf(KindUnsupportedSourceFormat, "cannot convert from %s", src)
	}

	key := conversionKey{width: f.Width(), height: f.Height(), src: src, dst: c.format.PixelFormat()}
	if key.width <= 0 || key.height <= 0 {
		return nil, newErrorf(KindConvertFailed, "invalid frame size %dx%d", key.width, key.height)
	}
	if err := c.ensure(key); err != nil {
		return nil, err
	}

	if err := c.scaler.ScaleFrame(f.Frame, c.dst); err != nil {
		return nil, newError(KindConvertFailed, err)
	}
	n, err := c.dst.ImageCopyToBuffer(c.buf, 1)
	if err != nil {
		return nil, newError(KindConvertFailed, err)
	}

	return &Image{
		Data:   c.buf[:n],
		Width:  key.width,
		Height: key.height,
		Stride: key.width * c.format.BytesPerPixel(),
		Format: c.format,
	}, nil
}
