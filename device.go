package hwdecode

import (
	"github.com/asticode/go-astiav"
	"github.com/rs/zerolog"
)

type createDeviceFunc func(t astiav.HardwareDeviceType, device string, options *astiav.Dictionary, flags int) (*astiav.HardwareDeviceContext, error)

// deviceContext owns one hardware device context and the pixel format the
// decoder was steered to for it.
type deviceContext struct {
	backend     Backend
	pixelFormat astiav.PixelFormat
	hdc         *astiav.HardwareDeviceContext
}

func (dc *deviceContext) Free() {
	if dc.hdc != nil {
		dc.hdc.Free()
		dc.hdc = nil
	}
}

// negotiate is installed as the decoder's pixel format callback. It reads
// the format from the device context, never from shared state, so streams
// bound to different backends do not interfere.
func (dc *deviceContext) negotiate(offered []astiav.PixelFormat) astiav.PixelFormat {
	return negotiatePixelFormat(offered, dc.pixelFormat)
}

type deviceManager struct {
	create createDeviceFunc
	log    zerolog.Logger
}

func newDeviceManager(log zerolog.Logger) *deviceManager {
	return &deviceManager{create: astiav.CreateHardwareDeviceContext, log: log}
}

// initialize creates a device context for backend. Nothing is bound yet:
// on failure the stream can still be opened in software.
func (m *deviceManager) initialize(backend Backend, deviceName string, cfgs []hardwareConfig) (*deviceContext, error) {
	pf, ok := hardwarePixelFormat(cfgs, backend.DeviceType())
	if !ok {
		return nil, newErrorf(KindUnsupportedBackend, "decoder has no %s device context configuration", backend)
	}

	hdc, err := m.create(backend.DeviceType(), deviceName, nil, 0)
	if err != nil {
		return nil, newError(KindDeviceInitFailed, err)
	}

	m.log.Info().
		Str("backend", backend.String()).
		Str("pixel_format", pf.String()).
		Msg("hardware device context created")
	return &deviceContext{backend: backend, pixelFormat: pf, hdc: hdc}, nil
}

// bind attaches the device to cc and steers cc's output format to it. It
// runs once per codec context, so a reset stream is bound again.
func (dc *deviceContext) bind(cc *astiav.CodecContext, log zerolog.Logger) {
	cc.SetHardwareDeviceContext(dc.hdc)
	cc.SetPixelFormatCallback(func(pfs []astiav.PixelFormat) astiav.PixelFormat {
		got := dc.negotiate(pfs)
		if got == astiav.PixelFormatNone {
			log.Error().Str("want", dc.pixelFormat.String()).Msg("hardware surface format not offered")
		}
		return got
	})
}
