package hwdecode

import (
	"github.com/asticode/go-astiav"
)

// negotiatePixelFormat returns the first offered format equal to want, or
// PixelFormatNone when the codec does not offer it.
func negotiatePixelFormat(offered []astiav.PixelFormat, want astiav.PixelFormat) astiav.PixelFormat {
	for _, pf := range offered {
		if pf == want {
			return pf
		}
	}
	return astiav.PixelFormatNone
}

type hardwareConfig struct {
	deviceContextMethod bool
	deviceType          astiav.HardwareDeviceType
	pixelFormat         astiav.PixelFormat
}

func codecHardwareConfigs(c *astiav.Codec) []hardwareConfig {
	var cfgs []hardwareConfig
	for _, p := range c.HardwareConfigs() {
		cfgs = append(cfgs, hardwareConfig{
			deviceContextMethod: p.MethodFlags().Has(astiav.CodecHardwareConfigMethodFlagHwDeviceCtx),
			deviceType:          p.HardwareDeviceType(),
			pixelFormat:         p.PixelFormat(),
		})
	}
	return cfgs
}

// hardwarePixelFormat picks the pixel format a decoder emits for the given
// device type, considering only device-context based configurations.
func hardwarePixelFormat(cfgs []hardwareConfig, t astiav.HardwareDeviceType) (astiav.PixelFormat, bool) {
	for _, cfg := range cfgs {
		if cfg.deviceContextMethod && cfg.deviceType == t {
			return cfg.pixelFormat, true
		}
	}
	return astiav.PixelFormatNone, false
}
