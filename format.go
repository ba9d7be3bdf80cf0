package hwdecode

import (
	"fmt"
	"strings"

	"github.com/asticode/go-astiav"
)

// OutputFormat is a packed destination pixel format.
type OutputFormat int

const (
	OutputFormatBGR24 OutputFormat = iota
	OutputFormatRGB24
	OutputFormatRGBA
)

func (f OutputFormat) PixelFormat() astiav.PixelFormat {
	switch f {
	case OutputFormatRGB24:
		return astiav.PixelFormatRgb24
	case OutputFormatRGBA:
		return astiav.PixelFormatRgba
	default:
		return astiav.PixelFormatBgr24
	}
}

func (f OutputFormat) BytesPerPixel() int {
	if f == OutputFormatRGBA {
		return 4
	}
	return 3
}

func (f OutputFormat) String() string {
	switch f {
	case OutputFormatBGR24:
		return "bgr24"
	case OutputFormatRGB24:
		return "rgb24"
	case OutputFormatRGBA:
		return "rgba"
	}
	return fmt.Sprintf("OutputFormat(%d)", int(f))
}

func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bgr24", "bgr":
		return OutputFormatBGR24, nil
	case "rgb24", "rgb":
		return OutputFormatRGB24, nil
	case "rgba":
		return OutputFormatRGBA, nil
	}
	return 0, fmt.Errorf("hwdecode: unknown output format %q", s)
}

// Backend selects the decode path. BackendSoftware decodes on the CPU;
// every other value names a libav hardware device type.
type Backend astiav.HardwareDeviceType

const BackendSoftware = Backend(astiav.HardwareDeviceTypeNone)

func (b Backend) DeviceType() astiav.HardwareDeviceType {
	return astiav.HardwareDeviceType(b)
}

func (b Backend) IsSoftware() bool {
	return b == BackendSoftware
}

func (b Backend) String() string {
	if b.IsSoftware() {
		return "software"
	}
	return b.DeviceType().String()
}

// ParseBackend resolves a backend name such as "cuda", "qsv" or "vaapi".
// The empty string, "cpu" and "software" select the software path.
func ParseBackend(name string) (Backend, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "", "cpu", "software", "none":
		return BackendSoftware, nil
	default:
		t := astiav.FindHardwareDeviceTypeByName(n)
		if t == astiav.HardwareDeviceTypeNone {
			return BackendSoftware, newErrorf(KindUnsupportedBackend, "unknown hardware backend %q", name)
		}
		return Backend(t), nil
	}
}

// hardwarePixelFormats are the frame formats whose data lives in device
// memory and has to be transferred before conversion.
var hardwarePixelFormats = map[astiav.PixelFormat]bool{
	astiav.PixelFormatCuda:         true,
	astiav.PixelFormatQsv:          true,
	astiav.PixelFormatVaapi:        true,
	astiav.PixelFormatVideotoolbox: true,
}

func isHardwarePixelFormat(pf astiav.PixelFormat) bool {
	return hardwarePixelFormats[pf]
}

// convertibleSourceFormats are the planar layouts the converter accepts.
var convertibleSourceFormats = map[astiav.PixelFormat]bool{
	astiav.PixelFormatYuv420P:  true,
	astiav.PixelFormatYuvj420P: true,
	astiav.PixelFormatNv12:     true,
}
