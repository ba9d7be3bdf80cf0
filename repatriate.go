package hwdecode

import (
	"github.com/asticode/go-astiav"
	"github.com/rs/zerolog"
)

type transferFunc func(src, dst *astiav.Frame) error

func transferHardwareData(src, dst *astiav.Frame) error {
	return src.TransferHardwareData(dst)
}

type repatriator struct {
	transfer transferFunc
	log      zerolog.Logger
	count    int
}

func newRepatriator(log zerolog.Logger) *repatriator {
	return &repatriator{transfer: transferHardwareData, log: log}
}

// toHost returns f unchanged when it already lives in host memory.
// Otherwise it copies the planes out of device memory into a new frame and
// releases f; on failure both frames are released.
func (r *repatriator) toHost(f *Frame) (*Frame, error) {
	if f.HostResident() {
		return f, nil
	}

	host := newOwnedFrame()
	if err := r.transfer(f.Frame, host.Frame); err != nil {
		host.Release()
		f.Release()
		return nil, newError(KindTransferFailed, err)
	}

	r.count++
	r.log.Trace().
		Str("from", f.PixelFormat().String()).
		Str("to", host.PixelFormat().String()).
		Msg("frame transferred to host")
	f.Release()
	return host, nil
}
