package hwdecode

import (
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options are fixed when a stream is opened.
type Options struct {
	// CodecID selects the decoder unless CodecName is set.
	CodecID astiav.CodecID
	// CodecName selects a decoder by name, e.g. "h264_cuvid" or "h264_qsv".
	CodecName string

	Backend      Backend
	Device       string
	OutputFormat OutputFormat

	// ReuseFrame makes the engine retrieve every frame into one handle. The
	// caller must be done with a frame before asking for the next.
	ReuseFrame bool

	Threads   int
	ExtraData []byte

	Logger *zerolog.Logger
}

type Stats struct {
	PacketsSubmitted  int
	FramesDecoded     int
	FramesTransferred int
	ConversionBuilds  int
}

// Decoder is the state of one decode stream. It owns the codec context, the
// optional hardware device context, the conversion context and the output
// buffer, and releases them in reverse order on Close.
//
// A Decoder is not meant to be shared between streams; concurrent streams
// each open their own.
type Decoder struct {
	id   uuid.UUID
	opts Options
	log  zerolog.Logger

	codec        *astiav.Codec
	codecContext *astiav.CodecContext
	device       *deviceContext
	backend      Backend
	fallback     error

	engine    *engine
	host      *repatriator
	converter *Converter
	closer    *astikit.Closer

	mu     sync.Mutex
	closed bool
	stats  Stats
}

func findDecoder(opts Options) (*astiav.Codec, error) {
	if opts.CodecName != "" {
		if c := astiav.FindDecoderByName(opts.CodecName); c != nil {
			return c, nil
		}
		return nil, newErrorf(KindCodecNotFound, "no decoder named %q", opts.CodecName)
	}
	if c := astiav.FindDecoder(opts.CodecID); c != nil {
		return c, nil
	}
	return nil, newErrorf(KindCodecNotFound, "no decoder for codec id %s", opts.CodecID.Name())
}

// Open sets up a decode stream. When the requested hardware backend is
// unsupported by the codec or its device cannot be created, the stream is
// opened on the software path instead and FallbackReason reports why.
func Open(opts Options) (_ *Decoder, err error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	d := &Decoder{
		id:      uuid.New(),
		opts:    opts,
		backend: BackendSoftware,
		closer:  astikit.NewCloser(),
	}
	d.log = log.With().Str("stream", d.id.String()).Logger()
	defer func() {
		if err != nil {
			_ = d.closer.Close()
		}
	}()

	if d.codec, err = findDecoder(opts); err != nil {
		return nil, err
	}
	d.log = d.log.With().Str("codec", d.codec.Name()).Logger()

	if !opts.Backend.IsSoftware() {
		dc, herr := newDeviceManager(d.log).initialize(opts.Backend, opts.Device, codecHardwareConfigs(d.codec))
		if herr != nil {
			d.fallback = herr
			d.log.Warn().Err(herr).Str("backend", opts.Backend.String()).Msg("hardware decoding unavailable, using software")
		} else {
			d.device = dc
			d.backend = opts.Backend
			d.closer.Add(dc.Free)
		}
	}

	// Reset swaps the codec context and engine, so the closer releases
	// whichever ones are current.
	d.closer.Add(d.freeCodecContext)
	d.closer.Add(d.freeEngine)
	if err = d.openCodecContext(); err != nil {
		return nil, err
	}

	d.host = newRepatriator(d.log)
	d.converter = NewConverter(opts.OutputFormat, d.log)
	d.closer.Add(d.converter.Close)

	d.log.Info().
		Str("backend", d.backend.String()).
		Str("output", opts.OutputFormat.String()).
		Bool("reuse_frame", opts.ReuseFrame).
		Msg("decoder opened")
	return d, nil
}

// openCodecContext allocates, configures and opens a codec context, then
// puts a fresh engine on it.
func (d *Decoder) openCodecContext() error {
	if d.codecContext = astiav.AllocCodecContext(d.codec); d.codecContext == nil {
		return newErrorf(KindAllocationFailed, "codec context is nil")
	}
	if len(d.opts.ExtraData) > 0 {
		if err := d.codecContext.SetExtraData(d.opts.ExtraData); err != nil {
			return newError(KindAllocationFailed, err)
		}
	}
	if d.opts.Threads > 0 {
		d.codecContext.SetThreadCount(d.opts.Threads)
	}
	if d.device != nil {
		d.device.bind(d.codecContext, d.log)
	}

	if err := d.codecContext.Open(d.codec, nil); err != nil {
		return newError(KindOpenFailed, err)
	}
	d.engine = newEngine(d.codecContext, d.opts.ReuseFrame, d.log)
	return nil
}

func (d *Decoder) freeCodecContext() {
	if d.codecContext != nil {
		d.codecContext.Free()
		d.codecContext = nil
	}
}

func (d *Decoder) freeEngine() {
	if d.engine != nil {
		d.engine.Free()
		d.engine = nil
	}
}

func (d *Decoder) ID() string {
	return d.id.String()
}

// Backend is the backend the stream actually decodes on.
func (d *Decoder) Backend() Backend {
	return d.backend
}

// FallbackReason is the setup error that moved the stream to software, or
// nil.
func (d *Decoder) FallbackReason() error {
	return d.fallback
}

func (d *Decoder) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.FramesTransferred = d.host.count
	s.ConversionBuilds = d.converter.Builds()
	return s
}

// Submit hands one packet to the decoder without retrieving a frame.
func (d *Decoder) Submit(packet []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return d.submit(packet)
}

// Flush signals end of input. Following ReceiveFrame or Receive calls return
// the buffered frames and then ErrEndOfStream.
func (d *Decoder) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return d.engine.drain()
}

// ReceiveFrame retrieves one decoded frame, already in host memory. The
// caller releases it, and with ReuseFrame must do so before Close.
func (d *Decoder) ReceiveFrame() (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	return d.receiveFrame()
}

// DecodeFrame submits packet and retrieves at most one host-resident frame.
// ErrNeedMoreInput means the codec is still buffering.
func (d *Decoder) DecodeFrame(packet []byte) (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if err := d.submit(packet); err != nil {
		return nil, err
	}
	return d.receiveFrame()
}

// Decode runs the whole pipeline for one packet: submit, retrieve, transfer
// to host and convert. The returned image is valid until the next call.
func (d *Decoder) Decode(packet []byte) (*Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if err := d.submit(packet); err != nil {
		return nil, err
	}
	return d.receiveImage()
}

// Receive is Decode without submitting a packet, for draining.
func (d *Decoder) Receive() (*Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	return d.receiveImage()
}

// Convert packs a host-resident frame in the stream's output format.
func (d *Decoder) Convert(f *Frame) (*Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	return d.converter.Convert(f)
}

func (d *Decoder) submit(packet []byte) error {
	if err := d.engine.submit(packet); err != nil {
		return err
	}
	d.stats.PacketsSubmitted++
	return nil
}

func (d *Decoder) receiveFrame() (*Frame, error) {
	f, err := d.engine.receive()
	if err != nil {
		return nil, err
	}
	d.stats.FramesDecoded++
	return d.host.toHost(f)
}

func (d *Decoder) receiveImage() (*Image, error) {
	f, err := d.receiveFrame()
	if err != nil {
		return nil, err
	}
	defer f.Release()
	return d.converter.Convert(f)
}

// Reset discards everything buffered in the codec so the stream can resume
// from the next keyframe after a decode failure. The codec context is
// rebuilt with the stream's options and rebound to its device. If that
// fails the decoder is closed.
func (d *Decoder) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	d.freeEngine()
	d.freeCodecContext()
	if err := d.openCodecContext(); err != nil {
		d.log.Error().Err(err).Msg("decoder reset failed")
		d.closed = true
		_ = d.closer.Close()
		return err
	}
	d.log.Debug().Msg("decoder reset")
	return nil
}

// Close releases the stream's resources. It may be called from another
// goroutine to abort a stream: it waits for the call in flight and later
// calls return ErrClosed.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.log.Debug().Interface("stats", d.stats).Msg("decoder closed")
	return d.closer.Close()
}
