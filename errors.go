package hwdecode

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
)

// Signals returned by the decode engine. Neither is a failure: the caller
// feeds another packet on ErrNeedMoreInput and stops on ErrEndOfStream.
var (
	ErrNeedMoreInput = errors.New("hwdecode: need more input")
	ErrEndOfStream   = errors.New("hwdecode: end of stream")
	ErrClosed        = errors.New("hwdecode: decoder is closed")
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindSubmitFailed Kind = iota + 1
	KindDecodeFailed
	KindUnsupportedBackend
	KindDeviceInitFailed
	KindTransferFailed
	KindConvertFailed
	KindAllocationFailed
	KindUnsupportedSourceFormat
	KindCodecNotFound
	KindOpenFailed
)

var (
	ErrSubmitFailed            = errors.New("submit failed")
	ErrDecodeFailed            = errors.New("decode failed")
	ErrUnsupportedBackend      = errors.New("unsupported backend")
	ErrDeviceInitFailed        = errors.New("device init failed")
	ErrTransferFailed          = errors.New("transfer failed")
	ErrConvertFailed           = errors.New("convert failed")
	ErrAllocationFailed        = errors.New("allocation failed")
	ErrUnsupportedSourceFormat = errors.New("unsupported source format")
	ErrCodecNotFound           = errors.New("codec not found")
	ErrOpenFailed              = errors.New("open failed")
)

func (k Kind) sentinel() error {
	switch k {
	case KindSubmitFailed:
		return ErrSubmitFailed
	case KindDecodeFailed:
		return ErrDecodeFailed
	case KindUnsupportedBackend:
		return ErrUnsupportedBackend
	case KindDeviceInitFailed:
		return ErrDeviceInitFailed
	case KindTransferFailed:
		return ErrTransferFailed
	case KindConvertFailed:
		return ErrConvertFailed
	case KindAllocationFailed:
		return ErrAllocationFailed
	case KindUnsupportedSourceFormat:
		return ErrUnsupportedSourceFormat
	case KindCodecNotFound:
		return ErrCodecNotFound
	case KindOpenFailed:
		return ErrOpenFailed
	}
	return nil
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a fatal pipeline failure. Code and Message come from the libav
// primitive that failed, when there is one.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("hwdecode: %s: %s (%d)", e.Kind, e.Message, e.Code)
	case e.Message != "":
		return fmt.Sprintf("hwdecode: %s: %s", e.Kind, e.Message)
	default:
		return "hwdecode: " + e.Kind.String()
	}
}

// Unwrap exposes both the kind sentinel and the underlying libav error, so
// errors.Is(err, ErrTransferFailed) and errors.Is(err, astiav.ErrEagain)
// both work.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind Kind, err error) *Error {
	e := &Error{Kind: kind, Err: err}
	if err == nil {
		return e
	}
	var aerr astiav.Error
	if errors.As(err, &aerr) {
		e.Code = int(aerr)
	}
	e.Message = err.Error()
	return e
}

func newErrorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsFallback reports whether err is a setup failure after which a stream
// should continue on the software path.
func IsFallback(err error) bool {
	return errors.Is(err, ErrUnsupportedBackend) || errors.Is(err, ErrDeviceInitFailed)
}
