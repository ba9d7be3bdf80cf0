package hwdecode

import (
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/rs/zerolog"
)

// logLevelTrace is AV_LOG_TRACE, which astiav does not name.
const logLevelTrace = astiav.LogLevel(56)

// RouteLibavLogs sends libav's own log output to logger, keeping messages at
// or below level.
func RouteLibavLogs(logger zerolog.Logger, level astiav.LogLevel) {
	astiav.SetLogLevel(level)
	astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, fmt, msg string) {
		e := logger.WithLevel(zerologLevel(l))
		if c != nil {
			if cl := c.Class(); cl != nil {
				e = e.Str("class", cl.String())
			}
		}
		e.Msg(strings.TrimSpace(msg))
	})
}

func zerologLevel(l astiav.LogLevel) zerolog.Level {
	switch {
	case l <= astiav.LogLevelError:
		return zerolog.ErrorLevel
	case l <= astiav.LogLevelWarning:
		return zerolog.WarnLevel
	case l <= astiav.LogLevelInfo:
		return zerolog.InfoLevel
	case l <= astiav.LogLevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// ParseLibavLogLevel maps a zerolog level name onto the closest libav level.
func ParseLibavLogLevel(name string) (astiav.LogLevel, error) {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return astiav.LogLevelWarning, err
	}
	switch {
	case lvl >= zerolog.Disabled:
		return astiav.LogLevelQuiet, nil
	case lvl >= zerolog.ErrorLevel:
		return astiav.LogLevelError, nil
	case lvl == zerolog.WarnLevel:
		return astiav.LogLevelWarning, nil
	case lvl == zerolog.InfoLevel:
		return astiav.LogLevelInfo, nil
	case lvl == zerolog.DebugLevel:
		return astiav.LogLevelDebug, nil
	default:
		return logLevelTrace, nil
	}
}

// HasDecoder reports whether libav was built with the named decoder.
func HasDecoder(name string) bool {
	return astiav.FindDecoderByName(name) != nil
}

// HasEncoder reports whether libav was built with the named encoder.
func HasEncoder(name string) bool {
	return astiav.FindEncoderByName(name) != nil
}
