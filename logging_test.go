package hwdecode

import (
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestZerologLevel(t *testing.T) {
	assert.Equal(t, zerolog.ErrorLevel, zerologLevel(astiav.LogLevelFatal))
	assert.Equal(t, zerolog.ErrorLevel, zerologLevel(astiav.LogLevelError))
	assert.Equal(t, zerolog.WarnLevel, zerologLevel(astiav.LogLevelWarning))
	assert.Equal(t, zerolog.InfoLevel, zerologLevel(astiav.LogLevelInfo))
	assert.Equal(t, zerolog.DebugLevel, zerologLevel(astiav.LogLevelVerbose))
	assert.Equal(t, zerolog.TraceLevel, zerologLevel(logLevelTrace))
}

func TestParseLibavLogLevel(t *testing.T) {
	for name, want := range map[string]astiav.LogLevel{
		"disabled": astiav.LogLevelQuiet,
		"error":    astiav.LogLevelError,
		"warn":     astiav.LogLevelWarning,
		"info":     astiav.LogLevelInfo,
		"debug":    astiav.LogLevelDebug,
		"trace":    logLevelTrace,
	} {
		got, err := ParseLibavLogLevel(name)
		assert.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLibavLogLevel("chatty")
	assert.Error(t, err)
}

func TestHasCodec(t *testing.T) {
	assert.True(t, HasDecoder("mpeg4"))
	assert.False(t, HasDecoder("no-such-decoder"))
	assert.False(t, HasEncoder("no-such-encoder"))
}
