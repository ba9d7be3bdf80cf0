package hwdecode

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/gookit/config/v2"
	"github.com/rs/zerolog"
)

// Config is the file/environment form of Options.
type Config struct {
	Codec        string `mapstructure:"codec"`
	Backend      string `mapstructure:"backend"`
	Device       string `mapstructure:"device"`
	OutputFormat string `mapstructure:"output_format"`
	ReuseFrame   bool   `mapstructure:"reuse_frame"`
	Threads      int    `mapstructure:"threads"`
	LogLevel     string `mapstructure:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		Codec:        "h264",
		Backend:      "software",
		OutputFormat: "bgr24",
		Threads:      2,
		LogLevel:     "info",
	}
}

var envKeys = map[string]string{
	"HWDECODE_CODEC":         "codec",
	"HWDECODE_BACKEND":       "backend",
	"HWDECODE_DEVICE":        "device",
	"HWDECODE_OUTPUT_FORMAT": "output_format",
	"HWDECODE_REUSE_FRAME":   "reuse_frame",
	"HWDECODE_THREADS":       "threads",
	"HWDECODE_LOG_LEVEL":     "log_level",
}

// LoadConfig reads JSON config files in order, then HWDECODE_* environment
// variables, on top of DefaultConfig.
func LoadConfig(files ...string) (Config, error) {
	cfg := DefaultConfig()

	c := config.New("hwdecode")
	c.WithOptions(config.ParseEnv)
	if len(files) > 0 {
		if err := c.LoadFiles(files...); err != nil {
			return cfg, fmt.Errorf("hwdecode: loading config failed: %w", err)
		}
	}
	c.LoadOSEnvs(envKeys)

	if len(c.Data()) > 0 {
		if err := c.BindStruct("", &cfg); err != nil {
			return cfg, fmt.Errorf("hwdecode: decoding config failed: %w", err)
		}
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, err := ParseOutputFormat(c.OutputFormat); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("hwdecode: invalid log level %q: %w", c.LogLevel, err)
	}
	if c.Threads < 0 {
		return fmt.Errorf("hwdecode: invalid thread count %d", c.Threads)
	}
	if c.Codec == "" {
		return fmt.Errorf("hwdecode: codec is required")
	}
	return nil
}

// Options resolves the config into stream options. An unknown backend name
// is not an error here: the stream falls back to software like any other
// unavailable backend, and the returned error says why.
func (c Config) Options() (Options, error) {
	if err := c.Validate(); err != nil {
		return Options{}, err
	}

	format, _ := ParseOutputFormat(c.OutputFormat)
	opts := Options{
		OutputFormat: format,
		Device:       c.Device,
		ReuseFrame:   c.ReuseFrame,
		Threads:      c.Threads,
	}

	if astiav.FindDecoderByName(c.Codec) == nil {
		return Options{}, newErrorf(KindCodecNotFound, "no decoder named %q", c.Codec)
	}
	opts.CodecName = c.Codec

	backend, err := ParseBackend(c.Backend)
	opts.Backend = backend
	return opts, err
}
