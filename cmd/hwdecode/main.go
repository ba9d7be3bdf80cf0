package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kfatehi/hwdecode"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "JSON config file")
	outDir := flag.String("out", "", "directory to write converted frames to")
	recordDir := flag.String("record", "", "directory to capture received packets to")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <tcp://endpoint | capture file>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var files []string
	if *configPath != "" {
		files = append(files, *configPath)
	}
	cfg, err := hwdecode.LoadConfig(files...)
	if err != nil {
		logger.Fatal().Err(err).Msg("main: loading config failed")
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger = logger.Level(level)
	libavLevel, _ := hwdecode.ParseLibavLogLevel(cfg.LogLevel)
	hwdecode.RouteLibavLogs(logger.With().Str("component", "libav").Logger(), libavLevel)

	opts, err := cfg.Options()
	if err != nil {
		if !hwdecode.IsFallback(err) {
			logger.Fatal().Err(err).Msg("main: invalid config")
		}
		logger.Warn().Err(err).Msg("backend unavailable, decoding in software")
	}
	opts.Logger = &logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &runner{
		fs:        afero.NewOsFs(),
		opts:      opts,
		outDir:    *outDir,
		recordDir: *recordDir,
		log:       logger,
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, input := range flag.Args() {
		g.Go(func() error {
			return r.run(ctx, i, input)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("main: decoding failed")
	}
}

type runner struct {
	fs        afero.Fs
	opts      hwdecode.Options
	outDir    string
	recordDir string
	log       zerolog.Logger
}

func (r *runner) openSource(input string) (PacketSource, error) {
	if strings.Contains(input, "://") {
		return newZMQSource(input)
	}
	return newFileSource(r.fs, input)
}

func (r *runner) run(ctx context.Context, index int, input string) error {
	log := r.log.With().Int("input", index).Str("source", input).Logger()

	src, err := r.openSource(input)
	if err != nil {
		return err
	}
	defer src.Close()

	opts := r.opts
	opts.Logger = &log
	dec, err := hwdecode.Open(opts)
	if err != nil {
		return fmt.Errorf("main: opening decoder for %s failed: %w", input, err)
	}
	defer dec.Close()

	var sink imageWriter
	if r.outDir != "" {
		s, err := newFrameSink(r.fs, filepath.Join(r.outDir, fmt.Sprintf("stream%d", index)))
		if err != nil {
			return err
		}
		sink = s
	}

	t := newTrack(dec, sink, log)
	if r.recordDir != "" {
		if err := r.fs.MkdirAll(r.recordDir, 0o755); err != nil {
			return fmt.Errorf("main: %w", err)
		}
		f, err := r.fs.Create(filepath.Join(r.recordDir, fmt.Sprintf("stream%d.pkts", index)))
		if err != nil {
			return fmt.Errorf("main: %w", err)
		}
		defer f.Close()
		t.recorder = f
	}

	return t.run(ctx, src)
}
