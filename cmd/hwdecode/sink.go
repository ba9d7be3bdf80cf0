package main

import (
	"fmt"
	"path/filepath"

	"github.com/kfatehi/hwdecode"
	"github.com/spf13/afero"
)

// frameSink writes every converted frame as a raw file named after its
// index and geometry, e.g. frame_000042_640x480_rgba.raw.
type frameSink struct {
	fs    afero.Fs
	dir   string
	count int
}

func newFrameSink(fs afero.Fs, dir string) (*frameSink, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	return &frameSink{fs: fs, dir: dir}, nil
}

func (s *frameSink) Write(img *hwdecode.Image) error {
	name := fmt.Sprintf("frame_%06d_%dx%d_%s.raw", s.count, img.Width, img.Height, img.Format)
	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, name), img.Data, 0o644); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	s.count++
	return nil
}
