package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/relabs-tech/imu_scalogram/internal/frame"
	"github.com/relabs-tech/imu_scalogram/internal/render"
)

// PNGFile rewrites one image file with the newest scalogram. The file is
// replaced atomically so viewers never see a partial image.
type PNGFile struct {
	path string
	opts render.Options
}

func NewPNGFile(path string, opts render.Options) (*PNGFile, error) {
	if path == "" {
		return nil, fmt.Errorf("png sink: output path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("png sink: %w", err)
		}
	}
	return &PNGFile{path: path, opts: opts}, nil
}

func (p *PNGFile) PublishSignal(context.Context, frame.Signal) error { return nil }

func (p *PNGFile) PublishScalogram(_ context.Context, s frame.Scalogram) error {
	img, err := pngOf(s, p.opts)
	if err != nil {
		return fmt.Errorf("png sink: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, img, 0o644); err != nil {
		return fmt.Errorf("png sink: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("png sink: %w", err)
	}
	return nil
}

func (p *PNGFile) Close() error { return nil }
