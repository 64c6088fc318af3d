// Package storage delivers finished recordings to disk or object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dkeye/Webinar/internal/core"
	"github.com/rs/zerolog/log"
)

var ErrEmptyName = errors.New("storage: empty file name")

// Dir saves recordings into a local directory.
type Dir struct {
	Path string
}

func NewDir(path string) *Dir { return &Dir{Path: path} }

func (d *Dir) Download(ctx context.Context, name, mimeType string, blob []byte) error {
	if name == "" || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrEmptyName, name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(d.Path, "."+name+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	dst := filepath.Join(d.Path, name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	log.Info().Str("module", "adapters.storage").Str("path", dst).Str("mime", mimeType).Int("bytes", len(blob)).Msg("recording saved")
	return nil
}

// Multi hands the same recording to every downloader and joins their errors.
type Multi []core.Downloader

func (m Multi) Download(ctx context.Context, name, mimeType string, blob []byte) error {
	var errs []error
	for _, d := range m {
		if err := d.Download(ctx, name, mimeType, blob); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
