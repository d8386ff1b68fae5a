// Package promotion publishes an accepted bundle to the registry,
// and mirrors the published files into the run directory.
package promotion

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/opst/backorder/pkg/bundle"
	"github.com/opst/backorder/pkg/domain"
	xe "github.com/opst/backorder/pkg/errors"
	"github.com/opst/backorder/pkg/registry"
)

type Config struct {
	ModelPath         string
	TransformerPath   string
	TargetEncoderPath string

	// directory in the run to mirror the published bundle
	PromotionDir string
}

func Run(ctx context.Context, conf Config, reg *registry.Registry, logger *log.Logger) (domain.PromotionArtifact, error) {
	b, err := bundle.LoadFiles(conf.ModelPath, conf.TransformerPath, conf.TargetEncoderPath)
	if err != nil {
		return domain.PromotionArtifact{}, err
	}

	version, err := reg.Promote(ctx, b)
	if err != nil {
		return domain.PromotionArtifact{}, err
	}
	logger.Printf("published as version %d", version)

	dir := reg.Dir(version)
	if err := os.MkdirAll(conf.PromotionDir, os.FileMode(0o755)); err != nil {
		return domain.PromotionArtifact{}, xe.Wrap(err)
	}
	for _, name := range bundle.Files() {
		if err := copyFile(filepath.Join(dir, name), filepath.Join(conf.PromotionDir, name)); err != nil {
			return domain.PromotionArtifact{}, err
		}
	}

	return domain.PromotionArtifact{
		Version:           version,
		VersionDir:        dir,
		ModelPath:         filepath.Join(conf.PromotionDir, bundle.ModelFile),
		TransformerPath:   filepath.Join(conf.PromotionDir, bundle.TransformerFile),
		TargetEncoderPath: filepath.Join(conf.PromotionDir, bundle.TargetEncoderFile),
	}, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return xe.Wrap(err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, os.FileMode(0o644))
	if err != nil {
		return xe.Wrap(err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = xe.Wrap(cerr)
		}
	}()
	if _, err := io.Copy(out, in); err != nil {
		return xe.Wrap(err)
	}
	return nil
}
