// Package filewatch tells when files are modified.
package filewatch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	xe "github.com/opst/backorder/pkg/errors"
)

// UntilModifyContext returns a context canceled when one of paths is
// written, created, removed or renamed.
//
// Parent directories of paths are watched, so that a file replaced by
// renaming another file onto it is noticed, and a path which does not exist yet
// can be watched. A parent directory which does not exist is an error.
//
// # Args
//
// - ctx: context.Context
//
// - paths ...string: files to be watched.
//
// # Returns
//
// - context.Context: context canceled when one of paths is modified.
// Its cause tells which file is modified.
//
// - func(): stops watching.
//
// - error: error caused when it fails to start watching.
// errors.Is(err, os.ErrNotExist) when a parent directory does not exist.
func UntilModifyContext(ctx context.Context, paths ...string) (context.Context, func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, xe.Wrap(err)
	}

	targets := map[string]struct{}{}
	dirs := map[string]struct{}{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			w.Close()
			return nil, nil, xe.Wrap(err)
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			w.Close()
			return nil, nil, xe.WrapWithNote(d, err)
		}
	}

	cctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
					continue
				}
				if _, ok := targets[filepath.Clean(event.Name)]; !ok {
					continue
				}
				cancel(fmt.Errorf("%s is updated (%s)", event.Name, event.Op))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(fmt.Errorf("watching files has failed: %w", err))
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
