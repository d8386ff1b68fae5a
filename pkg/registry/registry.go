// Package registry is a versioned store of model bundles.
//
// Each version is a directory named by a non-negative integer under the registry root.
// Versions are created once and never modified or removed.
// The latest version is the largest one, resolved from the file system on every access.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/opst/backorder/pkg/bundle"
	"github.com/opst/backorder/pkg/domain"
	xe "github.com/opst/backorder/pkg/errors"
)

var ErrVersionConflict = errors.New("registry: version already exists")

// prefix of directories where bundles are prepared before being published
const stagingPrefix = ".staging-"

type Registry struct {
	root   string
	locker Locker
}

type Option func(*Registry) *Registry

// WithLocker sets the Locker guarding promotion.
//
// By default, promotions are serialized within the process only.
func WithLocker(l Locker) Option {
	return func(r *Registry) *Registry {
		r.locker = l
		return r
	}
}

func New(root string, options ...Option) *Registry {
	r := &Registry{root: root, locker: NewMutexLocker()}
	for _, opt := range options {
		r = opt(r)
	}
	return r
}

func (r *Registry) Root() string {
	return r.root
}

// Dir is the directory of a version.
func (r *Registry) Dir(version int) string {
	return filepath.Join(r.root, strconv.Itoa(version))
}

// parseVersion accepts canonical decimal representation of non-negative integers only.
func parseVersion(name string) (int, bool) {
	v, err := strconv.Atoi(name)
	if err != nil || v < 0 || strconv.Itoa(v) != name {
		return 0, false
	}
	return v, true
}

// Versions in ascending order. A missing registry root has no versions.
func (r *Registry) Versions() ([]int, error) {
	entries, err := os.ReadDir(r.root)
	if errors.Is(err, os.ErrNotExist) {
		return []int{}, nil
	} else if err != nil {
		return nil, xe.Wrap(err)
	}

	versions := []int{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if v, ok := parseVersion(e.Name()); ok {
			versions = append(versions, v)
		}
	}
	sort.Ints(versions)
	return versions, nil
}

// Latest returns the largest version. If there are no versions, ok is false.
func (r *Registry) Latest() (version int, ok bool, err error) {
	versions, err := r.Versions()
	if err != nil {
		return 0, false, err
	}
	if len(versions) == 0 {
		return 0, false, nil
	}
	return versions[len(versions)-1], true, nil
}

// Next is the version a promotion would create now.
func (r *Registry) Next() (int, error) {
	latest, ok, err := r.Latest()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return latest + 1, nil
}

func (r *Registry) Load(version int) (bundle.Bundle, error) {
	return bundle.LoadBundle(r.Dir(version))
}

// LoadLatest loads the bundle of the latest version.
//
// If the registry is empty, it returns domain.ErrModelUnavailable.
func (r *Registry) LoadLatest() (bundle.Bundle, int, error) {
	v, ok, err := r.Latest()
	if err != nil {
		return bundle.Bundle{}, 0, err
	}
	if !ok {
		return bundle.Bundle{}, 0, fmt.Errorf("%w: registry %s is empty", domain.ErrModelUnavailable, r.root)
	}
	b, err := r.Load(v)
	if err != nil {
		return bundle.Bundle{}, 0, err
	}
	return b, v, nil
}

// Promote publishes b as a new version.
//
// Files are written in a staging directory first, and then the directory is renamed
// to the version number. A half-written bundle never appears as a version.
//
// # Args
//
// - ctx: context.Context. It bounds waiting for the lock of the registry.
//
// - b bundle.Bundle: the bundle to be published.
//
// # Returns
//
// - int: the new version, which is the largest existing version plus one.
//
// - error: ErrVersionConflict when another process has published the same version,
// or error caused when it fails to write or to rename.
// The staging directory is removed in any case.
func (r *Registry) Promote(ctx context.Context, b bundle.Bundle) (version int, err error) {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if uerr := unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()

	if err := os.MkdirAll(r.root, os.FileMode(0o755)); err != nil {
		return 0, xe.Wrap(err)
	}
	next, err := r.Next()
	if err != nil {
		return 0, err
	}

	staging, err := os.MkdirTemp(r.root, stagingPrefix+strconv.Itoa(next)+"-")
	if err != nil {
		return 0, xe.Wrap(err)
	}
	defer os.RemoveAll(staging)

	if err := b.Save(staging); err != nil {
		return 0, err
	}
	if err := os.Rename(staging, r.Dir(next)); errors.Is(err, os.ErrExist) {
		return 0, fmt.Errorf("%w: version %d", ErrVersionConflict, next)
	} else if err != nil {
		return 0, xe.Wrap(err)
	}
	return next, nil
}

// IsStaging tells a directory name is a staging directory left by interrupted promotion.
func IsStaging(name string) bool {
	return strings.HasPrefix(name, stagingPrefix)
}
