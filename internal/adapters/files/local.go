// Package files implements path-safety checks and recording file moves on
// the local filesystem.
package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dkeye/podcall/internal/core"
)

// Local is the on-disk PathGuard and FileStore.
type Local struct{}

var (
	_ core.PathGuard = Local{}
	_ core.FileStore = Local{}
)

// AssertWithin fails unless target, with symlinks resolved, lives strictly
// below base. target need not exist yet.
func (Local) AssertWithin(base, target string) error {
	absBase, err := resolve(base)
	if err != nil {
		return err
	}
	absTarget, err := resolve(target)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrPathOutsideBase, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s", core.ErrPathOutsideBase, target)
	}
	return nil
}

// resolve makes p absolute and evaluates symlinks in its longest existing
// prefix; the missing tail is appended as is.
func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	existing, tail := abs, ""
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(resolved, tail), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		tail = filepath.Join(filepath.Base(existing), tail)
		existing = parent
	}
}

// Copy writes src to dst through a temp file in dst's directory and renames
// it into place, so a half-written dst is never visible.
func (Local) Copy(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".segment-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, in)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}

func (Local) Remove(path string) error { return os.Remove(path) }
