// Package scratch copies a git working tree into an isolated scratch
// directory so the release PR orchestrator (spec.md §4.8) can mutate
// manifests and changelogs without touching the caller's checkout.
//
// Grounded on copy_dir.rs in original_source/ for the walk/copy
// semantics (preserve symlinks, include hidden files, skip nothing);
// reimplemented over stdlib's filepath.WalkDir and os.Symlink since no
// pack repo imports a directory-copy library — this is the same
// "stdlib is the complete, idiomatic fit" situation as internal/diff's
// tree digesting.
package scratch

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyTree copies the contents of from into to, creating to if it
// doesn't exist, preserving symlinks as symlinks (relative targets are
// kept relative; absolute targets pointing inside from are rewritten to
// point inside to).
func CopyTree(from, to string) error {
	info, err := os.Stat(from)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("scratch: not a directory: %s", from)
	}
	if err := os.MkdirAll(to, 0o755); err != nil {
		return fmt.Errorf("scratch: create %s: %w", to, err)
	}

	return filepath.WalkDir(from, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		dest := filepath.Join(to, rel)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			return copySymlink(path, dest, from, to)
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(dest, info.Mode().Perm())
		default:
			return copyFile(path, dest, d)
		}
	})
}

func copySymlink(path, dest, from, to string) error {
	target, err := os.Readlink(path)
	if err != nil {
		return fmt.Errorf("scratch: read link %s: %w", path, err)
	}

	if filepath.IsAbs(target) {
		if rel, err := filepath.Rel(from, target); err == nil && !isOutsidePath(rel) {
			target = filepath.Join(to, rel)
		}
	}

	_ = os.Remove(dest)
	if err := os.Symlink(target, dest); err != nil {
		return fmt.Errorf("scratch: symlink %s -> %s: %w", dest, target, err)
	}
	return nil
}

func isOutsidePath(rel string) bool {
	return len(rel) >= 2 && rel[:2] == ".."
}

func copyFile(src, dest string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("scratch: open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("scratch: create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("scratch: copy %s -> %s: %w", src, dest, err)
	}
	return nil
}

// NewDir creates a fresh temp directory under pattern (e.g.
// "release-plz-pr-*") for a single orchestration run, returning its path.
func NewDir(pattern string) (string, error) {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("scratch: create scratch dir: %w", err)
	}
	return dir, nil
}
