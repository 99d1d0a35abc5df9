// Package vfs provides the directory-tree abstraction used for extracted
// archives and per-title target directories. Trees are backed by an afero
// filesystem, so extraction output lives in memory while targets live on
// the OS filesystem.
package vfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// copyBufferSize is the block size used for file copies during a merge.
const copyBufferSize = 1 << 22 // 4 MiB

// stageDirName is the hidden staging directory created inside a merge
// target. Content lands here first and is renamed into place only once
// the full copy has succeeded.
const stageDirName = ".boxcat-stage"

// Dir is a handle to a directory inside a filesystem.
type Dir struct {
	fs   afero.Fs
	path string
}

// NewDir returns a handle to path inside fs. The directory is created if
// it does not exist.
func NewDir(fs afero.Fs, path string) (*Dir, error) {
	if err := fs.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %q: %w", path, err)
	}
	return &Dir{fs: fs, path: path}, nil
}

// OSDir returns a handle to a directory on the OS filesystem.
func OSDir(path string) (*Dir, error) {
	return NewDir(afero.NewOsFs(), path)
}

// MemDir returns the root of a fresh in-memory filesystem.
func MemDir() *Dir {
	return &Dir{fs: afero.NewMemMapFs(), path: "/"}
}

// Name returns the base name of the directory.
func (d *Dir) Name() string {
	return filepath.Base(d.path)
}

// Path returns the directory path within its filesystem.
func (d *Dir) Path() string {
	return d.path
}

// Subdirectory returns a handle to an existing subdirectory, or an error
// if it does not exist or is not a directory.
func (d *Dir) Subdirectory(name string) (*Dir, error) {
	sub := filepath.Join(d.path, name)
	info, err := d.fs.Stat(sub)
	if err != nil {
		return nil, fmt.Errorf("no subdirectory %q: %w", name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", name)
	}
	return &Dir{fs: d.fs, path: sub}, nil
}

// CreateSubdirectory returns a handle to a subdirectory, creating it if
// necessary.
func (d *Dir) CreateSubdirectory(name string) (*Dir, error) {
	return NewDir(d.fs, filepath.Join(d.path, name))
}

// Subdirectories lists the names of the immediate subdirectories.
func (d *Dir) Subdirectories() ([]string, error) {
	entries, err := afero.ReadDir(d.fs, d.path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// DeleteSubdirectory recursively removes a subdirectory.
func (d *Dir) DeleteSubdirectory(name string) error {
	return d.fs.RemoveAll(filepath.Join(d.path, name))
}

// WriteFile writes a file inside the directory, creating parents as
// needed.
func (d *Dir) WriteFile(name string, data []byte) error {
	full := filepath.Join(d.path, name)
	if err := d.fs.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return afero.WriteFile(d.fs, full, data, 0644)
}

// ReadFile reads a file inside the directory.
func (d *Dir) ReadFile(name string) ([]byte, error) {
	return afero.ReadFile(d.fs, filepath.Join(d.path, name))
}

// Merge copies the full contents of src into dst. The copy is staged:
// everything lands in a hidden directory inside dst first, and visible
// paths are only touched during the final rename pass. A failure during
// the copy phase leaves the previous contents of dst unmodified. The
// rename pass itself is not transactional: it performs only
// same-filesystem renames of already-complete files, but a failure
// partway through it can leave a mix of old and new entries.
func Merge(src, dst *Dir) error {
	stage := filepath.Join(dst.path, stageDirName)
	dst.fs.RemoveAll(stage)

	if err := copyTree(src.fs, src.path, dst.fs, stage); err != nil {
		dst.fs.RemoveAll(stage)
		return fmt.Errorf("merge copy failed: %w", err)
	}

	if err := commitStage(dst.fs, stage, dst.path); err != nil {
		dst.fs.RemoveAll(stage)
		return fmt.Errorf("merge commit failed: %w", err)
	}

	return dst.fs.RemoveAll(stage)
}

// copyTree recursively copies srcPath on srcFs to dstPath on dstFs.
func copyTree(srcFs afero.Fs, srcPath string, dstFs afero.Fs, dstPath string) error {
	buf := make([]byte, copyBufferSize)
	return afero.Walk(srcFs, srcPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcPath, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dstPath, rel)
		if info.IsDir() {
			return dstFs.MkdirAll(target, 0755)
		}
		return copyFile(srcFs, path, dstFs, target, buf)
	})
}

func copyFile(srcFs afero.Fs, srcPath string, dstFs afero.Fs, dstPath string, buf []byte) error {
	in, err := srcFs.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := dstFs.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	out, err := dstFs.Create(dstPath)
	if err != nil {
		return err
	}
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// commitStage moves every staged file into its final location. Only
// same-filesystem renames happen here.
func commitStage(fs afero.Fs, stage, final string) error {
	return afero.Walk(fs, stage, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(stage, path)
		if err != nil {
			return err
		}
		target := filepath.Join(final, rel)
		if info.IsDir() {
			return fs.MkdirAll(target, 0755)
		}
		// Rename fails on some backends when the target exists.
		if _, err := fs.Stat(target); err == nil {
			if err := fs.Remove(target); err != nil {
				return err
			}
		}
		return fs.Rename(path, target)
	})
}
