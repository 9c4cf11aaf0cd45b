// Package fs provides a local-filesystem-backed implementation of
// storage.Driver.
package fs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/catalogfs/commitcoord/pkg/storage"
)

// Driver is a filesystem-backed storage.Driver. Paths passed to its
// methods are relative to Root.
type Driver struct {
	// Root is the base directory all operations are rooted under.
	Root string

	// DirMode is the permission mode used when creating directories.
	// Defaults to 0755.
	DirMode os.FileMode

	// FileMode is the permission mode used when writing files.
	// Defaults to 0644.
	FileMode os.FileMode
}

// New creates a Driver rooted at root, creating root if it does not exist.
func New(root string) (*Driver, error) {
	d := &Driver{Root: root, DirMode: 0755, FileMode: 0644}
	if err := os.MkdirAll(root, d.DirMode); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) abs(path string) string {
	return filepath.Join(d.Root, filepath.FromSlash(path))
}

// CreateDirectory implements storage.Driver.
func (d *Driver) CreateDirectory(_ context.Context, path string) error {
	mode := d.DirMode
	if mode == 0 {
		mode = 0755
	}
	return os.MkdirAll(d.abs(path), mode)
}

// Exists implements storage.Driver.
func (d *Driver) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(d.abs(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ListAllFiles implements storage.Driver.
func (d *Driver) ListAllFiles(_ context.Context, dir string, recursive bool) ([]storage.Entry, error) {
	root := d.abs(dir)

	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []storage.Entry

	if !recursive {
		dirEntries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		for _, de := range dirEntries {
			info, err := de.Info()
			if err != nil {
				return nil, err
			}
			entries = append(entries, storage.Entry{Name: de.Name(), LastModified: info.ModTime()})
		}
		return entries, nil
	}

	err := filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root || de.IsDir() {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return err
		}
		entries = append(entries, storage.Entry{Name: de.Name(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// WriteFileWithoutGuarantees implements storage.Driver.
func (d *Driver) WriteFileWithoutGuarantees(_ context.Context, path string, content []byte) error {
	full := d.abs(path)
	mode := d.FileMode
	if mode == 0 {
		mode = 0644
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	// No temp-file-then-rename: the protocol this driver serves never
	// relies on write atomicity, only on filenames eventually being
	// observable by a listing (spec's no-atomicity requirement).
	return os.WriteFile(full, content, mode)
}

// Delete implements storage.Driver.
func (d *Driver) Delete(_ context.Context, path string, recursive bool) error {
	full := d.abs(path)
	var err error
	if recursive {
		err = os.RemoveAll(full)
	} else {
		err = os.Remove(full)
	}
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

var _ storage.Driver = (*Driver)(nil)
