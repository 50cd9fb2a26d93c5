package utils

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteFileAtomic writes data to a temporary file next to path and renames it over path,
// so readers see either the old or the new content. The parent directory must exist.
func WriteFileAtomic(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir, name := filepath.Split(path)
	tmp, err := afero.TempFile(fs, dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return err
	}
	if err := fs.Chmod(tmpName, perm); err != nil {
		fs.Remove(tmpName)
		return err
	}
	if err := fs.Rename(tmpName, path); err != nil {
		fs.Remove(tmpName)
		return err
	}
	return nil
}
