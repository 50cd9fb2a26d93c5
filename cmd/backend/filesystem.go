package backend

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// OS is the real file system, reached through afero.
type OS struct {
	Fs afero.Fs
}

func NewOS() *OS {
	return &OS{Fs: afero.NewOsFs()}
}

func (o *OS) Create(name string) (FileHandler, error) {
	return o.Fs.Create(name)
}

func (o *OS) MkdirAll(path string, perm os.FileMode) error {
	return o.Fs.MkdirAll(path, perm)
}

func (o *OS) OpenFile(name string, flag int, perm os.FileMode) (FileHandler, error) {
	return o.Fs.OpenFile(name, flag, perm)
}

func (o *OS) ReadFile(filename string) ([]byte, error) {
	return afero.ReadFile(o.Fs, filename)
}

func (o *OS) RemoveAll(path string) error {
	return o.Fs.RemoveAll(path)
}

func (o *OS) Walk(root string, walkFn filepath.WalkFunc) error {
	return afero.Walk(o.Fs, root, walkFn)
}
