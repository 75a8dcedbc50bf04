package stubs

import (
	"errors"
	"io/fs"
)

// Overlay returns a filesystem serving each path from the first layer that
// has it. A project's own stub directory goes in front of Bundled().
func Overlay(layers ...fs.FS) fs.FS {
	return overlay(layers)
}

type overlay []fs.FS

func (o overlay) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	for _, layer := range o {
		f, err := layer.Open(name)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
