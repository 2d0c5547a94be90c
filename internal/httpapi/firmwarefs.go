package httpapi

import (
	"io/fs"
	"net/http"
	"strings"
)

// firmwareFS serves regular files only. Directories, dot-prefixed path
// elements and in-progress .tmp uploads all look missing.
type firmwareFS struct {
	root http.FileSystem
}

func (f firmwareFS) Open(name string) (http.File, error) {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".tmp") {
			return nil, fs.ErrNotExist
		}
	}
	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
