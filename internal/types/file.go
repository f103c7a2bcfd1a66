package types

import (
	"io"
	"os"
)

// File is a dump produced by an engine dumper, usually backed by a temp file.
type File struct {
	Content io.ReadCloser
	Stat    FileStat
}

type FileStat struct {
	Size        int64
	Name        string
	Mode        os.FileMode
	ContentType string
}

type NoOpReadCloser struct {
	io.Reader
}

func (NoOpReadCloser) Close() error {
	return nil
}

func (f File) GetContentType() string {
	if f.Stat.ContentType == "" {
		return "application/octet-stream"
	}
	return f.Stat.ContentType
}

// Release closes the content and removes the local temp file, if any.
func (f File) Release() {
	if f.Content != nil {
		_ = f.Content.Close()
	}
	if f.Stat.Name != "" {
		_ = os.Remove(f.Stat.Name)
	}
}
