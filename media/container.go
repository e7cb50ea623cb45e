package media

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Container holds encoded media content. It either owns the bytes
// outright or wraps an adopted seekable handle without copying, which
// lets large files flow through without loading them into memory.
//
// Container implements flu.Input and flu.Output: reads always start at
// the beginning of the content, and a write replaces the content when
// the returned writer is closed.
type Container struct {
	data   []byte
	handle io.ReadSeeker
	name   string
}

// Adopt wraps the handle. With copyContents set the current content is
// read into owned memory and the handle position is restored; otherwise
// the container keeps the handle and reads it on demand.
func (c *Container) Adopt(handle io.ReadSeeker, copyContents bool) error {
	c.Reset()
	if file, ok := handle.(*os.File); ok {
		c.name = filepath.Base(file.Name())
	}

	if !copyContents {
		c.handle = handle
		return nil
	}

	pos, err := handle.Seek(0, io.SeekCurrent)
	if err != nil {
		return errors.Wrap(err, "tell")
	}

	if _, err := handle.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek start")
	}

	data, err := io.ReadAll(handle)
	if err != nil {
		return errors.Wrap(err, "read handle")
	}

	if _, err := handle.Seek(pos, io.SeekStart); err != nil {
		return errors.Wrap(err, "restore position")
	}

	c.data = data
	return nil
}

// WriteAll replaces the content with owned bytes.
func (c *Container) WriteAll(data []byte) {
	c.handle = nil
	c.data = data
}

// Reset drops the content. The name hint survives so that a reload
// into the same container keeps its identity.
func (c *Container) Reset() {
	c.data = nil
	c.handle = nil
}

// Empty reports whether the container holds no content at all.
func (c *Container) Empty() bool {
	return c.data == nil && c.handle == nil
}

// NameHint returns a file name learned from an adopted os.File,
// or "" if none is known.
func (c *Container) NameHint() string {
	return c.name
}

// ReadAll returns the full content. For an adopted handle the position
// is restored afterwards, so concurrent readers of the handle are not
// disturbed between calls.
func (c *Container) ReadAll() ([]byte, error) {
	if c.handle == nil {
		return c.data, nil
	}

	pos, err := c.handle.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, errors.Wrap(err, "tell")
	}

	if _, err := c.handle.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seek start")
	}

	data, err := io.ReadAll(c.handle)
	if err != nil {
		return nil, errors.Wrap(err, "read handle")
	}

	if _, err := c.handle.Seek(pos, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "restore position")
	}

	return data, nil
}

// Size returns the content size in bytes.
func (c *Container) Size() (Size, error) {
	if c.handle == nil {
		return Size(len(c.data)), nil
	}

	pos, err := c.handle.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, errors.Wrap(err, "tell")
	}

	end, err := c.handle.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.Wrap(err, "seek end")
	}

	if _, err := c.handle.Seek(pos, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "restore position")
	}

	return Size(end), nil
}

// Reader implements flu.Input. An adopted handle is rewound to the
// start; the returned reader shares the handle position.
func (c *Container) Reader() (io.Reader, error) {
	if c.handle == nil {
		return bytes.NewReader(c.data), nil
	}

	if _, err := c.handle.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seek start")
	}

	return c.handle, nil
}

// Writer implements flu.Output. The content is replaced when the
// returned writer is closed.
func (c *Container) Writer() (io.Writer, error) {
	return &containerWriter{container: c}, nil
}

type containerWriter struct {
	bytes.Buffer
	container *Container
}

func (w *containerWriter) Close() error {
	w.container.WriteAll(w.Buffer.Bytes())
	return nil
}
