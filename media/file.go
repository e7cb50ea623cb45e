// Package media implements a uniform container for media content.
// A MediaFile can be loaded from and exported to file paths, open
// handles, raw bytes, base64 text, URLs, numeric arrays, multipart
// uploads and wire dictionaries; ImageFile, AudioFile and VideoFile
// specialize it with decoded array access and stream processing.
package media

import (
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/SocAIty/media-toolkit/tensor"
	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
)

const (
	defaultName        = "file"
	defaultContentType = "application/octet-stream"
)

// MediaFile is a named, typed container for encoded media content.
// The zero value is not ready for use; create instances with NewFile.
type MediaFile struct {
	container   Container
	name        string
	contentType string
	sourcePath  flu.File
	downloader  Downloader

	// inferExtra runs after every successful content load. It lets
	// specializations derive metadata from the freshly loaded content.
	inferExtra func(ctx context.Context) error

	// arrayLoader overrides how FromArray stores an array. When nil,
	// arrays are persisted in their snapshot form.
	arrayLoader func(ctx context.Context, array *tensor.Array) error
}

// NewFile creates an empty general-purpose media file.
func NewFile() *MediaFile {
	return &MediaFile{
		name:        defaultName,
		contentType: defaultContentType,
	}
}

// AsMedia exposes the underlying MediaFile. Specializations inherit it,
// which makes any of them a valid FromAny input.
func (f *MediaFile) AsMedia() *MediaFile {
	return f
}

// Name returns the file name, including extension if one is known.
func (f *MediaFile) Name() string {
	return f.name
}

// WithName overrides the file name. Call after loading content,
// since loads derive the name from their source.
func (f *MediaFile) WithName(name string) *MediaFile {
	f.name = name
	return f
}

// ContentType returns the MIME type of the content.
func (f *MediaFile) ContentType() string {
	return f.contentType
}

// WithContentType overrides the content type.
func (f *MediaFile) WithContentType(contentType string) *MediaFile {
	f.contentType = contentType
	return f
}

// WithDownloader overrides the HTTP downloader used by FromURL.
func (f *MediaFile) WithDownloader(downloader Downloader) *MediaFile {
	f.downloader = downloader
	return f
}

// SourcePath returns the path the content was loaded from, or "".
func (f *MediaFile) SourcePath() flu.File {
	return f.sourcePath
}

func (f *MediaFile) reset() {
	f.container.Reset()
	f.name = defaultName
	f.contentType = defaultContentType
	f.sourcePath = ""
}

// commit finalizes a content load. On inference failure the container
// is cleared so that a failed load never leaves partial content behind.
func (f *MediaFile) commit(ctx context.Context) error {
	if f.inferExtra == nil {
		return nil
	}

	if err := f.inferExtra(ctx); err != nil {
		f.container.Reset()
		return err
	}

	return nil
}

// applyName sets the name and infers the content type from its
// extension when the registry knows it.
func (f *MediaFile) applyName(name string) {
	if name == "" {
		return
	}

	f.name = name
	if contentType := mime.TypeByExtension(filepath.Ext(name)); contentType != "" {
		f.contentType = contentType
	}
}

// FromFile loads content from a path on disk.
func (f *MediaFile) FromFile(ctx context.Context, path flu.File) error {
	f.reset()
	exists, err := path.Exists()
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}

	if !exists {
		return NotFoundError{Target: path.String()}
	}

	if _, err := flu.Copy(path, &f.container); err != nil {
		return errors.Wrapf(err, "read %s", path)
	}

	f.sourcePath = path
	f.applyName(filepath.Base(path.String()))
	return f.commit(ctx)
}

// FromHandle loads content from an open handle. Seekable handles are
// adopted without copying unless copyContents is set; other readers
// are drained into owned memory.
func (f *MediaFile) FromHandle(ctx context.Context, handle io.Reader, copyContents bool) error {
	f.reset()
	if seeker, ok := handle.(io.ReadSeeker); ok {
		if err := f.container.Adopt(seeker, copyContents); err != nil {
			return err
		}
	} else {
		data, err := io.ReadAll(handle)
		if err != nil {
			return errors.Wrap(err, "read handle")
		}

		f.container.WriteAll(data)
	}

	if name := f.container.NameHint(); name != "" {
		f.applyName(name)
	}

	return f.commit(ctx)
}

// FromBytes loads raw content. A payload in array snapshot form is
// decoded and routed through FromArray instead.
func (f *MediaFile) FromBytes(ctx context.Context, data []byte) error {
	if tensor.IsSnapshot(data) {
		array := new(tensor.Array)
		if err := flu.DecodeFrom(flu.Bytes(data), array); err != nil {
			return DecodeError{Kind: "array snapshot", Cause: err}
		}

		return f.FromArray(ctx, array)
	}

	f.reset()
	f.container.WriteAll(data)
	return f.commit(ctx)
}

// FromBase64 loads content from base64 text.
func (f *MediaFile) FromBase64(ctx context.Context, encoded string) error {
	source, err := resolveString(encoded)
	if err != nil || source.Kind != SourceBase64 {
		return DecodeError{Kind: "base64", Cause: errors.New("not a valid base64 payload")}
	}

	if err := f.FromBytes(ctx, source.Data); err != nil {
		return err
	}

	if source.ContentType != "" {
		f.contentType = source.ContentType
	}

	return nil
}

// FromURL downloads content over HTTP.
func (f *MediaFile) FromURL(ctx context.Context, resource string) error {
	f.reset()
	name, err := f.downloader.Download(ctx, resource, &f.container)
	if err != nil {
		return err
	}

	f.applyName(name)
	return f.commit(ctx)
}

// FromUpload loads content from a multipart form file.
func (f *MediaFile) FromUpload(ctx context.Context, header *multipart.FileHeader) error {
	f.reset()
	file, err := header.Open()
	if err != nil {
		return errors.Wrap(err, "open upload")
	}

	defer flu.CloseQuietly(file)
	data, err := io.ReadAll(file)
	if err != nil {
		return errors.Wrap(err, "read upload")
	}

	f.container.WriteAll(data)
	f.applyName(header.Filename)
	if contentType := header.Header.Get("Content-Type"); contentType != "" {
		f.contentType = contentType
	}

	return f.commit(ctx)
}

// FromArray loads content from a numeric array. Specializations encode
// the array in their native format; the base file persists it in
// snapshot form so that it survives a byte round trip.
func (f *MediaFile) FromArray(ctx context.Context, array *tensor.Array) error {
	if f.arrayLoader != nil {
		return f.arrayLoader(ctx, array)
	}

	f.reset()
	if err := flu.EncodeTo(array, &f.container); err != nil {
		return errors.Wrap(err, "encode array")
	}

	return nil
}

// FromDict loads content from its wire dictionary form.
func (f *MediaFile) FromDict(ctx context.Context, dict *Dict) error {
	data, err := base64.StdEncoding.DecodeString(dict.Content)
	if err != nil {
		return DecodeError{Kind: "base64", Cause: err}
	}

	if err := f.FromBytes(ctx, data); err != nil {
		return err
	}

	if dict.FileName != "" {
		f.applyName(dict.FileName)
	}

	if dict.ContentType != "" {
		f.contentType = dict.ContentType
	}

	return nil
}

// FromMedia copies content and metadata from another media file.
func (f *MediaFile) FromMedia(ctx context.Context, other *MediaFile) error {
	f.reset()
	data, err := other.container.ReadAll()
	if err != nil {
		return err
	}

	f.container.WriteAll(data)
	f.name = other.name
	f.contentType = other.contentType
	f.sourcePath = other.sourcePath
	return f.commit(ctx)
}

// FromAny loads content from any supported input form.
func (f *MediaFile) FromAny(ctx context.Context, value any) error {
	source, err := ResolveSource(value)
	if err != nil {
		return err
	}

	return f.fromSource(ctx, source)
}

func (f *MediaFile) fromSource(ctx context.Context, source *Source) error {
	switch source.Kind {
	case SourceMedia:
		return f.FromMedia(ctx, source.Media)
	case SourceHandle:
		return f.FromHandle(ctx, source.Handle, false)
	case SourcePath:
		return f.FromFile(ctx, source.Path)
	case SourceURL:
		return f.FromURL(ctx, source.URL)
	case SourceBase64:
		if err := f.FromBytes(ctx, source.Data); err != nil {
			return err
		}

		if source.ContentType != "" {
			f.contentType = source.ContentType
		}

		return nil
	case SourceBytes:
		return f.FromBytes(ctx, source.Data)
	case SourceArray:
		return f.FromArray(ctx, source.Array)
	case SourceUpload:
		return f.FromUpload(ctx, source.Upload)
	case SourceDict:
		return f.FromDict(ctx, source.Dict)
	default:
		return UnsupportedInputError{Value: source}
	}
}

// Bytes returns the raw content.
func (f *MediaFile) Bytes() ([]byte, error) {
	return f.container.ReadAll()
}

// Base64 returns the content encoded as standard base64 text.
func (f *MediaFile) Base64() (string, error) {
	data, err := f.container.ReadAll()
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// Array returns the content as a numeric array. Snapshot payloads are
// decoded to their original shape, anything else becomes a flat byte
// view of shape (1, size).
func (f *MediaFile) Array(ctx context.Context) (*tensor.Array, error) {
	data, err := f.container.ReadAll()
	if err != nil {
		return nil, err
	}

	if tensor.IsSnapshot(data) {
		array := new(tensor.Array)
		if err := flu.DecodeFrom(flu.Bytes(data), array); err != nil {
			return nil, DecodeError{Kind: "array snapshot", Cause: err}
		}

		return array, nil
	}

	return tensor.FromBytes(data), nil
}

// Dict returns the wire dictionary form of the file.
func (f *MediaFile) Dict() (*Dict, error) {
	content, err := f.Base64()
	if err != nil {
		return nil, err
	}

	return &Dict{
		FileName:    f.name,
		ContentType: f.contentType,
		Content:     content,
	}, nil
}

// Sendable returns the file as a (name, content, content type) triple
// ready for a multipart form field.
func (f *MediaFile) Sendable() (string, []byte, string, error) {
	data, err := f.container.ReadAll()
	if err != nil {
		return "", nil, "", err
	}

	return f.name, data, f.contentType, nil
}

// Save writes the content to a path. When the path is an existing
// directory the file name is appended to it. Parent directories are
// created as needed.
func (f *MediaFile) Save(path flu.File) (flu.File, error) {
	if stat, err := path.Exists(); err == nil && stat {
		if isDir(path) {
			path = path.Join(f.name)
		}
	}

	if _, err := flu.Copy(&f.container, path); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}

	return path, nil
}

// Size returns the content size in bytes.
func (f *MediaFile) Size() (Size, error) {
	return f.container.Size()
}

// FileSize converts the content size to the given unit.
func (f *MediaFile) FileSize(unit string) (float64, error) {
	size, err := f.container.Size()
	if err != nil {
		return 0, err
	}

	return size.In(unit)
}

// Reader implements flu.Input over the content.
func (f *MediaFile) Reader() (io.Reader, error) {
	return f.container.Reader()
}

// Extension returns the file name extension without the leading dot,
// falling back to the content type subtype.
func (f *MediaFile) Extension() string {
	if ext := strings.TrimPrefix(filepath.Ext(f.name), "."); ext != "" {
		return ext
	}

	if _, subtype, ok := strings.Cut(f.contentType, "/"); ok && subtype != "octet-stream" {
		return subtype
	}

	return ""
}

// Dict is the JSON wire form of a media file.
type Dict struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

func dictFromStrings(values map[string]string) *Dict {
	return &Dict{
		FileName:    values["file_name"],
		ContentType: values["content_type"],
		Content:     values["content"],
	}
}

func dictFromValues(values map[string]any) (*Dict, error) {
	dict := new(Dict)
	for key, target := range map[string]*string{
		"file_name":    &dict.FileName,
		"content_type": &dict.ContentType,
		"content":      &dict.Content,
	} {
		value, ok := values[key]
		if !ok {
			continue
		}

		str, ok := value.(string)
		if !ok {
			return nil, errors.Errorf("dict key %q must be a string, got %T", key, value)
		}

		*target = str
	}

	return dict, nil
}
