package media

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/SocAIty/media-toolkit/tensor"
	"github.com/jfk9w-go/flu"
)

// SourceKind discriminates the closed set of input forms accepted by
// FromAny.
type SourceKind int

const (
	SourceMedia SourceKind = iota
	SourceHandle
	SourcePath
	SourceURL
	SourceBase64
	SourceBytes
	SourceArray
	SourceUpload
	SourceDict
)

// Source is a resolved FromAny input. Exactly one payload field is set,
// indicated by Kind.
type Source struct {
	Kind        SourceKind
	Media       *MediaFile
	Handle      io.Reader
	Path        flu.File
	URL         string
	Data        []byte
	Array       *tensor.Array
	Upload      *multipart.FileHeader
	Dict        *Dict
	ContentType string
}

type mediaConvertible interface {
	AsMedia() *MediaFile
}

// ResolveSource classifies an arbitrary value into a Source.
// Strings are tried as an existing file path, then an absolute
// http(s) URL, then base64 content; anything else fails with
// UnsupportedInputError.
func ResolveSource(value any) (*Source, error) {
	switch v := value.(type) {
	case mediaConvertible:
		return &Source{Kind: SourceMedia, Media: v.AsMedia()}, nil

	case *tensor.Array:
		return &Source{Kind: SourceArray, Array: v}, nil

	case flu.File:
		return &Source{Kind: SourcePath, Path: v}, nil

	case flu.Bytes:
		return &Source{Kind: SourceBytes, Data: v}, nil

	case []byte:
		return &Source{Kind: SourceBytes, Data: v}, nil

	case *multipart.FileHeader:
		return &Source{Kind: SourceUpload, Upload: v}, nil

	case *Dict:
		return &Source{Kind: SourceDict, Dict: v}, nil

	case Dict:
		return &Source{Kind: SourceDict, Dict: &v}, nil

	case map[string]string:
		dict := dictFromStrings(v)
		return &Source{Kind: SourceDict, Dict: dict}, nil

	case map[string]any:
		dict, err := dictFromValues(v)
		if err != nil {
			return nil, err
		}

		return &Source{Kind: SourceDict, Dict: dict}, nil

	case string:
		return resolveString(v)

	case io.Reader:
		return &Source{Kind: SourceHandle, Handle: v}, nil
	}

	return nil, UnsupportedInputError{Value: value}
}

func resolveString(value string) (*Source, error) {
	if exists, err := flu.File(value).Exists(); err == nil && exists {
		return &Source{Kind: SourcePath, Path: flu.File(value)}, nil
	}

	if u, err := url.Parse(value); err == nil && u.IsAbs() && (u.Scheme == "http" || u.Scheme == "https") {
		return &Source{Kind: SourceURL, URL: value}, nil
	}

	payload, contentType := value, ""
	if strings.HasPrefix(value, "data:") {
		if meta, rest, ok := strings.Cut(value[len("data:"):], ","); ok {
			payload = rest
			contentType = strings.TrimSuffix(meta, ";base64")
		}
	}

	if data, ok := decodeBase64(payload); ok {
		return &Source{Kind: SourceBase64, Data: data, ContentType: contentType}, nil
	}

	return nil, UnsupportedInputError{Value: value}
}

// decodeBase64 accepts only strings which survive a decode and
// re-encode round trip, so that arbitrary text is not mistaken
// for content.
func decodeBase64(value string) ([]byte, bool) {
	data, err := base64.StdEncoding.Strict().DecodeString(value)
	if err != nil {
		return nil, false
	}

	if base64.StdEncoding.EncodeToString(data) != value {
		return nil, false
	}

	return data, true
}
