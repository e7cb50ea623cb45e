package media

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/SocAIty/media-toolkit/codec"
	"github.com/SocAIty/media-toolkit/codec/native"
	"github.com/SocAIty/media-toolkit/tensor"
	"github.com/corona10/goimagehash"
	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
)

// ImageFile is a media file holding a single encoded image.
type ImageFile struct {
	MediaFile
	codec codec.ImageCodec
}

// NewImage creates an empty image file backed by the built-in codec.
func NewImage() *ImageFile {
	f := &ImageFile{codec: native.Codec{}}
	f.name = defaultName
	f.contentType = defaultContentType
	f.inferExtra = f.inferImage
	f.arrayLoader = func(ctx context.Context, array *tensor.Array) error {
		return f.FromArrayFormat(ctx, array, "")
	}

	return f
}

// WithCodec overrides the image codec.
func (f *ImageFile) WithCodec(imageCodec codec.ImageCodec) *ImageFile {
	f.codec = imageCodec
	return f
}

// inferImage sniffs the content magic after a load, so that images
// arriving as raw bytes or base64 still get a usable content type.
func (f *ImageFile) inferImage(ctx context.Context) error {
	data, err := f.container.ReadAll()
	if err != nil {
		return err
	}

	if contentType := native.Sniff(data); contentType != "" {
		f.contentType = contentType
	}

	return nil
}

// FromArrayFormat encodes a pixel array into the given image format.
// An empty format falls back to the current content type, or png.
func (f *ImageFile) FromArrayFormat(ctx context.Context, array *tensor.Array, imageType string) error {
	if imageType == "" {
		if subtype, ok := imageSubtype(f.contentType); ok {
			imageType = subtype
		} else {
			imageType = "png"
		}
	}

	data, err := f.codec.EncodeImage(array, imageType)
	if err != nil {
		return EncodingError{Format: imageType, Cause: err}
	}

	if imageType == "jpg" {
		imageType = "jpeg"
	}

	f.reset()
	f.container.WriteAll(data)
	f.contentType = "image/" + imageType
	f.name = defaultName + "." + imageType
	return nil
}

// Array decodes the image to a pixel array.
func (f *ImageFile) Array(ctx context.Context) (*tensor.Array, error) {
	array, err := f.codec.DecodeImage(&f.container)
	if err != nil {
		return nil, DecodeError{Kind: "image", Cause: err}
	}

	return array, nil
}

// Channels returns the number of color channels of the decoded image.
// An unexpected pixel array rank yields 0, not an error, and the
// caller decides what to make of it.
func (f *ImageFile) Channels(ctx context.Context) (int, error) {
	array, err := f.Array(ctx)
	if err != nil {
		return 0, err
	}

	switch array.Rank() {
	case 2:
		return 1, nil
	case 3:
		return array.Shape[2], nil
	default:
		return 0, nil
	}
}

// Fingerprint computes a perceptual difference hash of the image,
// usable for near-duplicate detection.
func (f *ImageFile) Fingerprint() (string, error) {
	reader, err := f.container.Reader()
	if err != nil {
		return "", err
	}

	defer flu.Close(reader)
	img, _, err := image.Decode(reader)
	if err != nil {
		return "", DecodeError{Kind: "image", Cause: err}
	}

	dhash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", errors.Wrap(err, "get diff hash")
	}

	return fmt.Sprintf("%x", dhash.GetHash()), nil
}

func imageSubtype(contentType string) (string, bool) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", false
	}

	return strings.TrimPrefix(contentType, "image/"), true
}
