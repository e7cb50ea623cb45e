// Package native implements image encoding and decoding on top of the
// standard image codecs. It covers the formats the toolkit can handle
// without any external tool installed.
package native

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/SocAIty/media-toolkit/tensor"
	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

type (
	readImageFunc  func(io.Reader) (image.Image, error)
	writeImageFunc func(io.Writer, image.Image) error
)

var imageTypes = map[string]readImageFunc{
	"image/jpeg": jpeg.Decode,
	"image/png":  png.Decode,
	"image/bmp":  bmp.Decode,
	"image/gif":  gif.Decode,
}

var imageFormats = map[string]writeImageFunc{
	"png":  png.Encode,
	"bmp":  bmp.Encode,
	"jpeg": func(w io.Writer, img image.Image) error { return jpeg.Encode(w, img, nil) },
	"gif":  func(w io.Writer, img image.Image) error { return gif.Encode(w, img, nil) },
}

var magics = []struct {
	prefix      []byte
	contentType string
}{
	{[]byte{0x89, 'P', 'N', 'G'}, "image/png"},
	{[]byte{0xff, 0xd8, 0xff}, "image/jpeg"},
	{[]byte("GIF8"), "image/gif"},
	{[]byte("BM"), "image/bmp"},
}

// Sniff returns the content type matching the payload magic,
// or "" if the payload is not a recognized image.
func Sniff(data []byte) string {
	for _, magic := range magics {
		if bytes.HasPrefix(data, magic.prefix) {
			return magic.contentType
		}
	}

	return ""
}

// Codec is a codec.ImageCodec over the standard image packages.
type Codec struct{}

func (c Codec) EncodeImage(array *tensor.Array, format string) (flu.Bytes, error) {
	if format == "jpg" {
		format = "jpeg"
	}

	writeImage, ok := imageFormats[format]
	if !ok {
		return nil, errors.Errorf("unsupported image format %q", format)
	}

	img, err := ToImage(array)
	if err != nil {
		return nil, err
	}

	buf := new(flu.ByteBuffer)
	writer, _ := buf.Writer()
	if err := writeImage(writer, img); err != nil {
		return nil, errors.Wrapf(err, "encode %s", format)
	}

	return buf.Bytes(), nil
}

func (c Codec) DecodeImage(in flu.Input) (*tensor.Array, error) {
	reader, err := in.Reader()
	if err != nil {
		return nil, errors.Wrap(err, "open input")
	}

	defer flu.Close(reader)
	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}

	return FromImage(img), nil
}

// ToImage converts a pixel array to an image. Rank 2 arrays and
// single-channel rank 3 arrays become grayscale; 3 and 4 channels
// become RGB and RGBA.
func ToImage(array *tensor.Array) (image.Image, error) {
	var height, width, channels int
	switch array.Rank() {
	case 2:
		height, width, channels = array.Shape[0], array.Shape[1], 1
	case 3:
		height, width, channels = array.Shape[0], array.Shape[1], array.Shape[2]
	default:
		return nil, errors.Errorf("expected a rank 2 or 3 pixel array, got rank %d", array.Rank())
	}

	pixels := array.Bytes()
	bounds := image.Rect(0, 0, width, height)
	switch channels {
	case 1:
		img := image.NewGray(bounds)
		copy(img.Pix, pixels)
		return img, nil

	case 3:
		img := image.NewNRGBA(bounds)
		for i := 0; i < width*height; i++ {
			img.Pix[4*i] = pixels[3*i]
			img.Pix[4*i+1] = pixels[3*i+1]
			img.Pix[4*i+2] = pixels[3*i+2]
			img.Pix[4*i+3] = 0xff
		}

		return img, nil

	case 4:
		img := image.NewNRGBA(bounds)
		copy(img.Pix, pixels)
		return img, nil

	default:
		return nil, errors.Errorf("unsupported channel count %d", channels)
	}
}

// FromImage converts a decoded image to a pixel array. Grayscale images
// produce rank 2 arrays; images with an alpha channel in use produce
// H×W×4, everything else H×W×3.
func FromImage(img image.Image) *tensor.Array {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if gray, ok := img.(*image.Gray); ok {
		array := tensor.New(height, width)
		for i, v := range gray.Pix {
			array.Data[i] = float64(v)
		}

		return array
	}

	channels := 3
	if hasAlpha(img) {
		channels = 4
	}

	array := tensor.New(height, width, channels)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			array.Data[i] = float64(c.R)
			array.Data[i+1] = float64(c.G)
			array.Data[i+2] = float64(c.B)
			if channels == 4 {
				array.Data[i+3] = float64(c.A)
			}

			i += channels
		}
	}

	return array
}

func hasAlpha(img image.Image) bool {
	if opaquer, ok := img.(interface{ Opaque() bool }); ok {
		return !opaquer.Opaque()
	}

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}

	return false
}
