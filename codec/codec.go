// Package codec defines the narrow interfaces through which media
// containers talk to external encode/decode services. The containers
// orchestrate format detection and buffer lifecycles; everything that
// actually understands a codec lives behind these interfaces.
package codec

import (
	"context"

	"github.com/SocAIty/media-toolkit/tensor"
	"github.com/jfk9w-go/flu"
	null "gopkg.in/guregu/null.v3"
)

// Probe is best-effort container metadata. Probing tools do not return
// every field for every file, so all fields are nullable.
type Probe struct {
	FrameCount null.Int
	Duration   null.Float
	Width      null.Int
	Height     null.Int
	SampleRate null.Int
	FrameRate  null.Float
	FormatName null.String
}

// Prober inspects a media file on disk.
type Prober interface {
	Probe(ctx context.Context, path flu.File) (*Probe, error)
}

// ImageCodec converts between pixel arrays and encoded image bytes.
// Arrays are H×W (grayscale) or H×W×C with values in [0, 255].
type ImageCodec interface {
	// EncodeImage encodes the array to the given format ("png", "jpeg", ...).
	EncodeImage(array *tensor.Array, format string) (flu.Bytes, error)

	// DecodeImage decodes encoded image bytes back to a pixel array.
	DecodeImage(in flu.Input) (*tensor.Array, error)
}

// AudioCodec converts between sample arrays and encoded audio bytes.
// Arrays are rank-1 (mono) or N×C (interleaved channels).
type AudioCodec interface {
	// EncodeAudio encodes samples at the given rate into the requested
	// container format ("wav", "mp3", ...).
	EncodeAudio(ctx context.Context, array *tensor.Array, sampleRate int, format string) (flu.Bytes, error)

	// DecodeAudio decodes the input to samples. A zero sampleRate keeps
	// the native rate. The rate of the returned samples is reported back.
	DecodeAudio(ctx context.Context, in flu.Input, sampleRate int) (*tensor.Array, int, error)
}

// FrameReader is an open streaming decode session over a video file.
type FrameReader interface {
	// Read returns the next frame, or io.EOF when the stream ends.
	Read() (*tensor.Array, error)

	// FrameRate reports the stream frame rate.
	FrameRate() float64

	// Close releases the session. It must be safe to call more than once.
	Close() error
}

// FrameWriter is an open streaming encode session producing a video file.
type FrameWriter interface {
	// Write appends one frame.
	Write(frame *tensor.Array) error

	// Close finalizes the file. It must be safe to call more than once.
	Close() error
}

// Service aggregates the audio/video capabilities containers need.
type Service interface {
	Prober
	AudioCodec

	// OpenFrameReader opens a streaming frame decode session.
	// Frame readers cannot operate on in-memory buffers: callers
	// materialize their content to a file first.
	OpenFrameReader(ctx context.Context, path flu.File) (FrameReader, error)

	// OpenFrameWriter opens a streaming frame encode session.
	OpenFrameWriter(ctx context.Context, path flu.File, frameRate float64) (FrameWriter, error)

	// MuxAudioVideo combines a video file and an audio file into a new
	// file, replacing any existing audio track. The caller owns the
	// returned file.
	MuxAudioVideo(ctx context.Context, videoPath, audioPath flu.File) (flu.File, error)

	// ExtractAudio decodes the audio track of a video file and encodes
	// it to the requested format.
	ExtractAudio(ctx context.Context, videoPath flu.File, format string) (flu.Bytes, error)
}

// Converter converts encoded media from one container format to another.
type Converter interface {
	// String identifies the converter in logs.
	String() string

	// Convert returns an input holding the converted content.
	Convert(ctx context.Context, in flu.Input, targetFormat string) (flu.Input, error)
}
