package media

import (
	"io"

	"github.com/SocAIty/media-toolkit/codec"
	"github.com/SocAIty/media-toolkit/tensor"
	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
	null "gopkg.in/guregu/null.v3"
)

// ImageSource yields frame arrays for video assembly. Next returns
// io.EOF after the last image.
type ImageSource interface {
	Next() (*tensor.Array, error)
}

// ImageArrays is an ImageSource over in-memory arrays.
type ImageArrays struct {
	Arrays []*tensor.Array
	pos    int
}

func (s *ImageArrays) Next() (*tensor.Array, error) {
	if s.pos >= len(s.Arrays) {
		return nil, io.EOF
	}

	array := s.Arrays[s.pos]
	s.pos++
	return array, nil
}

// ImagePaths is an ImageSource which decodes image files on demand.
type ImagePaths struct {
	Paths []flu.File
	Codec codec.ImageCodec
	pos   int
}

func (s *ImagePaths) Next() (*tensor.Array, error) {
	if s.pos >= len(s.Paths) {
		return nil, io.EOF
	}

	path := s.Paths[s.pos]
	s.pos++
	array, err := s.Codec.DecodeImage(path)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}

	return array, nil
}

// StreamItem is one tick of an audio/video stream: a frame and the
// audio samples belonging to its display interval. Chunk may be nil
// when the producer has no audio for the tick.
type StreamItem struct {
	Frame *tensor.Array
	Chunk *tensor.Array
}

// FrameSource produces stream items for video assembly. Next returns
// io.EOF after the last item.
type FrameSource interface {
	Next() (*StreamItem, error)
	FrameRate() float64
	SampleRate() int
}

// StreamItems is a FrameSource over a fixed slice of items.
type StreamItems struct {
	Items []*StreamItem
	Rate  float64
	Audio int
	pos   int
}

func (s *StreamItems) Next() (*StreamItem, error) {
	if s.pos >= len(s.Items) {
		return nil, io.EOF
	}

	item := s.Items[s.pos]
	s.pos++
	return item, nil
}

func (s *StreamItems) FrameRate() float64 {
	return s.Rate
}

func (s *StreamItems) SampleRate() int {
	return s.Audio
}

// Frame is one demuxed video tick.
type Frame struct {
	Image *tensor.Array

	// Audio holds the samples of the frame interval, padded or cut to
	// the exact per-frame sample count. Nil when the stream was opened
	// without audio.
	Audio *tensor.Array
}

// FrameStream is an open pull-based demux session over a video file.
// The caller must Close it to release the decode session and the
// backing temp file.
type FrameStream struct {
	reader     codec.FrameReader
	temp       flu.File
	video      *VideoFile
	samples    *tensor.Array
	sampleRate int
	frameRate  float64
	expected   int
	count      int
	closed     bool
}

// FrameRate reports the stream frame rate.
func (s *FrameStream) FrameRate() float64 {
	return s.frameRate
}

// SampleRate reports the audio sample rate, or 0 without audio.
func (s *FrameStream) SampleRate() int {
	return s.sampleRate
}

// Next returns the following frame, or io.EOF at the end of the video.
func (s *FrameStream) Next() (*Frame, error) {
	if s.closed {
		return nil, errors.New("stream is closed")
	}

	image, err := s.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	} else if err != nil {
		return nil, err
	}

	frame := &Frame{Image: image}
	if s.samples != nil {
		// each window is computed from the frame index, so rates not
		// divisible by the frame rate do not drift over a long stream
		lo := int(float64(s.count) * float64(s.sampleRate) / s.frameRate)
		hi := int(float64(s.count+1) * float64(s.sampleRate) / s.frameRate)
		slice := s.samples.Slice(lo, hi)

		// the first non-empty slice fixes the per-frame sample count,
		// later slices are padded or cut to it
		if s.expected == 0 && slice.Size(0) > 0 {
			s.expected = slice.Size(0)
		}

		if s.expected > 0 {
			slice = slice.PadTo(s.expected)
		}

		frame.Audio = slice
	}

	s.count++
	return frame, nil
}

// Close releases the decode session and removes the temp file. After a
// full read it also fixes the frame count of the source video to the
// exact number of frames seen. Safe to call more than once.
func (s *FrameStream) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	err := s.reader.Close()
	if s.temp != "" {
		_ = s.temp.Remove()
	}

	if s.video != nil && s.count > 0 {
		s.video.frameCount = null.IntFrom(int64(s.count))
	}

	return err
}
