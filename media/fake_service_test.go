package media

import (
	"context"
	"io"

	"github.com/SocAIty/media-toolkit/codec"
	"github.com/SocAIty/media-toolkit/tensor"
	"github.com/jfk9w-go/flu"
	null "gopkg.in/guregu/null.v3"
)

// fakeService is an in-memory codec.Service. Any video content decodes
// to the configured frames and samples; written frames and encoded
// audio are recorded for assertions.
type fakeService struct {
	frames     []*tensor.Array
	samples    *tensor.Array
	sampleRate int
	frameRate  float64
	probe      codec.Probe

	probedPaths   []flu.File
	readerPaths   []flu.File
	writtenFrames []*tensor.Array
	encodedAudio  *tensor.Array
	encodedRate   int
	muxCalls      int
	extractCalls  int
	openReaders   int
}

func newFakeService() *fakeService {
	return &fakeService{
		frameRate:  10,
		sampleRate: 100,
		probe: codec.Probe{
			Width:     null.IntFrom(4),
			Height:    null.IntFrom(3),
			FrameRate: null.FloatFrom(10),
		},
	}
}

func (s *fakeService) Probe(ctx context.Context, path flu.File) (*codec.Probe, error) {
	s.probedPaths = append(s.probedPaths, path)
	probe := s.probe
	return &probe, nil
}

func (s *fakeService) EncodeAudio(ctx context.Context, array *tensor.Array, sampleRate int, format string) (flu.Bytes, error) {
	s.encodedAudio = array
	s.encodedRate = sampleRate
	return flu.Bytes("RIFF fake " + format), nil
}

func (s *fakeService) DecodeAudio(ctx context.Context, in flu.Input, sampleRate int) (*tensor.Array, int, error) {
	if s.samples == nil {
		return nil, 0, io.ErrUnexpectedEOF
	}

	rate := s.sampleRate
	if sampleRate != 0 {
		rate = sampleRate
	}

	return s.samples, rate, nil
}

func (s *fakeService) OpenFrameReader(ctx context.Context, path flu.File) (codec.FrameReader, error) {
	s.readerPaths = append(s.readerPaths, path)
	s.openReaders++
	frames := s.frames
	if frames == nil {
		frames = s.writtenFrames
	}

	return &fakeFrameReader{service: s, frames: frames}, nil
}

func (s *fakeService) OpenFrameWriter(ctx context.Context, path flu.File, frameRate float64) (codec.FrameWriter, error) {
	return &fakeFrameWriter{service: s, path: path}, nil
}

func (s *fakeService) MuxAudioVideo(ctx context.Context, videoPath, audioPath flu.File) (flu.File, error) {
	s.muxCalls++
	out := flu.File(videoPath.String() + ".muxed.mp4")
	if _, err := flu.Copy(flu.Bytes("MUXED"), out); err != nil {
		return "", err
	}

	return out, nil
}

func (s *fakeService) ExtractAudio(ctx context.Context, videoPath flu.File, format string) (flu.Bytes, error) {
	s.extractCalls++
	return flu.Bytes("RIFF extracted " + format), nil
}

type fakeFrameReader struct {
	service *fakeService
	frames  []*tensor.Array
	pos     int
	closed  bool
}

func (r *fakeFrameReader) Read() (*tensor.Array, error) {
	if r.pos >= len(r.frames) {
		return nil, io.EOF
	}

	frame := r.frames[r.pos]
	r.pos++
	return frame, nil
}

func (r *fakeFrameReader) FrameRate() float64 {
	return r.service.frameRate
}

func (r *fakeFrameReader) Close() error {
	if !r.closed {
		r.closed = true
		r.service.openReaders--
	}

	return nil
}

type fakeFrameWriter struct {
	service *fakeService
	path    flu.File
	closed  bool
}

func (w *fakeFrameWriter) Write(frame *tensor.Array) error {
	if frame.Rank() != 3 {
		return io.ErrShortWrite
	}

	w.service.writtenFrames = append(w.service.writtenFrames, frame)
	return nil
}

func (w *fakeFrameWriter) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true
	_, err := flu.Copy(flu.Bytes("VIDEO"), w.path)
	return err
}

func testFrame(height, width int, value float64) *tensor.Array {
	frame := tensor.New(height, width, 3)
	for i := range frame.Data {
		frame.Data[i] = value
	}

	return frame
}
