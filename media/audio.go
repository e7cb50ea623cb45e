package media

import (
	"bytes"
	"context"
	"io"
	"math"

	"github.com/SocAIty/media-toolkit/codec"
	"github.com/SocAIty/media-toolkit/tensor"
)

const (
	defaultSampleRate      = 44100
	defaultAudioFormat     = "wav"
	defaultChunksPerSecond = 10
)

var audioMagics = []struct {
	prefix      []byte
	contentType string
}{
	{[]byte("RIFF"), "audio/wav"},
	{[]byte("ID3"), "audio/mpeg"},
	{[]byte{0xff, 0xfb}, "audio/mpeg"},
	{[]byte("OggS"), "audio/ogg"},
	{[]byte("fLaC"), "audio/flac"},
}

// AudioFile is a media file holding an encoded audio track.
type AudioFile struct {
	MediaFile
	service    codec.Service
	sampleRate int
}

// NewAudio creates an empty audio file.
func NewAudio() *AudioFile {
	f := new(AudioFile)
	f.name = defaultName
	f.contentType = defaultContentType
	f.inferExtra = f.inferAudio
	f.arrayLoader = func(ctx context.Context, array *tensor.Array) error {
		return f.FromArrayRate(ctx, array, 0, "")
	}

	return f
}

// WithService overrides the codec backend.
func (f *AudioFile) WithService(service codec.Service) *AudioFile {
	f.service = service
	return f
}

func (f *AudioFile) svc() (codec.Service, error) {
	if f.service != nil {
		return f.service, nil
	}

	return codec.Default()
}

func (f *AudioFile) inferAudio(ctx context.Context) error {
	data, err := f.container.ReadAll()
	if err != nil {
		return err
	}

	for _, magic := range audioMagics {
		if bytes.HasPrefix(data, magic.prefix) {
			f.contentType = magic.contentType
			break
		}
	}

	return nil
}

// FromArrayRate encodes samples into an audio container. A zero
// sampleRate means 44100 and an empty format means wav.
func (f *AudioFile) FromArrayRate(ctx context.Context, array *tensor.Array, sampleRate int, format string) error {
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
	}

	if format == "" {
		format = defaultAudioFormat
	}

	service, err := f.svc()
	if err != nil {
		return err
	}

	data, err := service.EncodeAudio(ctx, array, sampleRate, format)
	if err != nil {
		return EncodingError{Format: format, Cause: err}
	}

	f.reset()
	f.container.WriteAll(data)
	f.contentType = "audio/" + format
	f.name = defaultName + "." + format
	f.sampleRate = sampleRate
	return nil
}

// Array decodes the audio track to mono samples. A zero sampleRate
// keeps the native rate; the rate of the returned samples is reported
// back.
func (f *AudioFile) Array(ctx context.Context, sampleRate int) (*tensor.Array, int, error) {
	service, err := f.svc()
	if err != nil {
		return nil, 0, err
	}

	samples, rate, err := service.DecodeAudio(ctx, &f.container, sampleRate)
	if err != nil {
		return nil, 0, DecodeError{Kind: "audio", Cause: err}
	}

	f.sampleRate = rate
	return samples, rate, nil
}

// SampleRate returns the native sample rate, decoding the content on
// first use.
func (f *AudioFile) SampleRate(ctx context.Context) (int, error) {
	if f.sampleRate != 0 {
		return f.sampleRate, nil
	}

	_, rate, err := f.Array(ctx, 0)
	return rate, err
}

// Chunks decodes the audio and splits it into fixed-size sample
// chunks, chunksPerSecond chunks for every second of audio. A zero
// chunksPerSecond means 10. The last chunk keeps its short tail
// unpadded.
func (f *AudioFile) Chunks(ctx context.Context, chunksPerSecond float64) (*ChunkStream, error) {
	if chunksPerSecond == 0 {
		chunksPerSecond = defaultChunksPerSecond
	} else if chunksPerSecond < 0 {
		return nil, ConfigurationError{Reason: "chunksPerSecond must be positive"}
	}

	samples, rate, err := f.Array(ctx, 0)
	if err != nil {
		return nil, err
	}

	chunkSize := int(math.Ceil(float64(rate) / chunksPerSecond))
	total := samples.Size(0)
	chunks := make([]*tensor.Array, 0, (total+chunkSize-1)/chunkSize)
	for offset := 0; offset < total; offset += chunkSize {
		chunks = append(chunks, samples.Slice(offset, offset+chunkSize))
	}

	return &ChunkStream{chunks: chunks, sampleRate: rate}, nil
}

// ChunkStream is a pull-based iterator over decoded audio chunks.
type ChunkStream struct {
	chunks     []*tensor.Array
	sampleRate int
	pos        int
}

// Len returns the total number of chunks.
func (s *ChunkStream) Len() int {
	return len(s.chunks)
}

// SampleRate reports the rate the chunks were decoded at.
func (s *ChunkStream) SampleRate() int {
	return s.sampleRate
}

// Next returns the following chunk, or io.EOF after the last one.
func (s *ChunkStream) Next() (*tensor.Array, error) {
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}

	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}
