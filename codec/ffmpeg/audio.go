package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"strconv"

	"github.com/SocAIty/media-toolkit/tensor"
	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
)

// EncodeAudio encodes samples into the requested container format.
// Rank-1 arrays are mono, N×C arrays carry interleaved channels.
func (s *Service) EncodeAudio(ctx context.Context, array *tensor.Array, sampleRate int, format string) (flu.Bytes, error) {
	channels := 1
	if array.Rank() > 1 {
		channels = array.Shape[1]
	}

	out := s.tempFile("." + format)
	defer func() { _ = out.Remove() }()

	cmd := s.command(ctx, s.FFmpeg, "-y",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
		out.String())

	cmd.Stdin = bytes.NewReader(int16Bytes(array.Int16s()))
	if err := runCommand(cmd); err != nil {
		return nil, err
	}

	buf := new(flu.ByteBuffer)
	if _, err := flu.Copy(out, buf); err != nil {
		return nil, errors.Wrap(err, "read encoded audio")
	}

	return buf.Bytes(), nil
}

// DecodeAudio decodes the input to mono samples. A zero sampleRate
// keeps the native rate of the stream.
func (s *Service) DecodeAudio(ctx context.Context, in flu.Input, sampleRate int) (*tensor.Array, int, error) {
	tmp := s.tempFile("")
	defer func() { _ = tmp.Remove() }()

	if _, err := flu.Copy(in, tmp); err != nil {
		return nil, 0, errors.Wrap(err, "materialize input")
	}

	if sampleRate == 0 {
		probe, err := s.Probe(ctx, tmp)
		if err != nil {
			return nil, 0, err
		}

		sampleRate = int(probe.SampleRate.ValueOrZero())
		if sampleRate == 0 {
			sampleRate = 44100
		}
	}

	cmd := s.command(ctx, s.FFmpeg,
		"-i", tmp.String(),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"pipe:1")

	output, err := cmd.Output()
	if err != nil {
		return nil, 0, errors.Wrap(err, "decode audio")
	}

	return tensor.FromInt16s(bytesInt16(output)), sampleRate, nil
}

func int16Bytes(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}

	return out
}

func bytesInt16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}

	return out
}
