package media

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/SocAIty/media-toolkit/codec/native"
	"github.com/SocAIty/media-toolkit/tensor"
	"github.com/jfk9w-go/flu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	null "gopkg.in/guregu/null.v3"
)

func encodePixels(t *testing.T, pixels *tensor.Array) []byte {
	t.Helper()
	encoded, err := native.Codec{}.EncodeImage(pixels, "png")
	require.NoError(t, err)
	return encoded
}

// touchApart spaces out file modification times so that ordering
// by mtime is deterministic.
func touchApart(t *testing.T) {
	t.Helper()
	time.Sleep(10 * time.Millisecond)
}

func testVideoFile(t *testing.T, service *fakeService) *VideoFile {
	t.Helper()
	path := flu.File(t.TempDir()).Join("clip.mp4")
	require.NoError(t, os.WriteFile(path.String(), []byte("fake video"), 0644))

	f := NewVideo().WithService(service)
	require.NoError(t, f.FromFile(context.Background(), path))
	return f
}

func TestVideoFile_ProbeWithRecount(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()
	service.frames = []*tensor.Array{testFrame(3, 4, 1), testFrame(3, 4, 2), testFrame(3, 4, 3)}

	f := testVideoFile(t, service)
	count, err := f.FrameCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	rate, err := f.FrameRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10.0, rate)

	width, height, err := f.Dimensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), width)
	assert.Equal(t, int64(3), height)

	duration, err := f.Duration(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, duration, 1e-9)

	// metadata is cached, the file is probed once
	_, err = f.Len(ctx)
	require.NoError(t, err)
	assert.Len(t, service.probedPaths, 1)

	// the temp copy used for probing is removed
	exists, err := service.probedPaths[0].Exists()
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestVideoFile_ProbeRecountsSingleFrameCount(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()
	service.frames = []*tensor.Array{testFrame(3, 4, 1), testFrame(3, 4, 2), testFrame(3, 4, 3)}
	service.probe.FrameCount = null.IntFrom(1)

	f := testVideoFile(t, service)
	count, err := f.FrameCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Len(t, service.readerPaths, 1)
}

func TestVideoFile_ProbeTrustsCompleteMetadata(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()
	service.probe.FrameCount = null.IntFrom(42)

	f := testVideoFile(t, service)
	count, err := f.FrameCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)

	// no decode pass happened
	assert.Empty(t, service.readerPaths)
}

func TestVideoFile_MaterializeNeedsFormat(t *testing.T) {
	ctx := context.Background()
	f := NewVideo().WithService(newFakeService())
	require.NoError(t, f.FromBytes(ctx, []byte("opaque")))

	_, err := f.FrameCount(ctx)
	assert.ErrorAs(t, err, new(ConfigurationError))
}

func TestVideoFile_StreamWithAudio(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()
	service.frames = []*tensor.Array{testFrame(3, 4, 1), testFrame(3, 4, 2), testFrame(3, 4, 3)}
	service.samples = tensor.New(25)
	service.sampleRate = 100
	service.probe.FrameCount = null.IntFrom(3)
	service.probe.SampleRate = null.IntFrom(100)

	f := testVideoFile(t, service)
	stream, err := f.Stream(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 10.0, stream.FrameRate())
	assert.Equal(t, 100, stream.SampleRate())

	var frames []*Frame
	for {
		frame, err := stream.Next()
		if err == io.EOF {
			break
		}

		require.NoError(t, err)
		frames = append(frames, frame)
	}

	require.Len(t, frames, 3)
	for i, frame := range frames {
		assert.Equal(t, []int{3, 4, 3}, frame.Image.Shape, "frame %d", i)
		// 100 Hz at 10 fps puts exactly 10 samples on every frame,
		// the short last interval is zero-padded
		assert.Equal(t, 10, frame.Audio.Size(0), "frame %d", i)
	}

	temp := service.readerPaths[len(service.readerPaths)-1]
	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	exists, err := temp.Exists()
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 0, service.openReaders)

	count, err := f.FrameCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestVideoFile_StreamAudioKeepsPace(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()
	service.frameRate = 30

	// 300 frames at 30 fps last exactly as long as 1000 samples at
	// 100 Hz, so no frame may come up with silent audio
	service.frames = make([]*tensor.Array, 300)
	for i := range service.frames {
		service.frames[i] = testFrame(2, 2, 1)
	}

	service.samples = tensor.New(1000)
	for i := range service.samples.Data {
		service.samples.Data[i] = 1
	}

	service.sampleRate = 100
	service.probe.FrameCount = null.IntFrom(300)
	service.probe.FrameRate = null.FloatFrom(30)
	service.probe.SampleRate = null.IntFrom(100)

	f := testVideoFile(t, service)
	stream, err := f.Stream(ctx, true)
	require.NoError(t, err)
	defer stream.Close()

	count, silent := 0, 0
	for {
		frame, err := stream.Next()
		if err == io.EOF {
			break
		}

		require.NoError(t, err)
		count++
		require.NotNil(t, frame.Audio)
		assert.Equal(t, 3, frame.Audio.Size(0))

		loud := false
		for _, v := range frame.Audio.Data {
			if v != 0 {
				loud = true
				break
			}
		}

		if !loud {
			silent++
		}
	}

	assert.Equal(t, 300, count)
	assert.Equal(t, 0, silent)
}

func TestVideoFile_StreamEarlyClose(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()
	service.frames = []*tensor.Array{
		testFrame(3, 4, 1), testFrame(3, 4, 2), testFrame(3, 4, 3),
		testFrame(3, 4, 4), testFrame(3, 4, 5),
	}
	service.probe.FrameCount = null.IntFrom(5)

	f := testVideoFile(t, service)
	stream, err := f.Stream(ctx, false)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := stream.Next()
		require.NoError(t, err)
	}

	temp := service.readerPaths[len(service.readerPaths)-1]
	require.NoError(t, stream.Close())

	// abandoning the stream still releases the decode session and
	// removes the temp file
	exists, err := temp.Exists()
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 0, service.openReaders)

	count, err := f.FrameCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestVideoFile_StreamDegradesWithoutAudio(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()
	service.frames = []*tensor.Array{testFrame(3, 4, 1)}
	service.probe.FrameCount = null.IntFrom(1)

	f := testVideoFile(t, service)
	stream, err := f.Stream(ctx, true)
	require.NoError(t, err)
	defer stream.Close()

	frame, err := stream.Next()
	require.NoError(t, err)
	assert.Nil(t, frame.Audio)
	assert.Equal(t, 0, stream.SampleRate())
}

func TestVideoFile_Images(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()
	service.frames = []*tensor.Array{testFrame(3, 4, 1), testFrame(3, 4, 2)}
	service.probe.FrameCount = null.IntFrom(2)

	f := testVideoFile(t, service)
	images, err := f.Images(ctx)
	require.NoError(t, err)
	assert.Len(t, images, 2)
	assert.Equal(t, 0, service.openReaders)
}

func TestVideoFile_FromImages(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()

	source := &ImageArrays{Arrays: []*tensor.Array{
		testFrame(6, 8, 1),
		testFrame(6, 8, 2),
		testFrame(6, 8, 3),
		testFrame(6, 8, 4),
	}}

	f := NewVideo().WithService(service)
	require.NoError(t, f.FromImages(ctx, source, 2, nil))
	assert.Len(t, service.writtenFrames, 4)
	assert.Equal(t, 0, service.muxCalls)

	data, err := f.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("VIDEO"), data)
	assert.Equal(t, "file.mp4", f.Name())

	count, err := f.FrameCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	rate, err := f.FrameRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, rate)

	width, height, err := f.Dimensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), width)
	assert.Equal(t, int64(6), height)

	duration, err := f.Duration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, duration)

	// metadata came from assembly, no probe needed
	assert.Empty(t, service.probedPaths)
}

func TestVideoFile_FromImagesSkipsBadFrames(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()

	source := &ImageArrays{Arrays: []*tensor.Array{
		testFrame(6, 8, 1),
		tensor.New(5), // not a frame, the writer rejects it
		testFrame(6, 8, 2),
	}}

	f := NewVideo().WithService(service)
	require.NoError(t, f.FromImages(ctx, source, 10, nil))

	count, err := f.FrameCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestVideoFile_FromImagesEmpty(t *testing.T) {
	ctx := context.Background()
	f := NewVideo().WithService(newFakeService())
	err := f.FromImages(ctx, &ImageArrays{}, 10, nil)
	assert.ErrorAs(t, err, new(ConfigurationError))
}

func TestVideoFile_FromImagesWithAudio(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()

	audio := NewAudio().WithService(service)
	require.NoError(t, audio.FromArrayRate(ctx, tensor.New(300), 16000, "wav"))

	source := &ImageArrays{Arrays: []*tensor.Array{testFrame(6, 8, 1)}}
	f := NewVideo().WithService(service)
	require.NoError(t, f.FromImages(ctx, source, 10, audio))
	assert.Equal(t, 1, service.muxCalls)

	data, err := f.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("MUXED"), data)

	sampleRate, err := f.AudioSampleRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(16000), sampleRate)
}

func TestVideoFile_FromDirectory(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()
	dir := flu.File(t.TempDir())

	// written in reverse name order to prove ordering is by
	// modification time, with pixel values marking each file
	for i, name := range []string{"c.png", "b.png", "a.png"} {
		encoded := encodePixels(t, testFrame(4, 4, float64(i+1)))
		require.NoError(t, os.WriteFile(dir.Join(name).String(), encoded, 0644))
		touchApart(t)
	}

	require.NoError(t, os.WriteFile(dir.Join("noise.wav").String(), []byte("RIFF dir audio"), 0644))

	f := NewVideo().WithService(service)
	require.NoError(t, f.FromDirectory(ctx, dir, 10, nil))
	require.Len(t, service.writtenFrames, 3)
	for i, frame := range service.writtenFrames {
		assert.Equal(t, float64(i+1), frame.At(0, 0, 0), "frame %d", i)
	}

	// the directory wav was muxed in
	assert.Equal(t, 1, service.muxCalls)

	err := f.FromDirectory(ctx, flu.File(t.TempDir()), 10, nil)
	assert.ErrorAs(t, err, new(ConfigurationError))
}

func TestVideoFile_FromDirectoryAudioOverride(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()
	dir := flu.File(t.TempDir())

	encoded := encodePixels(t, testFrame(4, 4, 1))
	require.NoError(t, os.WriteFile(dir.Join("a.png").String(), encoded, 0644))
	require.NoError(t, os.WriteFile(dir.Join("noise.wav").String(), []byte("RIFF dir audio"), 0644))

	f := NewVideo().WithService(service)
	require.NoError(t, f.FromDirectory(ctx, dir, 10, tensor.New(50)))
	assert.Equal(t, 1, service.muxCalls)

	// the explicit array won over the directory wav
	require.NotNil(t, service.encodedAudio)
	assert.Equal(t, 50, service.encodedAudio.Len())
}

func TestVideoFile_FromStream(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()

	source := &StreamItems{
		Items: []*StreamItem{
			{Frame: testFrame(3, 4, 1), Chunk: tensor.New(20)},
			{Frame: testFrame(3, 4, 2)}, // missing chunk becomes silence
			{Frame: testFrame(3, 4, 3), Chunk: tensor.New(25)},
		},
		Rate:  5,
		Audio: 100,
	}

	f := NewVideo().WithService(service)
	require.NoError(t, f.FromStream(ctx, source))
	assert.Len(t, service.writtenFrames, 3)
	assert.Equal(t, 1, service.muxCalls)

	// all chunks are normalized to the first chunk size
	assert.Equal(t, 60, service.encodedAudio.Len())
	assert.Equal(t, 100, service.encodedRate)

	count, err := f.FrameCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	sampleRate, err := f.AudioSampleRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), sampleRate)
}

func TestVideoFile_FromStreamWithoutAudio(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()

	source := &StreamItems{
		Items: []*StreamItem{{Frame: testFrame(3, 4, 1)}},
		Rate:  5,
	}

	f := NewVideo().WithService(service)
	require.NoError(t, f.FromStream(ctx, source))
	assert.Equal(t, 0, service.muxCalls)

	data, err := f.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("VIDEO"), data)
}

func TestVideoFile_AddAudio(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()

	f := testVideoFile(t, service)
	require.NoError(t, f.AddAudio(ctx, tensor.New(100)))
	assert.Equal(t, 1, service.muxCalls)
	assert.Equal(t, "clip.mp4", f.Name())

	data, err := f.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("MUXED"), data)

	err = f.AddAudio(ctx, nil)
	assert.ErrorAs(t, err, new(ConfigurationError))
}

func TestVideoFile_AddAudioArrayUsesTrackRate(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()
	service.probe.FrameCount = null.IntFrom(1)
	service.probe.SampleRate = null.IntFrom(16000)

	f := testVideoFile(t, service)
	require.NoError(t, f.AddAudio(ctx, tensor.New(100)))
	assert.Equal(t, 16000, service.encodedRate)

	rate, err := f.AudioSampleRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(16000), rate)
}

func TestVideoFile_ExtractAudio(t *testing.T) {
	ctx := context.Background()
	service := newFakeService()

	f := testVideoFile(t, service)
	audio, err := f.ExtractAudio(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, service.extractCalls)
	assert.Equal(t, "file.mp3", audio.Name())

	data, err := audio.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF extracted mp3"), data)
}
