package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/SocAIty/media-toolkit/codec"
	"github.com/SocAIty/media-toolkit/codec/native"
	"github.com/SocAIty/media-toolkit/tensor"
	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	null "gopkg.in/guregu/null.v3"
)

const defaultFrameRate = 30.0

// VideoFile is a media file holding an encoded video, with streaming
// access to its frames and audio track.
type VideoFile struct {
	MediaFile
	service    codec.Service
	imageCodec codec.ImageCodec

	probed          bool
	frameCount      null.Int
	frameRate       null.Float
	width           null.Int
	height          null.Int
	duration        null.Float
	audioSampleRate null.Int
}

// NewVideo creates an empty video file.
func NewVideo() *VideoFile {
	f := &VideoFile{imageCodec: native.Codec{}}
	f.name = defaultName
	f.contentType = "video"
	f.inferExtra = f.invalidate
	return f
}

// WithService overrides the codec backend.
func (f *VideoFile) WithService(service codec.Service) *VideoFile {
	f.service = service
	return f
}

func (f *VideoFile) svc() (codec.Service, error) {
	if f.service != nil {
		return f.service, nil
	}

	return codec.Default()
}

// invalidate drops cached metadata after a content load.
func (f *VideoFile) invalidate(ctx context.Context) error {
	f.probed = false
	f.frameCount, f.width, f.height, f.audioSampleRate = null.Int{}, null.Int{}, null.Int{}, null.Int{}
	f.frameRate, f.duration = null.Float{}, null.Float{}
	return nil
}

// materialize writes the content to a temp file whose suffix carries
// the container format, since probing and demuxing tools work on
// paths. The caller removes the file through the returned cleanup.
func (f *VideoFile) materialize() (flu.File, func(), error) {
	ext := f.Extension()
	if ext == "" {
		return "", nil, ConfigurationError{
			Reason: "cannot determine video container format, set a content type or file name first",
		}
	}

	tmp := tempFile("." + ext)
	if _, err := flu.Copy(&f.container, tmp); err != nil {
		return "", nil, errors.Wrap(err, "materialize video")
	}

	return tmp, func() { _ = tmp.Remove() }, nil
}

func (f *VideoFile) ensureProbed(ctx context.Context) error {
	if f.probed {
		return nil
	}

	service, err := f.svc()
	if err != nil {
		return err
	}

	tmp, cleanup, err := f.materialize()
	if err != nil {
		return err
	}

	defer cleanup()
	probe, err := service.Probe(ctx, tmp)
	if err != nil {
		return errors.Wrap(err, "probe video")
	}

	f.width, f.height = probe.Width, probe.Height
	f.frameCount, f.frameRate = probe.FrameCount, probe.FrameRate
	f.duration, f.audioSampleRate = probe.Duration, probe.SampleRate

	// container metadata is often incomplete or lies about the frame
	// rate, so re-derive the numbers from an actual decode pass
	if !f.frameCount.Valid || f.frameCount.Int64 == 1 || !f.frameRate.Valid || f.frameRate.Float64 <= 1 {
		if err := f.recount(ctx, service, tmp); err != nil {
			logrus.WithField("name", f.name).Warnf("frame recount failed: %s", err)
		}
	}

	f.probed = true
	return nil
}

func (f *VideoFile) recount(ctx context.Context, service codec.Service, path flu.File) error {
	reader, err := service.OpenFrameReader(ctx, path)
	if err != nil {
		return err
	}

	defer func() { _ = reader.Close() }()
	count := 0
	for {
		if _, err := reader.Read(); err != nil {
			break
		}

		count++
	}

	if count > 0 {
		f.frameCount = null.IntFrom(int64(count))
	}

	if rate := reader.FrameRate(); rate > 1 {
		f.frameRate = null.FloatFrom(rate)
	}

	if f.frameCount.Valid && f.frameRate.Valid && f.frameRate.Float64 > 0 {
		f.duration = null.FloatFrom(float64(f.frameCount.Int64) / f.frameRate.Float64)
	}

	return nil
}

// FrameCount returns the number of frames.
func (f *VideoFile) FrameCount(ctx context.Context) (int64, error) {
	err := f.ensureProbed(ctx)
	return f.frameCount.ValueOrZero(), err
}

// Len is an alias for FrameCount.
func (f *VideoFile) Len(ctx context.Context) (int64, error) {
	return f.FrameCount(ctx)
}

// FrameRate returns the frames per second.
func (f *VideoFile) FrameRate(ctx context.Context) (float64, error) {
	err := f.ensureProbed(ctx)
	return f.frameRate.ValueOrZero(), err
}

// Dimensions returns the frame width and height in pixels.
func (f *VideoFile) Dimensions(ctx context.Context) (width, height int64, err error) {
	err = f.ensureProbed(ctx)
	return f.width.ValueOrZero(), f.height.ValueOrZero(), err
}

// Duration returns the video duration in seconds.
func (f *VideoFile) Duration(ctx context.Context) (float64, error) {
	err := f.ensureProbed(ctx)
	return f.duration.ValueOrZero(), err
}

// AudioSampleRate returns the audio track sample rate, or 0 when the
// video carries no audio.
func (f *VideoFile) AudioSampleRate(ctx context.Context) (int64, error) {
	err := f.ensureProbed(ctx)
	return f.audioSampleRate.ValueOrZero(), err
}

// Stream opens a pull-based demux session over the video. With
// includeAudio set, every frame carries the audio samples of its
// display interval; a video without a decodable audio track degrades
// to frames only. The caller must Close the stream.
func (f *VideoFile) Stream(ctx context.Context, includeAudio bool) (*FrameStream, error) {
	if err := f.ensureProbed(ctx); err != nil {
		return nil, err
	}

	service, err := f.svc()
	if err != nil {
		return nil, err
	}

	tmp, _, err := f.materialize()
	if err != nil {
		return nil, err
	}

	reader, err := service.OpenFrameReader(ctx, tmp)
	if err != nil {
		_ = tmp.Remove()
		return nil, errors.Wrap(err, "open frame reader")
	}

	frameRate := reader.FrameRate()
	if frameRate <= 0 {
		frameRate = f.frameRate.ValueOrZero()
	}
	if frameRate <= 0 {
		frameRate = defaultFrameRate
	}

	stream := &FrameStream{
		reader:    reader,
		temp:      tmp,
		video:     f,
		frameRate: frameRate,
	}

	if includeAudio {
		samples, sampleRate, err := service.DecodeAudio(ctx, &f.container, 0)
		if err != nil {
			logrus.WithField("name", f.name).Warnf("no decodable audio track: %s", err)
		} else if samples.Len() > 0 {
			stream.samples = samples
			stream.sampleRate = sampleRate
		}
	}

	return stream, nil
}

// Images decodes the whole video into frame arrays.
func (f *VideoFile) Images(ctx context.Context) ([]*tensor.Array, error) {
	stream, err := f.Stream(ctx, false)
	if err != nil {
		return nil, err
	}

	defer func() { _ = stream.Close() }()
	var images []*tensor.Array
	for {
		frame, err := stream.Next()
		if err == io.EOF {
			return images, nil
		} else if err != nil {
			return nil, err
		}

		images = append(images, frame.Image)
	}
}

// FromImages assembles a video from an image source at the given frame
// rate. Unreadable images are skipped with a warning. A non-nil audio
// value, in any form FromAny accepts plus *AudioFile and sample
// arrays, is muxed in as the audio track.
func (f *VideoFile) FromImages(ctx context.Context, images ImageSource, frameRate float64, audio any) error {
	if frameRate <= 0 {
		frameRate = defaultFrameRate
	}

	service, err := f.svc()
	if err != nil {
		return err
	}

	tmp := tempFile(".mp4")
	writer, err := service.OpenFrameWriter(ctx, tmp, frameRate)
	if err != nil {
		return err
	}

	count := 0
	var first *tensor.Array
	for {
		array, err := images.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			logrus.Warnf("skipping image: %s", err)
			continue
		}

		if err := writer.Write(array); err != nil {
			logrus.Warnf("skipping image: %s", err)
			continue
		}

		if first == nil {
			first = array
		}

		count++
	}

	closeErr := writer.Close()
	if count == 0 {
		_ = tmp.Remove()
		return ConfigurationError{Reason: "no readable images to assemble"}
	}

	if closeErr != nil {
		_ = tmp.Remove()
		return EncodingError{Format: "mp4", Cause: closeErr}
	}

	audioFile, err := f.resolveAudio(ctx, audio)
	if err != nil {
		_ = tmp.Remove()
		return err
	}

	final := tmp
	if audioFile != nil {
		muxed, err := f.mux(ctx, service, tmp, audioFile)
		_ = tmp.Remove()
		if err != nil {
			return err
		}

		final = muxed
	}

	if err := f.adoptResult(final); err != nil {
		return err
	}

	f.probed = true
	f.frameCount = null.IntFrom(int64(count))
	f.frameRate = null.FloatFrom(frameRate)
	f.duration = null.FloatFrom(float64(count) / frameRate)
	if first != nil && first.Rank() >= 2 {
		f.height = null.IntFrom(int64(first.Shape[0]))
		f.width = null.IntFrom(int64(first.Shape[1]))
	}

	if audioFile != nil && audioFile.sampleRate != 0 {
		f.audioSampleRate = null.IntFrom(int64(audioFile.sampleRate))
	}

	return nil
}

// FromDirectory assembles a video from the images of a directory,
// ordered by modification time. A nil audio value picks up the first
// wav or mp3 file of the directory as the audio track; any non-nil
// value overrides it and is resolved like in FromImages.
func (f *VideoFile) FromDirectory(ctx context.Context, dir flu.File, frameRate float64, audio any) error {
	entries, err := os.ReadDir(dir.String())
	if err != nil {
		return errors.Wrapf(err, "read %s", dir)
	}

	type timedPath struct {
		path    flu.File
		modTime time.Time
	}

	var images []timedPath
	var dirAudio flu.File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		path := dir.Join(entry.Name())
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg":
			images = append(images, timedPath{path: path, modTime: info.ModTime()})
		case ".wav", ".mp3":
			if dirAudio == "" {
				dirAudio = path
			}
		}
	}

	if len(images) == 0 {
		return ConfigurationError{Reason: "no images found in " + dir.String()}
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].modTime.Before(images[j].modTime)
	})

	paths := make([]flu.File, len(images))
	for i, image := range images {
		paths[i] = image.path
	}

	if audio == nil && dirAudio != "" {
		audio = dirAudio
	}

	return f.FromImages(ctx, &ImagePaths{Paths: paths, Codec: f.imageCodec}, frameRate, audio)
}

// FromStream assembles a video from an audio/video item stream. Audio
// is optional per item: when at least one chunk arrives, missing
// chunks are substituted with silence so that frames and audio stay
// aligned.
func (f *VideoFile) FromStream(ctx context.Context, source FrameSource) error {
	frameRate := source.FrameRate()
	if frameRate <= 0 {
		frameRate = defaultFrameRate
	}

	service, err := f.svc()
	if err != nil {
		return err
	}

	tmp := tempFile(".mp4")
	writer, err := service.OpenFrameWriter(ctx, tmp, frameRate)
	if err != nil {
		return err
	}

	var chunks []*tensor.Array
	var first *tensor.Array
	haveAudio := false
	chunkSize := 0
	count := 0
	for {
		item, err := source.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			_ = writer.Close()
			_ = tmp.Remove()
			return err
		}

		if item == nil || item.Frame == nil {
			logrus.Warn("skipping empty stream item")
			continue
		}

		if err := writer.Write(item.Frame); err != nil {
			_ = writer.Close()
			_ = tmp.Remove()
			return err
		}

		if first == nil {
			first = item.Frame
		}

		count++
		if item.Chunk != nil && item.Chunk.Len() > 0 {
			haveAudio = true
			if chunkSize == 0 {
				// the first chunk fixes the per-frame sample count,
				// later chunks are padded or cut to it
				chunkSize = item.Chunk.Size(0)
			}
		}

		chunks = append(chunks, item.Chunk)
	}

	closeErr := writer.Close()
	if count == 0 {
		_ = tmp.Remove()
		return ConfigurationError{Reason: "stream produced no frames"}
	}

	if closeErr != nil {
		_ = tmp.Remove()
		return EncodingError{Format: "mp4", Cause: closeErr}
	}

	final := tmp
	sampleRate := 0
	if haveAudio {
		normalized := make([]*tensor.Array, len(chunks))
		for i, chunk := range chunks {
			if chunk == nil || chunk.Len() == 0 {
				logrus.Warn("missing audio chunk, substituting silence")
				chunk = tensor.Zeros(chunkSize)
			}

			normalized[i] = chunk.PadTo(chunkSize)
		}

		sampleRate = source.SampleRate()
		if sampleRate == 0 {
			sampleRate = int(float64(chunkSize) * frameRate)
		}

		audio := f.newAudio()
		if err := audio.FromArrayRate(ctx, tensor.Concat(normalized...), sampleRate, "wav"); err != nil {
			_ = tmp.Remove()
			return err
		}

		muxed, err := f.mux(ctx, service, tmp, audio)
		_ = tmp.Remove()
		if err != nil {
			return err
		}

		final = muxed
	}

	if err := f.adoptResult(final); err != nil {
		return err
	}

	f.probed = true
	f.frameCount = null.IntFrom(int64(count))
	f.frameRate = null.FloatFrom(frameRate)
	f.duration = null.FloatFrom(float64(count) / frameRate)
	if first != nil && first.Rank() >= 2 {
		f.height = null.IntFrom(int64(first.Shape[0]))
		f.width = null.IntFrom(int64(first.Shape[1]))
	}

	if sampleRate != 0 {
		f.audioSampleRate = null.IntFrom(int64(sampleRate))
	}

	return nil
}

// AddAudio replaces the audio track. The audio value may be anything
// FromAny accepts plus *AudioFile and sample arrays.
func (f *VideoFile) AddAudio(ctx context.Context, audio any) error {
	audioFile, err := f.resolveAudio(ctx, audio)
	if err != nil {
		return err
	}

	if audioFile == nil {
		return ConfigurationError{Reason: "no audio given"}
	}

	service, err := f.svc()
	if err != nil {
		return err
	}

	tmp, cleanup, err := f.materialize()
	if err != nil {
		return err
	}

	defer cleanup()
	muxed, err := f.mux(ctx, service, tmp, audioFile)
	if err != nil {
		return err
	}

	name, contentType := f.name, f.contentType
	if err := f.adoptResult(muxed); err != nil {
		return err
	}

	f.name, f.contentType = name, contentType
	if audioFile.sampleRate != 0 {
		f.audioSampleRate = null.IntFrom(int64(audioFile.sampleRate))
	}

	return nil
}

// ExtractAudio returns the audio track as a standalone audio file,
// encoded in the requested format ("mp3" by default).
func (f *VideoFile) ExtractAudio(ctx context.Context, format string) (*AudioFile, error) {
	if format == "" {
		format = "mp3"
	}

	service, err := f.svc()
	if err != nil {
		return nil, err
	}

	tmp, cleanup, err := f.materialize()
	if err != nil {
		return nil, err
	}

	defer cleanup()
	data, err := service.ExtractAudio(ctx, tmp, format)
	if err != nil {
		return nil, errors.Wrap(err, "extract audio")
	}

	audio := f.newAudio()
	if err := audio.FromBytes(ctx, data); err != nil {
		return nil, err
	}

	audio.applyName(defaultName + "." + format)
	return audio, nil
}

func (f *VideoFile) newAudio() *AudioFile {
	audio := NewAudio()
	if f.service != nil {
		audio.WithService(f.service)
	}

	return audio
}

func (f *VideoFile) resolveAudio(ctx context.Context, value any) (*AudioFile, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *AudioFile:
		return v, nil
	case *tensor.Array:
		// sample arrays carry no rate of their own, so the target rate
		// comes from this video's audio track when it has one
		rate := f.audioSampleRate.ValueOrZero()
		if rate == 0 && !f.container.Empty() {
			if probed, err := f.AudioSampleRate(ctx); err != nil {
				logrus.WithField("name", f.name).Warnf("cannot establish audio sample rate: %s", err)
			} else {
				rate = probed
			}
		}

		audio := f.newAudio()
		if err := audio.FromArrayRate(ctx, v, int(rate), ""); err != nil {
			return nil, err
		}

		return audio, nil
	default:
		audio := f.newAudio()
		if err := audio.FromAny(ctx, value); err != nil {
			return nil, err
		}

		return audio, nil
	}
}

// mux renders the audio file to a temp path and combines it with the
// video at videoPath into a new temp file owned by the caller.
func (f *VideoFile) mux(ctx context.Context, service codec.Service, videoPath flu.File, audio *AudioFile) (flu.File, error) {
	suffix := ".wav"
	if ext := audio.Extension(); ext != "" {
		suffix = "." + ext
	}

	audioPath := tempFile(suffix)
	if _, err := audio.Save(audioPath); err != nil {
		return "", err
	}

	defer func() { _ = audioPath.Remove() }()
	muxed, err := service.MuxAudioVideo(ctx, videoPath, audioPath)
	if err != nil {
		return "", errors.Wrap(err, "mux audio")
	}

	return muxed, nil
}

// adoptResult loads an assembled temp file into the container and
// removes it.
func (f *VideoFile) adoptResult(path flu.File) error {
	defer func() { _ = path.Remove() }()
	f.reset()
	if _, err := flu.Copy(path, &f.container); err != nil {
		return errors.Wrap(err, "load assembled video")
	}

	f.name = defaultName + filepath.Ext(path.String())
	f.contentType = "video/mp4"
	return nil
}
