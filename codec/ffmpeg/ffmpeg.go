// Package ffmpeg implements the codec service interfaces by shelling
// out to the ffmpeg and ffprobe binaries.
package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/SocAIty/media-toolkit/codec"
	"github.com/gofrs/uuid"
	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	null "gopkg.in/guregu/null.v3"
)

// ServiceName is the registry name of this backend.
const ServiceName = "ffmpeg"

// Register makes the ffmpeg backend available to codec.Default and
// codec.Available. Safe to call more than once.
func Register() {
	codec.RegisterService(ServiceName, func() (codec.Service, error) {
		return NewService()
	})
}

// Service runs ffmpeg and ffprobe subprocesses.
type Service struct {
	FFmpeg  string
	FFprobe string
	TempDir string
}

// NewService resolves the ffmpeg and ffprobe binaries on PATH.
func NewService() (*Service, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg not found")
	}

	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, errors.Wrap(err, "ffprobe not found")
	}

	return &Service{FFmpeg: ffmpeg, FFprobe: ffprobe}, nil
}

func (s *Service) tempFile(suffix string) flu.File {
	dir := s.TempDir
	if dir == "" {
		dir = os.TempDir()
	}

	return flu.File(filepath.Join(dir, uuid.Must(uuid.NewV4()).String()+suffix))
}

func (s *Service) command(ctx context.Context, args ...string) *exec.Cmd {
	logrus.WithField("service", ServiceName).Debugf("run %s", strings.Join(args, " "))
	return exec.CommandContext(ctx, args[0], args[1:]...)
}

func runCommand(cmd *exec.Cmd) error {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%s: %s", filepath.Base(cmd.Path), tail(output))
	}

	return nil
}

func tail(output []byte) string {
	const limit = 512
	if len(output) > limit {
		output = output[len(output)-limit:]
	}

	return strings.TrimSpace(string(output))
}

type probeReport struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		NbFrames     string `json:"nb_frames"`
		AvgFrameRate string `json:"avg_frame_rate"`
		SampleRate   string `json:"sample_rate"`
	} `json:"streams"`
}

func (s *Service) Probe(ctx context.Context, path flu.File) (*codec.Probe, error) {
	cmd := s.command(ctx, s.FFprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path.String())

	output, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrap(err, "ffprobe")
	}

	var report probeReport
	if err := flu.DecodeFrom(flu.Bytes(output), flu.JSON(&report)); err != nil {
		return nil, errors.Wrap(err, "parse ffprobe report")
	}

	probe := new(codec.Probe)
	if name := report.Format.FormatName; name != "" {
		probe.FormatName = null.StringFrom(name)
	}

	if duration, err := strconv.ParseFloat(report.Format.Duration, 64); err == nil {
		probe.Duration = null.FloatFrom(duration)
	}

	for _, stream := range report.Streams {
		switch stream.CodecType {
		case "video":
			if stream.Width > 0 {
				probe.Width = null.IntFrom(int64(stream.Width))
				probe.Height = null.IntFrom(int64(stream.Height))
			}

			if frames, err := strconv.ParseInt(stream.NbFrames, 10, 64); err == nil {
				probe.FrameCount = null.IntFrom(frames)
			}

			if rate, ok := parseRatio(stream.AvgFrameRate); ok {
				probe.FrameRate = null.FloatFrom(rate)
			}

		case "audio":
			if rate, err := strconv.ParseInt(stream.SampleRate, 10, 64); err == nil {
				probe.SampleRate = null.IntFrom(rate)
			}
		}
	}

	return probe, nil
}

// parseRatio parses ffprobe rational values like "30000/1001".
func parseRatio(value string) (float64, bool) {
	parts := strings.SplitN(value, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, false
	}

	if len(parts) == 1 {
		return num, true
	}

	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0, false
	}

	return num / den, true
}

// MuxAudioVideo writes a new file combining the video track of
// videoPath with the audio track of audioPath. The video track is
// copied without re-encoding and the output is cut to the shorter
// of the two inputs.
func (s *Service) MuxAudioVideo(ctx context.Context, videoPath, audioPath flu.File) (flu.File, error) {
	out := s.tempFile(filepath.Ext(videoPath.String()))
	cmd := s.command(ctx, s.FFmpeg, "-y",
		"-i", videoPath.String(),
		"-i", audioPath.String(),
		"-map", "0:v", "-map", "1:a",
		"-c:v", "copy",
		"-shortest",
		out.String())

	if err := runCommand(cmd); err != nil {
		_ = out.Remove()
		return "", err
	}

	return out, nil
}

// ExtractAudio decodes the audio track of a video file and returns it
// encoded in the requested format.
func (s *Service) ExtractAudio(ctx context.Context, videoPath flu.File, format string) (flu.Bytes, error) {
	out := s.tempFile("." + format)
	defer func() { _ = out.Remove() }()

	cmd := s.command(ctx, s.FFmpeg, "-y",
		"-i", videoPath.String(),
		"-vn",
		out.String())

	if err := runCommand(cmd); err != nil {
		return nil, err
	}

	buf := new(flu.ByteBuffer)
	if _, err := flu.Copy(out, buf); err != nil {
		return nil, errors.Wrap(err, "read extracted audio")
	}

	return buf.Bytes(), nil
}
