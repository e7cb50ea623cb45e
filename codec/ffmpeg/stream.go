package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/SocAIty/media-toolkit/codec"
	"github.com/SocAIty/media-toolkit/tensor"
	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
)

// OpenFrameReader starts a raw rgb24 decode of the video stream.
// The file is probed first to learn the frame geometry.
func (s *Service) OpenFrameReader(ctx context.Context, path flu.File) (codec.FrameReader, error) {
	probe, err := s.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	if !probe.Width.Valid || probe.Width.Int64 == 0 {
		return nil, errors.Errorf("no video stream in %s", path)
	}

	width, height := int(probe.Width.Int64), int(probe.Height.Int64)
	cmd := s.command(ctx, s.FFmpeg,
		"-i", path.String(),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "open stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "start ffmpeg")
	}

	return &frameReader{
		cmd:       cmd,
		stdout:    stdout,
		width:     width,
		height:    height,
		frameRate: probe.FrameRate.Float64,
	}, nil
}

type frameReader struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	width     int
	height    int
	frameRate float64
	closeOnce sync.Once
}

func (r *frameReader) FrameRate() float64 {
	return r.frameRate
}

func (r *frameReader) Read() (*tensor.Array, error) {
	buf := make([]byte, r.height*r.width*3)
	if _, err := io.ReadFull(r.stdout, buf); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}

		return nil, errors.Wrap(err, "read frame")
	}

	return tensor.FromBytes(buf, r.height, r.width, 3), nil
}

func (r *frameReader) Close() error {
	r.closeOnce.Do(func() {
		_ = r.stdout.Close()
		if r.cmd.Process != nil {
			_ = r.cmd.Process.Kill()
		}

		_ = r.cmd.Wait()
	})

	return nil
}

// OpenFrameWriter starts a raw rgb24 encode session into path. The
// subprocess starts lazily on the first frame, when the geometry
// becomes known.
func (s *Service) OpenFrameWriter(ctx context.Context, path flu.File, frameRate float64) (codec.FrameWriter, error) {
	if frameRate <= 0 {
		return nil, errors.Errorf("invalid frame rate %v", frameRate)
	}

	return &frameWriter{
		service:   s,
		ctx:       ctx,
		path:      path,
		frameRate: frameRate,
	}, nil
}

type frameWriter struct {
	service   *Service
	ctx       context.Context
	path      flu.File
	frameRate float64

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	width     int
	height    int
	closeOnce sync.Once
	closeErr  error
}

func (w *frameWriter) start(height, width int) error {
	cmd := w.service.command(w.ctx, w.service.FFmpeg, "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.FormatFloat(w.frameRate, 'f', -1, 64),
		"-i", "pipe:0",
		"-pix_fmt", "yuv420p",
		w.path.String())

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "open stdin pipe")
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "start ffmpeg")
	}

	w.cmd, w.stdin = cmd, stdin
	w.height, w.width = height, width
	return nil
}

func (w *frameWriter) Write(frame *tensor.Array) error {
	if frame.Rank() != 3 || frame.Shape[2] != 3 {
		return errors.Errorf("expected an H×W×3 frame, got shape %v", frame.Shape)
	}

	if w.cmd == nil {
		if err := w.start(frame.Shape[0], frame.Shape[1]); err != nil {
			return err
		}
	}

	if frame.Shape[0] != w.height || frame.Shape[1] != w.width {
		return errors.Errorf("frame size %dx%d does not match stream %dx%d",
			frame.Shape[1], frame.Shape[0], w.width, w.height)
	}

	if _, err := w.stdin.Write(frame.Bytes()); err != nil {
		return errors.Wrap(err, "write frame")
	}

	return nil
}

func (w *frameWriter) Close() error {
	w.closeOnce.Do(func() {
		if w.cmd == nil {
			w.closeErr = errors.New("no frames written")
			return
		}

		_ = w.stdin.Close()
		w.closeErr = errors.Wrap(w.cmd.Wait(), "finalize stream")
	})

	return w.closeErr
}
