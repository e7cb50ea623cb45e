// Package mediatoolkit creates media containers from arbitrary input
// forms. It wires the available codec backends and dispatches to the
// matching specialization, so that callers can turn paths, handles,
// bytes, base64 text, URLs, arrays, uploads and wire dictionaries
// into usable files with one call.
package mediatoolkit

import (
	"context"
	"strings"
	"sync"

	"github.com/SocAIty/media-toolkit/codec/ffmpeg"
	"github.com/SocAIty/media-toolkit/media"
)

// File is any media container.
type File interface {
	AsMedia() *media.MediaFile
}

var registerOnce sync.Once

// registerBackends wires the codec backends exactly once. Backends are
// memoized, so an unavailable ffmpeg costs one PATH lookup in total.
func registerBackends() {
	registerOnce.Do(ffmpeg.Register)
}

// AsMedia loads any supported input into a general-purpose file.
func AsMedia(ctx context.Context, value any) (*media.MediaFile, error) {
	registerBackends()
	f := media.NewFile()
	if err := f.FromAny(ctx, value); err != nil {
		return nil, err
	}

	return f, nil
}

// AsImage loads any supported input into an image file.
func AsImage(ctx context.Context, value any) (*media.ImageFile, error) {
	registerBackends()
	f := media.NewImage()
	if err := f.FromAny(ctx, value); err != nil {
		return nil, err
	}

	return f, nil
}

// AsAudio loads any supported input into an audio file.
func AsAudio(ctx context.Context, value any) (*media.AudioFile, error) {
	registerBackends()
	f := media.NewAudio()
	if err := f.FromAny(ctx, value); err != nil {
		return nil, err
	}

	return f, nil
}

// AsVideo loads any supported input into a video file.
func AsVideo(ctx context.Context, value any) (*media.VideoFile, error) {
	registerBackends()
	f := media.NewVideo()
	if err := f.FromAny(ctx, value); err != nil {
		return nil, err
	}

	return f, nil
}

// FromDict loads a wire dictionary into the specialization matching
// its content type.
func FromDict(ctx context.Context, dict *media.Dict) (File, error) {
	registerBackends()
	var f File
	switch {
	case strings.Contains(dict.ContentType, "image"):
		f = media.NewImage()
	case strings.Contains(dict.ContentType, "audio"):
		f = media.NewAudio()
	case strings.Contains(dict.ContentType, "video"):
		f = media.NewVideo()
	default:
		f = media.NewFile()
	}

	if err := f.AsMedia().FromDict(ctx, dict); err != nil {
		return nil, err
	}

	return f, nil
}
