package mediatoolkit

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/SocAIty/media-toolkit/media"
	"github.com/SocAIty/media-toolkit/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsMedia(t *testing.T) {
	ctx := context.Background()
	f, err := AsMedia(ctx, []byte("payload"))
	require.NoError(t, err)

	data, err := f.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	_, err = AsMedia(ctx, 3.14)
	assert.Error(t, err)
}

func TestAsImage(t *testing.T) {
	ctx := context.Background()
	pixels := tensor.New(4, 4, 3)
	for i := range pixels.Data {
		pixels.Data[i] = float64(i % 256)
	}

	f, err := AsImage(ctx, pixels)
	require.NoError(t, err)
	assert.Equal(t, "image/png", f.ContentType())

	decoded, err := f.Array(ctx)
	require.NoError(t, err)
	assert.True(t, pixels.Equal(decoded))
}

func TestFromDict(t *testing.T) {
	ctx := context.Background()
	content := base64.StdEncoding.EncodeToString([]byte("x"))

	for contentType, expected := range map[string]any{
		"image/png":       &media.ImageFile{},
		"audio/wav":       &media.AudioFile{},
		"video/mp4":       &media.VideoFile{},
		"application/pdf": &media.MediaFile{},
	} {
		f, err := FromDict(ctx, &media.Dict{ContentType: contentType, Content: content})
		require.NoError(t, err, contentType)
		assert.IsType(t, expected, f, contentType)
	}
}
