package media

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/SocAIty/media-toolkit/codec"
	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
)

// ConvertTo re-encodes the content into another container format and
// replaces it with the result, renaming the file and adjusting the
// content type to match.
func (f *MediaFile) ConvertTo(ctx context.Context, converter codec.Converter, format string) error {
	converted, err := converter.Convert(ctx, &f.container, format)
	if err != nil {
		return EncodingError{Format: format, Cause: err}
	}

	buf := new(flu.ByteBuffer)
	if _, err := flu.Copy(converted, buf); err != nil {
		return errors.Wrapf(err, "read %s output", converter)
	}

	f.container.Reset()
	f.container.WriteAll(buf.Bytes())
	f.name = strings.TrimSuffix(f.name, filepath.Ext(f.name)) + "." + format
	if major, _, ok := strings.Cut(f.contentType, "/"); ok {
		f.contentType = major + "/" + format
	}

	return f.commit(ctx)
}
