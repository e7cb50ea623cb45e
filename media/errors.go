package media

import (
	"fmt"

	"github.com/SocAIty/media-toolkit/codec"
	"golang.org/x/exp/utf8string"
)

// MissingDependencyError reports that an operation needs a codec
// backend which is not installed.
type MissingDependencyError = codec.MissingDependencyError

// NotFoundError reports that a path or URL did not resolve to content.
type NotFoundError struct {
	Target string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("no content found at %q", e.Target)
}

// DecodeError reports that content could not be decoded as the
// expected kind of media.
type DecodeError struct {
	Kind  string
	Cause error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("cannot decode content as %s: %s", e.Kind, e.Cause)
}

func (e DecodeError) Unwrap() error {
	return e.Cause
}

// EncodingError reports that an array could not be encoded to the
// requested format.
type EncodingError struct {
	Format string
	Cause  error
}

func (e EncodingError) Error() string {
	return fmt.Sprintf("cannot encode to %s: %s", e.Format, e.Cause)
}

func (e EncodingError) Unwrap() error {
	return e.Cause
}

// ConfigurationError reports that an operation cannot proceed because
// required metadata is missing or contradictory.
type ConfigurationError struct {
	Reason string
}

func (e ConfigurationError) Error() string {
	return e.Reason
}

// UnsupportedInputError reports that a value passed to FromAny matched
// none of the supported input forms.
type UnsupportedInputError struct {
	Value any
}

func (e UnsupportedInputError) Error() string {
	return fmt.Sprintf("unsupported input %T (%s)", e.Value, preview(e.Value))
}

const previewRunes = 50

func preview(value any) string {
	str := fmt.Sprintf("%v", value)
	text := utf8string.NewString(str)
	if text.RuneCount() <= previewRunes {
		return str
	}

	return text.Slice(0, previewRunes) + "..."
}
