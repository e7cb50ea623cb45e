// Package aconvert adapts the aconvert.com API as a remote format
// converter for containers which the local toolchain cannot handle.
package aconvert

import (
	"context"
	"time"

	"github.com/SocAIty/media-toolkit/codec"
	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"

	api "github.com/jfk9w-go/aconvert-api"
)

var defaultServerIDs = []int{3, 7, 9, 11, 13, 15, 17, 19, 21, 23, 25, 27, 29}

var _ codec.Converter = (*Converter)(nil)

type clientConfig struct {
	value api.Config
}

func (c clientConfig) AconvertConfig() api.Config {
	return c.value
}

// Converter converts media through aconvert.com.
type Converter struct {
	client *api.Client[clientConfig]
}

// NewConverter starts a converter with the given configuration,
// filling unset fields with usable defaults.
func NewConverter(ctx context.Context, config api.Config) (*Converter, error) {
	if len(config.ServerIDs) == 0 {
		config.ServerIDs = defaultServerIDs
	}

	if config.Timeout.Value == 0 {
		config.Timeout.Value = 5 * time.Minute
	}

	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}

	client := new(api.Client[clientConfig])
	if err := client.Standalone(ctx, config); err != nil {
		return nil, errors.Wrap(err, "start aconvert client")
	}

	return &Converter{client: client}, nil
}

func (c *Converter) String() string {
	return "aconvert"
}

// Convert uploads the input for conversion and returns the converted
// file as a URL input. Passing a flu.URL input skips the upload and
// converts the remote file directly.
func (c *Converter) Convert(ctx context.Context, in flu.Input, targetFormat string) (flu.Input, error) {
	resp, err := c.client.Convert(ctx, in, make(api.Options).TargetFormat(targetFormat))
	if err != nil {
		return nil, errors.Wrapf(err, "convert to %s", targetFormat)
	}

	return flu.URL(resp.URL()), nil
}
