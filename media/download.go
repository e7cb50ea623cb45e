package media

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/jfk9w-go/flu"
	"github.com/jfk9w-go/flu/backoff"
	"github.com/jfk9w-go/flu/httpf"
	"github.com/pkg/errors"
)

// Downloader fetches remote content over HTTP with retries.
// The zero value uses http.DefaultClient and 3 retries.
type Downloader struct {
	Client  httpf.Client
	Retries int
}

// Download writes the resource body to out and returns the file name
// advertised by the server, preferring the Content-Disposition header
// over the URL path.
func (d Downloader) Download(ctx context.Context, resource string, out flu.Output) (string, error) {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	retries := d.Retries
	if retries == 0 {
		retries = 3
	}

	var name string
	err := backoff.Retry{
		Retries: retries,
		Backoff: backoff.Const(time.Second),
		Body: func(ctx context.Context) error {
			return httpf.GET(resource).
				Exchange(ctx, client).
				CheckStatus(http.StatusOK).
				HandleFunc(func(resp *http.Response) error {
					name = attachmentName(resp, resource)
					return nil
				}).
				CopyBody(out).
				Error()
		},
	}.Do(ctx)

	if err != nil {
		var statusErr httpf.StatusCodeError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return "", NotFoundError{Target: resource}
		}

		return "", errors.Wrapf(err, "download %s", resource)
	}

	return name, nil
}

func attachmentName(resp *http.Response, resource string) string {
	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if filename := params["filename"]; filename != "" {
				return filename
			}
		}
	}

	if u, err := url.Parse(resource); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}

	return ""
}
