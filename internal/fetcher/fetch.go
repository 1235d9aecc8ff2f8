package fetcher

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// IsRemote reports whether the input names a downloadable URL rather than a
// local file.
func IsRemote(input string) bool {
	return strings.HasPrefix(input, "http://") ||
		strings.HasPrefix(input, "https://") ||
		strings.HasPrefix(input, "ftp://")
}

// Options configures FetchToFile.
type Options struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// FetchToFile downloads the URL into dir, dispatching on scheme, and returns
// the local path. The file keeps the remote base name so the loader can
// dispatch on its extension.
func FetchToFile(ctx context.Context, rawURL, dir string, opts Options) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: parse url")
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "panel-input"
	}
	dest := filepath.Join(dir, name)

	var n int64
	switch u.Scheme {
	case "http", "https":
		f := NewHTTPFetcher(HTTPOptions{
			UserAgent:         opts.UserAgent,
			Timeout:           opts.Timeout,
			RequestsPerSecond: opts.RequestsPerSecond,
		})
		n, err = f.DownloadToFile(ctx, rawURL, dest)
	case "ftp":
		f := NewFTPFetcher(FTPOptions{Timeout: opts.Timeout})
		n, err = f.DownloadToFile(ctx, rawURL, dest)
	default:
		return "", eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		return "", err
	}

	zap.L().Info("fetcher: downloaded input",
		zap.String("url", rawURL),
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return dest, nil
}
