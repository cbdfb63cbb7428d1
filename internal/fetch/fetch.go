// Package fetch downloads bulk Census files over HTTP and FTP, with
// retries and rate limiting suited to the bureau's mirrors.
package fetch

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Router dispatches downloads by URL scheme: ftp URLs go to the FTP
// fetcher, everything else to the retrying HTTP fetcher. Loaders that
// accept operator-supplied URLs (the gazetteer file ships on both the
// FTP mirror and the web server) depend on this instead of a concrete
// fetcher.
type Router struct {
	http *HTTPFetcher
	ftp  *FTPFetcher
}

// NewRouter creates a Router sharing the given HTTP options; the FTP
// side inherits the timeout.
func NewRouter(opts HTTPOptions) *Router {
	return &Router{
		http: NewHTTPFetcher(opts),
		ftp:  NewFTPFetcher(FTPOptions{Timeout: opts.Timeout}),
	}
}

func (r *Router) pick(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "parse url %q", rawURL)
	}
	if u.Scheme == "ftp" {
		return r.ftp, nil
	}
	return r.http, nil
}

// Download fetches the URL with the fetcher matching its scheme.
func (r *Router) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := r.pick(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, rawURL)
}

// DownloadToFile fetches the URL to a local file with the fetcher
// matching its scheme.
func (r *Router) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	f, err := r.pick(rawURL)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, rawURL, path)
}
