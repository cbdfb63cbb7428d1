package geocode

import (
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// newTestLimiter returns a limiter that never blocks.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// newRewriteClient returns an HTTP client that redirects any request whose URL
// starts with targetPrefix to the test server. The geocoder talks to a fixed
// public endpoint, so tests swap the host at the transport layer.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			u := req.URL.String()
			if !strings.HasPrefix(u, targetPrefix) {
				return http.DefaultTransport.RoundTrip(req)
			}
			rewritten, err := req.URL.Parse(testServerURL + u[len(targetPrefix):])
			if err != nil {
				return nil, err
			}
			clone := req.Clone(req.Context())
			clone.URL = rewritten
			clone.Host = rewritten.Host
			return http.DefaultTransport.RoundTrip(clone)
		}),
	}
}
