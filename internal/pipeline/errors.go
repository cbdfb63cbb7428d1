package pipeline

import "github.com/rotisserie/eris"

// ErrNotFound means the address did not resolve to a geography, or no
// demographic data exists for the resolved geography. Maps to 404 at the edge.
var ErrNotFound = eris.New("no data found for address")

// ErrUnavailable means a mandatory upstream source was unreachable or errored.
// Maps to 503 at the edge.
var ErrUnavailable = eris.New("upstream data source unavailable")
