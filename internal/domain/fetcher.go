package domain

import "context"

// Fetcher is the boundary between one external data source and the pipeline:
// produce the day's observations or fail. Implementations own their transport
// timeouts; the retry loop around Fetch only counts attempts and the delay
// between them.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Observation, error)
	// Source returns the tag stamped on every observation this fetcher yields.
	Source() Source
}
