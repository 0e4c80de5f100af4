package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrFeedUnreachable  = errors.New("feed unreachable")
	ErrFeedMalformed    = errors.New("feed malformed")
	ErrGeometryInvalid  = errors.New("geometry invalid")
	ErrPluginLoadFailed = errors.New("plugin load failed")
)

// FeedError reports a feed-level failure. It unwraps to both its kind
// sentinel and the underlying cause.
type FeedError struct {
	Feed string
	Kind error
	Err  error
}

func (e *FeedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s feed: %v", e.Feed, e.Kind)
	}
	return fmt.Sprintf("%s feed: %v: %v", e.Feed, e.Kind, e.Err)
}

func (e *FeedError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewFeedUnreachable wraps a transport failure for the named feed.
func NewFeedUnreachable(feed string, err error) error {
	return &FeedError{Feed: feed, Kind: ErrFeedUnreachable, Err: err}
}

// NewFeedMalformed wraps a collection-level decoding failure for the named feed.
func NewFeedMalformed(feed string, err error) error {
	return &FeedError{Feed: feed, Kind: ErrFeedMalformed, Err: err}
}
