package catalog

import "errors"

var (
	// ErrNotFound indicates the requested title, season or episode doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable indicates the backing store failed a read or write.
	// The catalog is unchanged and the operation may be retried.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrEmptyTitle indicates a filename parsed to an empty title and was not indexed.
	ErrEmptyTitle = errors.New("empty title")
)
