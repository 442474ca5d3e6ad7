package activity

import "errors"

// Domain errors for log pages and usage.
var (
	// ErrInvalidPage is returned for a negative page index.
	ErrInvalidPage = errors.New("activity: invalid page index")

	// ErrNoPrevious is returned by Previous on the first page.
	ErrNoPrevious = errors.New("activity: already on the first page")

	// ErrNoNext is returned by Next on the last page.
	ErrNoNext = errors.New("activity: already on the last page")

	// ErrFetchFailed wraps a failed page or usage fetch. The previously
	// fetched data is returned alongside it.
	ErrFetchFailed = errors.New("activity: fetch failed")
)
