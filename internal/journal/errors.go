package journal

import "errors"

// ErrInvalidEntry is returned by Record for an entry without category or action.
var ErrInvalidEntry = errors.New("journal: invalid entry")
