package sentinel

import "errors"

// Infrastructure facts returned by stores (optionally wrapped). Services
// translate them into domain errors; they never reach a transport unchanged.
//
//   - ErrNotFound: record does not exist
//   - ErrStale: a compare-and-swap lost because the stored version moved on
//   - ErrCorrupt: persisted bytes could not be decoded
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrUnavailable: backing service temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrStale       = errors.New("stale version")
	ErrCorrupt     = errors.New("corrupt record")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
