package detour

import "fmt"

// Status is a bit-flagged query/build result: one of the three high-level
// bits (Failure/Success/InProgress) plus detail bits that explain a failure
// or qualify a success (partial result, buffer too small, out of nodes).
// Query functions return a Status instead of a Go error so
// callers can test outcomes with bitwise checks without an allocation.
type Status uint32

const (
	Failure    Status = 1 << 31
	Success    Status = 1 << 30
	InProgress Status = 1 << 29

	// StatusDetailMask isolates the detail bits from the high-level ones.
	StatusDetailMask Status = 0x0ffffff

	WrongMagic     Status = 1 << 0 // input data doesn't start with the expected magic
	WrongVersion   Status = 1 << 1 // input data's version doesn't match this package's
	OutOfMemory    Status = 1 << 2 // the operation ran out of memory
	InvalidParam   Status = 1 << 3 // a parameter failed validation
	BufferTooSmall Status = 1 << 4 // the caller's result buffer couldn't hold every result
	OutOfNodes     Status = 1 << 5 // the search exhausted its node pool before finishing
	PartialResult  Status = 1 << 6 // the query didn't reach the target, but returns its best guess
)

// Error renders the status as a human-readable string, satisfying the error
// interface so a Status can be returned or wrapped as one where a caller
// needs that shape.
func (s Status) Error() string {
	if s&Failure != 0 {
		switch s & StatusDetailMask {
		case WrongMagic:
			return "wrong magic number"
		case WrongVersion:
			return "wrong version number"
		case OutOfMemory:
			return "out of memory"
		case InvalidParam:
			return "invalid parameter"
		case OutOfNodes:
			return "out of nodes"
		case PartialResult:
			return "partial result"
		default:
			return fmt.Sprintf("unspecified error 0x%x", uint32(s))
		}
	}
	if s == InProgress {
		return "in progress"
	}
	return "success"
}

// StatusSucceed reports whether status carries the Success bit.
func StatusSucceed(status Status) bool {
	return status&Success != 0
}

// StatusFailed reports whether status carries the Failure bit.
func StatusFailed(status Status) bool {
	return status&Failure != 0
}

// StatusInProgress reports whether status carries the InProgress bit.
func StatusInProgress(status Status) bool {
	return status&InProgress != 0
}

// StatusDetail reports whether the given detail bit is set on status.
func StatusDetail(status Status, detail uint32) bool {
	return uint32(status)&detail != 0
}
