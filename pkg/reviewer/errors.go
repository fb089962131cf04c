package reviewer

import (
	"errors"
	"fmt"
)

// Errors returned by Select. All of them abort the whole selection.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrMissingFileData  = errors.New("missing file data")
	ErrMissingBlameData = errors.New("missing blame range data")
	ErrDisabled         = errors.New("pull-review is disabled for this repository")

	ErrMaximumReviewersAssigned = errors.New("pull request has maximum reviewers assigned")
	ErrMinimumReviewersAssigned = errors.New("pull request has minimum reviewers assigned")
)

// Policy bounds reported by PolicySatisfiedError.
const (
	BoundMaximum = "maximum"
	BoundMinimum = "minimum"
)

// PolicySatisfiedError signals that the already assigned reviewers make selection
// unnecessary. It is a control signal, not a fault: callers should take no action.
type PolicySatisfiedError struct {
	Bound    string
	Assigned int
	Limit    int
}

func (e *PolicySatisfiedError) Error() string {
	return fmt.Sprintf("pull request has %s reviewers assigned (%d assigned, limit %d)", e.Bound, e.Assigned, e.Limit)
}

// Is matches ErrMaximumReviewersAssigned or ErrMinimumReviewersAssigned by bound.
func (e *PolicySatisfiedError) Is(target error) bool {
	switch target {
	case ErrMaximumReviewersAssigned:
		return e.Bound == BoundMaximum
	case ErrMinimumReviewersAssigned:
		return e.Bound == BoundMinimum
	default:
		return false
	}
}

// IsNoAction reports whether err means the caller has nothing to do.
func IsNoAction(err error) bool {
	var ps *PolicySatisfiedError
	return errors.As(err, &ps) || errors.Is(err, ErrDisabled)
}
