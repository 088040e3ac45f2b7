package presence

import (
	"errors"
	"time"
)

// DefaultCooldown is the minimum gap between two accepted scans for the same
// identity. Two rapid taps of the same badge inside this window count as one.
const DefaultCooldown = 30 * time.Second

// Sentinel errors shared by every scan variant. Handlers map these to JSON
// error payloads; nothing is retried automatically.
var (
	ErrUnknownTag       = errors.New("card not recognized")
	ErrTargetNotFound   = errors.New("scan target not found")
	ErrInactiveIdentity = errors.New("identity is deactivated")
	ErrDuplicateScan    = errors.New("please wait before scanning again")
	ErrBorrowLimit      = errors.New("borrowing limit reached")
	ErrNotRegistered    = errors.New("no confirmed registration for this event")
	ErrScanConflict     = errors.New("concurrent scan detected, please re-tap")
)

// Actions is the entry/exit pair for one scan domain.
type Actions struct {
	Entry string
	Exit  string
}

// The four instantiations of the toggle across the system.
var (
	GateActions        = Actions{Entry: "in", Exit: "out"}
	CirculationActions = Actions{Entry: "checkout", Exit: "return"}
	BoardingActions    = Actions{Entry: "board", Exit: "alight"}
	AttendanceActions  = Actions{Entry: "checkin", Exit: "checkout"}
)

// Decision is the outcome of evaluating a single scan.
type Decision struct {
	Action   string
	Entering bool
}

// Decide determines whether a scan at 'at' is an entry or an exit, given the
// most recent accepted event for the identity. hasLast is false when the
// identity has no log rows yet, in which case the scan is always an entry.
//
// A scan within cooldown of the previous event is rejected with
// ErrDuplicateScan and must cause no side effects at the caller.
func Decide(lastAction string, lastAt time.Time, hasLast bool, at time.Time, cooldown time.Duration, acts Actions) (Decision, error) {
	if hasLast && at.Sub(lastAt) < cooldown {
		return Decision{}, ErrDuplicateScan
	}
	if hasLast && lastAction == acts.Entry {
		return Decision{Action: acts.Exit, Entering: false}, nil
	}
	return Decision{Action: acts.Entry, Entering: true}, nil
}

// IsEntry reports whether action is the entry action of acts. The denormalized
// presence flag on an identity must always equal IsEntry(latest log action).
func IsEntry(action string, acts Actions) bool {
	return action == acts.Entry
}
