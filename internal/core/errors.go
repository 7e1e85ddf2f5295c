package core

import "errors"

// Sentinel errors callers branch on with errors.Is. Services wrap these with
// contextual detail via fmt.Errorf("…: %w", …); anything not matching one of
// them is an infrastructure failure and the whole operation has rolled back.
var (
	// ErrNotFound covers missing locations, items, batches, periods, NCRs.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks caller errors: negative quantities or prices,
	// non-positive received quantity, empty batches. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoOpenPeriod means no period covers the posting date.
	ErrNoOpenPeriod = errors.New("no period covers posting date")

	// ErrNoPeriodPrice means the period has no locked price for the item, so
	// variance cannot be determined. Never silently defaulted.
	ErrNoPeriodPrice = errors.New("no period price configured")

	// ErrPeriodLocked rejects price edits on a LOCKED period.
	ErrPeriodLocked = errors.New("period is locked")

	// ErrDuplicateReference rejects reposting a batch reference that already
	// committed. The caller's retry must reuse the reference to stay
	// idempotent; a duplicate means the earlier attempt succeeded.
	ErrDuplicateReference = errors.New("duplicate batch reference")

	// ErrInsufficientStock rejects issues and transfers that would drive a
	// position negative.
	ErrInsufficientStock = errors.New("insufficient stock")
)
