package store

import "parking-status-backend/internal/model"

// IgnoreReason classifies why a delivery produced no state change.
type IgnoreReason string

const (
	// IgnoreInvalidToken: the payload was not a recognized occupancy literal.
	IgnoreInvalidToken IgnoreReason = "invalid_token"
	// IgnoreSpaceNotFound: the external label is not provisioned.
	IgnoreSpaceNotFound IgnoreReason = "space_not_found"
	// IgnoreNoChange: duplicate delivery of the current status. Expected
	// under at-least-once feeds and not an error.
	IgnoreNoChange IgnoreReason = "no_change"
	// IgnoreStaleSignal: the signal's timestamp predates the space's last
	// recorded transition. The ledger stays per-space monotonic.
	IgnoreStaleSignal IgnoreReason = "stale_signal"
)

// Outcome is the result of feeding one delivery through the state machine.
// Either Applied is true and Record holds the committed transition, or the
// delivery was dropped for Reason.
type Outcome struct {
	Applied bool
	Record  *model.Transition
	Reason  IgnoreReason
}

// ClosedSession reports whether the applied transition ended an occupancy
// session, which is what the free-space notifier keys on.
func (o Outcome) ClosedSession() bool {
	return o.Applied && o.Record != nil &&
		o.Record.PriorStatus == model.StatusOccupied &&
		o.Record.NewStatus == model.StatusFree
}
