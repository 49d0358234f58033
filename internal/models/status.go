package models

// SubscriptionStatus tracks push registration for the current session only;
// it is recomputed from scratch on every login.
type SubscriptionStatus int

const (
	SubscriptionUnset SubscriptionStatus = iota
	SubscriptionPending
	SubscriptionActive
	SubscriptionFailed
)

func (s SubscriptionStatus) String() string {
	switch s {
	case SubscriptionPending:
		return "pending"
	case SubscriptionActive:
		return "active"
	case SubscriptionFailed:
		return "failed"
	default:
		return "unset"
	}
}
