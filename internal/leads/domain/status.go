// Package domain provides core business rules for the leads bounded context.
package domain

// Status is the lifecycle state of a lead.
type Status string

const (
	StatusRegistered  Status = "REGISTERED"
	StatusActive      Status = "ACTIVE"
	StatusReminder    Status = "REMINDER"
	StatusGracePeriod Status = "GRACE_PERIOD"
	StatusQualified   Status = "QUALIFIED"
	StatusConverted   Status = "CONVERTED"
	StatusLost        Status = "LOST"
	StatusExpired     Status = "EXPIRED"
	StatusDeleted     Status = "DELETED"
)

// Permissions carries the requester rights relevant to lifecycle decisions.
type Permissions struct {
	// CanOverrideProtection allows reactivating an EXPIRED lead.
	CanOverrideProtection bool
	// CanStopClock allows pausing and resuming the protection clock.
	CanStopClock bool
}

// Decision is the outcome of a transition check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// allowedTransitions is the closed transition set. Targets not listed here are
// denied; the clock-stop, deletion and override rules below are layered on top.
var allowedTransitions = map[Status]map[Status]bool{
	StatusRegistered: {
		StatusActive:    true,
		StatusQualified: true,
		StatusExpired:   true,
	},
	StatusActive: {
		StatusQualified: true,
		StatusReminder:  true,
		StatusExpired:   true,
	},
	StatusReminder: {
		StatusActive:      true,
		StatusGracePeriod: true,
		StatusExpired:     true,
		StatusQualified:   true,
	},
	StatusGracePeriod: {
		StatusActive:    true,
		StatusExpired:   true,
		StatusQualified: true,
	},
	StatusQualified: {
		StatusConverted: true,
		StatusLost:      true,
	},
	// EXPIRED is handled separately: reactivation requires override rights.
	StatusExpired:   {},
	StatusConverted: {},
	StatusLost:      {},
	StatusDeleted:   {},
}

// IsKnown reports whether s is one of the defined lifecycle states.
func IsKnown(s Status) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal reports whether s admits no further transitions (deletion aside).
func IsTerminal(s Status) bool {
	return s == StatusConverted || s == StatusLost || s == StatusDeleted
}

// CanTransition checks whether a lead may move from its current status to the
// requested one. Open dependent-record constraints on deletion are enforced by
// the caller, not here.
func CanTransition(lead *Lead, requested Status, perms Permissions) Decision {
	// Soft delete is always allowed.
	if requested == StatusDeleted {
		return allow()
	}

	// Clock-stopped leads are frozen: only clock resume or deletion may touch them.
	if lead.ClockStoppedAt != nil && requested != lead.Status {
		return deny("clock is stopped")
	}

	current := lead.Status

	if !IsKnown(current) {
		// Invariant violation, the caller logs this at error level.
		return deny("unknown status " + string(current))
	}

	if current == StatusExpired {
		if requested == StatusActive {
			if perms.CanOverrideProtection {
				return allow()
			}
			return deny("reactivation requires override protection permission")
		}
		return deny("expired leads can only be reactivated")
	}

	if allowedTransitions[current][requested] {
		return allow()
	}

	return deny(string(current) + " cannot transition to " + string(requested))
}
