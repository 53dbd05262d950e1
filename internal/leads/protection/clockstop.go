package protection

import "leadprotect_backend/internal/leads/domain"

// CanStopClock checks whether the requester may pause the protection clock
// for this lead. Terminal and already-stopped leads cannot be paused.
func CanStopClock(lead *domain.Lead, perms domain.Permissions) (bool, string) {
	if !perms.CanStopClock {
		return false, "missing stop-clock permission"
	}

	switch lead.Status {
	case domain.StatusExpired, domain.StatusConverted, domain.StatusLost, domain.StatusDeleted:
		return false, "cannot stop clock in status " + string(lead.Status)
	}

	if lead.ClockStoppedAt != nil {
		return false, "clock already stopped"
	}

	return true, ""
}

// CanResumeClock checks whether the requester may resume a stopped clock.
func CanResumeClock(lead *domain.Lead, perms domain.Permissions) (bool, string) {
	if lead.ClockStoppedAt == nil {
		return false, "clock is not stopped"
	}

	if !perms.CanStopClock {
		return false, "missing stop-clock permission"
	}

	return true, ""
}
