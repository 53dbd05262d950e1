package domain

import (
	"testing"
	"time"
)

func leadWithStatus(status Status) *Lead {
	return &Lead{Status: status}
}

func TestCanTransition_AllowedPairs(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
	}{
		{StatusRegistered, StatusActive},
		{StatusRegistered, StatusQualified},
		{StatusRegistered, StatusExpired},
		{StatusActive, StatusQualified},
		{StatusActive, StatusReminder},
		{StatusActive, StatusExpired},
		{StatusReminder, StatusActive},
		{StatusReminder, StatusGracePeriod},
		{StatusReminder, StatusExpired},
		{StatusReminder, StatusQualified},
		{StatusGracePeriod, StatusActive},
		{StatusGracePeriod, StatusExpired},
		{StatusGracePeriod, StatusQualified},
		{StatusQualified, StatusConverted},
		{StatusQualified, StatusLost},
	}

	for _, tc := range cases {
		decision := CanTransition(leadWithStatus(tc.from), tc.to, Permissions{})
		if !decision.Allowed {
			t.Errorf("%s -> %s should be allowed, got denial: %s", tc.from, tc.to, decision.Reason)
		}
	}
}

func TestCanTransition_ClosedSet(t *testing.T) {
	all := []Status{
		StatusRegistered, StatusActive, StatusReminder, StatusGracePeriod,
		StatusQualified, StatusConverted, StatusLost, StatusExpired, StatusDeleted,
	}

	allowed := map[[2]Status]bool{}
	for from, targets := range allowedTransitions {
		for to := range targets {
			allowed[[2]Status{from, to}] = true
		}
	}
	// Override-gated reactivation is layered on top of the table.
	allowed[[2]Status{StatusExpired, StatusActive}] = true

	for _, from := range all {
		for _, to := range all {
			if from == to || to == StatusDeleted {
				continue
			}
			decision := CanTransition(leadWithStatus(from), to, Permissions{
				CanOverrideProtection: true,
			})
			if decision.Allowed != allowed[[2]Status{from, to}] {
				t.Errorf("%s -> %s: allowed=%v, want %v", from, to, decision.Allowed, allowed[[2]Status{from, to}])
			}
		}
	}
}

func TestCanTransition_DeletionAlwaysAllowed(t *testing.T) {
	all := []Status{
		StatusRegistered, StatusActive, StatusReminder, StatusGracePeriod,
		StatusQualified, StatusConverted, StatusLost, StatusExpired,
	}
	for _, from := range all {
		decision := CanTransition(leadWithStatus(from), StatusDeleted, Permissions{})
		if !decision.Allowed {
			t.Errorf("%s -> DELETED should be allowed, got denial: %s", from, decision.Reason)
		}
	}

	// Deletion also wins over a stopped clock.
	stopped := time.Now()
	lead := &Lead{Status: StatusActive, ClockStoppedAt: &stopped}
	if decision := CanTransition(lead, StatusDeleted, Permissions{}); !decision.Allowed {
		t.Errorf("clock-stopped lead should still be deletable, got denial: %s", decision.Reason)
	}
}

func TestCanTransition_ClockStoppedFreezesEverything(t *testing.T) {
	stopped := time.Now()
	for _, from := range []Status{StatusRegistered, StatusActive, StatusReminder, StatusGracePeriod, StatusQualified} {
		lead := &Lead{Status: from, ClockStoppedAt: &stopped}
		for _, to := range []Status{StatusActive, StatusReminder, StatusGracePeriod, StatusQualified, StatusExpired, StatusConverted} {
			if to == from {
				continue
			}
			decision := CanTransition(lead, to, Permissions{CanOverrideProtection: true, CanStopClock: true})
			if decision.Allowed {
				t.Errorf("clock stopped: %s -> %s must be denied", from, to)
			}
		}
	}
}

func TestCanTransition_ExpiredReactivationRequiresOverride(t *testing.T) {
	lead := leadWithStatus(StatusExpired)

	decision := CanTransition(lead, StatusActive, Permissions{})
	if decision.Allowed {
		t.Fatal("EXPIRED -> ACTIVE without override permission must be denied")
	}

	decision = CanTransition(lead, StatusActive, Permissions{CanOverrideProtection: true})
	if !decision.Allowed {
		t.Fatalf("EXPIRED -> ACTIVE with override permission should be allowed, got: %s", decision.Reason)
	}

	decision = CanTransition(lead, StatusQualified, Permissions{CanOverrideProtection: true})
	if decision.Allowed {
		t.Fatal("EXPIRED -> QUALIFIED must be denied regardless of permissions")
	}
}

func TestCanTransition_UnknownStatusDenied(t *testing.T) {
	lead := leadWithStatus(Status("SHIPPED"))
	decision := CanTransition(lead, StatusActive, Permissions{CanOverrideProtection: true})
	if decision.Allowed {
		t.Fatal("unknown current status must be denied")
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusConverted, StatusLost, StatusDeleted} {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusRegistered, StatusActive, StatusReminder, StatusGracePeriod, StatusQualified, StatusExpired} {
		if IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
