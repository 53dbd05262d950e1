package maintenance

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	appevents "leadprotect_backend/internal/events"
	"leadprotect_backend/internal/leads/domain"
	"leadprotect_backend/internal/leads/repository"
	"leadprotect_backend/internal/notification/outbox"
	"leadprotect_backend/platform/clock"
	"leadprotect_backend/platform/config"
	"leadprotect_backend/platform/events"
	"leadprotect_backend/platform/logger"
)

// fakeStore mirrors the conditional-update semantics of the real repository:
// each claim re-checks its guard under a lock and reports whether it applied.
type fakeStore struct {
	mu         sync.Mutex
	leads      map[uuid.UUID]*domain.Lead
	activities []repository.RecordActivityParams
	scores     map[uuid.UUID]int
	importTTLs []time.Time
	failExpire map[uuid.UUID]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:      make(map[uuid.UUID]*domain.Lead),
		scores:     make(map[uuid.UUID]int),
		failExpire: make(map[uuid.UUID]error),
	}
}

func (f *fakeStore) add(lead *domain.Lead) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads[lead.ID] = lead
}

func (f *fakeStore) get(id uuid.UUID) domain.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.leads[id]
}

func (f *fakeStore) selectLeads(limit int, pred func(*domain.Lead) bool, deadline func(*domain.Lead) time.Time) []domain.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Lead
	for _, lead := range f.leads {
		if pred(lead) {
			out = append(out, *lead)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return deadline(&out[i]).Before(deadline(&out[j]))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakeStore) FindProgressWarningCandidates(_ context.Context, now time.Time, warningDays, limit int) ([]domain.Lead, error) {
	cutoff := now.AddDate(0, 0, warningDays)
	return f.selectLeads(limit, func(l *domain.Lead) bool {
		return l.Status == domain.StatusActive &&
			l.ProgressDeadline != nil && l.ProgressDeadline.Before(cutoff) &&
			l.ProgressWarningSentAt == nil && l.ClockStoppedAt == nil
	}, func(l *domain.Lead) time.Time { return *l.ProgressDeadline }), nil
}

func (f *fakeStore) MarkProgressWarningSent(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := f.leads[id]
	if lead == nil || lead.Status != domain.StatusActive || lead.ProgressWarningSentAt != nil || lead.ClockStoppedAt != nil {
		return false, nil
	}
	sent := now
	lead.ProgressWarningSentAt = &sent
	lead.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) FindExpiryCandidates(_ context.Context, now time.Time, limit int) ([]domain.Lead, error) {
	return f.selectLeads(limit, func(l *domain.Lead) bool {
		return l.Status == domain.StatusActive &&
			l.ProgressWarningSentAt != nil &&
			l.ProgressDeadline != nil && l.ProgressDeadline.Before(now) &&
			l.ClockStoppedAt == nil
	}, func(l *domain.Lead) time.Time { return *l.ProgressDeadline }), nil
}

func (f *fakeStore) ExpireLead(_ context.Context, id uuid.UUID, from domain.Status, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failExpire[id]; err != nil {
		return false, err
	}
	lead := f.leads[id]
	if lead == nil || lead.Status != from || lead.ClockStoppedAt != nil {
		return false, nil
	}
	lead.Status = domain.StatusExpired
	expired := now
	lead.ExpiredAt = &expired
	lead.OwnerUserID = nil
	lead.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) FindPseudonymizationCandidates(_ context.Context, now time.Time, delayDays, limit int) ([]domain.Lead, error) {
	cutoff := now.AddDate(0, 0, -delayDays)
	return f.selectLeads(limit, func(l *domain.Lead) bool {
		return l.Status == domain.StatusExpired && l.UpdatedAt.Before(cutoff) && l.PseudonymizedAt == nil
	}, func(l *domain.Lead) time.Time { return l.UpdatedAt }), nil
}

func (f *fakeStore) Pseudonymize(_ context.Context, id uuid.UUID, emailHash *string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := f.leads[id]
	if lead == nil || lead.PseudonymizedAt != nil {
		return false, nil
	}
	lead.Email = emailHash
	lead.Phone = nil
	placeholder := domain.AnonymizedPlaceholder
	lead.ContactPerson = &placeholder
	done := now
	lead.PseudonymizedAt = &done
	lead.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) FindReminderCandidates(_ context.Context, now time.Time, limit int) ([]domain.Lead, error) {
	anchor := func(l *domain.Lead) time.Time {
		if l.LastActivityAt != nil {
			return *l.LastActivityAt
		}
		return l.RegisteredAt
	}
	return f.selectLeads(limit, func(l *domain.Lead) bool {
		return (l.Status == domain.StatusRegistered || l.Status == domain.StatusActive) &&
			anchor(l).AddDate(0, 0, l.ProtectionDays60).Before(now) &&
			l.ReminderSentAt == nil && l.ClockStoppedAt == nil
	}, anchor), nil
}

func (f *fakeStore) MarkReminderSent(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := f.leads[id]
	if lead == nil ||
		(lead.Status != domain.StatusRegistered && lead.Status != domain.StatusActive) ||
		lead.ReminderSentAt != nil || lead.ClockStoppedAt != nil {
		return false, nil
	}
	lead.Status = domain.StatusReminder
	sent := now
	lead.ReminderSentAt = &sent
	lead.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) FindGracePeriodCandidates(_ context.Context, now time.Time, limit int) ([]domain.Lead, error) {
	return f.selectLeads(limit, func(l *domain.Lead) bool {
		return l.Status == domain.StatusReminder &&
			l.ReminderSentAt != nil &&
			l.ReminderSentAt.AddDate(0, 0, l.ProtectionDays10).Before(now) &&
			l.GracePeriodStartAt == nil && l.ClockStoppedAt == nil
	}, func(l *domain.Lead) time.Time { return *l.ReminderSentAt }), nil
}

func (f *fakeStore) StartGracePeriod(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := f.leads[id]
	if lead == nil || lead.Status != domain.StatusReminder || lead.GracePeriodStartAt != nil || lead.ClockStoppedAt != nil {
		return false, nil
	}
	lead.Status = domain.StatusGracePeriod
	started := now
	lead.GracePeriodStartAt = &started
	lead.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) FindGraceExpiryCandidates(_ context.Context, now time.Time, limit int) ([]domain.Lead, error) {
	return f.selectLeads(limit, func(l *domain.Lead) bool {
		return l.Status == domain.StatusGracePeriod &&
			l.GracePeriodStartAt != nil &&
			l.GracePeriodStartAt.AddDate(0, 0, l.ProtectionDays10).Before(now) &&
			l.ClockStoppedAt == nil
	}, func(l *domain.Lead) time.Time { return *l.GracePeriodStartAt }), nil
}

func (f *fakeStore) FindRescoreCandidates(_ context.Context, limit int) ([]domain.Lead, error) {
	return f.selectLeads(limit, func(l *domain.Lead) bool {
		return l.Status != domain.StatusDeleted && l.Status != domain.StatusExpired && l.PseudonymizedAt == nil
	}, func(l *domain.Lead) time.Time { return l.UpdatedAt }), nil
}

func (f *fakeStore) UpdateScore(_ context.Context, id uuid.UUID, score int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := f.leads[id]
	if lead == nil {
		return false, nil
	}
	if lead.LeadScore != nil && *lead.LeadScore == score {
		return false, nil
	}
	lead.LeadScore = &score
	f.scores[id] = score
	return true, nil
}

func (f *fakeStore) DeleteExpiredImportJobs(_ context.Context, now time.Time, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []time.Time
	deleted := 0
	for _, ttl := range f.importTTLs {
		if ttl.Before(now) && deleted < limit {
			deleted++
			continue
		}
		kept = append(kept, ttl)
	}
	f.importTTLs = kept
	return deleted, nil
}

func (f *fakeStore) RecordActivity(_ context.Context, params repository.RecordActivityParams) (repository.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, params)
	return repository.Activity{ID: uuid.New(), LeadID: params.LeadID}, nil
}

func (f *fakeStore) HasRecentMeaningfulActivity(_ context.Context, leadID uuid.UUID, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.activities {
		if p.LeadID == leadID && p.IsMeaningful && !p.OccurredAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

type recordingOutbox struct {
	mu      sync.Mutex
	inserts []outbox.InsertParams
}

func (r *recordingOutbox) Insert(_ context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts = append(r.inserts, p)
	return uuid.New(), nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingBus) Publish(_ context.Context, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	r.Publish(ctx, event)
	return nil
}

func (r *recordingBus) Subscribe(string, events.Handler) {}

func (r *recordingBus) byName(name string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		MaintenanceBatchSize:      100,
		ProtectionWarningDays:     7,
		GracePeriodDays:           10,
		PseudonymizationDelayDays: 60,
		ImportJobRetentionDays:    7,
		ActivityReminderDays:      60,
		ManagerEmailAddress:       "manager@example.com",
		OwnerEmailDomain:          "example.com",
	}
}

func newTestService(store *fakeStore) (*Service, *recordingOutbox, *recordingBus, *clock.Fixed) {
	ob := &recordingOutbox{}
	bus := &recordingBus{}
	clk := clock.NewFixed(time.Date(2024, time.June, 1, 3, 0, 0, 0, time.UTC))
	svc := NewService(store, ob, bus, clk, logger.New("test"), testConfig())
	return svc, ob, bus, clk
}

func activeLead(now time.Time) *domain.Lead {
	owner := "user-7"
	registered := now.AddDate(0, 0, -90)
	return &domain.Lead{
		ID:                uuid.New(),
		CompanyName:       "Gasthaus Adler",
		Status:            domain.StatusActive,
		OwnerUserID:       &owner,
		RegisteredAt:      registered,
		ProtectionStartAt: registered,
		ProtectionMonths:  domain.DefaultProtectionMonths,
		ProtectionDays60:  domain.DefaultProtectionDays60,
		ProtectionDays10:  domain.DefaultProtectionDays10,
		CreatedAt:         registered,
		UpdatedAt:         registered,
	}
}

func TestRunProgressWarning_WarnsOnceAndOnlyOnce(t *testing.T) {
	store := newFakeStore()
	svc, ob, bus, clk := newTestService(store)
	now := clk.Now()

	lead := activeLead(now)
	deadline := now.AddDate(0, 0, 5)
	lead.ProgressDeadline = &deadline
	store.add(lead)

	result, err := svc.RunProgressWarning(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Processed != 1 || result.Actions != 1 {
		t.Fatalf("first run = %+v, want 1 processed, 1 action", result)
	}

	got := store.get(lead.ID)
	if got.ProgressWarningSentAt == nil || !got.ProgressWarningSentAt.Equal(now) {
		t.Fatal("progress warning timestamp not set")
	}
	if len(ob.inserts) != 1 {
		t.Fatalf("outbox inserts = %d, want 1", len(ob.inserts))
	}
	if ob.inserts[0].Recipient != "user-7@example.com" {
		t.Errorf("recipient = %s, want owner mailbox", ob.inserts[0].Recipient)
	}
	if n := len(bus.byName(appevents.LeadProgressWarningIssued{}.EventName())); n != 1 {
		t.Errorf("warning events = %d, want 1", n)
	}

	// Re-running immediately makes no further change and no second email.
	result, err = svc.RunProgressWarning(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Processed != 0 || result.Actions != 0 {
		t.Fatalf("second run = %+v, want no-op", result)
	}
	if len(ob.inserts) != 1 {
		t.Fatalf("outbox inserts after rerun = %d, want still 1", len(ob.inserts))
	}
}

func TestRunProgressWarning_SkipsStoppedClock(t *testing.T) {
	store := newFakeStore()
	svc, ob, _, clk := newTestService(store)
	now := clk.Now()

	lead := activeLead(now)
	deadline := now.AddDate(0, 0, 2)
	lead.ProgressDeadline = &deadline
	stopped := now.AddDate(0, 0, -1)
	lead.ClockStoppedAt = &stopped
	store.add(lead)

	result, err := svc.RunProgressWarning(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Processed != 0 {
		t.Fatalf("stopped clock lead selected: %+v", result)
	}
	if len(ob.inserts) != 0 {
		t.Fatal("no notification for a stopped clock")
	}
}

func TestRunProtectionExpiry_HonorsGraceWindow(t *testing.T) {
	store := newFakeStore()
	svc, _, bus, clk := newTestService(store)
	now := clk.Now()

	// Warned 5 days ago: deadline passed, but the 10-day grace still runs.
	early := activeLead(now)
	earlyDeadline := now.AddDate(0, 0, -6)
	earlyWarned := now.AddDate(0, 0, -5)
	early.ProgressDeadline = &earlyDeadline
	early.ProgressWarningSentAt = &earlyWarned
	store.add(early)

	// Warned 11 days ago: grace elapsed, expiry fires.
	due := activeLead(now)
	dueDeadline := now.AddDate(0, 0, -12)
	dueWarned := now.AddDate(0, 0, -11)
	due.ProgressDeadline = &dueDeadline
	due.ProgressWarningSentAt = &dueWarned
	store.add(due)

	result, err := svc.RunProtectionExpiry(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Processed != 2 || result.Actions != 1 {
		t.Fatalf("result = %+v, want 2 processed, 1 action", result)
	}

	if got := store.get(early.ID); got.Status != domain.StatusActive {
		t.Errorf("lead inside grace window expired early: %s", got.Status)
	}
	expired := store.get(due.ID)
	if expired.Status != domain.StatusExpired {
		t.Fatalf("due lead status = %s, want EXPIRED", expired.Status)
	}
	if expired.OwnerUserID != nil {
		t.Error("expiry must release the owner")
	}
	if expired.ExpiredAt == nil {
		t.Error("expiredAt not stamped")
	}
	if n := len(bus.byName(appevents.LeadProtectionExpired{}.EventName())); n != 1 {
		t.Errorf("expiry events = %d, want 1", n)
	}
}

func TestRunProtectionExpiry_PerItemFailureIsolation(t *testing.T) {
	store := newFakeStore()
	svc, _, _, clk := newTestService(store)
	now := clk.Now()

	bad := activeLead(now)
	badDeadline := now.AddDate(0, 0, -20)
	badWarned := now.AddDate(0, 0, -19)
	bad.ProgressDeadline = &badDeadline
	bad.ProgressWarningSentAt = &badWarned
	store.add(bad)
	store.failExpire[bad.ID] = errors.New("deadlock detected")

	good := activeLead(now)
	goodDeadline := now.AddDate(0, 0, -15)
	goodWarned := now.AddDate(0, 0, -14)
	good.ProgressDeadline = &goodDeadline
	good.ProgressWarningSentAt = &goodWarned
	store.add(good)

	result, err := svc.RunProtectionExpiry(context.Background())
	if err != nil {
		t.Fatalf("a bad record must not abort the batch: %v", err)
	}
	if result.Actions != 1 {
		t.Fatalf("actions = %d, want 1 despite the failing item", result.Actions)
	}
	if got := store.get(good.ID); got.Status != domain.StatusExpired {
		t.Fatal("healthy lead after the failing one was not processed")
	}
}

func TestRunPseudonymization_StripsPersonalDataOnly(t *testing.T) {
	store := newFakeStore()
	svc, _, bus, clk := newTestService(store)
	now := clk.Now()

	email := "Max.Mustermann@Example.COM"
	phone := "+4930123456"
	contact := "Max Mustermann"
	city := "Berlin"
	campaign := "messe-2024"

	lead := activeLead(now)
	lead.Status = domain.StatusExpired
	lead.Email = &email
	lead.Phone = &phone
	lead.ContactPerson = &contact
	lead.City = &city
	lead.SourceCampaign = &campaign
	lead.UpdatedAt = now.AddDate(0, 0, -61)
	store.add(lead)

	result, err := svc.RunPseudonymization(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Actions != 1 {
		t.Fatalf("actions = %d, want 1", result.Actions)
	}

	got := store.get(lead.ID)
	if got.Email == nil || !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(*got.Email) {
		t.Fatalf("email = %v, want 64-char hex digest", got.Email)
	}
	if *got.Email != HashEmail("max.mustermann@example.com") {
		t.Error("digest must be computed over the lowercased address")
	}
	if got.Phone != nil {
		t.Error("phone must be cleared")
	}
	if got.ContactPerson == nil || *got.ContactPerson != domain.AnonymizedPlaceholder {
		t.Error("contact person must be replaced by the placeholder")
	}
	if got.CompanyName != "Gasthaus Adler" || got.City == nil || got.SourceCampaign == nil {
		t.Error("company-level fields must be retained")
	}
	if got.PseudonymizedAt == nil {
		t.Error("pseudonymizedAt not stamped")
	}
	if n := len(bus.byName(appevents.LeadsPseudonymized{}.EventName())); n != 1 {
		t.Errorf("batch events = %d, want 1", n)
	}

	// Idempotent: the second run finds nothing.
	result, err = svc.RunPseudonymization(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Processed != 0 {
		t.Fatalf("second run processed %d, want 0", result.Processed)
	}
}

func TestRunPseudonymization_RecentlyExpiredNotTouched(t *testing.T) {
	store := newFakeStore()
	svc, _, _, clk := newTestService(store)
	now := clk.Now()

	lead := activeLead(now)
	lead.Status = domain.StatusExpired
	lead.UpdatedAt = now.AddDate(0, 0, -30)
	store.add(lead)

	result, err := svc.RunPseudonymization(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Processed != 0 {
		t.Fatalf("lead inside the retention delay selected: %+v", result)
	}
}

func TestRunActivityTrack_FullCadence(t *testing.T) {
	store := newFakeStore()
	svc, ob, bus, clk := newTestService(store)
	now := clk.Now()

	lead := activeLead(now)
	activity := now.AddDate(0, 0, -61)
	lead.LastActivityAt = &activity
	store.add(lead)

	// 61 days without activity: ACTIVE -> REMINDER.
	result, err := svc.RunActivityTrack(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Actions != 1 {
		t.Fatalf("actions = %d, want 1", result.Actions)
	}
	got := store.get(lead.ID)
	if got.Status != domain.StatusReminder || got.ReminderSentAt == nil {
		t.Fatalf("status = %s, want REMINDER with timestamp", got.Status)
	}
	if len(ob.inserts) != 1 || ob.inserts[0].Template != TemplateReminder {
		t.Fatal("reminder notification not enqueued")
	}

	// Re-running immediately after makes no further change.
	result, err = svc.RunActivityTrack(context.Background())
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if result.Actions != 0 {
		t.Fatalf("rerun actions = %d, want 0", result.Actions)
	}

	// 11 days later: REMINDER -> GRACE_PERIOD.
	clk.Advance(11 * 24 * time.Hour)
	result, err = svc.RunActivityTrack(context.Background())
	if err != nil {
		t.Fatalf("grace run: %v", err)
	}
	if result.Actions != 1 {
		t.Fatalf("grace actions = %d, want 1", result.Actions)
	}
	got = store.get(lead.ID)
	if got.Status != domain.StatusGracePeriod || got.GracePeriodStartAt == nil {
		t.Fatalf("status = %s, want GRACE_PERIOD with timestamp", got.Status)
	}
	if n := len(bus.byName(appevents.LeadGracePeriodStarted{}.EventName())); n != 1 {
		t.Errorf("grace events = %d, want 1", n)
	}

	// Another 11 days: GRACE_PERIOD -> EXPIRED, owner released.
	clk.Advance(11 * 24 * time.Hour)
	result, err = svc.RunActivityTrack(context.Background())
	if err != nil {
		t.Fatalf("expiry run: %v", err)
	}
	if result.Actions != 1 {
		t.Fatalf("expiry actions = %d, want 1", result.Actions)
	}
	got = store.get(lead.ID)
	if got.Status != domain.StatusExpired {
		t.Fatalf("status = %s, want EXPIRED", got.Status)
	}
	if got.OwnerUserID != nil {
		t.Error("expiry must release the owner")
	}
}

func TestConcurrentRunnersClaimOnce(t *testing.T) {
	store := newFakeStore()
	ob := &recordingOutbox{}
	bus := &recordingBus{}
	clk := clock.NewFixed(time.Date(2024, time.June, 1, 3, 0, 0, 0, time.UTC))
	now := clk.Now()

	// Two independent runners over the same store, as in a clustered
	// deployment without a distributed lock.
	svcA := NewService(store, ob, bus, clk, logger.New("test"), testConfig())
	svcB := NewService(store, ob, bus, clk, logger.New("test"), testConfig())

	lead := activeLead(now)
	deadline := now.AddDate(0, 0, 5)
	lead.ProgressDeadline = &deadline
	store.add(lead)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i, svc := range []*Service{svcA, svcB} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.RunProgressWarning(context.Background())
			if err != nil {
				t.Errorf("run: %v", err)
			}
			results[i] = r
		}()
	}
	wg.Wait()

	if total := results[0].Actions + results[1].Actions; total != 1 {
		t.Fatalf("total actions = %d, want exactly one winner", total)
	}
	if len(ob.inserts) != 1 {
		t.Fatalf("outbox inserts = %d, want 1", len(ob.inserts))
	}
}

func TestRunActivityTrack_RegisteredLeadAgesIntoCadence(t *testing.T) {
	store := newFakeStore()
	svc, ob, _, clk := newTestService(store)
	now := clk.Now()

	// Registered but never manually activated, and never touched since.
	lead := activeLead(now)
	lead.Status = domain.StatusRegistered
	lead.RegisteredAt = now.AddDate(0, 0, -61)
	lead.ProtectionStartAt = lead.RegisteredAt
	lead.LastActivityAt = nil
	store.add(lead)

	result, err := svc.RunActivityTrack(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Actions != 1 {
		t.Fatalf("actions = %d, want 1", result.Actions)
	}
	got := store.get(lead.ID)
	if got.Status != domain.StatusReminder || got.ReminderSentAt == nil {
		t.Fatalf("status = %s, want REMINDER with timestamp", got.Status)
	}
	if len(ob.inserts) != 1 || ob.inserts[0].Template != TemplateReminder {
		t.Fatal("reminder notification not enqueued")
	}
}

func TestRunActivityTrack_RecentActivityBlocksReminder(t *testing.T) {
	store := newFakeStore()
	svc, ob, _, clk := newTestService(store)
	now := clk.Now()

	lead := activeLead(now)
	stale := now.AddDate(0, 0, -61)
	lead.LastActivityAt = &stale
	store.add(lead)

	// A meaningful activity logged after the snapshot was taken.
	if _, err := store.RecordActivity(context.Background(), repository.RecordActivityParams{
		LeadID:       lead.ID,
		ActivityType: "CALL",
		IsMeaningful: true,
		ActorID:      "user-7",
		OccurredAt:   now.AddDate(0, 0, -1),
	}); err != nil {
		t.Fatalf("seed activity: %v", err)
	}

	result, err := svc.RunActivityTrack(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Actions != 0 {
		t.Fatalf("actions = %d, want 0", result.Actions)
	}
	if got := store.get(lead.ID); got.Status != domain.StatusActive {
		t.Fatalf("status = %s, want still ACTIVE", got.Status)
	}
	if len(ob.inserts) != 0 {
		t.Fatal("no reminder must be enqueued")
	}
}

func TestRunImportArchival(t *testing.T) {
	store := newFakeStore()
	svc, _, bus, clk := newTestService(store)
	now := clk.Now()

	store.importTTLs = []time.Time{
		now.AddDate(0, 0, -1),
		now.AddDate(0, 0, -2),
		now.AddDate(0, 0, 3),
	}

	result, err := svc.RunImportArchival(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Actions != 2 {
		t.Fatalf("deleted = %d, want 2", result.Actions)
	}
	if len(store.importTTLs) != 1 {
		t.Fatalf("remaining jobs = %d, want 1", len(store.importTTLs))
	}
	if n := len(bus.byName(appevents.ImportJobsArchived{}.EventName())); n != 1 {
		t.Errorf("batch events = %d, want 1", n)
	}

	// Nothing left to archive: no event for an empty run.
	result, err = svc.RunImportArchival(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Actions != 0 {
		t.Fatalf("second run deleted %d, want 0", result.Actions)
	}
	if n := len(bus.byName(appevents.ImportJobsArchived{}.EventName())); n != 1 {
		t.Errorf("batch events after empty run = %d, want still 1", n)
	}
}

func TestRunRescore_WritesOnlyChanges(t *testing.T) {
	store := newFakeStore()
	svc, _, bus, clk := newTestService(store)
	now := clk.Now()

	lead := activeLead(now)
	activity := now.AddDate(0, 0, -3)
	lead.LastActivityAt = &activity
	lead.FollowupCount = 4
	store.add(lead)

	result, err := svc.RunRescore(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Actions != 1 {
		t.Fatalf("first run actions = %d, want 1", result.Actions)
	}
	got := store.get(lead.ID)
	if got.LeadScore == nil || *got.LeadScore <= 0 || *got.LeadScore > 100 {
		t.Fatalf("score = %v, want a value in (0,100]", got.LeadScore)
	}

	// Same data, same clock: the stored score already matches.
	result, err = svc.RunRescore(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Actions != 0 {
		t.Fatalf("second run actions = %d, want 0", result.Actions)
	}
	if n := len(bus.byName(appevents.LeadsRescored{}.EventName())); n != 1 {
		t.Errorf("rescore events = %d, want 1", n)
	}
}

func TestHashEmail(t *testing.T) {
	a := HashEmail("Info@Example.com ")
	b := HashEmail("info@example.com")
	if a != b {
		t.Fatal("hash must normalize case and whitespace")
	}
	if len(a) != 64 {
		t.Fatalf("digest length = %d, want 64", len(a))
	}
}
