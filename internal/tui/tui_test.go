package tui

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/shiftops/internal/photos"
	"github.com/sadopc/shiftops/internal/roster"
	"github.com/sadopc/shiftops/internal/store"
	"github.com/sadopc/shiftops/internal/tasks"
	"github.com/sadopc/shiftops/internal/verify"
	"go.uber.org/zap"
)

// fakeQR treats "qr:<payload>" as an image containing <payload>.
type fakeQR struct{}

func (fakeQR) Decode(data []byte) string {
	if bytes.HasPrefix(data, []byte("qr:")) {
		return string(data[3:])
	}
	return ""
}

type testEnv struct {
	ctx   context.Context
	deps  *Deps
	store *store.Store
	clock time.Time
	loc   *store.Location
	early *store.TaskDefinition // 10:00
	late  *store.TaskDefinition // 15:00
}

func intPtr(v int) *int { return &v }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestEnv wires the services at 2024-06-01 10:30 UTC with one location
// and three tasks: 10:00, 15:00 and unscheduled.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := newTestStore(t)
	e := &testEnv{ctx: context.Background(), store: s, clock: time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)}
	now := func() time.Time { return e.clock }

	fs, err := photos.NewFS(t.TempDir(), "http://test", 0)
	if err != nil {
		t.Fatal(err)
	}
	verified := verify.NewMemoryStore(time.Hour)
	verified.SetClock(now)
	gate := roster.NewGate(s, time.UTC, nil)
	gate.SetClock(now)
	svc := tasks.New(tasks.Options{
		Store:    s,
		Roster:   gate,
		Shifts:   gate,
		Verified: verified,
		Photos:   fs,
		QR:       fakeQR{},
		Location: time.UTC,
	})
	svc.SetClock(now)
	e.deps = &Deps{Service: svc, Gate: gate, Store: s, Logger: zap.NewNop(), ExportDir: t.TempDir()}

	e.loc, err = svc.CreateLocation(e.ctx, tasks.LocationInput{Name: "Lobby", QRToken: "ABC123"})
	if err != nil {
		t.Fatal(err)
	}
	e.early, err = svc.CreateDefinition(e.ctx, tasks.DefinitionInput{LocationID: e.loc.ID, Activity: "Wipe counters", TargetHour: intPtr(10)})
	if err != nil {
		t.Fatal(err)
	}
	e.late, err = svc.CreateDefinition(e.ctx, tasks.DefinitionInput{LocationID: e.loc.ID, Activity: "Water plants", TargetHour: intPtr(15)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateDefinition(e.ctx, tasks.DefinitionInput{LocationID: e.loc.ID, Activity: "Check towels"}); err != nil {
		t.Fatal(err)
	}
	return e
}

func (e *testEnv) staff(t *testing.T, code string, role store.Role, clockIn bool) *store.Staff {
	t.Helper()
	st, err := e.store.CreateStaff(e.ctx, code, strings.ToUpper(code[:1])+code[1:], role)
	if err != nil {
		t.Fatal(err)
	}
	if clockIn {
		if _, err := e.deps.Gate.ClockIn(e.ctx, st.ID); err != nil {
			t.Fatal(err)
		}
	}
	return st
}

// instance returns today's instance of def.
func (e *testEnv) instance(t *testing.T, def *store.TaskDefinition) store.TaskView {
	t.Helper()
	views, err := e.deps.Service.ListInstances(e.ctx, "2024-06-01")
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range views {
		if v.DefinitionID == def.ID {
			return v
		}
	}
	t.Fatalf("no instance for %s", def.Activity)
	return store.TaskView{}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and returns its message, or nil.
func run(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

func expectOutcome(t *testing.T, msg tea.Msg, want tasks.Outcome) tasks.Result {
	t.Helper()
	om, ok := msg.(outcomeMsg)
	if !ok {
		t.Fatalf("expected outcomeMsg, got %T %+v", msg, msg)
	}
	if om.res.Outcome != want {
		t.Fatalf("outcome = %s, want %s", om.res.Outcome, want)
	}
	return om.res
}

// ============================================================
// Shift clock
// ============================================================

func TestShiftClockOffDuty(t *testing.T) {
	c := newShiftClock()
	if c.onShift() || c.onBreak() {
		t.Fatal("new clock should be off duty")
	}
	if c.worked() != 0 || c.currentBreak() != 0 {
		t.Fatal("off duty clock should report zero")
	}
}

func TestShiftClockWorkedExcludesBreaks(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	c := newShiftClock()
	c.now = func() time.Time { return now }

	c.apply(roster.Status{
		State:    roster.StateWorking,
		Timecard: &store.Timecard{ID: 1, ClockInAt: now.Add(-150 * time.Minute)},
	})
	end := now.Add(-60 * time.Minute)
	c.setBreaks([]store.Break{{BreakStartAt: end.Add(-15 * time.Minute), BreakEndAt: &end}})

	if got := c.worked(); got != 135*time.Minute {
		t.Fatalf("worked = %v, want 2h15m", got)
	}
}

func TestShiftClockOnBreak(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	c := newShiftClock()
	c.now = func() time.Time { return now }

	c.apply(roster.Status{
		State:    roster.StateOnBreak,
		Timecard: &store.Timecard{ID: 1, ClockInAt: now.Add(-150 * time.Minute)},
		Break:    &store.Break{BreakStartAt: now.Add(-30 * time.Minute)},
	})
	// The open break is not in the closed list.
	c.setBreaks([]store.Break{{BreakStartAt: now.Add(-30 * time.Minute)}})

	if !c.onShift() || !c.onBreak() {
		t.Fatal("clock should be on shift and on break")
	}
	if got := c.worked(); got != 2*time.Hour {
		t.Fatalf("worked = %v, want 2h", got)
	}
	if got := c.currentBreak(); got != 30*time.Minute {
		t.Fatalf("break = %v, want 30m", got)
	}
}

func TestShiftClockLoad(t *testing.T) {
	e := newTestEnv(t)
	alice := e.staff(t, "alice", store.RoleStaff, false)

	c := newShiftClock()
	c.now = e.deps.Service.Now
	if err := c.load(e.ctx, e.deps.Gate, e.store, alice.ID); err != nil {
		t.Fatal(err)
	}
	if c.onShift() {
		t.Fatal("alice has not clocked in")
	}

	e.clock = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	if _, err := e.deps.Gate.ClockIn(e.ctx, alice.ID); err != nil {
		t.Fatal(err)
	}
	e.clock = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	if _, err := e.deps.Gate.StartBreak(e.ctx, alice.ID); err != nil {
		t.Fatal(err)
	}
	e.clock = time.Date(2024, 6, 1, 10, 20, 0, 0, time.UTC)
	if _, err := e.deps.Gate.EndBreak(e.ctx, alice.ID); err != nil {
		t.Fatal(err)
	}
	e.clock = time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)

	if err := c.load(e.ctx, e.deps.Gate, e.store, alice.ID); err != nil {
		t.Fatal(err)
	}
	if !c.onShift() || c.onBreak() {
		t.Fatalf("state = %s, want working", c.state)
	}
	if got := c.worked(); got != 2*time.Hour+40*time.Minute {
		t.Fatalf("worked = %v, want 2h40m", got)
	}
}

// ============================================================
// Helpers
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{-time.Second, "00:00:00"},
		{time.Second, "00:00:01"},
		{time.Minute + 5*time.Second, "00:01:05"},
		{25*time.Hour + 2*time.Minute, "25:02:00"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatMinutes(t *testing.T) {
	if got := formatMinutes(0); got != "0h00m" {
		t.Fatalf("got %q", got)
	}
	if got := formatMinutes(135); got != "2h15m" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatClock(t *testing.T) {
	if got := formatClock(nil, time.UTC); got != "--:--" {
		t.Fatalf("nil = %q", got)
	}
	ts := time.Date(2024, 6, 1, 7, 5, 0, 0, time.UTC)
	if got := formatClock(&ts, time.FixedZone("X", 2*3600)); got != "09:05" {
		t.Fatalf("got %q", got)
	}
}

func TestTargetLabel(t *testing.T) {
	if got := targetLabel(store.TaskView{}); got != "any" {
		t.Fatalf("unscheduled = %q", got)
	}
	if got := targetLabel(store.TaskView{TargetHour: intPtr(9), TargetMinute: intPtr(30)}); got != "09:30" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"truncated text", 6, "trunc…"},
		{"ab", 1, "a"},
	}
	for _, tt := range tests {
		if got := truncate(tt.s, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
		}
	}
}

func TestParseOptionalInt(t *testing.T) {
	v, err := parseOptionalInt("  ")
	if err != nil || v != nil {
		t.Fatalf("blank = %v, %v", v, err)
	}
	v, err = parseOptionalInt(" 7 ")
	if err != nil || v == nil || *v != 7 {
		t.Fatalf("7 = %v, %v", v, err)
	}
	if _, err := parseOptionalInt("seven"); err == nil {
		t.Fatal("expected error")
	}
	if optionalIntText(nil) != "" || optionalIntText(intPtr(12)) != "12" {
		t.Fatal("optionalIntText")
	}
}

func TestFormValidators(t *testing.T) {
	hour := rangeCheck(0, 23)
	for _, ok := range []string{"", "0", "23"} {
		if err := hour(ok); err != nil {
			t.Errorf("rangeCheck(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"24", "-1", "x"} {
		if err := hour(bad); err == nil {
			t.Errorf("rangeCheck(%q) should fail", bad)
		}
	}
	if required("name")(" ") == nil || required("name")("Lobby") != nil {
		t.Fatal("required")
	}
	if atLeast(1)("0") == nil || atLeast(1)("abc") == nil || atLeast(1)("3") != nil {
		t.Fatal("atLeast")
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fileExists(path); err != nil {
		t.Fatal(err)
	}
	if fileExists("") == nil || fileExists(dir) == nil || fileExists(filepath.Join(dir, "nope")) == nil {
		t.Fatal("expected errors for blank, directory and missing paths")
	}
}

func TestShiftErrorText(t *testing.T) {
	if got := shiftErrorText(roster.ErrOnBreak); got != "End your break first" {
		t.Fatalf("got %q", got)
	}
	if got := shiftErrorText(errors.New("disk full")); got != "" {
		t.Fatalf("backend errors have no hint, got %q", got)
	}
}

func TestOutcomeText(t *testing.T) {
	v := &store.TaskView{Activity: "Wipe counters"}
	if got := outcomeText("Claim", tasks.Result{Outcome: tasks.OutcomeOK, Instance: v}); got != "Claim Wipe counters: done" {
		t.Fatalf("got %q", got)
	}
	if got := outcomeText("Claim", tasks.Result{Outcome: tasks.OutcomeAlreadyTaken, Instance: v}); !strings.Contains(got, "no longer available") {
		t.Fatalf("got %q", got)
	}
}

func TestFormatSettingValue(t *testing.T) {
	tests := []struct {
		key, val, want string
	}{
		{"claim_ttl_minutes", "0", "off"},
		{"claim_ttl_minutes", "90", "1h30m"},
		{"photo_max_edge", "1600", "1600 px"},
		{"history_limit", "10", "10 shifts"},
		{"unknown", "v", "v"},
	}
	for _, tt := range tests {
		if got := formatSettingValue(tt.key, tt.val); got != tt.want {
			t.Errorf("formatSettingValue(%q, %q) = %q, want %q", tt.key, tt.val, got, tt.want)
		}
	}
}

// ============================================================
// Dashboard
// ============================================================

func TestDashboardClockInOut(t *testing.T) {
	e := newTestEnv(t)
	alice := e.staff(t, "alice", store.RoleStaff, false)
	d := newDashboardModel(e.deps)
	d.setStaff(alice)

	d, _ = d.update(run(d.loadData()))
	if d.clock.onShift() {
		t.Fatal("should start off duty")
	}

	var cmd tea.Cmd
	d, cmd = d.update(runes("b"))
	if msg, ok := run(cmd).(statusMsg); !ok || !msg.isError || msg.text != "Clock in first" {
		t.Fatalf("break while off duty: %+v", msg)
	}

	d, cmd = d.update(runes("s"))
	if msg, ok := run(cmd).(changedMsg); !ok || msg.text != "Clocked in" {
		t.Fatalf("clock in: %+v", msg)
	}
	d, _ = d.update(run(d.loadData()))
	if !d.clock.onShift() {
		t.Fatal("should be on shift after clock in")
	}

	d, cmd = d.update(runes("b"))
	if msg, ok := run(cmd).(changedMsg); !ok || msg.text != "Break started" {
		t.Fatalf("break: %+v", msg)
	}
	d, _ = d.update(run(d.loadData()))
	d, cmd = d.update(runes("s"))
	if msg, ok := run(cmd).(statusMsg); !ok || msg.text != "End your break first" {
		t.Fatalf("clock out on break: %+v", msg)
	}
}

func TestDashboardVerifyAndComplete(t *testing.T) {
	e := newTestEnv(t)
	alice := e.staff(t, "alice", store.RoleStaff, true)
	inst := e.instance(t, e.early)
	if res, err := e.deps.Service.Claim(e.ctx, inst.ID, alice.ID); err != nil || !res.Outcome.OK() {
		t.Fatalf("claim: %v %v", res.Outcome, err)
	}

	d := newDashboardModel(e.deps)
	d.setSize(120, 40)
	d.setStaff(alice)
	d, _ = d.update(run(d.loadData()))
	if d.active == nil || d.active.ID != inst.ID {
		t.Fatal("dashboard should show the claimed task")
	}
	if d.verified {
		t.Fatal("not scanned yet")
	}

	dir := t.TempDir()
	wrong := filepath.Join(dir, "wrong.jpg")
	code := filepath.Join(dir, "code.jpg")
	photo := filepath.Join(dir, "done.jpg")
	os.WriteFile(wrong, []byte("qr:XYZ"), 0o644)
	os.WriteFile(code, []byte("qr:ABC123"), 0o644)
	os.WriteFile(photo, []byte("photo bytes"), 0o644)

	expectOutcome(t, run(d.submitImage("complete", photo, inst.ID, alice.ID)), tasks.OutcomeNotVerified)
	expectOutcome(t, run(d.submitImage("verify", wrong, inst.ID, alice.ID)), tasks.OutcomeMismatch)
	expectOutcome(t, run(d.submitImage("verify", code, inst.ID, alice.ID)), tasks.OutcomeOK)

	d, _ = d.update(run(d.loadData()))
	if !d.verified {
		t.Fatal("dashboard should show the location as verified")
	}
	if !strings.Contains(d.view(), "location verified") {
		t.Fatal("view should mention verification")
	}

	res := expectOutcome(t, run(d.submitImage("complete", photo, inst.ID, alice.ID)), tasks.OutcomeOK)
	if res.Instance.Status != store.StatusCompleted || res.Instance.PhotoRef == "" {
		t.Fatalf("completed instance = %+v", res.Instance)
	}
	d, _ = d.update(run(d.loadData()))
	if d.active != nil {
		t.Fatal("no active task after completion")
	}
}

func TestDashboardInterrupt(t *testing.T) {
	e := newTestEnv(t)
	alice := e.staff(t, "alice", store.RoleStaff, true)
	inst := e.instance(t, e.early)
	e.deps.Service.Claim(e.ctx, inst.ID, alice.ID)

	d := newDashboardModel(e.deps)
	d.setStaff(alice)
	d, _ = d.update(run(d.loadData()))

	_, cmd := d.update(runes("i"))
	res := expectOutcome(t, run(cmd), tasks.OutcomeOK)
	if res.Instance.Status != store.StatusInterrupted || res.Instance.ClaimantID != nil {
		t.Fatalf("interrupted instance = %+v", res.Instance)
	}
}

func TestDashboardImageFormOpensOnlyWithActiveTask(t *testing.T) {
	e := newTestEnv(t)
	alice := e.staff(t, "alice", store.RoleStaff, true)
	d := newDashboardModel(e.deps)
	d.setStaff(alice)

	d, _ = d.update(runes("v"))
	if d.formActive {
		t.Fatal("verify form needs an active task")
	}

	inst := e.instance(t, e.early)
	e.deps.Service.Claim(e.ctx, inst.ID, alice.ID)
	d, _ = d.update(run(d.loadData()))
	d, _ = d.update(runes("v"))
	if !d.formActive || d.formOp != "verify" {
		t.Fatal("verify form should open")
	}
	d, _ = d.update(tea.KeyMsg{Type: tea.KeyEsc})
	if d.formActive {
		t.Fatal("esc should close the form")
	}
}

func TestDashboardAdminOverview(t *testing.T) {
	e := newTestEnv(t)
	boss := e.staff(t, "boss", store.RoleAdmin, true)
	d := newDashboardModel(e.deps)
	d.setStaff(boss)
	d.setSize(120, 40)

	d, _ = d.update(run(d.loadData()))
	if d.overview == nil {
		t.Fatal("admins should get the overview")
	}
	if d.overview.Working != 1 || d.overview.Outstanding != 3 || len(d.overview.Delayed) != 1 {
		t.Fatalf("overview = %+v", d.overview)
	}
	if !strings.Contains(d.view(), "Delayed (1)") {
		t.Fatal("view should list delayed tasks")
	}
}

// ============================================================
// Task boards
// ============================================================

func TestBoardHourAndDay(t *testing.T) {
	e := newTestEnv(t)
	b := newBoardModel(e.deps, listHour)

	b, _ = b.update(run(b.refresh()))
	if b.hour != 10 || len(b.views) != 2 {
		t.Fatalf("hour board = hour %d, %d views", b.hour, len(b.views))
	}
	if b.views[0].DefinitionID != e.early.ID {
		t.Fatal("scheduled tasks come before unscheduled ones")
	}

	var cmd tea.Cmd
	b, cmd = b.update(runes("a"))
	if b.kind != listDay {
		t.Fatal("a should switch to the full day")
	}
	b, _ = b.update(run(cmd))
	if len(b.views) != 3 {
		t.Fatalf("day board has %d views, want 3", len(b.views))
	}
}

func TestBoardIgnoresOtherKinds(t *testing.T) {
	e := newTestEnv(t)
	tasksBoard := newBoardModel(e.deps, listHour)
	recovery := newBoardModel(e.deps, listDelinquent)

	msg := run(tasksBoard.refresh())
	recovery, _ = recovery.update(msg)
	if len(recovery.views) != 0 {
		t.Fatal("recovery board should ignore hour data")
	}

	recovery, _ = recovery.update(run(recovery.refresh()))
	if len(recovery.views) != 1 || recovery.views[0].DefinitionID != e.early.ID {
		t.Fatalf("recovery = %+v", recovery.views)
	}
	if recovery, _ = recovery.update(runes("a")); recovery.kind != listDelinquent {
		t.Fatal("recovery board has no day toggle")
	}
}

func TestBoardClaimAndContention(t *testing.T) {
	e := newTestEnv(t)
	alice := e.staff(t, "alice", store.RoleStaff, true)
	bob := e.staff(t, "bob", store.RoleStaff, true)

	ab := newBoardModel(e.deps, listHour)
	ab.setStaff(alice)
	ab, _ = ab.update(run(ab.refresh()))
	bb := newBoardModel(e.deps, listHour)
	bb.setStaff(bob)
	bb, _ = bb.update(run(bb.refresh()))

	_, cmd := ab.update(runes("c"))
	expectOutcome(t, run(cmd), tasks.OutcomeOK)

	// Bob's list is stale and still shows the task as pending.
	_, cmd = bb.update(tea.KeyMsg{Type: tea.KeyEnter})
	expectOutcome(t, run(cmd), tasks.OutcomeAlreadyTaken)

	// Alice may not hold two tasks.
	ab, _ = ab.update(runes("j"))
	_, cmd = ab.update(runes("c"))
	expectOutcome(t, run(cmd), tasks.OutcomeBusy)
}

func TestBoardResumeInterrupted(t *testing.T) {
	e := newTestEnv(t)
	alice := e.staff(t, "alice", store.RoleStaff, true)
	bob := e.staff(t, "bob", store.RoleStaff, true)
	inst := e.instance(t, e.early)
	e.deps.Service.Claim(e.ctx, inst.ID, alice.ID)
	e.deps.Service.Interrupt(e.ctx, inst.ID, alice.ID)

	b := newBoardModel(e.deps, listDelinquent)
	b.setStaff(bob)
	b, _ = b.update(run(b.refresh()))
	if len(b.views) != 1 || b.views[0].Status != store.StatusInterrupted {
		t.Fatalf("recovery = %+v", b.views)
	}

	_, cmd := b.update(tea.KeyMsg{Type: tea.KeyEnter})
	res := expectOutcome(t, run(cmd), tasks.OutcomeOK)
	if res.Instance.ClaimantID == nil || *res.Instance.ClaimantID != bob.ID {
		t.Fatal("bob should now hold the task")
	}
}

func TestBoardCompletedNotClaimable(t *testing.T) {
	b := boardModel{env: &Deps{}, views: []store.TaskView{{TaskInstance: store.TaskInstance{Status: store.StatusCompleted}, Activity: "Done"}}}
	b.staff = &store.Staff{ID: 1}
	msg, ok := run(b.act()).(statusMsg)
	if !ok || !msg.isError {
		t.Fatalf("expected an error status, got %+v", msg)
	}
}

// ============================================================
// Reports
// ============================================================

func TestReportsHourSummary(t *testing.T) {
	e := newTestEnv(t)
	r := newReportsModel(e.deps)
	r.setSize(100, 40)

	r, _ = r.update(run(r.refresh()))
	if r.workDate != "2024-06-01" {
		t.Fatalf("work date = %s", r.workDate)
	}
	if len(r.summaries) != 3 {
		t.Fatalf("expected 3 hour buckets, got %d", len(r.summaries))
	}
	if last := r.summaries[len(r.summaries)-1]; last.Hour != -1 {
		t.Fatal("unscheduled bucket should be last")
	}
	done, open := r.totals()
	if done != 0 || open != 3 {
		t.Fatalf("totals = %d/%d", done, open)
	}
	if !strings.Contains(r.view(), "total") {
		t.Fatal("view should include the totals row")
	}
}

func TestReportsPreviousDay(t *testing.T) {
	e := newTestEnv(t)
	r := newReportsModel(e.deps)

	var cmd tea.Cmd
	r, cmd = r.update(tea.KeyMsg{Type: tea.KeyLeft})
	r, _ = r.update(run(cmd))
	if r.workDate != "2024-05-31" || len(r.summaries) != 0 {
		t.Fatalf("previous day = %s with %d buckets", r.workDate, len(r.summaries))
	}

	// Looking back does not generate instances for that day.
	has, err := e.store.HasInstancesFor(e.ctx, "2024-05-31")
	if err != nil || has {
		t.Fatalf("has instances = %v, %v", has, err)
	}

	r, _ = r.update(tea.KeyMsg{Type: tea.KeyRight})
	r, _ = r.update(tea.KeyMsg{Type: tea.KeyRight})
	if r.offset != 0 {
		t.Fatal("cannot move past today")
	}
	if hourLabel(-1) != "any" || hourLabel(7) != "07" {
		t.Fatal("hourLabel")
	}
}

// ============================================================
// Catalog
// ============================================================

func TestCatalogAdminOnly(t *testing.T) {
	e := newTestEnv(t)
	c := newCatalogModel(e.deps)
	c.setSize(100, 40)
	c.setStaff(&store.Staff{ID: 1, Role: store.RoleStaff})

	c, _ = c.update(runes("n"))
	if c.formActive {
		t.Fatal("staff cannot open catalog forms")
	}
	if !strings.Contains(c.view(), "Only admins") {
		t.Fatal("view should explain the restriction")
	}
}

func TestCatalogCreateLocationAndTask(t *testing.T) {
	e := newTestEnv(t)
	c := newCatalogModel(e.deps)
	c.setSize(100, 40)
	c.setStaff(&store.Staff{ID: 1, Role: store.RoleAdmin})

	c, _ = c.update(run(c.refresh()))
	if len(c.locations) != 1 {
		t.Fatalf("locations = %d", len(c.locations))
	}

	c, _ = c.showLocationForm()
	if *c.formToken == "" {
		t.Fatal("new location form should suggest a token")
	}
	*c.formName = "Sauna"
	*c.formToken = "SAUNA-1"
	if msg, ok := run(c.save()).(changedMsg); !ok || msg.text != "Location created" {
		t.Fatalf("save location: %+v", msg)
	}
	c.formActive = false

	c, _ = c.update(run(c.refresh()))
	c.cursor = 1
	c.viewingDefs = true
	c, _ = c.showDefinitionForm(nil)
	*c.formName = "Refill water"
	*c.formHour = "14"
	*c.formMinute = "30"
	if msg, ok := run(c.save()).(changedMsg); !ok {
		t.Fatalf("save task: %+v", msg)
	}
	c.formActive = false

	c, _ = c.update(run(c.refreshDefinitions()))
	if len(c.definitions) != 1 || c.definitions[0].Activity != "Refill water" {
		t.Fatalf("definitions = %+v", c.definitions)
	}
	if *c.definitions[0].TargetHour != 14 || *c.definitions[0].TargetMinute != 30 {
		t.Fatal("target not saved")
	}
}

func TestCatalogRejectsMinuteWithoutHour(t *testing.T) {
	e := newTestEnv(t)
	c := newCatalogModel(e.deps)
	c.setStaff(&store.Staff{ID: 1, Role: store.RoleAdmin})
	c, _ = c.update(run(c.refresh()))

	c, _ = c.showDefinitionForm(nil)
	*c.formName = "Odd"
	*c.formMinute = "15"
	msg, ok := run(c.save()).(statusMsg)
	if !ok || !msg.isError {
		t.Fatalf("expected validation error, got %+v", msg)
	}
}

func TestCatalogEditAndArchive(t *testing.T) {
	e := newTestEnv(t)
	c := newCatalogModel(e.deps)
	c.setStaff(&store.Staff{ID: 1, Role: store.RoleAdmin})
	c, _ = c.update(run(c.refresh()))

	var cmd tea.Cmd
	c, cmd = c.update(tea.KeyMsg{Type: tea.KeyEnter})
	c, _ = c.update(run(cmd))
	if !c.viewingDefs || len(c.definitions) != 3 {
		t.Fatalf("definitions = %d", len(c.definitions))
	}

	c, _ = c.update(tea.KeyMsg{Type: tea.KeyEnter})
	if c.formType != "edit_definition" || *c.formName != c.definitions[0].Activity {
		t.Fatal("enter should open the edit form with current values")
	}
	*c.formHour = "11"
	if _, ok := run(c.save()).(changedMsg); !ok {
		t.Fatal("edit should succeed")
	}
	c.formActive = false

	c, cmd = c.update(runes("d"))
	if _, ok := run(cmd).(changedMsg); !ok {
		t.Fatal("archive should succeed")
	}
	c, _ = c.update(run(c.refreshDefinitions()))
	if len(c.definitions) != 2 {
		t.Fatalf("archived task still listed: %d", len(c.definitions))
	}
}

func TestCatalogRotateToken(t *testing.T) {
	e := newTestEnv(t)
	c := newCatalogModel(e.deps)
	c.setStaff(&store.Staff{ID: 1, Role: store.RoleAdmin})
	c, _ = c.update(run(c.refresh()))

	c, _ = c.update(runes("t"))
	if !c.formActive || c.formType != "rotate" {
		t.Fatal("t should open the token form")
	}
	*c.formToken = "NEW-TOKEN"
	run(c.save())

	loc, err := e.store.GetLocation(e.ctx, e.loc.ID)
	if err != nil || loc.QRToken != "NEW-TOKEN" {
		t.Fatalf("token = %v, %v", loc, err)
	}
}

// ============================================================
// Settings
// ============================================================

func TestSettingsSave(t *testing.T) {
	e := newTestEnv(t)
	s := newSettingsModel(e.deps)
	s.setStaff(&store.Staff{ID: 1, Role: store.RoleAdmin})
	s, _ = s.update(run(s.refresh()))

	s, _ = s.update(tea.KeyMsg{Type: tea.KeyEnter})
	if !s.formActive {
		t.Fatal("enter should open the form for admins")
	}
	if *s.values["photo_max_edge"] != "1600" {
		t.Fatalf("form not prefilled: %q", *s.values["photo_max_edge"])
	}
	*s.values["claim_ttl_minutes"] = "45"
	if _, ok := run(s.saveSettings()).(changedMsg); !ok {
		t.Fatal("save should succeed")
	}
	if got := e.store.GetIntSetting(e.ctx, "claim_ttl_minutes", 0); got != 45 {
		t.Fatalf("claim_ttl_minutes = %d", got)
	}
}

func TestSettingsReadOnlyForStaff(t *testing.T) {
	e := newTestEnv(t)
	s := newSettingsModel(e.deps)
	s.setSize(100, 40)
	s.setStaff(&store.Staff{ID: 1, Role: store.RoleStaff})
	s, _ = s.update(run(s.refresh()))

	s, _ = s.update(tea.KeyMsg{Type: tea.KeyEnter})
	if s.formActive {
		t.Fatal("staff cannot edit settings")
	}
	if s.getVal("missing", "fallback") != "fallback" {
		t.Fatal("getVal fallback")
	}
	if !strings.Contains(s.view(), "claim_ttl_minutes") {
		t.Fatal("view should list settings")
	}
}

// ============================================================
// Sign in
// ============================================================

func TestSigninListsActiveStaff(t *testing.T) {
	e := newTestEnv(t)
	m := newSigninModel(e.deps)
	m.setSize(100, 40)

	m, _ = m.update(run(m.refresh()))
	if m.form != nil {
		t.Fatal("no staff means no form")
	}
	if !strings.Contains(m.view(), "No active staff") {
		t.Fatal("view should explain how to add staff")
	}

	alice := e.staff(t, "alice", store.RoleStaff, false)
	gone := e.staff(t, "gone", store.RoleStaff, false)
	e.store.DeactivateStaff(e.ctx, gone.ID)

	m, _ = m.update(run(m.refresh()))
	if len(m.staff) != 1 || m.form == nil {
		t.Fatalf("staff = %+v", m.staff)
	}
	if st := m.find(alice.ID); st == nil || st.Name != "Alice" {
		t.Fatal("find alice")
	}
	if m.find(gone.ID) != nil {
		t.Fatal("inactive staff should not be offered")
	}
}

// ============================================================
// App model
// ============================================================

func newTestApp(t *testing.T) (App, *testEnv) {
	t.Helper()
	e := newTestEnv(t)
	app := NewApp(*e.deps)
	m, _ := app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m.(App), e
}

func signedIn(t *testing.T, app App, st *store.Staff) App {
	t.Helper()
	m, _ := app.Update(signedInMsg{staff: st})
	return m.(App)
}

func TestNewApp(t *testing.T) {
	e := newTestEnv(t)
	app := NewApp(*e.deps)

	if app.activeView != viewDashboard {
		t.Fatal("default view should be dashboard")
	}
	if app.staff != nil || app.showHelp || app.exportPicking {
		t.Fatal("app should start signed out with no overlays")
	}
	if app.env.Logger == nil {
		t.Fatal("logger should default to a no-op")
	}
	if app.View() != "Loading..." {
		t.Fatal("unsized app should show the loading text")
	}
}

func TestAppSignedOutShowsSignin(t *testing.T) {
	app, _ := newTestApp(t)
	if !strings.Contains(app.View(), "Sign in") {
		t.Fatal("signed out app should show the sign in screen")
	}
	if strings.Contains(app.renderHeader(), "Recovery") {
		t.Fatal("tabs are hidden until sign in")
	}

	m, cmd := app.Update(runes("1"))
	if m.(App).activeView != viewDashboard || cmd != nil {
		t.Fatal("tab keys do nothing before sign in")
	}
	_, cmd = app.Update(runes("q"))
	if _, ok := run(cmd).(tea.QuitMsg); !ok {
		t.Fatal("q should quit from the sign in screen")
	}
}

func TestAppSignInAndTabs(t *testing.T) {
	app, e := newTestApp(t)
	alice := e.staff(t, "alice", store.RoleStaff, true)
	app = signedIn(t, app, alice)

	if app.staff == nil || app.dashboard.staff == nil || app.tasks.staff == nil {
		t.Fatal("sign in should reach every view")
	}
	header := app.renderHeader()
	for _, name := range viewNames {
		if !strings.Contains(header, name) {
			t.Fatalf("header missing tab %q", name)
		}
	}

	for i := range viewNames {
		m, _ := app.Update(runes(string(rune('1' + i))))
		app = m.(App)
		if app.activeView != viewState(i) {
			t.Fatalf("key %d opened view %d", i+1, app.activeView)
		}
		if app.View() == "" {
			t.Fatalf("view %d rendered empty", i)
		}
	}

	m, _ := app.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.(App).activeView != viewDashboard {
		t.Fatal("tab should wrap around")
	}
}

func TestAppOutcomeStatus(t *testing.T) {
	app, e := newTestApp(t)
	app = signedIn(t, app, e.staff(t, "alice", store.RoleStaff, true))

	m, cmd := app.Update(outcomeMsg{op: "Claim", res: tasks.Result{Outcome: tasks.OutcomeBusy}})
	app = m.(App)
	if !app.statusErr || !strings.Contains(app.status, "finish your current task") {
		t.Fatalf("status = %q", app.status)
	}
	if cmd == nil {
		t.Fatal("an outcome should trigger a reload")
	}
	if !strings.Contains(app.renderFooter(), "finish your current task") {
		t.Fatal("footer should show the status")
	}
}

func TestAppFooterShowsShift(t *testing.T) {
	app, e := newTestApp(t)
	alice := e.staff(t, "alice", store.RoleStaff, true)
	app = signedIn(t, app, alice)

	m, _ := app.Update(run(app.dashboard.loadData()))
	app = m.(App)
	if !strings.Contains(app.renderFooter(), "●") {
		t.Fatal("footer should show the shift indicator")
	}
}

func TestAppSignOut(t *testing.T) {
	app, e := newTestApp(t)
	app = signedIn(t, app, e.staff(t, "alice", store.RoleStaff, false))

	m, cmd := app.Update(runes("o"))
	app = m.(App)
	if app.staff != nil || app.dashboard.staff != nil {
		t.Fatal("sign out should clear the staff member")
	}
	if _, ok := run(cmd).(staffDataMsg); !ok {
		t.Fatal("sign out should reload the staff list")
	}
}

func TestAppExport(t *testing.T) {
	app, e := newTestApp(t)
	app = signedIn(t, app, e.staff(t, "boss", store.RoleAdmin, true))

	m, _ := app.Update(runes("e"))
	app = m.(App)
	if !app.exportPicking {
		t.Fatal("e should open the export picker")
	}
	if !strings.Contains(app.View(), "XLSX") {
		t.Fatal("picker should list XLSX")
	}

	m, _ = app.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.(App).Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.(App).Update(tea.KeyMsg{Type: tea.KeyDown})
	app = m.(App)
	if app.exportCursor != 2 {
		t.Fatalf("cursor = %d, want 2", app.exportCursor)
	}

	m, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app = m.(App)
	done, ok := run(cmd).(exportDoneMsg)
	if !ok || len(done.paths) != 1 {
		t.Fatalf("export: %+v", done)
	}
	if filepath.Base(done.paths[0]) != "shiftops-2024-06-01.xlsx" {
		t.Fatalf("path = %s", done.paths[0])
	}
	if _, err := os.Stat(done.paths[0]); err != nil {
		t.Fatal(err)
	}
}

func TestAppFormCapturesKeys(t *testing.T) {
	app, e := newTestApp(t)
	app = signedIn(t, app, e.staff(t, "boss", store.RoleAdmin, true))
	m, _ := app.Update(runes("5"))
	m, _ = m.(App).Update(run(m.(App).catalog.refresh()))
	m, _ = m.(App).Update(runes("n"))
	app = m.(App)
	if !app.isFormActive() {
		t.Fatal("n should open the location form")
	}

	m, _ = app.Update(runes("1"))
	if m.(App).activeView != viewCatalog {
		t.Fatal("keys typed into a form must not switch tabs")
	}
}

// ============================================================
// Key bindings
// ============================================================

func TestKeyMapHelp(t *testing.T) {
	if len(keys.ShortHelp()) == 0 {
		t.Fatal("short help should have bindings")
	}
	groups := keys.FullHelp()
	if len(groups) == 0 {
		t.Fatal("full help should have groups")
	}
	for i, g := range groups {
		if len(g) == 0 {
			t.Fatalf("full help group %d is empty", i)
		}
	}
}

// ============================================================
// Styles (smoke test)
// ============================================================

func TestStylesRender(t *testing.T) {
	styles := []struct {
		name string
		fn   func() string
	}{
		{"activeTab", func() string { return activeTabStyle.Render("test") }},
		{"inactiveTab", func() string { return inactiveTabStyle.Render("test") }},
		{"panel", func() string { return panelStyle.Render("test") }},
		{"alertPanel", func() string { return alertPanelStyle.Render("test") }},
		{"clockOff", func() string { return clockOffStyle.Render("test") }},
		{"clockWorking", func() string { return clockWorkingStyle.Render("test") }},
		{"clockBreak", func() string { return clockBreakStyle.Render("test") }},
		{"status", func() string { return statusLabel(store.StatusInterrupted) }},
	}
	for _, s := range styles {
		if s.fn() == "" {
			t.Fatalf("style %q rendered empty", s.name)
		}
	}
}
