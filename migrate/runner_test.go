package migrate

import (
	"context"
	"errors"
	"fanshare/database"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"
)

var allVersions = []string{"1.0.0", "1.0.1", "1.0.2", "1.0.3"}

func TestRun_FreshDatabase(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()
	r := newTestRunner(t, h, DefaultCatalog())

	res, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.From != database.DefaultVersion || res.To != "1.0.3" {
		t.Fatalf("result from %q to %q", res.From, res.To)
	}
	if diff := cmp.Diff(allVersions, res.Applied); diff != "" {
		t.Fatalf("applied mismatch (-want +got):\n%s", diff)
	}
	if res.State != StateCompleted || r.State() != StateCompleted {
		t.Fatalf("state = %v / %v, want completed", res.State, r.State())
	}
	if got := ledgerVersion(t, h); got != "1.0.3" {
		t.Fatalf("ledger = %q, want 1.0.3", got)
	}

	wantTables := []string{"fans", "feedback", "flagged_fans", "system_settings", "user_logins", "users"}
	if diff := cmp.Diff(wantTables, tableNames(t, h)); diff != "" {
		t.Fatalf("tables mismatch (-want +got):\n%s", diff)
	}

	isAdmin, ok := column(t, h, "users", "is_admin")
	if !ok || isAdmin.Default == nil || *isAdmin.Default != "0" || !isAdmin.NotNull {
		t.Fatalf("unexpected users.is_admin: %+v (found=%v)", isAdmin, ok)
	}
	fanType, ok := column(t, h, "fans", "fan_type")
	if !ok || fanType.Default == nil || *fanType.Default != "'ceiling'" {
		t.Fatalf("unexpected fans.fan_type: %+v (found=%v)", fanType, ok)
	}

	if err := h.DB.Exec(`INSERT INTO users (username, email) VALUES ('ana', 'ana@example.com')`).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if err := h.DB.Exec(`INSERT INTO fans (user_id, title) VALUES (1, 'Hunter Original')`).Error; err != nil {
		t.Fatalf("insert fan: %v", err)
	}
	var admin int
	var kind string
	h.DB.Raw(`SELECT is_admin FROM users WHERE id = 1`).Scan(&admin)
	h.DB.Raw(`SELECT fan_type FROM fans WHERE id = 1`).Scan(&kind)
	if admin != 0 || kind != "ceiling" {
		t.Fatalf("defaults not applied: is_admin=%d fan_type=%q", admin, kind)
	}
}

func TestRun_LegacyUsersTable(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()

	legacy := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, username TEXT NOT NULL, email TEXT NOT NULL)`,
		`INSERT INTO users (username, email) VALUES ('ana', 'ana@example.com'), ('bo', 'bo@example.com')`,
	}
	for _, stmt := range legacy {
		if err := h.DB.Exec(stmt).Error; err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	if _, err := database.NewSettingsStore(h.DB).EnsureLedger(ctx); err != nil {
		t.Fatalf("EnsureLedger: %v", err)
	}

	res, err := newTestRunner(t, h, DefaultCatalog()).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.To != "1.0.3" || ledgerVersion(t, h) != "1.0.3" {
		t.Fatalf("expected 1.0.3, got result %q ledger %q", res.To, ledgerVersion(t, h))
	}

	var admins []int
	if err := h.DB.Raw(`SELECT is_admin FROM users ORDER BY id`).Scan(&admins).Error; err != nil {
		t.Fatalf("select is_admin: %v", err)
	}
	if diff := cmp.Diff([]int{0, 0}, admins); diff != "" {
		t.Fatalf("existing rows mismatch (-want +got):\n%s", diff)
	}

	// The legacy table is kept as-is apart from the new column.
	if _, ok := column(t, h, "users", "password_hash"); ok {
		t.Fatalf("legacy users table should not have been recreated")
	}
}

func TestRun_AlreadyCurrentIsReadOnly(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()
	r := newTestRunner(t, h, DefaultCatalog())

	if _, err := r.Run(ctx); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	schemaBefore := schemaSnapshot(t, h)
	before := h.Counter.Snapshot()

	res, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	delta := h.Counter.Snapshot().Sub(before)
	if delta.Mutations() != 0 {
		t.Fatalf("expected zero mutating statements, got %+v", delta)
	}
	if res.State != StateNoOpNeeded || len(res.Applied) != 0 {
		t.Fatalf("expected no-op result, got %+v", res)
	}
	if res.From != "1.0.3" || res.To != "1.0.3" || ledgerVersion(t, h) != "1.0.3" {
		t.Fatalf("version changed: %+v", res)
	}
	if diff := cmp.Diff(schemaBefore, schemaSnapshot(t, h)); diff != "" {
		t.Fatalf("schema changed on second run (-before +after):\n%s", diff)
	}
}

func TestRun_FreshRunnerOnCurrentDatabase(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()
	if _, err := newTestRunner(t, h, DefaultCatalog()).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var calls callLog
	before := h.Counter.Snapshot()
	if _, err := newTestRunner(t, h, calls.wrap(DefaultCatalog())).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(calls.list()) != 0 {
		t.Fatalf("expected no units invoked, got %v", calls.list())
	}
	if delta := h.Counter.Snapshot().Sub(before); delta.Mutations() != 0 {
		t.Fatalf("expected zero mutating statements, got %+v", delta)
	}
}

func TestRun_ResumesFromPartialLedger(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()
	full := DefaultCatalog()

	res, err := newTestRunner(t, h, full[:2]).Run(ctx)
	if err != nil {
		t.Fatalf("partial Run: %v", err)
	}
	if res.To != "1.0.1" || ledgerVersion(t, h) != "1.0.1" {
		t.Fatalf("expected ledger at 1.0.1, got %q", ledgerVersion(t, h))
	}

	var calls callLog
	res, err = newTestRunner(t, h, calls.wrap(full)).Run(ctx)
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if diff := cmp.Diff([]string{"1.0.2", "1.0.3"}, calls.list()); diff != "" {
		t.Fatalf("invoked units mismatch (-want +got):\n%s", diff)
	}
	if res.From != "1.0.1" || res.To != "1.0.3" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRun_FailureStopsAndRollsBack(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()
	boom := errors.New("boom")

	catalog := DefaultCatalog()
	catalog[2].Apply = func(ctx context.Context, tx *Tx) error {
		if _, err := tx.EnsureColumn(ctx, "fans", "fan_type", "TEXT NOT NULL DEFAULT 'ceiling'"); err != nil {
			return err
		}
		return boom
	}

	var calls callLog
	var hookErr error
	var hookFields map[string]interface{}
	r := newTestRunner(t, h, calls.wrap(catalog), WithFailureHook(func(err error, fields map[string]interface{}) {
		hookErr, hookFields = err, fields
	}))

	res, err := r.Run(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var uerr *UnitError
	if !errors.As(err, &uerr) || uerr.Version != "1.0.2" {
		t.Fatalf("expected UnitError for 1.0.2, got %v", err)
	}
	if diff := cmp.Diff([]string{"1.0.0", "1.0.1", "1.0.2"}, calls.list()); diff != "" {
		t.Fatalf("invoked units mismatch (-want +got):\n%s", diff)
	}
	if ledgerVersion(t, h) != "1.0.1" || res.To != "1.0.1" {
		t.Fatalf("ledger should stay at 1.0.1, got ledger %q result %q", ledgerVersion(t, h), res.To)
	}
	if _, ok := column(t, h, "fans", "fan_type"); ok {
		t.Fatalf("fans.fan_type should have been rolled back")
	}
	if r.State() != StateFailed || res.State != StateFailed {
		t.Fatalf("state = %v, want failed", r.State())
	}
	if !errors.Is(hookErr, boom) || hookFields["version"] != "1.0.2" || hookFields["ledger"] != "1.0.1" {
		t.Fatalf("failure hook got err=%v fields=%v", hookErr, hookFields)
	}

	// The next start resumes at the failed unit.
	res, err = newTestRunner(t, h, DefaultCatalog()).Run(ctx)
	if err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if diff := cmp.Diff([]string{"1.0.2", "1.0.3"}, res.Applied); diff != "" {
		t.Fatalf("retry applied mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_PanicIsContained(t *testing.T) {
	h := openTestHandle(t)
	catalog := DefaultCatalog()
	catalog[0].Apply = func(ctx context.Context, tx *Tx) error {
		if err := tx.Exec(ctx, `CREATE TABLE scratch (id INTEGER)`); err != nil {
			return err
		}
		panic("unexpected")
	}

	_, err := newTestRunner(t, h, catalog).Run(context.Background())
	var uerr *UnitError
	if !errors.As(err, &uerr) || uerr.Version != "1.0.0" {
		t.Fatalf("expected UnitError for 1.0.0, got %v", err)
	}
	if ledgerVersion(t, h) != database.DefaultVersion {
		t.Fatalf("ledger moved to %q", ledgerVersion(t, h))
	}
	for _, name := range tableNames(t, h) {
		if name == "scratch" {
			t.Fatalf("scratch table should have been rolled back")
		}
	}
}

func TestRun_ReappliesAgainstManuallyMigratedSchema(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()

	// Migrate, then reset the ledger so every unit meets a schema that already has its change.
	if _, err := newTestRunner(t, h, DefaultCatalog()).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := database.NewSettingsStore(h.DB).SetVersion(ctx, database.DefaultVersion); err != nil {
		t.Fatalf("reset ledger: %v", err)
	}
	schemaBefore := schemaSnapshot(t, h)

	before := h.Counter.Snapshot()
	res, err := newTestRunner(t, h, DefaultCatalog()).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	delta := h.Counter.Snapshot().Sub(before)
	if delta.Schema != 0 {
		t.Fatalf("expected no schema statements, got %+v", delta)
	}
	if len(res.Applied) != 4 || ledgerVersion(t, h) != "1.0.3" {
		t.Fatalf("expected every unit to be recorded, got %+v", res)
	}
	if diff := cmp.Diff(schemaBefore, schemaSnapshot(t, h)); diff != "" {
		t.Fatalf("schema changed (-before +after):\n%s", diff)
	}
}

func TestRun_SortsPendingUnits(t *testing.T) {
	h := openTestHandle(t)
	catalog := DefaultCatalog()
	reversed := Catalog{catalog[3], catalog[1], catalog[2], catalog[0]}

	var calls callLog
	res, err := newTestRunner(t, h, calls.wrap(reversed)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff(allVersions, calls.list()); diff != "" {
		t.Fatalf("application order mismatch (-want +got):\n%s", diff)
	}
	if res.To != "1.0.3" {
		t.Fatalf("result to %q", res.To)
	}
}

func TestRun_MalformedLedgerIsFatal(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()
	store := database.NewSettingsStore(h.DB)
	if _, err := store.EnsureLedger(ctx); err != nil {
		t.Fatalf("EnsureLedger: %v", err)
	}
	if err := store.SetVersion(ctx, "1.x.0"); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}

	var calls callLog
	r := newTestRunner(t, h, calls.wrap(DefaultCatalog()))
	_, err := r.Run(ctx)
	var perr *VersionParseError
	if !errors.As(err, &perr) || perr.Value != "1.x.0" {
		t.Fatalf("expected VersionParseError for ledger value, got %v", err)
	}
	if len(calls.list()) != 0 {
		t.Fatalf("no unit should run, got %v", calls.list())
	}
	if r.State() != StateFailed {
		t.Fatalf("state = %v, want failed", r.State())
	}
	if _, _, err := r.Status(ctx); !errors.As(err, &perr) {
		t.Fatalf("Status should report the malformed ledger, got %v", err)
	}
}

func TestRun_NewerDatabaseIsLeftAlone(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()
	store := database.NewSettingsStore(h.DB)
	if _, err := store.EnsureLedger(ctx); err != nil {
		t.Fatalf("EnsureLedger: %v", err)
	}
	if err := store.SetVersion(ctx, "2.0.0"); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}

	res, err := newTestRunner(t, h, DefaultCatalog()).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateNoOpNeeded || ledgerVersion(t, h) != "2.0.0" {
		t.Fatalf("expected untouched ledger, got %+v ledger %q", res, ledgerVersion(t, h))
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	h := openTestHandle(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRunner(t, h, DefaultCatalog()).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(tableNames(t, h)) != 0 {
		t.Fatalf("expected an untouched database, got tables %v", tableNames(t, h))
	}
}

func TestRun_CancellationWaitsForCurrentUnit(t *testing.T) {
	h := openTestHandle(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := DefaultCatalog()
	apply := catalog[1].Apply
	catalog[1].Apply = func(ctx context.Context, tx *Tx) error {
		cancel()
		return apply(ctx, tx)
	}

	var calls callLog
	res, err := newTestRunner(t, h, calls.wrap(catalog)).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ledgerVersion(t, h) != "1.0.1" || res.To != "1.0.1" {
		t.Fatalf("the running unit should commit; ledger %q", ledgerVersion(t, h))
	}
	if _, ok := column(t, h, "users", "is_admin"); !ok {
		t.Fatalf("expected users.is_admin from the unit that was running")
	}
	if diff := cmp.Diff([]string{"1.0.0", "1.0.1"}, calls.list()); diff != "" {
		t.Fatalf("invoked units mismatch (-want +got):\n%s", diff)
	}
}

func TestStatus_DoesNotWrite(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()
	r := newTestRunner(t, h, DefaultCatalog())

	before := h.Counter.Snapshot()
	current, pending, err := r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if current != database.DefaultVersion || len(pending) != 4 {
		t.Fatalf("Status = %q, %d pending", current, len(pending))
	}
	if delta := h.Counter.Snapshot().Sub(before); delta.Mutations() != 0 {
		t.Fatalf("Status wrote to the database: %+v", delta)
	}
	if len(tableNames(t, h)) != 0 {
		t.Fatalf("Status created tables: %v", tableNames(t, h))
	}

	if _, err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	current, pending, err = r.Status(ctx)
	if err != nil || current != "1.0.3" || len(pending) != 0 {
		t.Fatalf("Status after run = %q, %d pending, %v", current, len(pending), err)
	}
}

type fakeLocker struct {
	lockErr       error
	locks         int
	unlocks       int
	heldDuringRun bool
}

func (l *fakeLocker) Lock(context.Context) error {
	l.locks++
	return l.lockErr
}

func (l *fakeLocker) Unlock() error {
	l.unlocks++
	return nil
}

func TestRun_HoldsLocker(t *testing.T) {
	h := openTestHandle(t)
	locker := &fakeLocker{}
	catalog := DefaultCatalog()
	apply := catalog[0].Apply
	catalog[0].Apply = func(ctx context.Context, tx *Tx) error {
		locker.heldDuringRun = locker.locks == 1 && locker.unlocks == 0
		return apply(ctx, tx)
	}

	if _, err := newTestRunner(t, h, catalog, WithLocker(locker)).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !locker.heldDuringRun || locker.locks != 1 || locker.unlocks != 1 {
		t.Fatalf("unexpected locker use: %+v", locker)
	}
}

func TestRun_LockFailureTouchesNothing(t *testing.T) {
	h := openTestHandle(t)
	locker := &fakeLocker{lockErr: ErrLockTimeout}

	_, err := newTestRunner(t, h, DefaultCatalog(), WithLocker(locker)).Run(context.Background())
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if locker.unlocks != 0 {
		t.Fatalf("unlock called without a held lock")
	}
	if len(tableNames(t, h)) != 0 {
		t.Fatalf("expected an untouched database, got %v", tableNames(t, h))
	}
}

func TestRun_InspectionFailureIsReported(t *testing.T) {
	h := openTestHandle(t)
	inspectErr := &database.InspectionError{Op: "columns", Table: "users", Err: errors.New("disk I/O error")}

	failing := func(db *gorm.DB) SchemaInspector {
		return failingInspector{SchemaInspector: NewSQLiteInspector(db), err: inspectErr}
	}
	_, err := newTestRunner(t, h, DefaultCatalog(), WithInspector(failing)).Run(context.Background())
	if !errors.Is(err, database.ErrSchemaInspection) {
		t.Fatalf("expected ErrSchemaInspection, got %v", err)
	}
	var uerr *UnitError
	if !errors.As(err, &uerr) || uerr.Version != "1.0.1" {
		t.Fatalf("expected failure in 1.0.1, got %v", err)
	}
	if ledgerVersion(t, h) != "1.0.0" {
		t.Fatalf("ledger = %q, want 1.0.0", ledgerVersion(t, h))
	}
}

// failingInspector answers table lookups normally and fails every column lookup.
type failingInspector struct {
	SchemaInspector
	err error
}

func (f failingInspector) ColumnNames(context.Context, string) (database.NameSet, error) {
	return nil, f.err
}
