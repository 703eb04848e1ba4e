package migrate

import (
	"context"
	"errors"
	"fanshare/database"
	"fanshare/models"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// State is the runner's position in a migration run.
type State int32

const (
	StateIdle State = iota
	StateChecking
	StateNoOpNeeded
	StateApplying
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateNoOpNeeded:
		return "up-to-date"
	case StateApplying:
		return "applying"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Locker excludes other processes from migrating the same database.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// FailureHook observes a failed run before Run returns the error.
type FailureHook func(err error, fields map[string]interface{})

// Result describes a finished run.
type Result struct {
	RunID   string   `json:"run_id"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Applied []string `json:"applied"`
	State   State    `json:"-"`
}

// Runner brings a database's schema up to the latest version of its catalog.
type Runner struct {
	db           *gorm.DB
	catalog      Catalog
	target       string
	newInspector func(*gorm.DB) SchemaInspector
	locker       Locker
	logger       *log.Logger
	onFailure    FailureHook

	mu    sync.Mutex
	state atomic.Int32
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger; the default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithLocker holds l for the duration of every Run.
func WithLocker(l Locker) Option {
	return func(r *Runner) { r.locker = l }
}

// WithInspector replaces the SQLite schema inspector.
func WithInspector(factory func(*gorm.DB) SchemaInspector) Option {
	return func(r *Runner) {
		if factory != nil {
			r.newInspector = factory
		}
	}
}

// WithFailureHook registers a callback for failed runs.
func WithFailureHook(h FailureHook) Option {
	return func(r *Runner) { r.onFailure = h }
}

// NewRunner validates catalog and binds it to db.
func NewRunner(db *gorm.DB, catalog Catalog, opts ...Option) (*Runner, error) {
	if db == nil {
		return nil, errors.New("migrate: nil database")
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		db:           db,
		catalog:      append(Catalog(nil), catalog...),
		target:       catalog.Latest(),
		newInspector: NewSQLiteInspector,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if !catalog.Ascending() {
		r.logger.Printf("Warning: migration catalog is not declared in ascending version order; units will be applied sorted")
	}
	return r, nil
}

// Target is the version the catalog brings a database to.
func (r *Runner) Target() string {
	return r.target
}

// State reports what the runner is doing, or how its last run ended.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Status reports the recorded version and the units a Run would apply, without writing.
// A database that has never been migrated reports DefaultVersion.
func (r *Runner) Status(ctx context.Context) (current string, pending Catalog, err error) {
	current, err = r.readVersion(ctx)
	if err != nil {
		return "", nil, err
	}
	pending, err = r.catalog.After(current)
	if err != nil {
		return current, nil, fmt.Errorf("schema ledger: %w", err)
	}
	return current, pending, nil
}

func (r *Runner) readVersion(ctx context.Context) (string, error) {
	exists, err := r.newInspector(r.db).HasTable(ctx, models.SystemSetting{}.TableName())
	if err != nil {
		return "", err
	}
	if !exists {
		return database.DefaultVersion, nil
	}
	value, ok, err := database.NewSettingsStore(r.db).GetSetting(ctx, database.VersionKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return database.DefaultVersion, nil
	}
	return value, nil
}

// Run applies every pending unit in version order, one transaction per unit, and
// records each unit's version in the same transaction. It stops at the first failure;
// units committed before it stay applied. Calling Run on an up-to-date database only
// reads. Cancelling ctx stops the run between units, never inside one.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := Result{RunID: uuid.NewString()[:8]}
	logf := func(format string, args ...interface{}) {
		r.logger.Printf("[migrate %s] "+format, append([]interface{}{res.RunID}, args...)...)
	}
	fail := func(err error, fields map[string]interface{}) (Result, error) {
		r.setState(StateFailed)
		res.State = StateFailed
		logf("Migration failed: %v", err)
		if r.onFailure != nil {
			if fields == nil {
				fields = map[string]interface{}{}
			}
			fields["run_id"] = res.RunID
			fields["from"] = res.From
			fields["ledger"] = res.To
			r.onFailure(err, fields)
		}
		return res, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err, nil)
	}

	if r.locker != nil {
		if err := r.locker.Lock(ctx); err != nil {
			return fail(err, nil)
		}
		defer func() {
			if err := r.locker.Unlock(); err != nil {
				logf("Warning: failed to release migration lock: %v", err)
			}
		}()
	}

	r.setState(StateChecking)
	store := database.NewSettingsStore(r.db)
	created, err := store.EnsureLedger(ctx)
	if err != nil {
		return fail(fmt.Errorf("prepare schema ledger: %w", err), nil)
	}
	if created {
		logf("Created schema ledger at version %s", database.DefaultVersion)
	}

	current, _, err := store.GetSetting(ctx, database.VersionKey)
	if err != nil {
		return fail(fmt.Errorf("read schema version: %w", err), nil)
	}
	res.From, res.To = current, current

	pending, err := r.catalog.After(current)
	if err != nil {
		return fail(fmt.Errorf("schema ledger: %w", err), map[string]interface{}{"ledger_value": current})
	}

	if len(pending) == 0 {
		r.setState(StateNoOpNeeded)
		res.State = StateNoOpNeeded
		if MustCompare(current, r.target) > 0 {
			logf("Warning: database schema %s is newer than this build's %s", current, r.target)
		} else {
			logf("Schema is up to date at %s", current)
		}
		return res, nil
	}

	r.setState(StateApplying)
	logf("Migrating schema from %s to %s (%d pending)", current, r.target, len(pending))

	// Statements inside a unit must not be interrupted, so units see a context that
	// keeps values but never cancels.
	unitCtx := context.WithoutCancel(ctx)
	for _, u := range pending {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("migration interrupted before %s: %w", u.Version, err), map[string]interface{}{"next": u.Version})
		}

		start := time.Now()
		if err := r.applyUnit(unitCtx, store, u); err != nil {
			uerr := &UnitError{Version: u.Version, Description: u.Description, Err: err}
			return fail(uerr, map[string]interface{}{"version": u.Version, "description": u.Description})
		}
		res.To = u.Version
		res.Applied = append(res.Applied, u.Version)
		logf("Applied %s (%s) in %s", u.Version, u.Description, time.Since(start).Round(time.Millisecond))
	}

	r.setState(StateCompleted)
	res.State = StateCompleted
	logf("Schema migrated to %s", res.To)
	return res, nil
}

func (r *Runner) applyUnit(ctx context.Context, store *database.SettingsStore, u Unit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()

		if err := u.Apply(ctx, &Tx{db: tx, inspector: r.newInspector(tx)}); err != nil {
			return err
		}
		if err := store.WithDB(tx).SetVersion(ctx, u.Version); err != nil {
			return fmt.Errorf("record version: %w", err)
		}
		return nil
	})
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
}
