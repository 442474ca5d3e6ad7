package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/homytech-sync/internal/device"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// pruneEvery is how many records pass between retention sweeps.
	pruneEvery = 50

	// recordTimeout bounds a single insert made from a store callback.
	recordTimeout = 2 * time.Second
)

// SourceLocal marks entries that did not come from the backend.
const SourceLocal = "local"

// Entry is one journaled update or alert.
type Entry struct {
	ID       int64           `json:"id"`
	Category device.Category `json:"category"`

	// LightIndex is the 0-based light for light entries, otherwise -1.
	LightIndex int       `json:"light_index"`
	User       string    `json:"user,omitempty"`
	Action     string    `json:"action"`
	Source     string    `json:"source,omitempty"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Logger is the logging interface used by the journal.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Journal keeps the updates and alerts of the current run in SQLite.
//
// It implements device.Listener, so registering it on a Store records
// every applied change. Snapshot loads are not journaled.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Journal struct {
	db        *sql.DB
	retention int
	logger    Logger
	now       func() time.Time

	recorded atomic.Int64
}

// New creates a journal on db, which must already be migrated.
// retention is the number of entries kept per category (0 keeps all).
func New(db *sql.DB, retention int) *Journal {
	return &Journal{
		db:        db,
		retention: retention,
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetLogger sets the logger.
func (j *Journal) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	j.logger = logger
}

// Record inserts an entry and returns its id.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	if !e.Category.Valid() || e.Action == "" {
		return 0, fmt.Errorf("%w: category %q action %q", ErrInvalidEntry, e.Category, e.Action)
	}

	var lightIndex any
	if e.Category == device.CategoryLight && e.LightIndex >= 0 {
		lightIndex = e.LightIndex
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = j.now()
	}

	res, err := j.db.ExecContext(ctx,
		`INSERT INTO journal (category, light_index, user_name, action, source, message, occurred_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Category),
		lightIndex,
		e.User,
		e.Action,
		e.Source,
		e.Message,
		e.OccurredAt.UTC().Format(time.RFC3339Nano),
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting journal entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading journal id: %w", err)
	}

	j.maybePrune(ctx)
	return id, nil
}

// Recent returns the newest entries of category, newest first.
// limit defaults to 50 and is capped at 200.
func (j *Journal) Recent(ctx context.Context, category device.Category, limit int) ([]Entry, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", device.ErrUnknownCategory, category)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, category, light_index, user_name, action, source, message, occurred_at, recorded_at
		 FROM journal
		 WHERE category = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		string(category),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e          Entry
			cat        string
			lightIndex sql.NullInt64
			occurredAt string
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &cat, &lightIndex, &e.User, &e.Action, &e.Source, &e.Message, &occurredAt, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning journal: %w", err)
		}
		e.Category = device.Category(cat)
		e.LightIndex = -1
		if lightIndex.Valid {
			e.LightIndex = int(lightIndex.Int64)
		}
		e.OccurredAt = parseTime(occurredAt)
		e.RecordedAt = parseTime(recordedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}
	return entries, nil
}

// Prune keeps the newest keep entries of each category and deletes the
// rest. It returns the number of rows removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM journal
		 WHERE id IN (
		     SELECT id FROM (
		         SELECT id, ROW_NUMBER() OVER (PARTITION BY category ORDER BY id DESC) AS rn
		         FROM journal
		     ) WHERE rn > ?
		 )`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading pruned count: %w", err)
	}
	return n, nil
}

// maybePrune runs a retention sweep once every pruneEvery records.
func (j *Journal) maybePrune(ctx context.Context) {
	if j.retention <= 0 || j.recorded.Add(1)%pruneEvery != 0 {
		return
	}
	if _, err := j.Prune(ctx, j.retention); err != nil {
		j.logger.Warn("journal prune failed", "error", err)
	}
}

// StateChanged implements device.Listener.
func (j *Journal) StateChanged(change device.Change) {
	if change.Snapshot {
		return
	}

	e := Entry{
		Category:   change.Category,
		LightIndex: change.LightIndex,
		User:       change.Update.User,
		Action:     change.Update.Action,
		Source:     change.Update.Source,
		OccurredAt: change.Update.Timestamp,
	}
	if change.ModeChange {
		e.User = ""
		e.Action = device.ModeAuto
		if change.State.Clothesline.ManualMode {
			e.Action = device.ModeManual
		}
		e.Source = SourceLocal
		e.OccurredAt = j.now()
	}
	j.recordAsync(e)
}

// AlertRaised implements device.Listener.
func (j *Journal) AlertRaised(alert device.Alert) {
	j.recordAsync(Entry{
		Category:   device.CategoryAlert,
		LightIndex: -1,
		User:       alert.User,
		Action:     alert.Action,
		Message:    alert.Message,
		OccurredAt: alert.Timestamp,
	})
}

// recordAsync records from a store callback, where errors can only be logged.
func (j *Journal) recordAsync(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if _, err := j.Record(ctx, e); err != nil {
		j.logger.Warn("journal record failed", "category", e.Category, "error", err)
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
