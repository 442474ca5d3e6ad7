package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/homytech-sync/internal/device"
	"github.com/nerrad567/homytech-sync/internal/remote"
)

// Source reads the authoritative device state. *remote.Client satisfies it.
type Source interface {
	LatestLights(ctx context.Context) (remote.LightsState, error)
	LatestDoor(ctx context.Context) (remote.DeviceRecord, error)
	LatestClothesline(ctx context.Context) (remote.DeviceRecord, error)
	SyncState(ctx context.Context) error
}

// Logger is the logging interface used by the loader.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is told the outcome of every load attempt.
type Observer interface {
	SnapshotLoaded(err error)
}

// Config configures a Loader.
type Config struct {
	// RetryAttempts is how many extra attempts follow a failed load.
	RetryAttempts int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration

	Logger   Logger
	Observer Observer
}

// Loader fetches the startup snapshot and installs it in a Store.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Loader struct {
	src    Source
	store  *device.Store
	cfg    Config
	logger Logger

	// syncCtx outlives each Load so the follow-up sync is not cut short
	// when the caller's context ends; Close cancels it.
	syncCtx    context.Context //nolint:containedctx // lifetime of the loader
	syncCancel context.CancelFunc
	syncWG     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewLoader creates a Loader that reads from src and writes into store.
func NewLoader(src Source, store *device.Store, cfg Config) *Loader {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		src:        src,
		store:      store,
		cfg:        cfg,
		logger:     logger,
		syncCtx:    ctx,
		syncCancel: cancel,
	}
}

// Load fetches the snapshot, retrying when configured, and on success
// replaces the store's state and starts a background sync request.
//
// On failure the store is left untouched, so its state stays unknown.
//
// Returns:
//   - device.State: The loaded state
//   - error: ErrLoadFailed wrapping the last cause, or ErrClosed
func (l *Loader) Load(ctx context.Context) (device.State, error) {
	var lastErr error
	for attempt := 0; attempt <= l.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			l.logger.Info("retrying snapshot load", "attempt", attempt, "delay", l.cfg.RetryDelay)
			select {
			case <-ctx.Done():
				return device.State{}, fmt.Errorf("%w: %w", ErrLoadFailed, ctx.Err())
			case <-time.After(l.cfg.RetryDelay):
			}
		}

		state, err := l.loadOnce(ctx)
		if l.cfg.Observer != nil {
			l.cfg.Observer.SnapshotLoaded(err)
		}
		if err == nil {
			return state, nil
		}
		lastErr = err
		l.logger.Error("snapshot load failed", "attempt", attempt, "error", err)
		if errors.Is(err, ErrClosed) {
			break
		}
	}
	return device.State{}, lastErr
}

func (l *Loader) loadOnce(ctx context.Context) (device.State, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return device.State{}, ErrClosed
	}

	snap, err := l.Fetch(ctx)
	if err != nil {
		return device.State{}, err
	}

	state, skipped := device.FromSnapshot(snap)
	for _, id := range skipped {
		l.logger.Warn("ignoring snapshot light outside 1..3", "light_id", id)
	}
	if err := l.store.Load(state); err != nil {
		return device.State{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	l.logger.Info("snapshot loaded",
		"lights", state.Lights,
		"door_open", state.Door,
		"clothesline_extended", state.Clothesline.Extended,
	)
	l.sync()
	return state, nil
}

// Fetch reads the three categories concurrently. It succeeds only if all
// three reads succeed.
func (l *Loader) Fetch(ctx context.Context) (device.Snapshot, error) {
	var (
		lights      remote.LightsState
		door        remote.DeviceRecord
		clothesline remote.DeviceRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lights, err = l.src.LatestLights(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		door, err = l.src.LatestDoor(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		clothesline, err = l.src.LatestClothesline(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return device.Snapshot{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	return l.convert(lights, door, clothesline), nil
}

// sync asks the backend to push its stored state to the devices. Failures
// are logged and otherwise ignored.
func (l *Loader) sync() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.syncWG.Add(1)
	go func() {
		defer l.syncWG.Done()
		if err := l.src.SyncState(l.syncCtx); err != nil {
			l.logger.Warn("state sync request failed", "error", err)
		}
	}()
}

// Close cancels a pending sync request and waits for it to finish.
func (l *Loader) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.syncCancel()
	l.syncWG.Wait()
}

// convert maps the three responses to a Snapshot. Records the device
// package would reject are kept as sent and logged: the booleans are
// derived by equality with the affirmative action, so an odd action such
// as "-" reads as off, closed or retracted, and an unparsable timestamp
// becomes the zero time.
func (l *Loader) convert(lights remote.LightsState, door, clothesline remote.DeviceRecord) device.Snapshot {
	var snap device.Snapshot

	for _, rec := range lights.Lights {
		snap.Lights = append(snap.Lights, device.LightRecord{
			LightID: rec.LightID,
			Update: l.convertUpdate(device.CategoryLight, remote.DeviceRecord{
				User:      rec.User,
				Action:    rec.Action,
				Timestamp: rec.Timestamp,
			}, "light_id", rec.LightID),
		})
	}

	snap.Door = l.convertRecord(device.CategoryDoor, door)
	snap.Clothesline = l.convertRecord(device.CategoryClothesline, clothesline)
	return snap
}

// convertRecord maps a door or clothesline record. An empty record means
// no history and yields the zero Update.
func (l *Loader) convertRecord(category device.Category, rec remote.DeviceRecord) device.Update {
	if rec.Empty() {
		return device.Update{}
	}
	return l.convertUpdate(category, rec)
}

func (l *Loader) convertUpdate(category device.Category, rec remote.DeviceRecord, attrs ...any) device.Update {
	if err := device.ValidateAction(category, rec.Action); err != nil {
		l.logger.Warn("unexpected snapshot action", append([]any{"category", category, "action", rec.Action}, attrs...)...)
	}
	ts, err := device.ParseTimestamp(rec.Timestamp)
	if err != nil {
		l.logger.Warn("unparsable snapshot timestamp", append([]any{"category", category, "timestamp", rec.Timestamp}, attrs...)...)
	}
	return device.Update{User: rec.User, Action: rec.Action, Timestamp: ts, Source: rec.Source}
}
